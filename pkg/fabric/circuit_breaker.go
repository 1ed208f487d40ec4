// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package fabric

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen is returned while a data source's circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState represents the current state of the circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Failing - reject requests immediately
	StateHalfOpen                     // Testing - allow limited requests
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig defines circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive outage errors that open the circuit (default: 5)
	SuccessThreshold int           // Consecutive successes that close it from half-open (default: 2)
	Timeout          time.Duration // Base wait before half-open (default: 30s)
	OnStateChange    func(source string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker stops sending statements to a data source that keeps
// failing at the connection level. Statement errors such as syntax errors or
// missing tables never count against it.
type CircuitBreaker struct {
	source string
	config CircuitBreakerConfig
	logger *zap.Logger

	mu               sync.Mutex
	state            CircuitState
	failureCount     int
	successCount     int
	consecutiveOpens int // drives the exponential backoff
	lastFailureTime  time.Time
}

// NewCircuitBreaker creates a closed circuit breaker for source.
func NewCircuitBreaker(source string, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{source: source, config: config, logger: logger, state: StateClosed}
}

// Execute runs operation unless the circuit is open.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := operation()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	timeout := cb.timeoutLocked()
	if elapsed := time.Since(cb.lastFailureTime); elapsed < timeout {
		return fmt.Errorf("%w: data source %q failed %d times, retry after %v",
			ErrCircuitOpen, cb.source, cb.config.FailureThreshold, (timeout - elapsed).Round(time.Millisecond))
	}
	cb.setStateLocked(StateHalfOpen)
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil || !IsOutage(err) {
		cb.onSuccess()
		return
	}
	cb.onFailure(err)
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.failureCount = 0
			cb.successCount = 0
			cb.consecutiveOpens = 0
			cb.setStateLocked(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.logger.Warn("data source failure",
			zap.String("source", cb.source),
			zap.Error(err),
			zap.Int("failure_count", cb.failureCount),
			zap.Int("threshold", cb.config.FailureThreshold))
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.consecutiveOpens++
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens at once.
		cb.consecutiveOpens++
		cb.successCount = 0
		cb.setStateLocked(StateOpen)
	}
}

func (cb *CircuitBreaker) setStateLocked(to CircuitState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.logger.Info("circuit breaker state",
		zap.String("source", cb.source),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Duration("timeout", cb.timeoutLocked()))
	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.source, from, to)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the circuit without waiting for the timeout.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.successCount = 0
	cb.consecutiveOpens = 0
	cb.lastFailureTime = time.Time{}
	cb.setStateLocked(StateClosed)
}

// timeoutLocked doubles the base timeout for every consecutive open, capped
// at 60s.
func (cb *CircuitBreaker) timeoutLocked() time.Duration {
	if cb.consecutiveOpens <= 1 {
		return cb.config.Timeout
	}
	delay := cb.config.Timeout * (1 << uint(cb.consecutiveOpens-1))
	if maxDelay := 60 * time.Second; delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

// IsOutage reports whether err means the data source itself is unreachable,
// as opposed to a statement the data source rejected.
func IsOutage(err error) bool {
	switch ClassifyError(err) {
	case "connection", "timeout":
		return true
	default:
		return false
	}
}

// ClassifyError determines an error type from the error and its message.
func ClassifyError(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "syntax"):
		return "syntax_error"
	case strings.Contains(errMsg, "timeout"):
		return "timeout"
	case strings.Contains(errMsg, "connect") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "bad connection"):
		return "connection"
	case strings.Contains(errMsg, "permission") || strings.Contains(errMsg, "access denied"):
		return "permission_denied"
	case strings.Contains(errMsg, "no such table") || strings.Contains(errMsg, "does not exist") ||
		strings.Contains(errMsg, "doesn't exist"):
		return "not_found"
	}
	return "unknown"
}
