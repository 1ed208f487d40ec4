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
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// BackendFactory creates a new ExecutionBackend for a data source definition.
type BackendFactory func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error)

// Registry manages backend factories keyed by data source type.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// Global registry instance
var globalRegistry = NewDefaultRegistry()

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]BackendFactory),
	}
}

// NewDefaultRegistry creates a registry with the built-in SQL factories.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	sqlFactory := func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		return NewSQLBackend(ctx, cfg, logger)
	}
	r.Register("postgres", sqlFactory)
	r.Register("mysql", sqlFactory)
	r.Register("sqlite", sqlFactory)
	r.Register("pgx", func(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
		return NewPgxBackend(ctx, cfg, logger)
	})
	return r
}

// Register registers a backend factory with the given type name.
// If a factory with the same name already exists, it will be replaced.
func (r *Registry) Register(typ string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(typ)] = factory
}

// Get retrieves a backend factory by type name.
func (r *Registry) Get(typ string) (BackendFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[strings.ToLower(typ)]
	return factory, ok
}

// Open creates a backend for cfg using the registered factory for its type.
func (r *Registry) Open(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
	factory, ok := r.Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
	return factory(ctx, cfg, logger)
}

// List returns all registered type names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a backend from the global registry.
func Open(ctx context.Context, cfg SourceConfig, logger *zap.Logger) (ExecutionBackend, error) {
	return globalRegistry.Open(ctx, cfg, logger)
}

// Catalog maps data source handles to their definitions and lazily opened,
// shared backends.
type Catalog struct {
	mu       sync.Mutex
	registry *Registry
	logger   *zap.Logger
	sources  map[string]SourceConfig
	backends map[string]ExecutionBackend
	breakers CircuitBreakerConfig
}

// NewCatalog validates sources and builds a catalog over the global registry.
func NewCatalog(sources []SourceConfig, logger *zap.Logger) (*Catalog, error) {
	return NewCatalogWithRegistry(globalRegistry, sources, logger)
}

// NewCatalogWithRegistry builds a catalog that opens backends through registry.
func NewCatalogWithRegistry(registry *Registry, sources []SourceConfig, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		registry: registry,
		logger:   logger,
		backends: make(map[string]ExecutionBackend),
		breakers: DefaultCircuitBreakerConfig(),
	}
	c.breakers.OnStateChange = recordCircuitState
	defs, err := indexSources(sources)
	if err != nil {
		return nil, err
	}
	c.sources = defs
	return c, nil
}

// indexSources validates sources and keys them by handle.
func indexSources(sources []SourceConfig) (map[string]SourceConfig, error) {
	defs := make(map[string]SourceConfig, len(sources))
	for _, src := range sources {
		if err := ValidateSource(src); err != nil {
			return nil, fmt.Errorf("data source %q: %w", src.Name, err)
		}
		if _, dup := defs[src.Name]; dup {
			return nil, fmt.Errorf("data source %q defined twice", src.Name)
		}
		src.Type = strings.ToLower(src.Type)
		resolved, err := ResolveSecret(src)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", src.Name, err)
		}
		defs[src.Name] = resolved
	}
	return defs, nil
}

// Replace swaps in a new set of definitions. Backends of removed or changed
// sources are closed; unchanged sources keep their open backend. On a
// validation error the catalog is left untouched.
func (c *Catalog) Replace(sources []SourceConfig) error {
	defs, err := indexSources(sources)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, b := range c.backends {
		if next, ok := defs[name]; ok && next == c.sources[name] {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(c.backends, name)
		c.logger.Info("data source closed for reload", zap.String("name", name))
	}
	for name := range c.sources {
		if _, ok := defs[name]; !ok {
			c.logger.Info("data source removed", zap.String("name", name))
		}
	}
	for name, src := range defs {
		if _, ok := c.sources[name]; !ok {
			c.logger.Info("data source added", zap.String("name", name), zap.String("type", src.Type))
		}
	}
	c.sources = defs
	return errors.Join(errs...)
}

// Resolve returns the definition registered under handle.
func (c *Catalog) Resolve(handle string) (SourceConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.sources[handle]
	if !ok {
		return SourceConfig{}, fmt.Errorf("%w: %q", ErrUnknownSource, handle)
	}
	return src, nil
}

// Backend returns the shared backend for handle, opening it on first use.
func (c *Catalog) Backend(ctx context.Context, handle string) (ExecutionBackend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[handle]; ok {
		return b, nil
	}
	src, ok := c.sources[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, handle)
	}

	opened, err := c.registry.Open(ctx, src, c.logger)
	if err != nil {
		return nil, err
	}
	b := NewInstrumentedBackend(handle, opened, NewCircuitBreaker(handle, c.breakers, c.logger))
	circuitState.WithLabelValues(handle).Set(float64(StateClosed))
	c.backends[handle] = b
	c.logger.Info("data source opened", zap.String("name", handle), zap.String("type", src.Type))
	return b, nil
}

// Names returns the configured handles, sorted.
func (c *Catalog) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.sources))
	for name := range c.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every opened backend.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, b := range c.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(c.backends, name)
	}
	return errors.Join(errs...)
}
