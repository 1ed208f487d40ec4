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

package sqlitedriver

import (
	"strings"
	"time"
)

// DefaultBusyTimeout is how long a connection waits on a locked database.
// Runner processes and the server may open the same file at once.
const DefaultBusyTimeout = 5 * time.Second

// WithBusyTimeout adds a busy timeout to dsn in the syntax of the active
// driver. In-memory databases and DSNs that already set one are unchanged.
func WithBusyTimeout(dsn string, timeout time.Duration) string {
	if timeout <= 0 || dsn == "" || strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + busyTimeoutParam(timeout.Milliseconds())
}
