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

// Package sqlitedriver registers a SQLite database/sql driver under the name
// "sqlite3". With CGO it is go-sqlcipher; without CGO it is the pure-Go
// modernc.org/sqlite driver. The two disagree on DSN parameters, so callers
// build DSNs through this package.
//
// Import this package for its side effects, or use WithBusyTimeout:
//
//	import _ "github.com/teradata-labs/sibridge/internal/sqlitedriver"
package sqlitedriver
