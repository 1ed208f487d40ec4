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
package version

// Version and Commit are stamped at build time:
//
//	go build -ldflags="-X github.com/teradata-labs/sibridge/internal/version.Version=v0.2.0 \
//	  -X github.com/teradata-labs/sibridge/internal/version.Commit=$(git rev-parse --short HEAD)"
var (
	Version = "0.1.0"
	Commit  = ""
)

// Get returns the release version, or "dev" for unstamped builds.
func Get() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

// String is the version shown by --version and /healthz, e.g. "0.1.0 (3f2a9c1)".
func String() string {
	if Commit == "" {
		return Get()
	}
	return Get() + " (" + Commit + ")"
}
