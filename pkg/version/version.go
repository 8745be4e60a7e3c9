// Copyright 2024 Antrea Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"fmt"
	"runtime"

	"github.com/blang/semver"
)

// These variables are set at build-time with -ldflags -X.
var (
	// Must follow the rules in https://semver.org/, with a "v" prefix.
	Version = ""
	// Empty if git not available
	GitSHA = ""
	// Can be "dirty", "clean" or empty (if git not available)
	GitTreeState = ""
	// Can be "unreleased" or "released"; build information is only added
	// to unreleased versions.
	ReleaseStatus = "unreleased"
)

// GetVersion returns the parsed Version, or the zero version when Version
// is not set or invalid.
func GetVersion() semver.Version {
	if len(Version) < 2 {
		return semver.Version{}
	}
	v, _ := semver.Parse(Version[1:])
	return v
}

// GetFullVersion returns the version reported by the controller, in the
// logs and on --version. It looks like "v<major>.<minor>.<patch>" for
// released versions and "v<major>.<minor>.<patch>-<SHA>[.dirty]" otherwise.
func GetFullVersion() string {
	if Version == "" {
		return "UNKNOWN"
	}
	if ReleaseStatus == "released" {
		return Version
	}
	if GitSHA == "" {
		return fmt.Sprintf("%s-unknown", Version)
	}
	if GitTreeState == "dirty" {
		return fmt.Sprintf("%s-%s.dirty", Version, GitSHA)
	}
	return fmt.Sprintf("%s-%s", Version, GitSHA)
}

// GetFullVersionWithRuntimeInfo appends "<GOOS>/<GOARCH>" to GetFullVersion.
func GetFullVersionWithRuntimeInfo() string {
	return fmt.Sprintf("%s %s/%s", GetFullVersion(), runtime.GOOS, runtime.GOARCH)
}
