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
	"testing"

	"github.com/blang/semver"
	"github.com/stretchr/testify/assert"
)

func TestGetFullVersion(t *testing.T) {
	defer func(v, sha, state, status string) {
		Version, GitSHA, GitTreeState, ReleaseStatus = v, sha, state, status
	}(Version, GitSHA, GitTreeState, ReleaseStatus)

	tests := []struct {
		name          string
		version       string
		gitSHA        string
		gitTreeState  string
		releaseStatus string
		expected      string
	}{
		{name: "unset", expected: "UNKNOWN"},
		{name: "released", version: "v1.2.0", gitSHA: "abc", releaseStatus: "released", expected: "v1.2.0"},
		{name: "no git", version: "v1.2.0", releaseStatus: "unreleased", expected: "v1.2.0-unknown"},
		{name: "clean", version: "v1.2.0", gitSHA: "abc", gitTreeState: "clean", releaseStatus: "unreleased", expected: "v1.2.0-abc"},
		{name: "dirty", version: "v1.2.0", gitSHA: "abc", gitTreeState: "dirty", releaseStatus: "unreleased", expected: "v1.2.0-abc.dirty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, GitSHA, GitTreeState, ReleaseStatus = tt.version, tt.gitSHA, tt.gitTreeState, tt.releaseStatus
			assert.Equal(t, tt.expected, GetFullVersion())
		})
	}
}

func TestGetVersion(t *testing.T) {
	defer func(v string) { Version = v }(Version)

	Version = ""
	assert.Equal(t, semver.Version{}, GetVersion())
	Version = "v1.2.3"
	assert.Equal(t, semver.Version{Major: 1, Minor: 2, Patch: 3}, GetVersion())
}
