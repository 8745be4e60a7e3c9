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

package log

import (
	"fmt"
	"net/http"

	"k8s.io/klog/v2"
)

const logVerbosityFlag = "v"

// GetCurrentLogLevel returns the current log verbosity level.
func GetCurrentLogLevel() string {
	return klogFlags.Lookup(logVerbosityFlag).Value.String()
}

// SetLogLevel sets the log verbosity level. level must be a string
// representation of a decimal integer.
func SetLogLevel(level string) error {
	oldLevel := GetCurrentLogLevel()
	if oldLevel == level {
		return nil
	}
	if err := klogFlags.Set(logVerbosityFlag, level); err != nil {
		return err
	}
	klog.InfoS("Changed log level", "from", oldLevel, "to", level)
	return nil
}

// HandleFunc returns the handler of the log level endpoint: GET returns the
// current level, PUT with a level query parameter changes it.
func HandleFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprintln(w, GetCurrentLogLevel())
		case http.MethodPut:
			if err := SetLogLevel(r.URL.Query().Get("level")); err != nil {
				http.Error(w, fmt.Sprintf("invalid log level: %v", err), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}
