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

package gobgp

import (
	"sort"

	gobgplog "github.com/osrg/gobgp/v3/pkg/log"
	"k8s.io/klog/v2"
)

// klogLogger implements the gobgp log.Logger interface on top of klog.
// Every message carries the key-values of the speaker it belongs to.
type klogLogger struct {
	keysAndValues []interface{}
}

func newKlogLogger(keysAndValues ...interface{}) *klogLogger {
	return &klogLogger{keysAndValues: keysAndValues}
}

func (l *klogLogger) Panic(msg string, fields gobgplog.Fields) {
	klog.ErrorS(nil, msg, l.args(fields)...)
}

func (l *klogLogger) Fatal(msg string, fields gobgplog.Fields) {
	klog.ErrorS(nil, msg, l.args(fields)...)
}

func (l *klogLogger) Error(msg string, fields gobgplog.Fields) {
	klog.ErrorS(nil, msg, l.args(fields)...)
}

func (l *klogLogger) Warn(msg string, fields gobgplog.Fields) {
	klog.InfoS(msg, l.args(fields)...)
}

func (l *klogLogger) Info(msg string, fields gobgplog.Fields) {
	klog.V(2).InfoS(msg, l.args(fields)...)
}

func (l *klogLogger) Debug(msg string, fields gobgplog.Fields) {
	klog.V(4).InfoS(msg, l.args(fields)...)
}

// Verbosity is controlled with klog's -v.
func (l *klogLogger) SetLevel(level gobgplog.LogLevel) {
}

func (l *klogLogger) GetLevel() gobgplog.LogLevel {
	if klog.V(4).Enabled() {
		return gobgplog.DebugLevel
	}
	return gobgplog.InfoLevel
}

// args returns the speaker's key-values followed by fields sorted by key.
func (l *klogLogger) args(fields gobgplog.Fields) []interface{} {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(l.keysAndValues)+len(fields)*2)
	args = append(args, l.keysAndValues...)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
