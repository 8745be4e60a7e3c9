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

package config

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	UnknownReference      ErrorKind = "UnknownReference"
	DuplicatePort         ErrorKind = "DuplicatePort"
	InvalidVLANMembership ErrorKind = "InvalidVLANMembership"
	MissingRequiredField  ErrorKind = "MissingRequiredField"
	InvalidValue          ErrorKind = "InvalidValue"
	InvalidRoute          ErrorKind = "InvalidRoute"
	IncludeError          ErrorKind = "IncludeError"
	ParseError            ErrorKind = "ParseError"
)

// ConfigError is returned for any malformed or inconsistent configuration.
// A configuration producing a ConfigError is never applied.
type ConfigError struct {
	Kind ErrorKind
	// Path locates the offending element, e.g. "dps.sw1.interfaces.3".
	Path string
	Msg  string
	Err  error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg != "" {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		} else {
			msg = e.Err.Error()
		}
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Path, msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, path string, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a ConfigError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Kind == kind
}
