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

// Package log binds the klog flags to the command line of the controller,
// enforces the log file number limit and serves the log level.
package log

import (
	"flag"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

const (
	flushFrequencyFlag    = "log-flush-frequency"
	defaultFlushFrequency = 5 * time.Second
)

var (
	// klogFlags holds the klog flags, so that the log level can be read
	// and changed after the command line was parsed.
	klogFlags = flag.NewFlagSet("klog", flag.ContinueOnError)

	flushFrequency = defaultFlushFrequency
)

func init() {
	klog.InitFlags(klogFlags)
}

// AddFlags adds the klog flags and the log file flags to fs.
func AddFlags(fs *pflag.FlagSet) {
	klogFlags.VisitAll(func(f *flag.Flag) {
		fs.AddFlag(pflag.PFlagFromGoFlag(f))
	})
	fs.Uint16Var(&maxNumArg, maxNumFlag, maxNumArg, "Maximum number of log files per severity level to be kept. Value 0 means unlimited.")
	fs.DurationVar(&flushFrequency, flushFrequencyFlag, flushFrequency, "Maximum time between log flushes")
}

// InitLogs must be called once fs has been parsed.
func InitLogs(fs *pflag.FlagSet) {
	klog.StartFlushDaemon(flushFrequency)
	klog.EnableContextualLogging(false)
	initLogFileLimits(fs)
	klog.V(2).InfoS("Initialized logging", "level", GetCurrentLogLevel(), "flushFrequency", flushFrequency)
}

func FlushLogs() {
	klog.Flush()
}
