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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
)

const (
	logToStdErrFlag = "logtostderr"
	logDirFlag      = "log_dir"
	logFileFlag     = "log_file"
	maxSizeFlag     = "log_file_max_size"
	maxNumFlag      = "log_file_max_num"

	// Check log file number every 10 mins.
	logFileCheckInterval = time.Minute * 10
	// Allowed maximum value for the maximum file size limit.
	maxMaxSizeMB = 1024 * 100
)

var (
	maxNumArg     = uint16(0)
	logFileMaxNum = uint16(0)
	logDir        = ""

	executableName = filepath.Base(os.Args[0])
)

// initLogFileLimits initializes log file maximum size and maximum number
// limits based on the command line flags.
func initLogFileLimits(fs *pflag.FlagSet) {
	logToStdErr, err := fs.GetBool(logToStdErrFlag)
	if err != nil {
		// Should not happen. Return for safety.
		return
	}
	if logToStdErr {
		// Logging to files is not enabled.
		return
	}
	logFile, err := fs.GetString(logFileFlag)
	if err != nil || logFile != "" {
		// Log to a single file. klog will take care of the max size limit.
		return
	}
	maxSize, err := fs.GetUint64(maxSizeFlag)
	if err != nil {
		return
	}
	if logDir, err = fs.GetString(logDirFlag); err != nil {
		return
	}

	if maxSize > maxMaxSizeMB {
		klog.ErrorS(nil, "The specified log file max size is too big, ignored", "maxSizeMB", maxSize, "limitMB", maxMaxSizeMB)
	} else {
		maxSize = maxSize * 1024 * 1024
		// klog does not respect the max file size specified by
		// --log_file_max_size when --log_file is not used.
		if klog.MaxSize != maxSize {
			klog.MaxSize = maxSize
			klog.InfoS("Set log file max size", "bytes", maxSize)
		}
	}

	if maxNumArg > 0 {
		logFileMaxNum = maxNumArg
		if logDir == "" {
			// Log to the tmp dir.
			logDir = os.TempDir()
			klogFlags.Set(logDirFlag, logDir)
		}
	}
}

// StartLogFileNumberMonitor starts monitoring the log files to make sure the
// number of log files does not exceed the maximum limit, when the log file
// number limit is configured.
func StartLogFileNumberMonitor(stopCh <-chan struct{}) {
	if logFileMaxNum == 0 {
		return
	}
	go func() {
		klog.InfoS("Starting log file monitoring", "maxNum", logFileMaxNum)
		wait.Until(checkLogFiles, logFileCheckInterval, stopCh)
	}()
}

func checkLogFiles() {
	allFiles, err := os.ReadDir(logDir)
	if err != nil {
		klog.ErrorS(err, "Failed to read log directory", "dir", logDir)
		return
	}
	maxNum := int(logFileMaxNum)
	if len(allFiles) <= maxNum {
		return
	}

	filesBySeverity := map[string][]os.FileInfo{}
	for _, entry := range allFiles {
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), executableName) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		for _, severity := range []string{"INFO", "WARNING", "ERROR"} {
			if strings.Contains(entry.Name(), ".log."+severity+".") {
				filesBySeverity[severity] = append(filesBySeverity[severity], info)
				break
			}
		}
	}

	for _, files := range filesBySeverity {
		if len(files) <= maxNum {
			continue
		}
		sort.Slice(files, func(i, j int) bool {
			return files[i].ModTime().After(files[j].ModTime())
		})
		// Remove the oldest files.
		for _, file := range files[maxNum:] {
			if err := os.Remove(filepath.Join(logDir, file.Name())); err != nil {
				klog.ErrorS(err, "Failed to delete log file", "file", file.Name())
			} else {
				klog.InfoS("Deleted log file", "file", file.Name())
			}
		}
	}
}
