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

package signals

import (
	"os"
	"os/signal"
	"syscall"

	"k8s.io/klog/v2"
)

var (
	capturedSignals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	notifyCh        = make(chan os.Signal, 2)
)

// RegisterSignalHandlers registers a signal handler for capturedSignals and starts a goroutine that
// will block until a signal is received. The first signal received will cause the stopCh channel to
// be closed, giving the opportunity to the program to exist gracefully. If a second signal is
// received before then, we will force exit.
func RegisterSignalHandlers() <-chan struct{} {
	stopCh := make(chan struct{})

	go func() {
		<-notifyCh
		close(stopCh)
		<-notifyCh
		klog.Warning("Received second signal, will force exit")
		klog.Flush()
		os.Exit(1)
	}()

	signal.Notify(notifyCh, capturedSignals...)

	return stopCh
}

// GenerateStopSignal generates stop signal to stop the process.
func GenerateStopSignal() {
	notifyCh <- syscall.SIGTERM
}

// RegisterReloadHandler returns a channel receiving a value every time the
// process gets SIGHUP. Signals received while a value is pending are
// coalesced.
func RegisterReloadHandler(stopCh <-chan struct{}) <-chan struct{} {
	hupCh := make(chan os.Signal, 1)
	reloadCh := make(chan struct{}, 1)
	signal.Notify(hupCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hupCh)
		for {
			select {
			case <-stopCh:
				return
			case <-hupCh:
				klog.InfoS("Received SIGHUP")
				select {
				case reloadCh <- struct{}{}:
				default:
				}
			}
		}
	}()
	return reloadCh
}
