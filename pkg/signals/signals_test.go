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
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timeout = 5 * time.Second

func TestGenerateStopSignal(t *testing.T) {
	defer func() {
		notifyCh = make(chan os.Signal, 2)
	}()

	GenerateStopSignal()
	select {
	case s := <-notifyCh:
		assert.Equal(t, syscall.SIGTERM, s)
	case <-time.After(timeout):
		t.Fatalf("Timeout after %v waiting for signal", timeout)
	}
}

func TestRegisterSignalHandlers(t *testing.T) {
	stopCh := RegisterSignalHandlers()
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case _, ok := <-stopCh:
		assert.False(t, ok, "stopCh should be closed")
	case <-time.After(timeout):
		t.Fatalf("Timeout after %v waiting for stopCh", timeout)
	}
}

func TestRegisterReloadHandler(t *testing.T) {
	stopCh := make(chan struct{})
	defer close(stopCh)
	reloadCh := RegisterReloadHandler(stopCh)

	// Signals received while a reload is pending are coalesced.
	for i := 0; i < 2; i++ {
		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGHUP))
	}
	select {
	case <-reloadCh:
	case <-time.After(timeout):
		t.Fatalf("Timeout after %v waiting for reload", timeout)
	}
	select {
	case <-reloadCh:
	case <-time.After(100 * time.Millisecond):
	}
	assert.Len(t, reloadCh, 0)
}
