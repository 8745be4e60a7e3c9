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

package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faucet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vlans: {}\n"), 0644))

	clock := clocktesting.NewFakeClock(time.Now())
	w, err := newConfigWatcher(clock, time.Second)
	require.NoError(t, err)
	w.setFiles([]string{path})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.run(ctx)

	// Files of the same directory which are not part of the configuration
	// are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0644))
	assert.Never(t, clock.HasWaiters, 200*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("vlans: {100: {}}\n"), 0644))
	}
	assert.Eventually(t, clock.HasWaiters, 2*time.Second, 10*time.Millisecond)
	select {
	case <-w.changes():
		t.Fatal("Change notified before the debounce interval")
	default:
	}

	clock.Step(time.Second)
	select {
	case <-w.changes():
	case <-time.After(2 * time.Second):
		t.Fatal("Change was not notified")
	}
	select {
	case <-w.changes():
		t.Fatal("Burst of writes was notified more than once")
	case <-time.After(100 * time.Millisecond):
	}
}
