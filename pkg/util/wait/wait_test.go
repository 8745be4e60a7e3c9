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

package wait

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

func TestGroupWait(t *testing.T) {
	g := NewGroup()
	results := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		g.Go(func() { results <- i })
	}
	require.NoError(t, g.WaitWithTimeout(5*time.Second))
	assert.Equal(t, 0, g.Running())
	assert.Len(t, results, 3)
}

func TestGroupWaitTimeout(t *testing.T) {
	clock := clocktesting.NewFakeClock(time.Now())
	g := newGroupWithClock(clock)
	blockCh := make(chan struct{})
	defer close(blockCh)
	g.Go(func() { <-blockCh })
	g.Go(func() {})

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.WaitWithTimeout(time.Second)
	}()
	assert.Eventually(t, clock.HasWaiters, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return g.Running() == 1 }, 2*time.Second, 10*time.Millisecond)
	clock.Step(time.Second)
	select {
	case err := <-errCh:
		assert.EqualError(t, err, "1 goroutines still running after 1s")
	case <-time.After(2 * time.Second):
		t.Fatal("WaitWithTimeout did not return after the timeout")
	}
}
