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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// Group runs goroutines and waits for all of them to return, up to a
// timeout.
type Group struct {
	wg      sync.WaitGroup
	running atomic.Int32
	clock   clock.Clock
}

func NewGroup() *Group {
	return newGroupWithClock(clock.RealClock{})
}

func newGroupWithClock(clock clock.Clock) *Group {
	return &Group{clock: clock}
}

// Go runs f in a new goroutine of the group.
func (g *Group) Go(f func()) {
	g.wg.Add(1)
	g.running.Add(1)
	go func() {
		defer func() {
			g.running.Add(-1)
			g.wg.Done()
		}()
		f()
	}()
}

// Running returns the number of goroutines which have not returned yet.
func (g *Group) Running() int {
	return int(g.running.Load())
}

// WaitWithTimeout waits for every goroutine started so far. Goroutines
// still running after timeout are left behind.
func (g *Group) WaitWithTimeout(timeout time.Duration) error {
	doneCh := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
		return nil
	case <-g.clock.After(timeout):
		return fmt.Errorf("%d goroutines still running after %v", g.Running(), timeout)
	}
}
