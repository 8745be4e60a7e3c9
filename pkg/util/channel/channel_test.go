// Copyright 2020 Antrea Authors
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

package channel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"k8s.io/apimachinery/pkg/util/sets"
)

type eventReceiver struct {
	mutex          sync.Mutex
	receivedEvents sets.Set[uint16]
}

func (r *eventReceiver) receive(vid uint16) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.receivedEvents.Insert(vid)
}

func (r *eventReceiver) received() sets.Set[uint16] {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.receivedEvents.Clone()
}

func TestSubscribe(t *testing.T) {
	c := NewSubscribableChannel[uint16]("vlans", 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	var receivers []*eventReceiver
	for i := 0; i < 10; i++ {
		r := &eventReceiver{receivedEvents: sets.New[uint16]()}
		c.Subscribe(r.receive)
		receivers = append(receivers, r)
	}
	// Unsubscribed receivers get nothing.
	removed := &eventReceiver{receivedEvents: sets.New[uint16]()}
	c.Unsubscribe(c.Subscribe(removed.receive))

	expected := sets.New[uint16]()
	for vid := uint16(1); vid <= 500; vid++ {
		c.Notify(vid)
		expected.Insert(vid)
	}

	assert.EventuallyWithT(t, func(t *assert.CollectT) {
		for _, r := range receivers {
			assert.True(t, r.received().Equal(expected))
		}
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, removed.received().Len())
}

func TestNotify(t *testing.T) {
	bufferSize := 10
	c := NewSubscribableChannel[string]("foo", bufferSize)
	// The channel is not running, so the buffer fills up.
	for i := 0; i < bufferSize; i++ {
		assert.True(t, c.Notify("event"))
	}

	res := make(chan bool, 1)
	go func() {
		res <- c.Notify("dropped")
	}()
	select {
	case ok := <-res:
		assert.False(t, ok)
	case <-time.After(notifyTimeout + time.Second):
		t.Errorf("Notify() didn't return in time")
	}
}
