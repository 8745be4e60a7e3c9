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
	"slices"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

const (
	// notifyTimeout is the timeout for failing to publish an event to the channel.
	notifyTimeout = time.Second
)

type SubscriberID uint64

// Subscriber registers handlers for the events of type T.
type Subscriber[T any] interface {
	// Subscribe registers a handler called for every event sent to the
	// channel. Handlers run on the channel's goroutine and must not block:
	// a datapath handler only enqueues the event into its own loop.
	Subscribe(h func(T)) SubscriberID

	Unsubscribe(id SubscriberID)
}

// Notifier publishes events of type T.
type Notifier[T any] interface {
	Notify(e T) bool
}

type subscriber[T any] struct {
	id      SubscriberID
	handler func(T)
}

// SubscribableChannel dispatches every event to all subscribers, unlike a
// Go channel which hands each event to a single consumer.
type SubscribableChannel[T any] struct {
	// name differentiates channels in logs.
	name    string
	eventCh chan T

	subscribersMutex sync.Mutex
	subscribers      []subscriber[T]
	nextSubscriberID SubscriberID
}

func NewSubscribableChannel[T any](name string, bufferSize int) *SubscribableChannel[T] {
	return &SubscribableChannel[T]{
		name:    name,
		eventCh: make(chan T, bufferSize),
	}
}

func (n *SubscribableChannel[T]) Subscribe(h func(T)) SubscriberID {
	n.subscribersMutex.Lock()
	defer n.subscribersMutex.Unlock()

	s := subscriber[T]{
		id:      n.nextSubscriberID,
		handler: h,
	}
	n.subscribers = append(n.subscribers, s)
	n.nextSubscriberID++
	return s.id
}

func (n *SubscribableChannel[T]) Unsubscribe(id SubscriberID) {
	n.subscribersMutex.Lock()
	defer n.subscribersMutex.Unlock()
	n.subscribers = slices.DeleteFunc(n.subscribers, func(s subscriber[T]) bool {
		return s.id == id
	})
}

// Notify buffers e for dispatching. It gives up, and returns false, when
// the buffer stays full for notifyTimeout.
func (n *SubscribableChannel[T]) Notify(e T) bool {
	timer := time.NewTimer(notifyTimeout)
	defer timer.Stop()
	select {
	case n.eventCh <- e:
		return true
	case <-timer.C:
		klog.ErrorS(nil, "Failed to send event to channel, will discard it", "name", n.name, "event", e)
		return false
	}
}

func (n *SubscribableChannel[T]) Run(ctx context.Context) {
	klog.InfoS("Starting SubscribableChannel", "name", n.name)
	for {
		select {
		case <-ctx.Done():
			klog.InfoS("Stopping SubscribableChannel", "name", n.name)
			return
		case e := <-n.eventCh:
			n.subscribersMutex.Lock()
			subscribers := slices.Clone(n.subscribers)
			n.subscribersMutex.Unlock()
			for _, s := range subscribers {
				s.handler(e)
			}
		}
	}
}
