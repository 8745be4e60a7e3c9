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

package route

import (
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gammazero/deque"
	"k8s.io/utils/clock"
)

type NeighborState int

const (
	// Resolving neighbors have requests outstanding and no known MAC.
	Resolving NeighborState = iota
	// Resolved neighbors have a MAC. A resolved neighbor may be refreshed
	// in the background once it ages out.
	Resolved
	// Unreachable neighbors did not answer. Routes through them drop.
	Unreachable
)

func (s NeighborState) String() string {
	switch s {
	case Resolving:
		return "Resolving"
	case Resolved:
		return "Resolved"
	case Unreachable:
		return "Unreachable"
	}
	return fmt.Sprintf("NeighborState(%d)", int(s))
}

const (
	initialResolveInterval = time.Second
	// maxQueuedPackets bounds the packets held for one neighbor; the oldest
	// ones are dropped first.
	maxQueuedPackets = 16
)

// Neighbor is an entry of the neighbor cache of a VLAN.
type Neighbor struct {
	VID   uint16
	IP    net.IP
	MAC   net.HardwareAddr
	State NeighborState
	// Attempts is the number of requests sent since the neighbor last
	// answered.
	Attempts int
	// UpdatedAt is when the neighbor last answered, or became unreachable.
	UpdatedAt time.Time

	// forRoute is set when the resolution was started for a route gateway
	// rather than for a packet.
	forRoute    bool
	refreshing  bool
	nextAttempt time.Time
	backoff     *backoff.ExponentialBackOff
	// queue holds packets ([]byte) waiting for the neighbor's MAC.
	queue *deque.Deque
}

func neighborKey(vid uint16, ip net.IP) string {
	return fmt.Sprintf("%d/%s", vid, ip)
}

func (n *Neighbor) key() string {
	return neighborKey(n.VID, n.IP)
}

// pending reports whether requests are being sent for n.
func (n *Neighbor) pending() bool {
	return n.State == Resolving || n.refreshing
}

// startResolution arms the backoff of n so that the next tick sends its
// first request. Intervals double from one second up to maxInterval; the
// resolution fails once retrying would run past three times maxInterval.
func (n *Neighbor) startResolution(clock clock.Clock, maxInterval time.Duration) {
	initial := initialResolveInterval
	if maxInterval < initial {
		initial = maxInterval
	}
	n.backoff = &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxInterval,
		MaxElapsedTime:      3 * maxInterval,
		Stop:                backoff.Stop,
		Clock:               clock,
	}
	n.backoff.Reset()
	n.Attempts = 0
	n.nextAttempt = clock.Now()
}

// stopResolution clears the backoff state.
func (n *Neighbor) stopResolution() {
	n.backoff = nil
	n.refreshing = false
	n.Attempts = 0
}

// enqueue holds data until n is resolved.
func (n *Neighbor) enqueue(data []byte) {
	if n.queue == nil {
		n.queue = deque.New()
	}
	for n.queue.Len() >= maxQueuedPackets {
		n.queue.PopFront()
	}
	n.queue.PushBack(data)
}

// drain returns and forgets the queued packets.
func (n *Neighbor) drain() [][]byte {
	if n.queue == nil {
		return nil
	}
	packets := make([][]byte, 0, n.queue.Len())
	for n.queue.Len() > 0 {
		packets = append(packets, n.queue.PopFront().([]byte))
	}
	n.queue = nil
	return packets
}

func (n *Neighbor) queued() int {
	if n.queue == nil {
		return 0
	}
	return n.queue.Len()
}
