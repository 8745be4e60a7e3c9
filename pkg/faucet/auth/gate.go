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

// Package auth tracks the authentication state of access ports. An access
// port only reaches the captive portal until an authentication result
// reports a logon for it; the normal acl_in of the port applies until the
// next logoff or until the session times out.
package auth

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/config"
)

type EventType string

const (
	Logon  EventType = "logon"
	Logoff EventType = "logoff"
)

var (
	ErrUnknownDP     = errors.New("unknown datapath")
	ErrNotAccessPort = errors.New("port is not an access port")
)

// Event is an authentication result for a host on an access port.
type Event struct {
	Port uint32
	MAC  net.HardwareAddr
	Type EventType
}

type session struct {
	mac     net.HardwareAddr
	expires time.Time
}

// Gate holds the sessions of the access ports of one datapath. It is owned
// by the datapath's event loop.
type Gate struct {
	dp       *config.DP
	clock    clock.Clock
	sessions map[uint32]*session
}

func NewGate(dp *config.DP, clock clock.Clock) *Gate {
	return &Gate{dp: dp, clock: clock, sessions: make(map[uint32]*session)}
}

// Validate checks that event can be handled by the gate.
func (g *Gate) Validate(event Event) error {
	port, ok := g.dp.Ports[event.Port]
	if !ok || port.AuthMode != config.AuthModeAccess {
		return fmt.Errorf("port %d of DP %s: %w", event.Port, g.dp.Name, ErrNotAccessPort)
	}
	switch event.Type {
	case Logon, Logoff:
	default:
		return fmt.Errorf("unknown event %q", event.Type)
	}
	return nil
}

// Handle applies an event and reports whether the set of authenticated
// ports changed. A logon for an authenticated port renews its session.
func (g *Gate) Handle(event Event) (bool, error) {
	if err := g.Validate(event); err != nil {
		return false, err
	}
	s, authenticated := g.sessions[event.Port]
	switch event.Type {
	case Logon:
		g.sessions[event.Port] = &session{mac: event.MAC, expires: g.clock.Now().Add(g.dp.Auth.SessionTimeout)}
		klog.InfoS("Port authenticated", "dp", g.dp.Name, "port", event.Port, "mac", event.MAC)
		return !authenticated, nil
	default:
		if !authenticated {
			return false, nil
		}
		if event.MAC != nil && s.mac != nil && event.MAC.String() != s.mac.String() {
			return false, fmt.Errorf("logoff of %s does not match the session of %s on port %d", event.MAC, s.mac, event.Port)
		}
		delete(g.sessions, event.Port)
		klog.InfoS("Port logged off", "dp", g.dp.Name, "port", event.Port, "mac", event.MAC)
		return true, nil
	}
}

// Expire ends the sessions that timed out and returns their ports in
// ascending order.
func (g *Gate) Expire() []uint32 {
	now := g.clock.Now()
	var expired []uint32
	for port, s := range g.sessions {
		if !now.Before(s.expires) {
			delete(g.sessions, port)
			expired = append(expired, port)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, port := range expired {
		klog.InfoS("Authentication session timed out", "dp", g.dp.Name, "port", port)
	}
	return expired
}

// NextExpiry returns the earliest session deadline.
func (g *Gate) NextExpiry() (time.Time, bool) {
	var next time.Time
	for _, s := range g.sessions {
		if next.IsZero() || s.expires.Before(next) {
			next = s.expires
		}
	}
	return next, !next.IsZero()
}

// SetDP replaces the configuration and ends the sessions of ports that are
// no longer access ports. Their numbers are returned.
func (g *Gate) SetDP(dp *config.DP) []uint32 {
	g.dp = dp
	var ended []uint32
	for port := range g.sessions {
		if p, ok := dp.Ports[port]; !ok || p.AuthMode != config.AuthModeAccess {
			delete(g.sessions, port)
			ended = append(ended, port)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i] < ended[j] })
	return ended
}

// Authenticated returns the ports with an active session.
func (g *Gate) Authenticated() sets.Set[uint32] {
	ports := sets.New[uint32]()
	for port := range g.sessions {
		ports.Insert(port)
	}
	return ports
}
