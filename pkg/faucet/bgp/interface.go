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

package bgp

import (
	"context"
)

type SessionState string

const (
	SessionIdle        SessionState = "Idle"
	SessionConnect     SessionState = "Connect"
	SessionActive      SessionState = "Active"
	SessionOpenSent    SessionState = "OpenSent"
	SessionOpenConfirm SessionState = "OpenConfirm"
	SessionEstablished SessionState = "Established"
	SessionUnknown     SessionState = "Unknown"
)

type RouteType string

const (
	RouteAdvertised RouteType = "Advertised"
	RouteReceived   RouteType = "Received"
)

type GlobalConfig struct {
	ASN        uint32
	RouterID   string
	ListenPort int32
}

type PeerConfig struct {
	Address string
	Port    int32
	ASN     uint32
}

type PeerStatus struct {
	Address      string
	Port         int32
	ASN          uint32
	SessionState SessionState
}

// Route is a prefix in CIDR form and the address traffic to it is sent to.
// Connected subnets are advertised with their VIP as next hop, static
// routes with their gateway.
type Route struct {
	Prefix  string
	NextHop string
}

// Interface defines the operations of a BGP speaker.
type Interface interface {
	// Start starts the speaker. Peer sessions are established in the
	// background.
	Start(ctx context.Context) error

	// Stop stops the speaker and closes all sessions.
	Stop(ctx context.Context) error

	// AddPeer adds a new BGP peer.
	AddPeer(ctx context.Context, peerConf PeerConfig) error

	// RemovePeer removes a BGP peer.
	RemovePeer(ctx context.Context, peerConf PeerConfig) error

	// GetPeers returns the status of all BGP peers.
	GetPeers(ctx context.Context) ([]PeerStatus, error)

	// AdvertiseRoutes advertises routes to all peers.
	AdvertiseRoutes(ctx context.Context, routes []Route) error

	// WithdrawRoutes withdraws routes from all peers.
	WithdrawRoutes(ctx context.Context, routes []Route) error

	// GetRoutes returns the routes received from or advertised to a peer.
	GetRoutes(ctx context.Context, routeType RouteType, peerAddress string) ([]Route, error)

	// Watch calls handler with the best received routes every time they
	// change, until ctx is done. The handler must not block.
	Watch(ctx context.Context, handler func(routes []Route)) error
}
