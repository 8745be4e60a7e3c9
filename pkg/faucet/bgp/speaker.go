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

// Package bgp runs one BGP speaker per VLAN configured with bgp_as. A
// speaker advertises the routes of its VLAN and publishes the routes it
// receives to the datapaths carrying the VLAN.
package bgp

import (
	"context"
	"fmt"
	"net"
	"reflect"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/route"
	"antrea.io/faucet/pkg/util/channel"
)

// Update carries all the routes currently received over BGP for a VLAN.
type Update struct {
	VID    uint16
	Routes []route.Entry
}

// ClientFactory creates the BGP implementation of a speaker.
type ClientFactory func(global *GlobalConfig, vid uint16) Interface

type Speaker struct {
	vid    uint16
	conf   *config.BGPConfig
	client Interface
	// notifier publishes the Updates of the speaker.
	notifier channel.Notifier[Update]

	mutex sync.Mutex
	// advertised maps each advertised prefix to its route.
	advertised map[string]Route
}

func NewSpeaker(vlan *config.VLAN, newClient ClientFactory, notifier channel.Notifier[Update]) *Speaker {
	global := &GlobalConfig{
		ASN:        vlan.BGP.AS,
		RouterID:   vlan.BGP.RouterID,
		ListenPort: vlan.BGP.Port,
	}
	return &Speaker{
		vid:        vlan.VID,
		conf:       vlan.BGP,
		client:     newClient(global, vlan.VID),
		notifier:   notifier,
		advertised: make(map[string]Route),
	}
}

// SameConfig reports whether vlan can keep this speaker. A speaker whose
// AS, router id, port or neighbors changed must be restarted.
func (s *Speaker) SameConfig(vlan *config.VLAN) bool {
	return vlan.BGP != nil && reflect.DeepEqual(s.conf, vlan.BGP)
}

// Run starts the speaker, peers with the configured neighbors and
// publishes received routes until ctx is done. Sessions come up in the
// background.
func (s *Speaker) Run(ctx context.Context, vlan *config.VLAN) error {
	if err := s.client.Start(ctx); err != nil {
		return err
	}
	defer func() {
		// ctx is done already.
		if err := s.client.Stop(context.Background()); err != nil {
			klog.ErrorS(err, "Failed to stop BGP speaker", "vlan", s.vid)
		}
	}()
	for _, addr := range s.conf.NeighborAddresses {
		peer := PeerConfig{Address: addr.String(), ASN: s.conf.NeighborAS}
		if err := s.client.AddPeer(ctx, peer); err != nil {
			return err
		}
	}
	if err := s.Reconcile(ctx, vlan); err != nil {
		return err
	}
	klog.InfoS("Started BGP speaker", "vlan", s.vid, "as", s.conf.AS, "neighbors", len(s.conf.NeighborAddresses))
	return s.client.Watch(ctx, func(routes []Route) {
		s.notifier.Notify(Update{VID: s.vid, Routes: s.toEntries(routes)})
	})
}

// toEntries converts received routes, skipping the malformed ones. The
// validity of next hops is checked by every datapath against its own
// VLAN.
func (s *Speaker) toEntries(routes []Route) []route.Entry {
	entries := make([]route.Entry, 0, len(routes))
	for _, r := range routes {
		_, dst, err := net.ParseCIDR(r.Prefix)
		gw := net.ParseIP(r.NextHop)
		if err != nil || gw == nil {
			klog.ErrorS(err, "Ignoring malformed BGP route", "vlan", s.vid, "prefix", r.Prefix, "nextHop", r.NextHop)
			continue
		}
		entries = append(entries, route.Entry{VID: s.vid, Dst: dst, Gateway: gw, Source: route.BGP})
	}
	return entries
}

// Reconcile advertises the routes exported by vlan and withdraws the ones
// it no longer exports. A route whose next hop changed is advertised again.
func (s *Speaker) Reconcile(ctx context.Context, vlan *config.VLAN) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	desired := make(map[string]Route)
	for _, r := range route.Exported(vlan) {
		prefix := r.Dst.String()
		if _, ok := desired[prefix]; ok {
			continue
		}
		desired[prefix] = Route{Prefix: prefix, NextHop: r.Gateway.String()}
	}
	var withdrawn, added []Route
	for _, prefix := range sets.List(sets.KeySet(s.advertised)) {
		if _, ok := desired[prefix]; !ok {
			withdrawn = append(withdrawn, s.advertised[prefix])
		}
	}
	for _, prefix := range sets.List(sets.KeySet(desired)) {
		if r, ok := s.advertised[prefix]; !ok || r != desired[prefix] {
			added = append(added, desired[prefix])
		}
	}
	if len(withdrawn) > 0 {
		if err := s.client.WithdrawRoutes(ctx, withdrawn); err != nil {
			return fmt.Errorf("failed to withdraw routes of VLAN %d: %w", s.vid, err)
		}
		for _, r := range withdrawn {
			delete(s.advertised, r.Prefix)
		}
	}
	if len(added) > 0 {
		if err := s.client.AdvertiseRoutes(ctx, added); err != nil {
			return fmt.Errorf("failed to advertise routes of VLAN %d: %w", s.vid, err)
		}
		for _, r := range added {
			s.advertised[r.Prefix] = r
		}
	}
	return nil
}
