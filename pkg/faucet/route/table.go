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

// Package route keeps the routing table and the neighbor caches of one
// datapath, and drives ARP and neighbor discovery resolution of next hops.
package route

import (
	"bytes"
	"fmt"
	"net"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/openflow"
	utilip "antrea.io/faucet/pkg/util/ip"
)

type Source int

const (
	Static Source = iota
	BGP
)

func (s Source) String() string {
	if s == BGP {
		return "bgp"
	}
	return "static"
}

// Entry is a route of a VLAN.
type Entry struct {
	VID     uint16
	Dst     *net.IPNet
	Gateway net.IP
	Source  Source
}

func routeKey(vid uint16, dst *net.IPNet) string {
	return fmt.Sprintf("%d/%s", vid, dst)
}

// Request asks for an ARP request or a neighbor solicitation for IP to be
// sent on VLAN VID from VIP.
type Request struct {
	VID uint16
	IP  net.IP
	VIP *net.IPNet
}

// TickResult is what a Tick asks the datapath to do.
type TickResult struct {
	Requests []Request
	Failures []*ResolutionError
	// Expired neighbors were removed from the cache.
	Expired []*Neighbor
	// Changed tells whether the compiled state changed.
	Changed bool
}

// Table holds the routes and the neighbors of one datapath. It is not safe
// for concurrent use.
type Table struct {
	dp    *config.DP
	clock clock.Clock

	neighbors map[string]*Neighbor
	routes    map[string]*Entry
}

func NewTable(dp *config.DP, clock clock.Clock) *Table {
	t := &Table{
		clock:     clock,
		neighbors: make(map[string]*Neighbor),
		routes:    make(map[string]*Entry),
	}
	t.SetDP(dp)
	return t
}

// SetDP replaces the configuration. Static routes are reloaded, routes and
// neighbors of VLANs that disappeared are dropped, and resolutions that no
// route or packet needs anymore are cancelled and returned.
func (t *Table) SetDP(dp *config.DP) []*Neighbor {
	t.dp = dp
	for key, r := range t.routes {
		vlan, ok := dp.VLANs[r.VID]
		switch {
		case r.Source == Static, !ok:
			delete(t.routes, key)
		case config.ValidateNextHop(vlan, r.Gateway) != nil:
			klog.InfoS("Dropping BGP route whose next hop is no longer connected", "dpid", dp.DPID, "vlan", r.VID, "dst", r.Dst, "gateway", r.Gateway)
			delete(t.routes, key)
		}
	}
	for _, vid := range dp.SortedVIDs() {
		for _, r := range dp.VLANs[vid].Routes {
			t.routes[routeKey(vid, r.Dst)] = &Entry{VID: vid, Dst: r.Dst, Gateway: r.Gateway, Source: Static}
		}
	}

	var cancelled []*Neighbor
	for _, n := range t.sortedNeighbors() {
		vlan, ok := dp.VLANs[n.VID]
		if !ok || vlan.ConnectedVIP(n.IP) == nil {
			t.removeNeighbor(n)
			if n.pending() {
				cancelled = append(cancelled, n)
			}
		}
	}
	return append(cancelled, t.cancelUnused()...)
}

// cancelUnused stops the resolutions started for gateways that no route
// uses anymore.
func (t *Table) cancelUnused() []*Neighbor {
	var cancelled []*Neighbor
	for _, n := range t.sortedNeighbors() {
		if n.State == Resolving && n.forRoute && n.queued() == 0 && !t.isGateway(n) {
			klog.V(2).InfoS("Cancelling neighbor resolution", "dpid", t.dp.DPID, "vlan", n.VID, "ip", n.IP)
			t.removeNeighbor(n)
			cancelled = append(cancelled, n)
		}
	}
	return cancelled
}

func (t *Table) removeNeighbor(n *Neighbor) {
	n.stopResolution()
	n.drain()
	delete(t.neighbors, n.key())
}

func (t *Table) isGateway(n *Neighbor) bool {
	for _, r := range t.routes {
		if r.VID == n.VID && r.Gateway.Equal(n.IP) {
			return true
		}
	}
	return false
}

func (t *Table) sortedNeighbors() []*Neighbor {
	neighbors := make([]*Neighbor, 0, len(t.neighbors))
	for _, n := range t.neighbors {
		neighbors = append(neighbors, n)
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].VID != neighbors[j].VID {
			return neighbors[i].VID < neighbors[j].VID
		}
		return bytes.Compare(neighbors[i].IP.To16(), neighbors[j].IP.To16()) < 0
	})
	return neighbors
}

func (t *Table) sortedRoutes() []*Entry {
	routes := make([]*Entry, 0, len(t.routes))
	for _, r := range t.routes {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].VID != routes[j].VID {
			return routes[i].VID < routes[j].VID
		}
		return routes[i].Dst.String() < routes[j].Dst.String()
	})
	return routes
}

// connectedVLAN returns the VLAN whose connected subnet holds ip.
func (t *Table) connectedVLAN(vid uint16, ip net.IP) (*config.VLAN, error) {
	vlan, ok := t.dp.VLANs[vid]
	if !ok {
		return nil, fmt.Errorf("VLAN %d does not exist", vid)
	}
	if vlan.ConnectedVIP(ip) == nil {
		return nil, fmt.Errorf("%s is not a connected network of VLAN %d", ip, vid)
	}
	return vlan, nil
}

func (t *Table) neighbor(vid uint16, ip net.IP, forRoute bool) (*Neighbor, error) {
	ip = utilip.Normalize(ip)
	if _, err := t.connectedVLAN(vid, ip); err != nil {
		return nil, err
	}
	key := neighborKey(vid, ip)
	n, ok := t.neighbors[key]
	if !ok {
		n = &Neighbor{VID: vid, IP: ip, State: Resolving, forRoute: forRoute}
		n.startResolution(t.clock, t.dp.MaxResolveBackoffTime)
		t.neighbors[key] = n
		klog.V(2).InfoS("Resolving neighbor", "dpid", t.dp.DPID, "vlan", vid, "ip", ip)
	}
	return n, nil
}

// Resolve starts the resolution of ip on vid unless it is known already.
// The first request is returned by the next Tick.
func (t *Table) Resolve(vid uint16, ip net.IP) error {
	_, err := t.neighbor(vid, ip, false)
	return err
}

// Queue holds data, a packet for ip on vid, until ip is resolved. The MAC
// is returned instead when ip is resolved already. A ResolutionError is
// returned, and data dropped, when ip is unreachable.
func (t *Table) Queue(vid uint16, ip net.IP, data []byte) (net.HardwareAddr, error) {
	n, err := t.neighbor(vid, ip, false)
	if err != nil {
		return nil, err
	}
	switch n.State {
	case Resolved:
		return n.MAC, nil
	case Unreachable:
		return nil, &ResolutionError{VID: vid, IP: n.IP, Attempts: n.Attempts}
	}
	n.enqueue(data)
	return nil, nil
}

// Learn records that ip on vid is at mac, from an ARP or neighbor
// discovery packet. It returns whether the neighbor changed, and the
// packets that were waiting for it.
func (t *Table) Learn(vid uint16, ip net.IP, mac net.HardwareAddr) (bool, [][]byte) {
	ip = utilip.Normalize(ip)
	vlan, err := t.connectedVLAN(vid, ip)
	if err != nil || vlan.IsVIP(ip) {
		return false, nil
	}
	key := neighborKey(vid, ip)
	n, ok := t.neighbors[key]
	if !ok {
		n = &Neighbor{VID: vid, IP: ip}
		t.neighbors[key] = n
	}
	changed := n.State != Resolved || !bytes.Equal(n.MAC, mac)
	n.State = Resolved
	n.MAC = append(net.HardwareAddr(nil), mac...)
	n.UpdatedAt = t.clock.Now()
	n.stopResolution()
	if changed {
		klog.V(2).InfoS("Neighbor resolved", "dpid", t.dp.DPID, "vlan", vid, "ip", ip, "mac", mac)
	}
	return changed, n.drain()
}

// Neighbor returns the cache entry of ip on vid.
func (t *Table) Neighbor(vid uint16, ip net.IP) (*Neighbor, bool) {
	n, ok := t.neighbors[neighborKey(vid, utilip.Normalize(ip))]
	return n, ok
}

// Tick ages neighbors out, starts the proactive resolution of gateways and
// returns the requests that are due.
func (t *Table) Tick() *TickResult {
	now := t.clock.Now()
	result := &TickResult{}
	for _, n := range t.sortedNeighbors() {
		if n.pending() || now.Before(n.UpdatedAt.Add(t.dp.ARPNeighborTimeout)) {
			continue
		}
		if n.State == Resolved && t.isGateway(n) {
			// Keep forwarding with the old MAC while it is confirmed.
			n.startResolution(t.clock, t.dp.MaxResolveBackoffTime)
			n.refreshing = true
			continue
		}
		t.removeNeighbor(n)
		result.Expired = append(result.Expired, n)
		result.Changed = true
	}

	if t.dp.ProactiveLearn {
		for _, r := range t.sortedRoutes() {
			if _, ok := t.neighbors[neighborKey(r.VID, r.Gateway)]; !ok {
				if _, err := t.neighbor(r.VID, r.Gateway, true); err != nil {
					klog.ErrorS(err, "Cannot resolve route gateway", "dpid", t.dp.DPID, "vlan", r.VID, "gateway", r.Gateway)
				}
			}
		}
	}

	for _, n := range t.sortedNeighbors() {
		if !n.pending() || now.Before(n.nextAttempt) {
			continue
		}
		wait := n.backoff.NextBackOff()
		if wait == backoff.Stop {
			err := &ResolutionError{VID: n.VID, IP: n.IP, Attempts: n.Attempts}
			klog.ErrorS(err, "Neighbor is unreachable", "dpid", t.dp.DPID)
			n.stopResolution()
			n.drain()
			n.State = Unreachable
			n.MAC = nil
			n.UpdatedAt = now
			result.Failures = append(result.Failures, err)
			result.Changed = true
			continue
		}
		n.Attempts++
		n.nextAttempt = now.Add(wait)
		vlan := t.dp.VLANs[n.VID]
		result.Requests = append(result.Requests, Request{VID: n.VID, IP: n.IP, VIP: vlan.ConnectedVIP(n.IP)})
	}
	return result
}

// NextHop returns the VLAN and the address to resolve to reach dst from
// vid: dst itself when it is on a connected subnet of vid or of a VLAN
// routed with it, else the gateway of the longest matching route.
func (t *Table) NextHop(vid uint16, dst net.IP) (uint16, net.IP, error) {
	dst = utilip.Normalize(dst)
	vlan, ok := t.dp.VLANs[vid]
	if !ok {
		return 0, nil, fmt.Errorf("VLAN %d does not exist", vid)
	}
	candidates := append([]*config.VLAN{vlan}, t.dp.RoutedVLANs(vid)...)
	for _, v := range candidates {
		if v.ConnectedVIP(dst) != nil {
			return v.VID, dst, nil
		}
	}
	var best *Entry
	bestLen := -1
	for _, v := range candidates {
		for _, r := range t.sortedRoutes() {
			if r.VID != v.VID || !r.Dst.Contains(dst) {
				continue
			}
			if ones, _ := r.Dst.Mask.Size(); ones > bestLen {
				best, bestLen = r, ones
			}
		}
	}
	if best == nil {
		return 0, nil, ErrNoRoute
	}
	return best.VID, best.Gateway, nil
}

// SetBGPRoutes replaces the routes learned over BGP on vid. Routes whose
// next hop is not connected to the VLAN, or whose prefix has a static
// route, are rejected and returned.
func (t *Table) SetBGPRoutes(vid uint16, routes []Entry) []Entry {
	for key, r := range t.routes {
		if r.VID == vid && r.Source == BGP {
			delete(t.routes, key)
		}
	}
	var rejected []Entry
	vlan, ok := t.dp.VLANs[vid]
	for _, r := range routes {
		r.VID, r.Source = vid, BGP
		r.Gateway = utilip.Normalize(r.Gateway)
		if !ok {
			rejected = append(rejected, r)
			continue
		}
		if err := config.ValidateNextHop(vlan, r.Gateway); err != nil {
			klog.ErrorS(err, "Rejecting BGP route", "dpid", t.dp.DPID, "vlan", vid, "dst", r.Dst)
			rejected = append(rejected, r)
			continue
		}
		key := routeKey(vid, r.Dst)
		if existing, ok := t.routes[key]; ok && existing.Source == Static {
			rejected = append(rejected, r)
			continue
		}
		entry := r
		t.routes[key] = &entry
	}
	t.cancelUnused()
	return rejected
}

// ExportRoutes returns the routes advertised for vid.
func (t *Table) ExportRoutes(vid uint16) []Entry {
	vlan, ok := t.dp.VLANs[vid]
	if !ok {
		return nil
	}
	return Exported(vlan)
}

// Exported returns the routes advertised for vlan: every connected subnet
// with its VIP as next hop, then every static route with its gateway.
func Exported(vlan *config.VLAN) []Entry {
	var routes []Entry
	for _, vip := range vlan.FaucetVIPs {
		routes = append(routes, Entry{VID: vlan.VID, Dst: utilip.Subnet(vip), Gateway: vip.IP, Source: Static})
	}
	for _, r := range vlan.Routes {
		routes = append(routes, Entry{VID: vlan.VID, Dst: r.Dst, Gateway: r.Gateway, Source: Static})
	}
	return routes
}

// Routes returns all routes ordered by VLAN then destination.
func (t *Table) Routes() []Entry {
	sorted := t.sortedRoutes()
	routes := make([]Entry, len(sorted))
	for i, r := range sorted {
		routes[i] = *r
	}
	return routes
}

// State returns the neighbors and routes in the form the compiler takes.
// Routes through unreachable gateways are marked unreachable.
func (t *Table) State() ([]openflow.Neighbor, []openflow.Route) {
	var neighbors []openflow.Neighbor
	for _, n := range t.sortedNeighbors() {
		if n.State == Resolved {
			neighbors = append(neighbors, openflow.Neighbor{VID: n.VID, IP: n.IP, MAC: n.MAC})
		}
	}
	var routes []openflow.Route
	for _, r := range t.sortedRoutes() {
		gw, ok := t.neighbors[neighborKey(r.VID, r.Gateway)]
		routes = append(routes, openflow.Route{
			VID:         r.VID,
			Dst:         r.Dst,
			Gateway:     r.Gateway,
			Unreachable: ok && gw.State == Unreachable,
		})
	}
	return neighbors, routes
}

// NeighborCount returns the number of resolved neighbors of vid in the
// given IP version.
func (t *Table) NeighborCount(vid uint16, ipv int) int {
	count := 0
	for _, n := range t.neighbors {
		if n.VID == vid && n.State == Resolved && utilip.Version(n.IP) == ipv {
			count++
		}
	}
	return count
}

// RouteCount returns the number of routes of vid from source in the given
// IP version.
func (t *Table) RouteCount(vid uint16, ipv int, source Source) int {
	count := 0
	for _, r := range t.routes {
		if r.VID == vid && r.Source == source && utilip.Version(r.Dst.IP) == ipv {
			count++
		}
	}
	return count
}
