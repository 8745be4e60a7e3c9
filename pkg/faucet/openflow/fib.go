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

package openflow

import (
	"bytes"
	"net"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"antrea.io/faucet/pkg/faucet/config"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

// fib describes the FIB table of one address family.
type fib struct {
	table   binding.TableIDType
	ethType uint16
	bits    int
}

var (
	ipv4FIB = fib{table: IPv4FIBTable, ethType: config.EthTypeIPv4, bits: 32}
	ipv6FIB = fib{table: IPv6FIBTable, ethType: config.EthTypeIPv6, bits: 128}
)

func fibFor(ip net.IP) fib {
	if ip.To4() != nil {
		return ipv4FIB
	}
	return ipv6FIB
}

// routePriority implements longest prefix match: the longer the prefix the
// higher the priority.
func routePriority(dst *net.IPNet) uint16 {
	ones, _ := dst.Mask.Size()
	return PriorityLow + uint16(ones)
}

// flowFor starts a flow matching packets of srcVID routed to dst.
func (f fib) flowFor(srcVID uint16, dst *net.IPNet) *binding.FlowBuilder {
	b := binding.NewFlowBuilder(f.table, routePriority(dst)).MatchVLAN(srcVID).MatchEthType(f.ethType)
	if f.table == IPv4FIBTable {
		return b.MatchIPv4Dst(dst)
	}
	return b.MatchIPv6Dst(dst)
}

func hostPrefix(ip net.IP) *net.IPNet {
	bits := fibFor(ip).bits
	if bits == 32 {
		ip = ip.To4()
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

func sortedNeighbors(neighbors []Neighbor, vid uint16) []Neighbor {
	var sorted []Neighbor
	for _, n := range neighbors {
		if n.VID == vid {
			sorted = append(sorted, n)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].IP.To16(), sorted[j].IP.To16()) < 0
	})
	return sorted
}

func sortedRoutes(routes []Route, vid uint16) []Route {
	var sorted []Route
	for _, r := range routes {
		if r.VID == vid {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if di, dj := sorted[i].Dst.String(), sorted[j].Dst.String(); di != dj {
			return di < dj
		}
		return bytes.Compare(sorted[i].Gateway.To16(), sorted[j].Gateway.To16()) < 0
	})
	return sorted
}

// routeActions rewrites a packet routed from srcVID towards a neighbor with
// mac on dstVID, then looks up its new destination in eth_dst.
func (p *pipeline) routeActions(b *binding.FlowBuilder, srcVID, dstVID uint16, mac net.HardwareAddr) *binding.Flow {
	ab := b.Action().SetEthSrc(p.dp.FaucetMAC).SetEthDst(mac)
	if srcVID != dstVID {
		ab.SetVLAN(dstVID)
	}
	return ab.DecNwTTL().GotoTable(EthDstTable).Done()
}

// fibFlows fills both FIB tables. Every routed VLAN gets its connected
// subnets and VIPs sent to the controller, one host route per resolved
// neighbor and its static and BGP routes. The flows are installed for the
// VLAN itself and for every VLAN routed with it.
func (c *Compiler) fibFlows(p *pipeline) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	usedGroups := sets.New[string]()
	for _, vid := range p.dp.SortedVIDs() {
		vlan := p.dp.VLANs[vid]
		if len(vlan.FaucetVIPs) == 0 {
			continue
		}
		srcVIDs := []uint16{vid}
		for _, routed := range p.dp.RoutedVLANs(vid) {
			srcVIDs = append(srcVIDs, routed.VID)
		}

		for _, vip := range vlan.FaucetVIPs {
			f := fibFor(vip.IP)
			subnet := &net.IPNet{IP: vip.IP.Mask(vip.Mask), Mask: vip.Mask}
			for _, src := range srcVIDs {
				p.add(f.flowFor(src, hostPrefix(vip.IP)).Action().SendToController().Done())
				p.add(f.flowFor(src, subnet).Action().SendToController().Done())
			}
		}

		neighbors := make(map[string]net.HardwareAddr)
		for _, n := range sortedNeighbors(p.state.Neighbors, vid) {
			neighbors[n.IP.String()] = n.MAC
			f := fibFor(n.IP)
			for _, src := range srcVIDs {
				p.add(p.routeActions(f.flowFor(src, hostPrefix(n.IP)), src, vid, n.MAC))
			}
		}

		for _, r := range sortedRoutes(p.state.Routes, vid) {
			f := fibFor(r.Dst.IP)
			mac, resolved := neighbors[r.Gateway.String()]
			var groupID binding.GroupIDType
			if resolved && p.dp.GroupTable {
				if port, learned := p.hostPorts[hostKey(vid, mac)]; learned {
					if dpPort, ok := p.dp.Ports[port]; ok {
						groupID = c.nextHopGroup(p, vid, r.Gateway, mac, dpPort)
						usedGroups.Insert(vlanKey(vid, r.Gateway.String()))
					}
				}
			}
			for _, src := range srcVIDs {
				b := f.flowFor(src, r.Dst)
				switch {
				case r.Unreachable:
					p.add(b.Done())
				case !resolved:
					p.add(b.Action().SendToController().Done())
				case groupID != 0:
					p.add(b.Action().DecNwTTL().Group(groupID).Done())
				default:
					p.add(p.routeActions(b, src, vid, mac))
				}
			}
		}
	}
	p.dropFlow(IPv4FIBTable)
	p.dropFlow(IPv6FIBTable)

	for key, id := range c.nextHopGroups {
		if !usedGroups.Has(key) {
			delete(c.nextHopGroups, key)
			c.groups.Release(id)
		}
	}
}

// nextHopGroup returns the indirect group shared by every route through
// the gateway with mac on vid, learned on port.
func (c *Compiler) nextHopGroup(p *pipeline, vid uint16, gw net.IP, mac net.HardwareAddr, port *config.Port) binding.GroupIDType {
	key := vlanKey(vid, gw.String())
	id, ok := c.nextHopGroups[key]
	if !ok {
		id = c.groups.Allocate()
		c.nextHopGroups[key] = id
	}
	actions := []binding.Action{
		&binding.SetVLANAction{VID: vid},
		&binding.SetEthSrcAction{MAC: p.dp.FaucetMAC},
		&binding.SetEthDstAction{MAC: mac},
	}
	actions = append(actions, p.outputActions(port, vid)...)
	p.addGroup(binding.NewGroupBuilder(id, binding.GroupIndirect).Bucket(actions...).Done())
	return id
}
