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

	"antrea.io/faucet/pkg/faucet/config"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

var (
	// solicitedNodeMulticast covers the destinations of IPv6 neighbor
	// solicitations.
	_, solicitedNodeMulticast, _ = net.ParseCIDR("ff02::1:ff00:0/104")
	// allRoutersMulticast is the destination of router solicitations.
	_, allRoutersMulticast, _ = net.ParseCIDR("ff02::2/128")
)

// mirrorActions copies a packet to every port mirroring port.
func (p *pipeline) mirrorActions(port uint32) []binding.Action {
	var actions []binding.Action
	for _, m := range p.dp.MirroredBy(port) {
		actions = append(actions, &binding.OutputAction{Port: m})
	}
	return actions
}

// vlanFlows fills the vlan table, which admits packets into their VLAN and
// tags the untagged ones.
func (p *pipeline) vlanFlows() {
	if p.dp.DropLLDP {
		p.add(binding.NewFlowBuilder(VLANTable, PriorityHighest).MatchEthType(config.EthTypeLLDP).Done())
	}
	if p.dp.DropBroadcastSource {
		p.add(binding.NewFlowBuilder(VLANTable, PriorityHighest).MatchEthSrcWithMask(multicastMAC, multicastMAC).Done())
	}
	vids := p.dp.SortedVIDs()
	for _, n := range p.dp.PortNumbers {
		port := p.dp.Ports[n]
		if !port.Enabled || port.OutputOnly {
			p.add(binding.NewFlowBuilder(VLANTable, PriorityHighest).MatchInPort(n).Done())
			continue
		}
		mirrors := p.mirrorActions(n)
		if port.IsStack() {
			for _, vid := range vids {
				p.add(binding.NewFlowBuilder(VLANTable, PriorityLow).MatchInPort(n).MatchVLAN(vid).
					Action().Actions(mirrors...).GotoTable(VLANACLTable).Done())
			}
			continue
		}
		if port.NativeVLAN != nil {
			p.add(binding.NewFlowBuilder(VLANTable, PriorityLow).MatchInPort(n).MatchNoVLAN().
				Action().Actions(mirrors...).PushVLAN(port.NativeVLAN.VID).GotoTable(VLANACLTable).Done())
		}
		for _, vlan := range port.TaggedVLANs {
			p.add(binding.NewFlowBuilder(VLANTable, PriorityLow).MatchInPort(n).MatchVLAN(vlan.VID).
				Action().Actions(mirrors...).GotoTable(VLANACLTable).Done())
		}
	}
	p.dropFlow(VLANTable)
}

func sortedHosts(hosts []Host) []Host {
	sorted := append([]Host(nil), hosts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].VID != sorted[j].VID {
			return sorted[i].VID < sorted[j].VID
		}
		return bytes.Compare(sorted[i].MAC, sorted[j].MAC) < 0
	})
	return sorted
}

// ethSrcFlows fills the eth_src table: packets from known hosts continue to
// eth_dst, packets for the controller's addresses go to the controller or
// the FIBs, and unknown sources are sent to the controller for learning.
func (p *pipeline) ethSrcFlows() {
	faucetMAC := p.dp.FaucetMAC
	for _, vid := range p.dp.SortedVIDs() {
		vlan := p.dp.VLANs[vid]
		if len(vlan.FaucetVIPs) == 0 {
			continue
		}
		if vips := vlan.IPv4VIPs(); len(vips) > 0 {
			for _, vip := range vips {
				p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
					MatchEthType(config.EthTypeARP).MatchARPTpa(vip.IP).
					Action().SendToController().Done())
			}
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
				MatchEthDst(faucetMAC).MatchEthType(config.EthTypeARP).
				Action().SendToController().Done())
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
				MatchEthDst(faucetMAC).MatchEthType(config.EthTypeIPv4).
				Action().GotoTable(IPv4FIBTable).Done())
		}
		if len(vlan.IPv6VIPs()) > 0 {
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
				MatchEthType(config.EthTypeIPv6).MatchIPProto(config.IPProtoICMPv6).MatchIPv6Dst(solicitedNodeMulticast).
				Action().SendToController().GotoTable(EthDstTable).Done())
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
				MatchEthType(config.EthTypeIPv6).MatchIPProto(config.IPProtoICMPv6).MatchIPv6Dst(allRoutersMulticast).
				Action().SendToController().GotoTable(EthDstTable).Done())
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+2).MatchVLAN(vid).
				MatchEthDst(faucetMAC).MatchEthType(config.EthTypeIPv6).
				Action().GotoTable(IPv6FIBTable).Done())
		}
	}

	for _, h := range sortedHosts(p.state.Hosts) {
		if h.Permanent {
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh+1).MatchInPort(h.Port).MatchVLAN(h.VID).MatchEthSrc(h.MAC).
				Action().GotoTable(EthDstTable).Done())
			// The same source on any other port is spoofed.
			p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh).MatchVLAN(h.VID).MatchEthSrc(h.MAC).Done())
			continue
		}
		p.add(binding.NewFlowBuilder(EthSrcTable, PriorityHigh).MatchInPort(h.Port).MatchVLAN(h.VID).MatchEthSrc(h.MAC).
			Action().GotoTable(EthDstTable).Done())
	}

	// Banned sources are not sent to the controller but still forwarded.
	timeout := uint16(p.dp.LearnBanTimeout.Seconds())
	for _, ban := range p.state.LearnBans {
		b := binding.NewFlowBuilder(EthSrcTable, PriorityLow).MatchVLAN(ban.VID).SetHardTimeout(timeout)
		if ban.Port != 0 {
			b.MatchInPort(ban.Port)
		}
		p.add(b.Action().GotoTable(EthDstTable).Done())
	}

	p.add(binding.NewFlowBuilder(EthSrcTable, PriorityLowest).Action().SendToController().GotoTable(EthDstTable).Done())
}

// ethDstFlows fills the eth_dst table with one output flow per learned
// host. Unknown destinations are flooded.
func (p *pipeline) ethDstFlows() {
	for _, h := range sortedHosts(p.state.Hosts) {
		port, ok := p.dp.Ports[h.Port]
		if !ok {
			continue
		}
		p.add(binding.NewFlowBuilder(EthDstTable, PriorityHigh).MatchVLAN(h.VID).MatchEthDst(h.MAC).
			Action().Actions(p.outputActions(port, h.VID)...).Done())
	}
	p.add(binding.NewFlowBuilder(EthDstTable, PriorityLowest).Action().GotoTable(FloodTable).Done())
}

// floodActions outputs a tagged packet of vid to every given port: tagged
// ports first, then the native ones after a single pop.
func (p *pipeline) floodActions(ports []*config.Port, vid uint16) []binding.Action {
	var tagged, untagged []binding.Action
	for _, port := range ports {
		outputs := append([]binding.Action{&binding.OutputAction{Port: port.Number}}, p.mirrorActions(port.Number)...)
		if port.IsStack() || port.IsTagged(vid) {
			tagged = append(tagged, outputs...)
		} else {
			untagged = append(untagged, outputs...)
		}
	}
	if len(untagged) == 0 {
		return tagged
	}
	return append(append(tagged, &binding.PopVLANAction{}), untagged...)
}

// floodFlows fills the flood table. Broadcast and multicast reach every
// port of the VLAN; unknown unicast only reaches the ports that allow
// unicast flooding.
func (p *pipeline) floodFlows() {
	for _, vid := range p.dp.SortedVIDs() {
		vlan := p.dp.VLANs[vid]
		var all, unicast []*config.Port
		for _, port := range p.dp.VLANPorts(vid) {
			if !port.Enabled {
				continue
			}
			all = append(all, port)
			if port.UnicastFlood {
				unicast = append(unicast, port)
			}
		}
		if !vlan.UnicastFlood {
			unicast = nil
		}

		bcast := binding.NewFlowBuilder(FloodTable, PriorityHigh).MatchVLAN(vid).MatchEthDstWithMask(multicastMAC, multicastMAC)
		ucast := binding.NewFlowBuilder(FloodTable, PriorityLow).MatchVLAN(vid)
		if p.dp.GroupTable {
			gb := binding.NewGroupBuilder(binding.GroupIDType(vid), binding.GroupAll)
			for _, port := range all {
				gb.Bucket(p.outputActions(port, vid)...)
			}
			p.addGroup(gb.Done())
			bcast.Action().Group(binding.GroupIDType(vid))
			if len(unicast) == len(all) {
				ucast.Action().Group(binding.GroupIDType(vid))
			} else {
				ucast.Action().Actions(p.floodActions(unicast, vid)...)
			}
		} else {
			bcast.Action().Actions(p.floodActions(all, vid)...)
			ucast.Action().Actions(p.floodActions(unicast, vid)...)
		}
		p.add(bcast.Done())
		p.add(ucast.Done())
	}
	p.dropFlow(FloodTable)
}
