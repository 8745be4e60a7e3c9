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

package datapath

import (
	"net"

	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/packet"
	binding "antrea.io/faucet/pkg/ovs/openflow"
	utilip "antrea.io/faucet/pkg/util/ip"
)

var allNodesMulticast = net.ParseIP("ff02::1")

// raSource returns the link-local VIP router advertisements of vlan are
// sent from, and the other IPv6 VIP subnets they carry. VLANs without a
// link-local VIP are not advertised.
func raSource(vlan *config.VLAN) (net.IP, []*net.IPNet, bool) {
	var src net.IP
	var prefixes []*net.IPNet
	for _, vip := range vlan.IPv6VIPs() {
		if vip.IP.IsLinkLocalUnicast() {
			if src == nil {
				src = vip.IP
			}
			continue
		}
		prefixes = append(prefixes, vip)
	}
	return src, prefixes, src != nil
}

// advertise sends a router advertisement to all nodes of every IPv6 VLAN
// once per advertise_interval.
func (c *Controller) advertise() {
	if c.bridge == nil || c.dp.AdvertiseInterval <= 0 {
		return
	}
	now := c.clock.Now()
	if !c.lastAdvertised.IsZero() && now.Sub(c.lastAdvertised) < c.dp.AdvertiseInterval {
		return
	}
	c.lastAdvertised = now
	dstMAC := utilip.MulticastMAC(allNodesMulticast)
	for _, vid := range c.dp.SortedVIDs() {
		src, prefixes, ok := raSource(c.dp.VLANs[vid])
		if !ok {
			continue
		}
		for _, p := range c.dp.VLANPorts(vid) {
			// Peers advertise their own edge ports.
			if !p.Enabled || p.IsStack() {
				continue
			}
			data, err := packet.RouterAdvertisement(c.tagFor(p, vid), c.dp.FaucetMAC, src, dstMAC, allNodesMulticast, prefixes)
			if err != nil {
				klog.ErrorS(err, "Failed to build router advertisement", "dp", c.dp.Name, "vlan", vid)
				return
			}
			c.packetOut(binding.ControllerPort, p.Number, data)
		}
	}
}

// solicitedAdvertisement answers a router solicitation received on port.
// A solicitation from the unspecified address is answered to all nodes.
func (c *Controller) solicitedAdvertisement(pktIn *binding.PacketIn, pkt *packet.Packet, port *config.Port, vlan *config.VLAN) {
	src, prefixes, ok := raSource(vlan)
	if !ok {
		return
	}
	dstIP, dstMAC := pkt.SrcIP, pkt.NDSource()
	if dstIP.IsUnspecified() {
		dstIP, dstMAC = allNodesMulticast, utilip.MulticastMAC(allNodesMulticast)
	}
	reply, err := packet.RouterAdvertisement(c.tagFor(port, vlan.VID), c.dp.FaucetMAC, src, dstMAC, dstIP, prefixes)
	if err != nil {
		klog.ErrorS(err, "Failed to build router advertisement", "dp", c.dp.Name, "vlan", vlan.VID)
		return
	}
	c.packetOut(pktIn.InPort, binding.InPortPort, reply)
}
