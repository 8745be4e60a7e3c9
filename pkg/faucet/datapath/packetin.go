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
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/mdlayher/arp"
	"github.com/mdlayher/ndp"
	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/hostlearning"
	"antrea.io/faucet/pkg/faucet/metrics"
	"antrea.io/faucet/pkg/faucet/packet"
	"antrea.io/faucet/pkg/faucet/reload"
	"antrea.io/faucet/pkg/faucet/route"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

func (c *Controller) handlePacketIn(pktIn *binding.PacketIn) {
	metrics.PacketIns.WithLabelValues(c.dpidLabel).Inc()
	c.ofLog.WritePacketIn(pktIn)

	port, ok := c.dp.Ports[pktIn.InPort]
	if !ok || !port.Enabled {
		klog.V(4).InfoS("Ignoring packet-in from port", "dp", c.dp.Name, "port", pktIn.InPort)
		return
	}
	pkt, err := packet.Parse(pktIn.Data)
	if err != nil {
		klog.V(2).InfoS("Ignoring malformed packet-in", "dp", c.dp.Name, "port", pktIn.InPort, "err", err)
		return
	}
	vid, ok := packetInVID(port, pkt.VID)
	if !ok || c.dp.VLANs[vid] == nil {
		klog.V(4).InfoS("Ignoring packet-in on a VLAN the port does not carry", "dp", c.dp.Name, "port", port.Number, "vlan", pkt.VID)
		return
	}

	changed := c.learnHost(pkt.EthSrc, vid, port.Number)
	// Hosts behind a stack port are learned there; their L3 traffic is
	// handled by the DP they are attached to.
	if vlan := c.dp.VLANs[vid]; !port.IsStack() && len(vlan.FaucetVIPs) > 0 {
		if c.handleL3(pktIn, pkt, port, vlan) {
			changed = true
		}
	}
	if changed {
		c.sync(reload.Warm)
	}
}

// packetInVID returns the VLAN of a packet-in. Packets reach the controller
// after the vlan table, so frames received on a native port usually carry
// the pushed native tag already.
func packetInVID(port *config.Port, vid uint16) (uint16, bool) {
	switch {
	case port.IsStack():
		return vid, vid != 0
	case port.NativeVLAN != nil && (vid == 0 || vid == port.NativeVLAN.VID):
		return port.NativeVLAN.VID, true
	case vid != 0 && port.IsTagged(vid):
		return vid, true
	}
	return 0, false
}

// learnHost returns whether the flows must be updated for the source.
func (c *Controller) learnHost(mac net.HardwareAddr, vid uint16, port uint32) bool {
	result, err := c.hosts.Learn(mac, vid, port)
	if err != nil {
		var capacityErr *hostlearning.CapacityError
		if errors.As(err, &capacityErr) {
			klog.InfoS("Learn ban added", "dp", c.dp.Name, "err", err)
			metrics.CapacityErrors.WithLabelValues(c.dpidLabel, fmt.Sprint(vid)).Inc()
			return true
		}
		klog.V(2).InfoS("Host not learned", "dp", c.dp.Name, "mac", mac, "vlan", vid, "port", port, "err", err)
		return false
	}
	return result == hostlearning.Learned || result == hostlearning.Moved
}

func (c *Controller) handleL3(pktIn *binding.PacketIn, pkt *packet.Packet, port *config.Port, vlan *config.VLAN) bool {
	switch {
	case pkt.ARP != nil:
		return c.handleARP(pktIn, pkt, port, vlan)
	case pkt.ND != nil:
		return c.handleND(pktIn, pkt, port, vlan)
	case pkt.Echo != nil && c.isVIP(vlan, pkt.DstIP):
		reply, err := packet.EchoReply(c.tagFor(port, vlan.VID), pkt, c.dp.FaucetMAC)
		if err != nil {
			klog.ErrorS(err, "Failed to build echo reply", "dp", c.dp.Name)
			return false
		}
		c.packetOut(pktIn.InPort, binding.InPortPort, reply)
		return false
	case pkt.DstIP != nil && bytes.Equal(pkt.EthDst, c.dp.FaucetMAC) && !c.isVIP(vlan, pkt.DstIP):
		return c.routePacket(pkt, vlan)
	}
	return false
}

// isVIP reports whether ip is a VIP of vlan or of a VLAN routed with it.
func (c *Controller) isVIP(vlan *config.VLAN, ip net.IP) bool {
	if ip == nil {
		return false
	}
	if vlan.IsVIP(ip) {
		return true
	}
	for _, v := range c.dp.RoutedVLANs(vlan.VID) {
		if v.IsVIP(ip) {
			return true
		}
	}
	return false
}

func (c *Controller) tagFor(port *config.Port, vid uint16) uint16 {
	if port.IsStack() || port.IsTagged(vid) {
		return vid
	}
	return 0
}

func (c *Controller) handleARP(pktIn *binding.PacketIn, pkt *packet.Packet, port *config.Port, vlan *config.VLAN) bool {
	a := pkt.ARP
	sender := net.IP(a.SenderIP.AsSlice())
	target := net.IP(a.TargetIP.AsSlice())
	changed := c.learnNeighbor(vlan.VID, sender, a.SenderHardwareAddr)
	if a.Operation == arp.OperationRequest && vlan.IsVIP(target) {
		reply, err := packet.ARPReply(c.tagFor(port, vlan.VID), c.dp.FaucetMAC, target, a.SenderHardwareAddr, sender)
		if err != nil {
			klog.ErrorS(err, "Failed to build ARP reply", "dp", c.dp.Name)
			return changed
		}
		c.packetOut(pktIn.InPort, binding.InPortPort, reply)
	}
	return changed
}

func (c *Controller) handleND(pktIn *binding.PacketIn, pkt *packet.Packet, port *config.Port, vlan *config.VLAN) bool {
	var changed bool
	switch pkt.ND.(type) {
	case *ndp.NeighborSolicitation:
		if !pkt.SrcIP.IsUnspecified() {
			changed = c.learnNeighbor(vlan.VID, pkt.SrcIP, pkt.NDSource())
		}
		target := pkt.NDTarget()
		if !vlan.IsVIP(target) || pkt.SrcIP.IsUnspecified() {
			return changed
		}
		reply, err := packet.NeighborAdvertisement(c.tagFor(port, vlan.VID), c.dp.FaucetMAC, target, pkt.NDSource(), pkt.SrcIP)
		if err != nil {
			klog.ErrorS(err, "Failed to build neighbor advertisement", "dp", c.dp.Name)
			return changed
		}
		c.packetOut(pktIn.InPort, binding.InPortPort, reply)
	case *ndp.NeighborAdvertisement:
		changed = c.learnNeighbor(vlan.VID, pkt.NDTarget(), pkt.NDSource())
	case *ndp.RouterSolicitation:
		c.solicitedAdvertisement(pktIn, pkt, port, vlan)
	}
	return changed
}

// learnNeighbor records ip at mac and forwards the packets that were
// waiting for it.
func (c *Controller) learnNeighbor(vid uint16, ip net.IP, mac net.HardwareAddr) bool {
	changed, queued := c.routes.Learn(vid, ip, mac)
	for _, data := range queued {
		c.forward(data, vid, mac)
	}
	return changed
}

// routePacket handles an IP packet the FIB could not forward yet: its
// next hop is resolved, or queued for resolution.
func (c *Controller) routePacket(pkt *packet.Packet, vlan *config.VLAN) bool {
	dstVID, nh, err := c.routes.NextHop(vlan.VID, pkt.DstIP)
	if err != nil {
		klog.V(2).InfoS("Dropping packet without route", "dp", c.dp.Name, "vlan", vlan.VID, "dst", pkt.DstIP,
			"protocol", pkt.ProtocolName(), "err", err)
		return false
	}
	klog.V(4).InfoS("Routing packet through the controller", "dp", c.dp.Name, "vlan", vlan.VID, "dst", pkt.DstIP,
		"protocol", pkt.ProtocolName(), "nexthop", nh)
	mac, err := c.routes.Queue(dstVID, nh, pkt.Data)
	if err != nil {
		var resolutionErr *route.ResolutionError
		if errors.As(err, &resolutionErr) {
			klog.V(2).InfoS("Dropping packet to unreachable next hop", "dp", c.dp.Name, "err", err)
		} else {
			klog.ErrorS(err, "Cannot queue packet for next hop", "dp", c.dp.Name, "nexthop", nh)
		}
		return false
	}
	if mac != nil {
		// The flow for nh was not installed when the packet was sent.
		c.forward(pkt.Data, dstVID, mac)
		return false
	}
	return c.resolve()
}

// forward routes data to mac on vid, through the port mac was learned on
// or by flooding the VLAN.
func (c *Controller) forward(data []byte, vid uint16, mac net.HardwareAddr) {
	ports := c.dp.VLANPorts(vid)
	if e, ok := c.hosts.Lookup(vid, mac); ok {
		if p, ok := c.dp.Ports[e.Port]; ok {
			ports = []*config.Port{p}
		}
	}
	for _, p := range ports {
		if !p.Enabled {
			continue
		}
		out, err := packet.Route(data, c.tagFor(p, vid), c.dp.FaucetMAC, mac)
		if err != nil {
			klog.V(2).InfoS("Dropping queued packet", "dp", c.dp.Name, "vlan", vid, "err", err)
			return
		}
		c.packetOut(binding.ControllerPort, p.Number, out)
	}
}

// resolve runs the neighbor resolution timers and sends the requests that
// are due. It returns whether the FIB changed.
func (c *Controller) resolve() bool {
	result := c.routes.Tick()
	for _, req := range result.Requests {
		c.sendResolveRequest(req)
	}
	for _, f := range result.Failures {
		metrics.ResolutionErrors.WithLabelValues(c.dpidLabel, fmt.Sprint(f.VID)).Inc()
	}
	return result.Changed
}

func (c *Controller) sendResolveRequest(req route.Request) {
	if req.VIP == nil {
		return
	}
	for _, p := range c.dp.VLANPorts(req.VID) {
		if !p.Enabled {
			continue
		}
		var data []byte
		var err error
		tag := c.tagFor(p, req.VID)
		if req.IP.To4() != nil {
			data, err = packet.ARPRequest(tag, c.dp.FaucetMAC, req.VIP.IP, req.IP)
		} else {
			data, err = packet.NeighborSolicitation(tag, c.dp.FaucetMAC, req.VIP.IP, req.IP)
		}
		if err != nil {
			klog.ErrorS(err, "Failed to build resolution request", "dp", c.dp.Name, "ip", req.IP)
			return
		}
		c.packetOut(binding.ControllerPort, p.Number, data)
	}
}

func (c *Controller) packetOut(inPort, outPort uint32, data []byte) {
	if c.bridge == nil {
		return
	}
	if err := c.bridge.SendPacketOut(inPort, outPort, data); err != nil {
		klog.ErrorS(err, "Failed to send packet-out", "dp", c.dp.Name, "port", outPort)
		return
	}
	c.ofLog.WritePacketOut(inPort, outPort, data)
}
