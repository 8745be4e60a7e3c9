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

// Package packet decodes the packets the switches send to the controller
// and builds the ARP, neighbor discovery and ICMP echo packets the
// controller sends back.
package packet

import (
	"fmt"
	"net"
	"strconv"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/ndp"

	utilip "antrea.io/faucet/pkg/util/ip"
)

// Packet is a decoded packet-in.
type Packet struct {
	// VID is the 802.1Q tag of the packet, 0 when untagged.
	VID       uint16
	EthSrc    net.HardwareAddr
	EthDst    net.HardwareAddr
	EtherType ethernet.EtherType

	// SrcIP and DstIP are set for IPv4 and IPv6 packets, Protocol to their
	// protocol or next header.
	SrcIP    net.IP
	DstIP    net.IP
	Protocol uint8

	// At most one of ARP, ND and Echo is set.
	ARP *arp.Packet
	// ND is a *ndp.NeighborSolicitation, a *ndp.NeighborAdvertisement or a
	// *ndp.RouterSolicitation.
	ND   ndp.Message
	Echo *Echo

	// Data is the whole frame as received.
	Data []byte
}

// Echo is an ICMP or ICMPv6 echo request.
type Echo struct {
	ID   uint16
	Seq  uint16
	Data []byte
}

// Parse decodes data, an Ethernet frame. Only the layers the controller
// acts upon are decoded; other packets are returned with their L2 and L3
// addresses only.
func Parse(data []byte) (*Packet, error) {
	var frame ethernet.Frame
	if err := frame.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("invalid Ethernet frame: %w", err)
	}
	p := &Packet{
		EthSrc:    frame.Source,
		EthDst:    frame.Destination,
		EtherType: frame.EtherType,
		Data:      data,
	}
	if frame.VLAN != nil {
		p.VID = frame.VLAN.ID
	}

	switch frame.EtherType {
	case ethernet.EtherTypeARP:
		p.ARP = new(arp.Packet)
		if err := p.ARP.UnmarshalBinary(frame.Payload); err != nil {
			return nil, fmt.Errorf("invalid ARP packet: %w", err)
		}
	case ethernet.EtherTypeIPv4:
		pkt := gopacket.NewPacket(frame.Payload, layers.LayerTypeIPv4, gopacket.Default)
		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok {
			return nil, fmt.Errorf("invalid IPv4 packet")
		}
		p.SrcIP, p.DstIP, p.Protocol = ip.SrcIP, ip.DstIP, uint8(ip.Protocol)
		if icmp, ok := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4); ok && icmp.TypeCode.Type() == layers.ICMPv4TypeEchoRequest {
			p.Echo = &Echo{ID: icmp.Id, Seq: icmp.Seq, Data: icmp.Payload}
		}
	case ethernet.EtherTypeIPv6:
		pkt := gopacket.NewPacket(frame.Payload, layers.LayerTypeIPv6, gopacket.Default)
		ip, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok {
			return nil, fmt.Errorf("invalid IPv6 packet")
		}
		p.SrcIP, p.DstIP, p.Protocol = ip.SrcIP, ip.DstIP, uint8(ip.NextHeader)
		icmp, ok := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
		if !ok {
			break
		}
		switch icmp.TypeCode.Type() {
		case layers.ICMPv6TypeNeighborSolicitation, layers.ICMPv6TypeNeighborAdvertisement, layers.ICMPv6TypeRouterSolicitation:
			msg := make([]byte, 0, len(icmp.Contents)+len(icmp.Payload))
			msg = append(append(msg, icmp.Contents...), icmp.Payload...)
			nd, err := ndp.ParseMessage(msg)
			if err != nil {
				return nil, fmt.Errorf("invalid neighbor discovery message: %w", err)
			}
			p.ND = nd
		case layers.ICMPv6TypeEchoRequest:
			if echo, ok := pkt.Layer(layers.LayerTypeICMPv6Echo).(*layers.ICMPv6Echo); ok {
				p.Echo = &Echo{ID: echo.Identifier, Seq: echo.SeqNumber, Data: echo.Payload}
			}
		}
	}
	return p, nil
}

// ProtocolName returns the name of the IP protocol of p, or its number
// when the protocol has no known name.
func (p *Packet) ProtocolName() string {
	return utilip.IPProtocolNumberToString(p.Protocol, strconv.Itoa(int(p.Protocol)))
}

// IsIPv6 reports whether p is an IPv6 packet.
func (p *Packet) IsIPv6() bool {
	return p.EtherType == ethernet.EtherTypeIPv6
}

// NDSource returns the link-layer address carried by a neighbor
// discovery message, or the Ethernet source when it carries none.
func (p *Packet) NDSource() net.HardwareAddr {
	var options []ndp.Option
	switch m := p.ND.(type) {
	case *ndp.NeighborSolicitation:
		options = m.Options
	case *ndp.NeighborAdvertisement:
		options = m.Options
	case *ndp.RouterSolicitation:
		options = m.Options
	}
	for _, o := range options {
		if lla, ok := o.(*ndp.LinkLayerAddress); ok {
			return lla.Addr
		}
	}
	return p.EthSrc
}

// NDTarget returns the target address of a neighbor discovery message.
func (p *Packet) NDTarget() net.IP {
	switch m := p.ND.(type) {
	case *ndp.NeighborSolicitation:
		return net.IP(m.TargetAddress.AsSlice())
	case *ndp.NeighborAdvertisement:
		return net.IP(m.TargetAddress.AsSlice())
	}
	return nil
}
