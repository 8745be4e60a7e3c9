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

package packet

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/ndp"

	utilip "antrea.io/faucet/pkg/util/ip"
)

const (
	defaultTTL = 64
	// ndHopLimit is required on every neighbor discovery message.
	ndHopLimit = 255

	raRouterLifetime    = 1800 * time.Second
	raValidLifetime     = 86400 * time.Second
	raPreferredLifetime = 14400 * time.Second
)

var zeroMAC = net.HardwareAddr{0, 0, 0, 0, 0, 0}

// All builders take the 802.1Q tag to write; a vid of 0 builds an untagged
// frame.
func frame(vid uint16, src, dst net.HardwareAddr, etherType ethernet.EtherType, payload []byte) ([]byte, error) {
	f := &ethernet.Frame{
		Destination: dst,
		Source:      src,
		EtherType:   etherType,
		Payload:     payload,
	}
	if vid != 0 {
		f.VLAN = &ethernet.VLAN{ID: vid}
	}
	return f.MarshalBinary()
}

func arpFrame(vid uint16, op arp.Operation, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC, ethDst net.HardwareAddr, dstIP net.IP) ([]byte, error) {
	p, err := arp.NewPacket(op, srcMAC, srcIP.To4(), dstMAC, dstIP.To4())
	if err != nil {
		return nil, fmt.Errorf("cannot build ARP packet: %w", err)
	}
	payload, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return frame(vid, srcMAC, ethDst, ethernet.EtherTypeARP, payload)
}

// ARPRequest asks who has dstIP, from srcIP at srcMAC.
func ARPRequest(vid uint16, srcMAC net.HardwareAddr, srcIP, dstIP net.IP) ([]byte, error) {
	return arpFrame(vid, arp.OperationRequest, srcMAC, srcIP, zeroMAC, ethernet.Broadcast, dstIP)
}

// ARPReply tells dstIP at dstMAC that srcIP is at srcMAC.
func ARPReply(vid uint16, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) ([]byte, error) {
	return arpFrame(vid, arp.OperationReply, srcMAC, srcIP, dstMAC, dstMAC, dstIP)
}

func serialize(ls ...gopacket.SerializableLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ndFrame wraps msg into an IPv6 packet with a valid ICMPv6 checksum.
func ndFrame(vid uint16, srcMAC, dstMAC net.HardwareAddr, srcIP, dstIP net.IP, msg ndp.Message) ([]byte, error) {
	body, err := ndp.MarshalMessage(msg)
	if err != nil {
		return nil, fmt.Errorf("cannot build neighbor discovery message: %w", err)
	}
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolICMPv6,
		HopLimit:   ndHopLimit,
		SrcIP:      srcIP,
		DstIP:      dstIP,
	}
	icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(body[0], body[1])}
	if err := icmp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	// The first 4 bytes are the ICMPv6 header, written by the layer.
	payload, err := serialize(ip, icmp, gopacket.Payload(body[4:]))
	if err != nil {
		return nil, err
	}
	return frame(vid, srcMAC, dstMAC, ethernet.EtherTypeIPv6, payload)
}

func addr(ip net.IP) (netip.Addr, error) {
	a, ok := netip.AddrFromSlice(ip.To16())
	if !ok {
		return netip.Addr{}, fmt.Errorf("invalid IPv6 address %s", ip)
	}
	return a, nil
}

// NeighborSolicitation asks for the link-layer address of target, sent to
// its solicited-node multicast group.
func NeighborSolicitation(vid uint16, srcMAC net.HardwareAddr, srcIP, target net.IP) ([]byte, error) {
	ta, err := addr(target)
	if err != nil {
		return nil, err
	}
	msg := &ndp.NeighborSolicitation{
		TargetAddress: ta,
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{Direction: ndp.Source, Addr: srcMAC},
		},
	}
	group := utilip.SolicitedNodeMulticast(target)
	return ndFrame(vid, srcMAC, utilip.MulticastMAC(group), srcIP, group, msg)
}

// NeighborAdvertisement answers a solicitation from dstIP at dstMAC for
// srcIP, owned by srcMAC.
func NeighborAdvertisement(vid uint16, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP) ([]byte, error) {
	ta, err := addr(srcIP)
	if err != nil {
		return nil, err
	}
	msg := &ndp.NeighborAdvertisement{
		Solicited:     true,
		Override:      true,
		TargetAddress: ta,
		Options: []ndp.Option{
			&ndp.LinkLayerAddress{Direction: ndp.Target, Addr: srcMAC},
		},
	}
	return ndFrame(vid, srcMAC, dstMAC, srcIP, dstIP, msg)
}

// RouterAdvertisement announces srcMAC at srcIP, a link-local address, as
// a router for prefixes, which hosts may use for address autoconfiguration.
func RouterAdvertisement(vid uint16, srcMAC net.HardwareAddr, srcIP net.IP, dstMAC net.HardwareAddr, dstIP net.IP, prefixes []*net.IPNet) ([]byte, error) {
	options := []ndp.Option{
		&ndp.LinkLayerAddress{Direction: ndp.Source, Addr: srcMAC},
	}
	for _, prefix := range prefixes {
		subnet := utilip.Subnet(prefix)
		a, err := addr(subnet.IP)
		if err != nil {
			return nil, err
		}
		ones, _ := subnet.Mask.Size()
		options = append(options, &ndp.PrefixInformation{
			PrefixLength:                   uint8(ones),
			OnLink:                         true,
			AutonomousAddressConfiguration: true,
			ValidLifetime:                  raValidLifetime,
			PreferredLifetime:              raPreferredLifetime,
			Prefix:                         a,
		})
	}
	msg := &ndp.RouterAdvertisement{
		CurrentHopLimit:           defaultTTL,
		RouterSelectionPreference: ndp.Medium,
		RouterLifetime:            raRouterLifetime,
		Options:                   options,
	}
	return ndFrame(vid, srcMAC, dstMAC, srcIP, dstIP, msg)
}

// EchoReply answers the echo request req from srcMAC, the controller's
// MAC.
func EchoReply(vid uint16, req *Packet, srcMAC net.HardwareAddr) ([]byte, error) {
	if req.Echo == nil {
		return nil, fmt.Errorf("not an echo request")
	}
	var payload []byte
	var err error
	if req.IsIPv6() {
		ip := &layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolICMPv6,
			HopLimit:   defaultTTL,
			SrcIP:      req.DstIP,
			DstIP:      req.SrcIP,
		}
		icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoReply, 0)}
		if err := icmp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		echo := &layers.ICMPv6Echo{Identifier: req.Echo.ID, SeqNumber: req.Echo.Seq}
		payload, err = serialize(ip, icmp, echo, gopacket.Payload(req.Echo.Data))
	} else {
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      defaultTTL,
			Protocol: layers.IPProtocolICMPv4,
			SrcIP:    req.DstIP,
			DstIP:    req.SrcIP,
		}
		icmp := &layers.ICMPv4{
			TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0),
			Id:       req.Echo.ID,
			Seq:      req.Echo.Seq,
		}
		payload, err = serialize(ip, icmp, gopacket.Payload(req.Echo.Data))
	}
	if err != nil {
		return nil, err
	}
	return frame(vid, srcMAC, req.EthSrc, req.EtherType, payload)
}

// Route rewrites data, an IP packet held while its next hop was resolved,
// for delivery to dstMAC on vid: the Ethernet addresses and tag are
// replaced and the TTL or hop limit decremented. A packet whose TTL would
// expire is refused.
func Route(data []byte, vid uint16, srcMAC, dstMAC net.HardwareAddr) ([]byte, error) {
	var f ethernet.Frame
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("invalid Ethernet frame: %w", err)
	}
	var payload []byte
	var err error
	switch f.EtherType {
	case ethernet.EtherTypeIPv4:
		pkt := gopacket.NewPacket(f.Payload, layers.LayerTypeIPv4, gopacket.Default)
		ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		if !ok || ip.TTL <= 1 {
			return nil, fmt.Errorf("cannot route IPv4 packet")
		}
		ip.TTL--
		payload, err = serialize(ip, gopacket.Payload(ip.Payload))
	case ethernet.EtherTypeIPv6:
		pkt := gopacket.NewPacket(f.Payload, layers.LayerTypeIPv6, gopacket.Default)
		ip, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		if !ok || ip.HopLimit <= 1 {
			return nil, fmt.Errorf("cannot route IPv6 packet")
		}
		ip.HopLimit--
		payload, err = serialize(ip, gopacket.Payload(ip.Payload))
	default:
		return nil, fmt.Errorf("cannot route EtherType %#04x", uint16(f.EtherType))
	}
	if err != nil {
		return nil, err
	}
	return frame(vid, srcMAC, dstMAC, f.EtherType, payload)
}
