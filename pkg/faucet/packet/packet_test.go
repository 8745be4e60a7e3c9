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
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/ndp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	utilip "antrea.io/faucet/pkg/util/ip"
)

var (
	faucetMAC, _ = net.ParseMAC("0e:00:00:00:00:01")
	hostMAC, _   = net.ParseMAC("0e:00:00:00:01:01")
	gwMAC, _     = net.ParseMAC("0e:00:00:00:02:01")

	vip4  = net.ParseIP("10.0.0.254")
	host4 = net.ParseIP("10.0.0.5")
	vip6  = net.ParseIP("fc00::1:254")
	host6 = net.ParseIP("fc00::1:5")
)

// ipFrame builds an Ethernet frame, tagged when vid is not 0, around ls.
func ipFrame(t *testing.T, vid uint16, etherType layers.EthernetType, ls ...gopacket.SerializableLayer) []byte {
	eth := &layers.Ethernet{SrcMAC: hostMAC, DstMAC: faucetMAC, EthernetType: etherType}
	all := []gopacket.SerializableLayer{eth}
	if vid != 0 {
		eth.EthernetType = layers.EthernetTypeDot1Q
		all = append(all, &layers.Dot1Q{VLANIdentifier: vid, Type: etherType})
	}
	all = append(all, ls...)
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}, all...))
	return buf.Bytes()
}

func echoRequest4(t *testing.T, vid uint16, ttl uint8) []byte {
	return ipFrame(t, vid, layers.EthernetTypeIPv4,
		&layers.IPv4{Version: 4, IHL: 5, TTL: ttl, Protocol: layers.IPProtocolICMPv4, SrcIP: host4, DstIP: vip4},
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 7, Seq: 1},
		gopacket.Payload("ping"))
}

func TestARP(t *testing.T) {
	data, err := ARPRequest(100, faucetMAC, vip4, host4)
	require.NoError(t, err)
	// 14 bytes of header, 4 of tag and the padded payload.
	assert.Len(t, data, 64)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), p.VID)
	assert.Equal(t, ethernet.Broadcast, p.EthDst)
	assert.Equal(t, faucetMAC, p.EthSrc)
	require.NotNil(t, p.ARP)
	assert.Equal(t, arp.OperationRequest, p.ARP.Operation)
	assert.Equal(t, "10.0.0.254", p.ARP.SenderIP.String())
	assert.Equal(t, "10.0.0.5", p.ARP.TargetIP.String())

	data, err = ARPReply(0, faucetMAC, vip4, hostMAC, host4)
	require.NoError(t, err)
	p, err = Parse(data)
	require.NoError(t, err)
	assert.Zero(t, p.VID)
	assert.Equal(t, hostMAC, p.EthDst)
	assert.Equal(t, arp.OperationReply, p.ARP.Operation)
	assert.Equal(t, faucetMAC, p.ARP.SenderHardwareAddr)
	assert.Equal(t, hostMAC, p.ARP.TargetHardwareAddr)
}

func TestNeighborDiscovery(t *testing.T) {
	data, err := NeighborSolicitation(100, faucetMAC, vip6, host6)
	require.NoError(t, err)
	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), p.VID)
	assert.Equal(t, "33:33:ff:01:00:05", p.EthDst.String())
	assert.Equal(t, "ff02::1:ff01:5", p.DstIP.String())
	assert.True(t, p.IsIPv6())
	require.IsType(t, &ndp.NeighborSolicitation{}, p.ND)
	assert.Equal(t, "fc00::1:5", p.NDTarget().String())
	assert.Equal(t, faucetMAC, p.NDSource())

	data, err = NeighborAdvertisement(0, faucetMAC, vip6, hostMAC, host6)
	require.NoError(t, err)
	p, err = Parse(data)
	require.NoError(t, err)
	assert.Zero(t, p.VID)
	assert.Equal(t, hostMAC, p.EthDst)
	na, ok := p.ND.(*ndp.NeighborAdvertisement)
	require.True(t, ok)
	assert.True(t, na.Solicited)
	assert.True(t, na.Override)
	assert.Equal(t, "fc00::1:254", p.NDTarget().String())
	assert.Equal(t, faucetMAC, p.NDSource())

	// The checksum is valid.
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	ip := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	assert.Equal(t, uint8(255), ip.HopLimit)
	icmp := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
	expected := icmp.Checksum
	require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{ComputeChecksums: true}, icmp, gopacket.Payload(icmp.Payload)))
	assert.Equal(t, expected, icmp.Checksum)
}

func TestEchoReply(t *testing.T) {
	t.Run("IPv4", func(t *testing.T) {
		p, err := Parse(echoRequest4(t, 100, 64))
		require.NoError(t, err)
		require.NotNil(t, p.Echo)
		assert.Equal(t, Echo{ID: 7, Seq: 1, Data: []byte("ping")}, *p.Echo)

		reply, err := EchoReply(p.VID, p, faucetMAC)
		require.NoError(t, err)
		pkt := gopacket.NewPacket(reply, layers.LayerTypeEthernet, gopacket.Default)
		eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
		assert.Equal(t, hostMAC, eth.DstMAC)
		assert.Equal(t, uint16(100), pkt.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q).VLANIdentifier)
		ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		assert.Equal(t, "10.0.0.254", ip.SrcIP.String())
		assert.Equal(t, "10.0.0.5", ip.DstIP.String())
		icmp := pkt.Layer(layers.LayerTypeICMPv4).(*layers.ICMPv4)
		assert.Equal(t, uint8(layers.ICMPv4TypeEchoReply), icmp.TypeCode.Type())
		assert.Equal(t, uint16(7), icmp.Id)
		assert.Equal(t, []byte("ping"), icmp.Payload)
	})

	t.Run("IPv6", func(t *testing.T) {
		ip := &layers.IPv6{Version: 6, NextHeader: layers.IPProtocolICMPv6, HopLimit: 64, SrcIP: host6, DstIP: vip6}
		icmp := &layers.ICMPv6{TypeCode: layers.CreateICMPv6TypeCode(layers.ICMPv6TypeEchoRequest, 0)}
		require.NoError(t, icmp.SetNetworkLayerForChecksum(ip))
		data := ipFrame(t, 0, layers.EthernetTypeIPv6, ip, icmp,
			&layers.ICMPv6Echo{Identifier: 9, SeqNumber: 3}, gopacket.Payload("ping6"))

		p, err := Parse(data)
		require.NoError(t, err)
		require.NotNil(t, p.Echo)
		assert.Equal(t, uint16(9), p.Echo.ID)

		reply, err := EchoReply(0, p, faucetMAC)
		require.NoError(t, err)
		pkt := gopacket.NewPacket(reply, layers.LayerTypeEthernet, gopacket.Default)
		assert.Nil(t, pkt.Layer(layers.LayerTypeDot1Q))
		replyIP := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		assert.Equal(t, "fc00::1:254", replyIP.SrcIP.String())
		echo := pkt.Layer(layers.LayerTypeICMPv6Echo).(*layers.ICMPv6Echo)
		assert.Equal(t, uint16(3), echo.SeqNumber)
		assert.Equal(t, []byte("ping6"), echo.Payload)
	})

	_, err := EchoReply(0, &Packet{}, faucetMAC)
	assert.Error(t, err)
}

func TestRoute(t *testing.T) {
	routed, err := Route(echoRequest4(t, 0, 64), 200, faucetMAC, gwMAC)
	require.NoError(t, err)
	pkt := gopacket.NewPacket(routed, layers.LayerTypeEthernet, gopacket.Default)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, faucetMAC, eth.SrcMAC)
	assert.Equal(t, gwMAC, eth.DstMAC)
	assert.Equal(t, uint16(200), pkt.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q).VLANIdentifier)
	ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, uint8(63), ip.TTL)
	assert.Equal(t, "10.0.0.254", ip.DstIP.String())

	_, err = Route(echoRequest4(t, 0, 1), 200, faucetMAC, gwMAC)
	assert.Error(t, err)

	arpData, err := ARPRequest(0, faucetMAC, vip4, host4)
	require.NoError(t, err)
	_, err = Route(arpData, 200, faucetMAC, gwMAC)
	assert.EqualError(t, err, "cannot route EtherType 0x0806")
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte{0x01, 0x02})
	assert.Error(t, err)

	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: host4, DstIP: vip4}
	udp := &layers.UDP{SrcPort: 1000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	p, err := Parse(ipFrame(t, 0, layers.EthernetTypeIPv4, ip, udp))
	require.NoError(t, err)
	assert.Nil(t, p.Echo)
	assert.Nil(t, p.ARP)
	assert.Equal(t, "10.0.0.5", p.SrcIP.String())
	assert.Equal(t, uint8(layers.IPProtocolUDP), p.Protocol)
	assert.Equal(t, "UDP", p.ProtocolName())
	p.Protocol = 89
	assert.Equal(t, "89", p.ProtocolName())
}

func TestRouterDiscovery(t *testing.T) {
	allRouters := net.ParseIP("ff02::2")
	hostLinkLocal := net.ParseIP("fe80::1:5")
	rs, err := ndFrame(100, hostMAC, utilip.MulticastMAC(allRouters), hostLinkLocal, allRouters, &ndp.RouterSolicitation{
		Options: []ndp.Option{&ndp.LinkLayerAddress{Direction: ndp.Source, Addr: hostMAC}},
	})
	require.NoError(t, err)
	p, err := Parse(rs)
	require.NoError(t, err)
	require.IsType(t, &ndp.RouterSolicitation{}, p.ND)
	assert.Equal(t, hostMAC, p.NDSource())
	assert.Equal(t, uint8(layers.IPProtocolICMPv6), p.Protocol)

	allNodes := net.ParseIP("ff02::1")
	prefixes := []*net.IPNet{
		{IP: net.ParseIP("fc00::1:254"), Mask: net.CIDRMask(112, 128)},
		{IP: net.ParseIP("fc00::2:254"), Mask: net.CIDRMask(112, 128)},
	}
	data, err := RouterAdvertisement(100, faucetMAC, net.ParseIP("fe80::1:254"), utilip.MulticastMAC(allNodes), allNodes, prefixes)
	require.NoError(t, err)

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	eth := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	assert.Equal(t, "33:33:00:00:00:01", eth.DstMAC.String())
	assert.Equal(t, faucetMAC, eth.SrcMAC)
	ip := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	assert.Equal(t, "fe80::1:254", ip.SrcIP.String())
	assert.Equal(t, "ff02::1", ip.DstIP.String())
	assert.Equal(t, uint8(255), ip.HopLimit)
	icmp := pkt.Layer(layers.LayerTypeICMPv6).(*layers.ICMPv6)
	msg, err := ndp.ParseMessage(append(append([]byte{}, icmp.Contents...), icmp.Payload...))
	require.NoError(t, err)
	ra, ok := msg.(*ndp.RouterAdvertisement)
	require.True(t, ok)
	assert.Equal(t, 1800*time.Second, ra.RouterLifetime)
	require.Len(t, ra.Options, 3)
	assert.Equal(t, &ndp.LinkLayerAddress{Direction: ndp.Source, Addr: faucetMAC}, ra.Options[0])
	var advertised []string
	for _, o := range ra.Options[1:] {
		pi, ok := o.(*ndp.PrefixInformation)
		require.True(t, ok)
		assert.True(t, pi.OnLink)
		assert.True(t, pi.AutonomousAddressConfiguration)
		advertised = append(advertised, fmt.Sprintf("%s/%d", pi.Prefix, pi.PrefixLength))
	}
	assert.Equal(t, []string{"fc00::1:0/112", "fc00::2:0/112"}, advertised)
}
