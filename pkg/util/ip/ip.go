// Copyright 2020 Antrea Authors
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

package ip

import (
	"fmt"
	"net"

	utilnet "k8s.io/utils/net"
)

const (
	V4BitLen = 8 * net.IPv4len
	V6BitLen = 8 * net.IPv6len
)

// Normalize returns the 4-byte form of IPv4 addresses, and ip unchanged
// otherwise.
func Normalize(ip net.IP) net.IP {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4
	}
	return ip
}

// Version returns 4 or 6.
func Version(ip net.IP) int {
	if utilnet.IsIPv4(ip) {
		return 4
	}
	return 6
}

// Subnet returns the network of ipNet, e.g. 10.0.0.0/24 for 10.0.0.254/24.
func Subnet(ipNet *net.IPNet) *net.IPNet {
	return &net.IPNet{IP: ipNet.IP.Mask(ipNet.Mask), Mask: ipNet.Mask}
}

// SolicitedNodeMulticast returns the solicited-node multicast address of
// ip, to which neighbor solicitations for ip are sent.
func SolicitedNodeMulticast(ip net.IP) net.IP {
	ip16 := ip.To16()
	return net.IP{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01, 0xff, ip16[13], ip16[14], ip16[15]}
}

// MulticastMAC returns the Ethernet destination of packets sent to the
// IPv6 multicast address ip.
func MulticastMAC(ip net.IP) net.HardwareAddr {
	ip16 := ip.To16()
	return net.HardwareAddr{0x33, 0x33, ip16[12], ip16[13], ip16[14], ip16[15]}
}

const (
	ICMPProtocol   = 1
	TCPProtocol    = 6
	UDPProtocol    = 17
	ICMPv6Protocol = 58
	SCTPProtocol   = 132
)

// IPProtocolNumberToString returns the string name of the IP protocol with number protocolNum. If
// the number does not match a "known" protocol, we return the defaultValue string.
func IPProtocolNumberToString(protocolNum uint8, defaultValue string) string {
	switch protocolNum {
	case ICMPProtocol:
		return "ICMP"
	case TCPProtocol:
		return "TCP"
	case UDPProtocol:
		return "UDP"
	case ICMPv6Protocol:
		return "IPv6-ICMP"
	case SCTPProtocol:
		return "SCTP"
	default:
		return defaultValue
	}
}

// MustParseCIDR turns the given string into IPNet or panics, for tests or other cases where the string must be valid.
// The IP of the result keeps the address of the string, e.g. 10.0.0.254 for 10.0.0.254/24.
func MustParseCIDR(cidr string) *net.IPNet {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Errorf("cannot parse '%v': %v", cidr, err))
	}
	ipNet.IP = Normalize(ip)
	return ipNet
}

func MustIPv6(s string) net.IP {
	ip := net.ParseIP(s)
	if !utilnet.IsIPv6(ip) {
		panic(fmt.Errorf("invalid IPv6 address: %s", s))
	}
	return ip
}

func MustParseMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(fmt.Errorf("invalid MAC address: %s", s))
	}
	return mac
}
