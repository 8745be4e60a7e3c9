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

// Package config parses the declarative network description (datapaths,
// VLANs, ports, ACLs, routers) into a resolved and validated object graph.
package config

import (
	"net"
	"time"
)

const (
	SupportedVersion = 2

	DefaultHardware              = "Open vSwitch"
	DefaultHostTimeout           = 300 * time.Second
	DefaultARPNeighborTimeout    = 500 * time.Second
	DefaultMaxResolveBackoffTime = 32 * time.Second
	DefaultLearnBanTimeout       = 10 * time.Second
	DefaultAdvertiseInterval     = 30 * time.Second
	DefaultAuthSessionTimeout    = 3600 * time.Second
	DefaultFaucetMAC             = "0e:00:00:00:00:01"

	// MaxVID is the largest valid 802.1Q VLAN id.
	MaxVID = 4094
)

type AuthMode string

const (
	AuthModeNone   AuthMode = ""
	AuthModeAccess AuthMode = "access"
)

// Config is the resolved network configuration shared, read-only, by all
// datapath controllers.
type Config struct {
	DPs     map[string]*DP
	VLANs   map[uint16]*VLAN
	ACLs    map[string]*ACL
	Routers map[string]*Router
	// Files lists every file that was read to build the Config, the main
	// file first.
	Files []string `json:"-"`
}

type DP struct {
	Name        string
	DPID        uint64
	Hardware    string
	Description string

	Timeout               time.Duration
	ARPNeighborTimeout    time.Duration
	MaxResolveBackoffTime time.Duration
	LearnBanTimeout       time.Duration
	// AdvertiseInterval is the period of IPv6 router advertisements, 0
	// when only solicitations are answered.
	AdvertiseInterval     time.Duration
	ProactiveLearn        bool
	GroupTable            bool
	DropLLDP              bool
	DropBroadcastSource   bool
	FaucetMAC             net.HardwareAddr
	OFChannelLog          string

	Stack *DPStack
	Auth  *AuthConfig

	// Ports is keyed by port number. PortNumbers holds the same numbers
	// in ascending order.
	Ports       map[uint32]*Port
	PortNumbers []uint32

	// VLANs carried by at least one edge port of this DP, keyed by vid.
	VLANs map[uint16]*VLAN
	// Routers whose VLANs are all present on this DP.
	Routers []*Router
}

type DPStack struct {
	Priority int
}

type AuthConfig struct {
	PortalMAC      net.HardwareAddr
	PortalPort     uint32
	SessionTimeout time.Duration
}

type Port struct {
	Number      uint32
	Name        string
	Description string
	Enabled     bool
	OutputOnly  bool

	NativeVLAN  *VLAN
	TaggedVLANs []*VLAN

	ACLIn          *ACL
	UnicastFlood   bool
	MaxHosts       int
	PermanentLearn bool
	AuthMode       AuthMode
	// Mirror is the number of the port whose traffic is copied to this
	// port, 0 when the port mirrors nothing.
	Mirror uint32

	Stack *PortStack
}

type PortStack struct {
	DPName string
	Port   uint32

	portName string
}

// VLANs returns all VLANs the port is a member of, native first.
func (p *Port) VLANs() []*VLAN {
	var vlans []*VLAN
	if p.NativeVLAN != nil {
		vlans = append(vlans, p.NativeVLAN)
	}
	return append(vlans, p.TaggedVLANs...)
}

// IsTagged reports whether traffic for vid leaves the port with a VLAN tag.
func (p *Port) IsTagged(vid uint16) bool {
	for _, v := range p.TaggedVLANs {
		if v.VID == vid {
			return true
		}
	}
	return false
}

func (p *Port) IsMember(vid uint16) bool {
	return (p.NativeVLAN != nil && p.NativeVLAN.VID == vid) || p.IsTagged(vid)
}

func (p *Port) IsStack() bool {
	return p.Stack != nil
}

type VLAN struct {
	VID         uint16
	Name        string
	Description string

	ACLIn        *ACL
	UnicastFlood bool
	MaxHosts     int

	// FaucetVIPs are the controller's addresses on this VLAN. IP holds
	// the VIP itself and the mask the connected subnet.
	FaucetVIPs []*net.IPNet
	Routes     []*Route
	BGP        *BGPConfig
}

// IPv4VIPs and IPv6VIPs split FaucetVIPs by address family.
func (v *VLAN) IPv4VIPs() []*net.IPNet {
	var vips []*net.IPNet
	for _, vip := range v.FaucetVIPs {
		if vip.IP.To4() != nil {
			vips = append(vips, vip)
		}
	}
	return vips
}

func (v *VLAN) IPv6VIPs() []*net.IPNet {
	var vips []*net.IPNet
	for _, vip := range v.FaucetVIPs {
		if vip.IP.To4() == nil {
			vips = append(vips, vip)
		}
	}
	return vips
}

// IsVIP reports whether ip is one of the VLAN's VIPs.
func (v *VLAN) IsVIP(ip net.IP) bool {
	for _, vip := range v.FaucetVIPs {
		if vip.IP.Equal(ip) {
			return true
		}
	}
	return false
}

// ConnectedVIP returns the VIP whose subnet contains ip.
func (v *VLAN) ConnectedVIP(ip net.IP) *net.IPNet {
	for _, vip := range v.FaucetVIPs {
		if vip.Contains(ip) {
			return vip
		}
	}
	return nil
}

type Route struct {
	Dst     *net.IPNet
	Gateway net.IP
}

type BGPConfig struct {
	Port              int32
	AS                uint32
	RouterID          string
	NeighborAddresses []net.IP
	NeighborAS        uint32
}

type ACL struct {
	Name  string
	Rules []*Rule
}

type Rule struct {
	Name    string
	Match   Match
	Actions Actions
}

// Match holds the optional predicates of an ACL rule. Zero values mean
// "not matched".
type Match struct {
	EthType   uint16
	EthSrc    net.HardwareAddr
	EthSrcMsk net.HardwareAddr
	EthDst    net.HardwareAddr
	EthDstMsk net.HardwareAddr
	IPProto   uint8
	TPDst     uint16
	VLANVID   uint16
	InPort    uint32
	IPv4Dst   *net.IPNet
	IPv6Dst   *net.IPNet
	ARPTpa    net.IP
}

// Actions is the validated form of an ACL rule's action set. Allow is nil
// when the rule only outputs.
type Actions struct {
	Allow *bool
	// SetDstMAC rewrites the destination before the rule's other actions.
	SetDstMAC net.HardwareAddr
	Output    *OutputAction
	// Mirror is the port receiving a copy, unset when both fields are
	// zero. Names are resolved against the DP using the ACL.
	Mirror     uint32
	MirrorName string
}

type OutputAction struct {
	Port     uint32
	PortName string
	SetDst   net.HardwareAddr
	VLANVID  uint16
	PushVIDs []uint16
	PopVLANs bool
}

type Router struct {
	Name  string
	VLANs []*VLAN
}

// Has reports whether the router routes for vid.
func (r *Router) Has(vid uint16) bool {
	for _, v := range r.VLANs {
		if v.VID == vid {
			return true
		}
	}
	return false
}

// EdgePorts returns the non-stack ports of the DP in ascending order.
func (dp *DP) EdgePorts() []*Port {
	var ports []*Port
	for _, n := range dp.PortNumbers {
		if p := dp.Ports[n]; !p.IsStack() {
			ports = append(ports, p)
		}
	}
	return ports
}

// StackPorts returns the stack ports of the DP in ascending order.
func (dp *DP) StackPorts() []*Port {
	var ports []*Port
	for _, n := range dp.PortNumbers {
		if p := dp.Ports[n]; p.IsStack() {
			ports = append(ports, p)
		}
	}
	return ports
}

// VLANPorts returns the ports carrying vid, including stack ports, in
// ascending order.
func (dp *DP) VLANPorts(vid uint16) []*Port {
	var ports []*Port
	for _, n := range dp.PortNumbers {
		p := dp.Ports[n]
		if p.IsStack() || p.IsMember(vid) {
			ports = append(ports, p)
		}
	}
	return ports
}

// SortedVIDs returns the vids of the DP's VLANs in ascending order.
func (dp *DP) SortedVIDs() []uint16 {
	vids := make([]uint16, 0, len(dp.VLANs))
	for vid := range dp.VLANs {
		vids = append(vids, vid)
	}
	sortVIDs(vids)
	return vids
}

// RoutedVLANs returns the VLANs that vid is routed with through a Router,
// vid itself excluded.
func (dp *DP) RoutedVLANs(vid uint16) []*VLAN {
	seen := map[uint16]bool{vid: true}
	var vlans []*VLAN
	for _, r := range dp.Routers {
		if !r.Has(vid) {
			continue
		}
		for _, v := range r.VLANs {
			if !seen[v.VID] {
				seen[v.VID] = true
				vlans = append(vlans, v)
			}
		}
	}
	return vlans
}

// ResolvePort returns the number of the port given either by number or by
// name.
func (dp *DP) ResolvePort(number uint32, name string) (uint32, bool) {
	if name == "" {
		_, ok := dp.Ports[number]
		return number, ok
	}
	for _, n := range dp.PortNumbers {
		if dp.Ports[n].Name == name {
			return n, true
		}
	}
	return 0, false
}

// MirroredBy returns the port numbers that receive a copy of port's
// traffic.
func (dp *DP) MirroredBy(port uint32) []uint32 {
	var mirrors []uint32
	for _, n := range dp.PortNumbers {
		if dp.Ports[n].Mirror == port {
			mirrors = append(mirrors, n)
		}
	}
	return mirrors
}
