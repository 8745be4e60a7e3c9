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

// Package openflow compiles the resolved configuration of one datapath and
// its runtime state into the flows and groups of the fixed multi-table
// pipeline.
package openflow

import (
	"net"
	"sync"

	"k8s.io/apimachinery/pkg/util/sets"

	"antrea.io/faucet/pkg/faucet/config"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

const (
	// Flow table id index
	PortACLTable binding.TableIDType = 0
	VLANTable    binding.TableIDType = 1
	VLANACLTable binding.TableIDType = 2
	EthSrcTable  binding.TableIDType = 3
	IPv4FIBTable binding.TableIDType = 4
	IPv6FIBTable binding.TableIDType = 5
	EthDstTable  binding.TableIDType = 6
	FloodTable   binding.TableIDType = 7

	// Flow priority level
	PriorityHighest = uint16(9099)
	PriorityHigh    = uint16(9001)
	PriorityLow     = uint16(9000)
	PriorityLowest  = uint16(0)

	// FaucetCookie is set on every flow installed by the controller.
	FaucetCookie = uint64(0x5adc15c0)
)

// TableNames maps every pipeline table to its name.
var TableNames = map[binding.TableIDType]string{
	PortACLTable: "port_acl",
	VLANTable:    "vlan",
	VLANACLTable: "vlan_acl",
	EthSrcTable:  "eth_src",
	IPv4FIBTable: "ipv4_fib",
	IPv6FIBTable: "ipv6_fib",
	EthDstTable:  "eth_dst",
	FloodTable:   "flood",
}

var (
	multicastMAC = net.HardwareAddr{0x01, 0, 0, 0, 0, 0}
)

// Host is a learned (MAC, VLAN) binding.
type Host struct {
	MAC       net.HardwareAddr
	VID       uint16
	Port      uint32
	Permanent bool
}

// LearnBan stops learning on a port of a VLAN, or on the whole VLAN when
// Port is 0, until the ban times out on the switch.
type LearnBan struct {
	Port uint32
	VID  uint16
}

// Neighbor is a resolved IP to MAC binding on a VLAN.
type Neighbor struct {
	VID uint16
	IP  net.IP
	MAC net.HardwareAddr
}

// Route is a static or BGP learned route. Gateway must be a neighbor on VID
// for the route to forward; Unreachable routes drop instead of being sent
// to the controller for resolution.
type Route struct {
	VID         uint16
	Dst         *net.IPNet
	Gateway     net.IP
	Unreachable bool
}

// State is the runtime state the flows of a datapath depend on, besides
// its configuration.
type State struct {
	Hosts     []Host
	LearnBans []LearnBan
	Neighbors []Neighbor
	Routes    []Route
	// AuthenticatedPorts holds the access ports that passed
	// authentication.
	AuthenticatedPorts sets.Set[uint32]
}

// Compiler computes the desired flows and groups of one datapath. It owns
// the group ids allocated to route next hops, so that recompiling the same
// input returns the same ids.
type Compiler struct {
	// mutex protects nextHopGroups and the allocator.
	mutex         sync.Mutex
	groups        GroupAllocator
	nextHopGroups map[string]binding.GroupIDType
}

func NewCompiler() *Compiler {
	return &Compiler{
		groups:        NewGroupAllocator(),
		nextHopGroups: make(map[string]binding.GroupIDType),
	}
}

// pipeline collects the flows of one compilation.
type pipeline struct {
	dp    *config.DP
	state *State
	flows *FlowSet
	// hostPorts maps a "vid/mac" key to the port the host was learned on.
	hostPorts map[string]uint32
}

func hostKey(vid uint16, mac net.HardwareAddr) string {
	return vlanKey(vid, mac.String())
}

// Compile returns the complete set of flows and groups for dp in the given
// state. The result depends only on its input and the next hop groups
// allocated by previous calls.
func (c *Compiler) Compile(dp *config.DP, state *State) *FlowSet {
	if state == nil {
		state = &State{}
	}
	p := &pipeline{
		dp:        dp,
		state:     state,
		flows:     NewFlowSet(),
		hostPorts: make(map[string]uint32, len(state.Hosts)),
	}
	for _, h := range state.Hosts {
		p.hostPorts[hostKey(h.VID, h.MAC)] = h.Port
	}

	p.portACLFlows()
	p.vlanFlows()
	p.vlanACLFlows()
	p.ethSrcFlows()
	c.fibFlows(p)
	p.ethDstFlows()
	p.floodFlows()
	return p.flows
}

func (p *pipeline) add(flow *binding.Flow) {
	flow.Cookie = FaucetCookie
	p.flows.AddFlow(flow)
}

func (p *pipeline) addGroup(group *binding.Group) {
	p.flows.AddGroup(group)
}

// dropFlow installs an explicit table miss drop.
func (p *pipeline) dropFlow(table binding.TableIDType) {
	p.add(binding.NewFlowBuilder(table, PriorityLowest).Done())
}

// outputActions returns the actions that send a tagged packet of vid out
// of port, popping the tag on native ports and copying it to the port's
// mirrors.
func (p *pipeline) outputActions(port *config.Port, vid uint16) []binding.Action {
	var actions []binding.Action
	if !port.IsStack() && !port.IsTagged(vid) {
		actions = append(actions, &binding.PopVLANAction{})
	}
	actions = append(actions, &binding.OutputAction{Port: port.Number})
	for _, m := range p.dp.MirroredBy(port.Number) {
		actions = append(actions, &binding.OutputAction{Port: m})
	}
	return actions
}
