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

package openflow

import (
	"net"
)

// FlowBuilder constructs a Flow one field at a time.
type FlowBuilder struct {
	flow Flow
}

// ActionBuilder appends actions to the Flow of a FlowBuilder.
type ActionBuilder struct {
	builder *FlowBuilder
}

// NewFlowBuilder returns a FlowBuilder for a flow in table with the given
// priority.
func NewFlowBuilder(table TableIDType, priority uint16) *FlowBuilder {
	return &FlowBuilder{flow: Flow{Table: table, Priority: priority}}
}

func (b *FlowBuilder) MatchInPort(port uint32) *FlowBuilder {
	b.flow.Match.InPort = port
	return b
}

// MatchVLAN matches tagged packets of the given vid.
func (b *FlowBuilder) MatchVLAN(vid uint16) *FlowBuilder {
	b.flow.Match.VLANVID = &vid
	return b
}

// MatchNoVLAN matches packets without a VLAN tag.
func (b *FlowBuilder) MatchNoVLAN() *FlowBuilder {
	var none uint16
	b.flow.Match.VLANVID = &none
	return b
}

func (b *FlowBuilder) MatchEthSrc(mac net.HardwareAddr) *FlowBuilder {
	b.flow.Match.EthSrc = mac
	return b
}

func (b *FlowBuilder) MatchEthSrcWithMask(mac, mask net.HardwareAddr) *FlowBuilder {
	b.flow.Match.EthSrc = mac
	b.flow.Match.EthSrcMask = mask
	return b
}

func (b *FlowBuilder) MatchEthDst(mac net.HardwareAddr) *FlowBuilder {
	b.flow.Match.EthDst = mac
	return b
}

func (b *FlowBuilder) MatchEthDstWithMask(mac, mask net.HardwareAddr) *FlowBuilder {
	b.flow.Match.EthDst = mac
	b.flow.Match.EthDstMask = mask
	return b
}

func (b *FlowBuilder) MatchEthType(ethType uint16) *FlowBuilder {
	b.flow.Match.EthType = ethType
	return b
}

func (b *FlowBuilder) MatchIPProto(proto uint8) *FlowBuilder {
	b.flow.Match.IPProto = proto
	return b
}

func (b *FlowBuilder) MatchIPv4Dst(dst *net.IPNet) *FlowBuilder {
	b.flow.Match.IPv4Dst = dst
	return b
}

func (b *FlowBuilder) MatchIPv6Dst(dst *net.IPNet) *FlowBuilder {
	b.flow.Match.IPv6Dst = dst
	return b
}

func (b *FlowBuilder) MatchARPTpa(ip net.IP) *FlowBuilder {
	b.flow.Match.ARPTpa = ip
	return b
}

func (b *FlowBuilder) MatchTPDst(port uint16) *FlowBuilder {
	b.flow.Match.TPDst = port
	return b
}

// MatchFields merges all set fields of m into the flow's match.
func (b *FlowBuilder) MatchFields(m Match) *FlowBuilder {
	dst := &b.flow.Match
	if m.InPort != 0 {
		dst.InPort = m.InPort
	}
	if m.VLANVID != nil {
		dst.VLANVID = m.VLANVID
	}
	if m.EthSrc != nil {
		dst.EthSrc, dst.EthSrcMask = m.EthSrc, m.EthSrcMask
	}
	if m.EthDst != nil {
		dst.EthDst, dst.EthDstMask = m.EthDst, m.EthDstMask
	}
	if m.EthType != 0 {
		dst.EthType = m.EthType
	}
	if m.IPProto != 0 {
		dst.IPProto = m.IPProto
	}
	if m.IPv4Dst != nil {
		dst.IPv4Dst = m.IPv4Dst
	}
	if m.IPv6Dst != nil {
		dst.IPv6Dst = m.IPv6Dst
	}
	if m.ARPTpa != nil {
		dst.ARPTpa = m.ARPTpa
	}
	if m.TPDst != 0 {
		dst.TPDst = m.TPDst
	}
	return b
}

func (b *FlowBuilder) SetHardTimeout(timeout uint16) *FlowBuilder {
	b.flow.HardTimeout = timeout
	return b
}

func (b *FlowBuilder) SetIdleTimeout(timeout uint16) *FlowBuilder {
	b.flow.IdleTimeout = timeout
	return b
}

func (b *FlowBuilder) Cookie(cookie uint64) *FlowBuilder {
	b.flow.Cookie = cookie
	return b
}

// Action returns an ActionBuilder to append actions to the flow.
func (b *FlowBuilder) Action() *ActionBuilder {
	return &ActionBuilder{builder: b}
}

// Done returns the constructed Flow. A flow without actions drops.
func (b *FlowBuilder) Done() *Flow {
	f := b.flow
	return &f
}

func (a *ActionBuilder) add(action Action) *ActionBuilder {
	a.builder.flow.Actions = append(a.builder.flow.Actions, action)
	return a
}

func (a *ActionBuilder) Output(port uint32) *ActionBuilder {
	return a.add(&OutputAction{Port: port})
}

// SendToController outputs the whole packet to the controller.
func (a *ActionBuilder) SendToController() *ActionBuilder {
	return a.add(&OutputAction{Port: ControllerPort})
}

func (a *ActionBuilder) Group(id GroupIDType) *ActionBuilder {
	return a.add(&GroupAction{ID: id})
}

func (a *ActionBuilder) PushVLAN(vid uint16) *ActionBuilder {
	a.add(&PushVLANAction{EtherType: EtherTypeVLAN})
	return a.add(&SetVLANAction{VID: vid})
}

func (a *ActionBuilder) SetVLAN(vid uint16) *ActionBuilder {
	return a.add(&SetVLANAction{VID: vid})
}

func (a *ActionBuilder) PopVLAN() *ActionBuilder {
	return a.add(&PopVLANAction{})
}

func (a *ActionBuilder) SetEthDst(mac net.HardwareAddr) *ActionBuilder {
	return a.add(&SetEthDstAction{MAC: mac})
}

func (a *ActionBuilder) SetEthSrc(mac net.HardwareAddr) *ActionBuilder {
	return a.add(&SetEthSrcAction{MAC: mac})
}

func (a *ActionBuilder) DecNwTTL() *ActionBuilder {
	return a.add(&DecNwTTLAction{})
}

// Actions appends already constructed actions.
func (a *ActionBuilder) Actions(actions ...Action) *ActionBuilder {
	for _, action := range actions {
		a.add(action)
	}
	return a
}

// GotoTable ends the action list by continuing in table.
func (a *ActionBuilder) GotoTable(table TableIDType) *FlowBuilder {
	a.builder.flow.GotoTable = &table
	return a.builder
}

// Drop ends the action list without any further action.
func (a *ActionBuilder) Drop() *FlowBuilder {
	return a.builder
}

func (a *ActionBuilder) Done() *Flow {
	return a.builder.Done()
}
