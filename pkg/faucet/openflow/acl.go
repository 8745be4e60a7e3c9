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
	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/config"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

// aclDefaultDropPriority is used for the drop ending every ACL: a packet no
// rule matches is discarded.
const aclDefaultDropPriority = PriorityLowest + 1

// ruleMatch converts the predicates of an ACL rule.
func ruleMatch(m *config.Match) binding.Match {
	match := binding.Match{
		InPort:     m.InPort,
		EthSrc:     m.EthSrc,
		EthSrcMask: m.EthSrcMsk,
		EthDst:     m.EthDst,
		EthDstMask: m.EthDstMsk,
		EthType:    m.EthType,
		IPProto:    m.IPProto,
		IPv4Dst:    m.IPv4Dst,
		IPv6Dst:    m.IPv6Dst,
		ARPTpa:     m.ARPTpa,
		TPDst:      m.TPDst,
	}
	if m.VLANVID != 0 {
		vid := m.VLANVID
		match.VLANVID = &vid
	}
	return match
}

// aclFlows returns the flows of acl in table, restricted by base. Allowed
// packets continue in next. untagged tells whether the packets matched by
// base carry no VLAN tag, in which case an output rewriting the vid pushes
// a tag instead.
func (p *pipeline) aclFlows(acl *config.ACL, table, next binding.TableIDType, base binding.Match, untagged bool) []*binding.Flow {
	var flows []*binding.Flow
	for i, rule := range acl.Rules {
		priority := PriorityHighest - uint16(i)
		if priority <= aclDefaultDropPriority {
			klog.InfoS("ACL has too many rules, ignoring the rest", "acl", acl.Name, "dpid", p.dp.DPID, "rules", len(acl.Rules))
			break
		}
		b := binding.NewFlowBuilder(table, priority).MatchFields(ruleMatch(&rule.Match)).MatchFields(base)
		actions, cont := p.ruleActions(&rule.Actions, untagged)
		ab := b.Action().Actions(actions...)
		if cont {
			ab.GotoTable(next)
		}
		flows = append(flows, b.Done())
	}
	flows = append(flows, binding.NewFlowBuilder(table, aclDefaultDropPriority).MatchFields(base).Done())
	return flows
}

// ruleActions returns the actions of a rule, and whether the packet
// continues in the pipeline afterwards. Rules without an explicit allow or
// output continue.
func (p *pipeline) ruleActions(a *config.Actions, untagged bool) ([]binding.Action, bool) {
	var actions []binding.Action
	if a.SetDstMAC != nil {
		actions = append(actions, &binding.SetEthDstAction{MAC: a.SetDstMAC})
	}
	if a.Mirror != 0 || a.MirrorName != "" {
		if port, ok := p.dp.ResolvePort(a.Mirror, a.MirrorName); ok {
			actions = append(actions, &binding.OutputAction{Port: port})
		}
	}
	if out := a.Output; out != nil {
		port, ok := p.dp.ResolvePort(out.Port, out.PortName)
		if !ok {
			return nil, false
		}
		if out.SetDst != nil {
			actions = append(actions, &binding.SetEthDstAction{MAC: out.SetDst})
		}
		switch {
		case out.PopVLANs:
			actions = append(actions, &binding.PopVLANAction{})
		case out.VLANVID != 0 && untagged:
			actions = append(actions, &binding.PushVLANAction{EtherType: binding.EtherTypeVLAN}, &binding.SetVLANAction{VID: out.VLANVID})
		case out.VLANVID != 0:
			actions = append(actions, &binding.SetVLANAction{VID: out.VLANVID})
		}
		for _, vid := range out.PushVIDs {
			actions = append(actions, &binding.PushVLANAction{EtherType: binding.EtherTypeVLAN}, &binding.SetVLANAction{VID: vid})
		}
		actions = append(actions, &binding.OutputAction{Port: port})
		return actions, false
	}
	if a.Allow != nil && !*a.Allow {
		return actions, false
	}
	return actions, true
}

// portACLFlows fills the port_acl table: the ACL of every edge port, or the
// authentication rules of unauthenticated access ports.
func (p *pipeline) portACLFlows() {
	for _, port := range p.dp.EdgePorts() {
		if port.AuthMode == config.AuthModeAccess && !p.state.AuthenticatedPorts.Has(port.Number) {
			for _, f := range p.unauthenticatedFlows(port) {
				p.add(f)
			}
			continue
		}
		if port.ACLIn == nil {
			continue
		}
		base := binding.Match{InPort: port.Number}
		untagged := port.NativeVLAN != nil
		for _, f := range p.aclFlows(port.ACLIn, PortACLTable, VLANTable, base, untagged) {
			p.add(f)
		}
	}
	p.add(binding.NewFlowBuilder(PortACLTable, PriorityLowest).Action().GotoTable(VLANTable).Done())
}

// vlanACLFlows fills the vlan_acl table with the ACL of every VLAN.
func (p *pipeline) vlanACLFlows() {
	for _, vid := range p.dp.SortedVIDs() {
		vlan := p.dp.VLANs[vid]
		if vlan.ACLIn == nil {
			continue
		}
		v := vid
		base := binding.Match{VLANVID: &v}
		for _, f := range p.aclFlows(vlan.ACLIn, VLANACLTable, EthSrcTable, base, false) {
			p.add(f)
		}
	}
	p.add(binding.NewFlowBuilder(VLANACLTable, PriorityLowest).Action().GotoTable(EthSrcTable).Done())
}
