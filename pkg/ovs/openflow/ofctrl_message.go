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
	"fmt"
	"net"

	"antrea.io/libOpenflow/openflow15"
	"antrea.io/libOpenflow/util"
)

const (
	ipProtoTCP uint8 = 6
	ipProtoUDP uint8 = 17
	// noBuffer asks the switch to send the whole packet to the controller.
	noBuffer uint16 = 0xffff
)

// changeMessages translates changes into OpenFlow messages in the order
// they must be sent.
func changeMessages(c *Changes) []util.Message {
	msgs := make([]util.Message, 0, c.Len()+1)
	for _, g := range c.AddGroups {
		msgs = append(msgs, groupMod(g, openflow15.OFPGC_ADD))
	}
	for _, g := range c.ModifyGroups {
		msgs = append(msgs, groupMod(g, openflow15.OFPGC_MODIFY))
	}
	for _, f := range c.DeleteFlows {
		msgs = append(msgs, flowMod(f, openflow15.FC_DELETE_STRICT))
	}
	for _, f := range c.ModifyFlows {
		msgs = append(msgs, flowMod(f, openflow15.FC_MODIFY_STRICT))
	}
	for _, f := range c.AddFlows {
		msgs = append(msgs, flowMod(f, openflow15.FC_ADD))
	}
	for _, g := range c.DeleteGroups {
		msgs = append(msgs, groupMod(g, openflow15.OFPGC_DELETE))
	}
	return msgs
}

func flowMod(f *Flow, command uint8) *openflow15.FlowMod {
	fm := openflow15.NewFlowMod()
	fm.TableId = uint8(f.Table)
	fm.Priority = f.Priority
	fm.Command = command
	fm.Cookie = f.Cookie
	fm.HardTimeout = f.HardTimeout
	fm.IdleTimeout = f.IdleTimeout
	fm.Match = *toOFMatch(&f.Match)
	if command == openflow15.FC_DELETE_STRICT {
		fm.OutPort = openflow15.P_ANY
		fm.OutGroup = openflow15.OFPG_ANY
		return fm
	}
	if len(f.Actions) > 0 {
		instr := openflow15.NewInstrApplyActions()
		for _, a := range f.Actions {
			instr.AddAction(toOFAction(a), false)
		}
		fm.AddInstruction(instr)
	}
	if f.GotoTable != nil {
		fm.AddInstruction(openflow15.NewInstrGotoTable(uint8(*f.GotoTable)))
	}
	return fm
}

func groupMod(g *Group, command uint16) *openflow15.GroupMod {
	gm := openflow15.NewGroupMod()
	gm.GroupId = uint32(g.ID)
	gm.Command = command
	switch g.Type {
	case GroupAll:
		gm.Type = openflow15.GT_ALL
	case GroupIndirect:
		gm.Type = openflow15.GT_INDIRECT
	}
	if command == openflow15.OFPGC_DELETE {
		return gm
	}
	for i, b := range g.Buckets {
		bkt := openflow15.NewBucket(uint32(i))
		for _, a := range b.Actions {
			bkt.AddAction(toOFAction(a))
		}
		gm.AddBucket(*bkt)
	}
	return gm
}

func vlanField(vid uint16) *openflow15.MatchField {
	f := openflow15.NewVlanIdField(vid, nil)
	if vid == 0 {
		f.Value = &openflow15.VlanIdField{VlanId: 0}
	} else {
		f.Value = &openflow15.VlanIdField{VlanId: vid | VLANPresent}
	}
	return f
}

func maskPtr(mask net.HardwareAddr) *net.HardwareAddr {
	if mask == nil {
		return nil
	}
	return &mask
}

func prefixMask(n *net.IPNet) *net.IP {
	mask := net.IP(n.Mask)
	return &mask
}

func toOFMatch(m *Match) *openflow15.Match {
	match := openflow15.NewMatch()
	if m.InPort != 0 {
		match.AddField(*openflow15.NewInPortField(m.InPort))
	}
	if m.EthDst != nil {
		match.AddField(*openflow15.NewEthDstField(m.EthDst, maskPtr(m.EthDstMask)))
	}
	if m.EthSrc != nil {
		match.AddField(*openflow15.NewEthSrcField(m.EthSrc, maskPtr(m.EthSrcMask)))
	}
	if m.EthType != 0 {
		match.AddField(*openflow15.NewEthTypeField(m.EthType))
	}
	if m.VLANVID != nil {
		match.AddField(*vlanField(*m.VLANVID))
	}
	if m.IPProto != 0 {
		match.AddField(*openflow15.NewIpProtoField(m.IPProto))
	}
	if m.IPv4Dst != nil {
		match.AddField(*openflow15.NewIpv4DstField(m.IPv4Dst.IP, prefixMask(m.IPv4Dst)))
	}
	if m.IPv6Dst != nil {
		match.AddField(*openflow15.NewIpv6DstField(m.IPv6Dst.IP, prefixMask(m.IPv6Dst)))
	}
	if m.ARPTpa != nil {
		match.AddField(*openflow15.NewArpTpaField(m.ARPTpa))
	}
	if m.TPDst != 0 {
		switch m.IPProto {
		case ipProtoTCP:
			match.AddField(*openflow15.NewTcpDstField(m.TPDst))
		case ipProtoUDP:
			match.AddField(*openflow15.NewUdpDstField(m.TPDst))
		}
	}
	return match
}

func toOFAction(a Action) openflow15.Action {
	switch act := a.(type) {
	case *OutputAction:
		out := openflow15.NewActionOutput(act.Port)
		if act.Port == ControllerPort {
			out.MaxLen = noBuffer
		}
		return out
	case *GroupAction:
		return openflow15.NewActionGroup(uint32(act.ID))
	case *PushVLANAction:
		return openflow15.NewActionPushVlan(act.EtherType)
	case *PopVLANAction:
		return openflow15.NewActionPopVlan()
	case *SetVLANAction:
		return openflow15.NewActionSetField(*vlanField(act.VID))
	case *SetEthDstAction:
		return openflow15.NewActionSetField(*openflow15.NewEthDstField(act.MAC, nil))
	case *SetEthSrcAction:
		return openflow15.NewActionSetField(*openflow15.NewEthSrcField(act.MAC, nil))
	case *DecNwTTLAction:
		return openflow15.NewActionDecNwTtl()
	}
	panic(fmt.Sprintf("unsupported action %T", a))
}

func packetOut(inPort, outPort uint32, data []byte) *openflow15.PacketOut {
	po := openflow15.NewPacketOut()
	po.Match.AddField(*openflow15.NewInPortField(inPort))
	po.AddAction(openflow15.NewActionOutput(outPort))
	po.Data = util.NewBuffer(data)
	return po
}

func deleteAllMessages() []util.Message {
	fm := openflow15.NewFlowMod()
	fm.Command = openflow15.FC_DELETE
	fm.TableId = openflow15.OFPTT_ALL
	fm.OutPort = openflow15.P_ANY
	fm.OutGroup = openflow15.OFPG_ANY
	gm := openflow15.NewGroupMod()
	gm.Command = openflow15.OFPGC_DELETE
	gm.GroupId = openflow15.OFPG_ALL
	return []util.Message{fm, gm}
}
