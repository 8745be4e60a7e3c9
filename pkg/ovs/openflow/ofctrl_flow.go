// Copyright 2019 Antrea Authors
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
	"strings"
)

// Match is the set of fields a Flow matches on. Zero values are not
// matched, except for VLANVID which is a pointer so that "no VLAN tag" can
// be expressed with a zero vid.
type Match struct {
	InPort     uint32
	VLANVID    *uint16
	EthSrc     net.HardwareAddr
	EthSrcMask net.HardwareAddr
	EthDst     net.HardwareAddr
	EthDstMask net.HardwareAddr
	EthType    uint16
	IPProto    uint8
	IPv4Dst    *net.IPNet
	IPv6Dst    *net.IPNet
	ARPTpa     net.IP
	TPDst      uint16
}

// Flow is one flow entry. Its string form uses the field and action names
// of the ryu ofctl REST API and is stable, so two Flows are equal exactly
// when their strings are.
type Flow struct {
	Table       TableIDType
	Priority    uint16
	Match       Match
	Actions     []Action
	GotoTable   *TableIDType
	HardTimeout uint16
	IdleTimeout uint16
	Cookie      uint64
}

func macString(mac, mask net.HardwareAddr) string {
	if mask == nil {
		return mac.String()
	}
	return mac.String() + "/" + mask.String()
}

// matchers returns the readable match fields of the flow in a fixed order.
func (m *Match) matchers() []string {
	var matchers []string
	if m.InPort != 0 {
		matchers = append(matchers, fmt.Sprintf("in_port=%d", m.InPort))
	}
	if m.VLANVID != nil {
		if *m.VLANVID == 0 {
			matchers = append(matchers, "vlan_vid=0x0000")
		} else {
			matchers = append(matchers, fmt.Sprintf("dl_vlan=%d", *m.VLANVID))
		}
	}
	if m.EthSrc != nil {
		matchers = append(matchers, "dl_src="+macString(m.EthSrc, m.EthSrcMask))
	}
	if m.EthDst != nil {
		matchers = append(matchers, "dl_dst="+macString(m.EthDst, m.EthDstMask))
	}
	if m.EthType != 0 {
		matchers = append(matchers, fmt.Sprintf("dl_type=0x%04x", m.EthType))
	}
	if m.IPProto != 0 {
		matchers = append(matchers, fmt.Sprintf("nw_proto=%d", m.IPProto))
	}
	if m.IPv4Dst != nil {
		matchers = append(matchers, "nw_dst="+m.IPv4Dst.String())
	}
	if m.IPv6Dst != nil {
		matchers = append(matchers, "ipv6_dst="+m.IPv6Dst.String())
	}
	if m.ARPTpa != nil {
		matchers = append(matchers, "arp_tpa="+m.ARPTpa.String())
	}
	if m.TPDst != 0 {
		matchers = append(matchers, fmt.Sprintf("tp_dst=%d", m.TPDst))
	}
	return matchers
}

// MatchString identifies the flow on the switch: two flows with the same
// MatchString replace each other.
func (f *Flow) MatchString() string {
	repr := fmt.Sprintf("table=%d,priority=%d", f.Table, f.Priority)
	if matchers := f.Match.matchers(); len(matchers) > 0 {
		repr += "," + strings.Join(matchers, ",")
	}
	return repr
}

func (f *Flow) ActionString() string {
	var actions []string
	for _, a := range f.Actions {
		actions = append(actions, a.String())
	}
	if f.GotoTable != nil {
		actions = append(actions, fmt.Sprintf("GOTO_TABLE:%d", *f.GotoTable))
	}
	if len(actions) == 0 {
		return "drop"
	}
	return strings.Join(actions, ",")
}

func (f *Flow) String() string {
	repr := f.MatchString()
	if f.HardTimeout != 0 {
		repr += fmt.Sprintf(",hard_timeout=%d", f.HardTimeout)
	}
	if f.IdleTimeout != 0 {
		repr += fmt.Sprintf(",idle_timeout=%d", f.IdleTimeout)
	}
	return repr + " actions=" + f.ActionString()
}

// IsDrop reports whether the flow discards matching packets.
func (f *Flow) IsDrop() bool {
	return len(f.Actions) == 0 && f.GotoTable == nil
}

// Action is an OpenFlow action in a flow's apply-actions instruction or in
// a group bucket.
type Action interface {
	String() string
}

type OutputAction struct {
	Port uint32
}

func (a *OutputAction) String() string {
	return fmt.Sprintf("OUTPUT:%d", a.Port)
}

type GroupAction struct {
	ID GroupIDType
}

func (a *GroupAction) String() string {
	return fmt.Sprintf("GROUP:%d", a.ID)
}

type PushVLANAction struct {
	EtherType uint16
}

func (a *PushVLANAction) String() string {
	return fmt.Sprintf("PUSH_VLAN:%d", a.EtherType)
}

type PopVLANAction struct{}

func (a *PopVLANAction) String() string {
	return "POP_VLAN"
}

// SetVLANAction rewrites the vlan_vid field. VID excludes VLANPresent,
// which is added on the wire and in the string form.
type SetVLANAction struct {
	VID uint16
}

func (a *SetVLANAction) String() string {
	return fmt.Sprintf("SET_FIELD: {vlan_vid:%d}", a.VID|VLANPresent)
}

type SetEthDstAction struct {
	MAC net.HardwareAddr
}

func (a *SetEthDstAction) String() string {
	return fmt.Sprintf("SET_FIELD: {eth_dst:%s}", a.MAC)
}

type SetEthSrcAction struct {
	MAC net.HardwareAddr
}

func (a *SetEthSrcAction) String() string {
	return fmt.Sprintf("SET_FIELD: {eth_src:%s}", a.MAC)
}

type DecNwTTLAction struct{}

func (a *DecNwTTLAction) String() string {
	return "DEC_NW_TTL"
}
