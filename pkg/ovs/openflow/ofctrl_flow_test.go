// Copyright 2022 Antrea Authors
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
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	hostMAC, _  = net.ParseMAC("0e:00:00:00:00:01")
	vipMAC, _   = net.ParseMAC("0e:00:00:00:00:fe")
	mcastBit, _ = net.ParseMAC("01:00:00:00:00:00")
)

func TestFlowString(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("10.0.0.0/24")
	_, subnet6, _ := net.ParseCIDR("fc00::/64")
	for _, tc := range []struct {
		name          string
		flow          *Flow
		expectedMatch string
		expected      string
	}{
		{
			name:          "untagged to vlan",
			flow:          NewFlowBuilder(1, 9000).MatchInPort(1).MatchNoVLAN().Action().PushVLAN(100).GotoTable(3).Done(),
			expectedMatch: "table=1,priority=9000,in_port=1,vlan_vid=0x0000",
			expected:      "table=1,priority=9000,in_port=1,vlan_vid=0x0000 actions=PUSH_VLAN:33024,SET_FIELD: {vlan_vid:4196},GOTO_TABLE:3",
		},
		{
			name:          "drop with timeout",
			flow:          NewFlowBuilder(3, 9000).MatchInPort(2).MatchVLAN(100).SetHardTimeout(10).Done(),
			expectedMatch: "table=3,priority=9000,in_port=2,dl_vlan=100",
			expected:      "table=3,priority=9000,in_port=2,dl_vlan=100,hard_timeout=10 actions=drop",
		},
		{
			name:          "learned host",
			flow:          NewFlowBuilder(6, 9001).MatchVLAN(100).MatchEthDst(hostMAC).SetIdleTimeout(300).Action().PopVLAN().Output(1).Done(),
			expectedMatch: "table=6,priority=9001,dl_vlan=100,dl_dst=0e:00:00:00:00:01",
			expected:      "table=6,priority=9001,dl_vlan=100,dl_dst=0e:00:00:00:00:01,idle_timeout=300 actions=POP_VLAN,OUTPUT:1",
		},
		{
			name:          "masked multicast",
			flow:          NewFlowBuilder(3, 9099).MatchEthSrcWithMask(mcastBit, mcastBit).Done(),
			expectedMatch: "table=3,priority=9099,dl_src=01:00:00:00:00:00/01:00:00:00:00:00",
			expected:      "table=3,priority=9099,dl_src=01:00:00:00:00:00/01:00:00:00:00:00 actions=drop",
		},
		{
			name: "ipv4 route",
			flow: NewFlowBuilder(4, 9024).MatchVLAN(100).MatchEthType(0x0800).MatchIPv4Dst(subnet).
				Action().SetEthSrc(vipMAC).SetEthDst(hostMAC).DecNwTTL().GotoTable(6).Done(),
			expectedMatch: "table=4,priority=9024,dl_vlan=100,dl_type=0x0800,nw_dst=10.0.0.0/24",
			expected:      "table=4,priority=9024,dl_vlan=100,dl_type=0x0800,nw_dst=10.0.0.0/24 actions=SET_FIELD: {eth_src:0e:00:00:00:00:fe},SET_FIELD: {eth_dst:0e:00:00:00:00:01},DEC_NW_TTL,GOTO_TABLE:6",
		},
		{
			name:          "ipv6 route to controller",
			flow:          NewFlowBuilder(5, 9064).MatchEthType(0x86dd).MatchIPv6Dst(subnet6).Action().SendToController().Done(),
			expectedMatch: "table=5,priority=9064,dl_type=0x86dd,ipv6_dst=fc00::/64",
			expected:      "table=5,priority=9064,dl_type=0x86dd,ipv6_dst=fc00::/64 actions=OUTPUT:4294967293",
		},
		{
			name: "acl rule",
			flow: NewFlowBuilder(0, 9099).MatchInPort(1).MatchEthType(0x0800).MatchIPProto(6).MatchTPDst(80).
				Action().Output(2).Done(),
			expectedMatch: "table=0,priority=9099,in_port=1,dl_type=0x0800,nw_proto=6,tp_dst=80",
			expected:      "table=0,priority=9099,in_port=1,dl_type=0x0800,nw_proto=6,tp_dst=80 actions=OUTPUT:2",
		},
		{
			name:          "arp for vip",
			flow:          NewFlowBuilder(3, 9001).MatchEthType(0x0806).MatchARPTpa(net.ParseIP("10.0.0.254")).Action().SendToController().Done(),
			expectedMatch: "table=3,priority=9001,dl_type=0x0806,arp_tpa=10.0.0.254",
			expected:      "table=3,priority=9001,dl_type=0x0806,arp_tpa=10.0.0.254 actions=OUTPUT:4294967293",
		},
		{
			name:          "flood group",
			flow:          NewFlowBuilder(7, 9000).MatchVLAN(200).Action().Group(200).Done(),
			expectedMatch: "table=7,priority=9000,dl_vlan=200",
			expected:      "table=7,priority=9000,dl_vlan=200 actions=GROUP:200",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedMatch, tc.flow.MatchString())
			assert.Equal(t, tc.expected, tc.flow.String())
		})
	}
}

func TestFlowIsDrop(t *testing.T) {
	assert.True(t, NewFlowBuilder(0, 0).Done().IsDrop())
	assert.True(t, NewFlowBuilder(0, 0).Action().Drop().Done().IsDrop())
	assert.False(t, NewFlowBuilder(0, 0).Action().GotoTable(1).Done().IsDrop())
	assert.False(t, NewFlowBuilder(0, 0).Action().Output(1).Done().IsDrop())
}

func TestMatchFields(t *testing.T) {
	vid := uint16(10)
	acl := Match{EthType: 0x0806, VLANVID: &vid}
	flow := NewFlowBuilder(2, 9099).MatchFields(acl).MatchInPort(3).Done()
	assert.Equal(t, "table=2,priority=9099,in_port=3,dl_vlan=10,dl_type=0x0806", flow.MatchString())

	// Fields already set are kept when the merged match leaves them empty.
	flow = NewFlowBuilder(0, 1).MatchInPort(4).MatchFields(Match{EthDst: hostMAC}).Done()
	assert.Equal(t, "table=0,priority=1,in_port=4,dl_dst=0e:00:00:00:00:01", flow.MatchString())
}

func TestBuilderDoneCopies(t *testing.T) {
	b := NewFlowBuilder(0, 1).MatchInPort(1)
	first := b.Done()
	b.MatchInPort(2)
	assert.Equal(t, uint32(1), first.Match.InPort)
}

func TestGroupString(t *testing.T) {
	g := NewGroupBuilder(100, GroupAll).
		Bucket(&OutputAction{Port: 1}).
		Bucket(&PopVLANAction{}, &OutputAction{Port: 2}).
		Done()
	assert.Equal(t, "group_id=100", g.KeyString())
	assert.Equal(t, "group_id=100,type=ALL,bucket=actions=[OUTPUT:1],bucket=actions=[POP_VLAN,OUTPUT:2]", g.String())
	assert.Equal(t, "INDIRECT", GroupIndirect.String())
}
