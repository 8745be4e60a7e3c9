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

type TableIDType uint8
type GroupIDType uint32

const (
	// ControllerPort is OFPP_CONTROLLER.
	ControllerPort uint32 = 0xfffffffd
	// InPortPort is OFPP_IN_PORT, used to send a packet back where it came from.
	InPortPort uint32 = 0xfffffff8

	// VLANPresent is OFPVID_PRESENT, set in the vlan_vid field of tagged packets.
	VLANPresent   uint16 = 0x1000
	EtherTypeVLAN uint16 = 0x8100

	// OxmFieldInPort names the in_port field in packet-in matches.
	OxmFieldInPort = "OXM_OF_IN_PORT"
)

// Bridge defines operations on one connected OpenFlow switch.
type Bridge interface {
	// DPID returns the datapath id of the switch.
	DPID() uint64
	// IsConnected returns the OFSwitch's connection status.
	IsConnected() bool
	// ApplyChanges sends the changes to the switch in dependency order:
	// groups referenced by new flows first, then flow deletions,
	// modifications and additions, then removal of unused groups, followed
	// by a barrier. It returns the first error encountered; the caller must
	// treat the switch state as unknown after an error.
	ApplyChanges(changes *Changes) error
	// DeleteAllFlowsAndGroups removes every flow and group from the switch.
	DeleteAllFlowsAndGroups() error
	// SendPacketOut sends data out of outPort as if it was received on inPort.
	SendPacketOut(inPort, outPort uint32, data []byte) error
}

// SwitchHandler is notified when the switch with a given datapath id
// connects or disconnects.
type SwitchHandler interface {
	SwitchConnected(bridge Bridge)
	SwitchDisconnected(dpid uint64)
}

// Changes is an ordered batch of modifications computed in memory before
// anything is sent to the switch.
type Changes struct {
	AddGroups    []*Group
	ModifyGroups []*Group
	DeleteGroups []*Group
	AddFlows     []*Flow
	ModifyFlows  []*Flow
	DeleteFlows  []*Flow
}

func (c *Changes) IsEmpty() bool {
	return len(c.AddGroups) == 0 && len(c.ModifyGroups) == 0 && len(c.DeleteGroups) == 0 &&
		len(c.AddFlows) == 0 && len(c.ModifyFlows) == 0 && len(c.DeleteFlows) == 0
}

// Len returns the number of messages needed to apply the changes, the
// barrier excluded.
func (c *Changes) Len() int {
	return len(c.AddGroups) + len(c.ModifyGroups) + len(c.DeleteGroups) +
		len(c.AddFlows) + len(c.ModifyFlows) + len(c.DeleteFlows)
}

// PacketIn is a packet the switch sent to the controller.
type PacketIn struct {
	DPID    uint64
	InPort  uint32
	TableID uint8
	Data    []byte
}
