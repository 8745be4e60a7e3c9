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
	"antrea.io/faucet/pkg/faucet/config"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

const (
	dhcpServerPort uint16 = 67
	httpPort       uint16 = 80
)

// unauthenticatedFlows returns the port_acl flows of an access port that
// has not authenticated yet: EAPOL and web traffic go to the portal, ARP
// and DHCP are let through so that the host can reach it, everything else
// is dropped.
func (p *pipeline) unauthenticatedFlows(port *config.Port) []*binding.Flow {
	auth := p.dp.Auth
	if auth == nil {
		return []*binding.Flow{binding.NewFlowBuilder(PortACLTable, PriorityHighest).MatchInPort(port.Number).Done()}
	}
	toPortal := func(b *binding.FlowBuilder) *binding.Flow {
		return b.Action().SetEthDst(auth.PortalMAC).Output(auth.PortalPort).Done()
	}
	return []*binding.Flow{
		toPortal(binding.NewFlowBuilder(PortACLTable, PriorityHighest).
			MatchInPort(port.Number).MatchEthType(config.EthTypeEAPOL)),
		binding.NewFlowBuilder(PortACLTable, PriorityHighest-1).
			MatchInPort(port.Number).MatchEthType(config.EthTypeARP).
			Action().GotoTable(VLANTable).Done(),
		binding.NewFlowBuilder(PortACLTable, PriorityHighest-2).
			MatchInPort(port.Number).MatchEthType(config.EthTypeIPv4).MatchIPProto(config.IPProtoUDP).MatchTPDst(dhcpServerPort).
			Action().GotoTable(VLANTable).Done(),
		toPortal(binding.NewFlowBuilder(PortACLTable, PriorityHighest-3).
			MatchInPort(port.Number).MatchEthType(config.EthTypeIPv4).MatchIPProto(config.IPProtoTCP).MatchTPDst(httpPort)),
		binding.NewFlowBuilder(PortACLTable, PriorityHighest-4).MatchInPort(port.Number).Done(),
	}
}
