// Copyright 2021 Antrea Authors
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
	"errors"
	"fmt"

	"antrea.io/libOpenflow/util"
	"antrea.io/ofnet/ofctrl"
)

// ParsePacketIn extracts the ingress port and the raw frame of a packet-in
// message received from the switch with the given datapath id.
func ParsePacketIn(dpid uint64, pktIn *ofctrl.PacketIn) (*PacketIn, error) {
	if pktIn == nil || pktIn.PacketIn == nil {
		return nil, errors.New("empty packet-in message")
	}
	matches := pktIn.GetMatches()
	inPortField := matches.GetMatchByName(OxmFieldInPort)
	if inPortField == nil {
		return nil, errors.New("in_port field not found")
	}
	inPort, ok := inPortField.GetValue().(uint32)
	if !ok {
		return nil, fmt.Errorf("unexpected in_port value %v", inPortField.GetValue())
	}
	buf, ok := pktIn.Data.(*util.Buffer)
	if !ok || buf == nil {
		return nil, errors.New("packet-in message carries no data")
	}
	data := make([]byte, len(buf.Bytes()))
	copy(data, buf.Bytes())
	return &PacketIn{
		DPID:    dpid,
		InPort:  inPort,
		TableID: pktIn.TableId,
		Data:    data,
	}, nil
}
