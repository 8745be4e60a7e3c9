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

package hostlearning

import "fmt"

// CapacityError is returned when learning a host would exceed max_hosts.
// Port is 0 when the limit of the VLAN was reached.
type CapacityError struct {
	VID   uint16
	Port  uint32
	Limit int
}

func (e *CapacityError) Error() string {
	if e.Port == 0 {
		return fmt.Sprintf("VLAN %d reached its limit of %d hosts", e.VID, e.Limit)
	}
	return fmt.Sprintf("port %d reached its limit of %d hosts in VLAN %d", e.Port, e.Limit, e.VID)
}
