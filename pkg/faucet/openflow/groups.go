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
	"sync"

	binding "antrea.io/faucet/pkg/ovs/openflow"
)

// nextHopGroupBase is above every vid so that next hop groups never collide
// with the flood group of a VLAN, whose id is the vid.
const nextHopGroupBase binding.GroupIDType = 0x10000

type GroupAllocator interface {
	Allocate() binding.GroupIDType
	Release(id binding.GroupIDType)
}

type groupAllocator struct {
	// mu is a lock for the groupAllocator.
	mu sync.Mutex

	groupIDCounter binding.GroupIDType
	recycled       []binding.GroupIDType
}

// Allocate allocates a new group ID. The lowest released id is reused
// first, so that the ids in use stay dense; the counter grows otherwise.
func (a *groupAllocator) Allocate() binding.GroupIDType {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.recycled) != 0 {
		lowest := 0
		for i, id := range a.recycled {
			if id < a.recycled[lowest] {
				lowest = i
			}
		}
		id := a.recycled[lowest]
		a.recycled = append(a.recycled[:lowest], a.recycled[lowest+1:]...)
		return id
	}
	a.groupIDCounter += 1
	return a.groupIDCounter
}

func (a *groupAllocator) Release(id binding.GroupIDType) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.recycled = append(a.recycled, id)
}

func NewGroupAllocator() GroupAllocator {
	return &groupAllocator{groupIDCounter: nextHopGroupBase}
}
