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
	"testing"

	"github.com/stretchr/testify/assert"

	binding "antrea.io/faucet/pkg/ovs/openflow"
)

func TestGroupAllocator(t *testing.T) {
	a := NewGroupAllocator()
	id1 := a.Allocate()
	id2 := a.Allocate()
	id3 := a.Allocate()
	assert.Equal(t, nextHopGroupBase+1, id1)
	assert.Equal(t, nextHopGroupBase+2, id2)
	assert.Equal(t, nextHopGroupBase+3, id3)

	a.Release(id3)
	a.Release(id1)
	assert.Equal(t, id1, a.Allocate())
	assert.Equal(t, id3, a.Allocate())
	assert.Equal(t, binding.GroupIDType(nextHopGroupBase+4), a.Allocate())
}

func TestGroupAllocatorAboveVLANs(t *testing.T) {
	a := NewGroupAllocator()
	assert.Greater(t, uint32(a.Allocate()), uint32(4095))
}
