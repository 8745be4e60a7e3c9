// Copyright 2020 Antrea Authors
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
	"strings"
)

type GroupType uint8

const (
	GroupAll GroupType = iota
	GroupIndirect
)

func (t GroupType) String() string {
	switch t {
	case GroupAll:
		return "ALL"
	case GroupIndirect:
		return "INDIRECT"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
}

type Group struct {
	ID      GroupIDType
	Type    GroupType
	Buckets []*Bucket
}

type Bucket struct {
	Actions []Action
}

func (g *Group) KeyString() string {
	return fmt.Sprintf("group_id=%d", g.ID)
}

func (g *Group) String() string {
	buckets := make([]string, 0, len(g.Buckets))
	for _, b := range g.Buckets {
		buckets = append(buckets, b.String())
	}
	return fmt.Sprintf("group_id=%d,type=%s,%s", g.ID, g.Type, strings.Join(buckets, ","))
}

func (b *Bucket) String() string {
	actions := make([]string, 0, len(b.Actions))
	for _, a := range b.Actions {
		actions = append(actions, a.String())
	}
	return "bucket=actions=[" + strings.Join(actions, ",") + "]"
}

// GroupBuilder constructs a Group one bucket at a time.
type GroupBuilder struct {
	group *Group
}

func NewGroupBuilder(id GroupIDType, groupType GroupType) *GroupBuilder {
	return &GroupBuilder{group: &Group{ID: id, Type: groupType}}
}

// Bucket appends a bucket applying actions.
func (b *GroupBuilder) Bucket(actions ...Action) *GroupBuilder {
	b.group.Buckets = append(b.group.Buckets, &Bucket{Actions: actions})
	return b
}

func (b *GroupBuilder) Done() *Group {
	return b.group
}
