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
	"sort"

	"k8s.io/klog/v2"

	binding "antrea.io/faucet/pkg/ovs/openflow"
)

// FlowSet is a set of flows keyed by their match, and of groups keyed by
// id. It is the desired or the installed state of one datapath.
type FlowSet struct {
	flows  map[string]*binding.Flow
	groups map[binding.GroupIDType]*binding.Group
}

func NewFlowSet() *FlowSet {
	return &FlowSet{
		flows:  make(map[string]*binding.Flow),
		groups: make(map[binding.GroupIDType]*binding.Group),
	}
}

func vlanKey(vid uint16, s string) string {
	return fmt.Sprintf("%d/%s", vid, s)
}

// AddFlow adds flow unless a flow with the same match exists already: the
// first flow added for a match wins.
func (s *FlowSet) AddFlow(flow *binding.Flow) {
	key := flow.MatchString()
	if existing, ok := s.flows[key]; ok {
		if existing.String() != flow.String() {
			klog.V(2).InfoS("Ignoring flow shadowed by an earlier flow", "flow", flow, "existing", existing)
		}
		return
	}
	s.flows[key] = flow
}

func (s *FlowSet) AddGroup(group *binding.Group) {
	s.groups[group.ID] = group
}

func (s *FlowSet) Len() int {
	return len(s.flows)
}

func (s *FlowSet) Flow(match string) (*binding.Flow, bool) {
	f, ok := s.flows[match]
	return f, ok
}

func (s *FlowSet) Group(id binding.GroupIDType) (*binding.Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// Flows returns the flows ordered by table, then by decreasing priority,
// then by match.
func (s *FlowSet) Flows() []*binding.Flow {
	flows := make([]*binding.Flow, 0, len(s.flows))
	for _, f := range s.flows {
		flows = append(flows, f)
	}
	sortFlows(flows)
	return flows
}

// Groups returns the groups ordered by id.
func (s *FlowSet) Groups() []*binding.Group {
	groups := make([]*binding.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g)
	}
	sortGroups(groups)
	return groups
}

// Strings renders the flows in Flows order.
func (s *FlowSet) Strings() []string {
	flows := s.Flows()
	strs := make([]string, len(flows))
	for i, f := range flows {
		strs[i] = f.String()
	}
	return strs
}

// TableFlows returns the flows of one table in Flows order.
func (s *FlowSet) TableFlows(table binding.TableIDType) []*binding.Flow {
	var flows []*binding.Flow
	for _, f := range s.Flows() {
		if f.Table == table {
			flows = append(flows, f)
		}
	}
	return flows
}

func sortFlows(flows []*binding.Flow) {
	sort.Slice(flows, func(i, j int) bool {
		if flows[i].Table != flows[j].Table {
			return flows[i].Table < flows[j].Table
		}
		if flows[i].Priority != flows[j].Priority {
			return flows[i].Priority > flows[j].Priority
		}
		return flows[i].MatchString() < flows[j].MatchString()
	})
}

func sortGroups(groups []*binding.Group) {
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].ID < groups[j].ID
	})
}

// Diff returns the changes turning installed into desired. Flows are
// compared by match: a flow whose match is installed with other actions or
// timeouts is modified in place.
func Diff(installed, desired *FlowSet) *binding.Changes {
	changes := &binding.Changes{}
	for key, f := range desired.flows {
		old, ok := installed.flows[key]
		if !ok {
			changes.AddFlows = append(changes.AddFlows, f)
		} else if old.String() != f.String() {
			changes.ModifyFlows = append(changes.ModifyFlows, f)
		}
	}
	for key, f := range installed.flows {
		if _, ok := desired.flows[key]; !ok {
			changes.DeleteFlows = append(changes.DeleteFlows, f)
		}
	}
	for id, g := range desired.groups {
		old, ok := installed.groups[id]
		if !ok {
			changes.AddGroups = append(changes.AddGroups, g)
		} else if old.String() != g.String() {
			changes.ModifyGroups = append(changes.ModifyGroups, g)
		}
	}
	for id, g := range installed.groups {
		if _, ok := desired.groups[id]; !ok {
			changes.DeleteGroups = append(changes.DeleteGroups, g)
		}
	}
	sortFlows(changes.AddFlows)
	sortFlows(changes.ModifyFlows)
	sortFlows(changes.DeleteFlows)
	sortGroups(changes.AddGroups)
	sortGroups(changes.ModifyGroups)
	sortGroups(changes.DeleteGroups)
	return changes
}

// FullSync returns the changes installing desired on an empty switch.
func FullSync(desired *FlowSet) *binding.Changes {
	return Diff(NewFlowSet(), desired)
}
