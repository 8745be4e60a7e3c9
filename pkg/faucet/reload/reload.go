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

// Package reload decides how a datapath moves from one configuration to
// the next.
package reload

import (
	"fmt"
	"reflect"

	"k8s.io/apimachinery/pkg/util/sets"

	"antrea.io/faucet/pkg/faucet/config"
)

// Kind is the reconciliation strategy of a datapath.
type Kind int

const (
	// NoOp leaves flows and state untouched.
	NoOp Kind = iota
	// Warm recompiles the flows and replaces only the ones that differ.
	// Host and neighbor state is kept.
	Warm
	// Cold deletes every flow and group and installs the full pipeline
	// again. Hosts learned on ports whose membership changed are flushed.
	Cold
)

func (k Kind) String() string {
	switch k {
	case NoOp:
		return "no-op"
	case Warm:
		return "warm"
	case Cold:
		return "cold"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Plan is the reconciliation of one datapath.
type Plan struct {
	Kind Kind
	// FlushPorts are the ports whose hosts must be forgotten.
	FlushPorts sets.Set[uint32]
	// Reason describes the first change that made the plan cold.
	Reason string
}

// Result is the reconciliation of a whole configuration, keyed by DP
// name.
type Result struct {
	Added   []string
	Removed []string
	Plans   map[string]Plan
}

// Classify compares the previously active configuration with a new one.
// A nil old configuration adds every DP.
func Classify(old, new *config.Config) *Result {
	result := &Result{Plans: make(map[string]Plan)}
	for _, name := range new.DPNames() {
		var oldDP *config.DP
		if old != nil {
			oldDP = old.DPs[name]
		}
		if oldDP == nil {
			result.Added = append(result.Added, name)
			continue
		}
		result.Plans[name] = ClassifyDP(oldDP, new.DPs[name])
	}
	if old != nil {
		for _, name := range old.DPNames() {
			if _, ok := new.DPs[name]; !ok {
				result.Removed = append(result.Removed, name)
			}
		}
	}
	return result
}

// ClassifyDP compares two versions of the same datapath.
func ClassifyDP(old, new *config.DP) Plan {
	if old.Hash() == new.Hash() {
		return Plan{Kind: NoOp}
	}
	plan := Plan{Kind: Warm, FlushPorts: sets.New[uint32]()}
	cold := func(format string, args ...interface{}) {
		if plan.Kind != Cold {
			plan.Kind = Cold
			plan.Reason = fmt.Sprintf(format, args...)
		}
	}

	switch {
	case old.DPID != new.DPID:
		cold("dp_id changed from %#x to %#x", old.DPID, new.DPID)
	case old.Hardware != new.Hardware:
		cold("hardware changed from %q to %q", old.Hardware, new.Hardware)
	case !reflect.DeepEqual(old.Stack, new.Stack):
		cold("stacking changed")
	case old.GroupTable != new.GroupTable:
		cold("group_table changed")
	}

	for _, number := range old.PortNumbers {
		oldPort := old.Ports[number]
		newPort, ok := new.Ports[number]
		if !ok {
			cold("port %d removed", number)
			plan.FlushPorts.Insert(number)
			continue
		}
		if !sameMembership(oldPort, newPort) {
			cold("VLAN membership of port %d changed", number)
			plan.FlushPorts.Insert(number)
		}
	}
	for _, number := range new.PortNumbers {
		if _, ok := old.Ports[number]; !ok {
			cold("port %d added", number)
		}
	}
	return plan
}

func membership(p *config.Port) (uint16, sets.Set[uint16]) {
	var native uint16
	if p.NativeVLAN != nil {
		native = p.NativeVLAN.VID
	}
	tagged := sets.New[uint16]()
	for _, v := range p.TaggedVLANs {
		tagged.Insert(v.VID)
	}
	return native, tagged
}

func sameMembership(old, new *config.Port) bool {
	oldNative, oldTagged := membership(old)
	newNative, newTagged := membership(new)
	return oldNative == newNative && oldTagged.Equal(newTagged) &&
		reflect.DeepEqual(old.Stack, new.Stack) && old.Enabled == new.Enabled
}

// Escalate checks a requested strategy against the one the datapath
// needs. When a warm reconciliation was requested but a cold one is
// needed, the cold plan wins and a ConflictError reports it.
func Escalate(dpid uint64, requested Kind, needed Plan) (Plan, error) {
	if requested == Warm && needed.Kind == Cold {
		return needed, &ConflictError{DPID: dpid, Reason: needed.Reason}
	}
	if needed.Kind < requested {
		needed.Kind = requested
	}
	return needed, nil
}
