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

package reload

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"antrea.io/faucet/pkg/faucet/config"
)

const baseConfig = `
vlans:
    100: {}
    200: {}
acls:
    1:
        - rule:
            dl_type: 0x800
            nw_proto: 6
            tp_dst: 5001
            actions: {allow: 0}
        - rule:
            actions: {allow: 1}
dps:
    sw1:
        dp_id: 1
        interfaces:
            1: {native_vlan: 100, acl_in: 1}
            2: {native_vlan: 100}
            3: {native_vlan: 200}
    sw2:
        dp_id: 2
        interfaces:
            1: {native_vlan: 200}
`

func parse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc), t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestClassify(t *testing.T) {
	old := parse(t, baseConfig)
	for _, tc := range []struct {
		name       string
		doc        string
		kind       Kind
		flushPorts []uint32
		reason     string
	}{
		{
			name: "unchanged",
			doc:  baseConfig,
			kind: NoOp,
		},
		{
			name: "acl contents",
			doc:  strings.Replace(baseConfig, "tp_dst: 5001", "tp_dst: 5002", 1),
			kind: Warm,
		},
		{
			name: "vlan options",
			doc:  strings.Replace(baseConfig, "100: {}", "100: {max_hosts: 2}", 1),
			kind: Warm,
		},
		{
			name:       "membership",
			doc:        strings.Replace(baseConfig, "2: {native_vlan: 100}", "2: {native_vlan: 200}", 1),
			kind:       Cold,
			flushPorts: []uint32{2},
			reason:     "VLAN membership of port 2 changed",
		},
		{
			name:   "port added",
			doc:    strings.Replace(baseConfig, "3: {native_vlan: 200}", "3: {native_vlan: 200}\n            4: {native_vlan: 200}", 1),
			kind:   Cold,
			reason: "port 4 added",
		},
		{
			name:       "port removed",
			doc:        strings.Replace(baseConfig, "            3: {native_vlan: 200}\n", "", 1),
			kind:       Cold,
			flushPorts: []uint32{3},
			reason:     "port 3 removed",
		},
		{
			name:   "hardware",
			doc:    strings.Replace(baseConfig, "dp_id: 1\n", "dp_id: 1\n        hardware: Allied-Telesis\n", 1),
			kind:   Cold,
			reason: `hardware changed from "Open vSwitch" to "Allied-Telesis"`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result := Classify(old, parse(t, tc.doc))
			assert.Empty(t, result.Added)
			assert.Empty(t, result.Removed)
			plan := result.Plans["sw1"]
			assert.Equal(t, tc.kind, plan.Kind)
			assert.Equal(t, tc.reason, plan.Reason)
			if tc.flushPorts != nil {
				assert.Equal(t, sets.New(tc.flushPorts...), plan.FlushPorts)
			} else {
				assert.Zero(t, plan.FlushPorts.Len())
			}
			// sw2 carries none of the changes.
			assert.Equal(t, NoOp, result.Plans["sw2"].Kind)
		})
	}
}

func TestClassifyDPs(t *testing.T) {
	old := parse(t, baseConfig)
	doc := strings.Replace(baseConfig, "    sw2:\n        dp_id: 2\n", "    sw3:\n        dp_id: 3\n", 1)
	result := Classify(old, parse(t, doc))
	assert.Equal(t, []string{"sw3"}, result.Added)
	assert.Equal(t, []string{"sw2"}, result.Removed)
	assert.Equal(t, NoOp, result.Plans["sw1"].Kind)

	initial := Classify(nil, old)
	assert.Equal(t, []string{"sw1", "sw2"}, initial.Added)
	assert.Empty(t, initial.Plans)
}

func TestEscalate(t *testing.T) {
	cold := Plan{Kind: Cold, Reason: "port 4 added"}
	plan, err := Escalate(1, Warm, cold)
	assert.Equal(t, Cold, plan.Kind)
	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "warm reload of DP 0x1 needs a cold start: port 4 added", err.Error())

	plan, err = Escalate(1, Warm, Plan{Kind: NoOp})
	require.NoError(t, err)
	assert.Equal(t, Warm, plan.Kind)

	plan, err = Escalate(1, Cold, Plan{Kind: Warm})
	require.NoError(t, err)
	assert.Equal(t, Cold, plan.Kind)
}
