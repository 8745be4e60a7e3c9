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
	"net"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// hostsFrom builds one host per distinct octet, on ports 1 to 4.
func hostsFrom(octets []uint8, ports []uint32) []Host {
	seen := map[uint8]bool{}
	var hosts []Host
	for i, o := range octets {
		if seen[o] || i >= len(ports) {
			continue
		}
		seen[o] = true
		hosts = append(hosts, Host{
			MAC:  net.HardwareAddr{0x0e, 0, 0, 0, 0x01, o},
			VID:  100,
			Port: ports[i],
		})
	}
	return hosts
}

func TestProperty_CompileIsDeterministic(t *testing.T) {
	dp := parseDP(t, untaggedConfig)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("compiling the same state twice yields no changes", prop.ForAll(
		func(octets []uint8, ports []uint32) bool {
			hosts := hostsFrom(octets, ports)
			c := NewCompiler()
			first := c.Compile(dp, &State{Hosts: hosts})
			reversed := make([]Host, len(hosts))
			for i, h := range hosts {
				reversed[len(hosts)-1-i] = h
			}
			second := c.Compile(dp, &State{Hosts: reversed})
			if !Diff(first, second).IsEmpty() {
				t.Logf("unexpected changes for %d hosts", len(hosts))
				return false
			}
			return reflect.DeepEqual(first.Strings(), second.Strings())
		},
		gen.SliceOfN(8, gen.UInt8()),
		gen.SliceOfN(8, gen.UInt32Range(1, 4)),
	))

	properties.Property("every host gets exactly one eth_src and one eth_dst flow", prop.ForAll(
		func(octets []uint8, ports []uint32) bool {
			hosts := hostsFrom(octets, ports)
			fs := NewCompiler().Compile(dp, &State{Hosts: hosts})
			if got := len(fs.TableFlows(EthDstTable)); got != len(hosts)+1 {
				t.Logf("expected %d eth_dst flows, got %d", len(hosts)+1, got)
				return false
			}
			for _, h := range hosts {
				match := fmt.Sprintf("table=3,priority=9001,in_port=%d,dl_vlan=100,dl_src=%s", h.Port, h.MAC)
				if _, ok := fs.Flow(match); !ok {
					t.Logf("missing eth_src flow %s", match)
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.UInt8()),
		gen.SliceOfN(8, gen.UInt32Range(1, 4)),
	))

	properties.TestingRun(t)
}
