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

package datapath

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
	compmetrics "k8s.io/component-base/metrics"
	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/metrics"
	"antrea.io/faucet/pkg/faucet/openflow"
	"antrea.io/faucet/pkg/faucet/reload"
	"antrea.io/faucet/pkg/faucet/route"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

func (c *Controller) state() *openflow.State {
	neighbors, routes := c.routes.State()
	return &openflow.State{
		Hosts:              c.hosts.Hosts(),
		LearnBans:          c.hosts.LearnBans(),
		Neighbors:          neighbors,
		Routes:             routes,
		AuthenticatedPorts: c.gate.Authenticated(),
	}
}

func (c *Controller) allPorts() sets.Set[uint32] {
	return sets.New(c.dp.PortNumbers...)
}

// sync brings the switch to the flows compiled from the current state. A
// warm sync only sends the difference with the installed flows; a cold one
// deletes every flow and group first. The changes are computed before
// anything is sent, and a failure leaves the switch state unknown until
// the next cold sync.
func (c *Controller) sync(kind reload.Kind) {
	defer c.updateMetrics()
	desired := c.compiler.Compile(c.dp, c.state())
	if c.bridge == nil || !c.bridge.IsConnected() {
		return
	}

	if c.installed == nil && kind != reload.Cold {
		plan, err := reload.Escalate(c.dp.DPID, kind, reload.Plan{Kind: reload.Cold, Reason: "flows on the switch are unknown"})
		klog.ErrorS(err, "Escalating to a cold sync", "dp", c.dp.Name)
		kind = plan.Kind
	}

	var changes *binding.Changes
	if kind == reload.Cold {
		if err := c.bridge.DeleteAllFlowsAndGroups(); err != nil {
			c.failSync(err)
			return
		}
		c.installed = nil
		changes = openflow.FullSync(desired)
	} else {
		changes = openflow.Diff(c.installed, desired)
	}
	if !changes.IsEmpty() {
		if err := c.bridge.ApplyChanges(changes); err != nil {
			c.failSync(err)
			return
		}
		c.ofLog.WriteChanges(changes)
		klog.V(2).InfoS("Applied flow changes", "dp", c.dp.Name, "kind", kind, "messages", changes.Len())
	}
	c.installed = desired
	c.bans = len(c.hosts.LearnBans())
	metrics.DPStatus.WithLabelValues(c.dpidLabel).Set(1)
}

func (c *Controller) failSync(err error) {
	klog.ErrorS(err, "Failed to update the flows of the switch", "dp", c.dp.Name)
	c.installed = nil
	metrics.DPStatus.WithLabelValues(c.dpidLabel).Set(0)
}

// updateMetrics publishes the gauges of the datapath.
func (c *Controller) updateMetrics() {
	if c.bridge == nil {
		metrics.DPStatus.WithLabelValues(c.dpidLabel).Set(0)
	}
	var hosts, macs, neighbors, bgpRoutes []metrics.Sample
	for _, vid := range c.dp.SortedVIDs() {
		vlan := fmt.Sprint(vid)
		hosts = append(hosts, metrics.Sample{
			Labels: compmetrics.Labels{metrics.LabelDPID: c.dpidLabel, metrics.LabelVLAN: vlan},
			Value:  float64(c.hosts.VLANHostCount(vid)),
		})
		if len(c.dp.VLANs[vid].FaucetVIPs) == 0 {
			continue
		}
		for _, ipv := range []int{4, 6} {
			labels := compmetrics.Labels{metrics.LabelDPID: c.dpidLabel, metrics.LabelVLAN: vlan, metrics.LabelIPV: fmt.Sprint(ipv)}
			neighbors = append(neighbors, metrics.Sample{Labels: labels, Value: float64(c.routes.NeighborCount(vid, ipv))})
			bgpRoutes = append(bgpRoutes, metrics.Sample{Labels: labels, Value: float64(c.routes.RouteCount(vid, ipv, route.BGP))})
		}
	}
	for _, e := range c.hosts.Entries() {
		macs = append(macs, metrics.Sample{
			Labels: compmetrics.Labels{
				metrics.LabelDPID:   c.dpidLabel,
				metrics.LabelVLAN:   fmt.Sprint(e.VID),
				metrics.LabelPort:   fmt.Sprint(e.Port),
				metrics.LabelEthSrc: e.MAC.String(),
			},
			Value: 1,
		})
	}
	c.hostSeries.Update(hosts)
	c.macSeries.Update(macs)
	c.neighborSeries.Update(neighbors)
	c.bgpSeries.Update(bgpRoutes)
}
