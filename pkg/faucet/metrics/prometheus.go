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

package metrics

import (
	"fmt"
	"sync"

	"k8s.io/component-base/metrics"
	"k8s.io/component-base/metrics/legacyregistry"
	"k8s.io/klog/v2"
)

const (
	LabelDPID   = "dp_id"
	LabelVLAN   = "vlan"
	LabelPort   = "port"
	LabelEthSrc = "eth_src"
	LabelIPV    = "ipv"
	LabelEvent  = "event"
)

var (
	ConfigReloadRequests = metrics.NewCounter(&metrics.CounterOpts{
		Name:           "faucet_config_reload_requests",
		Help:           "Number of configuration reload requests.",
		StabilityLevel: metrics.ALPHA,
	})

	ConfigLoadError = metrics.NewGauge(&metrics.GaugeOpts{
		Name:           "faucet_config_load_error",
		Help:           "1 if the last configuration load failed and the previous configuration is still active.",
		StabilityLevel: metrics.ALPHA,
	})

	ConfigReloadWarm = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_config_reload_warm",
		Help:           "Number of warm reloads of a datapath.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	ConfigReloadCold = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_config_reload_cold",
		Help:           "Number of cold reloads of a datapath.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	VLANHostsLearned = metrics.NewGaugeVec(&metrics.GaugeOpts{
		Name:           "vlan_hosts_learned",
		Help:           "Number of hosts learned on a VLAN.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN})

	LearnedMACs = metrics.NewGaugeVec(&metrics.GaugeOpts{
		Name:           "learned_macs",
		Help:           "Hosts learned on a port of a VLAN. The value is always 1.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN, LabelPort, LabelEthSrc})

	DPConnections = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "of_dp_connections",
		Help:           "Number of times a datapath connected.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	DPDisconnections = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "of_dp_disconnections",
		Help:           "Number of times a datapath disconnected.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	DPStatus = metrics.NewGaugeVec(&metrics.GaugeOpts{
		Name:           "dp_status",
		Help:           "1 if the datapath is connected and programmed, 0 otherwise.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	BGPNeighborRoutes = metrics.NewGaugeVec(&metrics.GaugeOpts{
		Name:           "bgp_neighbor_routes",
		Help:           "Number of routes received over BGP and installed on a VLAN.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN, LabelIPV})

	VLANNeighbors = metrics.NewGaugeVec(&metrics.GaugeOpts{
		Name:           "vlan_neighbors",
		Help:           "Number of resolved neighbors on a VLAN.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN, LabelIPV})

	ResolutionErrors = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_resolution_errors",
		Help:           "Number of neighbors that could not be resolved.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN})

	CapacityErrors = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_capacity_errors",
		Help:           "Number of hosts refused because a max_hosts limit was reached.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelVLAN})

	PacketIns = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_packet_ins",
		Help:           "Number of packet-in messages processed.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID})

	PortAuthEvents = metrics.NewCounterVec(&metrics.CounterOpts{
		Name:           "faucet_port_auth_events",
		Help:           "Number of authentication events of an access port.",
		StabilityLevel: metrics.ALPHA,
	}, []string{LabelDPID, LabelPort, LabelEvent})

	initOnce sync.Once
)

// InitializeMetrics registers all metrics with the legacy registry. Metrics
// record nothing before they are registered.
func InitializeMetrics() {
	initOnce.Do(func() {
		klog.InfoS("Initializing prometheus metrics")
		for _, m := range []metrics.Registerable{
			ConfigReloadRequests,
			ConfigLoadError,
			ConfigReloadWarm,
			ConfigReloadCold,
			VLANHostsLearned,
			LearnedMACs,
			DPConnections,
			DPDisconnections,
			DPStatus,
			BGPNeighborRoutes,
			VLANNeighbors,
			ResolutionErrors,
			CapacityErrors,
			PacketIns,
			PortAuthEvents,
		} {
			if err := legacyregistry.Register(m); err != nil {
				klog.ErrorS(err, "Failed to register metric", "name", m.FQName())
			}
		}
	})
}

// DPID formats a datapath id as a label value.
func DPID(dpid uint64) string {
	return fmt.Sprintf("%#x", dpid)
}
