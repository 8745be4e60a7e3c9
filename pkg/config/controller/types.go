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

package controller

// ControllerConfig is the options file of the faucet process. The network
// itself is described by the file at NetworkConfigPath.
type ControllerConfig struct {
	// Path of the network configuration document. Files it includes are
	// watched too. Defaults to /etc/faucet/faucet.yaml.
	NetworkConfigPath string `yaml:"networkConfigPath,omitempty"`
	// Address the OpenFlow controller listens on for switch connections.
	// Defaults to ":6653".
	OpenFlowListenAddress string `yaml:"openflowListenAddress,omitempty"`
	// Address of the HTTP server exposing /metrics and /loglevel. Defaults
	// to ":9302". An empty string after defaulting is not allowed.
	MetricsListenAddress string `yaml:"metricsListenAddress,omitempty"`
	// Address of the HTTP server receiving authentication results on
	// /v1/auth. Disabled when empty.
	AuthListenAddress string `yaml:"authListenAddress,omitempty"`
	// Maximum number of packet-ins processed per second and per datapath.
	// Defaults to 1000.
	PacketInRate int `yaml:"packetInRate,omitempty"`
	// Time to wait after a change of a configuration file before reloading,
	// so that editors writing several files trigger a single reload.
	// Defaults to "1s".
	ReloadDebounceInterval string `yaml:"reloadDebounceInterval,omitempty"`
	// Disables the file watcher. Reloads are then only triggered by SIGHUP.
	DisableConfigWatch bool `yaml:"disableConfigWatch,omitempty"`
}
