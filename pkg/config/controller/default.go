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

const (
	DefaultNetworkConfigPath      = "/etc/faucet/faucet.yaml"
	DefaultOpenFlowListenAddress  = ":6653"
	DefaultMetricsListenAddress   = ":9302"
	DefaultPacketInRate           = 1000
	DefaultReloadDebounceInterval = "1s"
)

func SetConfigDefaults(conf *ControllerConfig) {
	if conf.NetworkConfigPath == "" {
		conf.NetworkConfigPath = DefaultNetworkConfigPath
	}
	if conf.OpenFlowListenAddress == "" {
		conf.OpenFlowListenAddress = DefaultOpenFlowListenAddress
	}
	if conf.MetricsListenAddress == "" {
		conf.MetricsListenAddress = DefaultMetricsListenAddress
	}
	if conf.PacketInRate == 0 {
		conf.PacketInRate = DefaultPacketInRate
	}
	if conf.ReloadDebounceInterval == "" {
		conf.ReloadDebounceInterval = DefaultReloadDebounceInterval
	}
}
