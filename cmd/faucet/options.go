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

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"

	controllerconfig "antrea.io/faucet/pkg/config/controller"
)

type Options struct {
	// The path of configuration file.
	configFile string
	// The configuration object
	config *controllerconfig.ControllerConfig
	// Path of the network configuration, overriding the one of the
	// configuration file.
	networkConfigPath string
	// Parsed ReloadDebounceInterval. Zero when watching is disabled.
	reloadDebounceInterval time.Duration
}

func newOptions() *Options {
	return &Options{
		config: new(controllerconfig.ControllerConfig),
	}
}

// addFlags adds flags to fs and binds them to options.
func (o *Options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config", o.configFile, "The path to the configuration file")
	fs.StringVar(&o.networkConfigPath, "network-config", o.networkConfigPath, "The path to the network configuration, overrides networkConfigPath of the configuration file")
}

// complete completes all the required options.
func (o *Options) complete(args []string) error {
	if len(o.configFile) > 0 {
		c, err := o.loadConfigFromFile(o.configFile)
		if err != nil {
			return err
		}
		o.config = c
	}
	if o.networkConfigPath != "" {
		o.config.NetworkConfigPath = o.networkConfigPath
	}
	controllerconfig.SetConfigDefaults(o.config)
	return nil
}

// validate validates all the required options.
func (o *Options) validate(args []string) error {
	if len(args) != 0 {
		return errors.New("no positional arguments are supported")
	}
	for name, addr := range map[string]string{
		"openflowListenAddress": o.config.OpenFlowListenAddress,
		"metricsListenAddress":  o.config.MetricsListenAddress,
		"authListenAddress":     o.config.AuthListenAddress,
	} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid %s %q: %v", name, addr, err)
		}
	}
	if o.config.PacketInRate < 0 {
		return fmt.Errorf("packetInRate must not be negative")
	}
	interval, err := time.ParseDuration(o.config.ReloadDebounceInterval)
	if err != nil {
		return fmt.Errorf("invalid reloadDebounceInterval: %v", err)
	}
	if interval <= 0 {
		return fmt.Errorf("reloadDebounceInterval must be positive")
	}
	if !o.config.DisableConfigWatch {
		o.reloadDebounceInterval = interval
	}
	return nil
}

func (o *Options) loadConfigFromFile(file string) (*controllerconfig.ControllerConfig, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	c := controllerconfig.ControllerConfig{}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
