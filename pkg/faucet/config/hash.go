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

package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns a digest of the resolved configuration. encoding/json sorts
// map keys, so equal graphs always produce the same digest regardless of
// the order in which the files declared them.
func (c *Config) Hash() string {
	return hashOf(c)
}

// Hash returns a digest of the DP, including the VLANs, ACLs and routers it
// references.
func (dp *DP) Hash() string {
	return hashOf(dp)
}

func hashOf(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reachable with unsupported value types, which the model does
		// not contain.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DPNames returns the names of all DPs in lexical order.
func (c *Config) DPNames() []string {
	return sortedDPNames(c)
}

// DPByID returns the DP with the given datapath id.
func (c *Config) DPByID(dpid uint64) *DP {
	for _, dp := range c.DPs {
		if dp.DPID == dpid {
			return dp
		}
	}
	return nil
}
