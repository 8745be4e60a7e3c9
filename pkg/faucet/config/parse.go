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
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

const (
	sectionDPs     = "dps"
	sectionVLANs   = "vlans"
	sectionACLs    = "acls"
	sectionRouters = "routers"

	keyVersion         = "version"
	keyInclude         = "include"
	keyIncludeOptional = "include-optional"
)

// section holds the merged entries of one top-level mapping. A later file
// replaces an entry with the same key.
type section struct {
	entries map[string]*yaml.Node
	lines   map[string]string
}

func newSection() *section {
	return &section{entries: map[string]*yaml.Node{}, lines: map[string]string{}}
}

func (s *section) set(key string, value *yaml.Node, file string) {
	s.entries[key] = value
	s.lines[key] = fmt.Sprintf("%s:%d", file, value.Line)
}

func (s *section) sortedKeys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// document is the result of merging a main file with all its includes,
// before any resolution happens.
type document struct {
	version  int
	sections map[string]*section
	files    []string
}

func newDocument() *document {
	return &document{
		sections: map[string]*section{
			sectionDPs:     newSection(),
			sectionVLANs:   newSection(),
			sectionACLs:    newSection(),
			sectionRouters: newSection(),
		},
	}
}

// Load reads the configuration file at path, merges its includes, then
// resolves and validates the result.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ConfigError{Kind: IncludeError, Path: path, Err: err}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ConfigError{Kind: IncludeError, Path: abs, Msg: "cannot read configuration", Err: err}
	}
	doc := newDocument()
	if err := doc.merge(abs, data, map[string]bool{abs: true}); err != nil {
		return nil, err
	}
	return doc.resolve()
}

// Parse is the same as Load for an in-memory document. Relative includes
// are looked up in baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	doc := newDocument()
	if err := doc.merge(filepath.Join(baseDir, "<inline>"), data, map[string]bool{}); err != nil {
		return nil, err
	}
	// The inline document is not a file the reload watcher can follow.
	doc.files = doc.files[1:]
	return doc.resolve()
}

func (d *document) merge(file string, data []byte, visiting map[string]bool) error {
	klog.V(4).InfoS("Merging configuration file", "file", file)
	d.files = append(d.files, file)

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return &ConfigError{Kind: ParseError, Path: file, Err: err}
	}
	if root.Kind == 0 {
		// Empty file.
		return nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return newError(ParseError, file, "line %d: top level must be a mapping", top.Line)
	}

	var includes, optional []string
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, value := top.Content[i], top.Content[i+1]
		switch key.Value {
		case keyVersion:
			var v int
			if err := value.Decode(&v); err != nil {
				return &ConfigError{Kind: ParseError, Path: file + "." + keyVersion, Err: err}
			}
			if v != SupportedVersion {
				return newError(InvalidValue, file+"."+keyVersion, "unsupported version %d", v)
			}
			d.version = v
		case keyInclude:
			if err := value.Decode(&includes); err != nil {
				return &ConfigError{Kind: ParseError, Path: file + "." + keyInclude, Err: err}
			}
		case keyIncludeOptional:
			if err := value.Decode(&optional); err != nil {
				return &ConfigError{Kind: ParseError, Path: file + "." + keyIncludeOptional, Err: err}
			}
		case sectionDPs, sectionVLANs, sectionACLs, sectionRouters:
			if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
				continue
			}
			if value.Kind != yaml.MappingNode {
				return newError(ParseError, file+"."+key.Value, "line %d: expected a mapping", value.Line)
			}
			s := d.sections[key.Value]
			for j := 0; j+1 < len(value.Content); j += 2 {
				s.set(value.Content[j].Value, value.Content[j+1], file)
			}
		default:
			return newError(ParseError, file, "line %d: unknown top level key %q", key.Line, key.Value)
		}
	}

	dir := filepath.Dir(file)
	for _, inc := range includes {
		if err := d.include(dir, inc, false, visiting); err != nil {
			return err
		}
	}
	for _, inc := range optional {
		if err := d.include(dir, inc, true, visiting); err != nil {
			return err
		}
	}
	return nil
}

func (d *document) include(dir, name string, optional bool, visiting map[string]bool) error {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)
	if visiting[path] {
		return newError(IncludeError, path, "include loop")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			klog.V(2).InfoS("Skipping missing optional include", "file", path)
			return nil
		}
		return &ConfigError{Kind: IncludeError, Path: path, Msg: "cannot read include", Err: err}
	}
	visiting[path] = true
	defer delete(visiting, path)
	return d.merge(path, data, visiting)
}

// decodeStrict decodes node into out and rejects keys out does not declare.
func decodeStrict(node *yaml.Node, out interface{}) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// scalar accepts any YAML scalar as its literal text, so that values such
// as dl_type may be written as 2048 or 0x800.
type scalar string

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	if n.Tag == "!!null" {
		*s = ""
		return nil
	}
	*s = scalar(n.Value)
	return nil
}

type rawDP struct {
	DPID                  scalar    `yaml:"dp_id"`
	Hardware              string    `yaml:"hardware"`
	Description           string    `yaml:"description"`
	Timeout               *int      `yaml:"timeout"`
	ARPNeighborTimeout    *int      `yaml:"arp_neighbor_timeout"`
	MaxResolveBackoffTime *int      `yaml:"max_resolve_backoff_time"`
	LearnBanTimeout       *int      `yaml:"learn_ban_timeout"`
	AdvertiseInterval     *int      `yaml:"advertise_interval"`
	ProactiveLearn        *bool     `yaml:"proactive_learn"`
	GroupTable            bool      `yaml:"group_table"`
	DropLLDP              *bool     `yaml:"drop_lldp"`
	DropBroadcastSource   *bool     `yaml:"drop_broadcast_source_address"`
	FaucetMAC             string    `yaml:"faucet_mac"`
	OFChannelLog          string    `yaml:"ofchannel_log"`
	Stack                 *rawStack `yaml:"stack"`
	Auth                  *rawAuth  `yaml:"auth"`
	Interfaces            yaml.Node `yaml:"interfaces"`
}

type rawStack struct {
	Priority int `yaml:"priority"`
}

type rawAuth struct {
	PortalMAC      string `yaml:"portal_mac"`
	PortalPort     scalar `yaml:"portal_port"`
	SessionTimeout *int   `yaml:"session_timeout"`
}

type rawInterface struct {
	Number         *uint32       `yaml:"number"`
	Name           string        `yaml:"name"`
	Description    string        `yaml:"description"`
	Enabled        *bool         `yaml:"enabled"`
	OutputOnly     bool          `yaml:"output_only"`
	NativeVLAN     scalar        `yaml:"native_vlan"`
	TaggedVLANs    []scalar      `yaml:"tagged_vlans"`
	ACLIn          scalar        `yaml:"acl_in"`
	Mirror         scalar        `yaml:"mirror"`
	UnicastFlood   *bool         `yaml:"unicast_flood"`
	MaxHosts       *int          `yaml:"max_hosts"`
	PermanentLearn bool          `yaml:"permanent_learn"`
	AuthMode       string        `yaml:"auth_mode"`
	Stack          *rawPortStack `yaml:"stack"`
}

type rawPortStack struct {
	DP   string `yaml:"dp"`
	Port scalar `yaml:"port"`
}

type rawVLAN struct {
	VID                  *uint16     `yaml:"vid"`
	Description          string      `yaml:"description"`
	ACLIn                scalar      `yaml:"acl_in"`
	UnicastFlood         *bool       `yaml:"unicast_flood"`
	MaxHosts             *int        `yaml:"max_hosts"`
	FaucetVIPs           []string    `yaml:"faucet_vips"`
	Routes               []yaml.Node `yaml:"routes"`
	BGPPort              *int32      `yaml:"bgp_port"`
	BGPAS                uint32      `yaml:"bgp_as"`
	BGPRouterID          string      `yaml:"bgp_routerid"`
	BGPNeighborAddresses []string    `yaml:"bgp_neighbor_addresses"`
	BGPNeighborAS        uint32      `yaml:"bgp_neighbor_as"`
}

type rawRoute struct {
	IPDst string `yaml:"ip_dst"`
	IPGw  string `yaml:"ip_gw"`
}

type rawRule struct {
	Name    string      `yaml:"_name_"`
	DlType  scalar      `yaml:"dl_type"`
	DlSrc   string      `yaml:"dl_src"`
	DlDst   string      `yaml:"dl_dst"`
	EthSrc  string      `yaml:"eth_src"`
	EthDst  string      `yaml:"eth_dst"`
	EthType scalar      `yaml:"eth_type"`
	NwProto scalar      `yaml:"nw_proto"`
	IPProto scalar      `yaml:"ip_proto"`
	TPDst   scalar      `yaml:"tp_dst"`
	TCPDst  scalar      `yaml:"tcp_dst"`
	UDPDst  scalar      `yaml:"udp_dst"`
	VLANVID scalar      `yaml:"vlan_vid"`
	InPort  scalar      `yaml:"in_port"`
	NwDst   string      `yaml:"nw_dst"`
	IPv4Dst string      `yaml:"ipv4_dst"`
	IPv6Dst string      `yaml:"ipv6_dst"`
	ARPTpa  string      `yaml:"arp_tpa"`
	Actions *rawActions `yaml:"actions"`
}

type rawActions struct {
	Allow  scalar     `yaml:"allow"`
	Mirror scalar     `yaml:"mirror"`
	DlDst  string     `yaml:"dl_dst"`
	Output *rawOutput `yaml:"output"`
}

type rawOutput struct {
	Port     scalar   `yaml:"port"`
	DlDst    string   `yaml:"dl_dst"`
	VLANVID  scalar   `yaml:"vlan_vid"`
	VLANVIDs []scalar `yaml:"vlan_vids"`
	PopVLANs scalar   `yaml:"pop_vlans"`
}

type rawRouter struct {
	VLANs []scalar `yaml:"vlans"`
}

// unwrap returns the value under key when node is a single-key mapping
// {key: value}, which is how rules and routes may optionally be written.
func unwrap(node *yaml.Node, key string) *yaml.Node {
	if node.Kind == yaml.MappingNode && len(node.Content) == 2 && node.Content[0].Value == key {
		return node.Content[1]
	}
	return node
}
