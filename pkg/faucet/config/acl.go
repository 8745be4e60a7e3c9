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
	"fmt"
	"net"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EthTypeIPv4  uint16 = 0x0800
	EthTypeARP   uint16 = 0x0806
	EthTypeIPv6  uint16 = 0x86dd
	EthTypeVLAN  uint16 = 0x8100
	EthTypeLLDP  uint16 = 0x88cc
	EthTypeEAPOL uint16 = 0x888e

	IPProtoICMP   uint8 = 1
	IPProtoTCP    uint8 = 6
	IPProtoUDP    uint8 = 17
	IPProtoICMPv6 uint8 = 58
)

func resolveACL(name string, node *yaml.Node) (*ACL, error) {
	path := sectionACLs + "." + name
	if node.Kind != yaml.SequenceNode {
		return nil, newError(ParseError, path, "line %d: expected a list of rules", node.Line)
	}
	acl := &ACL{Name: name}
	for i, item := range node.Content {
		rulePath := fmt.Sprintf("%s.%d", path, i)
		var raw rawRule
		if err := decodeStrict(unwrap(item, "rule"), &raw); err != nil {
			return nil, &ConfigError{Kind: ParseError, Path: rulePath, Err: err}
		}
		rule, err := resolveRule(rulePath, &raw)
		if err != nil {
			return nil, err
		}
		acl.Rules = append(acl.Rules, rule)
	}
	return acl, nil
}

// first returns the first non-empty alias.
func first(values ...scalar) scalar {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolveRule(path string, raw *rawRule) (*Rule, error) {
	rule := &Rule{Name: raw.Name}
	m := &rule.Match
	var err error

	if v := first(raw.DlType, raw.EthType); v != "" {
		if m.EthType, err = parseUint16(v); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".dl_type", Err: err}
		}
	}
	if v := firstString(raw.DlSrc, raw.EthSrc); v != "" {
		if m.EthSrc, m.EthSrcMsk, err = parseMACMask(v); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".dl_src", Err: err}
		}
	}
	if v := firstString(raw.DlDst, raw.EthDst); v != "" {
		if m.EthDst, m.EthDstMsk, err = parseMACMask(v); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".dl_dst", Err: err}
		}
	}
	if v := first(raw.NwProto, raw.IPProto); v != "" {
		n, err := strconv.ParseUint(string(v), 0, 8)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".nw_proto", Err: err}
		}
		m.IPProto = uint8(n)
	}
	if v := first(raw.TPDst, raw.TCPDst, raw.UDPDst); v != "" {
		if m.TPDst, err = parseUint16(v); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".tp_dst", Err: err}
		}
	}
	if raw.VLANVID != "" {
		if m.VLANVID, err = parseVID(raw.VLANVID); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".vlan_vid", Err: err}
		}
	}
	if raw.InPort != "" {
		n, err := strconv.ParseUint(string(raw.InPort), 0, 32)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".in_port", Err: err}
		}
		m.InPort = uint32(n)
	}
	if v := firstString(raw.NwDst, raw.IPv4Dst); v != "" {
		if m.IPv4Dst, err = parsePrefix(v, false); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".nw_dst", Err: err}
		}
	}
	if raw.IPv6Dst != "" {
		if m.IPv6Dst, err = parsePrefix(raw.IPv6Dst, true); err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".ipv6_dst", Err: err}
		}
	}
	if raw.ARPTpa != "" {
		if m.ARPTpa = net.ParseIP(raw.ARPTpa).To4(); m.ARPTpa == nil {
			return nil, newError(InvalidValue, path+".arp_tpa", "invalid IPv4 address %q", raw.ARPTpa)
		}
	}
	if err := checkPrerequisites(path, m); err != nil {
		return nil, err
	}

	if raw.Actions == nil {
		return nil, newError(MissingRequiredField, path+".actions", "rule has no actions")
	}
	if err := resolveActions(path+".actions", raw.Actions, &rule.Actions); err != nil {
		return nil, err
	}
	return rule, nil
}

// checkPrerequisites rejects matches an OpenFlow switch would refuse, such
// as a transport port without an IP protocol.
func checkPrerequisites(path string, m *Match) error {
	if m.TPDst != 0 && m.IPProto != IPProtoTCP && m.IPProto != IPProtoUDP {
		return newError(InvalidValue, path+".tp_dst", "tp_dst requires nw_proto 6 or 17")
	}
	if m.IPProto != 0 && m.EthType != EthTypeIPv4 && m.EthType != EthTypeIPv6 {
		return newError(InvalidValue, path+".nw_proto", "nw_proto requires dl_type 0x800 or 0x86dd")
	}
	if m.IPv4Dst != nil && m.EthType != EthTypeIPv4 {
		return newError(InvalidValue, path+".nw_dst", "nw_dst requires dl_type 0x800")
	}
	if m.IPv6Dst != nil && m.EthType != EthTypeIPv6 {
		return newError(InvalidValue, path+".ipv6_dst", "ipv6_dst requires dl_type 0x86dd")
	}
	if m.ARPTpa != nil && m.EthType != EthTypeARP {
		return newError(InvalidValue, path+".arp_tpa", "arp_tpa requires dl_type 0x806")
	}
	return nil
}

func resolveActions(path string, raw *rawActions, actions *Actions) error {
	if raw.Allow != "" {
		allow, err := strconv.ParseBool(string(raw.Allow))
		if err != nil {
			return &ConfigError{Kind: InvalidValue, Path: path + ".allow", Err: err}
		}
		actions.Allow = &allow
	}
	if raw.DlDst != "" {
		mac, err := net.ParseMAC(raw.DlDst)
		if err != nil {
			return &ConfigError{Kind: InvalidValue, Path: path + ".dl_dst", Err: err}
		}
		actions.SetDstMAC = mac
	}
	if raw.Mirror != "" {
		actions.Mirror, actions.MirrorName = portRef(raw.Mirror)
	}
	if raw.Output != nil {
		out, err := resolveOutput(path+".output", raw.Output)
		if err != nil {
			return err
		}
		actions.Output = out
	}
	if actions.Allow == nil && actions.Output == nil && !actions.HasMirror() && actions.SetDstMAC == nil {
		return newError(MissingRequiredField, path, "one of allow, output, mirror or dl_dst is required")
	}
	return nil
}

func resolveOutput(path string, raw *rawOutput) (*OutputAction, error) {
	if raw.Port == "" {
		return nil, newError(MissingRequiredField, path+".port", "output requires a port")
	}
	out := &OutputAction{}
	out.Port, out.PortName = portRef(raw.Port)
	if raw.DlDst != "" {
		mac, err := net.ParseMAC(raw.DlDst)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".dl_dst", Err: err}
		}
		out.SetDst = mac
	}
	if raw.VLANVID != "" {
		vid, err := parseVID(raw.VLANVID)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".vlan_vid", Err: err}
		}
		out.VLANVID = vid
	}
	for _, v := range raw.VLANVIDs {
		vid, err := parseVID(v)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".vlan_vids", Err: err}
		}
		out.PushVIDs = append(out.PushVIDs, vid)
	}
	if raw.PopVLANs != "" {
		pop, err := strconv.ParseBool(string(raw.PopVLANs))
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".pop_vlans", Err: err}
		}
		out.PopVLANs = pop
	}
	if out.PopVLANs && (out.VLANVID != 0 || len(out.PushVIDs) > 0) {
		return nil, newError(InvalidValue, path, "pop_vlans cannot be combined with vlan_vid or vlan_vids")
	}
	return out, nil
}

// HasMirror reports whether the rule copies packets to a mirror port.
func (a *Actions) HasMirror() bool {
	return a.Mirror != 0 || a.MirrorName != ""
}

// IsAllow reports whether a packet matching the rule continues through the
// pipeline. A rule with neither allow nor output drops.
func (a *Actions) IsAllow() bool {
	return a.Allow != nil && *a.Allow
}

// portRef splits a port reference into a number or a name.
func portRef(s scalar) (uint32, string) {
	if n, err := strconv.ParseUint(string(s), 10, 32); err == nil {
		return uint32(n), ""
	}
	return 0, string(s)
}

func parseUint16(s scalar) (uint16, error) {
	n, err := strconv.ParseUint(string(s), 0, 16)
	return uint16(n), err
}

func parseVID(s scalar) (uint16, error) {
	vid, err := parseUint16(s)
	if err != nil {
		return 0, err
	}
	if vid == 0 || vid > MaxVID {
		return 0, fmt.Errorf("vid %d out of range 1-%d", vid, MaxVID)
	}
	return vid, nil
}

// parseMACMask parses "mac" or "mac/mask".
func parseMACMask(s string) (net.HardwareAddr, net.HardwareAddr, error) {
	addr, mask, hasMask := strings.Cut(s, "/")
	mac, err := net.ParseMAC(addr)
	if err != nil {
		return nil, nil, err
	}
	if !hasMask {
		return mac, nil, nil
	}
	msk, err := net.ParseMAC(mask)
	if err != nil {
		return nil, nil, err
	}
	return mac, msk, nil
}

// parsePrefix parses an address or a prefix of the given family. A bare
// address is a host prefix.
func parsePrefix(s string, ipv6 bool) (*net.IPNet, error) {
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		if ipv6 {
			s += "/128"
		} else {
			s += "/32"
		}
	}
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	if (n.IP.To4() == nil) != ipv6 {
		return nil, fmt.Errorf("address family mismatch for %q", s)
	}
	return n, nil
}
