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
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
)

const defaultBGPPort = 179

type resolver struct {
	doc *document
	cfg *Config
	// vlanRefs indexes VLANs by both vid and name.
	vlanRefs map[string]*VLAN
}

func (d *document) resolve() (*Config, error) {
	if d.version == 0 {
		return nil, newError(MissingRequiredField, keyVersion, "configuration has no version")
	}
	r := &resolver{
		doc: d,
		cfg: &Config{
			DPs:     map[string]*DP{},
			VLANs:   map[uint16]*VLAN{},
			ACLs:    map[string]*ACL{},
			Routers: map[string]*Router{},
			Files:   d.files,
		},
		vlanRefs: map[string]*VLAN{},
	}
	// Every entry is decoded before any reference is followed, which is what
	// allows references to entries defined later or in another file.
	if err := r.resolveACLs(); err != nil {
		return nil, err
	}
	if err := r.resolveVLANs(); err != nil {
		return nil, err
	}
	if err := r.resolveDPs(); err != nil {
		return nil, err
	}
	if err := r.resolveRouters(); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r.cfg, nil
}

func (r *resolver) resolveACLs() error {
	s := r.doc.sections[sectionACLs]
	for _, name := range s.sortedKeys() {
		acl, err := resolveACL(name, s.entries[name])
		if err != nil {
			return err
		}
		r.cfg.ACLs[name] = acl
	}
	return nil
}

func (r *resolver) acl(path, name string) (*ACL, error) {
	if name == "" {
		return nil, nil
	}
	acl, ok := r.cfg.ACLs[name]
	if !ok {
		return nil, newError(UnknownReference, path, "unknown ACL %q", name)
	}
	return acl, nil
}

func (r *resolver) vlan(path string, ref scalar) (*VLAN, error) {
	v, ok := r.vlanRefs[string(ref)]
	if !ok {
		return nil, newError(UnknownReference, path, "unknown VLAN %q", string(ref))
	}
	return v, nil
}

func (r *resolver) resolveVLANs() error {
	s := r.doc.sections[sectionVLANs]
	for _, key := range s.sortedKeys() {
		path := sectionVLANs + "." + key
		var raw rawVLAN
		if err := decodeStrict(s.entries[key], &raw); err != nil {
			return &ConfigError{Kind: ParseError, Path: path, Msg: s.lines[key], Err: err}
		}
		vlan, err := r.resolveVLAN(path, key, &raw)
		if err != nil {
			return err
		}
		if other, ok := r.cfg.VLANs[vlan.VID]; ok {
			return newError(InvalidValue, path, "vid %d already used by VLAN %q", vlan.VID, other.Name)
		}
		r.cfg.VLANs[vlan.VID] = vlan
		r.vlanRefs[strconv.Itoa(int(vlan.VID))] = vlan
		r.vlanRefs[vlan.Name] = vlan
	}
	return nil
}

func (r *resolver) resolveVLAN(path, key string, raw *rawVLAN) (*VLAN, error) {
	vlan := &VLAN{
		Name:         key,
		Description:  raw.Description,
		UnicastFlood: true,
	}
	switch {
	case raw.VID != nil:
		vlan.VID = *raw.VID
	default:
		vid, err := strconv.ParseUint(key, 10, 16)
		if err != nil {
			return nil, newError(MissingRequiredField, path+".vid", "VLAN %q has no vid", key)
		}
		vlan.VID = uint16(vid)
	}
	if vlan.VID == 0 || vlan.VID > MaxVID {
		return nil, newError(InvalidValue, path+".vid", "vid %d out of range 1-%d", vlan.VID, MaxVID)
	}
	if raw.UnicastFlood != nil {
		vlan.UnicastFlood = *raw.UnicastFlood
	}
	if raw.MaxHosts != nil {
		if *raw.MaxHosts < 0 {
			return nil, newError(InvalidValue, path+".max_hosts", "max_hosts must not be negative")
		}
		vlan.MaxHosts = *raw.MaxHosts
	}
	var err error
	if vlan.ACLIn, err = r.acl(path+".acl_in", string(raw.ACLIn)); err != nil {
		return nil, err
	}

	for _, s := range raw.FaucetVIPs {
		ip, subnet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, &ConfigError{Kind: InvalidValue, Path: path + ".faucet_vips", Err: err}
		}
		if ip4 := ip.To4(); ip4 != nil {
			ip = ip4
		}
		vlan.FaucetVIPs = append(vlan.FaucetVIPs, &net.IPNet{IP: ip, Mask: subnet.Mask})
	}

	for i := range raw.Routes {
		routePath := fmt.Sprintf("%s.routes.%d", path, i)
		var rr rawRoute
		if err := decodeStrict(unwrap(&raw.Routes[i], "route"), &rr); err != nil {
			return nil, &ConfigError{Kind: ParseError, Path: routePath, Err: err}
		}
		route, err := parseRoute(routePath, &rr)
		if err != nil {
			return nil, err
		}
		if err := ValidateNextHop(vlan, route.Gateway); err != nil {
			return nil, err
		}
		vlan.Routes = append(vlan.Routes, route)
	}

	if raw.BGPAS != 0 {
		bgp := &BGPConfig{
			Port:       defaultBGPPort,
			AS:         raw.BGPAS,
			RouterID:   raw.BGPRouterID,
			NeighborAS: raw.BGPNeighborAS,
		}
		if raw.BGPPort != nil {
			bgp.Port = *raw.BGPPort
		}
		if net.ParseIP(bgp.RouterID).To4() == nil {
			return nil, newError(MissingRequiredField, path+".bgp_routerid", "BGP requires an IPv4 router id")
		}
		if bgp.NeighborAS == 0 {
			return nil, newError(MissingRequiredField, path+".bgp_neighbor_as", "BGP requires a neighbor AS")
		}
		if len(raw.BGPNeighborAddresses) == 0 {
			return nil, newError(MissingRequiredField, path+".bgp_neighbor_addresses", "BGP requires at least one neighbor")
		}
		for _, s := range raw.BGPNeighborAddresses {
			ip := net.ParseIP(s)
			if ip == nil {
				return nil, newError(InvalidValue, path+".bgp_neighbor_addresses", "invalid address %q", s)
			}
			bgp.NeighborAddresses = append(bgp.NeighborAddresses, ip)
		}
		vlan.BGP = bgp
	}
	return vlan, nil
}

func parseRoute(path string, raw *rawRoute) (*Route, error) {
	if raw.IPDst == "" || raw.IPGw == "" {
		return nil, newError(MissingRequiredField, path, "route requires ip_dst and ip_gw")
	}
	_, dst, err := net.ParseCIDR(raw.IPDst)
	if err != nil {
		return nil, &ConfigError{Kind: InvalidRoute, Path: path + ".ip_dst", Err: err}
	}
	gw := net.ParseIP(raw.IPGw)
	if gw == nil {
		return nil, newError(InvalidRoute, path+".ip_gw", "invalid gateway %q", raw.IPGw)
	}
	if gw4 := gw.To4(); gw4 != nil {
		gw = gw4
	}
	if (dst.IP.To4() == nil) != (gw.To4() == nil) {
		return nil, newError(InvalidRoute, path, "gateway %s and destination %s differ in address family", gw, dst)
	}
	return &Route{Dst: dst, Gateway: gw}, nil
}

// ValidateNextHop checks that gw can be the next hop of a route on vlan: it
// must lie in one of the VLAN's connected subnets without being a VIP. It is
// used both for static routes and for routes learned over BGP.
func ValidateNextHop(vlan *VLAN, gw net.IP) error {
	path := fmt.Sprintf("%s.%d", sectionVLANs, vlan.VID)
	for _, vip := range vlan.FaucetVIPs {
		if vip.IP.Equal(gw) {
			ones, _ := vip.Mask.Size()
			return newError(InvalidRoute, path, "%s/%d cannot be us", gw, ones)
		}
	}
	if vlan.ConnectedVIP(gw) == nil {
		return newError(InvalidRoute, path, "%s is not a connected network", gw)
	}
	return nil
}

func seconds(v *int, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	return time.Duration(*v) * time.Second
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (r *resolver) resolveDPs() error {
	s := r.doc.sections[sectionDPs]
	dpIDs := map[uint64]string{}
	for _, name := range s.sortedKeys() {
		path := sectionDPs + "." + name
		var raw rawDP
		if err := decodeStrict(s.entries[name], &raw); err != nil {
			return &ConfigError{Kind: ParseError, Path: path, Msg: s.lines[name], Err: err}
		}
		dp, err := r.resolveDP(path, name, &raw)
		if err != nil {
			return err
		}
		if other, ok := dpIDs[dp.DPID]; ok {
			return newError(InvalidValue, path+".dp_id", "dp_id %#x already used by %q", dp.DPID, other)
		}
		dpIDs[dp.DPID] = name
		r.cfg.DPs[name] = dp
	}
	return nil
}

func (r *resolver) resolveDP(path, name string, raw *rawDP) (*DP, error) {
	if raw.DPID == "" {
		return nil, newError(MissingRequiredField, path+".dp_id", "DP %q has no dp_id", name)
	}
	dpid, err := strconv.ParseUint(string(raw.DPID), 0, 64)
	if err != nil {
		return nil, &ConfigError{Kind: InvalidValue, Path: path + ".dp_id", Err: err}
	}
	dp := &DP{
		Name:                  name,
		DPID:                  dpid,
		Hardware:              raw.Hardware,
		Description:           raw.Description,
		Timeout:               seconds(raw.Timeout, DefaultHostTimeout),
		ARPNeighborTimeout:    seconds(raw.ARPNeighborTimeout, DefaultARPNeighborTimeout),
		MaxResolveBackoffTime: seconds(raw.MaxResolveBackoffTime, DefaultMaxResolveBackoffTime),
		LearnBanTimeout:       seconds(raw.LearnBanTimeout, DefaultLearnBanTimeout),
		AdvertiseInterval:     seconds(raw.AdvertiseInterval, DefaultAdvertiseInterval),
		ProactiveLearn:        boolOr(raw.ProactiveLearn, true),
		GroupTable:            raw.GroupTable,
		DropLLDP:              boolOr(raw.DropLLDP, true),
		DropBroadcastSource:   boolOr(raw.DropBroadcastSource, true),
		OFChannelLog:          raw.OFChannelLog,
		Ports:                 map[uint32]*Port{},
		VLANs:                 map[uint16]*VLAN{},
	}
	if dp.AdvertiseInterval < 0 {
		return nil, newError(InvalidValue, path+".advertise_interval", "advertise_interval must not be negative")
	}
	if dp.Hardware == "" {
		dp.Hardware = DefaultHardware
	}
	if dp.Description == "" {
		dp.Description = name
	}
	mac := raw.FaucetMAC
	if mac == "" {
		mac = DefaultFaucetMAC
	}
	if dp.FaucetMAC, err = net.ParseMAC(mac); err != nil {
		return nil, &ConfigError{Kind: InvalidValue, Path: path + ".faucet_mac", Err: err}
	}
	if raw.Stack != nil {
		dp.Stack = &DPStack{Priority: raw.Stack.Priority}
	}

	interfaces := &raw.Interfaces
	if interfaces.Kind != yaml.MappingNode || len(interfaces.Content) == 0 {
		return nil, newError(MissingRequiredField, path+".interfaces", "DP %q has no interfaces", name)
	}
	names := map[string]uint32{}
	mirrors := map[uint32]scalar{}
	for i := 0; i+1 < len(interfaces.Content); i += 2 {
		key := interfaces.Content[i].Value
		portPath := path + ".interfaces." + key
		var ri rawInterface
		if err := decodeStrict(interfaces.Content[i+1], &ri); err != nil {
			return nil, &ConfigError{Kind: ParseError, Path: portPath, Err: err}
		}
		port, err := r.resolvePort(portPath, key, &ri)
		if err != nil {
			return nil, err
		}
		if _, ok := dp.Ports[port.Number]; ok {
			return nil, newError(DuplicatePort, portPath, "port number %d is defined more than once", port.Number)
		}
		if _, ok := names[port.Name]; ok {
			return nil, newError(DuplicatePort, portPath, "port name %q is defined more than once", port.Name)
		}
		names[port.Name] = port.Number
		dp.Ports[port.Number] = port
		dp.PortNumbers = append(dp.PortNumbers, port.Number)
		if ri.Mirror != "" {
			mirrors[port.Number] = ri.Mirror
		}
	}
	sort.Slice(dp.PortNumbers, func(i, j int) bool { return dp.PortNumbers[i] < dp.PortNumbers[j] })

	// Second pass: references between ports of this DP.
	for number, ref := range mirrors {
		n, name := portRef(ref)
		mirrored, ok := dp.ResolvePort(n, name)
		if !ok {
			return nil, newError(UnknownReference, fmt.Sprintf("%s.interfaces.%d.mirror", path, number), "unknown port %q", string(ref))
		}
		if mirrored == number {
			return nil, newError(InvalidValue, fmt.Sprintf("%s.interfaces.%d.mirror", path, number), "port cannot mirror itself")
		}
		dp.Ports[number].Mirror = mirrored
	}
	for _, n := range dp.PortNumbers {
		for _, v := range dp.Ports[n].VLANs() {
			dp.VLANs[v.VID] = v
		}
	}

	hasAccess := false
	for _, p := range dp.Ports {
		hasAccess = hasAccess || p.AuthMode == AuthModeAccess
	}
	if raw.Auth != nil {
		if dp.Auth, err = resolveAuth(path+".auth", dp, raw.Auth); err != nil {
			return nil, err
		}
	} else if hasAccess {
		return nil, newError(MissingRequiredField, path+".auth", "access ports require an auth section")
	}
	return dp, nil
}

func resolveAuth(path string, dp *DP, raw *rawAuth) (*AuthConfig, error) {
	auth := &AuthConfig{SessionTimeout: seconds(raw.SessionTimeout, DefaultAuthSessionTimeout)}
	var err error
	if raw.PortalMAC == "" {
		return nil, newError(MissingRequiredField, path+".portal_mac", "auth requires a portal_mac")
	}
	if auth.PortalMAC, err = net.ParseMAC(raw.PortalMAC); err != nil {
		return nil, &ConfigError{Kind: InvalidValue, Path: path + ".portal_mac", Err: err}
	}
	if raw.PortalPort == "" {
		return nil, newError(MissingRequiredField, path+".portal_port", "auth requires a portal_port")
	}
	n, name := portRef(raw.PortalPort)
	port, ok := dp.ResolvePort(n, name)
	if !ok {
		return nil, newError(UnknownReference, path+".portal_port", "unknown port %q", string(raw.PortalPort))
	}
	if dp.Ports[port].AuthMode == AuthModeAccess {
		return nil, newError(InvalidValue, path+".portal_port", "portal port cannot be an access port")
	}
	auth.PortalPort = port
	return auth, nil
}

func (r *resolver) resolvePort(path, key string, raw *rawInterface) (*Port, error) {
	port := &Port{
		Name:           raw.Name,
		Description:    raw.Description,
		Enabled:        boolOr(raw.Enabled, true),
		OutputOnly:     raw.OutputOnly,
		UnicastFlood:   boolOr(raw.UnicastFlood, true),
		PermanentLearn: raw.PermanentLearn,
	}
	keyNumber, keyErr := strconv.ParseUint(key, 10, 32)
	switch {
	case raw.Number != nil:
		port.Number = *raw.Number
	case keyErr == nil:
		port.Number = uint32(keyNumber)
	default:
		return nil, newError(MissingRequiredField, path+".number", "interface %q has no port number", key)
	}
	if port.Number == 0 {
		return nil, newError(InvalidValue, path+".number", "port number must be positive")
	}
	if port.Name == "" {
		port.Name = key
	}
	if raw.MaxHosts != nil {
		if *raw.MaxHosts < 0 {
			return nil, newError(InvalidValue, path+".max_hosts", "max_hosts must not be negative")
		}
		port.MaxHosts = *raw.MaxHosts
	}
	switch AuthMode(raw.AuthMode) {
	case AuthModeNone, AuthModeAccess:
		port.AuthMode = AuthMode(raw.AuthMode)
	default:
		return nil, newError(InvalidValue, path+".auth_mode", "unknown auth_mode %q", raw.AuthMode)
	}

	var err error
	if raw.NativeVLAN != "" {
		if port.NativeVLAN, err = r.vlan(path+".native_vlan", raw.NativeVLAN); err != nil {
			return nil, err
		}
	}
	tagged := sets.New[uint16]()
	for _, ref := range raw.TaggedVLANs {
		v, err := r.vlan(path+".tagged_vlans", ref)
		if err != nil {
			return nil, err
		}
		if tagged.Has(v.VID) {
			return nil, newError(InvalidVLANMembership, path+".tagged_vlans", "VLAN %d listed more than once", v.VID)
		}
		if port.NativeVLAN != nil && port.NativeVLAN.VID == v.VID {
			return nil, newError(InvalidVLANMembership, path, "VLAN %d cannot be both native and tagged", v.VID)
		}
		tagged.Insert(v.VID)
		port.TaggedVLANs = append(port.TaggedVLANs, v)
	}
	if port.ACLIn, err = r.acl(path+".acl_in", string(raw.ACLIn)); err != nil {
		return nil, err
	}

	if raw.Stack != nil {
		if port.NativeVLAN != nil || len(port.TaggedVLANs) > 0 {
			return nil, newError(InvalidVLANMembership, path+".stack", "stack ports carry no VLAN configuration")
		}
		if raw.Stack.DP == "" || raw.Stack.Port == "" {
			return nil, newError(MissingRequiredField, path+".stack", "stack requires dp and port")
		}
		// The peer port may be named; it is resolved once all DPs are known.
		n, name := portRef(raw.Stack.Port)
		port.Stack = &PortStack{DPName: raw.Stack.DP, Port: n}
		if name != "" {
			port.Stack.portName = name
		}
	}
	if port.AuthMode == AuthModeAccess && port.NativeVLAN == nil {
		return nil, newError(InvalidVLANMembership, path+".auth_mode", "access ports require a native VLAN")
	}
	return port, nil
}

func (r *resolver) resolveRouters() error {
	s := r.doc.sections[sectionRouters]
	for _, name := range s.sortedKeys() {
		path := sectionRouters + "." + name
		var raw rawRouter
		if err := decodeStrict(s.entries[name], &raw); err != nil {
			return &ConfigError{Kind: ParseError, Path: path, Err: err}
		}
		router := &Router{Name: name}
		seen := sets.New[uint16]()
		for _, ref := range raw.VLANs {
			v, err := r.vlan(path+".vlans", ref)
			if err != nil {
				return err
			}
			if seen.Has(v.VID) {
				continue
			}
			seen.Insert(v.VID)
			router.VLANs = append(router.VLANs, v)
		}
		if len(router.VLANs) < 2 {
			return newError(InvalidValue, path+".vlans", "a router needs at least two VLANs")
		}
		r.cfg.Routers[name] = router
	}
	for _, dpName := range sortedDPNames(r.cfg) {
		dp := r.cfg.DPs[dpName]
		for _, name := range s.sortedKeys() {
			router := r.cfg.Routers[name]
			all := true
			for _, v := range router.VLANs {
				if _, ok := dp.VLANs[v.VID]; !ok {
					all = false
				}
			}
			if all {
				dp.Routers = append(dp.Routers, router)
			}
		}
	}
	return nil
}

// validate runs the checks that need every DP resolved.
func (r *resolver) validate() error {
	for _, name := range sortedDPNames(r.cfg) {
		dp := r.cfg.DPs[name]
		for _, n := range dp.PortNumbers {
			port := dp.Ports[n]
			if port.Stack == nil {
				continue
			}
			path := fmt.Sprintf("%s.%s.interfaces.%d.stack", sectionDPs, name, n)
			peer, ok := r.cfg.DPs[port.Stack.DPName]
			if !ok {
				return newError(UnknownReference, path, "unknown DP %q", port.Stack.DPName)
			}
			peerPort, ok := peer.ResolvePort(port.Stack.Port, port.Stack.portName)
			if !ok {
				return newError(UnknownReference, path, "unknown port on DP %q", peer.Name)
			}
			port.Stack.Port = peerPort
			port.Stack.portName = ""
		}
		if err := validateACLPorts(dp); err != nil {
			return err
		}
	}
	return nil
}

// validateACLPorts checks that every port an ACL used on dp outputs or
// mirrors to exists on dp.
func validateACLPorts(dp *DP) error {
	var acls []*ACL
	for _, n := range dp.PortNumbers {
		if acl := dp.Ports[n].ACLIn; acl != nil {
			acls = append(acls, acl)
		}
	}
	for _, vid := range dp.SortedVIDs() {
		if acl := dp.VLANs[vid].ACLIn; acl != nil {
			acls = append(acls, acl)
		}
	}
	for _, acl := range acls {
		for i, rule := range acl.Rules {
			path := fmt.Sprintf("%s.%s.%d.actions", sectionACLs, acl.Name, i)
			if out := rule.Actions.Output; out != nil {
				if _, ok := dp.ResolvePort(out.Port, out.PortName); !ok {
					return newError(UnknownReference, path+".output.port", "port %s does not exist on DP %q", portLabel(out.Port, out.PortName), dp.Name)
				}
			}
			if a := rule.Actions; a.HasMirror() {
				if _, ok := dp.ResolvePort(a.Mirror, a.MirrorName); !ok {
					return newError(UnknownReference, path+".mirror", "port %s does not exist on DP %q", portLabel(a.Mirror, a.MirrorName), dp.Name)
				}
			}
		}
	}
	return nil
}

func portLabel(number uint32, name string) string {
	if name != "" {
		return strconv.Quote(name)
	}
	return strconv.Itoa(int(number))
}

func sortedDPNames(cfg *Config) []string {
	names := make([]string, 0, len(cfg.DPs))
	for name := range cfg.DPs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortVIDs(vids []uint16) {
	sort.Slice(vids, func(i, j int) bool { return vids[i] < vids[j] })
}
