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

package gobgp

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"

	gobgpapi "github.com/osrg/gobgp/v3/api"
	gobgp "github.com/osrg/gobgp/v3/pkg/server"
	"google.golang.org/protobuf/types/known/anypb"
	"k8s.io/klog/v2"

	"antrea.io/faucet/pkg/faucet/bgp"
)

var (
	ipv4Family = &gobgpapi.Family{Afi: gobgpapi.Family_AFI_IP, Safi: gobgpapi.Family_SAFI_UNICAST}
	ipv6Family = &gobgpapi.Family{Afi: gobgpapi.Family_AFI_IP6, Safi: gobgpapi.Family_SAFI_UNICAST}
)

// Server is a bgp.Interface backed by an embedded gobgp server.
type Server struct {
	server       *gobgp.BgpServer
	globalConfig *bgp.GlobalConfig

	// received holds the best received route of each prefix, for Watch.
	mutex    sync.Mutex
	received map[string]bgp.Route
}

var _ bgp.Interface = &Server{}

func NewGoBGPServer(globalConfig *bgp.GlobalConfig, keysAndValues ...interface{}) *Server {
	return &Server{
		server:       gobgp.NewBgpServer(gobgp.LoggerOption(newKlogLogger(keysAndValues...))),
		globalConfig: globalConfig,
		received:     make(map[string]bgp.Route),
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.server.Serve()

	if err := s.server.StartBgp(ctx, &gobgpapi.StartBgpRequest{
		Global: &gobgpapi.Global{
			Asn:        s.globalConfig.ASN,
			RouterId:   s.globalConfig.RouterID,
			ListenPort: s.globalConfig.ListenPort,
		},
	}); err != nil {
		return fmt.Errorf("failed to start BGP: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.server.StopBgp(ctx, &gobgpapi.StopBgpRequest{}); err != nil {
		return fmt.Errorf("failed to stop BGP: %w", err)
	}
	return nil
}

func (s *Server) AddPeer(ctx context.Context, peerConf bgp.PeerConfig) error {
	peer := &gobgpapi.Peer{
		Conf: &gobgpapi.PeerConf{
			NeighborAddress: peerConf.Address,
			PeerAsn:         peerConf.ASN,
		},
		Transport: &gobgpapi.Transport{
			RemotePort: uint32(peerConf.Port),
		},
		AfiSafis: []*gobgpapi.AfiSafi{
			{Config: &gobgpapi.AfiSafiConfig{Family: ipv4Family, Enabled: true}},
			{Config: &gobgpapi.AfiSafiConfig{Family: ipv6Family, Enabled: true}},
		},
	}
	if err := s.server.AddPeer(ctx, &gobgpapi.AddPeerRequest{Peer: peer}); err != nil {
		return fmt.Errorf("failed to add BGP peer %s: %w", peerConf.Address, err)
	}
	return nil
}

func (s *Server) RemovePeer(ctx context.Context, peerConf bgp.PeerConfig) error {
	if err := s.server.DeletePeer(ctx, &gobgpapi.DeletePeerRequest{Address: peerConf.Address}); err != nil {
		return fmt.Errorf("failed to remove BGP peer %s: %w", peerConf.Address, err)
	}
	return nil
}

func convertSessionState(state gobgpapi.PeerState_SessionState) bgp.SessionState {
	switch state {
	case gobgpapi.PeerState_IDLE:
		return bgp.SessionIdle
	case gobgpapi.PeerState_CONNECT:
		return bgp.SessionConnect
	case gobgpapi.PeerState_ACTIVE:
		return bgp.SessionActive
	case gobgpapi.PeerState_OPENSENT:
		return bgp.SessionOpenSent
	case gobgpapi.PeerState_OPENCONFIRM:
		return bgp.SessionOpenConfirm
	case gobgpapi.PeerState_ESTABLISHED:
		return bgp.SessionEstablished
	}
	return bgp.SessionUnknown
}

func (s *Server) GetPeers(ctx context.Context) ([]bgp.PeerStatus, error) {
	var peers []bgp.PeerStatus
	err := s.server.ListPeer(ctx, &gobgpapi.ListPeerRequest{}, func(peer *gobgpapi.Peer) {
		status := bgp.PeerStatus{
			Address: peer.GetConf().GetNeighborAddress(),
			ASN:     peer.GetConf().GetPeerAsn(),
			Port:    int32(peer.GetTransport().GetRemotePort()),
		}
		status.SessionState = convertSessionState(peer.GetState().GetSessionState())
		peers = append(peers, status)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list BGP peers: %w", err)
	}
	return peers, nil
}

// generatePath builds the path of route. Without a next hop the path is
// sent with the speaker's own address.
func generatePath(route bgp.Route) (*gobgpapi.Path, error) {
	ip, ipNet, err := net.ParseCIDR(route.Prefix)
	if err != nil {
		return nil, err
	}
	prefixLen, _ := ipNet.Mask.Size()
	nlri, err := anypb.New(&gobgpapi.IPAddressPrefix{
		Prefix:    ipNet.IP.String(),
		PrefixLen: uint32(prefixLen),
	})
	if err != nil {
		return nil, err
	}
	origin, err := anypb.New(&gobgpapi.OriginAttribute{Origin: 0})
	if err != nil {
		return nil, err
	}

	nh := route.NextHop
	if ip.To4() != nil {
		if nh == "" {
			nh = "0.0.0.0"
		}
		nextHop, err := anypb.New(&gobgpapi.NextHopAttribute{NextHop: nh})
		if err != nil {
			return nil, err
		}
		return &gobgpapi.Path{
			Family: ipv4Family,
			Nlri:   nlri,
			Pattrs: []*anypb.Any{origin, nextHop},
		}, nil
	}
	if nh == "" {
		nh = "::"
	}
	mpReach, err := anypb.New(&gobgpapi.MpReachNLRIAttribute{
		Family:   ipv6Family,
		NextHops: []string{nh},
		Nlris:    []*anypb.Any{nlri},
	})
	if err != nil {
		return nil, err
	}
	return &gobgpapi.Path{
		Family: ipv6Family,
		Nlri:   nlri,
		Pattrs: []*anypb.Any{origin, mpReach},
	}, nil
}

func (s *Server) AdvertiseRoutes(ctx context.Context, routes []bgp.Route) error {
	for _, route := range routes {
		path, err := generatePath(route)
		if err != nil {
			return fmt.Errorf("failed to generate path for route %s: %w", route.Prefix, err)
		}
		if _, err := s.server.AddPath(ctx, &gobgpapi.AddPathRequest{TableType: gobgpapi.TableType_GLOBAL, Path: path}); err != nil {
			return fmt.Errorf("failed to advertise route %s: %w", route.Prefix, err)
		}
	}
	return nil
}

func (s *Server) WithdrawRoutes(ctx context.Context, routes []bgp.Route) error {
	for _, route := range routes {
		path, err := generatePath(route)
		if err != nil {
			return fmt.Errorf("failed to generate path for route %s: %w", route.Prefix, err)
		}
		if err := s.server.DeletePath(ctx, &gobgpapi.DeletePathRequest{TableType: gobgpapi.TableType_GLOBAL, Family: path.Family, Path: path}); err != nil {
			return fmt.Errorf("failed to withdraw route %s: %w", route.Prefix, err)
		}
	}
	return nil
}

// nextHop returns the next hop carried by the attributes of path.
func nextHop(path *gobgpapi.Path) string {
	for _, attr := range path.GetPattrs() {
		msg, err := attr.UnmarshalNew()
		if err != nil {
			continue
		}
		switch a := msg.(type) {
		case *gobgpapi.NextHopAttribute:
			return a.NextHop
		case *gobgpapi.MpReachNLRIAttribute:
			if len(a.NextHops) > 0 {
				return a.NextHops[0]
			}
		}
	}
	return ""
}

func (s *Server) GetRoutes(ctx context.Context, routeType bgp.RouteType, peerAddress string) ([]bgp.Route, error) {
	var tableType gobgpapi.TableType
	switch routeType {
	case bgp.RouteAdvertised:
		tableType = gobgpapi.TableType_ADJ_OUT
	case bgp.RouteReceived:
		tableType = gobgpapi.TableType_ADJ_IN
	default:
		return nil, fmt.Errorf("unsupported route type %q", routeType)
	}

	var routes []bgp.Route
	for _, family := range []*gobgpapi.Family{ipv4Family, ipv6Family} {
		err := s.server.ListPath(ctx, &gobgpapi.ListPathRequest{
			TableType: tableType,
			Family:    family,
			Name:      peerAddress,
		}, func(d *gobgpapi.Destination) {
			route := bgp.Route{Prefix: d.GetPrefix()}
			if routeType == bgp.RouteReceived && len(d.GetPaths()) > 0 {
				route.NextHop = nextHop(d.GetPaths()[0])
			}
			routes = append(routes, route)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list routes of peer %s: %w", peerAddress, err)
		}
	}
	return routes, nil
}

// isReceived tells paths learned from a peer from the locally originated
// ones, whose neighbor address is unset.
func isReceived(path *gobgpapi.Path) bool {
	ip := net.ParseIP(path.GetNeighborIp())
	return ip != nil && !ip.IsUnspecified()
}

// updateReceived applies a batch of best path changes and returns the
// resulting routes sorted by prefix, and whether anything changed.
func (s *Server) updateReceived(paths []*gobgpapi.Path) ([]bgp.Route, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	changed := false
	for _, path := range paths {
		var nlri gobgpapi.IPAddressPrefix
		if err := path.GetNlri().UnmarshalTo(&nlri); err != nil {
			klog.ErrorS(err, "Ignoring path with unsupported NLRI")
			continue
		}
		prefix := fmt.Sprintf("%s/%d", nlri.Prefix, nlri.PrefixLen)
		_, known := s.received[prefix]
		if path.GetIsWithdraw() || !isReceived(path) {
			if known {
				delete(s.received, prefix)
				changed = true
			}
			continue
		}
		route := bgp.Route{Prefix: prefix, NextHop: nextHop(path)}
		if s.received[prefix] != route {
			s.received[prefix] = route
			changed = true
		}
	}
	routes := make([]bgp.Route, 0, len(s.received))
	for _, r := range s.received {
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Prefix < routes[j].Prefix })
	return routes, changed
}

func (s *Server) Watch(ctx context.Context, handler func(routes []bgp.Route)) error {
	err := s.server.WatchEvent(ctx, &gobgpapi.WatchEventRequest{
		Table: &gobgpapi.WatchEventRequest_Table{
			Filters: []*gobgpapi.WatchEventRequest_Table_Filter{
				{Type: gobgpapi.WatchEventRequest_Table_Filter_BEST, Init: true},
			},
		},
	}, func(r *gobgpapi.WatchEventResponse) {
		table := r.GetTable()
		if table == nil {
			return
		}
		if routes, changed := s.updateReceived(table.GetPaths()); changed {
			handler(routes)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to watch BGP paths: %w", err)
	}
	// The watcher runs in the background until ctx is done.
	<-ctx.Done()
	return nil
}
