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

package route

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/openflow"
	utilip "antrea.io/faucet/pkg/util/ip"
)

const routedConfig = `
vlans:
    100:
        faucet_vips: ["10.0.0.254/24", "fc00::1:254/112"]
        routes:
            - route:
                ip_dst: 10.0.1.0/24
                ip_gw: 10.0.0.1
    200:
        faucet_vips: ["10.0.2.254/24"]
routers:
    r1:
        vlans: [100, 200]
dps:
    sw1:
        dp_id: 1
        arp_neighbor_timeout: 30
        max_resolve_backoff_time: 4
        proactive_learn: PROACTIVE
        interfaces:
            1: {native_vlan: 100}
            2: {native_vlan: 200}
`

var (
	gwMAC   = utilip.MustParseMAC("0e:00:00:00:02:01")
	hostMAC = utilip.MustParseMAC("0e:00:00:00:02:05")
)

func parseDP(t *testing.T, doc string) *config.DP {
	t.Helper()
	cfg, err := config.Parse([]byte(doc), t.TempDir())
	require.NoError(t, err)
	return cfg.DPs["sw1"]
}

func newTestTable(t *testing.T, proactive bool) (*Table, *clocktesting.FakeClock) {
	doc := strings.Replace(routedConfig, "PROACTIVE", "False", 1)
	if proactive {
		doc = strings.Replace(routedConfig, "PROACTIVE", "True", 1)
	}
	clock := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	return NewTable(parseDP(t, doc), clock), clock
}

func requestIPs(result *TickResult) []string {
	var ips []string
	for _, r := range result.Requests {
		ips = append(ips, r.IP.String())
	}
	return ips
}

func TestResolveBackoff(t *testing.T) {
	table, clock := newTestTable(t, false)
	ip := net.ParseIP("10.0.0.5")
	require.NoError(t, table.Resolve(100, ip))

	result := table.Tick()
	require.Len(t, result.Requests, 1)
	assert.Equal(t, Request{VID: 100, IP: ip.To4(), VIP: utilip.MustParseCIDR("10.0.0.254/24")}, result.Requests[0])
	assert.Empty(t, table.Tick().Requests)

	// Requests go out after 1, 2 and 4 seconds, the maximum.
	for _, step := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		clock.Step(step - time.Millisecond)
		assert.Empty(t, table.Tick().Requests)
		clock.Step(time.Millisecond)
		assert.Equal(t, []string{"10.0.0.5"}, requestIPs(table.Tick()))
	}

	clock.Step(4 * time.Second)
	result = table.Tick()
	assert.Empty(t, result.Requests)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "could not resolve 10.0.0.5 on VLAN 100 after 4 attempts", result.Failures[0].Error())
	assert.True(t, result.Changed)
	n, ok := table.Neighbor(100, ip)
	require.True(t, ok)
	assert.Equal(t, Unreachable, n.State)

	// Unreachable neighbors are forgotten after arp_neighbor_timeout.
	clock.Step(30 * time.Second)
	result = table.Tick()
	require.Len(t, result.Expired, 1)
	_, ok = table.Neighbor(100, ip)
	assert.False(t, ok)
}

func TestResolveNotConnected(t *testing.T) {
	table, _ := newTestTable(t, false)
	assert.EqualError(t, table.Resolve(100, net.ParseIP("10.0.2.5")), "10.0.2.5 is not a connected network of VLAN 100")
	assert.EqualError(t, table.Resolve(300, net.ParseIP("10.0.0.5")), "VLAN 300 does not exist")
}

func TestQueueAndLearn(t *testing.T) {
	table, clock := newTestTable(t, false)
	ip := net.ParseIP("10.0.0.5")

	for _, p := range []string{"first", "second"} {
		mac, err := table.Queue(100, ip, []byte(p))
		require.NoError(t, err)
		assert.Nil(t, mac)
	}
	assert.Len(t, table.Tick().Requests, 1)

	changed, queued := table.Learn(100, ip, hostMAC)
	assert.True(t, changed)
	assert.Equal(t, [][]byte{[]byte("first"), []byte("second")}, queued)
	n, _ := table.Neighbor(100, ip)
	assert.Equal(t, Resolved, n.State)
	assert.Equal(t, clock.Now(), n.UpdatedAt)
	assert.Empty(t, table.Tick().Requests)

	mac, err := table.Queue(100, ip, []byte("third"))
	require.NoError(t, err)
	assert.Equal(t, hostMAC, mac)

	changed, _ = table.Learn(100, ip, hostMAC)
	assert.False(t, changed)
	assert.Equal(t, 1, table.NeighborCount(100, 4))
	assert.Zero(t, table.NeighborCount(100, 6))

	// Non gateway neighbors expire.
	clock.Step(30 * time.Second)
	result := table.Tick()
	require.Len(t, result.Expired, 1)
	assert.True(t, result.Changed)
	assert.Zero(t, table.NeighborCount(100, 4))
}

func TestQueueBounded(t *testing.T) {
	table, _ := newTestTable(t, false)
	ip := net.ParseIP("fc00::1:5")
	for i := 0; i < maxQueuedPackets+3; i++ {
		_, err := table.Queue(100, ip, []byte{byte(i)})
		require.NoError(t, err)
	}
	_, queued := table.Learn(100, ip, hostMAC)
	require.Len(t, queued, maxQueuedPackets)
	assert.Equal(t, []byte{3}, queued[0])
	assert.Equal(t, 1, table.NeighborCount(100, 6))
}

func TestQueueUnreachable(t *testing.T) {
	table, clock := newTestTable(t, false)
	ip := net.ParseIP("10.0.0.5")
	require.NoError(t, table.Resolve(100, ip))
	for i := 0; i < 5; i++ {
		table.Tick()
		clock.Step(4 * time.Second)
	}
	table.Tick()

	_, err := table.Queue(100, ip, []byte("dropped"))
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, uint16(100), resErr.VID)
}

func TestLearnIgnored(t *testing.T) {
	table, _ := newTestTable(t, false)
	changed, _ := table.Learn(100, net.ParseIP("10.0.0.254"), hostMAC)
	assert.False(t, changed)
	changed, _ = table.Learn(100, net.ParseIP("192.168.0.1"), hostMAC)
	assert.False(t, changed)
	neighbors, _ := table.State()
	assert.Empty(t, neighbors)
}

func TestRouteState(t *testing.T) {
	table, clock := newTestTable(t, false)
	gw := net.ParseIP("10.0.0.1")

	neighbors, routes := table.State()
	assert.Empty(t, neighbors)
	assert.Equal(t, []openflow.Route{{
		VID:     100,
		Dst:     utilip.MustParseCIDR("10.0.1.0/24"),
		Gateway: gw.To4(),
	}}, routes)

	// The gateway does not answer.
	_, err := table.Queue(100, gw, []byte("packet"))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		table.Tick()
		clock.Step(4 * time.Second)
	}
	_, routes = table.State()
	require.Len(t, routes, 1)
	assert.True(t, routes[0].Unreachable)

	// It answers later.
	changed, queued := table.Learn(100, gw, gwMAC)
	assert.True(t, changed)
	assert.Empty(t, queued)
	neighbors, routes = table.State()
	assert.Equal(t, []openflow.Neighbor{{VID: 100, IP: gw.To4(), MAC: gwMAC}}, neighbors)
	assert.False(t, routes[0].Unreachable)
}

func TestProactiveGatewayResolution(t *testing.T) {
	table, clock := newTestTable(t, true)

	result := table.Tick()
	assert.Equal(t, []string{"10.0.0.1"}, requestIPs(result))

	table.Learn(100, net.ParseIP("10.0.0.1"), gwMAC)
	assert.Empty(t, table.Tick().Requests)

	// A gateway is refreshed rather than expired, and keeps forwarding
	// meanwhile.
	clock.Step(30 * time.Second)
	result = table.Tick()
	assert.Equal(t, []string{"10.0.0.1"}, requestIPs(result))
	assert.Empty(t, result.Expired)
	assert.False(t, result.Changed)
	neighbors, _ := table.State()
	require.Len(t, neighbors, 1)

	changed, _ := table.Learn(100, net.ParseIP("10.0.0.1"), gwMAC)
	assert.False(t, changed)
	clock.Step(time.Second)
	assert.Empty(t, table.Tick().Requests)
}

func TestSetDPCancelsResolution(t *testing.T) {
	table, _ := newTestTable(t, true)
	require.NoError(t, table.Resolve(200, net.ParseIP("10.0.2.5")))
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.2.5"}, requestIPs(table.Tick()))

	cancelled := table.SetDP(parseDP(t, `
vlans:
    100:
        faucet_vips: ["10.0.0.254/24"]
dps:
    sw1:
        dp_id: 1
        interfaces:
            1: {native_vlan: 100}
`))
	var ips []string
	for _, n := range cancelled {
		ips = append(ips, n.IP.String())
	}
	assert.ElementsMatch(t, []string{"10.0.0.1", "10.0.2.5"}, ips)
	assert.Empty(t, table.Routes())
	assert.Empty(t, table.Tick().Requests)
}

func TestNextHop(t *testing.T) {
	table, _ := newTestTable(t, false)
	for _, tc := range []struct {
		dst         string
		expectedVID uint16
		expectedIP  string
		expectedErr error
	}{
		{dst: "10.0.0.9", expectedVID: 100, expectedIP: "10.0.0.9"},
		{dst: "10.0.2.9", expectedVID: 200, expectedIP: "10.0.2.9"},
		{dst: "10.0.1.9", expectedVID: 100, expectedIP: "10.0.0.1"},
		{dst: "8.8.8.8", expectedErr: ErrNoRoute},
	} {
		t.Run(tc.dst, func(t *testing.T) {
			vid, ip, err := table.NextHop(100, net.ParseIP(tc.dst))
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedVID, vid)
			assert.Equal(t, tc.expectedIP, ip.String())
		})
	}
}

func TestBGPRoutes(t *testing.T) {
	table, _ := newTestTable(t, false)
	rejected := table.SetBGPRoutes(100, []Entry{
		{Dst: utilip.MustParseCIDR("10.99.0.0/16"), Gateway: net.ParseIP("10.0.0.2")},
		{Dst: utilip.MustParseCIDR("10.98.0.0/16"), Gateway: net.ParseIP("10.0.0.254")},
		{Dst: utilip.MustParseCIDR("10.97.0.0/16"), Gateway: net.ParseIP("192.168.0.1")},
		{Dst: utilip.MustParseCIDR("10.0.1.0/24"), Gateway: net.ParseIP("10.0.0.3")},
	})
	require.Len(t, rejected, 3)
	assert.Equal(t, 1, table.RouteCount(100, 4, BGP))
	assert.Equal(t, 1, table.RouteCount(100, 4, Static))

	vid, gw, err := table.NextHop(200, net.ParseIP("10.99.1.1"))
	require.NoError(t, err)
	assert.Equal(t, uint16(100), vid)
	assert.Equal(t, "10.0.0.2", gw.String())

	// Replacing withdraws the previous set.
	assert.Empty(t, table.SetBGPRoutes(100, nil))
	assert.Zero(t, table.RouteCount(100, 4, BGP))
}

func TestExportRoutes(t *testing.T) {
	table, _ := newTestTable(t, false)
	table.SetBGPRoutes(100, []Entry{{Dst: utilip.MustParseCIDR("10.99.0.0/16"), Gateway: net.ParseIP("10.0.0.2")}})

	var exported []string
	for _, r := range table.ExportRoutes(100) {
		exported = append(exported, r.Dst.String()+" via "+r.Gateway.String())
	}
	assert.Equal(t, []string{
		"10.0.0.0/24 via 10.0.0.254",
		"fc00::1:0/112 via fc00::1:254",
		"10.0.1.0/24 via 10.0.0.1",
	}, exported)
	assert.Nil(t, table.ExportRoutes(300))
}
