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

package manager

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"k8s.io/component-base/metrics/testutil"
	clocktesting "k8s.io/utils/clock/testing"

	"antrea.io/faucet/pkg/faucet/auth"
	"antrea.io/faucet/pkg/faucet/bgp"
	bgptest "antrea.io/faucet/pkg/faucet/bgp/testing"
	"antrea.io/faucet/pkg/faucet/metrics"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

type fakeRegistry struct {
	mutex    sync.Mutex
	handlers map[uint64]binding.SwitchHandler
	queues   map[uint64]*binding.PacketInQueue
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		handlers: make(map[uint64]binding.SwitchHandler),
		queues:   make(map[uint64]*binding.PacketInQueue),
	}
}

func (r *fakeRegistry) Register(dpid uint64, handler binding.SwitchHandler) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.handlers[dpid] = handler
}

func (r *fakeRegistry) Unregister(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.handlers, dpid)
}

func (r *fakeRegistry) SubscribePacketIn(dpid uint64, queue *binding.PacketInQueue) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.queues[dpid]; ok {
		return fmt.Errorf("packet-in consumer of %#x exists already", dpid)
	}
	r.queues[dpid] = queue
	return nil
}

func (r *fakeRegistry) UnsubscribePacketIn(dpid uint64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.queues, dpid)
}

func (r *fakeRegistry) registered() []uint64 {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var dpids []uint64
	for dpid := range r.handlers {
		_, ok := r.queues[dpid]
		if ok {
			dpids = append(dpids, dpid)
		}
	}
	sort.Slice(dpids, func(i, j int) bool { return dpids[i] < dpids[j] })
	return dpids
}

const oneDP = `
vlans:
    100: {}
dps:
    sw1:
        dp_id: 0x301
        interfaces:
            1: {native_vlan: 100}
`

const twoDPs = `
vlans:
    100: {}
    200: {}
dps:
    sw1:
        dp_id: 0x301
        interfaces:
            1: {native_vlan: 100}
    sw2:
        dp_id: 0x302
        interfaces:
            1: {native_vlan: 200}
`

const movedDP = `
vlans:
    200: {}
dps:
    sw2:
        dp_id: 0x303
        interfaces:
            1: {native_vlan: 200}
`

const accessDP = `
vlans:
    100: {}
dps:
    sw1:
        dp_id: 0x311
        auth:
            portal_mac: "0e:00:00:00:00:aa"
            portal_port: 3
        interfaces:
            1: {native_vlan: 100, auth_mode: access}
            3: {native_vlan: 100}
`

const bgpVLAN = `
vlans:
    100:
        faucet_vips: ["10.0.0.254/24"]
%s
dps:
    sw1:
        dp_id: 0x321
        interfaces:
            1: {native_vlan: 100}
`

const bgpSettings = `
        bgp_as: 65000
        bgp_routerid: "10.0.0.254"
        bgp_neighbor_addresses: ["10.0.0.1"]
        bgp_neighbor_as: 65001
`

func writeConfig(t *testing.T, path, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))
}

func startManager(t *testing.T, doc string, newBGPClient bgp.ClientFactory) (*Manager, *fakeRegistry, string) {
	metrics.InitializeMetrics()
	path := filepath.Join(t.TempDir(), "faucet.yaml")
	writeConfig(t, path, doc)
	registry := newFakeRegistry()
	m := NewManager(path, registry, newBGPClient, clocktesting.NewFakeClock(time.Now()), 0)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	t.Cleanup(func() {
		cancel()
		m.Stop()
	})
	return m, registry, path
}

func TestStartInvalidConfig(t *testing.T) {
	metrics.InitializeMetrics()
	path := filepath.Join(t.TempDir(), "faucet.yaml")
	writeConfig(t, path, "dps: [")
	m := NewManager(path, newFakeRegistry(), nil, clocktesting.NewFakeClock(time.Now()), 0)
	assert.Error(t, m.Start(context.Background()))
	loadError, err := testutil.GetGaugeMetricValue(metrics.ConfigLoadError)
	require.NoError(t, err)
	assert.Equal(t, float64(1), loadError)
}

func TestReload(t *testing.T) {
	m, registry, path := startManager(t, oneDP, nil)
	assert.Equal(t, []uint64{0x301}, registry.registered())
	assert.Equal(t, []string{path}, m.Files())
	requests, err := testutil.GetCounterMetricValue(metrics.ConfigReloadRequests)
	require.NoError(t, err)

	writeConfig(t, path, twoDPs)
	require.NoError(t, m.Reload())
	assert.Equal(t, []uint64{0x301, 0x302}, registry.registered())

	// sw1 is removed and sw2 moves to a new dp_id.
	writeConfig(t, path, movedDP)
	require.NoError(t, m.Reload())
	assert.Equal(t, []uint64{0x303}, registry.registered())

	writeConfig(t, path, "dps: [")
	assert.Error(t, m.Reload())
	assert.Equal(t, []uint64{0x303}, registry.registered())
	loadError, err := testutil.GetGaugeMetricValue(metrics.ConfigLoadError)
	require.NoError(t, err)
	assert.Equal(t, float64(1), loadError)

	writeConfig(t, path, movedDP)
	require.NoError(t, m.Reload())
	loadError, err = testutil.GetGaugeMetricValue(metrics.ConfigLoadError)
	require.NoError(t, err)
	assert.Equal(t, float64(0), loadError)

	newRequests, err := testutil.GetCounterMetricValue(metrics.ConfigReloadRequests)
	require.NoError(t, err)
	assert.Equal(t, float64(4), newRequests-requests)
}

func TestDispatchAuthEvent(t *testing.T) {
	m, _, _ := startManager(t, accessDP, nil)
	mac, _ := net.ParseMAC("0e:00:00:00:01:01")

	err := m.DispatchAuthEvent("sw2", auth.Event{Port: 1, MAC: mac, Type: auth.Logon})
	assert.ErrorIs(t, err, auth.ErrUnknownDP)
	err = m.DispatchAuthEvent("sw1", auth.Event{Port: 3, MAC: mac, Type: auth.Logon})
	assert.ErrorIs(t, err, auth.ErrNotAccessPort)
	err = m.DispatchAuthEvent("sw1", auth.Event{Port: 7, MAC: mac, Type: auth.Logon})
	assert.ErrorIs(t, err, auth.ErrNotAccessPort)
	assert.NoError(t, m.DispatchAuthEvent("sw1", auth.Event{Port: 1, MAC: mac, Type: auth.Logon}))
}

func TestDispatchAuthEventBeforeStart(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "faucet.yaml"), newFakeRegistry(), nil, clocktesting.NewFakeClock(time.Now()), 0)
	mac, _ := net.ParseMAC("0e:00:00:00:01:01")
	err := m.DispatchAuthEvent("sw1", auth.Event{Port: 1, MAC: mac, Type: auth.Logon})
	assert.ErrorIs(t, err, auth.ErrUnknownDP)
}

func TestBGPSpeakerLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := bgptest.NewMockInterface(ctrl)
	watching := make(chan struct{})
	stopped := make(chan struct{})

	client.EXPECT().Start(gomock.Any()).Return(nil)
	client.EXPECT().AddPeer(gomock.Any(), bgp.PeerConfig{Address: "10.0.0.1", ASN: 65001}).Return(nil)
	client.EXPECT().AdvertiseRoutes(gomock.Any(), []bgp.Route{{Prefix: "10.0.0.0/24", NextHop: "10.0.0.254"}}).Return(nil)
	client.EXPECT().Watch(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, handler func([]bgp.Route)) error {
		handler([]bgp.Route{{Prefix: "192.168.0.0/24", NextHop: "10.0.0.1"}})
		close(watching)
		<-ctx.Done()
		return ctx.Err()
	})
	client.EXPECT().Stop(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		close(stopped)
		return nil
	})

	var created []uint16
	newClient := func(global *bgp.GlobalConfig, vid uint16) bgp.Interface {
		assert.Equal(t, uint32(65000), global.ASN)
		assert.Equal(t, "10.0.0.254", global.RouterID)
		assert.Equal(t, int32(179), global.ListenPort)
		created = append(created, vid)
		return client
	}

	m, _, path := startManager(t, fmt.Sprintf(bgpVLAN, bgpSettings), newClient)
	select {
	case <-watching:
	case <-time.After(5 * time.Second):
		t.Fatal("BGP speaker did not start watching routes")
	}
	assert.Equal(t, []uint16{100}, created)

	writeConfig(t, path, fmt.Sprintf(bgpVLAN, ""))
	require.NoError(t, m.Reload())
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("BGP speaker was not stopped")
	}
	assert.Empty(t, m.speakers)
}
