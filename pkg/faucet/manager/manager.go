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

// Package manager loads the network configuration and keeps one datapath
// controller running per configured DP, and one BGP speaker per VLAN with
// BGP enabled. Reloads are classified per DP and handed to the controllers.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/auth"
	"antrea.io/faucet/pkg/faucet/bgp"
	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/datapath"
	"antrea.io/faucet/pkg/faucet/metrics"
	"antrea.io/faucet/pkg/faucet/reload"
	binding "antrea.io/faucet/pkg/ovs/openflow"
	"antrea.io/faucet/pkg/util/channel"
	"antrea.io/faucet/pkg/util/wait"
)

const (
	bgpUpdateQueueSize = 100
	// stopTimeout bounds the time to wait for controllers and speakers to
	// return once the manager is stopped.
	stopTimeout = 5 * time.Second
)

// SwitchRegistry hands connected switches and their packet-ins to the
// controllers of their datapath.
type SwitchRegistry interface {
	Register(dpid uint64, handler binding.SwitchHandler)
	Unregister(dpid uint64)
	SubscribePacketIn(dpid uint64, pktInQueue *binding.PacketInQueue) error
	UnsubscribePacketIn(dpid uint64)
}

var _ SwitchRegistry = &binding.OFController{}

type dpRunner struct {
	name       string
	controller *datapath.Controller
	cancel     context.CancelFunc
}

type speakerRunner struct {
	speaker *bgp.Speaker
	cancel  context.CancelFunc
}

type Manager struct {
	configPath   string
	switches     SwitchRegistry
	newBGPClient bgp.ClientFactory
	clock        clock.WithTicker
	packetInRate int

	bgpUpdates *channel.SubscribableChannel[bgp.Update]
	group      *wait.Group

	// ctx is the context of Start, parent of the contexts of controllers
	// and speakers.
	ctx context.Context

	// mutex protects the fields below, read by auth and BGP events. They
	// are only written by Start and Reload, which read them without the
	// lock.
	mutex    sync.RWMutex
	config   *config.Config
	dps      map[string]*dpRunner
	speakers map[uint16]*speakerRunner
	// bgpRoutes is the last update received per VLAN, replayed to
	// datapaths started afterwards.
	bgpRoutes map[uint16]bgp.Update
}

var _ auth.Dispatcher = &Manager{}

func NewManager(configPath string, switches SwitchRegistry, newBGPClient bgp.ClientFactory, clock clock.WithTicker, packetInRate int) *Manager {
	return &Manager{
		configPath:   configPath,
		switches:     switches,
		newBGPClient: newBGPClient,
		clock:        clock,
		packetInRate: packetInRate,
		bgpUpdates:   channel.NewSubscribableChannel[bgp.Update]("BGPUpdate", bgpUpdateQueueSize),
		group:        wait.NewGroup(),
		dps:          make(map[string]*dpRunner),
		speakers:     make(map[uint16]*speakerRunner),
		bgpRoutes:    make(map[uint16]bgp.Update),
	}
}

// Start loads the configuration and starts its datapaths and speakers. An
// invalid initial configuration is an error.
func (m *Manager) Start(ctx context.Context) error {
	cfg, err := config.Load(m.configPath)
	if err != nil {
		metrics.ConfigLoadError.Set(1)
		return fmt.Errorf("failed to load configuration %s: %w", m.configPath, err)
	}
	metrics.ConfigLoadError.Set(0)
	m.ctx = ctx
	m.bgpUpdates.Subscribe(m.dispatchBGPUpdate)
	go m.bgpUpdates.Run(ctx)
	m.apply(cfg)
	return nil
}

// Run starts the manager and reloads the configuration on every value of
// reloadCh. When watchInterval is positive the configuration files are
// watched too, and a reload follows changes after watchInterval without
// further writes. Run returns after ctx is done and the datapaths stopped.
func (m *Manager) Run(ctx context.Context, reloadCh <-chan struct{}, watchInterval time.Duration) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop()

	var changeCh <-chan struct{}
	var watcher *configWatcher
	if watchInterval > 0 {
		var err error
		if watcher, err = newConfigWatcher(m.clock, watchInterval); err != nil {
			return fmt.Errorf("failed to create configuration watcher: %w", err)
		}
		watcher.setFiles(m.Files())
		changeCh = watcher.changes()
		go watcher.run(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			klog.InfoS("Stopping datapath manager")
			return nil
		case <-reloadCh:
		case <-changeCh:
			klog.InfoS("Configuration files changed")
		}
		if err := m.Reload(); err != nil {
			continue
		}
		if watcher != nil {
			watcher.setFiles(m.Files())
		}
	}
}

// Stop waits for the controllers and speakers to return after the context
// of Start is done.
func (m *Manager) Stop() {
	if err := m.group.WaitWithTimeout(stopTimeout); err != nil {
		klog.ErrorS(err, "Controllers did not stop in time")
	}
}

// Files returns the files of the active configuration.
func (m *Manager) Files() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.config == nil {
		return nil
	}
	return m.config.Files
}

// Reload loads the configuration again and reconciles the running
// datapaths with it. An invalid configuration leaves everything as it is.
func (m *Manager) Reload() error {
	metrics.ConfigReloadRequests.Inc()
	cfg, err := config.Load(m.configPath)
	if err != nil {
		metrics.ConfigLoadError.Set(1)
		klog.ErrorS(err, "Rejected new configuration, keeping the active one", "path", m.configPath)
		return err
	}
	metrics.ConfigLoadError.Set(0)
	m.apply(cfg)
	return nil
}

func (m *Manager) apply(cfg *config.Config) {
	m.mutex.Lock()
	old := m.config
	m.config = cfg
	m.mutex.Unlock()

	result := reload.Classify(old, cfg)
	for _, name := range result.Removed {
		m.stopDP(name)
	}
	for name, plan := range result.Plans {
		dp := cfg.DPs[name]
		if old.DPs[name].DPID != dp.DPID {
			// Controllers are registered by dp_id.
			m.stopDP(name)
			m.startDP(dp)
			continue
		}
		if plan.Kind == reload.NoOp {
			continue
		}
		if err := m.dps[name].controller.Reload(dp, plan); err != nil {
			klog.ErrorS(err, "Failed to reload datapath", "dp", name)
		}
	}
	for _, name := range result.Added {
		m.startDP(cfg.DPs[name])
	}
	m.reconcileSpeakers(cfg)
	klog.InfoS("Applied configuration", "hash", cfg.Hash(), "added", result.Added, "removed", result.Removed)
}

func (m *Manager) startDP(dp *config.DP) {
	ctx, cancel := context.WithCancel(m.ctx)
	c := datapath.NewController(dp, m.clock, m.packetInRate)
	if err := m.switches.SubscribePacketIn(dp.DPID, c.PacketInQueue()); err != nil {
		klog.ErrorS(err, "Failed to subscribe to packet-ins", "dp", dp.Name)
	}
	m.group.Go(func() {
		c.Run(ctx)
	})
	m.switches.Register(dp.DPID, c)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dps[dp.Name] = &dpRunner{name: dp.Name, controller: c, cancel: cancel}
	for vid, update := range m.bgpRoutes {
		if _, ok := dp.VLANs[vid]; !ok {
			continue
		}
		if err := c.UpdateBGPRoutes(update); err != nil {
			klog.ErrorS(err, "Failed to deliver BGP routes", "dp", dp.Name, "vlan", vid)
		}
	}
}

func (m *Manager) stopDP(name string) {
	m.mutex.Lock()
	r, ok := m.dps[name]
	delete(m.dps, name)
	m.mutex.Unlock()
	if !ok {
		return
	}
	m.switches.Unregister(r.controller.DPID())
	m.switches.UnsubscribePacketIn(r.controller.DPID())
	r.cancel()
}

// reconcileSpeakers starts the speakers of VLANs with BGP, restarts the
// ones whose BGP settings changed and updates the routes the others
// advertise.
func (m *Manager) reconcileSpeakers(cfg *config.Config) {
	for vid, r := range m.speakers {
		vlan, ok := cfg.VLANs[vid]
		if ok && r.speaker.SameConfig(vlan) {
			if err := r.speaker.Reconcile(m.ctx, vlan); err != nil {
				klog.ErrorS(err, "Failed to update advertised routes", "vlan", vid)
			}
			continue
		}
		klog.InfoS("Stopping BGP speaker", "vlan", vid)
		r.cancel()
		m.mutex.Lock()
		delete(m.speakers, vid)
		delete(m.bgpRoutes, vid)
		m.mutex.Unlock()
	}
	for vid, vlan := range cfg.VLANs {
		if vlan.BGP == nil {
			continue
		}
		if _, ok := m.speakers[vid]; ok {
			continue
		}
		ctx, cancel := context.WithCancel(m.ctx)
		s := bgp.NewSpeaker(vlan, m.newBGPClient, m.bgpUpdates)
		m.mutex.Lock()
		m.speakers[vid] = &speakerRunner{speaker: s, cancel: cancel}
		m.mutex.Unlock()
		m.group.Go(func() {
			if err := s.Run(ctx, vlan); err != nil && ctx.Err() == nil {
				klog.ErrorS(err, "BGP speaker failed", "vlan", vlan.VID)
			}
		})
	}
}

// dispatchBGPUpdate hands the routes received for a VLAN to every
// datapath carrying it.
func (m *Manager) dispatchBGPUpdate(update bgp.Update) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.speakers[update.VID]; !ok {
		// Late update of a stopped speaker.
		return
	}
	m.bgpRoutes[update.VID] = update
	for _, r := range m.dps {
		dp := m.config.DPs[r.name]
		if dp == nil {
			continue
		}
		if _, ok := dp.VLANs[update.VID]; !ok {
			continue
		}
		if err := r.controller.UpdateBGPRoutes(update); err != nil {
			klog.ErrorS(err, "Failed to deliver BGP routes", "vlan", update.VID)
		}
	}
}

// DispatchAuthEvent delivers an authentication result to the named DP.
func (m *Manager) DispatchAuthEvent(name string, event auth.Event) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.config == nil {
		return fmt.Errorf("datapath %q: %w", name, auth.ErrUnknownDP)
	}
	r, ok := m.dps[name]
	dp := m.config.DPs[name]
	if !ok || dp == nil {
		return fmt.Errorf("datapath %q: %w", name, auth.ErrUnknownDP)
	}
	port, ok := dp.Ports[event.Port]
	if !ok || port.AuthMode != config.AuthModeAccess {
		return fmt.Errorf("port %d of datapath %q: %w", event.Port, name, auth.ErrNotAccessPort)
	}
	return r.controller.HandleAuthEvent(event)
}
