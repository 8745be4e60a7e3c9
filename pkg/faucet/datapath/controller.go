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

// Package datapath runs the event loop of one datapath. Packet-ins,
// reloads, timer ticks, authentication results and BGP updates are
// processed one at a time, and every event that changes the state of the
// datapath ends with a single batch of flow changes sent to the switch.
package datapath

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/auth"
	"antrea.io/faucet/pkg/faucet/bgp"
	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/hostlearning"
	"antrea.io/faucet/pkg/faucet/metrics"
	"antrea.io/faucet/pkg/faucet/openflow"
	"antrea.io/faucet/pkg/faucet/reload"
	"antrea.io/faucet/pkg/faucet/route"
	binding "antrea.io/faucet/pkg/ovs/openflow"
)

const (
	tickInterval = time.Second

	eventQueueSize      = 128
	packetInQueueSize   = 256
	defaultPacketInRate = 1000
)

type eventType int

const (
	switchConnected eventType = iota
	switchDisconnected
	reloadRequested
	authReceived
	bgpUpdated
)

type event struct {
	eventType eventType
	bridge    binding.Bridge
	dp        *config.DP
	plan      reload.Plan
	auth      auth.Event
	bgp       bgp.Update
}

// Controller owns the state of one datapath: its configuration, learned
// hosts, neighbors, routes and authenticated ports, and the flows last
// installed on the switch. All of it is only accessed from Run.
type Controller struct {
	dp        *config.DP
	dpidLabel string
	clock     clock.WithTicker

	compiler *openflow.Compiler
	hosts    *hostlearning.Table
	routes   *route.Table
	gate     *auth.Gate

	bridge binding.Bridge
	// installed is what the switch holds, nil when unknown.
	installed *openflow.FlowSet
	// bans is the number of learn bans in installed. Bans time out on the
	// switch by themselves.
	bans int
	// lastAdvertised is when router advertisements were last sent.
	lastAdvertised time.Time

	events        chan *event
	packetIns     chan *binding.PacketIn
	packetInQueue *binding.PacketInQueue
	stopped       chan struct{}

	ofLog *ofChannelLogger

	hostSeries     *metrics.Series
	macSeries      *metrics.Series
	neighborSeries *metrics.Series
	bgpSeries      *metrics.Series
}

var _ binding.SwitchHandler = &Controller{}

// NewController creates the controller of dp. packetInRate bounds the
// packet-ins processed per second, 0 means the default.
func NewController(dp *config.DP, clock clock.WithTicker, packetInRate int) *Controller {
	if packetInRate <= 0 {
		packetInRate = defaultPacketInRate
	}
	c := &Controller{
		dp:             dp,
		dpidLabel:      metrics.DPID(dp.DPID),
		clock:          clock,
		compiler:       openflow.NewCompiler(),
		hosts:          hostlearning.NewTable(dp, clock),
		routes:         route.NewTable(dp, clock),
		gate:           auth.NewGate(dp, clock),
		events:         make(chan *event, eventQueueSize),
		packetIns:      make(chan *binding.PacketIn),
		packetInQueue:  binding.NewPacketInQueue(packetInQueueSize, rate.Limit(packetInRate)),
		stopped:        make(chan struct{}),
		hostSeries:     metrics.NewSeries(metrics.VLANHostsLearned),
		macSeries:      metrics.NewSeries(metrics.LearnedMACs),
		neighborSeries: metrics.NewSeries(metrics.VLANNeighbors),
		bgpSeries:      metrics.NewSeries(metrics.BGPNeighborRoutes),
	}
	if dp.OFChannelLog != "" {
		c.ofLog = newOFChannelLogger(dp.OFChannelLog, clock.Now)
	}
	return c
}

// PacketInQueue returns the queue the OpenFlow controller must deliver the
// packet-ins of the datapath to.
func (c *Controller) PacketInQueue() *binding.PacketInQueue {
	return c.packetInQueue
}

func (c *Controller) DPID() uint64 {
	return c.dp.DPID
}

// Run processes events until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.stopped)
	klog.InfoS("Starting datapath controller", "dp", c.dp.Name, "dpid", c.dpidLabel)
	if c.ofLog != nil {
		go c.ofLog.FlushLoop(ctx.Done())
	}
	go c.receivePacketIns(ctx)
	ticker := c.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	c.updateMetrics()
	for {
		select {
		case <-ctx.Done():
			klog.InfoS("Stopping datapath controller", "dp", c.dp.Name)
			c.shutdown()
			return
		case e := <-c.events:
			c.handleEvent(e)
		case pktIn := <-c.packetIns:
			c.handlePacketIn(pktIn)
		case <-ticker.C():
			c.tick()
		}
	}
}

func (c *Controller) receivePacketIns(ctx context.Context) {
	for {
		pktIn := c.packetInQueue.GetRateLimited(ctx.Done())
		if pktIn == nil {
			return
		}
		select {
		case c.packetIns <- pktIn:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) shutdown() {
	c.ofLog.Close()
	for _, s := range []*metrics.Series{c.hostSeries, c.macSeries, c.neighborSeries, c.bgpSeries} {
		s.Clear()
	}
	metrics.DPStatus.WithLabelValues(c.dpidLabel).Set(0)
}

// enqueue delivers e to the loop. It only fails once the loop stopped.
func (c *Controller) enqueue(e *event) error {
	select {
	case c.events <- e:
		return nil
	case <-c.stopped:
		return fmt.Errorf("controller of DP %s is stopped", c.dp.Name)
	}
}

func (c *Controller) SwitchConnected(bridge binding.Bridge) {
	c.enqueue(&event{eventType: switchConnected, bridge: bridge})
}

func (c *Controller) SwitchDisconnected(dpid uint64) {
	c.enqueue(&event{eventType: switchDisconnected})
}

// Reload replaces the configuration of the datapath following plan.
func (c *Controller) Reload(dp *config.DP, plan reload.Plan) error {
	return c.enqueue(&event{eventType: reloadRequested, dp: dp, plan: plan})
}

// HandleAuthEvent queues an authentication result. It fails without
// blocking when the event queue is full.
func (c *Controller) HandleAuthEvent(e auth.Event) error {
	select {
	case c.events <- &event{eventType: authReceived, auth: e}:
		return nil
	case <-c.stopped:
		return fmt.Errorf("controller of DP %s is stopped", c.dp.Name)
	default:
		return fmt.Errorf("event queue of DP %s is full", c.dp.Name)
	}
}

// UpdateBGPRoutes replaces the routes received over BGP for a VLAN.
func (c *Controller) UpdateBGPRoutes(update bgp.Update) error {
	return c.enqueue(&event{eventType: bgpUpdated, bgp: update})
}

func (c *Controller) handleEvent(e *event) {
	switch e.eventType {
	case switchConnected:
		c.connect(e.bridge)
	case switchDisconnected:
		c.disconnect()
	case reloadRequested:
		c.reload(e.dp, e.plan)
	case authReceived:
		c.handleAuth(e.auth)
	case bgpUpdated:
		c.updateBGP(e.bgp)
	}
}

func (c *Controller) connect(bridge binding.Bridge) {
	klog.InfoS("Datapath connected", "dp", c.dp.Name, "dpid", c.dpidLabel)
	metrics.DPConnections.WithLabelValues(c.dpidLabel).Inc()
	c.bridge = bridge
	c.installed = nil
	c.lastAdvertised = time.Time{}
	// Hosts were learned by flows the switch may not hold anymore.
	c.hosts.FlushPorts(c.allPorts())
	c.sync(reload.Cold)
}

func (c *Controller) disconnect() {
	klog.InfoS("Datapath disconnected", "dp", c.dp.Name, "dpid", c.dpidLabel)
	metrics.DPDisconnections.WithLabelValues(c.dpidLabel).Inc()
	c.bridge = nil
	c.installed = nil
	c.updateMetrics()
}

func (c *Controller) reload(dp *config.DP, plan reload.Plan) {
	if plan.Kind == reload.NoOp {
		return
	}
	klog.InfoS("Reloading datapath", "dp", dp.Name, "kind", plan.Kind, "reason", plan.Reason)
	c.dp = dp
	c.hosts.SetDP(dp)
	if plan.Kind == reload.Cold {
		c.hosts.FlushPorts(plan.FlushPorts)
		metrics.ConfigReloadCold.WithLabelValues(c.dpidLabel).Inc()
	} else {
		metrics.ConfigReloadWarm.WithLabelValues(c.dpidLabel).Inc()
	}
	for _, n := range c.routes.SetDP(dp) {
		klog.V(2).InfoS("Cancelled neighbor resolution", "dp", dp.Name, "vlan", n.VID, "ip", n.IP)
	}
	for _, port := range c.gate.SetDP(dp) {
		klog.InfoS("Ended authentication session of port no longer in access mode", "dp", dp.Name, "port", port)
	}
	c.sync(plan.Kind)
}

func (c *Controller) handleAuth(e auth.Event) {
	changed, err := c.gate.Handle(e)
	if err != nil {
		klog.ErrorS(err, "Ignoring authentication event", "dp", c.dp.Name, "port", e.Port)
		return
	}
	metrics.PortAuthEvents.WithLabelValues(c.dpidLabel, fmt.Sprint(e.Port), string(e.Type)).Inc()
	if changed {
		c.sync(reload.Warm)
	}
}

func (c *Controller) updateBGP(update bgp.Update) {
	for _, r := range c.routes.SetBGPRoutes(update.VID, update.Routes) {
		klog.V(2).InfoS("Rejected BGP route", "dp", c.dp.Name, "vlan", update.VID, "dst", r.Dst, "gateway", r.Gateway)
	}
	c.sync(reload.Warm)
}

// tick runs the timers of the datapath: host aging, neighbor resolution,
// authentication sessions and router advertisements.
func (c *Controller) tick() {
	c.advertise()
	changed := len(c.hosts.Expire()) > 0 || len(c.hosts.LearnBans()) != c.bans
	if c.resolve() {
		changed = true
	}
	for _, port := range c.gate.Expire() {
		metrics.PortAuthEvents.WithLabelValues(c.dpidLabel, fmt.Sprint(port), "timeout").Inc()
		changed = true
	}
	if changed {
		c.sync(reload.Warm)
	}
}
