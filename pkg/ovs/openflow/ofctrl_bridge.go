// Copyright 2019 Antrea Authors
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

package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"antrea.io/libOpenflow/openflow15"
	"antrea.io/libOpenflow/util"
	"antrea.io/ofnet/ofctrl"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// switchConn is the subset of ofctrl.OFSwitch used to program a switch.
type switchConn interface {
	DPID() net.HardwareAddr
	IsReady() bool
	Send(msg util.Message) error
}

// DPIDToUint64 converts the datapath id reported by ofctrl to its numeric form.
func DPIDToUint64(dpid net.HardwareAddr) uint64 {
	if len(dpid) != 8 {
		var padded [8]byte
		copy(padded[8-min(len(dpid), 8):], dpid)
		return binary.BigEndian.Uint64(padded[:])
	}
	return binary.BigEndian.Uint64(dpid)
}

// ofBridge implements openflow.Bridge for one connected switch.
type ofBridge struct {
	dpid uint64
	// mutex serializes message batches so that the messages of two batches
	// are never interleaved.
	mutex sync.Mutex
	sw    switchConn
}

func newOFBridge(sw switchConn) *ofBridge {
	return &ofBridge{dpid: DPIDToUint64(sw.DPID()), sw: sw}
}

func (b *ofBridge) DPID() uint64 {
	return b.dpid
}

func (b *ofBridge) IsConnected() bool {
	return b.sw.IsReady()
}

func (b *ofBridge) send(msgs []util.Message) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for i, msg := range msgs {
		if err := b.sw.Send(msg); err != nil {
			return fmt.Errorf("failed to send message %d/%d to datapath %#x: %w", i+1, len(msgs), b.dpid, err)
		}
	}
	return nil
}

func (b *ofBridge) ApplyChanges(changes *Changes) error {
	if changes.IsEmpty() {
		klog.V(2).InfoS("No OpenFlow changes need to be synced to the switch", "dpid", b.dpid)
		return nil
	}
	msgs := changeMessages(changes)
	msgs = append(msgs, openflow15.NewBarrierRequest())
	if err := b.send(msgs); err != nil {
		return err
	}
	klog.V(4).InfoS("Applied OpenFlow changes", "dpid", b.dpid,
		"addFlows", len(changes.AddFlows), "modFlows", len(changes.ModifyFlows), "delFlows", len(changes.DeleteFlows),
		"addGroups", len(changes.AddGroups), "modGroups", len(changes.ModifyGroups), "delGroups", len(changes.DeleteGroups))
	return nil
}

func (b *ofBridge) DeleteAllFlowsAndGroups() error {
	msgs := deleteAllMessages()
	msgs = append(msgs, openflow15.NewBarrierRequest())
	return b.send(msgs)
}

func (b *ofBridge) SendPacketOut(inPort, outPort uint32, data []byte) error {
	return b.send([]util.Message{packetOut(inPort, outPort, data)})
}

// OFController accepts OpenFlow connections from switches and hands each
// switch to the SwitchHandler registered for its datapath id.
type OFController struct {
	listenAddr string
	controller *ofctrl.Controller

	// mutex protects handlers and bridges.
	mutex    sync.RWMutex
	handlers map[uint64]SwitchHandler
	bridges  map[uint64]*ofBridge

	// pktConsumers is a map from datapath id to the PacketInQueue of that switch.
	pktConsumers sync.Map
}

func NewOFController(listenAddr string) *OFController {
	c := &OFController{
		listenAddr: listenAddr,
		handlers:   make(map[uint64]SwitchHandler),
		bridges:    make(map[uint64]*ofBridge),
	}
	c.controller = ofctrl.NewController(c)
	return c
}

// Run listens for switch connections until stopCh is closed.
func (c *OFController) Run(stopCh <-chan struct{}) {
	klog.InfoS("Starting OpenFlow controller", "address", c.listenAddr)
	go c.controller.Listen(c.listenAddr)
	<-stopCh
	klog.InfoS("Stopping OpenFlow controller")
	c.controller.Delete()
}

// Register installs handler for the switch with the given datapath id. If
// that switch is already connected the handler is notified immediately.
func (c *OFController) Register(dpid uint64, handler SwitchHandler) {
	c.mutex.Lock()
	c.handlers[dpid] = handler
	bridge, connected := c.bridges[dpid]
	c.mutex.Unlock()
	if connected {
		handler.SwitchConnected(bridge)
	}
}

// Unregister removes the handler of the given datapath id.
func (c *OFController) Unregister(dpid uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.handlers, dpid)
}

func (c *OFController) SubscribePacketIn(dpid uint64, pktInQueue *PacketInQueue) error {
	if _, exist := c.pktConsumers.LoadOrStore(dpid, pktInQueue); exist {
		return fmt.Errorf("packetIn consumer of datapath %#x already exists", dpid)
	}
	return nil
}

func (c *OFController) UnsubscribePacketIn(dpid uint64) {
	c.pktConsumers.Delete(dpid)
}

// PacketRcvd is a callback when a packetIn is received on ofctrl.OFSwitch.
func (c *OFController) PacketRcvd(sw *ofctrl.OFSwitch, packet *ofctrl.PacketIn) {
	dpid := DPIDToUint64(sw.DPID())
	v, found := c.pktConsumers.Load(dpid)
	if !found {
		klog.V(4).InfoS("Ignoring packetIn from datapath without consumer", "dpid", dpid)
		return
	}
	pktIn, err := ParsePacketIn(dpid, packet)
	if err != nil {
		klog.V(2).InfoS("Failed to parse packetIn", "dpid", dpid, "err", err)
		return
	}
	if !v.(*PacketInQueue).AddOrDrop(pktIn) {
		klog.V(2).InfoS("PacketIn queue is full, dropping packet", "dpid", dpid)
	}
}

// SwitchConnected is a callback when the remote OFSwitch is connected.
func (c *OFController) SwitchConnected(sw *ofctrl.OFSwitch) {
	c.switchConnected(sw)
}

func (c *OFController) switchConnected(sw switchConn) {
	bridge := newOFBridge(sw)
	klog.InfoS("OFSwitch is connected", "dpid", bridge.dpid)
	c.mutex.Lock()
	c.bridges[bridge.dpid] = bridge
	handler, found := c.handlers[bridge.dpid]
	c.mutex.Unlock()
	if !found {
		klog.InfoS("Datapath is not configured, ignoring it", "dpid", bridge.dpid)
		return
	}
	handler.SwitchConnected(bridge)
}

// SwitchDisconnected is a callback when the remote OFSwitch is disconnected.
func (c *OFController) SwitchDisconnected(sw *ofctrl.OFSwitch) {
	c.switchDisconnected(DPIDToUint64(sw.DPID()))
}

func (c *OFController) switchDisconnected(dpid uint64) {
	klog.InfoS("OFSwitch is disconnected", "dpid", dpid)
	c.mutex.Lock()
	delete(c.bridges, dpid)
	handler, found := c.handlers[dpid]
	c.mutex.Unlock()
	if found {
		handler.SwitchDisconnected(dpid)
	}
}

// MultipartReply is a callback when multipartReply message is received on ofctrl.OFSwitch.
func (c *OFController) MultipartReply(sw *ofctrl.OFSwitch, rep *openflow15.MultipartReply) {
}

func (c *OFController) FlowGraphEnabledOnSwitch() bool {
	return false
}

func (c *OFController) TLVMapEnabledOnSwitch() bool {
	return false
}

type PacketInQueue struct {
	rateLimiter *rate.Limiter
	packetsCh   chan *PacketIn
}

func NewPacketInQueue(size int, r rate.Limit) *PacketInQueue {
	return &PacketInQueue{rateLimiter: rate.NewLimiter(r, 1), packetsCh: make(chan *PacketIn, size)}
}

func (q *PacketInQueue) AddOrDrop(packet *PacketIn) bool {
	select {
	case q.packetsCh <- packet:
		return true
	default:
		// Channel is full.
		return false
	}
}

func (q *PacketInQueue) GetRateLimited(stopCh <-chan struct{}) *PacketIn {
	when := q.rateLimiter.Reserve().Delay()
	t := time.NewTimer(when)
	defer t.Stop()

	select {
	case <-stopCh:
		return nil
	case <-t.C:
		break
	}
	select {
	case <-stopCh:
		return nil
	case packet := <-q.packetsCh:
		return packet
	}
}
