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

// Package hostlearning keeps the (MAC, VLAN) to port bindings of one
// datapath. It decides which packet-ins are learned, ages bindings out and
// enforces the max_hosts limits of ports and VLANs.
package hostlearning

import (
	"bytes"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/google/btree"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"

	"antrea.io/faucet/pkg/faucet/config"
	"antrea.io/faucet/pkg/faucet/openflow"
)

// Result tells what Learn did with a source address.
type Result int

const (
	// Learned is a new binding.
	Learned Result = iota
	// Refreshed is a binding seen again on the same port.
	Refreshed
	// Moved is a binding that changed port.
	Moved
	// Denied is a source claiming the MAC of a permanent binding from
	// another port. Nothing is learned.
	Denied
)

func (r Result) String() string {
	switch r {
	case Learned:
		return "Learned"
	case Refreshed:
		return "Refreshed"
	case Moved:
		return "Moved"
	case Denied:
		return "Denied"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Entry is a learned host.
type Entry struct {
	MAC       net.HardwareAddr
	VID       uint16
	Port      uint32
	Permanent bool
	LearnedAt time.Time
	LastSeen  time.Time

	key      string
	deadline time.Time
}

// Host converts the entry to its compiler form.
func (e *Entry) Host() openflow.Host {
	return openflow.Host{MAC: e.MAC, VID: e.VID, Port: e.Port, Permanent: e.Permanent}
}

func entryKey(vid uint16, mac net.HardwareAddr) string {
	return fmt.Sprintf("%d/%s", vid, mac)
}

// expiryLess orders entries by deadline, then key, for the expiry index.
func expiryLess(a, b *Entry) bool {
	if !a.deadline.Equal(b.deadline) {
		return a.deadline.Before(b.deadline)
	}
	return a.key < b.key
}

type ban struct {
	openflow.LearnBan
	until time.Time
}

// Table is the host table of one datapath. It is not safe for concurrent
// use: it is owned by the datapath's event loop.
type Table struct {
	dp    *config.DP
	clock clock.Clock

	entries map[string]*Entry
	// expiry indexes the entries that age out, by deadline. Permanent
	// entries are not in it.
	expiry *btree.BTreeG[*Entry]
	bans   map[openflow.LearnBan]*ban
}

func NewTable(dp *config.DP, clock clock.Clock) *Table {
	return &Table{
		dp:      dp,
		clock:   clock,
		entries: make(map[string]*Entry),
		expiry:  btree.NewG[*Entry](32, expiryLess),
		bans:    make(map[openflow.LearnBan]*ban),
	}
}

// Learn processes the source address of a packet received on port in VLAN
// vid. A CapacityError is returned when the binding would exceed the
// max_hosts of the port or of the VLAN; a learn ban is then recorded for
// the full port or VLAN.
func (t *Table) Learn(mac net.HardwareAddr, vid uint16, port uint32) (Result, error) {
	if len(mac) != 6 || mac[0]&0x01 != 0 {
		return Denied, fmt.Errorf("cannot learn multicast or invalid source %s", mac)
	}
	p, ok := t.dp.Ports[port]
	if !ok {
		return Denied, fmt.Errorf("port %d does not exist", port)
	}
	vlan, ok := t.dp.VLANs[vid]
	if !ok || !(p.IsStack() || p.IsMember(vid)) {
		return Denied, fmt.Errorf("port %d is not a member of VLAN %d", port, vid)
	}

	now := t.clock.Now()
	key := entryKey(vid, mac)
	if e, ok := t.entries[key]; ok {
		if e.Port == port {
			t.touch(e, now)
			return Refreshed, nil
		}
		if e.Permanent && !p.PermanentLearn {
			klog.V(2).InfoS("Ignoring source of a permanently learned host from another port", "dpid", t.dp.DPID, "mac", mac, "vlan", vid, "port", port, "permanentPort", e.Port)
			return Denied, nil
		}
		if err := t.checkPort(p, vid); err != nil {
			return Denied, err
		}
		klog.V(2).InfoS("Host moved", "dpid", t.dp.DPID, "mac", mac, "vlan", vid, "from", e.Port, "to", port)
		t.expiry.Delete(e)
		e.Port = port
		e.Permanent = p.PermanentLearn
		t.touch(e, now)
		return Moved, nil
	}

	if vlan.MaxHosts > 0 && t.VLANHostCount(vid) >= vlan.MaxHosts {
		t.addBan(openflow.LearnBan{VID: vid}, now)
		return Denied, &CapacityError{VID: vid, Limit: vlan.MaxHosts}
	}
	if err := t.checkPort(p, vid); err != nil {
		return Denied, err
	}
	e := &Entry{
		MAC:       append(net.HardwareAddr(nil), mac...),
		VID:       vid,
		Port:      port,
		Permanent: p.PermanentLearn,
		LearnedAt: now,
		key:       key,
	}
	t.entries[key] = e
	t.touch(e, now)
	klog.V(2).InfoS("Host learned", "dpid", t.dp.DPID, "mac", mac, "vlan", vid, "port", port)
	return Learned, nil
}

func (t *Table) checkPort(p *config.Port, vid uint16) error {
	if p.MaxHosts > 0 && t.PortHostCount(p.Number, vid) >= p.MaxHosts {
		t.addBan(openflow.LearnBan{Port: p.Number, VID: vid}, t.clock.Now())
		return &CapacityError{VID: vid, Port: p.Number, Limit: p.MaxHosts}
	}
	return nil
}

// touch records that e was seen at now and reschedules its expiry.
func (t *Table) touch(e *Entry, now time.Time) {
	e.LastSeen = now
	if e.Permanent {
		return
	}
	t.expiry.Delete(e)
	e.deadline = now.Add(t.dp.Timeout)
	t.expiry.ReplaceOrInsert(e)
}

func (t *Table) addBan(b openflow.LearnBan, now time.Time) {
	t.bans[b] = &ban{LearnBan: b, until: now.Add(t.dp.LearnBanTimeout)}
}

func (t *Table) remove(e *Entry) {
	delete(t.entries, e.key)
	t.expiry.Delete(e)
}

// Lookup returns the binding of mac in vid.
func (t *Table) Lookup(vid uint16, mac net.HardwareAddr) (*Entry, bool) {
	e, ok := t.entries[entryKey(vid, mac)]
	return e, ok
}

// Expire removes the entries that were not seen within the DP timeout and
// returns them.
func (t *Table) Expire() []*Entry {
	now := t.clock.Now()
	var expired []*Entry
	for {
		e, ok := t.expiry.Min()
		if !ok || e.deadline.After(now) {
			break
		}
		t.remove(e)
		expired = append(expired, e)
	}
	for k, b := range t.bans {
		if !b.until.After(now) {
			delete(t.bans, k)
		}
	}
	if len(expired) > 0 {
		klog.V(2).InfoS("Hosts expired", "dpid", t.dp.DPID, "count", len(expired))
	}
	return expired
}

// NextExpiry returns when the next entry ages out.
func (t *Table) NextExpiry() (time.Time, bool) {
	e, ok := t.expiry.Min()
	if !ok {
		return time.Time{}, false
	}
	return e.deadline, true
}

// FlushPorts removes every entry learned on ports and returns them.
func (t *Table) FlushPorts(ports sets.Set[uint32]) []*Entry {
	var flushed []*Entry
	for _, e := range t.sortedEntries() {
		if ports.Has(e.Port) {
			t.remove(e)
			flushed = append(flushed, e)
		}
	}
	for k := range t.bans {
		if k.Port != 0 && ports.Has(k.Port) {
			delete(t.bans, k)
		}
	}
	return flushed
}

// SetDP replaces the configuration of the table. Entries on ports or VLANs
// that disappeared, or whose port left the VLAN, are dropped and returned.
// Kept entries take the permanent_learn setting of their port; their
// deadlines stay unchanged until they are seen again.
func (t *Table) SetDP(dp *config.DP) []*Entry {
	t.dp = dp
	var dropped []*Entry
	now := t.clock.Now()
	for _, e := range t.sortedEntries() {
		p, ok := dp.Ports[e.Port]
		_, vlanOK := dp.VLANs[e.VID]
		if !ok || !vlanOK || !(p.IsStack() || p.IsMember(e.VID)) {
			t.remove(e)
			dropped = append(dropped, e)
			continue
		}
		if e.Permanent != p.PermanentLearn {
			t.expiry.Delete(e)
			e.Permanent = p.PermanentLearn
			if !e.Permanent {
				e.deadline = now.Add(dp.Timeout)
				t.expiry.ReplaceOrInsert(e)
			}
		}
	}
	for k := range t.bans {
		if _, ok := dp.VLANs[k.VID]; !ok {
			delete(t.bans, k)
		}
	}
	return dropped
}

func (t *Table) sortedEntries() []*Entry {
	entries := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].VID != entries[j].VID {
			return entries[i].VID < entries[j].VID
		}
		return bytes.Compare(entries[i].MAC, entries[j].MAC) < 0
	})
	return entries
}

// Entries returns all bindings ordered by VLAN then MAC.
func (t *Table) Entries() []*Entry {
	return t.sortedEntries()
}

// Hosts returns the bindings in the form the compiler takes.
func (t *Table) Hosts() []openflow.Host {
	entries := t.sortedEntries()
	hosts := make([]openflow.Host, len(entries))
	for i, e := range entries {
		hosts[i] = e.Host()
	}
	return hosts
}

// LearnBans returns the bans still in force, ordered by VLAN then port.
func (t *Table) LearnBans() []openflow.LearnBan {
	now := t.clock.Now()
	var bans []openflow.LearnBan
	for _, b := range t.bans {
		if b.until.After(now) {
			bans = append(bans, b.LearnBan)
		}
	}
	sort.Slice(bans, func(i, j int) bool {
		if bans[i].VID != bans[j].VID {
			return bans[i].VID < bans[j].VID
		}
		return bans[i].Port < bans[j].Port
	})
	return bans
}

func (t *Table) Len() int {
	return len(t.entries)
}

// VLANHostCount returns the number of hosts learned in vid.
func (t *Table) VLANHostCount(vid uint16) int {
	n := 0
	for _, e := range t.entries {
		if e.VID == vid {
			n++
		}
	}
	return n
}

// PortHostCount returns the number of hosts learned on port in vid.
func (t *Table) PortHostCount(port uint32, vid uint16) int {
	n := 0
	for _, e := range t.entries {
		if e.Port == port && e.VID == vid {
			n++
		}
	}
	return n
}
