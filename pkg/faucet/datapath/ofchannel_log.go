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

package datapath

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	binding "antrea.io/faucet/pkg/ovs/openflow"
)

const (
	ofChannelLogMaxSize    = 100 // MB
	ofChannelLogMaxBackups = 3
	ofChannelLogMaxLatency = 5 * time.Second
)

// ofChannelLogger records the messages exchanged with a switch to the
// ofchannel_log file of its DP.
type ofChannelLogger struct {
	sync.Mutex
	logger io.Closer
	writer *bufio.Writer
	now    func() time.Time
}

func newOFChannelLogger(path string, now func() time.Time) *ofChannelLogger {
	logger := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    ofChannelLogMaxSize,
		MaxBackups: ofChannelLogMaxBackups,
		Compress:   true,
	}
	return &ofChannelLogger{logger: logger, writer: bufio.NewWriter(logger), now: now}
}

func (l *ofChannelLogger) FlushLoop(stopCh <-chan struct{}) {
	t := time.NewTicker(ofChannelLogMaxLatency)
	defer t.Stop()
	for {
		select {
		case <-stopCh:
			l.Flush()
			return
		case <-t.C:
			l.Flush()
		}
	}
}

func (l *ofChannelLogger) write(direction, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Lock()
	defer l.Unlock()
	fmt.Fprintf(l.writer, "%s %s ", l.now().UTC().Format(time.RFC3339Nano), direction)
	fmt.Fprintf(l.writer, format, args...)
	l.writer.WriteByte('\n')
}

// WriteChanges logs a batch sent to the switch, one line per message.
func (l *ofChannelLogger) WriteChanges(changes *binding.Changes) {
	if l == nil {
		return
	}
	for _, g := range changes.AddGroups {
		l.write("->", "add-group %s", g)
	}
	for _, g := range changes.ModifyGroups {
		l.write("->", "mod-group %s", g)
	}
	for _, f := range changes.DeleteFlows {
		l.write("->", "del-flow %s", f)
	}
	for _, f := range changes.ModifyFlows {
		l.write("->", "mod-flow %s", f)
	}
	for _, f := range changes.AddFlows {
		l.write("->", "add-flow %s", f)
	}
	for _, g := range changes.DeleteGroups {
		l.write("->", "del-group %s", g)
	}
}

func (l *ofChannelLogger) WritePacketIn(pktIn *binding.PacketIn) {
	l.write("<-", "packet-in table=%d,in_port=%d,len=%d", pktIn.TableID, pktIn.InPort, len(pktIn.Data))
}

func (l *ofChannelLogger) WritePacketOut(inPort, outPort uint32, data []byte) {
	l.write("->", "packet-out in_port=%d,out_port=%d,len=%d", inPort, outPort, len(data))
}

func (l *ofChannelLogger) Flush() error {
	if l == nil {
		return nil
	}
	l.Lock()
	defer l.Unlock()
	return l.writer.Flush()
}

func (l *ofChannelLogger) Close() {
	if l == nil {
		return
	}
	l.Flush()
	l.logger.Close()
}
