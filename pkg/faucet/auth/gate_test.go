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

package auth

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
	clocktesting "k8s.io/utils/clock/testing"

	"antrea.io/faucet/pkg/faucet/config"
)

const accessConfig = `
vlans:
    100: {}
dps:
    sw1:
        dp_id: 1
        auth:
            portal_mac: "0e:00:00:00:00:aa"
            portal_port: 3
            session_timeout: 60
        interfaces:
            1: {native_vlan: 100, auth_mode: access}
            2: {native_vlan: 100, auth_mode: access}
            3: {native_vlan: 100}
`

var hostMAC, _ = net.ParseMAC("0e:00:00:00:01:01")

func parseDP(t *testing.T, doc string) *config.DP {
	t.Helper()
	cfg, err := config.Parse([]byte(doc), t.TempDir())
	require.NoError(t, err)
	return cfg.DPs["sw1"]
}

func newTestGate(t *testing.T) (*Gate, *clocktesting.FakeClock) {
	clock := clocktesting.NewFakeClock(time.Unix(1700000000, 0))
	return NewGate(parseDP(t, accessConfig), clock), clock
}

func TestLogonLogoff(t *testing.T) {
	g, _ := newTestGate(t)
	assert.Zero(t, g.Authenticated().Len())

	changed, err := g.Handle(Event{Port: 1, MAC: hostMAC, Type: Logon})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, sets.New[uint32](1), g.Authenticated())

	// Renewing the session leaves the flows alone.
	changed, err = g.Handle(Event{Port: 1, MAC: hostMAC, Type: Logon})
	require.NoError(t, err)
	assert.False(t, changed)

	other, _ := net.ParseMAC("0e:00:00:00:01:02")
	_, err = g.Handle(Event{Port: 1, MAC: other, Type: Logoff})
	assert.Error(t, err)
	assert.Equal(t, sets.New[uint32](1), g.Authenticated())

	changed, err = g.Handle(Event{Port: 1, MAC: hostMAC, Type: Logoff})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Zero(t, g.Authenticated().Len())

	changed, err = g.Handle(Event{Port: 1, Type: Logoff})
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestValidate(t *testing.T) {
	g, _ := newTestGate(t)
	for _, event := range []Event{
		{Port: 3, Type: Logon},
		{Port: 9, Type: Logon},
	} {
		_, err := g.Handle(event)
		assert.True(t, errors.Is(err, ErrNotAccessPort), "port %d", event.Port)
	}
	_, err := g.Handle(Event{Port: 1, Type: "reauth"})
	assert.EqualError(t, err, `unknown event "reauth"`)
}

func TestSessionTimeout(t *testing.T) {
	g, clock := newTestGate(t)
	_, err := g.Handle(Event{Port: 2, Type: Logon})
	require.NoError(t, err)
	clock.Step(30 * time.Second)
	_, err = g.Handle(Event{Port: 1, Type: Logon})
	require.NoError(t, err)

	next, ok := g.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, time.Unix(1700000060, 0), next)

	clock.Step(30 * time.Second)
	assert.Equal(t, []uint32{2}, g.Expire())
	assert.Equal(t, sets.New[uint32](1), g.Authenticated())
	clock.Step(30 * time.Second)
	assert.Equal(t, []uint32{1}, g.Expire())
	_, ok = g.NextExpiry()
	assert.False(t, ok)
}

func TestSetDP(t *testing.T) {
	g, _ := newTestGate(t)
	for _, port := range []uint32{1, 2} {
		_, err := g.Handle(Event{Port: port, Type: Logon})
		require.NoError(t, err)
	}
	doc := strings.Replace(accessConfig, "2: {native_vlan: 100, auth_mode: access}", "2: {native_vlan: 100}", 1)
	assert.Equal(t, []uint32{2}, g.SetDP(parseDP(t, doc)))
	assert.Equal(t, sets.New[uint32](1), g.Authenticated())
}
