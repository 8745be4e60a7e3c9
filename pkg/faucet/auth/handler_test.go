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
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeDispatcher struct {
	err    error
	dp     string
	events []Event
}

func (d *fakeDispatcher) DispatchAuthEvent(dp string, event Event) error {
	if d.err != nil {
		return d.err
	}
	d.dp = dp
	d.events = append(d.events, event)
	return nil
}

func TestHandleFunc(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		body           string
		dispatchErr    error
		expectedStatus int
		expectedEvent  *Event
	}{
		{
			name:           "logon",
			body:           `{"dp": "sw1", "port": 1, "mac": "0e:00:00:00:01:01", "event": "logon"}`,
			expectedStatus: http.StatusAccepted,
			expectedEvent:  &Event{Port: 1, MAC: hostMAC, Type: Logon},
		},
		{
			name:           "logoff without mac",
			body:           `{"dp": "sw1", "port": 2, "event": "logoff"}`,
			expectedStatus: http.StatusAccepted,
			expectedEvent:  &Event{Port: 2, Type: Logoff},
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
		},
		{
			name:           "malformed body",
			body:           `{"dp": `,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing port",
			body:           `{"dp": "sw1", "event": "logon"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown event",
			body:           `{"dp": "sw1", "port": 1, "event": "reauth"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid mac",
			body:           `{"dp": "sw1", "port": 1, "mac": "zz", "event": "logon"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown dp",
			body:           `{"dp": "sw9", "port": 1, "event": "logon"}`,
			dispatchErr:    fmt.Errorf("dp sw9: %w", ErrUnknownDP),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "not an access port",
			body:           `{"dp": "sw1", "port": 3, "event": "logon"}`,
			dispatchErr:    fmt.Errorf("port 3: %w", ErrNotAccessPort),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "queue full",
			body:           `{"dp": "sw1", "port": 1, "event": "logon"}`,
			dispatchErr:    fmt.Errorf("event queue of DP sw1 is full"),
			expectedStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{err: tt.dispatchErr}
			method := tt.method
			if method == "" {
				method = http.MethodPost
			}
			req := httptest.NewRequest(method, Path, strings.NewReader(tt.body))
			recorder := httptest.NewRecorder()
			HandleFunc(d).ServeHTTP(recorder, req)
			assert.Equal(t, tt.expectedStatus, recorder.Code)
			if tt.expectedEvent != nil {
				assert.Equal(t, "sw1", d.dp)
				assert.Equal(t, []Event{*tt.expectedEvent}, d.events)
			} else {
				assert.Empty(t, d.events)
			}
		})
	}
}
