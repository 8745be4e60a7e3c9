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
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"k8s.io/klog/v2"
)

const Path = "/v1/auth"

// Dispatcher delivers an event to the event loop of the named datapath.
type Dispatcher interface {
	DispatchAuthEvent(dp string, event Event) error
}

// Request is the body of an authentication result.
type Request struct {
	DP    string    `json:"dp"`
	Port  uint32    `json:"port"`
	MAC   string    `json:"mac"`
	Event EventType `json:"event"`
}

// HandleFunc returns the function which handles authentication results
// posted by the portal or the 802.1X authenticator.
func HandleFunc(d Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.DP == "" || req.Port == 0 {
			http.Error(w, "dp and port are required", http.StatusBadRequest)
			return
		}
		if req.Event != Logon && req.Event != Logoff {
			http.Error(w, "event must be logon or logoff", http.StatusBadRequest)
			return
		}
		event := Event{Port: req.Port, Type: req.Event}
		if req.MAC != "" {
			mac, err := net.ParseMAC(req.MAC)
			if err != nil {
				http.Error(w, "invalid mac: "+err.Error(), http.StatusBadRequest)
				return
			}
			event.MAC = mac
		}

		if err := d.DispatchAuthEvent(req.DP, event); err != nil {
			switch {
			case errors.Is(err, ErrUnknownDP):
				http.Error(w, err.Error(), http.StatusNotFound)
			case errors.Is(err, ErrNotAccessPort):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				klog.ErrorS(err, "Failed to dispatch authentication event", "dp", req.DP, "port", req.Port)
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
