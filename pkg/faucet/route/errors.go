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
	"fmt"
	"net"
)

// ErrNoRoute is returned by NextHop for destinations neither connected nor
// covered by a route.
var ErrNoRoute = errors.New("no route to destination")

// ResolutionError reports a neighbor that did not answer any resolution
// attempt. Routes through it become unreachable until it is resolved again.
type ResolutionError struct {
	VID      uint16
	IP       net.IP
	Attempts int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s on VLAN %d after %d attempts", e.IP, e.VID, e.Attempts)
}
