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

package reload

import "fmt"

// ConflictError is returned when a warm reconciliation was requested for a
// datapath that needs a cold start. The reconciliation goes cold anyway.
type ConflictError struct {
	DPID   uint64
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("warm reload of DP %#x needs a cold start: %s", e.DPID, e.Reason)
}
