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

package metrics

import (
	"sort"
	"strings"

	"k8s.io/component-base/metrics"
)

// Sample is the value of one series of a gauge vector.
type Sample struct {
	Labels metrics.Labels
	Value  float64
}

// Series tracks the series one datapath publishes on a gauge vector, so
// that the ones it stops reporting are deleted instead of left stale.
type Series struct {
	vec       *metrics.GaugeVec
	published map[string]metrics.Labels
}

func NewSeries(vec *metrics.GaugeVec) *Series {
	return &Series{vec: vec, published: make(map[string]metrics.Labels)}
}

func seriesKey(labels metrics.Labels) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// Update sets every sample and deletes the series previously published
// but absent from samples.
func (s *Series) Update(samples []Sample) {
	current := make(map[string]metrics.Labels, len(samples))
	for _, sample := range samples {
		current[seriesKey(sample.Labels)] = sample.Labels
		s.vec.With(sample.Labels).Set(sample.Value)
	}
	for key, labels := range s.published {
		if _, ok := current[key]; !ok {
			s.vec.Delete(labels)
		}
	}
	s.published = current
}

// Clear deletes every series published so far.
func (s *Series) Clear() {
	s.Update(nil)
}
