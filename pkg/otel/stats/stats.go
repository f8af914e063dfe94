// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stats holds the Exporter's observability counters (§4.7),
// trimmed from the teacher's pkg/otel/stats atomic-counter-struct shape
// down to this engine's ingest/write/forward counters.
package stats

import "sync/atomic"

// Counters are the Exporter's process-wide observability counters. All
// fields are safe for concurrent use.
type Counters struct {
	Received               atomic.Uint64
	Buffered                atomic.Uint64
	DroppedBufferFull       atomic.Uint64
	Written                 atomic.Uint64
	WriteErrors             atomic.Uint64
	Forwarded               atomic.Uint64
	ForwardFailures         atomic.Uint64
	ForwarderSkipped        atomic.Uint64
	CircuitStateTransitions atomic.Uint64
	FilesRotated            atomic.Uint64
	FilesDeleted            atomic.Uint64
}

// Snapshot is a point-in-time copy of all counters, for tests and
// diagnostics endpoints.
type Snapshot struct {
	Received, Buffered, DroppedBufferFull                    uint64
	Written, WriteErrors                                     uint64
	Forwarded, ForwardFailures, ForwarderSkipped              uint64
	CircuitStateTransitions, FilesRotated, FilesDeleted       uint64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Received:                c.Received.Load(),
		Buffered:                c.Buffered.Load(),
		DroppedBufferFull:       c.DroppedBufferFull.Load(),
		Written:                 c.Written.Load(),
		WriteErrors:             c.WriteErrors.Load(),
		Forwarded:               c.Forwarded.Load(),
		ForwardFailures:         c.ForwardFailures.Load(),
		ForwarderSkipped:        c.ForwarderSkipped.Load(),
		CircuitStateTransitions: c.CircuitStateTransitions.Load(),
		FilesRotated:            c.FilesRotated.Load(),
		FilesDeleted:            c.FilesDeleted.Load(),
	}
}
