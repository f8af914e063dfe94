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

// Package buffer implements the Batch Buffer (§4.1): a process-wide
// bounded in-memory staging area, one instance per telemetry kind.
package buffer

import (
	"errors"
	"sync"
)

// ErrFull is returned by Push when the buffer is at capacity (§4.1).
var ErrFull = errors.New("buffer: at capacity")

// Buffer is a bounded FIFO staging area safe for many concurrent
// producers and a single concurrent drainer (§4.1 Contract). It holds a
// single mutex; Push, Drain and Len are its only holders, and none of
// them holds it across I/O (§5 Shared-resource policy).
type Buffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

// New creates a Buffer with the given capacity. capacity must be >= 1;
// callers validate the surrounding Config (§3) before construction.
func New[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends item if len < capacity, otherwise returns ErrFull. It
// never blocks (§4.1: "Rejection is a hard signal to the caller").
func (b *Buffer[T]) Push(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) >= b.capacity {
		return ErrFull
	}
	b.items = append(b.items, item)
	return nil
}

// Drain atomically swaps the internal slice with a fresh empty one and
// returns the previous contents in FIFO order. Every Push whose
// acknowledgement happened-before this call is included; pushes
// acknowledged after may land in the next Drain (§4.1 Contract).
func (b *Buffer[T]) Drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	drained := b.items
	b.items = make([]T, 0, b.capacity)
	return drained
}

// Len returns the current number of staged items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Capacity returns the configured capacity.
func (b *Buffer[T]) Capacity() int {
	return b.capacity
}
