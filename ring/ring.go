// Copyright 2024 The Mema Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ring implements the per-thread, fixed-capacity round-robin
// buffer of trace records.
//
// The buffer is a single contiguous allocation of record.RingCapacity()
// identical cells — no resizing, no pointers inside a cell — in the same
// spirit as a generic container/ring.Ring[V], generalized from a
// circular index ring into a monotonic append-then-drain ring, and its
// cursor bookkeeping is adapted from pault.ag/go/go-diskring's
// head/tail arithmetic (alloc.go), collapsed to the single-writer,
// drain-on-full case this runtime needs (no concurrent reader, no mmap).
package ring

import "github.com/pwaller/mema/record"

// Drainer receives the populated prefix of a ring when it is full or being
// torn down. It must not retain the slice past the call.
type Drainer interface {
	Drain(records []record.Record) error
}

// Ring is a per-thread append-only buffer of fixed-size records.
type Ring struct {
	buf  []record.Record
	next int // write cursor; buf[:next] is the populated prefix

	drainer Drainer
	onFatal func(error)
}

// New creates a Ring backed by a freshly allocated record.RingCapacity()
// array, draining through d.
func New(d Drainer) *Ring {
	return &Ring{
		buf:     make([]record.Record, record.RingCapacity()),
		drainer: d,
		onFatal: defaultOnFatal,
	}
}

// SetOnFatal overrides the panic-on-sink-failure behavior, for tests.
func (r *Ring) SetOnFatal(f func(error)) {
	r.onFatal = f
}

func defaultOnFatal(err error) {
	panic("mema: ring drain failed, framing integrity cannot be preserved: " + err.Error())
}

// Append writes rec at the write cursor and advances it. If the cursor
// reaches the end of the backing array, the ring drains synchronously on
// the calling goroutine before returning: no blocking, no atomics on
// this path.
func (r *Ring) Append(rec record.Record) {
	r.buf[r.next] = rec
	r.next++
	if r.next == len(r.buf) {
		r.drain()
	}
}

// Len reports the number of records currently buffered.
func (r *Ring) Len() int {
	return r.next
}

// Drain flushes the populated prefix through the Drainer and resets the
// cursor to empty. An empty ring still drains to an empty call, which is
// permitted. Exported so thread teardown can force a final drain.
func (r *Ring) Drain() {
	r.drain()
}

func (r *Ring) drain() {
	n := r.next
	if err := r.drainer.Drain(r.buf[:n:n]); err != nil {
		r.next = 0
		r.onFatal(err)
		return
	}
	r.next = 0
}
