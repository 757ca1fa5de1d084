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

// Package dynamic implements the binary-instrumentation-time
// instrumentation policy: a per-superblock bounded queue of pending
// memory events, the load-op-store merge that collapses a
// read-modify-write pair into one DataModify record, and the flush
// discipline that lowers the queue into ring-buffer appends.
package dynamic

import "github.com/pwaller/mema/record"

// EventKind is the pending-event discriminant inside the queue, distinct
// from record.Kind because Ir/Dm here haven't yet decided their final
// on-the-wire shape (Ir becomes InstrRead on flush; Dm already is what
// it says).
type EventKind int

const (
	EventIr EventKind = iota // instruction marker
	EventDr                  // pending read
	EventDw                  // pending write
	EventDm                  // merged read-then-write (modify)
)

// Event is one pending memory event awaiting flush.
type Event struct {
	Kind EventKind
	Addr uintptr
	Size uint8
}

// queueCapacity is the bounded pending-event queue size.
const queueCapacity = 4

// Queue is the per-superblock pending-event queue. It is not safe for
// concurrent use; the dynamic front-end walks one superblock's IR at a
// time on a single thread.
type Queue struct {
	events []Event
	flush  func([]Event)
}

// NewQueue returns an empty Queue that calls flush whenever it emits its
// pending events. flush must not retain the slice it's given; Queue
// reuses its backing array across flushes.
func NewQueue(flush func([]Event)) *Queue {
	return &Queue{events: make([]Event, 0, queueCapacity), flush: flush}
}

// IMark enqueues an instruction marker.
func (q *Queue) IMark(pc uintptr, instrLen uint8) {
	q.enqueue(Event{Kind: EventIr, Addr: pc, Size: instrLen})
}

// Load enqueues a pending read for a temporary-assigning load.
func (q *Queue) Load(addr uintptr, size uint8) {
	q.enqueue(Event{Kind: EventDr, Addr: addr, Size: size})
}

// Store attempts the load-op-store merge: if the immediately preceding
// pending event is a Dr at the same address and size, it is rewritten in
// place to Dm and nothing new is enqueued. Otherwise a new Dw is
// enqueued. This is the single rule giving one record per x86/amd64
// read-modify-write instruction.
func (q *Queue) Store(addr uintptr, size uint8) {
	if n := len(q.events); n > 0 {
		last := &q.events[n-1]
		if last.Kind == EventDr && last.Addr == addr && last.Size == size {
			last.Kind = EventDm
			return
		}
	}
	q.enqueue(Event{Kind: EventDw, Addr: addr, Size: size})
}

// CompareAndSwap enqueues both a pending read and a pending write at
// addr, using size doubled for a dual-word CAS.
func (q *Queue) CompareAndSwap(addr uintptr, size uint8, dualWord bool) {
	if dualWord {
		size *= 2
	}
	q.enqueue(Event{Kind: EventDr, Addr: addr, Size: size})
	q.enqueue(Event{Kind: EventDw, Addr: addr, Size: size})
}

// LoadLinked enqueues a pending read, then force-flushes the queue so
// the matching store-conditional's helper call cannot clobber the
// reservation.
func (q *Queue) LoadLinked(addr uintptr, size uint8) {
	q.enqueue(Event{Kind: EventDr, Addr: addr, Size: size})
	q.Flush()
}

// StoreConditional enqueues a pending write for the paired
// load-linked/store-conditional sequence.
func (q *Queue) StoreConditional(addr uintptr, size uint8) {
	q.enqueue(Event{Kind: EventDw, Addr: addr, Size: size})
}

// DirtyHelperRead and DirtyHelperWrite enqueue the read/write halves of a
// dirty helper call's declared memory effect; a helper with both effects
// calls both.
func (q *Queue) DirtyHelperRead(addr uintptr, size uint8) {
	q.enqueue(Event{Kind: EventDr, Addr: addr, Size: size})
}

func (q *Queue) DirtyHelperWrite(addr uintptr, size uint8) {
	q.enqueue(Event{Kind: EventDw, Addr: addr, Size: size})
}

// enqueue appends ev, flushing first if the queue is already at
// capacity.
func (q *Queue) enqueue(ev Event) {
	if len(q.events) >= queueCapacity {
		q.Flush()
	}
	q.events = append(q.events, ev)
}

// Flush emits every pending event in insertion order and empties the
// queue. Callers invoke this at every control-flow exit statement, the
// end of the superblock, and before any load-linked (rules (a)-(c));
// LoadLinked and queue-full enqueues call it directly.
func (q *Queue) Flush() {
	if len(q.events) == 0 {
		return
	}
	if q.flush != nil {
		q.flush(q.events)
	}
	q.events = q.events[:0]
}

// Len reports the number of events currently pending.
func (q *Queue) Len() int { return len(q.events) }

// toRecordKind maps a final (post-merge) EventKind to its record.Kind,
// for callers lowering a flushed Event into a ring append.
func (e Event) toRecordKind() record.Kind {
	switch e.Kind {
	case EventIr:
		return record.InstrRead
	case EventDr:
		return record.DataRead
	case EventDw:
		return record.DataWrite
	case EventDm:
		return record.DataModify
	default:
		return record.DataRead
	}
}

// ToRecord lowers a flushed Event into a Record with the given
// timestamp, ready to append to a ring. Dynamic front-ends may omit PC/
// FP/SP, populated only where the caller has them cheaply available.
func (e Event) ToRecord(timestamp float64) record.Record {
	return record.Record{
		Kind:    e.toRecordKind(),
		Time:    timestamp,
		Addr:    e.Addr,
		Size:    e.Size,
		IsWrite: e.Kind == EventDw || e.Kind == EventDm,
	}
}
