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

// Package record defines the fixed-size tagged record that makes up the
// memory-access trace stream, and the ring capacity derived from its size.
package record

import "unsafe"

// Kind is the record discriminant. It is always the first field of
// Record so that it lands at offset 0 of each cell's on-disk layout.
type Kind uint32

const (
	// InstrRead marks an IMark-derived instruction fetch (dynamic front-end only).
	InstrRead Kind = iota
	// DataRead marks a load.
	DataRead
	// DataWrite marks a store, an atomic RMW/cmpxchg, or a bulk memory intrinsic.
	DataWrite
	// DataModify marks a read immediately followed by a write of the same
	// address and size, collapsed into one event by the dynamic front-end.
	DataModify
	// FuncEnter marks entry into an instrumented function.
	FuncEnter
	// FuncExit marks return from an instrumented function.
	FuncExit
)

func (k Kind) String() string {
	switch k {
	case InstrRead:
		return "InstrRead"
	case DataRead:
		return "DataRead"
	case DataWrite:
		return "DataWrite"
	case DataModify:
		return "DataModify"
	case FuncEnter:
		return "FuncEnter"
	case FuncExit:
		return "FuncExit"
	default:
		return "Unknown"
	}
}

// Record is a fixed-size tagged cell. A tagged union sized by its
// largest variant is the natural shape here, but Go has no union, so
// every variant's fields live side by side instead, giving the same
// flat, pointer-free, constant-stride layout the ring buffer needs.
// Fields not meaningful for a given Kind are left zero.
type Record struct {
	Kind Kind

	// Time is wall-clock seconds, microsecond resolution. Optional for the
	// dynamic front-end, mandatory for the static front-end.
	Time float64

	// PC, FP, SP are populated only where the caller has them cheaply
	// available.
	PC uintptr
	FP uintptr
	SP uintptr

	// Addr is the target address for memory-access variants, or the
	// function address for FuncEnter/FuncExit.
	Addr uintptr

	// Size is the access size in bytes. Zero is the bulk-memory-intrinsic
	// sentinel (see instrument/static); IsWrite distinguishes load vs
	// store for front-ends that don't supply Size.
	Size    uint8
	IsWrite bool

	// Length is the real byte count of a bulk memory intrinsic when the
	// front-end can supply it cheaply. Zero when unknown. Recording it
	// separately avoids discarding the intrinsic's length operand while
	// leaving the Size==0 sentinel contract undisturbed.
	Length uintptr
}

// Size is sizeof(Record) in bytes, used to size the ring to ~10MiB.
var Size = int(unsafe.Sizeof(Record{}))

// targetRingBytes is the ring's byte budget, ~10MiB.
const targetRingBytes = 10 * 1024 * 1024

// RingCapacity returns the number of records that fit in targetRingBytes.
func RingCapacity() int {
	n := targetRingBytes / Size
	if n < 1 {
		n = 1
	}
	return n
}

// FuncEntryRecord builds a FuncEnter record for addr.
func FuncEntryRecord(addr uintptr) Record {
	return Record{Kind: FuncEnter, Addr: addr}
}

// FuncExitRecord builds a FuncExit record for addr.
func FuncExitRecord(addr uintptr) Record {
	return Record{Kind: FuncExit, Addr: addr}
}
