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

// Package static implements the instrumentation-point policy a
// compile-time front-end applies once per compiled function: which IR
// constructs produce which record kinds, and where func_enter/func_exit
// calls get inserted. The compiler-plugin glue that walks the real IR
// is out of scope for this package; it consumes a minimal Op
// description of one instruction and returns the decision, following
// the usual split between "is this interesting" and "what do I insert."
package static

import "github.com/pwaller/mema/record"

// OpKind identifies the shape of one IR instruction, independent of any
// particular compiler's IR representation.
type OpKind int

const (
	// OpOther covers every instruction this policy has no opinion about
	// (arithmetic, control flow that isn't a return, etc).
	OpOther OpKind = iota
	OpLoad
	OpStore
	OpAtomicRMW
	OpCmpXchg
	OpMemIntrinsic
	OpCall
	OpReturn
)

// Op describes one IR instruction as far as the classifier needs it.
type Op struct {
	Kind OpKind
	// SizeBytes is the accessed type's size, for Load/Store/AtomicRMW/
	// CmpXchg. Unused for OpMemIntrinsic (size 0 is always emitted) and
	// OpCall/OpReturn/OpOther.
	SizeBytes uint8
	// Len is the byte count of a bulk memory intrinsic (memcpy/memset
	// and similar), populated only for OpMemIntrinsic when the front-end
	// can read it cheaply off the intrinsic's length operand. Zero means
	// unknown, not "zero bytes moved".
	Len uintptr
}

// Decision is what the policy decided to do with one Op: either nothing
// (Instrument == false) or emit an access() call shaped by Kind/IsWrite/
// Size/Length.
type Decision struct {
	Instrument bool
	Kind       record.Kind
	IsWrite    bool
	Size       uint8
	// Length carries Op.Len through for OpMemIntrinsic; zero for every
	// other Kind.
	Length uintptr
}

// Classify implements the per-instruction classification rules:
//
//   - a plain load   -> access(addr, size, is_write=false)
//   - a plain store  -> access(addr, size, is_write=true)
//   - atomic RMW or compare-exchange -> a single write access; the read
//     side is not recorded (documented limitation)
//   - a bulk memory intrinsic -> access(dest, size=0, is_write=true),
//     with op.Len carried into Decision.Length; size 0 is the sentinel
//     meaning "see Length instead"
//   - calls and everything else are left uninstrumented
func Classify(op Op) Decision {
	switch op.Kind {
	case OpLoad:
		return Decision{Instrument: true, Kind: record.DataRead, IsWrite: false, Size: op.SizeBytes}
	case OpStore:
		return Decision{Instrument: true, Kind: record.DataWrite, IsWrite: true, Size: op.SizeBytes}
	case OpAtomicRMW, OpCmpXchg:
		return Decision{Instrument: true, Kind: record.DataWrite, IsWrite: true, Size: op.SizeBytes}
	case OpMemIntrinsic:
		return Decision{Instrument: true, Kind: record.DataWrite, IsWrite: true, Size: 0, Length: op.Len}
	default: // OpCall, OpReturn, OpOther
		return Decision{Instrument: false}
	}
}
