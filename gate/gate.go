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

// Package gate implements the process-wide disable flag and the
// scoped-auto monitoring state machine. A Gate owns the set of
// monitored function addresses; per-thread depth counters live in the
// caller (the runtime package) and are passed in by pointer so this
// package never needs to know how threads are keyed.
package gate

import "sync/atomic"

// Gate holds the process-wide disable flag and, when scoped-auto mode is
// active, the set of monitored function addresses.
//
// Zero value is a usable gate in plain enable/disable mode (scoped-auto
// is off, so FuncEnter/FuncExit are no-ops).
type Gate struct {
	disabled uint32 // atomic bool: 1 == recording suppressed

	scopedAuto bool
	addrs      atomic.Pointer[AddrSet]
}

// New returns a Gate in plain mode: enable()/disable() are the only
// controls, exactly as when the funcname option is unset.
func New() *Gate {
	return &Gate{}
}

// NewScopedAuto returns a Gate in scoped-auto mode, gated initially by
// an empty AddrSet. The gate starts disabled: recording begins only
// once FuncEnter observes a monitored address.
// Symbol resolution runs in the background (gate/workpool), so the
// address set is usually populated via SetAddrs shortly after
// construction rather than known up front.
func NewScopedAuto(addrs *AddrSet) *Gate {
	g := &Gate{scopedAuto: true}
	g.addrs.Store(addrs)
	atomic.StoreUint32(&g.disabled, 1)
	return g
}

// SetAddrs atomically replaces the monitored-address set. Safe to call
// concurrently with FuncEnter/FuncExit from other threads; the set is
// read-only after init and unguarded reads are safe, but the swap
// itself still needs to be atomic since resolution finishes after other
// threads may already be calling FuncEnter.
func (g *Gate) SetAddrs(addrs *AddrSet) {
	g.addrs.Store(addrs)
}

// Enable clears the process-wide disable flag.
func (g *Gate) Enable() { atomic.StoreUint32(&g.disabled, 0) }

// Disable sets the process-wide disable flag.
func (g *Gate) Disable() { atomic.StoreUint32(&g.disabled, 1) }

// IsOpen reports whether recording should currently happen: the disable
// flag is clear. Scoped-auto mode manipulates that same flag from
// FuncEnter/FuncExit, so callers never need to branch on mode.
func (g *Gate) IsOpen() bool {
	return atomic.LoadUint32(&g.disabled) == 0
}

// FuncEnter implements the scoped-auto transition on entry to a function
// at addr. depth is the calling thread's monitor-depth counter; it is a
// no-op in plain mode (ScopedAuto false) or when addr is not monitored.
func (g *Gate) FuncEnter(addr uintptr, depth *int32) {
	if !g.scopedAuto || !g.addrs.Load().Contains(addr) {
		return
	}
	if *depth == 0 {
		g.Enable()
	}
	*depth++
}

// FuncExit implements the scoped-auto transition on exit from a function
// at addr, the mirror image of FuncEnter: depth reaching zero re-arms the
// disable flag so recording stops once the monitored call chain unwinds.
func (g *Gate) FuncExit(addr uintptr, depth *int32) {
	if !g.scopedAuto || !g.addrs.Load().Contains(addr) {
		return
	}
	*depth--
	if *depth <= 0 {
		*depth = 0
		g.Disable()
	}
}

// ScopedAuto reports whether the gate is running scoped-auto monitoring.
func (g *Gate) ScopedAuto() bool { return g.scopedAuto }
