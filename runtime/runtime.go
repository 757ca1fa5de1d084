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

// Package runtime is the process-wide glue: a lifecycle state machine,
// a per-thread registry, and the seven instrumentation entry points
// (initialize/finalize/enable/disable/function_entry/function_exit/
// access) that a front-end calls. It wires together config, gate (+ its
// symtab/workpool subpackages), ring, and sink.
//
// Go has no thread-local storage, so where a C runtime would key
// per-thread state off the OS thread implicitly, this package takes an
// explicit ThreadID from the caller instead — the front-end (static or
// dynamic) is expected to supply a stable identifier for its current
// unit of concurrency (a goroutine ID surrogate, an OS thread id, or a
// superblock-walker instance counter).
package mema

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pwaller/mema/config"
	"github.com/pwaller/mema/gate"
	"github.com/pwaller/mema/gate/symtab"
	"github.com/pwaller/mema/gate/workpool"
	"github.com/pwaller/mema/record"
	"github.com/pwaller/mema/ring"
	"github.com/pwaller/mema/sink"
)

// ThreadID identifies one caller's unit of concurrency. See the package
// doc for why this replaces implicit TLS.
type ThreadID uint64

// lifecycle states.
const (
	stateUninitialized int32 = iota
	stateInitialized
	stateFinalized
)

// Runtime holds everything process-wide: the sink, the gate, and the
// per-thread ring registry. Construct with New; most programs only ever
// need the package-level default instance below.
type Runtime struct {
	state int32 // atomic: stateUninitialized/stateInitialized/stateFinalized

	initOnce     sync.Once
	finalizeOnce sync.Once

	cfg  config.Config
	sink *sink.Sink
	gate *gate.Gate
	log  *log.Logger

	resolver *workpool.Resolver[*gate.AddrSet]

	threads sync.Map // ThreadID -> *threadState
}

type threadState struct {
	ring *ring.Ring

	// insideRuntime and depth are only ever touched by the owning
	// thread; no atomics needed, since each thread's state has exactly
	// one writer.
	insideRuntime bool
	monitorDepth  int32
}

// New constructs an uninitialized Runtime. Appends before Initialize are
// ignored.
func New() *Runtime {
	return &Runtime{}
}

// Initialize stores cfg, opens the sink (if configured), and kicks off
// background symbol resolution for scoped-auto gating. It is safe to
// call from multiple threads; only the first call has effect, and a
// second call is a documented no-op.
//
// A configuration error (instrumentation requested with no output
// filename) is printed once and recording stays disabled for the life
// of the process; Initialize still returns nil so the instrumented
// program runs normally.
func (rt *Runtime) Initialize(cfg config.Config) error {
	var err error
	rt.initOnce.Do(func() {
		rt.cfg = cfg
		rt.log = newLogger(cfg)

		if cfg.Disable {
			rt.gate = gate.New()
			rt.gate.Disable()
			atomic.StoreInt32(&rt.state, stateInitialized)
			return
		}

		if cfg.Filename == "" {
			rt.log.Error("no output filename configured, recording disabled")
			rt.gate = gate.New()
			rt.gate.Disable()
			atomic.StoreInt32(&rt.state, stateInitialized)
			return
		}

		s, openErr := sink.Open(cfg.Filename, cfg.Compression)
		if openErr != nil {
			rt.log.Error("failed to open sink, recording disabled", "err", openErr)
			rt.gate = gate.New()
			rt.gate.Disable()
			atomic.StoreInt32(&rt.state, stateInitialized)
			return
		}
		rt.sink = s

		if cfg.FuncGlob != nil {
			rt.gate = gate.NewScopedAuto(nil)
			rt.resolver = workpool.NewResolver[*gate.AddrSet]()
			pattern := cfg.FuncGlob
			rt.resolver.Start(func() (*gate.AddrSet, error) {
				exe, exeErr := os.Executable()
				if exeErr != nil {
					return gate.NewAddrSet(nil), exeErr
				}
				return symtab.ResolveAddrSet(exe, pattern)
			})
			go func() {
				addrs, resolveErr := rt.resolver.Wait()
				if resolveErr != nil {
					rt.log.Error("symbol resolution failed, scoped-auto degraded to disabled", "err", resolveErr)
					return
				}
				rt.gate.SetAddrs(addrs)
				rt.log.Info("scoped-auto monitoring active", "matched", addrs.Len())
			}()
		} else if cfg.Funcname != "" {
			rt.log.Error("funcname pattern does not compile, scoped-auto degraded to disabled", "funcname", cfg.Funcname)
			rt.gate = gate.NewScopedAuto(nil)
		} else {
			rt.gate = gate.New()
			rt.gate.Enable()
		}

		atomic.StoreInt32(&rt.state, stateInitialized)
		rt.log.Info("mema runtime initialized", "filename", cfg.Filename, "compression", cfg.Compression)
	})
	return err
}

// Finalize drains and closes every thread's ring, then closes the sink.
// Like Initialize, it runs at most once.
func (rt *Runtime) Finalize() (sink.Summary, error) {
	var summary sink.Summary
	var err error
	rt.finalizeOnce.Do(func() {
		atomic.StoreInt32(&rt.state, stateFinalized)

		rt.threads.Range(func(_, v interface{}) bool {
			ts := v.(*threadState)
			ts.ring.Drain()
			return true
		})

		if rt.sink != nil {
			summary, err = rt.sink.Finalize()
		}
	})
	return summary, err
}

// Enable clears the process-wide disable flag.
func (rt *Runtime) Enable() {
	if rt.gate != nil {
		rt.gate.Enable()
	}
}

// Disable sets the process-wide disable flag.
func (rt *Runtime) Disable() {
	if rt.gate != nil {
		rt.gate.Disable()
	}
}

// FunctionEntry records a FuncEnter and advances scoped-auto gating.
func (rt *Runtime) FunctionEntry(tid ThreadID, addr uintptr) {
	ts, ok := rt.enter(tid)
	if !ok {
		return
	}
	defer rt.leave(ts)

	rt.gate.FuncEnter(addr, &ts.monitorDepth)
	if rt.gate.IsOpen() {
		ts.ring.Append(record.FuncEntryRecord(addr))
	}
}

// FunctionExit records a FuncExit and reverses scoped-auto gating.
func (rt *Runtime) FunctionExit(tid ThreadID, addr uintptr) {
	ts, ok := rt.enter(tid)
	if !ok {
		return
	}
	defer rt.leave(ts)

	if rt.gate.IsOpen() {
		ts.ring.Append(record.FuncExitRecord(addr))
	}
	rt.gate.FuncExit(addr, &ts.monitorDepth)
}

// Access records one memory access: addr/size/is_write from the static
// front-end, or addr/size/is_write derived from a merged dynamic event.
func (rt *Runtime) Access(tid ThreadID, addr uintptr, size uint8, isWrite bool) {
	kind := record.DataRead
	if isWrite {
		kind = record.DataWrite
	}
	rt.AccessRecord(tid, kind, addr, size)
}

// AccessRecord records one memory access with an explicit record.Kind,
// for front-ends (such as the dynamic instrumentation queue) that have
// already classified the access as something Access's plain
// read/write split can't express, such as a merged DataModify or an
// InstrRead instruction marker.
func (rt *Runtime) AccessRecord(tid ThreadID, kind record.Kind, addr uintptr, size uint8) {
	ts, ok := rt.enter(tid)
	if !ok {
		return
	}
	defer rt.leave(ts)

	if !rt.gate.IsOpen() {
		return
	}
	ts.ring.Append(record.Record{
		Kind:    kind,
		Time:    timestamp(),
		Addr:    addr,
		Size:    size,
		IsWrite: kind == record.DataWrite || kind == record.DataModify,
	})
}

// AccessBulk records a bulk memory intrinsic (memcpy/memset and
// similar) as a DataWrite with Size left at its zero-means-see-Length
// sentinel and the real byte count carried in Length instead, matching
// the static instrumentation policy's OpMemIntrinsic decision.
func (rt *Runtime) AccessBulk(tid ThreadID, addr uintptr, length uintptr) {
	ts, ok := rt.enter(tid)
	if !ok {
		return
	}
	defer rt.leave(ts)

	if !rt.gate.IsOpen() {
		return
	}
	ts.ring.Append(record.Record{
		Kind:    record.DataWrite,
		Time:    timestamp(),
		Addr:    addr,
		Size:    0,
		IsWrite: true,
		Length:  length,
	})
}

// ThreadExit drains and drops tid's ring. Callers invoke this from
// whatever per-thread-destructor facility their ecosystem offers
// (the thread lifecycle).
func (rt *Runtime) ThreadExit(tid ThreadID) {
	v, ok := rt.threads.LoadAndDelete(tid)
	if !ok {
		return
	}
	v.(*threadState).ring.Drain()
}

// enter implements the reentry guard: every entry point
// checks inside_runtime first and returns immediately if set, so the
// runtime's own sink writes and allocations never recurse into
// themselves. It returns ok=false if the runtime isn't initialized yet,
// is already finalized, or the calling thread is already inside the
// runtime.
func (rt *Runtime) enter(tid ThreadID) (*threadState, bool) {
	if atomic.LoadInt32(&rt.state) != stateInitialized {
		return nil, false
	}
	ts := rt.threadState(tid)
	if ts.insideRuntime {
		return nil, false
	}
	ts.insideRuntime = true
	return ts, true
}

func (rt *Runtime) leave(ts *threadState) {
	ts.insideRuntime = false
}

func (rt *Runtime) threadState(tid ThreadID) *threadState {
	if v, ok := rt.threads.Load(tid); ok {
		return v.(*threadState)
	}
	ts := &threadState{}
	ts.ring = ring.New(&sinkDrainer{rt: rt})
	actual, _ := rt.threads.LoadOrStore(tid, ts)
	return actual.(*threadState)
}

// sinkDrainer adapts Runtime's sink into the ring.Drainer interface.
type sinkDrainer struct {
	rt *Runtime
}

func (d *sinkDrainer) Drain(records []record.Record) error {
	if d.rt.sink == nil || len(records) == 0 {
		return nil
	}
	return d.rt.sink.WriteFrame(record.AsBytes(records))
}

func newLogger(cfg config.Config) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	switch {
	case cfg.Debug:
		l.SetLevel(log.DebugLevel)
	case cfg.Verbosity > 0:
		l.SetLevel(log.InfoLevel)
	default:
		l.SetLevel(log.WarnLevel)
	}
	return l
}

func timestamp() float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// ---- package-level default instance, for the common case of one
// runtime per process. ----

var def = New()

func Initialize(cfg config.Config) error     { return def.Initialize(cfg) }
func Finalize() (sink.Summary, error)        { return def.Finalize() }
func Enable()                                { def.Enable() }
func Disable()                               { def.Disable() }
func FunctionEntry(tid ThreadID, addr uintptr) { def.FunctionEntry(tid, addr) }
func FunctionExit(tid ThreadID, addr uintptr)  { def.FunctionExit(tid, addr) }
func Access(tid ThreadID, addr uintptr, size uint8, isWrite bool) {
	def.Access(tid, addr, size, isWrite)
}
func AccessRecord(tid ThreadID, kind record.Kind, addr uintptr, size uint8) {
	def.AccessRecord(tid, kind, addr, size)
}
func AccessBulk(tid ThreadID, addr uintptr, length uintptr) { def.AccessBulk(tid, addr, length) }
func ThreadExit(tid ThreadID)                               { def.ThreadExit(tid) }
