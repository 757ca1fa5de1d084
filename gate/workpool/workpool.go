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

// Package workpool runs the one background job the runtime ever needs:
// resolving the executable's symbol table for scoped-auto gating without
// blocking process startup. It is a single-shot reduction of a
// many-worker pool with idle aging — no idle-worker aging ticker, since
// there is never a queue of many short tasks here, only ever one.
package workpool

import (
	"log"
	"runtime/debug"
	"sync"
)

// PanicHandler is called if the background job panics. The default logs
// via the standard logger.
var PanicHandler func(r interface{}) = func(r interface{}) {
	log.Printf("workpool: panic in background resolve: %v: %s", r, debug.Stack())
}

// Resolver runs f exactly once, in the background, and lets any number
// of callers block on its result via Wait.
type Resolver[V any] struct {
	once sync.Once
	done chan struct{}
	val  V
	err  error
}

// NewResolver returns a Resolver that has not yet started.
func NewResolver[V any]() *Resolver[V] {
	return &Resolver[V]{done: make(chan struct{})}
}

// Start launches f in the background. Only the first call has any
// effect; later calls are no-ops, matching sync.Once semantics.
func (r *Resolver[V]) Start(f func() (V, error)) {
	r.once.Do(func() {
		go func() {
			defer close(r.done)
			defer func() {
				if rec := recover(); rec != nil {
					if PanicHandler != nil {
						PanicHandler(rec)
					}
				}
			}()
			r.val, r.err = f()
		}()
	})
}

// Wait blocks until the background job completes and returns its
// result. Calling Wait before Start blocks forever, which is the
// caller's bug to avoid, not this type's to guard against.
func (r *Resolver[V]) Wait() (V, error) {
	<-r.done
	return r.val, r.err
}

// Done reports whether the background job has finished, without
// blocking.
func (r *Resolver[V]) Done() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}
