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

package gate

import "sort"

// AddrSet is a read-only, sorted set of function entry addresses. It is
// built once (by gate/symtab) and never mutated again, so lookups need no
// locking — the same single-writer/many-readers shape as
// container/strmap.StrMap, traded for a flat []uintptr since addresses,
// unlike strings, compare directly without a backing byte arena.
type AddrSet struct {
	sorted []uintptr
}

// NewAddrSet builds an AddrSet from addrs, which need not already be
// sorted or deduplicated.
func NewAddrSet(addrs []uintptr) *AddrSet {
	cp := make([]uintptr, len(addrs))
	copy(cp, addrs)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })

	out := cp[:0]
	for i, a := range cp {
		if i == 0 || a != out[len(out)-1] {
			out = append(out, a)
		}
	}
	return &AddrSet{sorted: out}
}

// Contains reports whether addr is in the set. A nil receiver (the
// plain-mode Gate's unused addrs field) is treated as empty.
func (s *AddrSet) Contains(addr uintptr) bool {
	if s == nil {
		return false
	}
	i := sort.Search(len(s.sorted), func(i int) bool { return s.sorted[i] >= addr })
	return i < len(s.sorted) && s.sorted[i] == addr
}

// Len returns the number of distinct addresses in the set.
func (s *AddrSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sorted)
}
