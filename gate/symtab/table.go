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

package symtab

import (
	"github.com/gobwas/glob"

	"github.com/pwaller/mema/container/strmap"
	"github.com/pwaller/mema/gate"
	"github.com/pwaller/mema/hash/xfnv"
)

// Table is a GC-friendly, read-only name-to-address table, built once at
// startup from a symbol listing. It doubles as the exact-name lookup
// backing the fnname flag and as the source set for glob-based
// scoped-auto resolution.
type Table struct {
	byName *strmap.StrMap[uintptr]
}

// NewTable builds a Table from syms, deduplicating repeated names (weak
// symbols, aliases) by their xfnv hash so the last-seen address wins
// without an O(n^2) scan.
func NewTable(syms []Symbol) *Table {
	seen := make(map[uint64]int, len(syms))
	names := make([]string, 0, len(syms))
	addrs := make([]uintptr, 0, len(syms))
	for _, s := range syms {
		h := xfnv.HashStr(s.Name)
		if i, ok := seen[h]; ok {
			addrs[i] = s.Addr
			continue
		}
		seen[h] = len(names)
		names = append(names, s.Name)
		addrs = append(addrs, s.Addr)
	}
	return &Table{byName: strmap.NewFromSlice(names, addrs)}
}

// Lookup resolves a single function by its exact (demangled) name.
func (t *Table) Lookup(name string) (uintptr, bool) {
	return t.byName.Get(name)
}

// Len returns the number of distinct symbols in the table.
func (t *Table) Len() int { return t.byName.Len() }

// Match builds an AddrSet of every function whose name satisfies
// pattern, for the scoped-auto funcname option.
func (t *Table) Match(pattern glob.Glob) *gate.AddrSet {
	var addrs []uintptr
	for i := 0; i < t.byName.Len(); i++ {
		name, addr := t.byName.Item(i)
		if pattern.Match(name) {
			addrs = append(addrs, addr)
		}
	}
	return gate.NewAddrSet(addrs)
}
