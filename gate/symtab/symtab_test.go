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
	"os"
	"runtime"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableLookupAndMatch(t *testing.T) {
	syms := []Symbol{
		{Name: "bubbleSort", Addr: 0x1000},
		{Name: "bubbleSortHelper", Addr: 0x1010},
		{Name: "main.main", Addr: 0x2000},
	}
	tbl := NewTable(syms)
	require.Equal(t, 3, tbl.Len())

	addr, ok := tbl.Lookup("main.main")
	require.True(t, ok)
	assert.Equal(t, uintptr(0x2000), addr)

	_, ok = tbl.Lookup("nonexistent")
	assert.False(t, ok)

	pattern := glob.MustCompile("bubbleSort*")
	set := tbl.Match(pattern)
	assert.True(t, set.Contains(0x1000))
	assert.True(t, set.Contains(0x1010))
	assert.False(t, set.Contains(0x2000))
	assert.Equal(t, 2, set.Len())
}

func TestTableDedupesRepeatedNames(t *testing.T) {
	syms := []Symbol{
		{Name: "weak", Addr: 0x1},
		{Name: "weak", Addr: 0x2},
	}
	tbl := NewTable(syms)
	assert.Equal(t, 1, tbl.Len())
	addr, ok := tbl.Lookup("weak")
	require.True(t, ok)
	assert.Equal(t, uintptr(0x2), addr, "last-seen address should win")
}

func TestIsMachOMagicRecognizesKnownHeaders(t *testing.T) {
	assert.True(t, isMachOMagic([]byte{0xcf, 0xfa, 0xed, 0xfe}))
	assert.True(t, isMachOMagic([]byte{0xca, 0xfe, 0xba, 0xbe}))
	assert.False(t, isMachOMagic([]byte{0x7f, 'E', 'L', 'F'}))
}

// TestResolveOwnTestBinary exercises the real parser against whatever
// binary is currently executing this test (an ELF on Linux, the
// platform these tests run on), as a genuine end-to-end check.
func TestResolveOwnTestBinary(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("exercises the ELF path against the running test binary")
	}
	path, err := os.Executable()
	require.NoError(t, err)

	syms, err := Resolve(path)
	require.NoError(t, err)
	// Test binaries are rarely fully stripped; if they are, an empty
	// result is still a valid, degraded outcome.
	for _, s := range syms {
		assert.NotEmpty(t, s.Name)
	}
}
