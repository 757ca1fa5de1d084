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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainGateDefaultsOpen(t *testing.T) {
	g := New()
	assert.True(t, g.IsOpen(), "plain gate must start open")
	g.Disable()
	assert.False(t, g.IsOpen(), "Disable did not close the gate")
	g.Enable()
	assert.True(t, g.IsOpen(), "Enable did not reopen the gate")
}

func TestPlainGateIgnoresFuncEnterExit(t *testing.T) {
	g := New()
	g.Disable()
	var depth int32
	g.FuncEnter(0x1000, &depth)
	assert.False(t, g.IsOpen(), "plain-mode FuncEnter must not affect the disable flag")
	assert.Zero(t, depth, "plain-mode FuncEnter must not touch the depth counter")

	g.Enable()
	g.FuncExit(0x1000, &depth)
	assert.True(t, g.IsOpen(), "plain-mode FuncExit must not affect the disable flag")
	assert.Zero(t, depth, "plain-mode FuncExit must not touch the depth counter")
}

func TestScopedAutoOpensOnMonitoredEntry(t *testing.T) {
	addrs := NewAddrSet([]uintptr{0x1000, 0x2000})
	g := NewScopedAuto(addrs)
	assert.False(t, g.IsOpen(), "scoped-auto gate must start disabled")

	var depth int32
	g.FuncEnter(0x3000, &depth) // unmonitored
	assert.False(t, g.IsOpen(), "entering an unmonitored function must not open the gate")
	assert.Zero(t, depth)

	g.FuncEnter(0x1000, &depth)
	assert.True(t, g.IsOpen(), "entering a monitored function must open the gate")
	assert.EqualValues(t, 1, depth)
}

func TestScopedAutoHandlesNestedMonitoredCalls(t *testing.T) {
	addrs := NewAddrSet([]uintptr{0x1000})
	g := NewScopedAuto(addrs)
	var depth int32

	g.FuncEnter(0x1000, &depth) // outer call, depth 0->1, opens
	g.FuncEnter(0x1000, &depth) // recursive call, depth 1->2
	assert.EqualValues(t, 2, depth)

	g.FuncExit(0x1000, &depth) // depth 2->1, still open
	assert.True(t, g.IsOpen(), "gate must stay open while an outer monitored call is still on the stack")

	g.FuncExit(0x1000, &depth) // depth 1->0, closes
	assert.False(t, g.IsOpen(), "gate must close once the outermost monitored call returns")
}

func TestAddrSetContainsAndDedup(t *testing.T) {
	s := NewAddrSet([]uintptr{0x30, 0x10, 0x20, 0x10})
	assert.Equal(t, 3, s.Len(), "Len() must dedup")
	assert.True(t, s.Contains(0x20))
	assert.False(t, s.Contains(0x25))
}

func TestNilAddrSetContainsNothing(t *testing.T) {
	var s *AddrSet
	assert.False(t, s.Contains(0x1))
	assert.Zero(t, s.Len())
}

func TestSetAddrsIsPickedUpByLaterFuncEnter(t *testing.T) {
	g := NewScopedAuto(nil)
	var depth int32
	g.FuncEnter(0x1000, &depth)
	assert.False(t, g.IsOpen(), "with no resolved addresses yet, nothing should be monitored")

	g.SetAddrs(NewAddrSet([]uintptr{0x1000}))
	g.FuncEnter(0x1000, &depth)
	assert.True(t, g.IsOpen(), "after SetAddrs, a monitored address must open the gate")
}
