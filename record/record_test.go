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

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStringCoversEveryVariant(t *testing.T) {
	cases := map[Kind]string{
		InstrRead:  "InstrRead",
		DataRead:   "DataRead",
		DataWrite:  "DataWrite",
		DataModify: "DataModify",
		FuncEnter:  "FuncEnter",
		FuncExit:   "FuncExit",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
	assert.Equal(t, "Unknown", Kind(999).String())
}

func TestFuncEntryAndExitRecordsCarryOnlyAnAddress(t *testing.T) {
	entry := FuncEntryRecord(0x1234)
	assert.Equal(t, FuncEnter, entry.Kind)
	assert.Equal(t, uintptr(0x1234), entry.Addr)
	assert.Zero(t, entry.Size)
	assert.False(t, entry.IsWrite)

	exit := FuncExitRecord(0x5678)
	assert.Equal(t, FuncExit, exit.Kind)
	assert.Equal(t, uintptr(0x5678), exit.Addr)
}

func TestRingCapacityFitsWithinTargetBudget(t *testing.T) {
	n := RingCapacity()
	require.Greater(t, n, 0)
	assert.LessOrEqual(t, n*Size, targetRingBytes)
	// One more record would overshoot the budget, confirming n is the
	// largest count that fits rather than an arbitrary smaller value.
	assert.Greater(t, (n+1)*Size, targetRingBytes)
}

func TestAsBytesLengthMatchesRecordCount(t *testing.T) {
	rr := []Record{
		FuncEntryRecord(1),
		FuncExitRecord(2),
		{Kind: DataRead, Addr: 3, Size: 4},
	}
	b := AsBytes(rr)
	assert.Len(t, b, len(rr)*Size)
}

func TestAsBytesOfEmptySliceIsNil(t *testing.T) {
	assert.Nil(t, AsBytes(nil))
	assert.Nil(t, AsBytes([]Record{}))
}

func TestAsBytesReflectsFieldMutation(t *testing.T) {
	rr := []Record{{Kind: DataWrite, Addr: 0xdead, Size: 8, IsWrite: true}}
	b := AsBytes(rr)
	before := append([]byte(nil), b...)
	rr[0].Addr = 0xbeef
	// AsBytes is a zero-copy reinterpretation, so the same backing bytes
	// change with the underlying struct.
	assert.NotEqual(t, before, b)
}
