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

package ring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pwaller/mema/record"
)

type fakeDrainer struct {
	frames [][]record.Record
	err    error
}

func (d *fakeDrainer) Drain(rr []record.Record) error {
	if d.err != nil {
		return d.err
	}
	cp := make([]record.Record, len(rr))
	copy(cp, rr)
	d.frames = append(d.frames, cp)
	return nil
}

func TestAppendDoesNotDrainBelowCapacity(t *testing.T) {
	d := &fakeDrainer{}
	r := New(d)
	r.Append(record.FuncEntryRecord(1))
	r.Append(record.FuncEntryRecord(2))
	assert.Equal(t, 2, r.Len())
	assert.Empty(t, d.frames)
}

func TestAppendDrainsWhenFull(t *testing.T) {
	d := &fakeDrainer{}
	r := New(d)
	cap := len(r.buf)
	for i := 0; i < cap; i++ {
		r.Append(record.FuncEntryRecord(uintptr(i)))
	}
	assert.Len(t, d.frames, 1)
	assert.Len(t, d.frames[0], cap)
	assert.Equal(t, 0, r.Len())
}

func TestEmptyDrainIsPermitted(t *testing.T) {
	d := &fakeDrainer{}
	r := New(d)
	r.Drain()
	assert.Len(t, d.frames, 1)
	assert.Empty(t, d.frames[0])
}

func TestDrainFailureIsFatal(t *testing.T) {
	d := &fakeDrainer{err: errors.New("short write")}
	r := New(d)
	var gotErr error
	r.SetOnFatal(func(err error) { gotErr = err })
	r.Append(record.FuncEntryRecord(1))
	r.Drain()
	assert.Error(t, gotErr)
	assert.Equal(t, 0, r.Len())
}

func TestProgramOrderPreservedAcrossDrains(t *testing.T) {
	d := &fakeDrainer{}
	r := New(d)
	cap := len(r.buf)
	total := cap*2 + 1
	for i := 0; i < total; i++ {
		r.Append(record.Record{Kind: record.FuncEnter, Addr: uintptr(i)})
	}
	r.Drain()

	var seen []uintptr
	for _, frame := range d.frames {
		for _, rec := range frame {
			seen = append(seen, rec.Addr)
		}
	}
	assert.Len(t, seen, total)
	for i, v := range seen {
		assert.Equal(t, uintptr(i), v)
	}
}
