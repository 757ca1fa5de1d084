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

// Package sink implements the append-only output file: an 8-byte magic,
// a NUL-terminated memory-map snapshot, then a sequence of
// length-prefixed frames. It owns the write mutex and byte counters
// shared by every thread's drain.
package sink

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pwaller/mema/compress"
	"github.com/pwaller/mema/compress/scratchpool"
)

// Magic is the 8-byte file signature written at offset 0.
const Magic = "MEMACCES"

// Stats accumulates the byte counters: header bytes count identically
// toward both totals (never compressed), and each frame adds its
// length-prefix size plus either the raw or compressed payload size.
type Stats struct {
	TotalUncompressed int64
	TotalCompressed   int64
}

func (s *Stats) addUncompressed(n int64) { atomic.AddInt64(&s.TotalUncompressed, n) }
func (s *Stats) addCompressed(n int64)   { atomic.AddInt64(&s.TotalCompressed, n) }

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	return Stats{
		TotalUncompressed: atomic.LoadInt64(&s.TotalUncompressed),
		TotalCompressed:   atomic.LoadInt64(&s.TotalCompressed),
	}
}

// Summary is returned by Finalize.
type Summary struct {
	Stats
}

// Sink owns the process-wide output file, its write mutex, and the byte
// counters. The monitored-function address set needs no lock once
// built; this is the one resource that genuinely needs one.
type Sink struct {
	mu          sync.Mutex
	file        *os.File
	stats       Stats
	compression bool

	finalizeOnce sync.Once
	finalized    bool
}

// Open opens filename for write-create-truncate (mode 0666), writes the
// magic and the process's memory-map snapshot, and returns a ready Sink.
// compression selects whether WriteFrame runs the double-LZ4 pass.
func Open(filename string, compression bool) (*Sink, error) {
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("sink: open %q: %w", filename, err)
	}
	s := &Sink{file: f, compression: compression}

	if _, err := f.WriteString(Magic); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: write magic: %w", err)
	}
	s.stats.addUncompressed(int64(len(Magic)))
	s.stats.addCompressed(int64(len(Magic)))

	maps, err := processMapsSnapshot()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: snapshot process maps: %w", err)
	}
	if _, err := f.Write(maps); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: write maps: %w", err)
	}
	if _, err := f.Write([]byte{0}); err != nil {
		f.Close()
		return nil, fmt.Errorf("sink: write maps terminator: %w", err)
	}
	n := int64(len(maps) + 1)
	s.stats.addUncompressed(n)
	s.stats.addCompressed(n)

	return s, nil
}

// WriteFrame compresses (if enabled) and writes one length-prefixed frame
// for payload, atomically with respect to other threads' frames. A short
// write or compression failure is fatal: it is returned to the caller,
// who must abort the process rather than continue with desynchronized
// framing.
func (s *Sink) WriteFrame(payload []byte) error {
	var fw frameWriter

	if !s.compression {
		dst := fw.build(len(payload))
		copy(dst, payload)

		s.mu.Lock()
		err := fw.flush(s.file)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		s.stats.addUncompressed(int64(lengthPrefixSize + len(payload)))
		s.stats.addCompressed(int64(lengthPrefixSize + len(payload)))
		return nil
	}

	compressed, err := compress.DoublePass(payload)
	if err != nil {
		return fmt.Errorf("sink: compress frame: %w", err)
	}
	dst := fw.build(len(compressed))
	copy(dst, compressed)
	scratchpool.Free(compressed)

	s.mu.Lock()
	err = fw.flush(s.file)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.stats.addUncompressed(int64(lengthPrefixSize + len(payload)))
	s.stats.addCompressed(int64(lengthPrefixSize + len(compressed)))
	return nil
}

// Finalize closes the sink and returns a summary of total bytes written.
// It runs at most once per process.
func (s *Sink) Finalize() (Summary, error) {
	var err error
	s.finalizeOnce.Do(func() {
		s.mu.Lock()
		err = s.file.Close()
		s.mu.Unlock()
		s.finalized = true
	})
	return Summary{Stats: s.stats.Snapshot()}, err
}
