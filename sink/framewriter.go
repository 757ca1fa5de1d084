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

package sink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bytedance/gopkg/lang/mcache"
)

const lengthPrefixSize = 8 // length-prefixed uword

// frameWriter builds one `length:uword || payload` frame into a single
// mcache-backed buffer and flushes it in one Write call, adapted from a
// bufio-style Malloc/WriteBinary/Flush discipline — collapsed from a
// chunked, multi-buffer net.Buffers design (built for streaming many
// small writes to a socket) down to the single preallocated frame this
// sink needs, since each drain produces exactly one length-prefixed
// frame.
type frameWriter struct {
	buf []byte
}

// build reserves a buffer sized for the frame and returns it; the caller
// fills buf[lengthPrefixSize:] with the payload before calling flush.
func (w *frameWriter) build(payloadLen int) []byte {
	w.buf = mcache.Malloc(lengthPrefixSize + payloadLen)
	binary.LittleEndian.PutUint64(w.buf[:lengthPrefixSize], uint64(payloadLen))
	return w.buf[lengthPrefixSize:]
}

// flush writes the assembled frame to wr and releases the scratch buffer.
// It returns an error if the write was short: a short sink write is a
// hard, abort-worthy failure, since continuing would desynchronize the
// length-prefixed framing for every later reader.
func (w *frameWriter) flush(wr io.Writer) error {
	defer func() {
		mcache.Free(w.buf)
		w.buf = nil
	}()
	n, err := wr.Write(w.buf)
	if err != nil {
		return fmt.Errorf("sink: frame write failed: %w", err)
	}
	if n != len(w.buf) {
		return fmt.Errorf("sink: short write: wrote %d of %d bytes", n, len(w.buf))
	}
	return nil
}
