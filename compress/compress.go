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

// Package compress implements the double-pass LZ4 compressor. The LZ4
// bit-stream codec itself is an out-of-scope collaborator: it is
// consumed here as a library, github.com/pierrec/lz4/v4, rather than
// reimplemented.
package compress

import (
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/pwaller/mema/compress/scratchpool"
)

// tagRaw and tagLZ4 are the first byte of every non-empty Pass output,
// distinguishing a verbatim fallback from a genuine LZ4 block so UndoPass
// can reverse either one unambiguously. Without this, a block that LZ4
// declined to shrink is indistinguishable from real LZ4 output and
// UndoPass's unconditional lz4.UncompressBlock call misdecodes it.
const (
	tagRaw byte = 0
	tagLZ4 byte = 1
)

// Pass compresses payload with LZ4 once, returning a scratchpool-backed
// buffer tagged with a one-byte frame header. Callers must
// scratchpool.Free the result.
func Pass(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return []byte{}, nil
	}

	bound := lz4.CompressBlockBound(len(payload))
	if bound <= 0 {
		bound = 1
	}
	dst := scratchpool.Malloc(bound + 1)

	var c lz4.Compressor
	n, err := c.CompressBlock(payload, dst[1:])
	if err != nil {
		scratchpool.Free(dst)
		return nil, fmt.Errorf("compress: lz4 pass failed: %w", err)
	}
	if n == 0 {
		// Incompressible input: LZ4's block compressor declines to emit an
		// expanded block. Store the payload verbatim, tagged so UndoPass
		// knows to skip decompression.
		scratchpool.Free(dst)
		raw := scratchpool.Malloc(len(payload) + 1)
		raw[0] = tagRaw
		copy(raw[1:], payload)
		return raw, nil
	}
	dst[0] = tagLZ4
	return dst[:n+1], nil
}

// DoublePass runs Pass twice (double-LZ4 round-trip is the identity).
// The intermediate buffer from the first pass is freed before
// returning.
func DoublePass(payload []byte) ([]byte, error) {
	c1, err := Pass(payload)
	if err != nil {
		return nil, err
	}
	c2, err := Pass(c1)
	scratchpool.Free(c1)
	if err != nil {
		return nil, err
	}
	return c2, nil
}

// UndoPass reverses one Pass given the known decompressed size.
func UndoPass(compressed []byte, decompressedSize int) ([]byte, error) {
	if decompressedSize == 0 {
		return []byte{}, nil
	}
	if len(compressed) == 0 {
		return nil, fmt.Errorf("compress: empty frame for non-empty decompressed size %d", decompressedSize)
	}

	tag, body := compressed[0], compressed[1:]
	switch tag {
	case tagRaw:
		if len(body) != decompressedSize {
			return nil, fmt.Errorf("compress: raw frame length %d does not match decompressed size %d", len(body), decompressedSize)
		}
		out := make([]byte, decompressedSize)
		copy(out, body)
		return out, nil
	case tagLZ4:
		dst := make([]byte, decompressedSize)
		n, err := lz4.UncompressBlock(body, dst)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4 decompress failed: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("compress: unrecognized frame tag %d", tag)
	}
}
