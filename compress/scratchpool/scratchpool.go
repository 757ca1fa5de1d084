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

// Package scratchpool pools the two scratch buffers the double-LZ4 pass
// allocates and frees on every drain. It is a size-classed sync.Pool
// ring, trimmed to just the Malloc/Free pair the compressor needs, and
// tuned for compression-scratch-sized buffers — typically tens of KB to
// a few MB, not the multi-GB network buffers a general-purpose memory
// pool is built for.
package scratchpool

import (
	"math/bits"
	"sync"
	"unsafe"
)

type sizedPool struct {
	sync.Pool
	size int
}

var pools []*sizedPool

const (
	minPoolSize = 1 << 10  // 1KB
	maxPoolSize = 1 << 30  // 1GB, Malloc panics above this
	footerLen   = 8
)

const (
	footerMagicMask = uint64(0xFFFFFFFFFFFFFFC0)
	footerIndexMask = uint64(0x000000000000003F)
	footerMagic     = uint64(0xC0FFEEC0FFEE0DC0) // ends in 6 zero bits, used by index
)

var bits2idx [64]int

func init() {
	i := 0
	for sz := minPoolSize; sz <= maxPoolSize; sz <<= 1 {
		p := &sizedPool{size: sz}
		p.New = func() interface{} {
			b := make([]byte, 0, p.size)
			b = b[:p.size]
			return &b[0]
		}
		pools = append(pools, p)
		bits2idx[bits.Len(uint(p.size))] = i
		i++
	}
}

func poolIndex(sz int) int {
	if sz <= minPoolSize {
		return 0
	}
	i := bits2idx[bits.Len(uint(sz))]
	if uint(sz)&(uint(sz)-1) == 0 {
		return i
	}
	return i + 1
}

type sliceHeader struct {
	Data unsafe.Pointer
	Len  int
	Cap  int
}

// Malloc returns a scratch buffer with length size, rounded up to a size
// class internally. Bytes are not zeroed. Call Free when done; never reuse
// the slice afterward.
func Malloc(size int) []byte {
	if size == 0 {
		return []byte{}
	}
	c := size + footerLen
	i := poolIndex(c)
	if i >= len(pools) {
		panic("scratchpool: size exceeds maxPoolSize")
	}
	pool := pools[i]
	p := pool.Get().(*byte)

	ret := []byte{}
	h := (*sliceHeader)(unsafe.Pointer(&ret))
	h.Data = unsafe.Pointer(p)
	h.Len = size
	h.Cap = pool.size

	*(*uint64)(unsafe.Add(h.Data, h.Cap-footerLen)) = footerMagic | uint64(i)
	return ret
}

// Free returns buf to its size class pool. Safe to call on any []byte; it
// silently no-ops if buf was not produced by Malloc.
func Free(buf []byte) {
	c := cap(buf)
	if c < minPoolSize || uint(c)&uint(c-1) != 0 {
		return
	}
	if c-len(buf) < footerLen {
		return
	}
	h := (*sliceHeader)(unsafe.Pointer(&buf))
	footer := *(*uint64)(unsafe.Add(h.Data, h.Cap-footerLen))
	if footer&footerMagicMask != footerMagic {
		return
	}
	i := int(footer & footerIndexMask)
	if i < len(pools) && pools[i].size == c {
		pools[i].Put(&buf[0])
	}
}
