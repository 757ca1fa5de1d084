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

import "unsafe"

// AsBytes reinterprets a slice of Records as its raw backing bytes, with
// no copy — a cast of the whole ring onto the wire; see
// pault.ag/go/go-diskring's asByteSlice for the same trick applied to a
// single mmap'd backing array.
func AsBytes(rr []Record) []byte {
	if len(rr) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&rr[0])), len(rr)*Size)
}
