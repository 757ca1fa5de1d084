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

// Package symtab resolves the function symbols of an executable on disk.
//
// Shelling out to a subprocess and parsing fixed-column text output is
// fragile; this package reads the executable's own symbol table
// directly with the standard library's debug/elf, debug/macho and
// debug/pe parsers, keyed off the file's magic bytes rather than
// runtime.GOOS, since all three parsers are pure binary-format readers
// with no platform build constraint.
package symtab

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"fmt"
	"os"
)

// Symbol is one resolved function symbol.
type Symbol struct {
	Name string
	Addr uintptr
}

// Resolve reads path's symbol table and returns every symbol it
// classifies as a function. Unrecognized or stripped binaries return an
// empty slice, not an error: symbol-resolution failure is a
// degrade-to-disabled condition, not a fatal one.
func Resolve(path string) ([]Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: open %q: %w", path, err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return nil, fmt.Errorf("symtab: read magic: %w", err)
	}

	switch {
	case bytes.Equal(magic, []byte{0x7f, 'E', 'L', 'F'}):
		return resolveELF(path)
	case bytes.Equal(magic[:2], []byte{'M', 'Z'}):
		return resolvePE(path)
	case isMachOMagic(magic):
		return resolveMachO(path)
	default:
		return nil, nil
	}
}

func isMachOMagic(magic []byte) bool {
	m := bytes.NewBuffer(magic).Bytes()
	candidates := [][4]byte{
		{0xfe, 0xed, 0xfa, 0xce}, // 32-bit big endian
		{0xce, 0xfa, 0xed, 0xfe}, // 32-bit little endian
		{0xfe, 0xed, 0xfa, 0xcf}, // 64-bit big endian
		{0xcf, 0xfa, 0xed, 0xfe}, // 64-bit little endian
		{0xca, 0xfe, 0xba, 0xbe}, // fat binary
	}
	for _, c := range candidates {
		if len(m) == 4 && m[0] == c[0] && m[1] == c[1] && m[2] == c[2] && m[3] == c[3] {
			return true
		}
	}
	return false
}

func resolveELF(path string) ([]Symbol, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: elf.Open: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		// A stripped binary returns ErrNoSymbols; that is a degrade, not a
		// failure.
		return nil, nil
	}

	out := make([]Symbol, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC || s.Value == 0 || s.Name == "" {
			continue
		}
		out = append(out, Symbol{Name: s.Name, Addr: uintptr(s.Value)})
	}
	return out, nil
}

func resolveMachO(path string) ([]Symbol, error) {
	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: macho.Open: %w", err)
	}
	defer f.Close()

	if f.Symtab == nil {
		return nil, nil
	}

	out := make([]Symbol, 0, len(f.Symtab.Syms))
	for _, s := range f.Symtab.Syms {
		// N_SECT (0x0e) with a nonzero section index marks a defined symbol
		// resident in a text/data section; Mach-O has no separate function
		// bit the way ELF's STT_FUNC does, so this is the closest portable
		// proxy available without parsing DWARF.
		const nTypeMask = 0x0e
		const nSect = 0x0e
		if s.Type&nTypeMask != nSect || s.Sect == 0 || s.Name == "" || s.Value == 0 {
			continue
		}
		out = append(out, Symbol{Name: s.Name, Addr: uintptr(s.Value)})
	}
	return out, nil
}

func resolvePE(path string) ([]Symbol, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symtab: pe.Open: %w", err)
	}
	defer f.Close()

	out := make([]Symbol, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		// COFF function symbols: complex type high byte == 0x20 (IMAGE_SYM_DTYPE_FUNCTION)
		const dTypeFunction = 0x20
		if s.Type&0xf0 != dTypeFunction || s.SectionNumber <= 0 || s.Name == "" || s.Value == 0 {
			continue
		}
		out = append(out, Symbol{Name: s.Name, Addr: uintptr(s.Value)})
	}
	return out, nil
}
