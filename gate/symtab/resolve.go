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
	"github.com/gobwas/glob"

	"github.com/pwaller/mema/gate"
)

// ResolveAddrSet opens the executable at path, reads its symbol table,
// and returns the AddrSet of functions whose name matches pattern. A
// stripped or unrecognized binary yields an empty AddrSet and no error.
// If the file cannot be opened or its format parser fails, the error is
// returned together with an empty AddrSet; either way an empty set
// leaves scoped-auto mode fully disabled.
func ResolveAddrSet(path string, pattern glob.Glob) (*gate.AddrSet, error) {
	syms, err := Resolve(path)
	if err != nil {
		return gate.NewAddrSet(nil), err
	}
	return NewTable(syms).Match(pattern), nil
}
