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

//go:build linux

package sink

import "os"

// processMapsSnapshot returns the verbatim contents of /proc/self/maps,
// the OS's view of loaded regions at the moment of the call.
func processMapsSnapshot() ([]byte, error) {
	return os.ReadFile("/proc/self/maps")
}
