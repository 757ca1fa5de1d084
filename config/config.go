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

// Package config parses the runtime's single opaque option string (an
// environment-variable-style string) into typed fields. The
// parser never fails: malformed or missing values simply leave the field
// at its default.
package config

import (
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Config holds the recognized options.
type Config struct {
	Disable     bool
	Verbosity   int
	Debug       bool
	Compression bool
	Filename    string
	Funcname    string

	// FuncGlob is Funcname compiled once at parse time, nil if Funcname is
	// unset or fails to compile (scoped-auto gating then degrades to
	// fully-disabled).
	FuncGlob glob.Glob
}

// Default returns the zero-configuration defaults.
func Default() Config {
	return Config{
		Disable:     false,
		Verbosity:   0,
		Debug:       false,
		Compression: true,
	}
}

// Parse parses s (an env-var-style option string) into a Config seeded with
// Default(). Recognized options: disable, verbosity, debug, compression,
// filename, funcname. Unknown tokens are ignored.
func Parse(s string) Config {
	c := Default()
	parseBool(s, "disable", &c.Disable)
	parseInt(s, "verbosity", &c.Verbosity)
	parseBool(s, "debug", &c.Debug)
	parseBool(s, "compression", &c.Compression)
	if v, ok := value(s, "filename"); ok {
		c.Filename = v
	}
	if v, ok := value(s, "funcname"); ok {
		c.Funcname = v
		if g, err := glob.Compile(v); err == nil {
			c.FuncGlob = g
		}
	}
	return c
}

// value locates the option name as a substring of env and extracts its
// value. The name must be followed by `=`; after it, a quote introduces
// a quoted value terminated by the matching quote, otherwise the value
// runs until the next whitespace or end-of-string.
func value(env, name string) (string, bool) {
	if env == "" {
		return "", false
	}
	pos := strings.Index(env, name)
	if pos < 0 {
		return "", false
	}
	pos += len(name)
	if pos >= len(env) || env[pos] != '=' {
		// bare name with no '=' carries no value.
		return "", false
	}
	pos++
	if pos >= len(env) {
		return "", true
	}
	switch env[pos] {
	case '"', '\'':
		quote := env[pos]
		pos++
		end := strings.IndexByte(env[pos:], quote)
		if end < 0 {
			return env[pos:], true
		}
		return env[pos : pos+end], true
	default:
		end := strings.IndexAny(env[pos:], " \t\r\n")
		if end < 0 {
			return env[pos:], true
		}
		return env[pos : pos+end], true
	}
}

func parseBool(env, name string, out *bool) {
	v, ok := value(env, name)
	if !ok {
		return
	}
	switch v {
	case "0", "no", "false":
		*out = false
	case "1", "yes", "true":
		*out = true
	}
}

func parseInt(env, name string, out *int) {
	v, ok := value(env, name)
	if !ok {
		return
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*out = int(n)
	}
}
