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

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesZeroConfigurationExpectations(t *testing.T) {
	c := Default()
	assert.False(t, c.Disable)
	assert.Zero(t, c.Verbosity)
	assert.False(t, c.Debug)
	assert.True(t, c.Compression)
	assert.Empty(t, c.Filename)
	assert.Nil(t, c.FuncGlob)
}

func TestParseOfEmptyStringYieldsDefaults(t *testing.T) {
	assert.Equal(t, Default(), Parse(""))
}

func TestParseRecognizesEachOption(t *testing.T) {
	c := Parse("disable=1 verbosity=3 debug=yes compression=0 filename=/tmp/out.mema funcname=bubble*")
	assert.True(t, c.Disable)
	assert.Equal(t, 3, c.Verbosity)
	assert.True(t, c.Debug)
	assert.False(t, c.Compression)
	assert.Equal(t, "/tmp/out.mema", c.Filename)
	assert.Equal(t, "bubble*", c.Funcname)
	if assert.NotNil(t, c.FuncGlob) {
		assert.True(t, c.FuncGlob.Match("bubbleSort"))
		assert.False(t, c.FuncGlob.Match("quickSort"))
	}
}

func TestParseIgnoresUnknownTokens(t *testing.T) {
	c := Parse("bogus=1 filename=out.mema")
	assert.Equal(t, "out.mema", c.Filename)
}

func TestParseHandlesQuotedValuesWithEmbeddedSpaces(t *testing.T) {
	c := Parse(`filename="/tmp/my trace.mema" verbosity=2`)
	assert.Equal(t, "/tmp/my trace.mema", c.Filename)
	assert.Equal(t, 2, c.Verbosity)
}

func TestParseTreatsBareNameWithNoEqualsAsAbsent(t *testing.T) {
	c := Parse("filename debug=1")
	assert.Empty(t, c.Filename)
	assert.True(t, c.Debug)
}

func TestParseLeavesFuncGlobNilOnUncompilablePattern(t *testing.T) {
	c := Parse("funcname=[")
	assert.Equal(t, "[", c.Funcname)
	assert.Nil(t, c.FuncGlob)
}

func TestParseBoolAcceptsTrueFalseSynonyms(t *testing.T) {
	for _, v := range []string{"1", "yes", "true"} {
		c := Parse("debug=" + v)
		assert.True(t, c.Debug, v)
	}
	for _, v := range []string{"0", "no", "false"} {
		c := Parse("debug=" + v)
		assert.False(t, c.Debug, v)
	}
}

func TestParseIntIgnoresUnparsableValue(t *testing.T) {
	c := Parse("verbosity=notanumber")
	assert.Zero(t, c.Verbosity)
}
