//
// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/flashprog/cli/flags"
	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
)

func TestParseRange(t *testing.T) {
	for _, c := range []struct {
		args   []string
		addr   uint32
		length int
		ok     bool
	}{
		{nil, 0, 0, true},
		{[]string{"0x1000", "4096"}, 0x1000, 4096, true},
		{[]string{"16", "0x10"}, 16, 16, true},
		{[]string{"0x1000"}, 0, 0, false},
		{[]string{"zz", "1"}, 0, 0, false},
		{[]string{"0", "-1"}, 0, 0, false},
		{[]string{"1", "2", "3"}, 0, 0, false},
	} {
		addr, length, err := parseRange(c.args)
		if !c.ok {
			assert.Error(t, err, "%v", c.args)
			continue
		}
		require.NoError(t, err, "%v", c.args)
		assert.Equal(t, c.addr, addr)
		assert.Equal(t, c.length, length)
	}
}

func TestCheckFlags(t *testing.T) {
	assert.NoError(t, checkFlags(nil))
	assert.Error(t, checkFlags([]string{"port", "usb-serial"}))
	assert.Error(t, checkFlags([]string{"no-such-flag"}))
}

func withSim(t *testing.T) {
	adapter, jedec := *flags.Adapter, *flags.SimJEDEC
	*flags.Adapter, *flags.SimJEDEC = "sim", "ef4017"
	t.Cleanup(func() { *flags.Adapter, *flags.SimJEDEC = adapter, jedec })
}

func TestOpenServiceSim(t *testing.T) {
	withSim(t)
	ctx := context.Background()
	s, closer, err := openService(ctx)
	require.NoError(t, err)
	defer closer()
	chip, ok := s.Chip()
	require.True(t, ok)
	assert.Equal(t, 8<<20, chip.Size)
	assert.Equal(t, byte(0xef), s.Identity().JEDEC[0])
}

func TestUnknownAdapter(t *testing.T) {
	defer func(a string) { *flags.Adapter = a }(*flags.Adapter)
	*flags.Adapter = "jtag"
	_, _, err := openService(context.Background())
	assert.Error(t, err)

	*flags.Adapter = "serprog"
	_, _, err = openService(context.Background())
	assert.Error(t, err, "serprog needs --port")
}

func TestNewProtocol(t *testing.T) {
	defer func(p string) { *flags.Protocol = p }(*flags.Protocol)
	for _, p := range []string{"spi", "i2c", "microwire"} {
		*flags.Protocol = p
		proto, err := newProtocol(nil)
		require.NoError(t, err)
		assert.Equal(t, p, string(proto.Family()))
	}
	*flags.Protocol = "can"
	_, err := newProtocol(nil)
	assert.Error(t, err)
}

func TestCommandsOnSim(t *testing.T) {
	withSim(t)
	ctx := context.Background()
	img := filepath.Join(t.TempDir(), "fw.bin")
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, ioutil.WriteFile(img, data, 0644))

	verify := *flags.Verify
	defer func() { *flags.Verify = verify }()
	*flags.Verify = true

	require.NoError(t, flag.CommandLine.Parse([]string{"write", img}))
	assert.NoError(t, flashWrite(ctx))

	require.NoError(t, flag.CommandLine.Parse([]string{"clear"}))
	assert.NoError(t, clearCheck(ctx))

	require.NoError(t, flag.CommandLine.Parse([]string{"erase", "0x1000", "0x1000"}))
	assert.NoError(t, erase(ctx))

	require.NoError(t, flag.CommandLine.Parse([]string{"blank-check", "0", "0x10000"}))
	assert.NoError(t, blankCheck(ctx))

	require.NoError(t, flag.CommandLine.Parse([]string{"status"}))
	assert.NoError(t, status(ctx))

	require.NoError(t, flag.CommandLine.Parse([]string{"protect", "on"}))
	assert.NoError(t, protect(ctx))
	require.NoError(t, flag.CommandLine.Parse([]string{"protect", "maybe"}))
	assert.Error(t, protect(ctx))

	out := filepath.Join(t.TempDir(), "dump.bin")
	require.NoError(t, flag.CommandLine.Parse([]string{"read", "0", "0x100", out}))
	require.NoError(t, flashRead(ctx))
	got, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, got, 0x100)

	require.NoError(t, flag.CommandLine.Parse([]string{"chips"}))
	assert.NoError(t, listChips(ctx))
	catalog := filepath.Join(t.TempDir(), "chips.yaml")
	require.NoError(t, flag.CommandLine.Parse([]string{"chips", catalog}))
	require.NoError(t, listChips(ctx))
	reg, err := chipdb.Load(catalog)
	require.NoError(t, err)
	assert.Equal(t, chipdb.Builtin().Len(), reg.Len())
}
