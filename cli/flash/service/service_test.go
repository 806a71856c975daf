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
package service

import (
	"context"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/eeprom"
	"github.com/mongoose-os/flashprog/cli/flash/flashsim"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
	"github.com/mongoose-os/flashprog/common/multierror"
)

const testSize = 64 * 1024

var testChip = chipdb.Chip{
	Name: "T25Q512", Manufacturer: "Test", Size: testSize,
	ManufacturerID: 0xef, DeviceID: 0x4010,
}

func testRegistry(t *testing.T) *chipdb.Registry {
	reg, err := chipdb.NewRegistry([]chipdb.Chip{testChip})
	require.NoError(t, err)
	return reg
}

type fixture struct {
	sim *flashsim.Chip
	svc *Service
}

func newFixture(t *testing.T, sim *flashsim.Chip, opts ...Option) *fixture {
	eng := spi.New(sim, spi.WithSettleDelay(0), spi.WithPollInterval(time.Millisecond))
	opts = append([]Option{WithRand(rand.New(rand.NewSource(1)))}, opts...)
	return &fixture{sim: sim, svc: New(sim, eng, testRegistry(t), opts...)}
}

// detected returns a fixture that is connected and has the test chip bound.
func detected(t *testing.T, opts ...Option) *fixture {
	ctx := context.Background()
	reg := testRegistry(t)
	c, ok := reg.Find(testChip.Name)
	require.True(t, ok)
	f := newFixture(t, flashsim.FromChip(c), opts...)
	require.True(t, f.svc.Connect(ctx).Success)
	o := f.svc.Detect(ctx)
	require.True(t, o.Success, o.Message)
	f.sim.ResetLog()
	return f
}

func writeImage(t *testing.T, name string, data []byte) string {
	fname := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(fname, data, 0644))
	return fname
}

func image(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*13 + 1)
	}
	return data
}

func TestConnectDetectDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashsim.FromChip(testChip))

	o := f.svc.Detect(ctx)
	assert.False(t, o.Success)
	assert.Equal(t, common.KindNotConnected, o.Kind())

	require.True(t, f.svc.Connect(ctx).Success)
	assert.True(t, f.svc.IsConnected())
	assert.True(t, f.svc.Connect(ctx).Success)

	o = f.svc.Detect(ctx)
	require.True(t, o.Success, o.Message)
	assert.Equal(t, "T25Q512", o.Payload.Chip.Name)
	assert.Contains(t, o.Message, "T25Q512")
	chip, ok := f.svc.Chip()
	require.True(t, ok)
	assert.Equal(t, testSize, chip.Size)
	assert.Equal(t, uint16(0x4010), f.svc.Identity().JEDECDevice())

	require.True(t, f.svc.Disconnect(ctx).Success)
	assert.False(t, f.svc.IsConnected())
	_, ok = f.svc.Chip()
	assert.False(t, ok)
}

func TestFailedOutcomeHasNoPayload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashsim.FromChip(testChip))
	o := f.svc.Read(ctx, 0, 16)
	assert.False(t, o.Success)
	assert.Nil(t, o.Payload)
	assert.NotEmpty(t, o.Message)
	assert.Error(t, o.Err)
}

func TestRequiresDetect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashsim.FromChip(testChip))
	require.True(t, f.svc.Connect(ctx).Success)
	path := writeImage(t, "fw.bin", image(16))

	assert.Equal(t, common.KindNotInitialized, f.svc.Flash(ctx, path).Kind())
	assert.Equal(t, common.KindNotInitialized, f.svc.FlashWithVerify(ctx, path).Kind())
	assert.Equal(t, common.KindNotInitialized, f.svc.ClearFlash(ctx).Kind())
	assert.Equal(t, common.KindNotInitialized, f.svc.Erase(ctx, 0, 0).Kind())
}

func TestFlashValidation(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.bin"), 0755))

	cases := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing", filepath.Join(dir, "missing.bin")},
		{"extension", writeImage(t, "fw.hex", image(16))},
		{"no extension", writeImage(t, "fw", image(16))},
		{"empty file", writeImage(t, "empty.bin", nil)},
		{"too big", writeImage(t, "big.bin", image(testSize+1))},
		{"directory", filepath.Join(dir, "dir.bin")},
	}
	for _, c := range cases {
		o := f.svc.Flash(ctx, c.path)
		assert.Falsef(t, o.Success, "%s", c.name)
		assert.Equalf(t, common.KindInputValidation, o.Kind(), "%s: %s", c.name, o.Err)
	}
	assert.Empty(t, f.sim.Log())

	o := f.svc.Flash(ctx, writeImage(t, "FW.BIN", image(testSize)))
	assert.True(t, o.Success, o.Message)
}

func TestFlash(t *testing.T) {
	ctx := context.Background()
	var samples []common.Progress
	f := detected(t, WithProgress(func(p common.Progress) { samples = append(samples, p) }))
	data := image(1000)

	o := f.svc.Flash(ctx, writeImage(t, "fw.bin", data))
	require.True(t, o.Success, o.Message)
	assert.Equal(t, 1000, o.Payload.Bytes)
	assert.False(t, o.Payload.Verified)
	assert.Contains(t, o.Message, "Wrote 1000 bytes")
	assert.Equal(t, data, f.sim.Memory()[:1000])
	assert.NotEmpty(t, samples)
	assert.Equal(t, 100.0, samples[len(samples)-1].Percent)

	for _, op := range f.sim.Opcodes() {
		assert.NotContains(t, []byte{0x20, 0x52, 0xd8, 0xc7, 0x60, 0x03}, op, "no erase, no read back")
	}
}

func TestFlashWithVerify(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	data := image(700)

	o := f.svc.FlashWithVerify(ctx, writeImage(t, "fw.bin", data))
	require.True(t, o.Success, o.Message)
	assert.True(t, o.Payload.Verified)
	assert.Equal(t, data, f.sim.Memory()[:700])

	var ops []byte
	for _, op := range f.sim.Opcodes() {
		if op == 0x02 || op == 0x03 {
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []byte{0x02, 0x03, 0x02, 0x03, 0x02, 0x03}, ops)
}

func TestFlashWithVerifyMismatchOnSecondPage(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	ps := 256
	bad := uint32(ps + 5)
	f.sim.Corrupt = func(addr uint32, data []byte) {
		if addr <= bad && bad < addr+uint32(len(data)) {
			data[bad-addr] ^= 0xff
		}
	}
	data := image(2 * ps)

	o := f.svc.FlashWithVerify(ctx, writeImage(t, "fw.bin", data))
	require.False(t, o.Success)
	assert.Equal(t, common.KindVerifyMismatch, o.Kind())
	me, ok := common.Mismatch(o.Err)
	require.True(t, ok)
	assert.Equal(t, bad, me.Offset)
	assert.Equal(t, data[bad], me.Expected)
	assert.Equal(t, data[bad]^0xff, me.Actual)
	assert.Equal(t, FlashReport{}, o.Payload)

	// Page 1 was written and verified first.
	mem := f.sim.Memory()
	assert.Equal(t, data[:ps], mem[:ps])
	var addrs []uint32
	for _, tr := range f.sim.Log() {
		if tr.Opcode() == 0x02 || tr.Opcode() == 0x03 {
			addrs = append(addrs, uint32(tr.Out[1])<<16|uint32(tr.Out[2])<<8|uint32(tr.Out[3]))
		}
	}
	assert.Equal(t, []uint32{0, 0, 0x100, 0x100}, addrs)
}

func TestClearFlash(t *testing.T) {
	ctx := context.Background()
	var samples []common.Progress
	f := detected(t, WithProgress(func(p common.Progress) { samples = append(samples, p) }))
	f.sim.Fill(0, make([]byte, testSize))

	o := f.svc.ClearFlash(ctx)
	require.True(t, o.Success, o.Message)
	assert.Equal(t, 100, o.Payload.Samples)
	assert.Equal(t, 100*64, o.Payload.Checked)
	require.Len(t, samples, 100)
	assert.Equal(t, 100.0, samples[99].Percent)

	ops := f.sim.Opcodes()
	assert.Equal(t, []byte{0x06, 0xc7, 0x06, 0x60, 0x06, 0x62}, ops[:6])
	reads := 0
	for _, tr := range f.sim.Log() {
		if tr.Opcode() == 0x03 {
			reads++
			assert.Equal(t, 64, tr.In)
			assert.Zero(t, tr.Out[3], "256-aligned")
		}
	}
	assert.Equal(t, 100, reads)
}

func TestClearFlashReportsFailures(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	f.sim.Corrupt = func(addr uint32, data []byte) { data[7] = 0x00 }

	o := f.svc.ClearFlash(ctx)
	require.False(t, o.Success)
	assert.Equal(t, common.KindVerifyMismatch, o.Kind())
	assert.Equal(t, 100, multierror.Len(o.Err))
	assert.Contains(t, o.Message, "100 of 100")
}

func TestClearFlashWholeRom(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	f.sim.Fill(0, make([]byte, testSize))

	o := f.svc.ClearFlashWholeRom(ctx)
	require.True(t, o.Success, o.Message)
	assert.Equal(t, testSize, o.Payload.Checked)

	f.sim.Corrupt = func(addr uint32, data []byte) {
		for _, a := range []uint32{0x1234, 0x8000} {
			if addr <= a && a < addr+uint32(len(data)) {
				data[a-addr] = 0x5a
			}
		}
	}
	o = f.svc.ClearFlashWholeRom(ctx)
	require.False(t, o.Success)
	me, ok := common.Mismatch(o.Err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x1234), me.Offset)
	assert.Equal(t, byte(0x5a), me.Actual)
	assert.Equal(t, 2, me.Count)
}

func TestSampleCount(t *testing.T) {
	cases := []struct{ size, n int }{
		{0, 0},
		{16 * 1024, 64},
		{64 * 1024, 100},
		{1024 * 1024, 1024},
		{16 * 1024 * 1024, 2000},
	}
	for _, c := range cases {
		assert.Equalf(t, c.n, SampleCount(c.size), "size %d", c.size)
	}
}

func TestSampleAddresses(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		for _, size := range []int{16 * 1024, 64 * 1024, 8 * 1024 * 1024} {
			n := SampleCount(size)
			addrs := SampleAddresses(rand.New(rand.NewSource(seed)), size, n)
			require.Len(t, addrs, n)
			seen := map[uint32]bool{}
			for i, a := range addrs {
				assert.Zero(t, a%256)
				assert.True(t, int(a) < size)
				assert.False(t, seen[a], "duplicate 0x%x", a)
				seen[a] = true
				if i > 0 {
					assert.True(t, addrs[i-1] < a)
				}
			}
			again := SampleAddresses(rand.New(rand.NewSource(seed)), size, n)
			assert.Equal(t, addrs, again)
		}
	}
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	var inner common.Outcome[[]byte]
	var f *fixture
	f = detected(t, WithProgress(func(p common.Progress) {
		if inner.Message == "" {
			inner = f.svc.Read(ctx, 0, 16)
		}
	}))
	o := f.svc.Read(ctx, 0, 4096)
	require.True(t, o.Success, o.Message)
	assert.False(t, inner.Success)
	assert.Contains(t, inner.Message, "in progress")

	assert.True(t, f.svc.Read(ctx, 0, 16).Success)
}

func TestReadEraseBlankCheck(t *testing.T) {
	ctx := context.Background()
	f := detected(t)
	f.sim.Fill(0, image(testSize))

	o := f.svc.Read(ctx, 0x100, 0)
	require.True(t, o.Success, o.Message)
	assert.Len(t, o.Payload, testSize-0x100)

	assert.False(t, f.svc.BlankCheck(ctx, 0, 0).Success)
	require.True(t, f.svc.Erase(ctx, 0x1000, 0x2000).Success)
	assert.True(t, f.svc.BlankCheck(ctx, 0x1000, 0x2000).Success)
	bc := f.svc.BlankCheck(ctx, 0x1000, 0x2001)
	assert.Equal(t, common.KindVerifyMismatch, bc.Kind())
	assert.Contains(t, bc.Message, "0x3000")

	assert.Equal(t, common.KindInputValidation, f.svc.Erase(ctx, 0x1000, 0).Kind())
	require.True(t, f.svc.Erase(ctx, 0, 0).Success)
	assert.True(t, f.svc.BlankCheck(ctx, 0, 0).Success)
}

func TestProtectAndStatus(t *testing.T) {
	ctx := context.Background()
	f := detected(t)

	o := f.svc.Protect(ctx, true)
	require.True(t, o.Success, o.Message)
	assert.Equal(t, byte(0x0f), o.Payload)

	st := f.svc.Status(ctx)
	require.True(t, st.Success, st.Message)
	assert.Equal(t, byte(0x0f), st.Payload.BlockProtect)
	assert.Equal(t, byte(0x3c), st.Payload.SR[0])
	assert.False(t, st.Payload.Busy)
	assert.False(t, st.Payload.WriteEnabled)

	o = f.svc.Protect(ctx, false)
	require.True(t, o.Success, o.Message)
	assert.Equal(t, byte(0), o.Payload)
}

func TestUnknownChip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, flashsim.New(testSize, 0xc2, 0x9999))
	require.True(t, f.svc.Connect(ctx).Success)
	o := f.svc.Detect(ctx)
	require.True(t, o.Success, o.Message)
	assert.False(t, o.Payload.Known())
	assert.Contains(t, o.Message, "Unknown")

	assert.Equal(t, common.KindInputValidation, f.svc.Flash(ctx, writeImage(t, "fw.bin", image(16))).Kind())
	assert.Equal(t, common.KindInputValidation, f.svc.ClearFlash(ctx).Kind())
	assert.True(t, f.svc.Read(ctx, 0, 16).Success)
}

func TestStubProtocol(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	svc := New(sim, eeprom.NewI2C(sim), testRegistry(t))
	require.True(t, svc.Connect(ctx).Success)
	o := svc.Detect(ctx)
	assert.False(t, o.Success)
	assert.Equal(t, common.KindNotInitialized, o.Kind())
}
