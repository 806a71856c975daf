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
package spi

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/flashsim"
)

func stepSizes(steps []EraseStep) []int {
	var res []int
	for _, s := range steps {
		res = append(res, s.Size)
	}
	return res
}

func TestPlanErase(t *testing.T) {
	const k = 1024
	cases := []struct {
		start  uint32
		length int
		sizes  []int
	}{
		{start: 0, length: 131072, sizes: []int{64 * k, 64 * k}},
		{start: 0, length: 4 * k, sizes: []int{4 * k}},
		{start: 0, length: 96 * k, sizes: []int{64 * k, 32 * k}},
		{start: 0x8000, length: 96 * k, sizes: []int{32 * k, 64 * k}},
		{start: 0x1000, length: 0x20000, sizes: []int{
			4 * k, 4 * k, 4 * k, 4 * k, 4 * k, 4 * k, 4 * k, 32 * k, 64 * k, 4 * k,
		}},
		{start: 0x10000, length: 60 * k, sizes: []int{
			32 * k, 4 * k, 4 * k, 4 * k, 4 * k, 4 * k, 4 * k, 4 * k,
		}},
		{start: 0, length: 0},
	}
	for _, c := range cases {
		assert.Equalf(t, c.sizes, stepSizes(PlanErase(c.start, c.length)), "0x%x+%d", c.start, c.length)
	}
}

func TestPlanEraseAlignment(t *testing.T) {
	for _, start := range []uint32{0, 0x1000, 0x7000, 0x8000, 0xf000, 0x10000, 0x31000} {
		for _, length := range []int{4096, 8192, 32768, 65536, 0x11000, 0x30000, 0x47000} {
			steps := PlanErase(start, length)
			next, total := start, 0
			for _, s := range steps {
				assert.Equal(t, next, s.Addr)
				assert.Zerof(t, s.Addr%uint32(s.Size), "%d @ 0x%x", s.Size, s.Addr)
				if s.Size > SectorSize {
					assert.True(t, start+uint32(length)-s.Addr >= uint32(s.Size))
				}
				next += uint32(s.Size)
				total += s.Size
			}
			assert.Equal(t, length, total)
		}
	}
}

func TestEraseRange(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	sim.Fill(0, make([]byte, testChip.Size))
	e := newTestEngine(t, sim, &testChip)

	require.NoError(t, e.EraseRange(ctx, 0, 131072, nil))
	var erases []flashsim.Transaction
	for _, tr := range sim.Log() {
		switch tr.Opcode() {
		case opSectorErase, opBlockErase32, opBlockErase64:
			erases = append(erases, tr)
		}
	}
	require.Len(t, erases, 2)
	assert.Equal(t, []byte{0xd8, 0x00, 0x00, 0x00}, erases[0].Out)
	assert.Equal(t, []byte{0xd8, 0x01, 0x00, 0x00}, erases[1].Out)

	mem := sim.Memory()
	_, n := FirstNonBlank(mem[:131072])
	assert.Equal(t, 0, n)
	assert.Equal(t, byte(0), mem[131072])
}

func TestEraseRangeWidensToSectors(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	sim.Fill(0, make([]byte, testChip.Size))
	e := newTestEngine(t, sim, &testChip)

	require.NoError(t, e.EraseRange(ctx, 0x1010, 0x1000, nil))
	mem := sim.Memory()
	assert.Equal(t, byte(0), mem[0xfff])
	_, n := FirstNonBlank(mem[0x1000:0x3000])
	assert.Equal(t, 0, n)
	assert.Equal(t, byte(0), mem[0x3000])
}

func TestEraseUnaligned(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	e := newTestEngine(t, sim, &testChip)
	err := e.EraseBlock64(ctx, 0x8000)
	assert.Equal(t, common.KindInputValidation, common.KindOf(err))
	assert.Empty(t, sim.Log())
}

func TestEraseChip(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	sim.Fill(0x100, []byte{1, 2, 3})
	e := newTestEngine(t, sim, &testChip)

	require.NoError(t, e.EraseChip(ctx))
	assert.Equal(t, []byte{0x06, 0xc7, 0x06, 0x60, 0x06, 0x62, 0x05}, sim.Opcodes())
	_, n := FirstNonBlank(sim.Memory())
	assert.Equal(t, 0, n)
}

func TestEraseChipToleratesPartialFailure(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	sim.Fault = func(tr flashsim.Transaction) error {
		if tr.Opcode() == opChipErase || tr.Opcode() == opChipEraseAlt2 {
			return errors.New("nak")
		}
		return nil
	}
	e := newTestEngine(t, sim, &testChip)
	require.NoError(t, e.EraseChip(ctx))
}

func TestEraseChipFails(t *testing.T) {
	ctx := context.Background()
	sim := flashsim.FromChip(testChip)
	sim.Fault = func(tr flashsim.Transaction) error {
		switch tr.Opcode() {
		case opChipErase, opChipEraseAlt, opChipEraseAlt2:
			return errors.New("nak")
		}
		return nil
	}
	e := newTestEngine(t, sim, &testChip)
	err := e.EraseChip(ctx)
	require.Error(t, err)
	assert.Equal(t, common.KindTransferFailure, common.KindOf(err))
	assert.NotContains(t, sim.Opcodes(), byte(opReadStatus1))
}
