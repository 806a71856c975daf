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
package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/flashsim"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
)

func TestFoldNames(t *testing.T) {
	perms := [][]string{
		{"MX25Q128FV", "MX25Q128JV", "MX25Q128RV"},
		{"MX25Q128JV", "MX25Q128FV", "MX25Q128RV"},
		{"MX25Q128RV", "MX25Q128JV", "MX25Q128FV"},
		{"MX25Q128JV", "MX25Q128RV", "MX25Q128FV"},
		{"MX25Q128FV", "MX25Q128RV", "MX25Q128JV"},
		{"MX25Q128RV", "MX25Q128FV", "MX25Q128JV"},
	}
	for _, p := range perms {
		assert.Equalf(t, "MX25Q128FV(JV/RV)", FoldNames(p), "%v", p)
	}

	cases := []struct {
		names []string
		res   string
	}{
		{nil, ""},
		{[]string{"W25Q64FV"}, "W25Q64FV"},
		{[]string{"W25Q64JV", "W25Q64FV"}, "W25Q64FV(JV)"},
		{[]string{"MX25L6405", "MX25L6405D"}, "MX25L6405(D)"},
		{[]string{"MX25L6406E", "MX25L6405D", "MX25L6473E", "MX25L6405D"}, "MX25L6405D(06E/73E)"},
		{[]string{"EN25Q64", "GD25Q64"}, "EN25Q64(GD25Q64)"},
	}
	for _, c := range cases {
		assert.Equalf(t, c.res, FoldNames(c.names), "%v", c.names)
	}
}

func chip(name string, size int) chipdb.Chip {
	return chipdb.Chip{
		Name: name, Manufacturer: "Macronix", Size: size,
		PageSize: 256, SectorSize: 4096, BlockSize: 65536,
		ManufacturerID: 0xc2, DeviceID: 0x2018,
	}
}

func TestSelectBestCandidate(t *testing.T) {
	id := common.Identity{JEDEC: [3]byte{0xc2, 0x20, 0x18}}

	one := chip("MX25L12835F", 16<<20)
	assert.Equal(t, one, SelectBestCandidate([]chipdb.Chip{one}, id))

	same := []chipdb.Chip{chip("MX25Q128JV", 16<<20), chip("MX25Q128FV", 16<<20), chip("MX25Q128RV", 16<<20)}
	res := SelectBestCandidate(same, id)
	assert.Equal(t, "MX25Q128FV(JV/RV)", res.Name)
	assert.Equal(t, 16<<20, res.Size)
	assert.Equal(t, "Macronix", res.Manufacturer)
	assert.Contains(t, res.Description, "MX25Q128FV, MX25Q128JV, MX25Q128RV")

	mixed := []chipdb.Chip{chip("A", 4<<20), chip("B", 16<<20), chip("C", 8<<20), chip("D", 16<<20)}
	res = SelectBestCandidate(mixed, id)
	assert.Equal(t, "B", res.Name)
	for _, c := range mixed {
		assert.True(t, res.Size >= c.Size)
	}
}

func TestUnknown(t *testing.T) {
	id := common.Identity{JEDEC: [3]byte{0xef, 0x70, 0x22}, ManufacturerID: 0xef, DeviceID: 0x21, Signature: 0x21}
	res := SelectBestCandidate(nil, id)
	assert.Equal(t, UnknownChipName, res.Name)
	assert.Equal(t, "Winbond", res.Manufacturer)
	assert.Equal(t, 0, res.Size)
	assert.Equal(t, 256, res.PageSize)
	assert.Equal(t, 4096, res.SectorSize)
	assert.Equal(t, 65536, res.BlockSize)
	assert.Equal(t, 3300, res.VoltageMV)
	assert.Equal(t, byte(0xef), res.ManufacturerID)
	assert.Equal(t, uint16(0x7022), res.DeviceID)
	assert.Contains(t, res.Description, "EF7022")

	res = Unknown(common.Identity{JEDEC: [3]byte{0x42, 0, 0}})
	assert.Equal(t, chipdb.UnknownManufacturer, res.Manufacturer)
}

func TestCandidates(t *testing.T) {
	reg := chipdb.Builtin()

	m, kind := Candidates(reg, common.Identity{JEDEC: [3]byte{0xc8, 0x40, 0x17}})
	assert.Equal(t, MatchJEDEC, kind)
	require.Len(t, m, 1)
	assert.Equal(t, "GD25Q64C", m[0].Name)

	m, kind = Candidates(reg, common.Identity{JEDEC: [3]byte{0xff, 0xff, 0xff}, ManufacturerID: 0xbf, DeviceID: 0x49})
	assert.Equal(t, MatchLegacy, kind)
	require.Len(t, m, 1)
	assert.Equal(t, "SST25VF010A", m[0].Name)

	m, kind = Candidates(reg, common.Identity{})
	assert.Equal(t, MatchNone, kind)
	assert.Empty(t, m)
}

func newEngine(t *testing.T, sim *flashsim.Chip) *spi.Engine {
	require.NoError(t, sim.Open(context.Background()))
	return spi.New(sim, spi.WithSettleDelay(0), spi.WithPollInterval(time.Millisecond))
}

func TestIdentify(t *testing.T) {
	ctx := context.Background()
	reg := chipdb.Builtin()
	c, ok := reg.Find("W25Q64FV")
	require.True(t, ok)
	e := newEngine(t, flashsim.FromChip(c))

	res, err := Identify(ctx, e, reg)
	require.NoError(t, err)
	assert.Equal(t, MatchJEDEC, res.MatchedBy)
	assert.True(t, res.Known())
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, "W25Q64FV(JV)", res.Chip.Name)
	bound, ok := e.Chip()
	require.True(t, ok)
	assert.Equal(t, res.Chip, bound)
	assert.False(t, e.Addr4())
}

func TestIdentifyLegacy(t *testing.T) {
	ctx := context.Background()
	reg := chipdb.Builtin()
	c, ok := reg.Find("SST25VF010A")
	require.True(t, ok)
	e := newEngine(t, flashsim.FromChip(c, flashsim.WithoutJEDEC()))

	res, err := Identify(ctx, e, reg)
	require.NoError(t, err)
	assert.Equal(t, MatchLegacy, res.MatchedBy)
	assert.Equal(t, "SST25VF010A", res.Chip.Name)
	assert.Equal(t, chipdb.CommandSetAAIByte, res.Chip.CommandSet)
}

func TestIdentifyUnknown(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, flashsim.New(1<<20, 0xc8, 0x6014))

	res, err := Identify(ctx, e, chipdb.Builtin())
	require.NoError(t, err)
	assert.False(t, res.Known())
	assert.Equal(t, UnknownChipName, res.Chip.Name)
	assert.Equal(t, "GigaDevice", res.Chip.Manufacturer)
}

func TestIdentify4Byte(t *testing.T) {
	ctx := context.Background()
	reg := chipdb.Builtin()
	c, ok := reg.Find("MX25L25635F")
	require.True(t, ok)
	sim := flashsim.FromChip(c)
	e := newEngine(t, sim)

	res, err := Identify(ctx, e, reg)
	require.NoError(t, err)
	assert.Equal(t, "MX25L25635F", res.Chip.Name)
	assert.True(t, e.Addr4())
	assert.True(t, sim.Addr4())

	// Identifying again leaves and re-enters 4-byte mode around the rebind.
	res, err = Identify(ctx, e, reg)
	require.NoError(t, err)
	assert.True(t, e.Addr4())
}

func TestIdentifyNotConnected(t *testing.T) {
	e := spi.New(flashsim.New(1<<20, 0xef, 0x4014))
	_, err := Identify(context.Background(), e, chipdb.Builtin())
	assert.Equal(t, common.KindNotConnected, common.KindOf(err))
}
