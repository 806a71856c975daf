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

// Package chipdb holds static descriptions of memory chips and the registry
// that identification matches against.
package chipdb

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Family is the bus protocol a chip speaks.
type Family string

const (
	FamilySPI       Family = "spi"
	FamilyI2C       Family = "i2c"
	FamilyMicroWire Family = "microwire"
)

func ParseFamily(s string) (Family, error) {
	switch f := Family(strings.ToLower(s)); f {
	case FamilySPI, FamilyI2C, FamilyMicroWire:
		return f, nil
	case "":
		return FamilySPI, nil
	}
	return "", errors.NotValidf("protocol family %q", s)
}

// CommandSet selects the programming command variant of a 25-series chip.
type CommandSet string

const (
	// CommandSetStandard uses 0x02 page program.
	CommandSetStandard CommandSet = "standard"
	// CommandSetAAIByte uses continuous programming one byte at a time (0xaf).
	CommandSetAAIByte CommandSet = "aai-byte"
	// CommandSetAAIWord uses continuous programming two bytes at a time (0xad).
	CommandSetAAIWord CommandSet = "aai-word"
)

func (cs CommandSet) IsAAI() bool {
	return cs == CommandSetAAIByte || cs == CommandSetAAIWord
}

const (
	DefaultPageSize   = 256
	DefaultSectorSize = 4096
	DefaultBlockSize  = 65536
	DefaultVoltageMV  = 3300
)

// Chip describes one chip model. Values are immutable once registered.
type Chip struct {
	Name         string     `yaml:"name"`
	Manufacturer string     `yaml:"manufacturer"`
	Family       Family     `yaml:"family,omitempty"`
	CommandSet   CommandSet `yaml:"command_set,omitempty"`
	Size         int        `yaml:"size"`
	PageSize     int        `yaml:"page_size,omitempty"`
	SectorSize   int        `yaml:"sector_size,omitempty"`
	BlockSize    int        `yaml:"block_size,omitempty"`
	// ManufacturerID is the first JEDEC byte.
	ManufacturerID byte `yaml:"manufacturer_id"`
	// DeviceID is JEDEC memory type and capacity, or the legacy
	// single-byte device id for chips without a JEDEC read.
	DeviceID          uint16 `yaml:"device_id"`
	VoltageMV         int    `yaml:"voltage_mv,omitempty"`
	Supports4ByteAddr bool   `yaml:"addr4,omitempty"`
	Dual              bool   `yaml:"dual,omitempty"`
	Quad              bool   `yaml:"quad,omitempty"`
	Description       string `yaml:"description,omitempty"`
}

// withDefaults fills in the fields a catalog entry may leave out.
func (c Chip) withDefaults() Chip {
	if c.Family == "" {
		c.Family = FamilySPI
	}
	if c.CommandSet == "" {
		c.CommandSet = CommandSetStandard
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.SectorSize == 0 {
		c.SectorSize = DefaultSectorSize
	}
	if c.BlockSize == 0 {
		c.BlockSize = DefaultBlockSize
	}
	if c.VoltageMV == 0 {
		c.VoltageMV = DefaultVoltageMV
	}
	return c
}

func (c Chip) Validate() error {
	if c.Name == "" {
		return errors.NotValidf("chip without a name")
	}
	if c.Size < 0 {
		return errors.NotValidf("%s: size %d", c.Name, c.Size)
	}
	if c.PageSize <= 0 || c.PageSize&(c.PageSize-1) != 0 {
		return errors.NotValidf("%s: page size %d", c.Name, c.PageSize)
	}
	if c.SectorSize <= 0 || c.BlockSize <= 0 {
		return errors.NotValidf("%s: erase sizes %d/%d", c.Name, c.SectorSize, c.BlockSize)
	}
	switch c.CommandSet {
	case CommandSetStandard, CommandSetAAIByte, CommandSetAAIWord:
	default:
		return errors.NotValidf("%s: command set %q", c.Name, c.CommandSet)
	}
	if _, err := ParseFamily(string(c.Family)); err != nil {
		return errors.Annotatef(err, "%s", c.Name)
	}
	return nil
}

// Needs4ByteAddr reports whether the chip is larger than the 3-byte address space.
func (c Chip) Needs4ByteAddr() bool {
	return c.Size > 1<<24
}

func (c Chip) String() string {
	return fmt.Sprintf("%s %s (%d KB, id %02X%04X)", c.Manufacturer, c.Name, c.Size/1024, c.ManufacturerID, c.DeviceID)
}
