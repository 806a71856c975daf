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

// Package eeprom holds the I2C and MicroWire protocol variants. Neither is
// implemented: every operation fails with a not-initialized error.
package eeprom

import (
	"context"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
)

type Stub struct {
	family chipdb.Family
	port   common.Port
}

func NewI2C(port common.Port) *Stub {
	return &Stub{family: chipdb.FamilyI2C, port: port}
}

func NewMicroWire(port common.Port) *Stub {
	return &Stub{family: chipdb.FamilyMicroWire, port: port}
}

func (s *Stub) Family() chipdb.Family {
	return s.family
}

func (s *Stub) unsupported(op string) error {
	return common.NotInitializedf(op, "%s protocol is not implemented", s.family)
}

func (s *Stub) EnterProgrammingMode(ctx context.Context) error {
	return s.unsupported("enter programming mode")
}

func (s *Stub) ExitProgrammingMode(ctx context.Context) error {
	return s.unsupported("exit programming mode")
}

func (s *Stub) InProgrammingMode() bool { return false }

func (s *Stub) ReadID(ctx context.Context) (common.Identity, error) {
	return common.Identity{}, s.unsupported("read id")
}

func (s *Stub) Bind(c chipdb.Chip) error {
	return s.unsupported("bind")
}

func (s *Stub) Chip() (chipdb.Chip, bool) { return chipdb.Chip{}, false }

func (s *Stub) Addr4() bool { return false }

func (s *Stub) Enter4ByteAddressMode(ctx context.Context) error {
	return s.unsupported("enter 4-byte mode")
}

func (s *Stub) Exit4ByteAddressMode(ctx context.Context) error {
	return s.unsupported("exit 4-byte mode")
}

func (s *Stub) Read(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) ([]byte, error) {
	return nil, s.unsupported("read")
}

func (s *Stub) Write(ctx context.Context, addr uint32, data []byte, progress common.ProgressFunc) error {
	return s.unsupported("write")
}

func (s *Stub) EraseChip(ctx context.Context) error {
	return s.unsupported("erase chip")
}

func (s *Stub) EraseRange(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) error {
	return s.unsupported("erase range")
}

func (s *Stub) Verify(ctx context.Context, addr uint32, expected []byte, progress common.ProgressFunc) error {
	return s.unsupported("verify")
}

func (s *Stub) IsBlank(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) error {
	return s.unsupported("blank check")
}

func (s *Stub) ReadStatusRegister(ctx context.Context, idx int) (byte, error) {
	return 0, s.unsupported("read status")
}

func (s *Stub) BlockProtection(ctx context.Context) (byte, error) {
	return 0, s.unsupported("read protection")
}

func (s *Stub) SetBlockProtection(ctx context.Context, bp byte) error {
	return s.unsupported("set protection")
}

func (s *Stub) ClearBlockProtection(ctx context.Context) error {
	return s.unsupported("clear protection")
}
