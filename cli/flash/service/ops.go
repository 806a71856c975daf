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
	"fmt"

	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
)

// wholeChip resolves a zero length to the rest of the chip.
func (s *Service) wholeChip(op string, addr uint32, length int) (int, error) {
	if length > 0 {
		if _, err := s.requireChip(op); err != nil {
			return 0, err
		}
		return length, nil
	}
	chip, err := s.requireSize(op)
	if err != nil {
		return 0, err
	}
	if int(addr) >= chip.Size {
		return 0, common.InputValidationf(op, "address 0x%x is past the end of %s", addr, chip.Name)
	}
	return chip.Size - int(addr), nil
}

// Read reads length bytes at addr; 0 means up to the end of the chip.
func (s *Service) Read(ctx context.Context, addr uint32, length int) common.Outcome[[]byte] {
	const op = "read"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[[]byte](err, "")
	}
	defer done()
	length, err = s.wholeChip(op, addr, length)
	if err != nil {
		return common.Failed[[]byte](err, "")
	}
	data, err := s.proto.Read(ctx, addr, length, s.progress)
	if err != nil {
		return common.Failed[[]byte](errors.Annotatef(err, "read failed"), "")
	}
	return common.Succeeded(data, fmt.Sprintf("Read %d bytes @ 0x%x", len(data), addr))
}

// BlankCheck checks that length bytes at addr are erased; 0 means up to the
// end of the chip.
func (s *Service) BlankCheck(ctx context.Context, addr uint32, length int) common.Outcome[struct{}] {
	const op = "blank check"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[struct{}](err, "")
	}
	defer done()
	length, err = s.wholeChip(op, addr, length)
	if err != nil {
		return common.Failed[struct{}](err, "")
	}
	if err := s.proto.IsBlank(ctx, addr, length, s.progress); err != nil {
		if me, ok := common.Mismatch(err); ok {
			return common.Failed[struct{}](err, fmt.Sprintf("Not blank: byte 0x%02x at 0x%x", me.Actual, me.Offset))
		}
		return common.Failed[struct{}](errors.Annotatef(err, "blank check failed"), "")
	}
	return common.Succeeded(struct{}{}, fmt.Sprintf("%d bytes @ 0x%x are blank", length, addr))
}

// Erase erases the sectors covering length bytes at addr; 0 erases the
// whole chip.
func (s *Service) Erase(ctx context.Context, addr uint32, length int) common.Outcome[struct{}] {
	const op = "erase"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[struct{}](err, "")
	}
	defer done()
	if _, err := s.requireChip(op); err != nil {
		return common.Failed[struct{}](err, "")
	}
	if length <= 0 {
		if addr != 0 {
			return common.Failed[struct{}](common.InputValidationf(op, "chip erase starts at 0, not 0x%x", addr), "")
		}
		if err := s.proto.EraseChip(ctx); err != nil {
			return common.Failed[struct{}](errors.Annotatef(err, "chip erase failed"), "")
		}
		return common.Succeeded(struct{}{}, "Chip erased")
	}
	if err := s.proto.EraseRange(ctx, addr, length, s.progress); err != nil {
		return common.Failed[struct{}](errors.Annotatef(err, "erase failed"), "")
	}
	return common.Succeeded(struct{}{}, fmt.Sprintf("Erased %d bytes @ 0x%x", length, addr))
}

// Protect sets or clears all block protection bits and returns the new BP value.
func (s *Service) Protect(ctx context.Context, on bool) common.Outcome[byte] {
	const op = "protect"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[byte](err, "")
	}
	defer done()
	if _, err := s.requireChip(op); err != nil {
		return common.Failed[byte](err, "")
	}
	if on {
		err = s.proto.SetBlockProtection(ctx, spi.BlockProtectAll)
	} else {
		err = s.proto.ClearBlockProtection(ctx)
	}
	if err != nil {
		return common.Failed[byte](errors.Annotatef(err, "failed to update protection"), "")
	}
	bp, err := s.proto.BlockProtection(ctx)
	if err != nil {
		return common.Failed[byte](errors.Annotatef(err, "failed to read protection"), "")
	}
	if (on && bp == 0) || (!on && bp != 0) {
		return common.Failed[byte](common.Unexpectedf(op, "BP bits are 0x%x after update, status register may be locked", bp), "")
	}
	return common.Succeeded(bp, fmt.Sprintf("Block protection bits: 0x%x", bp))
}

type StatusReport struct {
	SR           [3]byte
	BlockProtect byte
	Busy         bool
	WriteEnabled bool
}

func (r StatusReport) String() string {
	return fmt.Sprintf("SR1 0x%02x SR2 0x%02x SR3 0x%02x (BP 0x%x, busy %t, WEL %t)",
		r.SR[0], r.SR[1], r.SR[2], r.BlockProtect, r.Busy, r.WriteEnabled)
}

func (s *Service) Status(ctx context.Context) common.Outcome[StatusReport] {
	const op = "status"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[StatusReport](err, "")
	}
	defer done()
	if err := s.requireProtocol(op); err != nil {
		return common.Failed[StatusReport](err, "")
	}
	var r StatusReport
	for i := range r.SR {
		v, err := s.proto.ReadStatusRegister(ctx, i+1)
		if err != nil {
			return common.Failed[StatusReport](errors.Annotatef(err, "SR%d", i+1), "")
		}
		r.SR[i] = v
	}
	r.BlockProtect = spi.BlockProtectBits(r.SR[0])
	r.Busy = spi.StatusBusy(r.SR[0])
	r.WriteEnabled = spi.StatusWriteEnabled(r.SR[0])
	return common.Succeeded(r, r.String())
}
