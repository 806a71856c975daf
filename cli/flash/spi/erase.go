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
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/common/multierror"
)

// EraseStep is one erase command issued by EraseRange.
type EraseStep struct {
	Addr uint32
	Size int
}

// PlanErase returns the erase commands covering length bytes from start:
// a 64K block when aligned and at least 64K remain, else a 32K block under the
// same conditions, else a 4K sector.
func PlanErase(start uint32, length int) []EraseStep {
	var res []EraseStep
	addr, remaining := start, length
	for remaining > 0 {
		size := SectorSize
		switch {
		case remaining >= Block64Size && addr%Block64Size == 0:
			size = Block64Size
		case remaining >= Block32Size && addr%Block32Size == 0:
			size = Block32Size
		}
		res = append(res, EraseStep{Addr: addr, Size: size})
		addr += uint32(size)
		remaining -= size
	}
	return res
}

// EraseChip erases the whole chip. Vendors disagree on the opcode, so all
// three known ones are sent; the call fails only if none could be sent.
func (e *Engine) EraseChip(ctx context.Context) error {
	const op = "erase chip"
	if err := e.checkBound(op, 0, 0); err != nil {
		return err
	}
	var errs error
	sent := 0
	for _, opcode := range []byte{opChipErase, opChipEraseAlt, opChipEraseAlt2} {
		if err := e.writeEnable(ctx, op); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if err := e.port.SendCommand(ctx, opcode); err != nil {
			errs = multierror.Append(errs, errors.Annotatef(err, "opcode 0x%02x", opcode))
			continue
		}
		sent++
	}
	if sent == 0 {
		return common.TransferFailure(op, errs)
	}
	if errs != nil {
		glog.Warningf("%s", errs)
	}
	return e.WaitNotBusy(ctx, chipEraseTimeout)
}

func (e *Engine) EraseSector(ctx context.Context, addr uint32) error {
	return e.eraseUnit(ctx, "erase sector", opSectorErase, addr, SectorSize, sectorEraseTimeout)
}

func (e *Engine) EraseBlock32(ctx context.Context, addr uint32) error {
	return e.eraseUnit(ctx, "erase block32", opBlockErase32, addr, Block32Size, block32EraseTimeout)
}

func (e *Engine) EraseBlock64(ctx context.Context, addr uint32) error {
	return e.eraseUnit(ctx, "erase block64", opBlockErase64, addr, Block64Size, block64EraseTimeout)
}

func (e *Engine) eraseUnit(ctx context.Context, op string, opcode byte, addr uint32, size int, timeout time.Duration) error {
	if addr%uint32(size) != 0 {
		return common.InputValidationf(op, "address 0x%x is not %d-aligned", addr, size)
	}
	if err := e.checkBound(op, addr, size); err != nil {
		return err
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	if err := e.port.Write(ctx, e.command(opcode, addr, 0)); err != nil {
		return common.TransferFailure(op, err)
	}
	glog.V(2).Infof("%s @ 0x%x", op, addr)
	return e.WaitNotBusy(ctx, timeout)
}

// EraseRange erases every sector touched by [start, start+length).
func (e *Engine) EraseRange(ctx context.Context, start uint32, length int, progress common.ProgressFunc) error {
	const op = "erase range"
	if length <= 0 {
		return common.InputValidationf(op, "invalid length %d", length)
	}
	end := uint64(start) + uint64(length)
	alignedStart := start &^ (SectorSize - 1)
	alignedEnd := (end + SectorSize - 1) &^ (SectorSize - 1)
	if alignedStart != start || alignedEnd != end {
		glog.V(1).Infof("erase range 0x%x-0x%x widened to 0x%x-0x%x", start, end, alignedStart, alignedEnd)
	}
	alignedLen := int(alignedEnd - uint64(alignedStart))
	if err := e.checkBound(op, alignedStart, alignedLen); err != nil {
		return err
	}
	tr := common.NewTracker(progress, "Erasing", alignedLen)
	for _, s := range PlanErase(alignedStart, alignedLen) {
		if err := common.CheckContext(ctx, op); err != nil {
			return err
		}
		var err error
		switch s.Size {
		case Block64Size:
			err = e.EraseBlock64(ctx, s.Addr)
		case Block32Size:
			err = e.EraseBlock32(ctx, s.Addr)
		default:
			err = e.EraseSector(ctx, s.Addr)
		}
		if err != nil {
			return errors.Trace(err)
		}
		tr.Add(s.Size)
	}
	return nil
}
