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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
)

// Fragment is a part of a write that lies within a single page.
type Fragment struct {
	Addr uint32
	// Offset into the source buffer.
	Offset int
	Len    int
}

// SplitPages splits a write of length bytes at addr on pageSize boundaries.
func SplitPages(addr uint32, length, pageSize int) []Fragment {
	var res []Fragment
	for off := 0; off < length; {
		pageOffset := int(addr % uint32(pageSize))
		n := pageSize - pageOffset
		if n > length-off {
			n = length - off
		}
		res = append(res, Fragment{Addr: addr, Offset: off, Len: n})
		addr += uint32(n)
		off += n
	}
	return res
}

// Write programs data at addr. The target range must have been erased.
// Chips with a continuous programming command set are written with WriteAAI.
func (e *Engine) Write(ctx context.Context, addr uint32, data []byte, progress common.ProgressFunc) error {
	const op = "write"
	if err := e.checkBound(op, addr, len(data)); err != nil {
		return err
	}
	if e.commandSet.IsAAI() {
		return e.WriteAAI(ctx, addr, data, progress)
	}
	tr := common.NewTracker(progress, "Writing", len(data))
	for _, f := range SplitPages(addr, len(data), e.chip.PageSize) {
		if err := common.CheckContext(ctx, op); err != nil {
			return err
		}
		if err := e.WritePage(ctx, f.Addr, data[f.Offset:f.Offset+f.Len]); err != nil {
			return errors.Annotatef(err, "page @ 0x%x", f.Addr)
		}
		tr.Add(f.Len)
	}
	return nil
}

// WritePage programs data that must not cross a page boundary.
func (e *Engine) WritePage(ctx context.Context, addr uint32, data []byte) error {
	const op = "write page"
	if err := e.checkBound(op, addr, len(data)); err != nil {
		return err
	}
	ps := uint32(e.chip.PageSize)
	if uint32(len(data)) > ps-addr%ps {
		return common.InputValidationf(op, "%d @ 0x%x crosses a page boundary", len(data), addr)
	}
	if len(data) == 0 {
		return nil
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	cmd := append(e.command(opPageProgram, addr, len(data)), data...)
	if err := e.port.Write(ctx, cmd); err != nil {
		return common.TransferFailure(op, err)
	}
	glog.V(3).Infof("%d @ 0x%x", len(data), addr)
	return e.WaitNotBusy(ctx, pageProgramTimeout)
}

// WriteAAI programs data with the auto address increment command: only the
// first unit carries an address, the chip advances it internally.
func (e *Engine) WriteAAI(ctx context.Context, addr uint32, data []byte, progress common.ProgressFunc) error {
	const op = "write aai"
	opcode, unit := byte(opAAIByteProgram), 1
	if e.commandSet == chipdb.CommandSetAAIWord {
		opcode, unit = opAAIWordProgram, 2
	}
	if len(data)%unit != 0 {
		return common.InputValidationf(op, "word programming needs an even length, got %d", len(data))
	}
	if err := e.checkBound(op, addr, len(data)); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	tr := common.NewTracker(progress, "Writing", len(data))
	err := func() error {
		for off := 0; off < len(data); off += unit {
			if err := common.CheckContext(ctx, op); err != nil {
				return err
			}
			var cmd []byte
			if off == 0 {
				cmd = e.command(opcode, addr, unit)
			} else {
				cmd = make([]byte, 1, 1+unit)
				cmd[0] = opcode
			}
			cmd = append(cmd, data[off:off+unit]...)
			if err := e.port.Write(ctx, cmd); err != nil {
				return common.TransferFailure(op, errors.Annotatef(err, "0x%x", addr+uint32(off)))
			}
			if err := e.WaitNotBusy(ctx, pageProgramTimeout); err != nil {
				return errors.Annotatef(err, "0x%x", addr+uint32(off))
			}
			tr.Add(unit)
		}
		return nil
	}()
	// The sequence must be terminated even if it was cut short.
	if derr := e.port.SendCommand(context.Background(), opWriteDisable); derr != nil {
		if err == nil {
			return common.TransferFailure(op, errors.Annotatef(derr, "write disable"))
		}
		glog.Warningf("write disable failed: %s", derr)
	}
	return err
}
