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
)

var (
	readStatusOps  = [...]byte{opReadStatus1, opReadStatus2, opReadStatus3}
	writeStatusOps = [...]byte{opWriteStatus1, opWriteStatus2, opWriteStatus3}
)

// ReadStatusRegister reads status register idx (1 to 3).
func (e *Engine) ReadStatusRegister(ctx context.Context, idx int) (byte, error) {
	const op = "read status"
	if idx < 1 || idx > len(readStatusOps) {
		return 0, common.InputValidationf(op, "no status register %d", idx)
	}
	if err := e.checkConnected(op); err != nil {
		return 0, err
	}
	b, err := e.port.Transfer(ctx, []byte{readStatusOps[idx-1]}, 1)
	if err != nil {
		return 0, common.TransferFailure(op, err)
	}
	if len(b) != 1 {
		return 0, common.TransferFailure(op, errors.Errorf("got %d bytes", len(b)))
	}
	return b[0], nil
}

// WriteStatusRegister writes status register idx (1 to 3) and waits for the
// write cycle to complete.
func (e *Engine) WriteStatusRegister(ctx context.Context, idx int, v byte) error {
	const op = "write status"
	if idx < 1 || idx > len(writeStatusOps) {
		return common.InputValidationf(op, "no status register %d", idx)
	}
	if err := e.checkReady(op); err != nil {
		return err
	}
	// SST parts only accept a status write after EWSR.
	if err := e.port.SendCommand(ctx, opEnableWriteStatus); err != nil {
		return common.TransferFailure(op, err)
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	if err := e.port.Write(ctx, []byte{writeStatusOps[idx-1], v}); err != nil {
		return common.TransferFailure(op, err)
	}
	glog.V(2).Infof("SR%d <- 0x%02x", idx, v)
	return e.WaitNotBusy(ctx, writeStatusTimeout)
}

// WaitNotBusy polls status register 1 until the BUSY bit clears.
func (e *Engine) WaitNotBusy(ctx context.Context, timeout time.Duration) error {
	const op = "wait not busy"
	start := time.Now()
	for {
		sr, err := e.ReadStatusRegister(ctx, 1)
		if err != nil {
			return err
		}
		if sr&statusBusy == 0 {
			return nil
		}
		if elapsed := time.Since(start); elapsed > timeout {
			return common.Timeoutf(op, "still busy after %s (SR1 0x%02x)", elapsed.Round(time.Millisecond), sr)
		}
		if err := sleep(ctx, op, e.pollInterval); err != nil {
			return err
		}
	}
}

// BlockProtection returns the BP bits of status register 1, shifted down.
func (e *Engine) BlockProtection(ctx context.Context) (byte, error) {
	sr, err := e.ReadStatusRegister(ctx, 1)
	if err != nil {
		return 0, err
	}
	return BlockProtectBits(sr), nil
}

// BlockProtectBits extracts BP0..BP3 from a status register 1 value.
func BlockProtectBits(sr1 byte) byte {
	return (sr1 & BlockProtectMask) >> blockProtectShift
}

// StatusBusy reports the BUSY bit of a status register 1 value.
func StatusBusy(sr1 byte) bool {
	return sr1&statusBusy != 0
}

// StatusWriteEnabled reports the WEL bit of a status register 1 value.
func StatusWriteEnabled(sr1 byte) bool {
	return sr1&statusWEL != 0
}

// SetBlockProtection replaces the BP bits with bp, keeping the other bits of
// status register 1.
func (e *Engine) SetBlockProtection(ctx context.Context, bp byte) error {
	sr, err := e.ReadStatusRegister(ctx, 1)
	if err != nil {
		return err
	}
	nsr := sr&^BlockProtectMask | (bp<<blockProtectShift)&BlockProtectMask
	// BUSY and WEL are read-only.
	nsr &^= statusBusy | statusWEL
	return e.WriteStatusRegister(ctx, 1, nsr)
}

func (e *Engine) ClearBlockProtection(ctx context.Context) error {
	return e.SetBlockProtection(ctx, 0)
}
