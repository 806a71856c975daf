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

// Package spi implements the 25-series SPI NOR flash command set on top of a
// byte-level adapter port.
package spi

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
)

type Option func(*Engine)

// WithPollInterval sets how often the status register is polled while the chip is busy.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithSettleDelay sets the pause between SPI init and the first command.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) { e.settleDelay = d }
}

// Engine drives one chip through one port. It is not safe for concurrent use.
type Engine struct {
	port common.Port

	commandSet chipdb.CommandSet
	chip       *chipdb.Chip
	addr4      bool
	progMode   bool

	pollInterval time.Duration
	settleDelay  time.Duration
}

func New(port common.Port, opts ...Option) *Engine {
	e := &Engine{
		port:         port,
		commandSet:   chipdb.CommandSetStandard,
		pollInterval: defaultPollInterval,
		settleDelay:  defaultSettleDelay,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Family() chipdb.Family {
	return chipdb.FamilySPI
}

func (e *Engine) checkConnected(op string) error {
	if e.port == nil || !e.port.IsOpen() {
		return common.NotConnectedf(op, "adapter is not open")
	}
	return nil
}

func (e *Engine) checkReady(op string) error {
	if err := e.checkConnected(op); err != nil {
		return err
	}
	if !e.progMode {
		return common.NotInitializedf(op, "not in programming mode")
	}
	return nil
}

// checkBound additionally requires a chip and checks that the range fits it.
func (e *Engine) checkBound(op string, addr uint32, length int) error {
	if err := e.checkReady(op); err != nil {
		return err
	}
	if e.chip == nil {
		return common.NotInitializedf(op, "no chip bound")
	}
	if length < 0 {
		return common.InputValidationf(op, "negative length %d", length)
	}
	end := uint64(addr) + uint64(length)
	if e.chip.Size > 0 && end > uint64(e.chip.Size) {
		return common.InputValidationf(op, "range 0x%x+%d exceeds chip size %d", addr, length, e.chip.Size)
	}
	if !e.addr4 && end > addr3ByteLimit {
		return common.InputValidationf(op, "range 0x%x+%d requires 4-byte addressing", addr, length)
	}
	return nil
}

// EnterProgrammingMode initializes the bus and wakes the chip up.
func (e *Engine) EnterProgrammingMode(ctx context.Context) error {
	const op = "enter programming mode"
	if err := e.checkConnected(op); err != nil {
		return err
	}
	if err := e.port.SPIInit(ctx); err != nil {
		return common.TransferFailure(op, err)
	}
	if err := sleep(ctx, op, e.settleDelay); err != nil {
		return err
	}
	// Not every chip implements deep power-down.
	if err := e.port.SendCommand(ctx, opReleasePowerDown); err != nil {
		glog.Warningf("release power-down failed: %s", err)
	}
	e.progMode = true
	glog.V(1).Infof("programming mode on")
	return nil
}

func (e *Engine) ExitProgrammingMode(ctx context.Context) error {
	const op = "exit programming mode"
	if err := e.checkConnected(op); err != nil {
		return err
	}
	var err4 error
	if e.addr4 {
		err4 = e.Exit4ByteAddressMode(ctx)
	}
	if err := e.port.SPIDeinit(ctx); err != nil {
		return common.TransferFailure(op, err)
	}
	e.progMode = false
	glog.V(1).Infof("programming mode off")
	return errors.Trace(err4)
}

func (e *Engine) InProgrammingMode() bool {
	return e.progMode
}

// Bind makes c the chip all subsequent operations are checked against.
func (e *Engine) Bind(c chipdb.Chip) error {
	if e.addr4 {
		return common.InputValidationf("bind", "cannot rebind %s while 4-byte addressing is active", c.Name)
	}
	e.chip = &c
	e.commandSet = c.CommandSet
	if e.commandSet == "" {
		e.commandSet = chipdb.CommandSetStandard
	}
	glog.V(1).Infof("bound %s", c)
	return nil
}

// Chip returns the bound chip, if any.
func (e *Engine) Chip() (chipdb.Chip, bool) {
	if e.chip == nil {
		return chipdb.Chip{}, false
	}
	return *e.chip, true
}

// ReadID reads every identification code the chip may answer to. Individual
// read failures leave the corresponding field zero.
func (e *Engine) ReadID(ctx context.Context) (common.Identity, error) {
	var id common.Identity
	if err := e.checkConnected("read id"); err != nil {
		return id, err
	}
	if b, err := e.port.Transfer(ctx, []byte{opReadJEDECID}, 3); err == nil {
		copy(id.JEDEC[:], b)
	} else {
		glog.Warningf("JEDEC id read failed: %s", err)
	}
	if b, err := e.port.Transfer(ctx, []byte{opReadMfrDeviceID, 0, 0, 0}, 2); err == nil && len(b) == 2 {
		id.ManufacturerID, id.DeviceID = b[0], b[1]
	} else if err != nil {
		glog.Warningf("manufacturer/device id read failed: %s", err)
	}
	if b, err := e.port.Transfer(ctx, []byte{opReleasePowerDown, common.DummyByte, common.DummyByte, common.DummyByte}, 1); err == nil && len(b) == 1 {
		id.Signature = b[0]
	} else if err != nil {
		glog.Warningf("signature read failed: %s", err)
	}
	// Read through the status register 3 opcode, kept as is.
	if b, err := e.port.Transfer(ctx, []byte{opReadUniqueIDQuirky}, 2); err == nil {
		copy(id.UniqueID[:], b)
	} else {
		glog.Warningf("unique id read failed: %s", err)
	}
	glog.V(1).Infof("id: %s", id)
	return id, nil
}

func (e *Engine) Addr4() bool {
	return e.addr4
}

func (e *Engine) Enter4ByteAddressMode(ctx context.Context) error {
	const op = "enter 4-byte mode"
	if err := e.checkReady(op); err != nil {
		return err
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	if err := e.port.SendCommand(ctx, opEnter4ByteAddr); err != nil {
		return common.TransferFailure(op, err)
	}
	// Some vendors only switch the extended address register.
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	if err := e.port.Write(ctx, []byte{opWriteExtAddrReg, 0}); err != nil {
		return common.TransferFailure(op, err)
	}
	e.addr4 = true
	glog.V(1).Infof("4-byte addressing on")
	return nil
}

func (e *Engine) Exit4ByteAddressMode(ctx context.Context) error {
	const op = "exit 4-byte mode"
	if err := e.checkConnected(op); err != nil {
		return err
	}
	if err := e.writeEnable(ctx, op); err != nil {
		return err
	}
	if err := e.port.SendCommand(ctx, opExit4ByteAddr); err != nil {
		return common.TransferFailure(op, err)
	}
	e.addr4 = false
	glog.V(1).Infof("4-byte addressing off")
	return nil
}

// command builds opcode + address in the current addressing mode.
func (e *Engine) command(opcode byte, addr uint32, extra int) []byte {
	n := 3
	if e.addr4 {
		n = 4
	}
	cmd := make([]byte, 1+n, 1+n+extra)
	cmd[0] = opcode
	for i := 0; i < n; i++ {
		cmd[n-i] = byte(addr >> (8 * uint(i)))
	}
	return cmd
}

func (e *Engine) writeEnable(ctx context.Context, op string) error {
	return common.TransferFailure(op, errors.Annotatef(e.port.SendCommand(ctx, opWriteEnable), "write enable"))
}

func sleep(ctx context.Context, op string, d time.Duration) error {
	if d <= 0 {
		return common.CheckContext(ctx, op)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return common.Cancelled(op, ctx.Err())
	case <-t.C:
		return nil
	}
}
