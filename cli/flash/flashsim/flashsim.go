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

// Package flashsim is an in-memory 25-series SPI flash chip behind the
// common.Port interface.
package flashsim

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
)

var _ common.Port = (*Chip)(nil)

const (
	srBusy = 0x01
	srWEL  = 0x02
	srBP   = 0x3c
	srAAI  = 0x40
)

// Transaction is one chip-select cycle as seen by the chip.
type Transaction struct {
	Out []byte
	In  int
}

// Opcode returns the first byte sent, or 0 for an empty transaction.
func (t Transaction) Opcode() byte {
	if len(t.Out) == 0 {
		return 0
	}
	return t.Out[0]
}

// Chip emulates a flash chip. All methods are safe for concurrent use.
type Chip struct {
	mu sync.Mutex

	mem      []byte
	pageSize int
	jedec    [3]byte
	rems     [2]byte
	sig      byte
	noJEDEC  bool
	sr       [3]byte
	ewsr     bool
	addr4    bool
	ear      byte
	aai      bool
	aaiAddr  uint32
	busyFor  int
	busyLeft int
	open     bool
	spiOn    bool
	log      []Transaction

	// Fault, if set, is consulted before every transaction; a non-nil result
	// fails the transaction without the chip seeing it.
	Fault func(t Transaction) error
	// Corrupt, if set, may modify data read from addr before it is returned.
	Corrupt func(addr uint32, data []byte)
}

type Option func(*Chip)

// WithBusyPolls makes the chip report BUSY for n status reads after every
// program, erase or status write.
func WithBusyPolls(n int) Option {
	return func(c *Chip) { c.busyFor = n }
}

// WithoutJEDEC makes the chip ignore the JEDEC id command, like old SST parts.
func WithoutJEDEC() Option {
	return func(c *Chip) { c.noJEDEC = true }
}

func WithPageSize(n int) Option {
	return func(c *Chip) { c.pageSize = n }
}

// WithStatus sets the initial status registers.
func WithStatus(sr1, sr2, sr3 byte) Option {
	return func(c *Chip) { c.sr = [3]byte{sr1 &^ (srBusy | srWEL), sr2, sr3} }
}

// New returns an erased chip of the given size answering to the given ids.
func New(size int, mfr byte, dev uint16, opts ...Option) *Chip {
	c := &Chip{
		mem:      make([]byte, size),
		pageSize: chipdb.DefaultPageSize,
		jedec:    [3]byte{mfr, byte(dev >> 8), byte(dev)},
		rems:     [2]byte{mfr, byte(dev) - 1},
		sig:      byte(dev) - 1,
	}
	for i := range c.mem {
		c.mem[i] = 0xff
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FromChip builds a simulated part matching a catalog entry.
func FromChip(cd chipdb.Chip, opts ...Option) *Chip {
	size := cd.Size
	if size <= 0 {
		size = 1 << 20
	}
	if cd.PageSize > 0 {
		opts = append([]Option{WithPageSize(cd.PageSize)}, opts...)
	}
	c := New(size, cd.ManufacturerID, cd.DeviceID, opts...)
	if cd.DeviceID <= 0xff {
		// Legacy parts only answer the manufacturer/device id read.
		c.rems = [2]byte{cd.ManufacturerID, byte(cd.DeviceID)}
	}
	return c
}

func (c *Chip) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

func (c *Chip) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.spiOn = false
	return nil
}

func (c *Chip) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *Chip) SPIInit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return errors.New("sim: port closed")
	}
	c.spiOn = true
	return nil
}

func (c *Chip) SPIDeinit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spiOn = false
	return nil
}

func (c *Chip) SendCommand(ctx context.Context, cmd byte) error {
	_, err := c.transact(ctx, []byte{cmd}, 0)
	return err
}

func (c *Chip) Write(ctx context.Context, data []byte) error {
	_, err := c.transact(ctx, data, 0)
	return err
}

func (c *Chip) Read(ctx context.Context, n int) ([]byte, error) {
	return c.transact(ctx, nil, n)
}

func (c *Chip) Transfer(ctx context.Context, w []byte, n int) ([]byte, error) {
	return c.transact(ctx, w, n)
}

func (c *Chip) transact(ctx context.Context, w []byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil, errors.New("sim: port closed")
	}
	if !c.spiOn {
		return nil, errors.New("sim: SPI not initialized")
	}
	t := Transaction{Out: append([]byte(nil), w...), In: n}
	if c.Fault != nil {
		if err := c.Fault(t); err != nil {
			return nil, errors.Annotatef(err, "sim: 0x%02x", t.Opcode())
		}
	}
	c.log = append(c.log, t)
	resp := make([]byte, n)
	for i := range resp {
		resp[i] = 0xff
	}
	if len(w) > 0 {
		c.exec(w[0], w[1:], resp)
	}
	glog.V(4).Infof("sim: %x -> %x", w, resp)
	return resp, nil
}

// Log returns the transactions seen so far.
func (c *Chip) Log() []Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transaction(nil), c.log...)
}

// Opcodes returns the first byte of every logged transaction.
func (c *Chip) Opcodes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	res := make([]byte, 0, len(c.log))
	for _, t := range c.log {
		res = append(res, t.Opcode())
	}
	return res
}

func (c *Chip) ResetLog() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = nil
}

// Memory returns a copy of the chip contents.
func (c *Chip) Memory() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.mem...)
}

// Fill sets the contents at addr directly, bypassing program semantics.
func (c *Chip) Fill(addr uint32, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copy(c.mem[addr:], data)
}

func (c *Chip) Status(idx int) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sr[idx-1]
}

func (c *Chip) Addr4() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr4
}

func (c *Chip) Size() int {
	return len(c.mem)
}
