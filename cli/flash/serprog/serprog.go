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

// Package serprog talks the flashrom serial programmer protocol, spoken by
// a number of microcontroller-based SPI programmers.
package serprog

import (
	"context"
	"encoding/binary"
	"io"
	"time"

	"github.com/cesanta/go-serial/serial"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	cmdQIface    = 0x01
	cmdQPgmName  = 0x03
	cmdQBusType  = 0x05
	cmdSyncNOP   = 0x10
	cmdSBusType  = 0x12
	cmdOSPIOp    = 0x13
	cmdSSPIFreq  = 0x14
	cmdSPinState = 0x15

	ack = 0x06
	nak = 0x15

	busSPI = 0x08

	ifaceVersion = 1

	maxOpLen = 1<<24 - 1

	interCharacterTimeout = 500 * time.Millisecond
	syncAttempts          = 8
)

// Adapter is a serprog programmer on a serial port. It is not safe for
// concurrent use.
type Adapter struct {
	portName string
	baudRate uint
	spiFreq  uint32

	conn io.ReadWriteCloser
	name string
}

// New returns an adapter for the given port. spiFreq is in Hz, 0 keeps
// the programmer default.
func New(portName string, baudRate uint, spiFreq uint32) *Adapter {
	return &Adapter{portName: portName, baudRate: baudRate, spiFreq: spiFreq}
}

func (a *Adapter) Open(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	glog.Infof("Opening %s...", a.portName)
	s, err := serial.Open(serial.OpenOptions{
		PortName:              a.portName,
		BaudRate:              a.baudRate,
		DataBits:              8,
		ParityMode:            serial.PARITY_NONE,
		StopBits:              1,
		InterCharacterTimeout: uint(interCharacterTimeout / time.Millisecond),
		MinimumReadSize:       0,
	})
	if err != nil {
		return errors.Annotatef(err, "failed to open %s", a.portName)
	}
	if err := a.attach(ctx, s); err != nil {
		s.Close()
		return errors.Trace(err)
	}
	return nil
}

// attach synchronizes with the programmer on conn and checks it is usable.
func (a *Adapter) attach(ctx context.Context, conn io.ReadWriteCloser) error {
	a.conn = conn
	if err := a.sync(ctx); err != nil {
		a.conn = nil
		return errors.Trace(err)
	}
	var v [2]byte
	if err := a.command(ctx, cmdQIface, nil, v[:]); err != nil {
		a.conn = nil
		return errors.Annotatef(err, "interface version")
	}
	if iv := binary.LittleEndian.Uint16(v[:]); iv != ifaceVersion {
		a.conn = nil
		return errors.Errorf("unsupported serprog interface version %d", iv)
	}
	var bus [1]byte
	if err := a.command(ctx, cmdQBusType, nil, bus[:]); err != nil {
		a.conn = nil
		return errors.Annotatef(err, "bus types")
	}
	if bus[0]&busSPI == 0 {
		a.conn = nil
		return errors.Errorf("programmer does not support SPI (bus types 0x%02x)", bus[0])
	}
	var name [16]byte
	if err := a.command(ctx, cmdQPgmName, nil, name[:]); err == nil {
		a.name = cString(name[:])
	}
	glog.Infof("serprog programmer %q on %s", a.name, a.portName)
	return nil
}

func (a *Adapter) Close(ctx context.Context) error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return errors.Trace(err)
}

func (a *Adapter) IsOpen() bool {
	return a.conn != nil
}

// Name returns the programmer name reported by the device.
func (a *Adapter) Name() string {
	return a.name
}

func (a *Adapter) SPIInit(ctx context.Context) error {
	if err := a.command(ctx, cmdSBusType, []byte{busSPI}, nil); err != nil {
		return errors.Annotatef(err, "set bus type")
	}
	if a.spiFreq > 0 {
		var p, actual [4]byte
		binary.LittleEndian.PutUint32(p[:], a.spiFreq)
		if err := a.command(ctx, cmdSSPIFreq, p[:], actual[:]); err != nil {
			return errors.Annotatef(err, "set SPI frequency")
		}
		glog.V(1).Infof("SPI frequency %d Hz", binary.LittleEndian.Uint32(actual[:]))
	}
	return errors.Annotatef(a.command(ctx, cmdSPinState, []byte{1}, nil), "enable outputs")
}

func (a *Adapter) SPIDeinit(ctx context.Context) error {
	return errors.Annotatef(a.command(ctx, cmdSPinState, []byte{0}, nil), "disable outputs")
}

func (a *Adapter) SendCommand(ctx context.Context, cmd byte) error {
	_, err := a.Transfer(ctx, []byte{cmd}, 0)
	return err
}

func (a *Adapter) Write(ctx context.Context, data []byte) error {
	_, err := a.Transfer(ctx, data, 0)
	return err
}

func (a *Adapter) Read(ctx context.Context, n int) ([]byte, error) {
	return a.Transfer(ctx, nil, n)
}

// Transfer is one O_SPIOP: CS is held for the whole write-then-read.
func (a *Adapter) Transfer(ctx context.Context, w []byte, n int) ([]byte, error) {
	if len(w) > maxOpLen || n > maxOpLen {
		return nil, errors.NotValidf("SPI op %d/%d", len(w), n)
	}
	params := make([]byte, 6, 6+len(w))
	putUint24(params[0:3], uint32(len(w)))
	putUint24(params[3:6], uint32(n))
	params = append(params, w...)
	res := make([]byte, n)
	if err := a.command(ctx, cmdOSPIOp, params, res); err != nil {
		return nil, errors.Trace(err)
	}
	return res, nil
}

// sync flushes any partial command out of the programmer. SYNCNOP is
// answered with NAK followed by ACK.
func (a *Adapter) sync(ctx context.Context) error {
	var b [1]byte
	for i := 0; i < syncAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		if _, err := a.conn.Write([]byte{cmdSyncNOP}); err != nil {
			return errors.Annotatef(err, "write")
		}
		naked := false
		for {
			if _, err := io.ReadFull(a.conn, b[:]); err != nil {
				break
			}
			if b[0] == nak {
				naked = true
			} else if b[0] == ack && naked {
				glog.V(1).Infof("serprog in sync after %d attempt(s)", i+1)
				return nil
			}
		}
	}
	return errors.Errorf("no response from serprog programmer")
}

// command sends cmd with params and reads len(resp) bytes after the ACK.
func (a *Adapter) command(ctx context.Context, cmd byte, params, resp []byte) error {
	if a.conn == nil {
		return errors.New("serprog port is not open")
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	frame := make([]byte, 0, 1+len(params))
	frame = append(frame, cmd)
	frame = append(frame, params...)
	glog.V(4).Infof("serprog <- %x", frame)
	if _, err := a.conn.Write(frame); err != nil {
		return errors.Annotatef(err, "write")
	}
	var st [1]byte
	if _, err := io.ReadFull(a.conn, st[:]); err != nil {
		return errors.Annotatef(err, "0x%02x: no response", cmd)
	}
	switch st[0] {
	case ack:
	case nak:
		return errors.Errorf("0x%02x: NAK", cmd)
	default:
		return errors.Errorf("0x%02x: unexpected response 0x%02x", cmd, st[0])
	}
	if len(resp) > 0 {
		if _, err := io.ReadFull(a.conn, resp); err != nil {
			return errors.Annotatef(err, "0x%02x: short response", cmd)
		}
	}
	glog.V(4).Infof("serprog -> %x", resp)
	return nil
}

func putUint24(b []byte, v uint32) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
