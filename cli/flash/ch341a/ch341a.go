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

// Package ch341a drives the CH341A USB to SPI bridge found on most cheap
// 25-series programmers.
package ch341a

import (
	"context"
	"io"

	"github.com/golang/glog"
	"github.com/google/gousb"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/common"
)

const (
	VID gousb.ID = 0x1a86
	PID gousb.ID = 0x5512

	// Bulk endpoint number, 0x82 in and 0x02 out.
	endpoint = 2

	packetLen = 32

	cmdSPIStream = 0xa8
	cmdI2CStream = 0xaa
	cmdUIOStream = 0xab

	i2cSTMSet = 0x60
	i2cSTMEnd = 0x00

	uioSTMOut = 0x80
	uioSTMDir = 0x40
	uioSTMEnd = 0x20

	// D0 is CS, D3 is SCK, D5 is MOSI. D2 and D4 are kept high.
	pinsCSLow  = 0x36
	pinsCSHigh = 0x37
	pinsOutput = 0x3f
)

// Speed selects the stream clock. Values above 3 are invalid.
type Speed int

const (
	Speed20K Speed = iota
	Speed100K
	Speed400K
	Speed750K
)

// Adapter is a CH341A in SPI mode. It is not safe for concurrent use.
type Adapter struct {
	serial string
	speed  Speed

	dev  *common.USBDevice
	link io.ReadWriter
}

// New returns an adapter for the device with the given USB serial number,
// or any CH341A if serial is empty.
func New(serial string, speed Speed) *Adapter {
	return &Adapter{serial: serial, speed: speed}
}

// newWithLink is used in tests to drive the protocol over a fake device.
func newWithLink(link io.ReadWriter) *Adapter {
	return &Adapter{link: link}
}

type usbLink struct {
	ud *common.USBDevice
}

func (l usbLink) Read(b []byte) (int, error) {
	return l.ud.In.Read(b)
}

func (l usbLink) Write(b []byte) (int, error) {
	return l.ud.Out.Write(b)
}

func (a *Adapter) Open(ctx context.Context) error {
	if a.link != nil {
		return nil
	}
	if a.speed < Speed20K || a.speed > Speed750K {
		return errors.NotValidf("speed %d", a.speed)
	}
	ud, err := common.OpenUSBAdapter(VID, PID, a.serial, endpoint, endpoint)
	if err != nil {
		return errors.Trace(err)
	}
	a.dev, a.link = ud, usbLink{ud}
	if err := a.send(ctx, []byte{cmdI2CStream, i2cSTMSet | byte(a.speed), i2cSTMEnd}); err != nil {
		a.Close(ctx)
		return errors.Annotatef(err, "failed to set speed")
	}
	glog.Infof("CH341A opened, speed %d", a.speed)
	return nil
}

func (a *Adapter) Close(ctx context.Context) error {
	a.link = nil
	if a.dev == nil {
		return nil
	}
	err := a.dev.Close()
	a.dev = nil
	return errors.Trace(err)
}

func (a *Adapter) IsOpen() bool {
	return a.link != nil
}

func (a *Adapter) SPIInit(ctx context.Context) error {
	return errors.Annotatef(a.setPins(ctx, pinsCSHigh, pinsOutput), "SPI init")
}

func (a *Adapter) SPIDeinit(ctx context.Context) error {
	return errors.Annotatef(a.setPins(ctx, pinsCSHigh, 0), "SPI deinit")
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

// Transfer runs one chip-select cycle: CS low, w out, n bytes in, CS high.
func (a *Adapter) Transfer(ctx context.Context, w []byte, n int) ([]byte, error) {
	if a.link == nil {
		return nil, errors.New("CH341A is not open")
	}
	out := make([]byte, len(w)+n)
	copy(out, w)
	for i := len(w); i < len(out); i++ {
		out[i] = common.DummyByte
	}
	if err := a.setPins(ctx, pinsCSLow, pinsOutput); err != nil {
		return nil, errors.Trace(err)
	}
	in, err := a.stream(ctx, out)
	// CS must go high even if the stream failed.
	if err2 := a.setPins(context.Background(), pinsCSHigh, pinsOutput); err == nil {
		err = err2
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return in[len(w):], nil
}

func (a *Adapter) setPins(ctx context.Context, out, dir byte) error {
	return a.send(ctx, []byte{cmdUIOStream, uioSTMOut | out, uioSTMDir | dir, uioSTMEnd})
}

func (a *Adapter) send(ctx context.Context, pkt []byte) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	if a.link == nil {
		return errors.New("CH341A is not open")
	}
	glog.V(4).Infof("CH341A <- %x", pkt)
	n, err := a.link.Write(pkt)
	if err != nil {
		return errors.Annotatef(err, "USB write")
	}
	if n != len(pkt) {
		return errors.Errorf("short USB write (%d of %d)", n, len(pkt))
	}
	return nil
}

// stream clocks data through the bus and returns the bytes read back.
func (a *Adapter) stream(ctx context.Context, data []byte) ([]byte, error) {
	res := make([]byte, 0, len(data))
	buf := make([]byte, packetLen)
	for _, pkt := range spiPackets(data) {
		if err := a.send(ctx, pkt); err != nil {
			return nil, errors.Trace(err)
		}
		want := len(pkt) - 1
		got := 0
		for got < want {
			n, err := a.link.Read(buf[:want-got])
			if err != nil {
				return nil, errors.Annotatef(err, "USB read")
			}
			if n == 0 {
				return nil, errors.Errorf("short USB read (%d of %d)", got, want)
			}
			for _, b := range buf[:n] {
				res = append(res, reverseBits(b))
			}
			got += n
		}
	}
	return res, nil
}

// spiPackets splits data into SPI stream packets. The CH341A shifts LSB
// first so every byte is bit-reversed.
func spiPackets(data []byte) [][]byte {
	var res [][]byte
	for len(data) > 0 {
		n := len(data)
		if n > packetLen-1 {
			n = packetLen - 1
		}
		pkt := make([]byte, 1+n)
		pkt[0] = cmdSPIStream
		for i, b := range data[:n] {
			pkt[1+i] = reverseBits(b)
		}
		res = append(res, pkt)
		data = data[n:]
	}
	return res
}

func reverseBits(b byte) byte {
	b = b>>4 | b<<4
	b = (b&0xcc)>>2 | (b&0x33)<<2
	b = (b&0xaa)>>1 | (b&0x55)<<1
	return b
}
