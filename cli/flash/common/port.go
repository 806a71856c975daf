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
package common

import (
	"context"
	"fmt"
)

// Port is one half-duplex link to a programming adapter.
// Every data method is exactly one chip-select transaction: CS is asserted
// before the first byte and released after the last one.
type Port interface {
	// Open opens the adapter.
	Open(ctx context.Context) error
	// Close releases the adapter. Closing a closed port is a no-op.
	Close(ctx context.Context) error
	IsOpen() bool

	// SPIInit configures the adapter for SPI and drives the bus pins.
	SPIInit(ctx context.Context) error
	// SPIDeinit tri-states the bus pins.
	SPIDeinit(ctx context.Context) error

	// SendCommand sends a single opcode byte.
	SendCommand(ctx context.Context, cmd byte) error
	// Write clocks out data, discarding whatever the chip sends back.
	Write(ctx context.Context, data []byte) error
	// Read clocks out n dummy (0xff) bytes and returns what the chip sent.
	Read(ctx context.Context, n int) ([]byte, error)
	// Transfer writes w and then, without releasing CS, reads n bytes.
	Transfer(ctx context.Context, w []byte, n int) ([]byte, error)
}

// DummyByte is clocked out while reading.
const DummyByte = 0xff

// Identity is what a chip reports about itself during identification.
type Identity struct {
	// JEDEC is manufacturer, memory type, capacity (0x9f).
	JEDEC [3]byte
	// ManufacturerID and DeviceID come from the legacy 0x90 read.
	ManufacturerID byte
	DeviceID       byte
	// Signature is the electronic signature (0xab).
	Signature byte
	// UniqueID is the two bytes returned by opcode 0x15.
	UniqueID [2]byte
}

// JEDECManufacturer returns the first JEDEC byte.
func (id Identity) JEDECManufacturer() byte {
	return id.JEDEC[0]
}

// JEDECDevice returns memory type and capacity as one 16-bit value.
func (id Identity) JEDECDevice() uint16 {
	return uint16(id.JEDEC[1])<<8 | uint16(id.JEDEC[2])
}

func (id Identity) String() string {
	return fmt.Sprintf("JEDEC %02X%02X%02X, REMS %02X%02X, RES %02X, UID %02X%02X",
		id.JEDEC[0], id.JEDEC[1], id.JEDEC[2], id.ManufacturerID, id.DeviceID,
		id.Signature, id.UniqueID[0], id.UniqueID[1])
}
