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

import "time"

// 25-series opcodes.
const (
	opWriteEnable        = 0x06
	opWriteDisable       = 0x04
	opEnableWriteStatus  = 0x50
	opReadStatus1        = 0x05
	opReadStatus2        = 0x35
	opReadStatus3        = 0x15
	opWriteStatus1       = 0x01
	opWriteStatus2       = 0x31
	opWriteStatus3       = 0x11
	opRead               = 0x03
	opFastRead           = 0x0b
	opPageProgram        = 0x02
	opAAIByteProgram     = 0xaf
	opAAIWordProgram     = 0xad
	opSectorErase        = 0x20
	opBlockErase32       = 0x52
	opBlockErase64       = 0xd8
	opChipErase          = 0xc7
	opChipEraseAlt       = 0x60
	opChipEraseAlt2      = 0x62
	opEnter4ByteAddr     = 0xb7
	opExit4ByteAddr      = 0xe9
	opWriteExtAddrReg    = 0xc5
	opReadJEDECID        = 0x9f
	opReadMfrDeviceID    = 0x90
	opReleasePowerDown   = 0xab
	opReadUniqueIDQuirky = opReadStatus3
)

const (
	statusBusy = 0x01
	statusWEL  = 0x02

	// BlockProtectMask covers BP0..BP3 in status register 1.
	BlockProtectMask  = 0x3c
	blockProtectShift = 2
	// BlockProtectAll sets every BP bit.
	BlockProtectAll = BlockProtectMask >> blockProtectShift
)

const (
	SectorSize  = 4 * 1024
	Block32Size = 32 * 1024
	Block64Size = 64 * 1024

	// ReadChunkSize is the largest read issued in one transaction.
	ReadChunkSize = 2048

	addr3ByteLimit = 1 << 24
)

const (
	pageProgramTimeout  = 5000 * time.Millisecond
	sectorEraseTimeout  = 3000 * time.Millisecond
	block32EraseTimeout = 5000 * time.Millisecond
	block64EraseTimeout = 10000 * time.Millisecond
	chipEraseTimeout    = 120000 * time.Millisecond
	writeStatusTimeout  = 5000 * time.Millisecond

	defaultPollInterval = 10 * time.Millisecond
	defaultSettleDelay  = 50 * time.Millisecond
)
