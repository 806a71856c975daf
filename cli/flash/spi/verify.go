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

	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/common"
)

const erasedByte = 0xff

// CompareBytes returns the offset of the first difference between expected
// and actual (-1 if none) and the number of differing bytes. Bytes missing
// from the shorter slice count as differing.
func CompareBytes(expected, actual []byte) (first, count int) {
	first = -1
	n := len(expected)
	if len(actual) > n {
		n = len(actual)
	}
	for i := 0; i < n; i++ {
		if i < len(expected) && i < len(actual) && expected[i] == actual[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		count++
	}
	return first, count
}

// FirstNonBlank returns the offset of the first byte that is not 0xff
// (-1 if none) and the number of such bytes.
func FirstNonBlank(data []byte) (first, count int) {
	first = -1
	for i, b := range data {
		if b != erasedByte {
			if first < 0 {
				first = i
			}
			count++
		}
	}
	return first, count
}

func byteAt(data []byte, i int) byte {
	if i < len(data) {
		return data[i]
	}
	return 0
}

// MismatchAt builds the mismatch for the first difference between expected
// and actual read at base, or returns nil if they are equal.
func MismatchAt(base uint32, expected, actual []byte) *common.MismatchError {
	first, count := CompareBytes(expected, actual)
	if first < 0 {
		return nil
	}
	return &common.MismatchError{
		Offset:   base + uint32(first),
		Expected: byteAt(expected, first),
		Actual:   byteAt(actual, first),
		Count:    count,
	}
}

// BlankMismatchAt is MismatchAt against an erased range.
func BlankMismatchAt(base uint32, data []byte) *common.MismatchError {
	first, count := FirstNonBlank(data)
	if first < 0 {
		return nil
	}
	return &common.MismatchError{
		Offset:   base + uint32(first),
		Expected: erasedByte,
		Actual:   data[first],
		Count:    count,
	}
}

// Verify reads back len(expected) bytes at addr and compares them.
func (e *Engine) Verify(ctx context.Context, addr uint32, expected []byte, progress common.ProgressFunc) error {
	actual, err := e.Read(ctx, addr, len(expected), progress)
	if err != nil {
		return errors.Trace(err)
	}
	if me := MismatchAt(addr, expected, actual); me != nil {
		return me
	}
	return nil
}

// IsBlank checks that length bytes at addr are all erased.
func (e *Engine) IsBlank(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) error {
	data, err := e.Read(ctx, addr, length, progress)
	if err != nil {
		return errors.Trace(err)
	}
	if me := BlankMismatchAt(addr, data); me != nil {
		return me
	}
	return nil
}
