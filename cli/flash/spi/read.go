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

	"github.com/mongoose-os/flashprog/cli/flash/common"
)

// Read reads length bytes starting at addr using the normal read command.
func (e *Engine) Read(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) ([]byte, error) {
	return e.read(ctx, "read", opRead, 0, addr, length, progress)
}

// FastRead is like Read but uses the fast read command, which takes one
// dummy byte after the address.
func (e *Engine) FastRead(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) ([]byte, error) {
	return e.read(ctx, "fast read", opFastRead, 1, addr, length, progress)
}

func (e *Engine) read(ctx context.Context, op string, opcode byte, dummy int, addr uint32, length int, progress common.ProgressFunc) ([]byte, error) {
	if err := e.checkBound(op, addr, length); err != nil {
		return nil, err
	}
	res := make([]byte, 0, length)
	tr := common.NewTracker(progress, "Reading", length)
	for len(res) < length {
		if err := common.CheckContext(ctx, op); err != nil {
			return nil, err
		}
		n := length - len(res)
		if n > ReadChunkSize {
			n = ReadChunkSize
		}
		a := addr + uint32(len(res))
		cmd := e.command(opcode, a, dummy)
		for i := 0; i < dummy; i++ {
			cmd = append(cmd, common.DummyByte)
		}
		data, err := e.port.Transfer(ctx, cmd, n)
		if err != nil {
			return nil, common.TransferFailure(op, errors.Annotatef(err, "%d @ 0x%x", n, a))
		}
		if len(data) != n {
			return nil, common.TransferFailure(op, errors.Errorf("%d @ 0x%x: short read (%d)", n, a, len(data)))
		}
		glog.V(4).Infof("%d @ 0x%x", n, a)
		res = append(res, data...)
		tr.Add(n)
	}
	return res, nil
}
