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
package service

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
)

// ImageExt is the only accepted image file extension.
const ImageExt = ".bin"

type FlashReport struct {
	Bytes    int
	Duration time.Duration
	Verified bool
}

// Speed returns the write speed in KBit/s.
func (r FlashReport) Speed() float64 {
	secs := r.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Bytes) * 8 / 1024 / secs
}

// loadImage checks that the service can flash the file at path and reads it.
func (s *Service) loadImage(op, path string) (chipdb.Chip, []byte, error) {
	chip, err := s.requireChip(op)
	if err != nil {
		return chip, nil, err
	}
	if path == "" {
		return chip, nil, common.InputValidationf(op, "no image file given")
	}
	fi, err := os.Stat(path)
	if err != nil {
		return chip, nil, common.InputValidationf(op, "%s", err)
	}
	if fi.IsDir() {
		return chip, nil, common.InputValidationf(op, "%s is a directory", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ImageExt) {
		return chip, nil, common.InputValidationf(op, "%s: only %s images are supported", path, ImageExt)
	}
	if fi.Size() == 0 {
		return chip, nil, common.InputValidationf(op, "%s is empty", path)
	}
	if fi.Size() > int64(chip.Size) {
		return chip, nil, common.InputValidationf(op, "%s (%d bytes) does not fit %s (%d bytes)", path, fi.Size(), chip.Name, chip.Size)
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return chip, nil, errors.Annotatef(err, "failed to read %s", path)
	}
	return chip, data, nil
}

func flashedMessage(r FlashReport) string {
	return fmt.Sprintf("Wrote %d bytes in %.2f seconds (%.2f KBit/sec)", r.Bytes, r.Duration.Seconds(), r.Speed())
}

// Flash writes the image at path from address 0. The chip must have been
// cleared beforehand; nothing is erased and nothing is verified.
func (s *Service) Flash(ctx context.Context, path string) common.Outcome[FlashReport] {
	const op = "flash"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[FlashReport](err, "")
	}
	defer done()
	chip, data, err := s.loadImage(op, path)
	if err != nil {
		return common.Failed[FlashReport](err, "")
	}

	common.Reportf("Writing %d bytes to %s...", len(data), chip.Name)
	start := time.Now()
	if err := s.proto.Write(ctx, 0, data, s.progress); err != nil {
		return common.Failed[FlashReport](errors.Annotatef(err, "write failed"), "")
	}
	res := FlashReport{Bytes: len(data), Duration: time.Since(start)}
	return common.Succeeded(res, flashedMessage(res))
}

// FlashWithVerify writes the image at path from address 0 one page at a
// time, reading every page back before moving on. Like Flash, it does not
// erase.
func (s *Service) FlashWithVerify(ctx context.Context, path string) common.Outcome[FlashReport] {
	const op = "flash"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[FlashReport](err, "")
	}
	defer done()
	chip, data, err := s.loadImage(op, path)
	if err != nil {
		return common.Failed[FlashReport](err, "")
	}

	common.Reportf("Writing and verifying %d bytes to %s...", len(data), chip.Name)
	start := time.Now()
	tr := common.NewTracker(s.progress, "Writing", len(data))
	for off := 0; off < len(data); off += chip.PageSize {
		if err := common.CheckContext(ctx, op); err != nil {
			return common.Failed[FlashReport](err, "")
		}
		end := off + chip.PageSize
		if end > len(data) {
			end = len(data)
		}
		page, addr := data[off:end], uint32(off)
		if err := s.proto.Write(ctx, addr, page, nil); err != nil {
			return common.Failed[FlashReport](errors.Annotatef(err, "write @ 0x%x failed", addr), "")
		}
		back, err := s.proto.Read(ctx, addr, len(page), nil)
		if err != nil {
			return common.Failed[FlashReport](errors.Annotatef(err, "read back @ 0x%x failed", addr), "")
		}
		if me := spi.MismatchAt(addr, page, back); me != nil {
			return common.Failed[FlashReport](me, fmt.Sprintf(
				"Verification failed at 0x%x: expected 0x%02x, got 0x%02x", me.Offset, me.Expected, me.Actual))
		}
		tr.Add(len(page))
	}
	res := FlashReport{Bytes: len(data), Duration: time.Since(start), Verified: true}
	return common.Succeeded(res, flashedMessage(res)+", verified")
}
