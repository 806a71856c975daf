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
	"math/rand"
	"sort"

	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
	"github.com/mongoose-os/flashprog/common/multierror"
)

const (
	minSamples     = 100
	maxSamples     = 2000
	sampleAlign    = 256
	sampleReadSize = 64
)

type ClearReport struct {
	// Samples is the number of addresses checked, 0 for a whole-chip check.
	Samples int
	// Checked is the number of bytes read back.
	Checked int
}

// SampleCount is the number of addresses ClearFlash checks on a chip of the
// given size: one per KB, clamped to [100, 2000] and to the number of
// 256-byte units.
func SampleCount(size int) int {
	n := size / 1024
	if n < minSamples {
		n = minSamples
	}
	if n > maxSamples {
		n = maxSamples
	}
	if units := size / sampleAlign; n > units {
		n = units
	}
	return n
}

// SampleAddresses picks n distinct 256-aligned addresses below size, in
// ascending order.
func SampleAddresses(rng *rand.Rand, size, n int) []uint32 {
	units := size / sampleAlign
	if n > units {
		n = units
	}
	// Floyd's algorithm: n draws, no rejection.
	picked := make(map[int]bool, n)
	res := make([]uint32, 0, n)
	for j := units - n; j < units; j++ {
		u := rng.Intn(j + 1)
		if picked[u] {
			u = j
		}
		picked[u] = true
		res = append(res, uint32(u*sampleAlign))
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// ClearFlash erases the chip and spot-checks a random sample of addresses.
func (s *Service) ClearFlash(ctx context.Context) common.Outcome[ClearReport] {
	const op = "clear flash"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[ClearReport](err, "")
	}
	defer done()
	chip, err := s.requireSize(op)
	if err != nil {
		return common.Failed[ClearReport](err, "")
	}

	common.Reportf("Erasing %s...", chip.Name)
	if err := s.proto.EraseChip(ctx); err != nil {
		return common.Failed[ClearReport](errors.Annotatef(err, "erase failed"), "")
	}

	addrs := SampleAddresses(s.rng, chip.Size, SampleCount(chip.Size))
	common.Reportf("Checking %d sampled addresses...", len(addrs))
	tr := common.NewTracker(s.progress, "Verifying", len(addrs))
	var errs error
	for _, a := range addrs {
		if err := common.CheckContext(ctx, op); err != nil {
			return common.Failed[ClearReport](err, "")
		}
		data, err := s.proto.Read(ctx, a, sampleReadSize, nil)
		if err != nil {
			return common.Failed[ClearReport](errors.Annotatef(err, "read @ 0x%x failed", a), "")
		}
		if me := spi.BlankMismatchAt(a, data); me != nil {
			errs = multierror.Append(errs, me)
		}
		tr.Add(1)
	}
	if errs != nil {
		return common.Failed[ClearReport](errs, fmt.Sprintf(
			"Erase verification failed: %d of %d sampled addresses are not blank", multierror.Len(errs), len(addrs)))
	}
	res := ClearReport{Samples: len(addrs), Checked: len(addrs) * sampleReadSize}
	return common.Succeeded(res, fmt.Sprintf("Chip erased, %d sampled addresses are blank", len(addrs)))
}

// ClearFlashWholeRom erases the chip and reads all of it back.
func (s *Service) ClearFlashWholeRom(ctx context.Context) common.Outcome[ClearReport] {
	const op = "clear flash"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[ClearReport](err, "")
	}
	defer done()
	chip, err := s.requireSize(op)
	if err != nil {
		return common.Failed[ClearReport](err, "")
	}

	common.Reportf("Erasing %s...", chip.Name)
	if err := s.proto.EraseChip(ctx); err != nil {
		return common.Failed[ClearReport](errors.Annotatef(err, "erase failed"), "")
	}
	common.Reportf("Reading back %d bytes...", chip.Size)
	data, err := s.proto.Read(ctx, 0, chip.Size, s.progress)
	if err != nil {
		return common.Failed[ClearReport](errors.Annotatef(err, "read back failed"), "")
	}
	if me := spi.BlankMismatchAt(0, data); me != nil {
		return common.Failed[ClearReport](me, fmt.Sprintf(
			"Erase verification failed: byte 0x%02x at 0x%x, %d bytes not blank", me.Actual, me.Offset, me.Count))
	}
	return common.Succeeded(ClearReport{Checked: len(data)}, fmt.Sprintf("Chip erased, all %d bytes are blank", len(data)))
}
