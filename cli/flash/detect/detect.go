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

// Package detect identifies the chip behind an engine and resolves the
// catalog entry to bind.
package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
)

// UnknownChipName is the name given to chips that are not in the catalog.
const UnknownChipName = "Unknown"

// Target is what identification needs from a protocol engine.
type Target interface {
	EnterProgrammingMode(ctx context.Context) error
	ReadID(ctx context.Context) (common.Identity, error)
	Bind(c chipdb.Chip) error
	Addr4() bool
	Enter4ByteAddressMode(ctx context.Context) error
	Exit4ByteAddressMode(ctx context.Context) error
}

type MatchKind string

const (
	MatchNone   MatchKind = "none"
	MatchJEDEC  MatchKind = "jedec"
	MatchLegacy MatchKind = "legacy"
)

type Result struct {
	Identity   common.Identity
	MatchedBy  MatchKind
	Candidates []chipdb.Chip
	// Chip is the resolved descriptor, already bound to the target.
	Chip chipdb.Chip
}

func (r *Result) Known() bool {
	return r.MatchedBy != MatchNone
}

// Identify reads the chip ids, resolves them against reg and binds the result.
func Identify(ctx context.Context, t Target, reg *chipdb.Registry) (*Result, error) {
	if err := t.EnterProgrammingMode(ctx); err != nil {
		return nil, errors.Trace(err)
	}
	id, err := t.ReadID(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := &Result{Identity: id}
	res.Candidates, res.MatchedBy = Candidates(reg, id)
	res.Chip = SelectBestCandidate(res.Candidates, id)
	glog.Infof("%s: %d candidate(s) by %s, using %s", id, len(res.Candidates), res.MatchedBy, res.Chip.Name)

	if t.Addr4() {
		if err := t.Exit4ByteAddressMode(ctx); err != nil {
			return nil, errors.Annotatef(err, "failed to leave 4-byte mode")
		}
	}
	if err := t.Bind(res.Chip); err != nil {
		return nil, errors.Trace(err)
	}
	if res.Chip.Supports4ByteAddr && res.Chip.Needs4ByteAddr() {
		if err := t.Enter4ByteAddressMode(ctx); err != nil {
			return nil, errors.Annotatef(err, "failed to enable 4-byte mode")
		}
	}
	return res, nil
}

// Candidates returns the catalog entries matching the JEDEC id, or, failing
// that, the legacy manufacturer/device id.
func Candidates(reg *chipdb.Registry, id common.Identity) ([]chipdb.Chip, MatchKind) {
	if reg == nil {
		return nil, MatchNone
	}
	if validID(id.JEDECManufacturer()) {
		if m := reg.Match(id.JEDECManufacturer(), id.JEDECDevice()); len(m) > 0 {
			return m, MatchJEDEC
		}
	}
	if validID(id.ManufacturerID) {
		if m := reg.Match(id.ManufacturerID, uint16(id.DeviceID)); len(m) > 0 {
			return m, MatchLegacy
		}
	}
	return nil, MatchNone
}

// validID filters out what a floating or grounded MISO line reads as.
func validID(mfr byte) bool {
	return mfr != 0x00 && mfr != 0xff
}

// SelectBestCandidate picks the descriptor to bind out of the matches.
func SelectBestCandidate(cands []chipdb.Chip, id common.Identity) chipdb.Chip {
	switch len(cands) {
	case 0:
		return Unknown(id)
	case 1:
		return cands[0]
	}
	sameSize := true
	for _, c := range cands[1:] {
		if c.Size != cands[0].Size {
			sameSize = false
			break
		}
	}
	if sameSize {
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.Name
		}
		res := cands[0]
		res.Name = FoldNames(names)
		sorted := uniqueSorted(names)
		res.Description = fmt.Sprintf("Variants: %s", strings.Join(sorted, ", "))
		return res
	}
	best := 0
	for i, c := range cands {
		if c.Size > cands[best].Size {
			best = i
		}
	}
	for i, c := range cands {
		if i != best {
			glog.Infof("Discarding candidate %s (%d bytes) in favour of %s (%d bytes)",
				c.Name, c.Size, cands[best].Name, cands[best].Size)
		}
	}
	return cands[best]
}

func uniqueSorted(names []string) []string {
	res := append([]string(nil), names...)
	sort.Strings(res)
	j := 0
	for i, n := range res {
		if i == 0 || n != res[j-1] {
			res[j] = n
			j++
		}
	}
	return res[:j]
}

// FoldNames folds variant names sharing a prefix, e.g.
// MX25Q128FV, MX25Q128JV, MX25Q128RV -> MX25Q128FV(JV/RV).
// The result does not depend on the input order.
func FoldNames(names []string) string {
	sorted := uniqueSorted(names)
	switch len(sorted) {
	case 0:
		return ""
	case 1:
		return sorted[0]
	}
	prefix := sorted[0]
	for _, n := range sorted[1:] {
		for !strings.HasPrefix(n, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	suffixes := make([]string, len(sorted))
	for i, n := range sorted {
		suffixes[i] = n[len(prefix):]
	}
	return prefix + suffixes[0] + "(" + strings.Join(suffixes[1:], "/") + ")"
}

// Unknown synthesizes a descriptor for a chip the catalog does not know.
// Its size is 0, which disables range checks.
func Unknown(id common.Identity) chipdb.Chip {
	mfr, dev := id.JEDECManufacturer(), id.JEDECDevice()
	if !validID(mfr) {
		mfr, dev = id.ManufacturerID, uint16(id.DeviceID)
	}
	return chipdb.Chip{
		Name:           UnknownChipName,
		Manufacturer:   chipdb.ManufacturerName(mfr),
		Family:         chipdb.FamilySPI,
		CommandSet:     chipdb.CommandSetStandard,
		PageSize:       chipdb.DefaultPageSize,
		SectorSize:     chipdb.DefaultSectorSize,
		BlockSize:      chipdb.DefaultBlockSize,
		VoltageMV:      chipdb.DefaultVoltageMV,
		ManufacturerID: mfr,
		DeviceID:       dev,
		Description:    id.String(),
	}
}
