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
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/flashprog/cli/flags"
	"github.com/mongoose-os/flashprog/cli/ourutil"
)

// parseRange parses optional "<addr> <length>" arguments. Zero length means
// up to the end of the chip.
func parseRange(args []string) (uint32, int, error) {
	switch len(args) {
	case 0:
		return 0, 0, nil
	case 2:
		addr, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return 0, 0, errors.Annotatef(err, "invalid address")
		}
		length, err := strconv.ParseInt(args[1], 0, 32)
		if err != nil || length < 0 {
			return 0, 0, errors.Errorf("invalid length %q", args[1])
		}
		return uint32(addr), int(length), nil
	}
	return 0, 0, errors.Errorf("expected <addr> <length>")
}

func detectChip(ctx context.Context) error {
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	chip, _ := s.Chip()
	ourutil.Reportf("Identity: %s", s.Identity())
	ourutil.Reportf("Chip: %s %s, %d bytes, page %d, %d mV", chip.Manufacturer, chip.Name, chip.Size, chip.PageSize, chip.VoltageMV)
	if chip.Description != "" {
		ourutil.Reportf("  %s", chip.Description)
	}
	return nil
}

// listChips prints the catalog, or with a file argument saves it as YAML.
func listChips(ctx context.Context) error {
	reg, err := loadRegistry()
	if err != nil {
		return errors.Trace(err)
	}
	if args := flag.Args()[1:]; len(args) == 1 {
		if _, err := reg.Save(args[0], 0644); err != nil {
			return errors.Trace(err)
		}
		ourutil.Reportf("Saved %d chips to %s", reg.Len(), args[0])
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "NAME\tMANUFACTURER\tID\tSIZE\tCOMMANDS\n")
	for _, c := range reg.Chips() {
		fmt.Fprintf(w, "%s\t%s\t%02X%04X\t%d\t%s\n", c.Name, c.Manufacturer, c.ManufacturerID, c.DeviceID, c.Size, c.CommandSet)
	}
	return errors.Trace(w.Flush())
}

func clearCheck(ctx context.Context) error {
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	if *flags.WholeRom {
		_, err = outcome(s.ClearFlashWholeRom(ctx))
	} else {
		_, err = outcome(s.ClearFlash(ctx))
	}
	if err == nil {
		color.New(color.FgGreen).Fprintf(os.Stderr, "Chip is clear\n")
	}
	return errors.Trace(err)
}

func erase(ctx context.Context) error {
	addr, length, err := parseRange(flag.Args()[1:])
	if err != nil {
		return errors.Trace(err)
	}
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	if length == 0 {
		ourutil.Reportf("Erasing chip...")
	}
	_, err = outcome(s.Erase(ctx, addr, length))
	return errors.Trace(err)
}

func blankCheck(ctx context.Context) error {
	addr, length, err := parseRange(flag.Args()[1:])
	if err != nil {
		return errors.Trace(err)
	}
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	_, err = outcome(s.BlankCheck(ctx, addr, length))
	return errors.Trace(err)
}

func status(ctx context.Context) error {
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	_, err = outcome(s.Status(ctx))
	return errors.Trace(err)
}

func protect(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 2 || (args[1] != "on" && args[1] != "off") {
		return errors.Errorf("usage: %s protect on|off", os.Args[0])
	}
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()
	_, err = outcome(s.Protect(ctx, args[1] == "on"))
	return errors.Trace(err)
}
