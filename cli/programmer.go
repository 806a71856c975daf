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
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flags"
	"github.com/mongoose-os/flashprog/cli/flash/ch341a"
	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/eeprom"
	"github.com/mongoose-os/flashprog/cli/flash/flashsim"
	"github.com/mongoose-os/flashprog/cli/flash/serprog"
	"github.com/mongoose-os/flashprog/cli/flash/service"
	"github.com/mongoose-os/flashprog/cli/flash/spi"
	"github.com/mongoose-os/flashprog/cli/ourutil"
)

func loadRegistry() (*chipdb.Registry, error) {
	if *flags.ChipDB == "" {
		return chipdb.Builtin(), nil
	}
	return chipdb.Load(*flags.ChipDB)
}

func newPort(reg *chipdb.Registry) (common.Port, error) {
	switch strings.ToLower(*flags.Adapter) {
	case "ch341a":
		return ch341a.New(*flags.USBSerial, ch341a.Speed(*flags.SPISpeed)), nil
	case "serprog":
		if *flags.Port == "" {
			return nil, errors.Errorf("--port is required for the serprog adapter")
		}
		return serprog.New(*flags.Port, *flags.BaudRate, *flags.SPIFreq), nil
	case "sim":
		mfr, dev, err := flags.SimID()
		if err != nil {
			return nil, errors.Trace(err)
		}
		cd := chipdb.Chip{Name: "sim", ManufacturerID: mfr, DeviceID: dev, Size: *flags.SimSize}
		if m := reg.Match(mfr, dev); len(m) > 0 {
			cd = m[0]
			if *flags.SimSize > 0 {
				cd.Size = *flags.SimSize
			}
		}
		glog.Infof("simulating %s", cd)
		return flashsim.FromChip(cd), nil
	}
	return nil, errors.NotSupportedf("adapter %q", *flags.Adapter)
}

func newProtocol(port common.Port) (service.Protocol, error) {
	f, err := chipdb.ParseFamily(*flags.Protocol)
	if err != nil {
		return nil, errors.Trace(err)
	}
	switch f {
	case chipdb.FamilyI2C:
		return eeprom.NewI2C(port), nil
	case chipdb.FamilyMicroWire:
		return eeprom.NewMicroWire(port), nil
	}
	return spi.New(port), nil
}

// progressReporter prints a line every 10%.
func progressReporter() common.ProgressFunc {
	last, status := -1, ""
	return func(p common.Progress) {
		if p.Status != status {
			last, status = -1, p.Status
		}
		step := int(p.Percent) / 10
		if step == last {
			return
		}
		last = step
		ourutil.Reportf("  %s %3.0f%% (%d of %d, %.1f KB/s)", p.Status, p.Percent, p.Done, p.Total, p.Speed/1024)
	}
}

// openService connects to the adapter and identifies the chip. The returned
// function disconnects.
func openService(ctx context.Context) (*service.Service, func(), error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	port, err := newPort(reg)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	proto, err := newProtocol(port)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	seed := *flags.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := service.New(port, proto, reg,
		service.WithRand(rand.New(rand.NewSource(seed))),
		service.WithProgress(progressReporter()))
	if _, err := outcome(s.Connect(ctx)); err != nil {
		return nil, nil, errors.Trace(err)
	}
	closer := func() {
		if o := s.Disconnect(context.Background()); !o.Success {
			glog.Errorf("%s", o.Message)
		}
	}
	res, err := outcome(s.Detect(ctx))
	if err != nil {
		closer()
		return nil, nil, errors.Trace(err)
	}
	if !res.Known() {
		color.New(color.FgYellow).Fprintf(os.Stderr, "Chip is not in the catalog, size checks are disabled\n")
	}
	return s, closer, nil
}

// outcome reports o and converts it back to a value and an error.
func outcome[T any](o common.Outcome[T]) (T, error) {
	if !o.Success {
		glog.Infof("%s failed: %+v", o.Kind(), o.Err)
		return o.Payload, errors.New(o.Message)
	}
	ourutil.Reportf("%s", o.Message)
	return o.Payload, nil
}
