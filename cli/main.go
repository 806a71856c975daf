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

	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/flashprog/cli/flags"
	"github.com/mongoose-os/flashprog/common/pflagenv"
	"github.com/mongoose-os/flashprog/version"
)

const (
	envPrefix = "FLASHPROG_"
)

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

var commands = []command{
	{"detect", detectChip, `Identify the chip attached to the adapter`, nil, []string{"adapter", "protocol", "chip-db"}},
	{"chips", listChips, `List the chip catalog, or save it: chips [<file.yaml>]`, nil, []string{"chip-db"}},
	{"read", flashRead, `Read flash contents: read [<addr> <length>] <file|->`, nil, []string{"adapter"}},
	{"write", flashWrite, `Write a .bin image from offset 0 (no erase)`, nil, []string{"adapter", "verify"}},
	{"clear", clearCheck, `Erase the chip and check that it reads back blank`, nil, []string{"adapter", "whole-rom", "seed"}},
	{"erase", erase, `Erase the chip, or erase [<addr> <length>]`, nil, []string{"adapter"}},
	{"blank-check", blankCheck, `Check a range is erased: blank-check [<addr> <length>]`, nil, []string{"adapter"}},
	{"status", status, `Print the status registers`, nil, []string{"adapter"}},
	{"protect", protect, `Set or clear block protection: protect on|off`, nil, []string{"adapter"}},
}

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

type handler func(ctx context.Context) error

func run() error {
	for _, c := range commands {
		if c.name == flag.Arg(0) {
			if err := checkFlags(c.required); err != nil {
				return errors.Trace(err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), *flags.Timeout)
			defer cancel()
			return errors.Trace(c.handler(ctx))
		}
	}
	usage()
	return nil
}

func main() {
	initFlags()
	flag.Parse()
	if err := pflagenv.Parse(envPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	if *helpFull {
		unhideFlags()
		usage()
		return
	} else if *versionFlag {
		fmt.Println(version.String())
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
