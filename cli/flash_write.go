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
	"os"

	"github.com/fatih/color"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/flashprog/cli/flags"
	"github.com/mongoose-os/flashprog/cli/flash/service"
	"github.com/mongoose-os/flashprog/cli/ourutil"
)

// flashWrite writes a raw image from offset 0. The chip is not erased first.
func flashWrite(ctx context.Context) error {
	args := flag.Args()
	if len(args) != 2 {
		return errors.Errorf("usage: %s write <file%s>", os.Args[0], service.ImageExt)
	}
	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()

	ourutil.Reportf("Writing %s...", args[1])
	var r service.FlashReport
	if *flags.Verify {
		r, err = outcome(s.FlashWithVerify(ctx, args[1]))
	} else {
		r, err = outcome(s.Flash(ctx, args[1]))
	}
	if err != nil {
		return errors.Trace(err)
	}
	if r.Verified {
		color.New(color.FgGreen).Fprintf(os.Stderr, "Verified %d bytes\n", r.Bytes)
	}
	return nil
}
