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

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/mongoose-os/flashprog/cli/ourutil"
	"github.com/mongoose-os/flashprog/common/ourio"
)

func flashRead(ctx context.Context) error {
	args := flag.Args()[1:]
	if len(args) != 1 && len(args) != 3 {
		return errors.Errorf("usage: %s read [<addr> <length>] <file|->", os.Args[0])
	}
	outFile := args[len(args)-1]
	addr, length, err := parseRange(args[:len(args)-1])
	if err != nil {
		return errors.Trace(err)
	}

	s, closer, err := openService(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer closer()

	data, err := outcome(s.Read(ctx, addr, length))
	if err != nil {
		return errors.Trace(err)
	}
	if outFile == "-" {
		_, err = os.Stdout.Write(data)
	} else {
		var changed bool
		changed, err = ourio.WriteFileIfDifferent(outFile, data, 0644)
		if err == nil && changed {
			ourutil.Reportf("Wrote %s", outFile)
		} else if err == nil {
			ourutil.Reportf("%s is up to date", outFile)
		}
	}
	return errors.Trace(err)
}
