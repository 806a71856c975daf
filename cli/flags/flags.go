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
package flags

import (
	"strconv"
	"time"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
)

var (
	Adapter   = flag.String("adapter", "ch341a", "Programming adapter: ch341a, serprog or sim")
	Port      = flag.String("port", "", "Serial port of the serprog programmer")
	BaudRate  = flag.Uint("baud-rate", 115200, "Serial port speed")
	USBSerial = flag.String("usb-serial", "", "USB serial number of the adapter, if more than one is connected")
	SPISpeed  = flag.Int("spi-speed", 1, "CH341A stream speed index, 0 (slowest) to 3")
	SPIFreq   = flag.Uint32("spi-freq", 0, "serprog SPI clock, Hz. 0 - programmer default")
	ChipDB    = flag.String("chip-db", "", "YAML chip catalog. If not set, the built-in catalog is used")
	Protocol  = flag.String("protocol", "spi", "Bus protocol of the chip: spi, i2c or microwire")
	Verify    = flag.Bool("verify", false, "Read back and compare every page after writing it")
	WholeRom  = flag.Bool("whole-rom", false, "Check every byte instead of a random sample")
	Timeout   = flag.Duration("timeout", 10*time.Minute, "Overall operation timeout")
	Seed      = flag.Int64("seed", 0, "Seed for sampled blank checks. 0 - time based")

	// Simulated adapter.
	SimJEDEC = flag.String("sim-jedec", "ef4017", "JEDEC id (hex) of the simulated chip")
	SimSize  = flag.Int("sim-size", 0, "Size of the simulated chip. 0 - from the catalog")
)

// SimID parses --sim-jedec into manufacturer and device id.
func SimID() (byte, uint16, error) {
	v, err := strconv.ParseUint(*SimJEDEC, 16, 24)
	if err != nil {
		return 0, 0, errors.Annotatef(err, "invalid --sim-jedec")
	}
	return byte(v >> 16), uint16(v), nil
}
