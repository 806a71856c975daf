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
package chipdb

const UnknownManufacturer = "Unknown"

var manufacturers = map[byte]string{
	0x01: "Spansion",
	0x0b: "XTX",
	0x1c: "EON",
	0x1f: "Adesto",
	0x20: "Micron",
	0x37: "AMIC",
	0x5e: "Zbit",
	0x62: "ON Semiconductor",
	0x68: "Boya",
	0x85: "Puya",
	0x8c: "ESMT",
	0x9d: "ISSI",
	0xa1: "Fudan",
	0xbf: "SST",
	0xc2: "Macronix",
	0xc8: "GigaDevice",
	0xd5: "Nantronics",
	0xef: "Winbond",
}

// ManufacturerName maps a JEDEC manufacturer id to a vendor name.
func ManufacturerName(id byte) string {
	if n, ok := manufacturers[id]; ok {
		return n
	}
	return UnknownManufacturer
}
