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

const (
	kb = 1024
	mb = 1024 * kb
)

var builtinChips = []Chip{
	// Winbond
	{Name: "W25X20", Manufacturer: "Winbond", Size: 256 * kb, ManufacturerID: 0xef, DeviceID: 0x3012},
	{Name: "W25Q16JV", Manufacturer: "Winbond", Size: 2 * mb, ManufacturerID: 0xef, DeviceID: 0x4015, Dual: true, Quad: true},
	{Name: "W25Q32FV", Manufacturer: "Winbond", Size: 4 * mb, ManufacturerID: 0xef, DeviceID: 0x4016, Dual: true, Quad: true},
	{Name: "W25Q32JV", Manufacturer: "Winbond", Size: 4 * mb, ManufacturerID: 0xef, DeviceID: 0x4016, Dual: true, Quad: true},
	{Name: "W25Q64FV", Manufacturer: "Winbond", Size: 8 * mb, ManufacturerID: 0xef, DeviceID: 0x4017, Dual: true, Quad: true},
	{Name: "W25Q64JV", Manufacturer: "Winbond", Size: 8 * mb, ManufacturerID: 0xef, DeviceID: 0x4017, Dual: true, Quad: true},
	{Name: "W25Q128FV", Manufacturer: "Winbond", Size: 16 * mb, ManufacturerID: 0xef, DeviceID: 0x4018, Dual: true, Quad: true},
	{Name: "W25Q128JV", Manufacturer: "Winbond", Size: 16 * mb, ManufacturerID: 0xef, DeviceID: 0x4018, Dual: true, Quad: true},
	{Name: "W25Q256FV", Manufacturer: "Winbond", Size: 32 * mb, ManufacturerID: 0xef, DeviceID: 0x4019, Supports4ByteAddr: true, Dual: true, Quad: true},
	// Macronix
	{Name: "MX25L8005", Manufacturer: "Macronix", Size: 1 * mb, ManufacturerID: 0xc2, DeviceID: 0x2014},
	{Name: "MX25L1606E", Manufacturer: "Macronix", Size: 2 * mb, ManufacturerID: 0xc2, DeviceID: 0x2015, Dual: true},
	{Name: "MX25L3206E", Manufacturer: "Macronix", Size: 4 * mb, ManufacturerID: 0xc2, DeviceID: 0x2016, Dual: true},
	{Name: "MX25L6405D", Manufacturer: "Macronix", Size: 8 * mb, ManufacturerID: 0xc2, DeviceID: 0x2017, Dual: true},
	{Name: "MX25L6406E", Manufacturer: "Macronix", Size: 8 * mb, ManufacturerID: 0xc2, DeviceID: 0x2017, Dual: true},
	{Name: "MX25L6473E", Manufacturer: "Macronix", Size: 8 * mb, ManufacturerID: 0xc2, DeviceID: 0x2017, Dual: true, Quad: true},
	{Name: "MX25L12835F", Manufacturer: "Macronix", Size: 16 * mb, ManufacturerID: 0xc2, DeviceID: 0x2018, Dual: true, Quad: true},
	{Name: "MX25L25635F", Manufacturer: "Macronix", Size: 32 * mb, ManufacturerID: 0xc2, DeviceID: 0x2019, Supports4ByteAddr: true, Dual: true, Quad: true},
	{Name: "MX25U6435F", Manufacturer: "Macronix", Size: 8 * mb, ManufacturerID: 0xc2, DeviceID: 0x2537, VoltageMV: 1800, Dual: true, Quad: true},
	// GigaDevice
	{Name: "GD25Q16C", Manufacturer: "GigaDevice", Size: 2 * mb, ManufacturerID: 0xc8, DeviceID: 0x4015, Dual: true, Quad: true},
	{Name: "GD25Q32C", Manufacturer: "GigaDevice", Size: 4 * mb, ManufacturerID: 0xc8, DeviceID: 0x4016, Dual: true, Quad: true},
	{Name: "GD25Q64C", Manufacturer: "GigaDevice", Size: 8 * mb, ManufacturerID: 0xc8, DeviceID: 0x4017, Dual: true, Quad: true},
	{Name: "GD25Q128C", Manufacturer: "GigaDevice", Size: 16 * mb, ManufacturerID: 0xc8, DeviceID: 0x4018, Dual: true, Quad: true},
	// SST / Microchip: continuous programming.
	{Name: "SST25VF010A", Manufacturer: "SST", Size: 128 * kb, ManufacturerID: 0xbf, DeviceID: 0x49, CommandSet: CommandSetAAIByte,
		Description: "No JEDEC read, matched by the legacy id"},
	{Name: "SST25VF040B", Manufacturer: "SST", Size: 512 * kb, ManufacturerID: 0xbf, DeviceID: 0x258d, CommandSet: CommandSetAAIWord},
	{Name: "SST25VF080B", Manufacturer: "SST", Size: 1 * mb, ManufacturerID: 0xbf, DeviceID: 0x258e, CommandSet: CommandSetAAIWord},
	{Name: "SST25VF016B", Manufacturer: "SST", Size: 2 * mb, ManufacturerID: 0xbf, DeviceID: 0x2541, CommandSet: CommandSetAAIWord},
	{Name: "SST25VF032B", Manufacturer: "SST", Size: 4 * mb, ManufacturerID: 0xbf, DeviceID: 0x254a, CommandSet: CommandSetAAIWord},
	// EON
	{Name: "EN25Q32", Manufacturer: "EON", Size: 4 * mb, ManufacturerID: 0x1c, DeviceID: 0x3016},
	{Name: "EN25Q64", Manufacturer: "EON", Size: 8 * mb, ManufacturerID: 0x1c, DeviceID: 0x3017},
	// Micron / ST
	{Name: "M25P16", Manufacturer: "ST", Size: 2 * mb, ManufacturerID: 0x20, DeviceID: 0x2015},
	{Name: "N25Q032", Manufacturer: "Micron", Size: 4 * mb, ManufacturerID: 0x20, DeviceID: 0xba16, Dual: true, Quad: true},
	{Name: "N25Q256A", Manufacturer: "Micron", Size: 32 * mb, ManufacturerID: 0x20, DeviceID: 0xba19, Supports4ByteAddr: true, Dual: true, Quad: true},
	// Spansion / Cypress
	{Name: "S25FL116K", Manufacturer: "Spansion", Size: 2 * mb, ManufacturerID: 0x01, DeviceID: 0x4015, Dual: true, Quad: true},
	{Name: "S25FL256S", Manufacturer: "Spansion", Size: 32 * mb, ManufacturerID: 0x01, DeviceID: 0x0219, Supports4ByteAddr: true, Dual: true, Quad: true},
	// ISSI
	{Name: "IS25LP064", Manufacturer: "ISSI", Size: 8 * mb, ManufacturerID: 0x9d, DeviceID: 0x6017, Dual: true, Quad: true},
	// Adesto / Atmel
	{Name: "AT25DN512C", Manufacturer: "Adesto", Size: 64 * kb, ManufacturerID: 0x1f, DeviceID: 0x6501},
	{Name: "AT25SF041", Manufacturer: "Adesto", Size: 512 * kb, ManufacturerID: 0x1f, DeviceID: 0x8401, Dual: true, Quad: true},
	// Puya, Boya, XTX, Zbit
	{Name: "P25Q32H", Manufacturer: "Puya", Size: 4 * mb, ManufacturerID: 0x85, DeviceID: 0x6016, Dual: true, Quad: true},
	{Name: "BY25Q64AS", Manufacturer: "Boya", Size: 8 * mb, ManufacturerID: 0x68, DeviceID: 0x4017, Dual: true, Quad: true},
	{Name: "XT25F32B", Manufacturer: "XTX", Size: 4 * mb, ManufacturerID: 0x0b, DeviceID: 0x4016, Dual: true, Quad: true},
	{Name: "ZB25VQ64", Manufacturer: "Zbit", Size: 8 * mb, ManufacturerID: 0x5e, DeviceID: 0x4017, Dual: true, Quad: true},
}
