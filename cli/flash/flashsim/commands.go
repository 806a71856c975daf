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
package flashsim

import "github.com/golang/glog"

func (c *Chip) busy() bool {
	return c.busyLeft > 0
}

func (c *Chip) startCycle() {
	c.busyLeft = c.busyFor
	c.sr[0] &^= srWEL
}

func (c *Chip) status1() byte {
	sr := c.sr[0]
	if c.busyLeft > 0 {
		c.busyLeft--
		sr |= srBusy
	}
	if c.aai {
		sr |= srAAI
	}
	return sr
}

func (c *Chip) wel() bool {
	return c.sr[0]&srWEL != 0
}

func (c *Chip) protected() bool {
	return c.sr[0]&srBP != 0
}

// addr splits args into an address of the current width and the rest.
func (c *Chip) addr(args []byte) (uint32, []byte, bool) {
	n := 3
	if c.addr4 {
		n = 4
	}
	if len(args) < n || len(c.mem) == 0 {
		return 0, nil, false
	}
	var a uint32
	for _, b := range args[:n] {
		a = a<<8 | uint32(b)
	}
	return a % uint32(len(c.mem)), args[n:], true
}

func fill(resp []byte, v ...byte) {
	for i := range resp {
		resp[i] = v[i%len(v)]
	}
}

func (c *Chip) exec(op byte, args, resp []byte) {
	if op == 0x05 {
		fill(resp, c.status1())
		return
	}
	if c.busy() {
		glog.V(3).Infof("sim: busy, ignoring 0x%02x", op)
		return
	}
	switch op {
	case 0x06:
		c.sr[0] |= srWEL
	case 0x04:
		c.sr[0] &^= srWEL
		c.aai = false
	case 0x35:
		fill(resp, c.sr[1])
	case 0x15:
		fill(resp, c.sr[2])
	case 0x50:
		c.ewsr = true
	case 0x01, 0x31, 0x11:
		if (c.wel() || c.ewsr) && len(args) > 0 {
			idx := map[byte]int{0x01: 0, 0x31: 1, 0x11: 2}[op]
			v := args[0]
			if idx == 0 {
				v &^= srBusy | srWEL | srAAI
			}
			c.sr[idx] = v
			c.startCycle()
		}
		c.ewsr = false
	case 0x9f:
		if !c.noJEDEC {
			copy(resp, c.jedec[:])
		}
	case 0x90:
		copy(resp, c.rems[:])
	case 0xab:
		if len(args) >= 3 {
			fill(resp, c.sig)
		}
	case 0xb7:
		c.addr4 = true
	case 0xe9:
		c.addr4 = false
	case 0xc5:
		if c.wel() && len(args) > 0 {
			c.ear = args[0]
			c.sr[0] &^= srWEL
		}
	case 0x03, 0x0b:
		a, rest, ok := c.addr(args)
		if !ok {
			return
		}
		if op == 0x0b && len(rest) < 1 {
			return
		}
		for i := range resp {
			resp[i] = c.mem[(int(a)+i)%len(c.mem)]
		}
		if c.Corrupt != nil {
			c.Corrupt(a, resp)
		}
	case 0x02:
		a, data, ok := c.addr(args)
		if !ok || !c.wel() {
			return
		}
		if !c.protected() {
			page := a &^ uint32(c.pageSize-1)
			for i, b := range data {
				// Addresses wrap within the page.
				p := page + (a+uint32(i))%uint32(c.pageSize)
				c.mem[p] &= b
			}
		}
		c.startCycle()
	case 0xaf, 0xad:
		unit := 1
		if op == 0xad {
			unit = 2
		}
		data := args
		if !c.aai {
			if !c.wel() {
				return
			}
			a, rest, ok := c.addr(args)
			if !ok {
				return
			}
			c.aai, c.aaiAddr, data = true, a, rest
		}
		if len(data) < unit {
			return
		}
		if !c.protected() {
			for _, b := range data[:unit] {
				c.mem[c.aaiAddr%uint32(len(c.mem))] &= b
				c.aaiAddr++
			}
		}
		c.busyLeft = c.busyFor
	case 0x20, 0x52, 0xd8:
		size := map[byte]uint32{0x20: 4096, 0x52: 32768, 0xd8: 65536}[op]
		a, _, ok := c.addr(args)
		if !ok || !c.wel() {
			return
		}
		if !c.protected() {
			start := a &^ (size - 1)
			for i := uint32(0); i < size && int(start+i) < len(c.mem); i++ {
				c.mem[start+i] = 0xff
			}
		}
		c.startCycle()
	case 0xc7, 0x60:
		if !c.wel() {
			return
		}
		if !c.protected() {
			for i := range c.mem {
				c.mem[i] = 0xff
			}
		}
		c.startCycle()
	default:
		glog.V(3).Infof("sim: ignoring 0x%02x", op)
	}
}
