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

import (
	"io/ioutil"
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/mongoose-os/flashprog/common/ourio"
)

// Registry is an ordered, read-only list of chips.
type Registry struct {
	chips []Chip
}

// NewRegistry validates chips and returns a registry holding copies of them.
func NewRegistry(chips []Chip) (*Registry, error) {
	r := &Registry{chips: make([]Chip, 0, len(chips))}
	for i, c := range chips {
		c = c.withDefaults()
		if err := c.Validate(); err != nil {
			return nil, errors.Annotatef(err, "chip #%d", i)
		}
		r.chips = append(r.chips, c)
	}
	return r, nil
}

func (r *Registry) Len() int {
	return len(r.chips)
}

// Chips returns a copy of the registered chips, in catalog order.
func (r *Registry) Chips() []Chip {
	res := make([]Chip, len(r.chips))
	copy(res, r.chips)
	return res
}

// Match returns all chips with the given manufacturer and device id, in catalog order.
func (r *Registry) Match(mfg byte, dev uint16) []Chip {
	var res []Chip
	for _, c := range r.chips {
		if c.ManufacturerID == mfg && c.DeviceID == dev {
			res = append(res, c)
		}
	}
	return res
}

// Find returns the first chip with the given name.
func (r *Registry) Find(name string) (Chip, bool) {
	for _, c := range r.chips {
		if c.Name == name {
			return c, true
		}
	}
	return Chip{}, false
}

type catalog struct {
	Chips []Chip `yaml:"chips"`
}

// Parse reads a YAML catalog:
//
//	chips:
//	- name: W25Q128FV
//	  manufacturer: Winbond
//	  size: 16777216
//	  manufacturer_id: 0xef
//	  device_id: 0x4018
func Parse(data []byte) (*Registry, error) {
	var cat catalog
	if err := yaml.UnmarshalStrict(data, &cat); err != nil {
		return nil, errors.Annotatef(err, "invalid chip catalog")
	}
	return NewRegistry(cat.Chips)
}

func Load(fname string) (*Registry, error) {
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read chip catalog")
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "%s", fname)
	}
	glog.Infof("Loaded %d chips from %s", r.Len(), fname)
	return r, nil
}

// Save writes the registry as a YAML catalog that Load accepts. It returns
// false if the file already had the same contents.
func (r *Registry) Save(fname string, perm os.FileMode) (bool, error) {
	changed, err := ourio.WriteYAMLFileIfDifferent(fname, &catalog{Chips: r.chips}, perm)
	return changed, errors.Trace(err)
}

// Builtin returns the registry of chips compiled into the binary.
func Builtin() *Registry {
	r, err := NewRegistry(builtinChips)
	if err != nil {
		panic(err)
	}
	return r
}
