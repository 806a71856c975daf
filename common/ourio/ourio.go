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
package ourio

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	yaml "gopkg.in/yaml.v2"
)

// WriteFileIfDifferent writes data to filename unless it already holds
// exactly that. The new contents are written to a temporary file first and
// renamed over the old one, so a failed write leaves the old file intact.
// Returns true if the file was created or changed.
func WriteFileIfDifferent(filename string, data []byte, perm os.FileMode) (bool, error) {
	exData, err := ioutil.ReadFile(filename)
	if err == nil && bytes.Equal(exData, data) {
		return false, nil
	}
	tmp, err := ioutil.TempFile(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return false, errors.Trace(err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, errors.Annotatef(err, "failed to write %s", filename)
	}
	if err := tmp.Close(); err != nil {
		return false, errors.Trace(err)
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return false, errors.Trace(err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return false, errors.Annotatef(err, "failed to write %s", filename)
	}
	return true, nil
}

// WriteYAMLFileIfDifferent writes s as YAML, see WriteFileIfDifferent.
func WriteYAMLFileIfDifferent(filename string, s interface{}, perm os.FileMode) (bool, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return false, errors.Trace(err)
	}
	return WriteFileIfDifferent(filename, data, perm)
}
