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
package common

import "time"

// Progress describes how far a long-running operation has got.
type Progress struct {
	// Percent is 0 to 100, derived from Done and Total.
	Percent float64
	Done    int
	Total   int
	Status  string
	Start   time.Time
	// Speed is in bytes per second since Start.
	Speed float64
}

// ProgressFunc is invoked synchronously after every chunk, page or sample.
// It must return quickly: the operation is stalled while it runs.
type ProgressFunc func(p Progress)

// Tracker owns a Progress sample and publishes it to an observer.
// A nil observer is allowed.
type Tracker struct {
	p  Progress
	fn ProgressFunc
}

func NewTracker(fn ProgressFunc, status string, total int) *Tracker {
	return &Tracker{
		p:  Progress{Status: status, Total: total, Start: time.Now()},
		fn: fn,
	}
}

// Add advances the sample by n units and notifies the observer.
func (t *Tracker) Add(n int) {
	t.Set(t.p.Done + n)
}

// Set moves the sample to done units and notifies the observer.
func (t *Tracker) Set(done int) {
	t.p.Done = done
	if t.p.Total > 0 {
		t.p.Percent = float64(t.p.Done) * 100 / float64(t.p.Total)
		if t.p.Percent > 100 {
			t.p.Percent = 100
		}
	}
	if secs := time.Since(t.p.Start).Seconds(); secs > 0 {
		t.p.Speed = float64(t.p.Done) / secs
	}
	if t.fn != nil {
		t.fn(t.p)
	}
}

func (t *Tracker) SetStatus(status string) {
	t.p.Status = status
}

func (t *Tracker) Sample() Progress {
	return t.p
}
