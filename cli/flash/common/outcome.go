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

// Outcome is the result envelope returned by the orchestration workflows.
// Payload is only meaningful when Success is true.
type Outcome[T any] struct {
	Success bool
	Message string
	Payload T
	Err     error
}

// Kind returns the failure kind, or KindUnexpected for a failure without
// a captured error. It must not be called on a successful outcome.
func (o Outcome[T]) Kind() Kind {
	return KindOf(o.Err)
}

func Succeeded[T any](payload T, msg string) Outcome[T] {
	return Outcome[T]{Success: true, Message: msg, Payload: payload}
}

// Failed builds a failed outcome. The payload is always the zero value.
func Failed[T any](err error, msg string) Outcome[T] {
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return Outcome[T]{Message: msg, Err: err}
}
