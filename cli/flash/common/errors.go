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

import (
	"context"
	"fmt"

	"github.com/juju/errors"
)

// Kind classifies a failure of a flash operation.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotConnected
	KindNotInitialized
	KindTransferFailure
	KindTimeout
	KindVerifyMismatch
	KindInputValidation
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not connected"
	case KindNotInitialized:
		return "not initialized"
	case KindTransferFailure:
		return "transfer failure"
	case KindTimeout:
		return "timeout"
	case KindVerifyMismatch:
		return "verify mismatch"
	case KindInputValidation:
		return "invalid input"
	case KindCancelled:
		return "cancelled"
	}
	return "unexpected"
}

// Error is the root cause of every failure reported by the flash core.
// It deliberately has no Cause method so that errors.Cause() stops at it
// when it is wrapped with errors.Annotatef or errors.Trace.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func newError(k Kind, op string, err error, f string, args ...interface{}) error {
	return &Error{Kind: k, Op: op, Msg: fmt.Sprintf(f, args...), Err: err}
}

func NotConnectedf(op string, f string, args ...interface{}) error {
	return newError(KindNotConnected, op, nil, f, args...)
}

func NotInitializedf(op string, f string, args ...interface{}) error {
	return newError(KindNotInitialized, op, nil, f, args...)
}

func InputValidationf(op string, f string, args ...interface{}) error {
	return newError(KindInputValidation, op, nil, f, args...)
}

func Timeoutf(op string, f string, args ...interface{}) error {
	return newError(KindTimeout, op, nil, f, args...)
}

func Unexpectedf(op string, f string, args ...interface{}) error {
	return newError(KindUnexpected, op, nil, f, args...)
}

// TransferFailure wraps an error returned by the transport. A context error
// raised inside the transport becomes KindCancelled.
func TransferFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	cause := errors.Cause(err)
	if _, ok := cause.(*Error); ok {
		return err
	}
	if isContextErr(cause) {
		return Cancelled(op, err)
	}
	return &Error{Kind: KindTransferFailure, Op: op, Err: err}
}

// Cancelled converts a context error into a KindCancelled error.
func Cancelled(op string, err error) error {
	return &Error{Kind: KindCancelled, Op: op, Err: err}
}

// CheckContext returns a KindCancelled error if ctx is done.
func CheckContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return Cancelled(op, err)
	}
	return nil
}

// MismatchError reports the first byte that differs between the expected
// and the actual contents. Offset is absolute (chip address).
type MismatchError struct {
	Offset   uint32
	Expected byte
	Actual   byte
	// Count is the total number of differing bytes, if known (0 otherwise).
	Count int
}

func (e *MismatchError) Error() string {
	s := fmt.Sprintf("mismatch at 0x%x: expected 0x%02x, got 0x%02x", e.Offset, e.Expected, e.Actual)
	if e.Count > 1 {
		s += fmt.Sprintf(" (%d bytes differ)", e.Count)
	}
	return s
}

// KindOf returns the Kind of err, looking through juju/errors annotations.
// Errors not produced by the flash core are KindUnexpected.
func KindOf(err error) Kind {
	cause := errors.Cause(err)
	switch e := cause.(type) {
	case nil:
		return KindUnexpected
	case *Error:
		return e.Kind
	case *MismatchError:
		return KindVerifyMismatch
	}
	if isContextErr(cause) {
		return KindCancelled
	}
	return KindUnexpected
}

func isContextErr(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded
}

// Mismatch returns the MismatchError at the root of err, if any.
func Mismatch(err error) (*MismatchError, bool) {
	me, ok := errors.Cause(err).(*MismatchError)
	return me, ok
}
