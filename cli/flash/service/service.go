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

// Package service sequences the end-to-end programmer workflows: connect,
// detect, clear, flash and the smaller read/erase/status operations. Every
// workflow returns a common.Outcome.
package service

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/mongoose-os/flashprog/cli/flash/chipdb"
	"github.com/mongoose-os/flashprog/cli/flash/common"
	"github.com/mongoose-os/flashprog/cli/flash/detect"
)

// Protocol is one protocol family implementation.
type Protocol interface {
	detect.Target

	Family() chipdb.Family
	ExitProgrammingMode(ctx context.Context) error
	InProgrammingMode() bool
	Chip() (chipdb.Chip, bool)

	Read(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) ([]byte, error)
	Write(ctx context.Context, addr uint32, data []byte, progress common.ProgressFunc) error
	EraseChip(ctx context.Context) error
	EraseRange(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) error
	Verify(ctx context.Context, addr uint32, expected []byte, progress common.ProgressFunc) error
	IsBlank(ctx context.Context, addr uint32, length int, progress common.ProgressFunc) error

	ReadStatusRegister(ctx context.Context, idx int) (byte, error)
	BlockProtection(ctx context.Context) (byte, error)
	SetBlockProtection(ctx context.Context, bp byte) error
	ClearBlockProtection(ctx context.Context) error
}

type Option func(*Service)

// WithRand sets the source used to pick sampled addresses.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rng = r }
}

// WithProgress sets the observer invoked after every chunk, page or sample.
func WithProgress(fn common.ProgressFunc) Option {
	return func(s *Service) { s.progress = fn }
}

// Service runs one workflow at a time against one port.
type Service struct {
	port  common.Port
	proto Protocol
	reg   *chipdb.Registry

	chip  *chipdb.Chip
	ident common.Identity

	busy     int32
	rng      *rand.Rand
	progress common.ProgressFunc
}

func New(port common.Port, proto Protocol, reg *chipdb.Registry, opts ...Option) *Service {
	s := &Service{
		port:  port,
		proto: proto,
		reg:   reg,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Chip returns the chip resolved by the last successful Detect.
func (s *Service) Chip() (chipdb.Chip, bool) {
	if s.chip == nil {
		return chipdb.Chip{}, false
	}
	return *s.chip, true
}

func (s *Service) Identity() common.Identity {
	return s.ident
}

func (s *Service) IsConnected() bool {
	return s.port != nil && s.port.IsOpen()
}

func (s *Service) begin(op string) (func(), error) {
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		return nil, common.Unexpectedf(op, "another operation is in progress")
	}
	return func() { atomic.StoreInt32(&s.busy, 0) }, nil
}

func (s *Service) requireProtocol(op string) error {
	if !s.IsConnected() {
		return common.NotConnectedf(op, "adapter is not connected")
	}
	if s.proto == nil {
		return common.NotInitializedf(op, "no protocol selected")
	}
	return nil
}

func (s *Service) requireChip(op string) (chipdb.Chip, error) {
	if err := s.requireProtocol(op); err != nil {
		return chipdb.Chip{}, err
	}
	if s.chip == nil {
		return chipdb.Chip{}, common.NotInitializedf(op, "no chip detected")
	}
	return *s.chip, nil
}

// requireSize is requireChip for whole-chip operations, which need to know
// how big the chip is.
func (s *Service) requireSize(op string) (chipdb.Chip, error) {
	chip, err := s.requireChip(op)
	if err != nil {
		return chip, err
	}
	if chip.Size <= 0 {
		return chip, common.InputValidationf(op, "size of %s is unknown", chip.Name)
	}
	return chip, nil
}

func (s *Service) Connect(ctx context.Context) common.Outcome[struct{}] {
	const op = "connect"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[struct{}](err, "")
	}
	defer done()
	if s.port == nil {
		return common.Failed[struct{}](common.NotConnectedf(op, "no adapter"), "")
	}
	if s.port.IsOpen() {
		return common.Succeeded(struct{}{}, "Already connected")
	}
	if err := s.port.Open(ctx); err != nil {
		return common.Failed[struct{}](common.TransferFailure(op, err), "")
	}
	glog.Infof("adapter connected")
	return common.Succeeded(struct{}{}, "Connected")
}

func (s *Service) Disconnect(ctx context.Context) common.Outcome[struct{}] {
	const op = "disconnect"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[struct{}](err, "")
	}
	defer done()
	if !s.IsConnected() {
		return common.Succeeded(struct{}{}, "Not connected")
	}
	if s.proto != nil && s.proto.InProgrammingMode() {
		if err := s.proto.ExitProgrammingMode(ctx); err != nil {
			glog.Warningf("failed to leave programming mode: %s", err)
		}
	}
	s.chip = nil
	if err := s.port.Close(ctx); err != nil {
		return common.Failed[struct{}](common.TransferFailure(op, err), "")
	}
	glog.Infof("adapter disconnected")
	return common.Succeeded(struct{}{}, "Disconnected")
}

// Detect identifies the chip and binds it for the following operations.
func (s *Service) Detect(ctx context.Context) common.Outcome[detect.Result] {
	const op = "detect"
	done, err := s.begin(op)
	if err != nil {
		return common.Failed[detect.Result](err, "")
	}
	defer done()
	if err := s.requireProtocol(op); err != nil {
		return common.Failed[detect.Result](err, "")
	}
	s.chip = nil
	res, err := detect.Identify(ctx, s.proto, s.reg)
	if err != nil {
		return common.Failed[detect.Result](errors.Annotatef(err, "chip detection failed"), "")
	}
	s.ident = res.Identity
	chip := res.Chip
	s.chip = &chip
	msg := "Detected " + chip.String()
	if !res.Known() {
		msg = "Unknown chip: " + res.Identity.String()
	}
	return common.Succeeded(*res, msg)
}
