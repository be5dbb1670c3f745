// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package devicetest provides a scriptable in-memory board for tests.
package devicetest

import (
	"context"
	"errors"
	"sync"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// ErrInjected is returned by reads a test asked to fail.
var ErrInjected = errors.New("devicetest: injected failure")

// Board implements device.Board with fields a test sets directly.
// Method-name keys in Fail make the matching call return ErrInjected.
type Board struct {
	mu sync.Mutex

	Caps    []device.Capability
	NumAxes int

	Positions  wrist.Triple
	References wrist.Triple
	Errors     wrist.Triple
	Outputs    wrist.Triple
	Targets    wrist.Triple
	Params     device.Pids

	Fail map[string]bool

	SetPidsCalls int
	CloseCalls   int
	LastPidType  device.PidType
}

// NewBoard returns a three-axis board offering every capability.
func NewBoard() *Board {
	return &Board{
		Caps:    []device.Capability{device.CapEncoders, device.CapPIDControl, device.CapPositionControl},
		NumAxes: wrist.NumAxes,
		Fail:    map[string]bool{},
	}
}

func (b *Board) failing(method string) bool {
	return b.Fail[method]
}

func (b *Board) Capabilities(context.Context) ([]device.Capability, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing("Capabilities") {
		return nil, ErrInjected
	}
	return append([]device.Capability(nil), b.Caps...), nil
}

func (b *Board) Axes(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing("Axes") {
		return 0, ErrInjected
	}
	return b.NumAxes, nil
}

func (b *Board) Encoders(context.Context) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing("Encoders") {
		return wrist.Triple{}, ErrInjected
	}
	return b.Positions, nil
}

func (b *Board) PidReferences(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastPidType = pt
	if b.failing("PidReferences") {
		return wrist.Triple{}, ErrInjected
	}
	return b.References, nil
}

func (b *Board) PidErrors(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastPidType = pt
	if b.failing("PidErrors") {
		return wrist.Triple{}, ErrInjected
	}
	return b.Errors, nil
}

func (b *Board) PidOutputs(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastPidType = pt
	if b.failing("PidOutputs") {
		return wrist.Triple{}, ErrInjected
	}
	return b.Outputs, nil
}

func (b *Board) Pids(_ context.Context, pt device.PidType) (device.Pids, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastPidType = pt
	if b.failing("Pids") {
		return device.Pids{}, ErrInjected
	}
	return b.Params, nil
}

func (b *Board) SetPids(_ context.Context, pt device.PidType, pids device.Pids) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastPidType = pt
	if b.failing("SetPids") {
		return ErrInjected
	}
	b.SetPidsCalls++
	b.Params = pids
	return nil
}

func (b *Board) TargetPositions(context.Context) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing("TargetPositions") {
		return wrist.Triple{}, ErrInjected
	}
	return b.Targets, nil
}

func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCalls++
	return nil
}

// Snapshot returns the current parameters and call counters under the lock.
func (b *Board) Snapshot() (params device.Pids, setCalls, closeCalls int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Params, b.SetPidsCalls, b.CloseCalls
}
