// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim is a simulated wrist motion controller: three axes tracking
// sinusoidal references through a position PID loop. It stands in for the
// real board during development and in tests.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Kind is the device kind under which the simulator is registered.
const Kind = "fake_controlboard"

// DefaultStep is the step interval used when none is configured.
const DefaultStep = 10 * time.Millisecond

func init() {
	device.Register(Kind, open)
}

func open(_ context.Context, opts device.Options, deps device.Dependencies) (device.Board, error) {
	step := opts.StepInterval
	if step <= 0 {
		step = DefaultStep
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	b := NewBoard()
	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	go b.Run(ctx, clk, step)
	if deps.Logger != nil {
		deps.Logger.Infof("using simulated wrist board (%s), step %v", Kind, step)
	}
	return b, nil
}

// DefaultPid is the position loop parameter set every axis starts with.
var DefaultPid = device.Pid{
	Kp:        2.0,
	Kd:        0.05,
	Ki:        0.5,
	MaxInt:    10,
	Scale:     1,
	MaxOutput: 50,
}

// per-axis reference waveform: amplitude in degrees, frequency in Hz
var waveforms = [wrist.NumAxes]struct{ amp, freq float64 }{
	wrist.Yaw:   {30, 0.2},
	wrist.Roll:  {20, 0.3},
	wrist.Pitch: {15, 0.25},
}

// Board is the simulated control board. It is safe for concurrent use.
type Board struct {
	mu sync.Mutex

	t        float64
	pos      wrist.Triple
	integral wrist.Triple
	prevErr  wrist.Triple

	refs wrist.Triple
	errs wrist.Triple
	outs wrist.Triple
	pids device.Pids

	closed bool
	stop   context.CancelFunc
}

// NewBoard returns a board at rest with DefaultPid on every axis.
func NewBoard() *Board {
	b := &Board{}
	for _, a := range wrist.Axes {
		b.pids[a] = DefaultPid
	}
	return b
}

// Step advances the simulation by dt seconds.
func (b *Board) Step(dt float64) {
	if dt <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.t += dt
	for _, a := range wrist.Axes {
		w := waveforms[a]
		p := b.pids[a]

		ref := w.amp * math.Sin(2*math.Pi*w.freq*b.t)
		e := ref - b.pos[a]

		b.integral[a] = clamp(b.integral[a]+e*dt, p.MaxInt)
		deriv := (e - b.prevErr[a]) / dt
		b.prevErr[a] = e

		scale := p.Scale
		if scale == 0 {
			scale = 1
		}
		out := (p.Kp*e+p.Ki*b.integral[a]+p.Kd*deriv)*scale + p.Offset
		out = clamp(out, p.MaxOutput)

		b.pos[a] += out * dt
		b.refs[a] = ref
		b.errs[a] = e
		b.outs[a] = out
	}
}

func clamp(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(limit, v))
}

// Run steps the board every interval until ctx is done.
func (b *Board) Run(ctx context.Context, clk clock.Clock, interval time.Duration) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Step(interval.Seconds())
		}
	}
}

func (b *Board) check(pt device.PidType) error {
	if b.closed {
		return device.ErrClosed
	}
	if pt != device.PidTypePosition {
		return fmt.Errorf("pid type %q not simulated", pt)
	}
	return nil
}

func (b *Board) Capabilities(context.Context) ([]device.Capability, error) {
	return []device.Capability{device.CapEncoders, device.CapPIDControl, device.CapPositionControl}, nil
}

func (b *Board) Axes(context.Context) (int, error) {
	return wrist.NumAxes, nil
}

func (b *Board) Encoders(context.Context) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return wrist.Triple{}, device.ErrClosed
	}
	return b.pos, nil
}

func (b *Board) PidReferences(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(pt); err != nil {
		return wrist.Triple{}, err
	}
	return b.refs, nil
}

func (b *Board) PidErrors(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(pt); err != nil {
		return wrist.Triple{}, err
	}
	return b.errs, nil
}

func (b *Board) PidOutputs(_ context.Context, pt device.PidType) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(pt); err != nil {
		return wrist.Triple{}, err
	}
	return b.outs, nil
}

func (b *Board) Pids(_ context.Context, pt device.PidType) (device.Pids, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(pt); err != nil {
		return device.Pids{}, err
	}
	return b.pids, nil
}

func (b *Board) SetPids(_ context.Context, pt device.PidType, pids device.Pids) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(pt); err != nil {
		return err
	}
	b.pids = pids
	return nil
}

func (b *Board) TargetPositions(context.Context) (wrist.Triple, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return wrist.Triple{}, device.ErrClosed
	}
	return b.refs, nil
}

// Close stops the stepping goroutine started by the registered factory.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.stop != nil {
		b.stop()
	}
	return nil
}
