// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

var (
	ErrClosed      = errors.New("device closed")
	ErrUnsupported = errors.New("capability not supported")
	ErrUnknownKind = errors.New("unknown device kind")
)

// Options selects and addresses a board.
type Options struct {
	Device     string // registered kind, e.g. "remote_controlboard"
	Remote     string // endpoint name of the board
	Local      string // endpoint name of this client
	SerialPort string
	BaudRate   uint
	Timeout    time.Duration // per call

	StepInterval time.Duration // simulated boards only
}

// Dependencies are the shared resources a factory may use.
type Dependencies struct {
	Network *transport.Network
	Logger  logging.Logger
	Clock   clock.Clock // nil means the wall clock
}

// Factory connects to a board of one kind.
type Factory func(ctx context.Context, opts Options, deps Dependencies) (Board, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a board kind available to Open. It panics on duplicates.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[kind]; dup {
		panic(fmt.Sprintf("device: kind %q registered twice", kind))
	}
	registry[kind] = f
}

// Kinds lists the registered board kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open connects to the board described by opts.
func Open(ctx context.Context, opts Options, deps Dependencies) (*Driver, error) {
	registryMu.RLock()
	f, ok := registry[opts.Device]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownKind, opts.Device, Kinds())
	}

	board, err := f(ctx, opts, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", opts.Remote, err)
	}
	return NewDriver(board, opts.Remote), nil
}

// Driver is the handle to one open board. Views negotiated from it stop
// working once it is closed.
type Driver struct {
	name string

	mu     sync.RWMutex
	board  Board
	closed bool
}

// NewDriver wraps an already connected board.
func NewDriver(board Board, name string) *Driver {
	return &Driver{board: board, name: name}
}

// Name returns the remote endpoint name of the board.
func (d *Driver) Name() string {
	return d.name
}

// IsOpen reports whether the handle can still be used.
func (d *Driver) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.closed
}

func (d *Driver) live() (Board, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, fmt.Errorf("%s: %w", d.name, ErrClosed)
	}
	return d.board, nil
}

func (d *Driver) negotiate(ctx context.Context, want Capability) error {
	board, err := d.live()
	if err != nil {
		return err
	}
	caps, err := board.Capabilities(ctx)
	if err != nil {
		return fmt.Errorf("query capabilities of %s: %w", d.name, err)
	}
	for _, c := range caps {
		if c == want {
			return nil
		}
	}
	return fmt.Errorf("%w: %s does not offer %s", ErrUnsupported, d.name, want)
}

// ViewEncoders negotiates the encoder readout view.
func (d *Driver) ViewEncoders(ctx context.Context) (Encoders, error) {
	if err := d.negotiate(ctx, CapEncoders); err != nil {
		return nil, err
	}
	return encodersView{d}, nil
}

// ViewPIDControl negotiates the PID control view.
func (d *Driver) ViewPIDControl(ctx context.Context) (PIDControl, error) {
	if err := d.negotiate(ctx, CapPIDControl); err != nil {
		return nil, err
	}
	return pidView{d}, nil
}

// ViewPositionControl negotiates the position control view.
func (d *Driver) ViewPositionControl(ctx context.Context) (PositionControl, error) {
	if err := d.negotiate(ctx, CapPositionControl); err != nil {
		return nil, err
	}
	return positionView{d}, nil
}

// Close releases the board. Only the first call reaches the board.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	board := d.board
	d.mu.Unlock()

	return board.Close()
}

type encodersView struct{ d *Driver }

func (v encodersView) Encoders(ctx context.Context) (wrist.Triple, error) {
	b, err := v.d.live()
	if err != nil {
		return wrist.Triple{}, err
	}
	return b.Encoders(ctx)
}

type pidView struct{ d *Driver }

func (v pidView) PidReferences(ctx context.Context, pt PidType) (wrist.Triple, error) {
	b, err := v.d.live()
	if err != nil {
		return wrist.Triple{}, err
	}
	return b.PidReferences(ctx, pt)
}

func (v pidView) PidErrors(ctx context.Context, pt PidType) (wrist.Triple, error) {
	b, err := v.d.live()
	if err != nil {
		return wrist.Triple{}, err
	}
	return b.PidErrors(ctx, pt)
}

func (v pidView) PidOutputs(ctx context.Context, pt PidType) (wrist.Triple, error) {
	b, err := v.d.live()
	if err != nil {
		return wrist.Triple{}, err
	}
	return b.PidOutputs(ctx, pt)
}

func (v pidView) Pids(ctx context.Context, pt PidType) (Pids, error) {
	b, err := v.d.live()
	if err != nil {
		return Pids{}, err
	}
	return b.Pids(ctx, pt)
}

func (v pidView) SetPids(ctx context.Context, pt PidType, pids Pids) error {
	b, err := v.d.live()
	if err != nil {
		return err
	}
	return b.SetPids(ctx, pt, pids)
}

type positionView struct{ d *Driver }

func (v positionView) Axes(ctx context.Context) (int, error) {
	b, err := v.d.live()
	if err != nil {
		return 0, err
	}
	return b.Axes(ctx)
}

func (v positionView) TargetPositions(ctx context.Context) (wrist.Triple, error) {
	b, err := v.d.live()
	if err != nil {
		return wrist.Triple{}, err
	}
	return b.TargetPositions(ctx)
}
