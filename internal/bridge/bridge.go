// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bridge polls the wrist control board for its position loop
// telemetry, republishes it for the scope and applies gain updates that
// arrive on the gains channel.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Channel names owned by the bridge.
const (
	PidOutPort = "/CbWrist/pidout:o"
	RefsPort   = "/CbWrist/refs:o"
	TrajPort   = "/CbWrist/traj:o"
	GainsPort  = "/CbWrist/pidK:i"

	ScopePidOut = "/scope/pidout:i"
	ScopeRefs   = "/scope/refs:i"
	ScopeTraj   = "/scope/traj:i"
)

// Period is the fixed tick length of the bridge.
const Period = 100 * time.Millisecond

// ScopeWiring lists the out port to scope channel connections made when
// wiring is enabled.
var ScopeWiring = [][2]string{
	{PidOutPort, ScopePidOut},
	{RefsPort, ScopeRefs},
	{TrajPort, ScopeTraj},
}

// State is the lifecycle stage of a Bridge.
type State int

const (
	StateOpening State = iota
	StateRunning
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SampleReader reads the position loop telemetry.
type SampleReader interface {
	PidReferences(ctx context.Context, pt device.PidType) (wrist.Triple, error)
	PidErrors(ctx context.Context, pt device.PidType) (wrist.Triple, error)
	PidOutputs(ctx context.Context, pt device.PidType) (wrist.Triple, error)
}

// ParamStore reads and writes the PID parameter sets.
type ParamStore interface {
	Pids(ctx context.Context, pt device.PidType) (device.Pids, error)
	SetPids(ctx context.Context, pt device.PidType, pids device.Pids) error
}

// PositionReader reports the geometry of the position controller.
type PositionReader interface {
	Axes(ctx context.Context) (int, error)
}

// Handle is an open board from which capability views are negotiated.
// *device.Driver implements it.
type Handle interface {
	ViewEncoders(ctx context.Context) (device.Encoders, error)
	ViewPIDControl(ctx context.Context) (device.PIDControl, error)
	ViewPositionControl(ctx context.Context) (device.PositionControl, error)
	Close() error
}

// Opener acquires the board handle.
type Opener func(ctx context.Context, opts device.Options) (Handle, error)

// Config selects the board and the bridge policies.
type Config struct {
	Device      device.Options
	ScopeWiring bool
	GainMode    string
	GainAxis    wrist.Axis
	InboxDepth  int
}

// ConfigFrom builds the bridge configuration from the loaded file.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Device: device.Options{
			Device:     cfg.Device,
			Remote:     cfg.Remote,
			Local:      cfg.Local,
			SerialPort: cfg.SerialPort,
			BaudRate:   cfg.SerialBaudRate,
			Timeout:    cfg.CallTimeout(),

			StepInterval: cfg.StepInterval(),
		},
		ScopeWiring: cfg.ScopeWiring,
		GainMode:    cfg.GainMode,
		GainAxis:    cfg.GainAxis,
		InboxDepth:  cfg.InboxDepth,
	}
}

// Bridge is the controller bridge loop. It is driven by periodic.Run and
// never starts goroutines of its own.
type Bridge struct {
	net    *transport.Network
	open   Opener
	cfg    Config
	logger logging.Logger

	state State

	handle   Handle
	encoders device.Encoders
	samples  SampleReader
	params   ParamStore
	position PositionReader

	pidOut  *transport.OutPort
	refsOut *transport.OutPort
	trajOut *transport.OutPort
	gainsIn *transport.InPort

	// release functions in acquisition order
	acquired []func() error
}

// New returns a bridge that will open its board with open and its ports on
// net.
func New(net *transport.Network, open Opener, cfg Config, logger logging.Logger) *Bridge {
	if cfg.GainMode == "" {
		cfg.GainMode = config.GainModeUniform
	}
	if cfg.InboxDepth <= 0 {
		cfg.InboxDepth = 1
	}
	return &Bridge{
		net:    net,
		open:   open,
		cfg:    cfg,
		logger: logger,
		state:  StateOpening,
	}
}

// State returns the current lifecycle stage.
func (b *Bridge) State() State {
	return b.state
}

// Period implements periodic.Module.
func (b *Bridge) Period() time.Duration {
	return Period
}

// Configure opens the board, negotiates its views and opens the ports.
// Any failure releases what was acquired so far and leaves the bridge in
// StateFailed.
func (b *Bridge) Configure(ctx context.Context) error {
	if b.state != StateOpening {
		return fmt.Errorf("bridge is %s", b.state)
	}
	if err := b.configure(ctx); err != nil {
		b.state = StateFailed
		return multierr.Append(err, b.release())
	}
	b.state = StateRunning
	b.logger.Infof("bridge running against %s, gain mode %s", b.cfg.Device.Remote, b.cfg.GainMode)
	return nil
}

func (b *Bridge) configure(ctx context.Context) error {
	remote := b.cfg.Device.Remote

	handle, err := b.open(ctx, b.cfg.Device)
	if err != nil {
		return fmt.Errorf("unable to connect to device %s: %w", remote, err)
	}
	b.handle = handle
	b.acquired = append(b.acquired, handle.Close)

	if b.encoders, err = handle.ViewEncoders(ctx); err != nil {
		return fmt.Errorf("unable to open encoders interface on %s: %w", remote, err)
	}
	pid, err := handle.ViewPIDControl(ctx)
	if err != nil {
		return fmt.Errorf("unable to open pid control interface on %s: %w", remote, err)
	}
	b.samples, b.params = pid, pid
	if b.position, err = handle.ViewPositionControl(ctx); err != nil {
		return fmt.Errorf("unable to open position control interface on %s: %w", remote, err)
	}

	axes, err := b.position.Axes(ctx)
	if err != nil {
		return fmt.Errorf("unable to read axes of %s: %w", remote, err)
	}
	if axes != wrist.NumAxes {
		return fmt.Errorf("device %s has %d axes, want %d", remote, axes, wrist.NumAxes)
	}
	if pos, err := b.encoders.Encoders(ctx); err != nil {
		b.logger.Debugf("could not read encoders of %s: %v", remote, err)
	} else {
		b.logger.Infof("wrist encoders at %v", pos)
	}

	for _, out := range []struct {
		name string
		port **transport.OutPort
	}{
		{PidOutPort, &b.pidOut},
		{RefsPort, &b.refsOut},
		{TrajPort, &b.trajOut},
	} {
		p, err := b.net.OpenOutPort(out.name)
		if err != nil {
			return fmt.Errorf("unable to open port %s: %w", out.name, err)
		}
		*out.port = p
		b.acquired = append(b.acquired, p.Close)
	}

	in, err := b.net.OpenInPort(GainsPort, b.cfg.InboxDepth)
	if err != nil {
		return fmt.Errorf("unable to open port %s: %w", GainsPort, err)
	}
	b.gainsIn = in
	b.acquired = append(b.acquired, in.Close)

	if b.cfg.ScopeWiring {
		for _, w := range ScopeWiring {
			src, dst := w[0], w[1]
			if err := b.net.Connect(src, dst); err != nil {
				return fmt.Errorf("unable to connect %s to %s: %w", src, dst, err)
			}
			b.acquired = append(b.acquired, func() error { return b.net.Disconnect(src, dst) })
			b.logger.Debugf("connected %s to %s", src, dst)
		}
	}
	return nil
}

// release undoes acquisitions in reverse order.
func (b *Bridge) release() error {
	var err error
	for i := len(b.acquired) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.acquired[i]())
	}
	b.acquired = nil
	return err
}

// Update runs one tick. It always asks to continue.
func (b *Bridge) Update(ctx context.Context) bool {
	if b.state != StateRunning {
		return false
	}

	refs, refsErr := b.samples.PidReferences(ctx, device.PidTypePosition)
	if refsErr != nil {
		b.logger.Warnf("could not read pid references: %v", refsErr)
	}
	errs, errsErr := b.samples.PidErrors(ctx, device.PidTypePosition)
	if errsErr != nil {
		b.logger.Warnf("could not read pid errors: %v", errsErr)
	}
	outs, outsErr := b.samples.PidOutputs(ctx, device.PidTypePosition)
	if outsErr != nil {
		b.logger.Warnf("could not read pid outputs: %v", outsErr)
	}

	if outsErr == nil {
		b.write(b.pidOut, outs)
	}
	if refsErr == nil {
		b.write(b.refsOut, refs)
	}
	if refsErr == nil && errsErr == nil {
		b.write(b.trajOut, refs.Sub(errs))
	}

	b.pollGains(ctx)
	return true
}

func (b *Bridge) write(port *transport.OutPort, t wrist.Triple) {
	if err := port.Write(message.New(t[:]...)); err != nil {
		b.logger.Errorf("could not write to port %s: %v", port.Name(), err)
	}
}

func (b *Bridge) pollGains(ctx context.Context) {
	msg, ok := b.gainsIn.TryRead()
	if !ok {
		return
	}
	gains, err := b.parseGains(msg)
	if err != nil {
		b.logger.Warnf("ignoring gain message %s: %v", msg, err)
		return
	}
	b.logger.Infof("received pid gains (Kp Kd Ki) %s", gains)

	axes := wrist.Axes[:]
	if b.cfg.GainMode == config.GainModeSingle {
		axes = []wrist.Axis{b.cfg.GainAxis}
	}
	if err := b.applyGains(ctx, gains, axes); err != nil {
		b.logger.Errorf("could not set pid params: %v", err)
		return
	}
	b.logger.Infof("set pid params %s on %v", gains, axes)
}

var errNotNested = errors.New("first field is not a nested triple")

func (b *Bridge) parseGains(msg *message.Message) (wrist.Gains, error) {
	if b.cfg.GainMode == config.GainModeSingle {
		values, err := msg.Floats()
		if err != nil {
			return wrist.Gains{}, err
		}
		return wrist.GainsFrom(values)
	}
	if msg.Len() == 0 {
		return wrist.Gains{}, errNotNested
	}
	inner := msg.Get(0).AsList()
	if inner == nil {
		return wrist.Gains{}, errNotNested
	}
	values, err := inner.Floats()
	if err != nil {
		return wrist.Gains{}, err
	}
	return wrist.GainsFrom(values)
}

// applyGains overwrites Kp, Kd and Ki of the given axes, keeping every
// other parameter as read from the board.
func (b *Bridge) applyGains(ctx context.Context, g wrist.Gains, axes []wrist.Axis) error {
	pids, err := b.params.Pids(ctx, device.PidTypePosition)
	if err != nil {
		return fmt.Errorf("read pid params: %w", err)
	}
	for _, a := range axes {
		pids[a] = pids[a].WithGains(g)
	}
	if err := b.params.SetPids(ctx, device.PidTypePosition, pids); err != nil {
		return fmt.Errorf("write pid params: %w", err)
	}
	return nil
}

// Close releases the ports, the scope wiring and the board. Calling it
// again, or after a failed Configure, is harmless.
func (b *Bridge) Close() error {
	if b.state == StateClosed {
		return nil
	}
	err := b.release()
	if b.state != StateFailed {
		b.state = StateClosed
	}
	return err
}
