// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package device models a three-axis position-controlled motion board and
// the narrow capability views negotiated from it.
package device

import (
	"context"

	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Capability names one functional subset of a board.
type Capability string

const (
	CapEncoders        Capability = "encoders"
	CapPIDControl      Capability = "pid_control"
	CapPositionControl Capability = "position_control"
)

// PidType selects which control loop of the board is addressed.
type PidType string

const (
	PidTypePosition PidType = "position"
	PidTypeVelocity PidType = "velocity"
	PidTypeTorque   PidType = "torque"
	PidTypeCurrent  PidType = "current"
)

// Pid is the parameter set of one axis' control loop.
type Pid struct {
	Kp           float64 `json:"kp"`
	Kd           float64 `json:"kd"`
	Ki           float64 `json:"ki"`
	MaxInt       float64 `json:"max_int"`
	Scale        float64 `json:"scale"`
	MaxOutput    float64 `json:"max_output"`
	Offset       float64 `json:"offset"`
	StictionUp   float64 `json:"stiction_up"`
	StictionDown float64 `json:"stiction_down"`
	Kff          float64 `json:"kff"`
}

// WithGains returns p with Kp, Kd and Ki replaced and every other field kept.
func (p Pid) WithGains(g wrist.Gains) Pid {
	p.Kp = g.Kp
	p.Kd = g.Kd
	p.Ki = g.Ki
	return p
}

// Pids holds one parameter set per axis.
type Pids [wrist.NumAxes]Pid

// Board is the complete surface of a control board. Drivers implement it;
// consumers only ever see the capability views.
type Board interface {
	Capabilities(ctx context.Context) ([]Capability, error)
	Axes(ctx context.Context) (int, error)

	Encoders(ctx context.Context) (wrist.Triple, error)

	PidReferences(ctx context.Context, pt PidType) (wrist.Triple, error)
	PidErrors(ctx context.Context, pt PidType) (wrist.Triple, error)
	PidOutputs(ctx context.Context, pt PidType) (wrist.Triple, error)
	Pids(ctx context.Context, pt PidType) (Pids, error)
	SetPids(ctx context.Context, pt PidType, pids Pids) error

	TargetPositions(ctx context.Context) (wrist.Triple, error)

	Close() error
}

// Encoders reads joint positions.
type Encoders interface {
	Encoders(ctx context.Context) (wrist.Triple, error)
}

// PIDControl reads loop samples and reads/writes loop parameters.
type PIDControl interface {
	PidReferences(ctx context.Context, pt PidType) (wrist.Triple, error)
	PidErrors(ctx context.Context, pt PidType) (wrist.Triple, error)
	PidOutputs(ctx context.Context, pt PidType) (wrist.Triple, error)
	Pids(ctx context.Context, pt PidType) (Pids, error)
	SetPids(ctx context.Context, pt PidType, pids Pids) error
}

// PositionControl reads the position-control state of the board.
type PositionControl interface {
	Axes(ctx context.Context) (int, error)
	TargetPositions(ctx context.Context) (wrist.Triple, error)
}
