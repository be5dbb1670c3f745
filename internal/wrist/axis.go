// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wrist

import (
	"fmt"
	"strings"
)

// Axis identifies one controlled degree of freedom of the wrist.
// The numeric value is the joint index on the control board.
type Axis int

const (
	Yaw Axis = iota
	Roll
	Pitch
)

// NumAxes is the length of every sample and parameter array.
const NumAxes = 3

// Axes lists every axis in board order.
var Axes = [NumAxes]Axis{Yaw, Roll, Pitch}

func (a Axis) String() string {
	switch a {
	case Yaw:
		return "yaw"
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	}
	return fmt.Sprintf("axis(%d)", int(a))
}

// Valid reports whether a is one of the three wrist axes.
func (a Axis) Valid() bool {
	return a >= Yaw && a <= Pitch
}

// ParseAxis accepts an axis name ("yaw", "roll", "pitch") or its index.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaw", "0":
		return Yaw, nil
	case "roll", "1":
		return Roll, nil
	case "pitch", "2":
		return Pitch, nil
	}
	return 0, fmt.Errorf("unknown axis %q (want yaw, roll or pitch)", s)
}

// Triple holds one value per axis, indexed by Axis.
type Triple [NumAxes]float64

// At returns the value for axis a.
func (t Triple) At(a Axis) float64 {
	return t[a]
}

// Sub returns t[i] - o[i] for every axis.
func (t Triple) Sub(o Triple) Triple {
	var out Triple
	for _, a := range Axes {
		out[a] = t[a] - o[a]
	}
	return out
}

// TripleFrom copies exactly NumAxes values into a Triple.
func TripleFrom(values []float64) (Triple, error) {
	var t Triple
	if len(values) != NumAxes {
		return t, fmt.Errorf("expected %d values, got %d", NumAxes, len(values))
	}
	copy(t[:], values)
	return t, nil
}
