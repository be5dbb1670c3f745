// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wrist

import (
	"fmt"
	"math"
)

// Gains is a PID gain triple in wire order: Kp, Kd, Ki.
type Gains struct {
	Kp float64 `json:"kp"`
	Kd float64 `json:"kd"`
	Ki float64 `json:"ki"`
}

// GainsFrom builds Gains from exactly three finite values ordered Kp, Kd, Ki.
func GainsFrom(values []float64) (Gains, error) {
	if len(values) != 3 {
		return Gains{}, fmt.Errorf("gain triple needs 3 values (Kp Kd Ki), got %d", len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Gains{}, fmt.Errorf("gain %d is not finite: %g", i, v)
		}
	}
	return Gains{Kp: values[0], Kd: values[1], Ki: values[2]}, nil
}

// Values returns the gains in wire order.
func (g Gains) Values() []float64 {
	return []float64{g.Kp, g.Kd, g.Ki}
}

func (g Gains) String() string {
	return fmt.Sprintf("(%g %g %g)", g.Kp, g.Kd, g.Ki)
}
