// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package message

import (
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestAppendAndClear(t *testing.T) {
	m := New(1.0, 2.0)
	m.AddFloat64(3.0)
	test.That(t, m.Len(), test.ShouldEqual, 3)

	f, ok := m.Get(2).AsFloat64()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, f, test.ShouldEqual, 3.0)

	m.Clear()
	test.That(t, m.Len(), test.ShouldEqual, 0)
}

func TestFloatsRejectsLists(t *testing.T) {
	m := New(1)
	m.AddList().AddFloat64(2)
	_, err := m.Floats()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestEncodeNested(t *testing.T) {
	m := &Message{}
	sub := m.AddList()
	sub.AddFloat64(5.0)
	sub.AddFloat64(0.2)
	sub.AddFloat64(1.5)

	data, err := Encode(m)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "[[5,0.2,1.5]]")
	test.That(t, m.String(), test.ShouldEqual, "(5 0.2 1.5)")

	empty, err := Encode(&Message{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(empty), test.ShouldEqual, "[]")
}

func TestDecodeJSON(t *testing.T) {
	m, err := Decode([]byte(` [[5.0, 0.2, 1.5], 7] `))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Len(), test.ShouldEqual, 2)
	test.That(t, m.Get(0).IsList(), test.ShouldBeTrue)

	inner, err := m.Get(0).AsList().Floats()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inner, test.ShouldResemble, []float64{5.0, 0.2, 1.5})

	_, err = Decode([]byte(`["a"]`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDecodeText(t *testing.T) {
	m, err := Decode([]byte("(5.0 0.2 1.5)\n"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Len(), test.ShouldEqual, 1)
	inner, err := m.Get(0).AsList().Floats()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, inner, test.ShouldResemble, []float64{5.0, 0.2, 1.5})

	flat, err := Decode([]byte("0.9 1.9 2.9"))
	test.That(t, err, test.ShouldBeNil)
	values, err := flat.Floats()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, values, test.ShouldResemble, []float64{0.9, 1.9, 2.9})

	for _, bad := range []string{"(1 2", "1 2)", "1 x 3"} {
		_, err := Decode([]byte(bad))
		test.That(t, err, test.ShouldNotBeNil)
	}
}

func TestDecodeRejectsDeepNesting(t *testing.T) {
	for _, payload := range []string{
		"((1))",
		strings.Repeat("(", 1_000_000),
		"[[[1]]]",
		strings.Repeat("[", 10_000) + strings.Repeat("]", 10_000),
	} {
		_, err := Decode([]byte(payload))
		test.That(t, err, test.ShouldNotBeNil)
	}

	m, err := Decode([]byte("1 (2 3) 4"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Len(), test.ShouldEqual, 3)
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	_, err := Decode([]byte(strings.Repeat("1 ", MaxPayload)))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "exceeds")
}
