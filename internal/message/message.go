// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package message implements the structured numeric messages carried on
// channels: an ordered sequence of float64 fields where a field may itself
// be a nested list.
package message

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a single message field: either a number or a nested list.
type Value struct {
	num  float64
	list *Message
}

// Float64 returns a numeric Value.
func Float64(v float64) Value {
	return Value{num: v}
}

// IsList reports whether v holds a nested list.
func (v Value) IsList() bool {
	return v.list != nil
}

// AsFloat64 returns the number held by v. ok is false for lists.
func (v Value) AsFloat64() (float64, bool) {
	if v.list != nil {
		return 0, false
	}
	return v.num, true
}

// AsList returns the nested list held by v, or nil.
func (v Value) AsList() *Message {
	return v.list
}

// Message is an ordered, appendable and clearable sequence of values.
// The zero value is an empty message ready to use.
type Message struct {
	values []Value
}

// New returns a message holding the given numbers.
func New(values ...float64) *Message {
	m := &Message{}
	for _, v := range values {
		m.AddFloat64(v)
	}
	return m
}

// AddFloat64 appends a number.
func (m *Message) AddFloat64(v float64) {
	m.values = append(m.values, Float64(v))
}

// AddList appends an empty nested list and returns it for filling.
func (m *Message) AddList() *Message {
	sub := &Message{}
	m.values = append(m.values, Value{list: sub})
	return sub
}

// Clear removes every value, keeping the backing storage.
func (m *Message) Clear() {
	m.values = m.values[:0]
}

// Len returns the number of top-level values.
func (m *Message) Len() int {
	return len(m.values)
}

// Get returns the i-th top-level value.
func (m *Message) Get(i int) Value {
	return m.values[i]
}

// Floats returns all top-level values as numbers. It fails if any of them
// is a nested list.
func (m *Message) Floats() ([]float64, error) {
	out := make([]float64, 0, len(m.values))
	for i, v := range m.values {
		f, ok := v.AsFloat64()
		if !ok {
			return nil, fmt.Errorf("field %d is a list, not a number", i)
		}
		out = append(out, f)
	}
	return out, nil
}

// String renders m in text form, e.g. "1 2 (3 4)".
func (m *Message) String() string {
	var sb strings.Builder
	m.writeText(&sb)
	return sb.String()
}

func (m *Message) writeText(sb *strings.Builder) {
	for i, v := range m.values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if v.list != nil {
			sb.WriteByte('(')
			v.list.writeText(sb)
			sb.WriteByte(')')
			continue
		}
		sb.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
	}
}
