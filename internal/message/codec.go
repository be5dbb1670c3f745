// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MarshalJSON encodes m as a JSON array; nested lists become nested arrays.
func (m Message) MarshalJSON() ([]byte, error) {
	items := make([]any, 0, len(m.values))
	for _, v := range m.values {
		if v.list != nil {
			items = append(items, *v.list)
			continue
		}
		items = append(items, v.num)
	}
	return json.Marshal(items)
}

// MaxPayload bounds the size of a payload accepted by Decode.
const MaxPayload = 64 << 10

// maxDepth is the number of list levels below the top one.
const maxDepth = 1

var errTooDeep = errors.New("message: lists nested too deep")

// UnmarshalJSON decodes a JSON array of numbers and nested arrays.
func (m *Message) UnmarshalJSON(data []byte) error {
	return m.unmarshalJSON(data, 0)
}

func (m *Message) unmarshalJSON(data []byte, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	m.Clear()
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '[' {
			if err := m.AddList().unmarshalJSON(r, depth+1); err != nil {
				return err
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(r, &f); err != nil {
			return fmt.Errorf("message: field %d: %w", i, err)
		}
		m.AddFloat64(f)
	}
	return nil
}

// ParseText parses the text form produced by String: numbers separated by
// whitespace, with parentheses around nested lists.
func ParseText(s string) (*Message, error) {
	p := &textParser{src: s}
	m := &Message{}
	if err := p.parseList(m, 0); err != nil {
		return nil, err
	}
	return m, nil
}

type textParser struct {
	src string
	pos int
}

func (p *textParser) parseList(m *Message, depth int) error {
	if depth > maxDepth {
		return errTooDeep
	}
	nested := depth > 0
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			if nested {
				return errors.New("message: unterminated list")
			}
			return nil
		}
		switch c := p.src[p.pos]; c {
		case '(':
			p.pos++
			if err := p.parseList(m.AddList(), depth+1); err != nil {
				return err
			}
		case ')':
			if !nested {
				return fmt.Errorf("message: unexpected ')' at offset %d", p.pos)
			}
			p.pos++
			return nil
		default:
			start := p.pos
			for p.pos < len(p.src) && !isDelim(p.src[p.pos]) {
				p.pos++
			}
			tok := p.src[start:p.pos]
			f, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return fmt.Errorf("message: bad number %q at offset %d", tok, start)
			}
			m.AddFloat64(f)
		}
	}
}

func (p *textParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func isDelim(c byte) bool {
	return c == '(' || c == ')' || c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// Encode returns the JSON wire form of m.
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode accepts either wire form: a JSON array or the text form.
func Decode(payload []byte) (*Message, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("message: payload of %d bytes exceeds %d", len(payload), MaxPayload)
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		m := &Message{}
		if err := json.Unmarshal(trimmed, m); err != nil {
			return nil, err
		}
		return m, nil
	}
	return ParseText(string(trimmed))
}
