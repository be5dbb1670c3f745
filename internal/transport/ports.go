// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
)

// OutPort publishes messages on its own channel and on every channel it
// has been connected to.
type OutPort struct {
	net  *Network
	name string

	mu     sync.Mutex
	dests  []string
	closed bool
}

// Name returns the channel name of the port.
func (p *OutPort) Name() string {
	return p.name
}

// Write encodes m and publishes it.
func (p *OutPort) Write(m *message.Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", p.name, ErrClosed)
	}
	dests := append([]string(nil), p.dests...)
	p.mu.Unlock()

	payload, err := message.Encode(m)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", p.name, err)
	}

	err = p.net.Publish(p.name, payload)
	for _, dst := range dests {
		if perr := p.net.Publish(dst, payload); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s -> %s: %w", p.name, dst, perr))
		}
	}
	return err
}

// Connections returns the channels this port is wired to.
func (p *OutPort) Connections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dests...)
}

func (p *OutPort) addDest(dst string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("%s: %w", p.name, ErrClosed)
	}
	for _, d := range p.dests {
		if d == dst {
			return fmt.Errorf("%s is already connected to %s", p.name, dst)
		}
	}
	p.dests = append(p.dests, dst)
	return nil
}

func (p *OutPort) removeDest(dst string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, d := range p.dests {
		if d == dst {
			p.dests = append(p.dests[:i], p.dests[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrNotConnected, p.name, dst)
}

// Close drops every connection and releases the name.
func (p *OutPort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.dests = nil
	p.mu.Unlock()

	p.net.release(p.name)
	return nil
}

// InPort receives messages published on its channel into a bounded inbox.
// When the inbox is full the oldest message is dropped.
type InPort struct {
	net    *Network
	name   string
	inbox  chan *message.Message
	done   chan struct{}
	logger logging.Logger

	closeOnce sync.Once
}

// Name returns the channel name of the port.
func (p *InPort) Name() string {
	return p.name
}

func (p *InPort) deliver(_ string, payload []byte) {
	m, err := message.Decode(payload)
	if err != nil {
		p.logger.Warnf("dropping undecodable message on %s: %v", p.name, err)
		return
	}
	for {
		select {
		case <-p.done:
			return
		case p.inbox <- m:
			return
		default:
		}
		select {
		case <-p.inbox:
			p.logger.Debugf("inbox of %s full, dropped oldest message", p.name)
		default:
		}
	}
}

// TryRead returns the oldest buffered message without waiting.
func (p *InPort) TryRead() (*message.Message, bool) {
	select {
	case m := <-p.inbox:
		return m, true
	default:
		return nil, false
	}
}

// Read waits for the next message, the port being closed, or ctx.
func (p *InPort) Read(ctx context.Context) (*message.Message, error) {
	select {
	case m := <-p.inbox:
		return m, nil
	case <-p.done:
		return nil, fmt.Errorf("%s: %w", p.name, ErrClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes and releases the name.
func (p *InPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.net.Unsubscribe(p.name)
		p.net.release(p.name)
	})
	return err
}
