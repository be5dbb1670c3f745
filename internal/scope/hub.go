// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scope receives the wrist bridge telemetry on the /scope/*:i
// channels, keeps a short history per channel and serves it to browsers as
// JSON, PNG strip charts and a live websocket feed.
package scope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cbwrist/internal/bridge"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Channels are the scope inputs, in display order.
var Channels = []string{bridge.ScopePidOut, bridge.ScopeRefs, bridge.ScopeTraj}

const inboxDepth = 64

// Sample is one received triple.
type Sample struct {
	Channel string       `json:"channel"`
	Seq     uint64       `json:"seq"`
	Time    time.Time    `json:"time"`
	Values  wrist.Triple `json:"values"`
}

// Hub collects samples and fans them out to websocket clients.
type Hub struct {
	net     *transport.Network
	history int
	clk     clock.Clock
	logger  logging.Logger

	mu     sync.RWMutex
	seq    uint64
	series map[string][]Sample

	ports []*transport.InPort
	room  *room
}

// NewHub returns a hub keeping up to history samples per channel.
func NewHub(net *transport.Network, history int, clk clock.Clock, logger logging.Logger) *Hub {
	if history <= 0 {
		history = 1
	}
	return &Hub{
		net:     net,
		history: history,
		clk:     clk,
		logger:  logger,
		series:  map[string][]Sample{},
		room:    newRoom(logger),
	}
}

// Open subscribes to every scope channel.
func (h *Hub) Open() error {
	for _, name := range Channels {
		p, err := h.net.OpenInPort(name, inboxDepth)
		if err != nil {
			return multierr.Append(fmt.Errorf("unable to open port %s: %w", name, err), h.Close())
		}
		h.ports = append(h.ports, p)
		h.logger.Infof("listening on %s", name)
	}
	return nil
}

// Run moves samples from the ports into the history and to websocket
// clients until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.room.run(ctx)
		return nil
	})
	for _, p := range h.ports {
		p := p
		g.Go(func() error { return h.pump(ctx, p) })
	}
	return g.Wait()
}

func (h *Hub) pump(ctx context.Context, p *transport.InPort) error {
	for {
		m, err := p.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		if err := h.record(p.Name(), m); err != nil {
			h.logger.Warnf("dropping sample on %s: %v", p.Name(), err)
		}
	}
}

func (h *Hub) record(channel string, m *message.Message) error {
	values, err := m.Floats()
	if err != nil {
		return err
	}
	t, err := wrist.TripleFrom(values)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.seq++
	s := Sample{Channel: channel, Seq: h.seq, Time: h.clk.Now(), Values: t}
	series := append(h.series[channel], s)
	if len(series) > h.history {
		series = series[len(series)-h.history:]
	}
	h.series[channel] = series
	h.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	h.room.broadcast(data)
	return nil
}

// Latest returns the newest sample of every channel that has one.
func (h *Hub) Latest() map[string]Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]Sample, len(h.series))
	for ch, series := range h.series {
		if len(series) > 0 {
			out[ch] = series[len(series)-1]
		}
	}
	return out
}

// History returns a copy of the samples kept for channel, oldest first.
func (h *Hub) History(channel string) []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Sample(nil), h.series[channel]...)
}

// Close unsubscribes from the scope channels.
func (h *Hub) Close() error {
	var err error
	for _, p := range h.ports {
		err = multierr.Append(err, p.Close())
	}
	h.ports = nil
	return err
}

// Lookup resolves a channel given by its full name or its short form
// ("pidout", "refs", "traj").
func Lookup(name string) (string, bool) {
	for _, ch := range Channels {
		if name == ch || name == shortName(ch) {
			return ch, true
		}
	}
	return "", false
}

func shortName(channel string) string {
	s := strings.TrimPrefix(channel, "/scope/")
	return strings.TrimSuffix(s, ":i")
}
