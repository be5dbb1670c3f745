// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Caller delivers one request and waits for its response.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
	Close() error
}

// Client implements device.Board on top of a Caller.
type Client struct {
	caller  Caller
	timeout time.Duration
}

var _ device.Board = (*Client)(nil)

// NewClient returns a board client; every call is bounded by timeout when
// it is positive.
func NewClient(caller Caller, timeout time.Duration) *Client {
	return &Client{caller: caller, timeout: timeout}
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.caller.Call(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("%s: %w", req.Method, err)
	}
	if resp.Error != "" {
		return Response{}, fmt.Errorf("%s: remote: %s", req.Method, resp.Error)
	}
	return resp, nil
}

func (c *Client) callTriple(ctx context.Context, req Request) (wrist.Triple, error) {
	resp, err := c.call(ctx, req)
	if err != nil {
		return wrist.Triple{}, err
	}
	t, err := wrist.TripleFrom(resp.Values)
	if err != nil {
		return wrist.Triple{}, fmt.Errorf("%s: %w", req.Method, err)
	}
	return t, nil
}

// Ping checks that the board answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Axes(ctx)
	return err
}

func (c *Client) Capabilities(ctx context.Context) ([]device.Capability, error) {
	resp, err := c.call(ctx, Request{Method: MethodCapabilities})
	if err != nil {
		return nil, err
	}
	return resp.Caps, nil
}

func (c *Client) Axes(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, Request{Method: MethodAxes})
	if err != nil {
		return 0, err
	}
	return resp.Axes, nil
}

func (c *Client) Encoders(ctx context.Context) (wrist.Triple, error) {
	return c.callTriple(ctx, Request{Method: MethodEncoders})
}

func (c *Client) PidReferences(ctx context.Context, pt device.PidType) (wrist.Triple, error) {
	return c.callTriple(ctx, Request{Method: MethodPidRefs, PidType: pt})
}

func (c *Client) PidErrors(ctx context.Context, pt device.PidType) (wrist.Triple, error) {
	return c.callTriple(ctx, Request{Method: MethodPidErrors, PidType: pt})
}

func (c *Client) PidOutputs(ctx context.Context, pt device.PidType) (wrist.Triple, error) {
	return c.callTriple(ctx, Request{Method: MethodPidOutputs, PidType: pt})
}

func (c *Client) TargetPositions(ctx context.Context) (wrist.Triple, error) {
	return c.callTriple(ctx, Request{Method: MethodTargets})
}

func (c *Client) Pids(ctx context.Context, pt device.PidType) (device.Pids, error) {
	var pids device.Pids
	resp, err := c.call(ctx, Request{Method: MethodPids, PidType: pt})
	if err != nil {
		return pids, err
	}
	if len(resp.Pids) != wrist.NumAxes {
		return pids, fmt.Errorf("%s: expected %d parameter sets, got %d", MethodPids, wrist.NumAxes, len(resp.Pids))
	}
	copy(pids[:], resp.Pids)
	return pids, nil
}

func (c *Client) SetPids(ctx context.Context, pt device.PidType, pids device.Pids) error {
	_, err := c.call(ctx, Request{Method: MethodSetPids, PidType: pt, Pids: pids[:]})
	return err
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.caller.Close()
}

// pending matches responses to waiting calls by request ID.
type pending struct {
	mu      sync.Mutex
	next    uint64
	waiting map[uint64]chan Response
}

func newPending() *pending {
	return &pending{waiting: map[uint64]chan Response{}}
}

func (p *pending) register() (uint64, chan Response) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	ch := make(chan Response, 1)
	p.waiting[p.next] = ch
	return p.next, ch
}

func (p *pending) deliver(resp Response) bool {
	p.mu.Lock()
	ch, ok := p.waiting[resp.ID]
	delete(p.waiting, resp.ID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

func (p *pending) forget(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiting, id)
}

func (p *pending) wait(ctx context.Context, id uint64, ch chan Response, lost <-chan struct{}) (Response, error) {
	select {
	case resp := <-ch:
		return resp, nil
	case <-lost:
		p.forget(id)
		return Response{}, ErrConnectionLost
	case <-ctx.Done():
		p.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, ErrTimeout
		}
		return Response{}, ctx.Err()
	}
}
