// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package rpc exposes a device.Board over a request/response protocol and
// provides clients for it over MQTT and over a serial line.
//
// Every request and response is a single JSON object. Over MQTT a request
// is published on "<remote>/rpc:i" and names the topic to answer on; over a
// serial line each object is one line.
package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

const (
	MethodCapabilities = "caps"
	MethodAxes         = "axes"
	MethodEncoders     = "encoders"
	MethodPidRefs      = "pid_refs"
	MethodPidErrors    = "pid_errs"
	MethodPidOutputs   = "pid_outs"
	MethodPids         = "pids"
	MethodSetPids      = "set_pids"
	MethodTargets      = "targets"
)

var (
	ErrTimeout        = errors.New("rpc: no reply before deadline")
	ErrConnectionLost = errors.New("rpc: connection lost")
)

// Request is one call on a board.
type Request struct {
	ID      uint64         `json:"id"`
	ReplyTo string         `json:"reply_to,omitempty"`
	Method  string         `json:"method"`
	PidType device.PidType `json:"pid_type,omitempty"`
	Pids    []device.Pid   `json:"pids,omitempty"`
}

// Response answers the Request with the same ID.
type Response struct {
	ID     uint64              `json:"id"`
	Values []float64           `json:"values,omitempty"`
	Pids   []device.Pid        `json:"pids,omitempty"`
	Caps   []device.Capability `json:"caps,omitempty"`
	Axes   int                 `json:"axes,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// RequestTopic is the channel a board named remote listens on.
func RequestTopic(remote string) string {
	return remote + "/rpc:i"
}

// ReplyTopic is the channel a client named local receives replies on.
func ReplyTopic(local string) string {
	return local + "/rpc:i"
}

// Handle executes req against board.
func Handle(ctx context.Context, board device.Board, req Request) Response {
	resp := Response{ID: req.ID}
	var err error

	switch req.Method {
	case MethodCapabilities:
		resp.Caps, err = board.Capabilities(ctx)
	case MethodAxes:
		resp.Axes, err = board.Axes(ctx)
	case MethodEncoders:
		resp.Values, err = triple(board.Encoders(ctx))
	case MethodPidRefs:
		resp.Values, err = triple(board.PidReferences(ctx, req.PidType))
	case MethodPidErrors:
		resp.Values, err = triple(board.PidErrors(ctx, req.PidType))
	case MethodPidOutputs:
		resp.Values, err = triple(board.PidOutputs(ctx, req.PidType))
	case MethodTargets:
		resp.Values, err = triple(board.TargetPositions(ctx))
	case MethodPids:
		var pids device.Pids
		if pids, err = board.Pids(ctx, req.PidType); err == nil {
			resp.Pids = pids[:]
		}
	case MethodSetPids:
		if len(req.Pids) != wrist.NumAxes {
			err = fmt.Errorf("set_pids needs %d parameter sets, got %d", wrist.NumAxes, len(req.Pids))
			break
		}
		var pids device.Pids
		copy(pids[:], req.Pids)
		err = board.SetPids(ctx, req.PidType, pids)
	default:
		err = fmt.Errorf("unknown method %q", req.Method)
	}

	if err != nil {
		resp.Error = err.Error()
		resp.Values = nil
		resp.Pids = nil
		resp.Caps = nil
	}
	return resp
}

func triple(t wrist.Triple, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	return t[:], nil
}
