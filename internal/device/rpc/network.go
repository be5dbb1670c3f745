// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/transport"
)

// NetworkCaller sends requests to a board over the message network.
type NetworkCaller struct {
	net          *transport.Network
	requestTopic string
	replyTopic   string
	pending      *pending
	logger       logging.Logger
	lost         chan struct{}
	closeOnce    sync.Once
}

// DialNetwork prepares calls from the client named local to the board
// named remote.
func DialNetwork(net *transport.Network, remote, local string, logger logging.Logger) (*NetworkCaller, error) {
	for _, name := range []string{remote, local} {
		if err := transport.ValidName(name); err != nil {
			return nil, err
		}
	}
	c := &NetworkCaller{
		net:          net,
		requestTopic: RequestTopic(remote),
		replyTopic:   ReplyTopic(local),
		pending:      newPending(),
		logger:       logger,
		lost:         make(chan struct{}),
	}
	if err := net.Subscribe(c.replyTopic, c.onReply); err != nil {
		return nil, fmt.Errorf("listen for replies on %s: %w", c.replyTopic, err)
	}
	return c, nil
}

func (c *NetworkCaller) onReply(_ string, payload []byte) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		c.logger.Warnf("rpc: bad reply on %s: %v", c.replyTopic, err)
		return
	}
	if !c.pending.deliver(resp) {
		c.logger.Debugf("rpc: late or unknown reply id %d on %s", resp.ID, c.replyTopic)
	}
}

// Call publishes req and waits for the matching reply.
func (c *NetworkCaller) Call(ctx context.Context, req Request) (Response, error) {
	id, ch := c.pending.register()
	req.ID = id
	req.ReplyTo = c.replyTopic

	payload, err := json.Marshal(req)
	if err != nil {
		c.pending.forget(id)
		return Response{}, err
	}
	if err := c.net.Publish(c.requestTopic, payload); err != nil {
		c.pending.forget(id)
		return Response{}, fmt.Errorf("send to %s: %w", c.requestTopic, err)
	}
	return c.pending.wait(ctx, id, ch, c.lost)
}

// Close stops listening for replies and fails calls still waiting.
func (c *NetworkCaller) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.lost)
		err = c.net.Unsubscribe(c.replyTopic)
	})
	return err
}

// Serve answers requests for board under name until ctx is done.
func Serve(ctx context.Context, net *transport.Network, name string, board device.Board, logger logging.Logger) error {
	if err := transport.ValidName(name); err != nil {
		return err
	}
	topic := RequestTopic(name)
	err := net.Subscribe(topic, func(_ string, payload []byte) {
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Warnf("rpc: bad request on %s: %v", topic, err)
			return
		}
		if req.ReplyTo == "" {
			logger.Warnf("rpc: request %d (%s) has no reply_to", req.ID, req.Method)
			return
		}
		// answer off the delivery goroutine so a slow board never stalls the client
		go func() {
			resp := Handle(ctx, board, req)
			data, err := json.Marshal(resp)
			if err != nil {
				logger.Errorf("rpc: encode reply %d: %v", req.ID, err)
				return
			}
			if err := net.Publish(req.ReplyTo, data); err != nil {
				logger.Errorf("rpc: reply %d to %s: %v", req.ID, req.ReplyTo, err)
			}
		}()
	})
	if err != nil {
		return err
	}
	logger.Infof("serving board on %s", topic)

	<-ctx.Done()
	return net.Unsubscribe(topic)
}
