// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/logging"
)

// OpenSerial opens a serial port in 8N1 mode.
func OpenSerial(port string, baud uint) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	rw, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}
	return rw, nil
}

// LineCaller sends requests as JSON lines over a byte stream.
type LineCaller struct {
	rw      io.ReadWriteCloser
	wmu     sync.Mutex
	pending *pending
	logger  logging.Logger

	lost      chan struct{}
	lostOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewLineCaller starts reading replies from rw.
func NewLineCaller(rw io.ReadWriteCloser, logger logging.Logger) *LineCaller {
	c := &LineCaller{
		rw:      rw,
		pending: newPending(),
		logger:  logger,
		lost:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *LineCaller) readLoop() {
	defer c.lostOnce.Do(func() { close(c.lost) })

	reader := bufio.NewReader(c.rw)
	for {
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			var resp Response
			if jerr := json.Unmarshal([]byte(line), &resp); jerr != nil {
				c.logger.Warnf("rpc: bad reply line %q: %v", line, jerr)
			} else if !c.pending.deliver(resp) {
				c.logger.Debugf("rpc: late or unknown reply id %d", resp.ID)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Warnf("rpc: read error: %v", err)
			}
			return
		}
	}
}

// Call writes req as one line and waits for the matching reply.
func (c *LineCaller) Call(ctx context.Context, req Request) (Response, error) {
	select {
	case <-c.lost:
		return Response{}, ErrConnectionLost
	default:
	}

	id, ch := c.pending.register()
	req.ID = id
	data, err := json.Marshal(req)
	if err != nil {
		c.pending.forget(id)
		return Response{}, err
	}
	data = append(data, '\n')

	c.wmu.Lock()
	_, err = c.rw.Write(data)
	c.wmu.Unlock()
	if err != nil {
		c.pending.forget(id)
		return Response{}, fmt.Errorf("write request: %w", err)
	}
	return c.pending.wait(ctx, id, ch, c.lost)
}

// Close closes the stream, which also ends the reader.
func (c *LineCaller) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

// ServeLines answers JSON line requests read from rw until the stream ends
// or ctx is done. Closing rw is left to the caller.
func ServeLines(ctx context.Context, rw io.ReadWriter, board device.Board, logger logging.Logger) error {
	reader := bufio.NewReader(rw)
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			var req Request
			if jerr := json.Unmarshal([]byte(line), &req); jerr != nil {
				logger.Warnf("rpc: bad request line %q: %v", line, jerr)
			} else {
				data, merr := json.Marshal(Handle(ctx, board, req))
				if merr != nil {
					return merr
				}
				if _, werr := rw.Write(append(data, '\n')); werr != nil {
					return fmt.Errorf("write reply: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
