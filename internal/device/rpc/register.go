// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc

import (
	"context"
	"errors"

	"go.uber.org/multierr"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/logging"
)

const (
	KindRemote = "remote_controlboard"
	KindSerial = "serial_controlboard"
)

func init() {
	device.Register(KindRemote, openRemote)
	device.Register(KindSerial, openSerial)
}

func loggerOf(deps device.Dependencies) logging.Logger {
	if deps.Logger != nil {
		return deps.Logger
	}
	return logging.NewNop()
}

func openRemote(ctx context.Context, opts device.Options, deps device.Dependencies) (device.Board, error) {
	if deps.Network == nil {
		return nil, errors.New("remote board needs a message network")
	}
	logger := loggerOf(deps)
	caller, err := DialNetwork(deps.Network, opts.Remote, opts.Local, logger)
	if err != nil {
		return nil, err
	}
	return connect(ctx, NewClient(caller, opts.Timeout), logger, opts.Remote)
}

func openSerial(ctx context.Context, opts device.Options, deps device.Dependencies) (device.Board, error) {
	logger := loggerOf(deps)
	port, err := OpenSerial(opts.SerialPort, opts.BaudRate)
	if err != nil {
		return nil, err
	}
	return connect(ctx, NewClient(NewLineCaller(port, logger), opts.Timeout), logger, opts.SerialPort)
}

func connect(ctx context.Context, c *Client, logger logging.Logger, where string) (device.Board, error) {
	if err := c.Ping(ctx); err != nil {
		return nil, multierr.Append(err, c.Close())
	}
	logger.Infof("connected to control board at %s", where)
	return c, nil
}
