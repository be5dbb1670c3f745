// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/device/rpc"
	"github.com/relabs-tech/cbwrist/internal/device/sim"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/transport"
)

// RunSim serves a simulated wrist board under REMOTE on the broker, or on
// SERIAL_PORT when serial is set, until ctx is cancelled.
func RunSim(ctx context.Context, cfg *config.Config, serial bool, logger logging.Logger) error {
	board := sim.NewBoard()
	defer board.Close()

	if serial {
		return runSimSerial(ctx, cfg, board, clock.New(), logger)
	}

	net, err := dial(cfg, cfg.MQTTClientIDSim, logger)
	if err != nil {
		return err
	}
	defer net.Close()
	return runSim(ctx, net, cfg, board, clock.New(), logger)
}

func runSim(ctx context.Context, net *transport.Network, cfg *config.Config, board *sim.Board, clk clock.Clock, logger logging.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		board.Run(ctx, clk, cfg.StepInterval())
		return nil
	})
	g.Go(func() error {
		return rpc.Serve(ctx, net, cfg.Remote, board, logger.Named("rpc"))
	})
	logger.Infof("simulated wrist %s stepping every %v", cfg.Remote, cfg.StepInterval())
	return g.Wait()
}

func runSimSerial(ctx context.Context, cfg *config.Config, board *sim.Board, clk clock.Clock, logger logging.Logger) error {
	port, err := rpc.OpenSerial(cfg.SerialPort, cfg.SerialBaudRate)
	if err != nil {
		return err
	}
	logger.Infof("simulated wrist serving on %s at %d baud", cfg.SerialPort, cfg.SerialBaudRate)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		board.Run(ctx, clk, cfg.StepInterval())
		return nil
	})
	g.Go(func() error {
		// unblocks the pending read in ServeLines
		<-ctx.Done()
		return port.Close()
	})
	g.Go(func() error {
		return rpc.ServeLines(ctx, port, board, logger.Named("rpc"))
	})
	return g.Wait()
}
