// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/cbwrist/internal/bridge"
	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/periodic"
	"github.com/relabs-tech/cbwrist/internal/transport"

	// board kinds
	_ "github.com/relabs-tech/cbwrist/internal/device/rpc"
	_ "github.com/relabs-tech/cbwrist/internal/device/sim"
)

// dial opens the broker session for one binary.
func dial(cfg *config.Config, clientID string, logger logging.Logger) (*transport.Network, error) {
	return transport.Dial(transport.Options{
		Broker:         cfg.MQTTBroker,
		ClientID:       clientID,
		ConnectTimeout: cfg.ConnectTimeout(),
		QoS:            cfg.MQTTQoS,
	}, logger.Named("transport"))
}

// RunBridge connects to the broker, then runs the controller bridge loop
// until ctx is cancelled. Any startup failure is returned.
func RunBridge(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	net, err := dial(cfg, cfg.MQTTClientIDBridge, logger)
	if err != nil {
		return err
	}
	defer net.Close()

	return runBridge(ctx, net, cfg, clock.New(), logger)
}

func runBridge(ctx context.Context, net *transport.Network, cfg *config.Config, clk clock.Clock, logger logging.Logger) error {
	deps := device.Dependencies{Network: net, Logger: logger.Named("device"), Clock: clk}
	open := func(ctx context.Context, opts device.Options) (bridge.Handle, error) {
		d, err := device.Open(ctx, opts, deps)
		if err != nil {
			return nil, err
		}
		return d, nil
	}

	b := bridge.New(net, open, bridge.ConfigFrom(cfg), logger.Named("bridge"))
	logger.Infof("starting wrist bridge for %s (%s)", cfg.Remote, cfg.Device)
	if err := periodic.Run(ctx, b, clk, logger.Named("periodic")); err != nil {
		return err
	}
	logger.Info("wrist bridge stopped")
	return nil
}
