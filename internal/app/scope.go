// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/scope"
)

// RunScope subscribes to the scope channels and serves the scope web UI
// on SCOPE_HTTP_ADDR until ctx is cancelled.
func RunScope(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	net, err := dial(cfg, cfg.MQTTClientIDScope, logger)
	if err != nil {
		return err
	}
	defer net.Close()

	hub := scope.NewHub(net, cfg.ScopeHistory, clock.New(), logger.Named("scope"))
	if err := hub.Open(); err != nil {
		return err
	}
	defer hub.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error { return scope.ListenAndServe(ctx, cfg.ScopeHTTPAddr, hub.Handler(), logger.Named("http")) })
	return g.Wait()
}
