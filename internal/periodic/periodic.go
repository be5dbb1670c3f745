// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package periodic drives a module on a fixed tick until it asks to stop
// or its context ends.
package periodic

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/relabs-tech/cbwrist/internal/logging"
)

// Module is a unit of periodic work.
type Module interface {
	// Configure acquires resources. An error aborts Run.
	Configure(ctx context.Context) error
	// Update performs one tick. Returning false stops the loop.
	Update(ctx context.Context) bool
	// Period is the tick length.
	Period() time.Duration
	// Close releases what Configure acquired. It must be safe to call
	// after a failed Configure and more than once.
	Close() error
}

// Run configures m and ticks it on clk. Close is always called before
// Run returns.
func Run(ctx context.Context, m Module, clk clock.Clock, logger logging.Logger) (err error) {
	defer func() {
		err = multierr.Append(err, m.Close())
	}()

	if err := m.Configure(ctx); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	period := m.Period()
	if period <= 0 {
		return fmt.Errorf("invalid period %v", period)
	}
	logger.Debugf("running every %v", period)

	ticker := clk.Ticker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("context done, stopping")
			return nil
		case <-ticker.C:
			if !m.Update(ctx) {
				logger.Debug("module asked to stop")
				return nil
			}
		}
	}
}
