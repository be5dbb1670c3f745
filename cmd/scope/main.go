// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/cbwrist/internal/app"
)

func main() {
	var s app.Settings
	var addr string

	cmd := &cobra.Command{
		Use:          "scope",
		Short:        "live view of the wrist bridge telemetry",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.ConfigRequired = cmd.Flags().Changed("config")
			cfg, logger, err := app.Setup(s)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if addr != "" {
				cfg.ScopeHTTPAddr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.RunScope(ctx, cfg, logger); err != nil {
				logger.Errorf("fatal: %v", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&s.ConfigPath, "config", "./cbwrist_config.txt", "path to configuration file")
	cmd.Flags().StringVar(&s.LogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides SCOPE_HTTP_ADDR)")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
