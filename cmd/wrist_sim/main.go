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
	var serial bool

	cmd := &cobra.Command{
		Use:          "wrist_sim",
		Short:        "simulated wrist motion controller",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s.ConfigRequired = cmd.Flags().Changed("config")
			cfg, logger, err := app.Setup(s)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.RunSim(ctx, cfg, serial, logger); err != nil {
				logger.Errorf("fatal: %v", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&s.ConfigPath, "config", "./cbwrist_config.txt", "path to configuration file")
	cmd.Flags().StringVar(&s.Remote, "remote", "", "endpoint to serve the board on (overrides REMOTE)")
	cmd.Flags().StringVar(&s.LogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	cmd.Flags().BoolVar(&serial, "serial", false, "serve JSON lines on SERIAL_PORT instead of MQTT")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
