// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/cbwrist/internal/app"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

const defaultConfigPath = "./cbwrist_config.txt"

var (
	configPath string
	remote     string
	logLevel   string
	flat       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "cbwrist",
		Short:        "wrist motion controller telemetry and gain-tuning bridge",
		SilenceUsage: true,
		RunE:         runBridge,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&remote, "remote", "", "remote board endpoint (overrides REMOTE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "poll the board, publish telemetry and apply incoming gains",
		Args:  cobra.NoArgs,
		RunE:  runBridge,
	}

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "print the telemetry published by a running bridge",
		Args:  cobra.NoArgs,
		RunE:  runConsole,
	}

	rootCmd.AddCommand(runCmd, newGainsCmd(), consoleCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newGainsCmd stops flag parsing at the first gain so negative values after
// it are taken as arguments. A leading negative gain needs "--".
func newGainsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "gains [--flat] [--] KP KD KI",
		Short:   "send a gain triple to a running bridge",
		Example: "  cbwrist gains 5 0.2 1.5\n  cbwrist gains --flat -- -0.5 0 0.1",
		Args:    cobra.ExactArgs(3),
		RunE:    sendGains,
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "send an unwrapped triple (GAIN_MODE=single)")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func parseGains(args []string) (wrist.Gains, error) {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return wrist.Gains{}, fmt.Errorf("invalid gain %q: %w", a, err)
		}
		values[i] = v
	}
	return wrist.GainsFrom(values)
}

func settings(cmd *cobra.Command) app.Settings {
	return app.Settings{
		ConfigPath:     configPath,
		ConfigRequired: cmd.Flags().Changed("config"),
		Remote:         remote,
		LogLevel:       logLevel,
	}
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := app.Setup(settings(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunBridge(ctx, cfg, logger); err != nil {
		logger.Errorf("fatal: %v", err)
		return err
	}
	return nil
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := app.Setup(settings(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunConsole(ctx, cfg, os.Stdout, logger)
}

func sendGains(cmd *cobra.Command, args []string) error {
	gains, err := parseGains(args)
	if err != nil {
		return err
	}

	cfg, logger, err := app.Setup(settings(cmd))
	if err != nil {
		return err
	}
	defer logger.Sync()
	return app.SendGains(cfg, gains, flat, logger)
}
