// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/logging"
)

// Settings are the command line options shared by every binary.
type Settings struct {
	ConfigPath string
	// ConfigRequired is set when the path was given explicitly; otherwise a
	// missing file means defaults.
	ConfigRequired bool
	Remote         string
	LogLevel       string
}

// Setup loads the configuration, applies command line overrides and builds
// the logger.
func Setup(s Settings) (*config.Config, logging.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if s.ConfigRequired {
		cfg, err = config.Load(s.ConfigPath)
	} else {
		cfg, err = config.LoadOptional(s.ConfigPath)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if s.Remote != "" {
		cfg.Remote = s.Remote
	}
	if s.LogLevel != "" {
		cfg.LogLevel = s.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
