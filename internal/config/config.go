// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// Gain application policies.
const (
	GainModeUniform = "uniform" // nested triple applied to every axis
	GainModeSingle  = "single"  // flat triple applied to GainAxis only
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker         string
	MQTTClientIDBridge string
	MQTTClientIDScope  string
	MQTTClientIDSim    string
	MQTTClientIDGains  string
	MQTTConnectTimeout int // milliseconds
	MQTTQoS            byte

	// Control board
	Device         string // remote_controlboard, serial_controlboard, fake_controlboard
	Remote         string
	Local          string
	SerialPort     string
	SerialBaudRate uint
	RPCTimeout     int // milliseconds

	// Bridge policy
	ScopeWiring bool
	GainMode    string
	GainAxis    wrist.Axis
	InboxDepth  int

	// Scope
	ScopeHTTPAddr string
	ScopeHistory  int

	// Simulator
	SimStepInterval int // milliseconds

	LogLevel string
}

// Default returns a configuration that talks to /nfa/wrist_mc through a
// broker on localhost.
func Default() *Config {
	return &Config{
		MQTTBroker:         "tcp://localhost:1883",
		MQTTClientIDBridge: "cbwrist-bridge",
		MQTTClientIDScope:  "cbwrist-scope",
		MQTTClientIDSim:    "cbwrist-wrist-sim",
		MQTTClientIDGains:  "cbwrist-gains",
		MQTTConnectTimeout: 2000,

		Device:         "remote_controlboard",
		Remote:         "/nfa/wrist_mc",
		Local:          "/logger",
		SerialBaudRate: 115200,
		RPCTimeout:     50,

		ScopeWiring: true,
		GainMode:    GainModeUniform,
		GainAxis:    wrist.Yaw,
		InboxDepth:  8,

		ScopeHTTPAddr: ":8080",
		ScopeHistory:  300,

		SimStepInterval: 10,

		LogLevel: "info",
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their default value.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// LoadOptional is Load, except that a missing file yields the defaults.
func LoadOptional(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Parse reads KEY=VALUE lines from r on top of the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_BRIDGE":
		c.MQTTClientIDBridge = value
	case "MQTT_CLIENT_ID_SCOPE":
		c.MQTTClientIDScope = value
	case "MQTT_CLIENT_ID_SIM":
		c.MQTTClientIDSim = value
	case "MQTT_CLIENT_ID_GAINS":
		c.MQTTClientIDGains = value
	case "MQTT_CONNECT_TIMEOUT_MS":
		ms, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.MQTTConnectTimeout = ms
	case "MQTT_QOS":
		qos, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MQTT_QOS %q: %w", value, err)
		}
		if qos < 0 || qos > 2 {
			return fmt.Errorf("MQTT_QOS must be 0-2, got %d", qos)
		}
		c.MQTTQoS = byte(qos)

	// Control board
	case "DEVICE":
		c.Device = value
	case "REMOTE":
		c.Remote = value
	case "LOCAL":
		c.Local = value
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.SerialBaudRate = uint(rate)
	case "RPC_TIMEOUT_MS":
		ms, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.RPCTimeout = ms

	// Bridge policy
	case "SCOPE_WIRING":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SCOPE_WIRING %q: %w", value, err)
		}
		c.ScopeWiring = on
	case "GAIN_MODE":
		mode := strings.ToLower(value)
		if mode != GainModeUniform && mode != GainModeSingle {
			return fmt.Errorf("GAIN_MODE must be %q or %q, got %q", GainModeUniform, GainModeSingle, value)
		}
		c.GainMode = mode
	case "GAIN_AXIS":
		axis, err := wrist.ParseAxis(value)
		if err != nil {
			return fmt.Errorf("invalid GAIN_AXIS: %w", err)
		}
		c.GainAxis = axis
	case "INBOX_DEPTH":
		depth, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.InboxDepth = depth

	// Scope
	case "SCOPE_HTTP_ADDR":
		c.ScopeHTTPAddr = value
	case "SCOPE_HISTORY":
		n, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.ScopeHistory = n

	// Simulator
	case "SIM_STEP_INTERVAL":
		ms, err := positiveInt(key, value)
		if err != nil {
			return err
		}
		c.SimStepInterval = ms

	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

func positiveInt(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.Remote == "" {
		return fmt.Errorf("REMOTE is required")
	}
	if c.Local == "" {
		return fmt.Errorf("LOCAL is required")
	}
	if c.Device == "serial_controlboard" && c.SerialPort == "" {
		return fmt.Errorf("SERIAL_PORT is required for serial_controlboard")
	}
	return nil
}

// ConnectTimeout returns MQTTConnectTimeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.MQTTConnectTimeout) * time.Millisecond
}

// CallTimeout returns RPCTimeout as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.RPCTimeout) * time.Millisecond
}

// StepInterval returns SimStepInterval as a duration.
func (c *Config) StepInterval() time.Duration {
	return time.Duration(c.SimStepInterval) * time.Millisecond
}
