// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"

	"github.com/relabs-tech/cbwrist/internal/bridge"
	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

// gainsWriterPort is the out port the gains tool writes through.
const gainsWriterPort = "/cbwrist/gains:o"

// SendGains publishes one gain triple to the bridge. With flat set the
// triple is sent unwrapped, as expected by GAIN_MODE=single.
func SendGains(cfg *config.Config, gains wrist.Gains, flat bool, logger logging.Logger) error {
	net, err := dial(cfg, cfg.MQTTClientIDGains, logger)
	if err != nil {
		return err
	}
	defer net.Close()
	return sendGains(net, gains, flat, logger)
}

// GainsMessage builds the message carrying gains.
func GainsMessage(gains wrist.Gains, flat bool) *message.Message {
	if flat {
		return message.New(gains.Values()...)
	}
	m := message.New()
	inner := m.AddList()
	for _, v := range gains.Values() {
		inner.AddFloat64(v)
	}
	return m
}

func sendGains(net *transport.Network, gains wrist.Gains, flat bool, logger logging.Logger) error {
	port, err := net.OpenOutPort(gainsWriterPort)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := net.Connect(gainsWriterPort, bridge.GainsPort); err != nil {
		return fmt.Errorf("unable to connect to %s: %w", bridge.GainsPort, err)
	}
	m := GainsMessage(gains, flat)
	if err := port.Write(m); err != nil {
		return err
	}
	logger.Infof("sent pid gains %s to %s", m, bridge.GainsPort)
	return nil
}
