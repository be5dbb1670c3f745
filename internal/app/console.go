// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/cbwrist/internal/bridge"
	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport"
)

// consoleChannels maps the bridge output channels to their line tags.
var consoleChannels = []struct {
	name, tag string
}{
	{bridge.PidOutPort, "PIDOUT"},
	{bridge.RefsPort, "REFS"},
	{bridge.TrajPort, "TRAJ"},
}

// RunConsole prints every triple the bridge publishes to w until ctx is
// cancelled.
func RunConsole(ctx context.Context, cfg *config.Config, w io.Writer, logger logging.Logger) error {
	net, err := dial(cfg, cfg.MQTTClientIDScope+"-console", logger)
	if err != nil {
		return err
	}
	defer net.Close()
	return runConsole(ctx, net, w, logger)
}

func runConsole(ctx context.Context, net *transport.Network, w io.Writer, logger logging.Logger) (err error) {
	var ports []*transport.InPort
	defer func() {
		for _, p := range ports {
			err = multierr.Append(err, p.Close())
		}
	}()
	for _, ch := range consoleChannels {
		p, err := net.OpenInPort(ch.name, 16)
		if err != nil {
			return fmt.Errorf("unable to open port %s: %w", ch.name, err)
		}
		ports = append(ports, p)
		logger.Infof("console: subscribed to %s", ch.name)
	}

	lines := make(chan string)
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range ports {
		p := p
		tag := consoleChannels[i].tag
		g.Go(func() error {
			for {
				m, err := p.Read(ctx)
				if err != nil {
					if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
						return nil
					}
					return err
				}
				select {
				case lines <- formatLine(tag, m):
				case <-ctx.Done():
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case line := <-lines:
				if _, err := io.WriteString(w, line); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func formatLine(tag string, m *message.Message) string {
	values, err := m.Floats()
	if err != nil || len(values) != 3 {
		return fmt.Sprintf("[%-6s] %s\n", tag, m)
	}
	return fmt.Sprintf("[%-6s] YAW=%9.3f  ROLL=%9.3f  PITCH=%9.3f\n", tag, values[0], values[1], values[2])
}
