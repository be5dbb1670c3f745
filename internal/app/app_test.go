// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/relabs-tech/cbwrist/internal/bridge"
	"github.com/relabs-tech/cbwrist/internal/config"
	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/device/rpc"
	"github.com/relabs-tech/cbwrist/internal/device/sim"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/transport/transporttest"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

func network(t *testing.T, broker *transporttest.Broker) *transport.Network {
	t.Helper()
	client := broker.NewClient()
	test.That(t, client.Connect().Error(), test.ShouldBeNil)
	n := transport.NewNetwork(client, 0, logging.NewNop())
	t.Cleanup(func() { n.Close() })
	return n
}

func waitFor(t *testing.T, what string, cond func() bool, step func()) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		if step != nil {
			step()
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBridgeAgainstSimulatedBoard(t *testing.T) {
	broker := transporttest.NewBroker()
	mock := clock.NewMock()
	cfg := config.Default()
	cfg.RPCTimeout = 2000

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := sim.NewBoard()
	simDone := make(chan error, 1)
	go func() { simDone <- runSim(ctx, network(t, broker), cfg, board, mock, logging.NewNop()) }()
	waitFor(t, "simulated board", func() bool { return broker.Subscribed(rpc.RequestTopic(cfg.Remote)) }, nil)

	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- runBridge(ctx, network(t, broker), cfg, mock, logging.NewNop()) }()
	waitFor(t, "bridge startup", func() bool { return broker.Subscribed(bridge.GainsPort) }, nil)

	tick := func() { mock.Add(bridge.Period) }
	waitFor(t, "telemetry", func() bool { return len(broker.Published(bridge.ScopeTraj)) > 0 }, tick)

	for _, topic := range []string{bridge.PidOutPort, bridge.RefsPort, bridge.TrajPort} {
		payloads := broker.Published(topic)
		test.That(t, len(payloads), test.ShouldBeGreaterThan, 0)
		m, err := message.Decode(payloads[0])
		test.That(t, err, test.ShouldBeNil)
		values, err := m.Floats()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, values, test.ShouldHaveLength, wrist.NumAxes)
	}

	test.That(t, sendGains(network(t, broker), wrist.Gains{Kp: 5, Kd: 0.2, Ki: 1.5}, false, logging.NewNop()), test.ShouldBeNil)
	applied := func() bool {
		pids, err := board.Pids(context.Background(), device.PidTypePosition)
		return err == nil && pids[wrist.Pitch].Kp == 5
	}
	waitFor(t, "gains", applied, tick)

	pids, err := board.Pids(context.Background(), device.PidTypePosition)
	test.That(t, err, test.ShouldBeNil)
	for _, a := range wrist.Axes {
		test.That(t, pids[a].Kp, test.ShouldEqual, 5.0)
		test.That(t, pids[a].Kd, test.ShouldEqual, 0.2)
		test.That(t, pids[a].Ki, test.ShouldEqual, 1.5)
		test.That(t, pids[a].MaxOutput, test.ShouldEqual, sim.DefaultPid.MaxOutput)
	}

	cancel()
	test.That(t, <-bridgeDone, test.ShouldBeNil)
	test.That(t, <-simDone, test.ShouldBeNil)
	test.That(t, broker.Subscribed(bridge.GainsPort), test.ShouldBeFalse)
}

func TestBridgeStartupFailures(t *testing.T) {
	t.Run("no board answering", func(t *testing.T) {
		broker := transporttest.NewBroker()
		cfg := config.Default()
		cfg.RPCTimeout = 20
		err := runBridge(context.Background(), network(t, broker), cfg, clock.NewMock(), logging.NewNop())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "/nfa/wrist_mc")
		test.That(t, broker.Subscribed(bridge.GainsPort), test.ShouldBeFalse)
	})
	t.Run("unknown device kind", func(t *testing.T) {
		broker := transporttest.NewBroker()
		cfg := config.Default()
		cfg.Device = "ethercat_board"
		err := runBridge(context.Background(), network(t, broker), cfg, clock.NewMock(), logging.NewNop())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "ethercat_board")
	})
}

func TestBridgeWithInProcessSimulator(t *testing.T) {
	broker := transporttest.NewBroker()
	cfg := config.Default()
	cfg.Device = sim.Kind
	cfg.ScopeWiring = false

	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runBridge(ctx, network(t, broker), cfg, mock, logging.NewNop()) }()

	waitFor(t, "telemetry", func() bool { return len(broker.Published(bridge.RefsPort)) > 0 }, func() { mock.Add(bridge.Period) })
	test.That(t, broker.Published(bridge.ScopeRefs), test.ShouldBeEmpty)

	cancel()
	test.That(t, <-done, test.ShouldBeNil)
}

func TestGainsMessage(t *testing.T) {
	g := wrist.Gains{Kp: 5, Kd: 0.2, Ki: 1.5}

	data, err := message.Encode(GainsMessage(g, false))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "[[5,0.2,1.5]]")

	data, err = message.Encode(GainsMessage(g, true))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "[5,0.2,1.5]")
}

func TestSendGains(t *testing.T) {
	broker := transporttest.NewBroker()
	n := network(t, broker)
	test.That(t, sendGains(n, wrist.Gains{Kp: 1, Kd: 2, Ki: 3}, true, logging.NewNop()), test.ShouldBeNil)
	test.That(t, broker.Published(bridge.GainsPort), test.ShouldResemble, [][]byte{[]byte("[1,2,3]")})

	// the writer port is released, so a second send works
	test.That(t, sendGains(n, wrist.Gains{Kp: 1, Kd: 2, Ki: 3}, false, logging.NewNop()), test.ShouldBeNil)
	test.That(t, broker.Published(bridge.GainsPort), test.ShouldHaveLength, 2)
}
