// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package rpc_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/relabs-tech/cbwrist/internal/device"
	"github.com/relabs-tech/cbwrist/internal/device/devicetest"
	"github.com/relabs-tech/cbwrist/internal/device/rpc"
	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/transport"
	"github.com/relabs-tech/cbwrist/internal/transport/transporttest"
	"github.com/relabs-tech/cbwrist/internal/wrist"
)

const (
	remoteName = "/nfa/wrist_mc"
	localName  = "/logger"
)

func connected(t *testing.T, broker *transporttest.Broker) *transport.Network {
	t.Helper()
	client := broker.NewClient()
	test.That(t, client.Connect().Error(), test.ShouldBeNil)
	n := transport.NewNetwork(client, 0, logging.NewNop())
	t.Cleanup(func() { n.Close() })
	return n
}

// serve runs the board behind remoteName until the test ends.
func serve(t *testing.T, broker *transporttest.Broker, board device.Board) {
	t.Helper()
	n := connected(t, broker)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rpc.Serve(ctx, n, remoteName, board, logging.NewNop())
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for !broker.Subscribed(rpc.RequestTopic(remoteName)) {
		if time.Now().After(deadline) {
			t.Fatal("server never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
}

func openRemote(t *testing.T, n *transport.Network, timeout time.Duration) (*device.Driver, error) {
	t.Helper()
	return device.Open(context.Background(), device.Options{
		Device:  rpc.KindRemote,
		Remote:  remoteName,
		Local:   localName,
		Timeout: timeout,
	}, device.Dependencies{Network: n, Logger: logging.NewNop()})
}

func TestRemoteBoard(t *testing.T) {
	ctx := context.Background()
	broker := transporttest.NewBroker()
	board := devicetest.NewBoard()
	board.References = wrist.Triple{1, 2, 3}
	board.Errors = wrist.Triple{0.1, 0.1, 0.1}
	board.Params[wrist.Pitch].Kp = 4
	serve(t, broker, board)

	d, err := openRemote(t, connected(t, broker), time.Second)
	test.That(t, err, test.ShouldBeNil)
	defer d.Close()

	pid, err := d.ViewPIDControl(ctx)
	test.That(t, err, test.ShouldBeNil)

	refs, err := pid.PidReferences(ctx, device.PidTypePosition)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, refs, test.ShouldResemble, wrist.Triple{1, 2, 3})

	params, err := pid.Pids(ctx, device.PidTypePosition)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params[wrist.Pitch].Kp, test.ShouldEqual, 4.0)

	params[wrist.Yaw] = params[wrist.Yaw].WithGains(wrist.Gains{Kp: 5, Kd: 0.2, Ki: 1.5})
	test.That(t, pid.SetPids(ctx, device.PidTypePosition, params), test.ShouldBeNil)

	got, sets, _ := board.Snapshot()
	test.That(t, sets, test.ShouldEqual, 1)
	test.That(t, got[wrist.Yaw].Kp, test.ShouldEqual, 5.0)
	test.That(t, got[wrist.Yaw].Ki, test.ShouldEqual, 1.5)
}

func TestRemoteErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	broker := transporttest.NewBroker()
	board := devicetest.NewBoard()
	board.Fail["PidOutputs"] = true
	serve(t, broker, board)

	d, err := openRemote(t, connected(t, broker), time.Second)
	test.That(t, err, test.ShouldBeNil)
	defer d.Close()

	pid, err := d.ViewPIDControl(ctx)
	test.That(t, err, test.ShouldBeNil)
	_, err = pid.PidOutputs(ctx, device.PidTypePosition)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "injected")
}

func TestRemoteBoardAbsent(t *testing.T) {
	broker := transporttest.NewBroker()
	_, err := openRemote(t, connected(t, broker), 20*time.Millisecond)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, rpc.ErrTimeout), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to connect to")
	test.That(t, broker.Subscribed(rpc.ReplyTopic(localName)), test.ShouldBeFalse)
}

func TestRemoteNeedsNetwork(t *testing.T) {
	_, err := openRemote(t, nil, time.Second)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLines(t *testing.T) {
	ctx := context.Background()
	board := devicetest.NewBoard()
	board.Positions = wrist.Triple{10, 20, 30}

	clientEnd, boardEnd := net.Pipe()
	served := make(chan error, 1)
	go func() {
		served <- rpc.ServeLines(ctx, boardEnd, board, logging.NewNop())
	}()

	c := rpc.NewClient(rpc.NewLineCaller(clientEnd, logging.NewNop()), time.Second)
	test.That(t, c.Ping(ctx), test.ShouldBeNil)

	pos, err := c.Encoders(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldResemble, wrist.Triple{10, 20, 30})

	caps, err := c.Capabilities(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, caps, test.ShouldContain, device.CapPIDControl)

	test.That(t, c.Close(), test.ShouldBeNil)
	test.That(t, <-served, test.ShouldBeNil)

	_, err = c.Encoders(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	board := devicetest.NewBoard()

	resp := rpc.Handle(ctx, board, rpc.Request{ID: 7, Method: "reboot"})
	test.That(t, resp.ID, test.ShouldEqual, uint64(7))
	test.That(t, resp.Error, test.ShouldContainSubstring, "unknown method")

	resp = rpc.Handle(ctx, board, rpc.Request{ID: 8, Method: rpc.MethodSetPids, Pids: []device.Pid{{Kp: 1}}})
	test.That(t, resp.Error, test.ShouldContainSubstring, "parameter sets")

	resp = rpc.Handle(ctx, board, rpc.Request{ID: 9, Method: rpc.MethodAxes})
	test.That(t, resp.Error, test.ShouldBeEmpty)
	test.That(t, resp.Axes, test.ShouldEqual, wrist.NumAxes)
}
