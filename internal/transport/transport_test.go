// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/relabs-tech/cbwrist/internal/message"
	"github.com/relabs-tech/cbwrist/internal/transport/transporttest"
)

func newTestNetwork(t *testing.T) (*Network, *transporttest.Broker) {
	t.Helper()
	broker := transporttest.NewBroker()
	client := broker.NewClient()
	test.That(t, client.Connect().Error(), test.ShouldBeNil)
	n := NewNetwork(client, 0, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { n.Close() })
	return n, broker
}

func TestValidName(t *testing.T) {
	test.That(t, ValidName("/CbWrist/pidout:o"), test.ShouldBeNil)
	for _, bad := range []string{"", "CbWrist/refs:o", "/scope/#", "/a/+/b", "/with space"} {
		err := ValidName(bad)
		test.That(t, errors.Is(err, ErrInvalidName), test.ShouldBeTrue)
	}
}

func TestOutPortWrite(t *testing.T) {
	n, broker := newTestNetwork(t)

	p, err := n.OpenOutPort("/CbWrist/refs:o")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Name(), test.ShouldEqual, "/CbWrist/refs:o")

	test.That(t, p.Write(message.New(1, 2, 3)), test.ShouldBeNil)
	got := broker.Published("/CbWrist/refs:o")
	test.That(t, got, test.ShouldHaveLength, 1)
	test.That(t, string(got[0]), test.ShouldEqual, "[1,2,3]")
}

func TestOpenPortNameInUse(t *testing.T) {
	n, _ := newTestNetwork(t)

	_, err := n.OpenOutPort("/CbWrist/traj:o")
	test.That(t, err, test.ShouldBeNil)
	_, err = n.OpenOutPort("/CbWrist/traj:o")
	test.That(t, errors.Is(err, ErrPortInUse), test.ShouldBeTrue)
	_, err = n.OpenInPort("/CbWrist/traj:o", 1)
	test.That(t, errors.Is(err, ErrPortInUse), test.ShouldBeTrue)
}

func TestConnectFanOut(t *testing.T) {
	n, broker := newTestNetwork(t)

	p, err := n.OpenOutPort("/CbWrist/pidout:o")
	test.That(t, err, test.ShouldBeNil)

	test.That(t, n.Connect("/CbWrist/pidout:o", "/scope/pidout:i"), test.ShouldBeNil)
	test.That(t, n.Connect("/CbWrist/pidout:o", "/scope/pidout:i"), test.ShouldNotBeNil)
	test.That(t, p.Connections(), test.ShouldResemble, []string{"/scope/pidout:i"})

	test.That(t, p.Write(message.New(0.5, 0.25, 0.125)), test.ShouldBeNil)
	test.That(t, broker.Published("/scope/pidout:i"), test.ShouldHaveLength, 1)

	test.That(t, n.Disconnect("/CbWrist/pidout:o", "/scope/pidout:i"), test.ShouldBeNil)
	err = n.Disconnect("/CbWrist/pidout:o", "/scope/pidout:i")
	test.That(t, errors.Is(err, ErrNotConnected), test.ShouldBeTrue)

	test.That(t, p.Write(message.New(0.5, 0.25, 0.125)), test.ShouldBeNil)
	test.That(t, broker.Published("/scope/pidout:i"), test.ShouldHaveLength, 1)
	test.That(t, broker.Published("/CbWrist/pidout:o"), test.ShouldHaveLength, 2)

	err = n.Connect("/not/open:o", "/scope/pidout:i")
	test.That(t, errors.Is(err, ErrNoSuchPort), test.ShouldBeTrue)
}

func TestWriteReportsPublishFailure(t *testing.T) {
	n, broker := newTestNetwork(t)

	p, err := n.OpenOutPort("/CbWrist/traj:o")
	test.That(t, err, test.ShouldBeNil)
	broker.FailPublish("/CbWrist/traj:o", true)

	err = p.Write(message.New(1, 2, 3))
	test.That(t, errors.Is(err, transporttest.ErrInjected), test.ShouldBeTrue)
}

func TestInPortTryRead(t *testing.T) {
	n, _ := newTestNetwork(t)

	in, err := n.OpenInPort("/CbWrist/pidK:i", 4)
	test.That(t, err, test.ShouldBeNil)

	_, ok := in.TryRead()
	test.That(t, ok, test.ShouldBeFalse)

	test.That(t, n.Publish("/CbWrist/pidK:i", []byte("[[5,0.2,1.5]]")), test.ShouldBeNil)
	m, ok := in.TryRead()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.String(), test.ShouldEqual, "(5 0.2 1.5)")

	// text form is accepted too, garbage is dropped
	test.That(t, n.Publish("/CbWrist/pidK:i", []byte("not a message")), test.ShouldBeNil)
	test.That(t, n.Publish("/CbWrist/pidK:i", []byte("(1 2 3)")), test.ShouldBeNil)
	m, ok = in.TryRead()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, m.String(), test.ShouldEqual, "(1 2 3)")
	_, ok = in.TryRead()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestInPortDropsOldest(t *testing.T) {
	n, _ := newTestNetwork(t)

	in, err := n.OpenInPort("/CbWrist/pidK:i", 2)
	test.That(t, err, test.ShouldBeNil)

	for _, payload := range []string{"[1]", "[2]", "[3]"} {
		test.That(t, n.Publish("/CbWrist/pidK:i", []byte(payload)), test.ShouldBeNil)
	}

	first, ok := in.TryRead()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, first.String(), test.ShouldEqual, "2")
	second, ok := in.TryRead()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, second.String(), test.ShouldEqual, "3")
}

func TestInPortReadAndClose(t *testing.T) {
	n, broker := newTestNetwork(t)

	in, err := n.OpenInPort("/scope/refs:i", 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, broker.Subscribed("/scope/refs:i"), test.ShouldBeTrue)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = in.Read(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	test.That(t, in.Close(), test.ShouldBeNil)
	test.That(t, in.Close(), test.ShouldBeNil)
	test.That(t, broker.Subscribed("/scope/refs:i"), test.ShouldBeFalse)

	_, err = in.Read(context.Background())
	test.That(t, errors.Is(err, ErrClosed), test.ShouldBeTrue)

	// the name is free again
	_, err = n.OpenInPort("/scope/refs:i", 1)
	test.That(t, err, test.ShouldBeNil)
}

func TestNetworkClose(t *testing.T) {
	n, _ := newTestNetwork(t)

	_, err := n.OpenOutPort("/CbWrist/refs:o")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.Close(), test.ShouldBeNil)
	test.That(t, n.Close(), test.ShouldBeNil)

	_, err = n.OpenOutPort("/CbWrist/refs:o")
	test.That(t, errors.Is(err, ErrClosed), test.ShouldBeTrue)
	test.That(t, errors.Is(n.Publish("/x", nil), ErrClosed), test.ShouldBeTrue)
}
