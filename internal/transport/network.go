// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transport carries named channels over an MQTT broker. A channel
// name is used verbatim as the MQTT topic.
package transport

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"

	"github.com/relabs-tech/cbwrist/internal/logging"
	"github.com/relabs-tech/cbwrist/internal/message"
)

var (
	ErrInvalidName  = errors.New("invalid port name")
	ErrPortInUse    = errors.New("port name already in use")
	ErrNoSuchPort   = errors.New("no such output port")
	ErrNotConnected = errors.New("ports not connected")
	ErrClosed       = errors.New("transport closed")
)

// Options describes how to reach the broker.
type Options struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
	QoS            byte
}

// Network is one live broker session. It must be created before any port
// or device is opened and closed after every user is done with it.
type Network struct {
	client mqtt.Client
	qos    byte
	logger logging.Logger

	mu       sync.Mutex
	outPorts map[string]*OutPort
	inPorts  map[string]*InPort
	closed   bool
}

// Dial connects to the broker. A failure here means the messaging
// network is not reachable at all.
func Dial(opts Options, logger logging.Logger) (*Network, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(mqttOpts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("unable to find MQTT broker at %s: connect timed out after %s", opts.Broker, timeout)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("unable to find MQTT broker at %s: %w", opts.Broker, token.Error())
	}
	logger.Infof("connected to MQTT broker at %s as %s", opts.Broker, opts.ClientID)

	return NewNetwork(client, opts.QoS, logger), nil
}

// NewNetwork wraps an already connected client.
func NewNetwork(client mqtt.Client, qos byte, logger logging.Logger) *Network {
	return &Network{
		client:   client,
		qos:      qos,
		logger:   logger,
		outPorts: map[string]*OutPort{},
		inPorts:  map[string]*InPort{},
	}
}

// ValidName checks that name can be used as a channel name.
func ValidName(name string) error {
	if name == "" || !strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w %q: must start with '/'", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, "+# \t\r\n") {
		return fmt.Errorf("%w %q: wildcards and whitespace are not allowed", ErrInvalidName, name)
	}
	return nil
}

// Publish sends a raw payload on topic.
func (n *Network) Publish(topic string, payload []byte) error {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return ErrClosed
	}

	token := n.client.Publish(topic, n.qos, false, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers handler for raw payloads on topic.
func (n *Network) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return ErrClosed
	}

	token := n.client.Subscribe(topic, n.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe removes every handler registered for topic.
func (n *Network) Unsubscribe(topic string) error {
	token := n.client.Unsubscribe(topic)
	token.Wait()
	return token.Error()
}

// OpenOutPort claims name for publishing.
func (n *Network) OpenOutPort(name string) (*OutPort, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	if n.inUse(name) {
		return nil, fmt.Errorf("%w: %s", ErrPortInUse, name)
	}

	p := &OutPort{net: n, name: name}
	n.outPorts[name] = p
	return p, nil
}

// OpenInPort subscribes to name and buffers up to depth messages.
func (n *Network) OpenInPort(name string, depth int) (*InPort, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 1
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	if n.inUse(name) {
		n.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPortInUse, name)
	}
	p := &InPort{
		net:    n,
		name:   name,
		inbox:  make(chan *message.Message, depth),
		done:   make(chan struct{}),
		logger: n.logger,
	}
	n.inPorts[name] = p
	n.mu.Unlock()

	if err := n.Subscribe(name, p.deliver); err != nil {
		n.release(name)
		return nil, err
	}
	return p, nil
}

func (n *Network) inUse(name string) bool {
	_, out := n.outPorts[name]
	_, in := n.inPorts[name]
	return out || in
}

func (n *Network) release(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.outPorts, name)
	delete(n.inPorts, name)
}

// Connect wires the local output port src to the channel dst: every
// message written on src is also delivered to dst.
func (n *Network) Connect(src, dst string) error {
	if err := ValidName(dst); err != nil {
		return err
	}
	n.mu.Lock()
	p, ok := n.outPorts[src]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchPort, src)
	}
	return p.addDest(dst)
}

// Disconnect removes a wiring made by Connect.
func (n *Network) Disconnect(src, dst string) error {
	n.mu.Lock()
	p, ok := n.outPorts[src]
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchPort, src)
	}
	return p.removeDest(dst)
}

// Close closes every port still open and ends the broker session.
// Calling Close more than once is harmless.
func (n *Network) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	var ins []*InPort
	for _, p := range n.inPorts {
		ins = append(ins, p)
	}
	var outs []*OutPort
	for _, p := range n.outPorts {
		outs = append(outs, p)
	}
	n.mu.Unlock()

	var err error
	for _, p := range ins {
		err = multierr.Append(err, p.Close())
	}
	for _, p := range outs {
		err = multierr.Append(err, p.Close())
	}

	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	n.client.Disconnect(250)
	return err
}
