// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package transporttest provides an in-memory MQTT broker and client for
// tests that exercise the transport without a network.
package transporttest

import (
	"errors"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrInjected is returned by operations a test asked to fail.
var ErrInjected = errors.New("transporttest: injected failure")

// Broker routes messages between the clients it created. Delivery is
// synchronous: Publish returns after every matching handler ran.
type Broker struct {
	mu            sync.Mutex
	subs          []subscription
	published     map[string][][]byte
	failPublish   map[string]bool
	failSubscribe map[string]bool
	down          bool
}

type subscription struct {
	client  *Client
	filter  string
	handler mqtt.MessageHandler
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		published:     map[string][][]byte{},
		failPublish:   map[string]bool{},
		failSubscribe: map[string]bool{},
	}
}

// SetDown makes subsequent Connect calls fail.
func (b *Broker) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

// FailPublish makes publishes on topic fail until cleared.
func (b *Broker) FailPublish(topic string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failPublish[topic] = fail
}

// FailSubscribe makes subscriptions to filter fail until cleared.
func (b *Broker) FailSubscribe(filter string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSubscribe[filter] = fail
}

// Published returns a copy of every payload successfully published on topic.
func (b *Broker) Published(topic string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte(nil), b.published[topic]...)
}

// Subscribed reports whether any client currently subscribes to filter.
func (b *Broker) Subscribed(filter string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.filter == filter {
			return true
		}
	}
	return false
}

// NewClient returns a disconnected client attached to b.
func (b *Broker) NewClient() *Client {
	return &Client{broker: b}
}

func (b *Broker) publish(topic string, payload []byte) error {
	b.mu.Lock()
	if b.failPublish[topic] {
		b.mu.Unlock()
		return ErrInjected
	}
	b.published[topic] = append(b.published[topic], payload)
	var handlers []mqtt.MessageHandler
	var clients []*Client
	for _, s := range b.subs {
		if Match(s.filter, topic) {
			handlers = append(handlers, s.handler)
			clients = append(clients, s.client)
		}
	}
	b.mu.Unlock()

	for i, h := range handlers {
		h(clients[i], &message{topic: topic, payload: payload})
	}
	return nil
}

func (b *Broker) subscribe(c *Client, filter string, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSubscribe[filter] {
		return ErrInjected
	}
	b.subs = append(b.subs, subscription{client: c, filter: filter, handler: handler})
	return nil
}

func (b *Broker) unsubscribe(c *Client, filters ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		drop := s.client == c && (filters == nil || contains(filters, s.filter))
		if !drop {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Match reports whether topic matches the MQTT filter, honouring the
// single-level '+' and multi-level '#' wildcards.
func Match(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, f := range fp {
		if f == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if f != "+" && f != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}

// Client implements mqtt.Client on top of a Broker.
type Client struct {
	broker    *Broker
	mu        sync.Mutex
	connected bool
}

var _ mqtt.Client = (*Client)(nil)

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *Client) Connect() mqtt.Token {
	c.broker.mu.Lock()
	down := c.broker.down
	c.broker.mu.Unlock()
	if down {
		return done(errors.New("transporttest: broker unreachable"))
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return done(nil)
}

func (c *Client) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.broker.unsubscribe(c)
}

func (c *Client) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	if !c.IsConnected() {
		return done(mqtt.ErrNotConnected)
	}
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	default:
		return done(errors.New("transporttest: unknown payload type"))
	}
	return done(c.broker.publish(topic, data))
}

func (c *Client) Subscribe(filter string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	if !c.IsConnected() {
		return done(mqtt.ErrNotConnected)
	}
	return done(c.broker.subscribe(c, filter, callback))
}

func (c *Client) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for f := range filters {
		if tok := c.Subscribe(f, 0, callback); tok.Error() != nil {
			return tok
		}
	}
	return done(nil)
}

func (c *Client) Unsubscribe(filters ...string) mqtt.Token {
	if len(filters) == 0 {
		return done(nil)
	}
	c.broker.unsubscribe(c, filters...)
	return done(nil)
}

func (c *Client) AddRoute(string, mqtt.MessageHandler) {}

func (c *Client) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type token struct {
	err error
	ch  chan struct{}
}

func done(err error) *token {
	ch := make(chan struct{})
	close(ch)
	return &token{err: err, ch: ch}
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Done() <-chan struct{}          { return t.ch }
func (t *token) Error() error                   { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 0 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
