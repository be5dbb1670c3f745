// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scope

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/cbwrist/internal/logging"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// room forwards every broadcast to the websocket clients that joined it.
// Only run touches clients and their send channels.
type room struct {
	forward chan []byte
	join    chan *client
	leave   chan *client
	done    chan struct{}
	clients map[*client]bool
	logger  logging.Logger
}

type client struct {
	socket  *websocket.Conn
	send    chan []byte
	initial [][]byte
}

func newRoom(logger logging.Logger) *room {
	return &room{
		forward: make(chan []byte, messageBufferSize),
		join:    make(chan *client),
		leave:   make(chan *client),
		done:    make(chan struct{}),
		clients: map[*client]bool{},
		logger:  logger,
	}
}

func (r *room) run(ctx context.Context) {
	defer func() {
		close(r.done)
		for c := range r.clients {
			close(c.send)
		}
		r.clients = nil
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case c := <-r.join:
			r.clients[c] = true
			for _, msg := range c.initial {
				c.send <- msg
			}
			r.logger.Debugf("scope client joined (%d connected)", len(r.clients))
		case c := <-r.leave:
			if r.clients[c] {
				delete(r.clients, c)
				close(c.send)
			}
			r.logger.Debugf("scope client left (%d connected)", len(r.clients))
		case msg := <-r.forward:
			for c := range r.clients {
				select {
				case c.send <- msg:
				default:
					r.logger.Debug("scope client too slow, message dropped")
				}
			}
		}
	}
}

// broadcast queues msg for every client. It never blocks; when the queue
// is full the message is dropped.
func (r *room) broadcast(msg []byte) {
	select {
	case r.forward <- msg:
	default:
	}
}

func (r *room) serve(w http.ResponseWriter, req *http.Request, initial [][]byte) {
	socket, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warnf("websocket upgrade error: %v", err)
		return
	}
	defer socket.Close()

	if len(initial) > messageBufferSize {
		initial = initial[len(initial)-messageBufferSize:]
	}
	c := &client{
		socket:  socket,
		send:    make(chan []byte, messageBufferSize),
		initial: initial,
	}
	select {
	case r.join <- c:
	case <-r.done:
		return
	}
	defer func() {
		select {
		case r.leave <- c:
		case <-r.done:
		}
	}()

	go c.write()
	c.read()
}

// read discards incoming frames until the peer goes away.
func (c *client) read() {
	for {
		if _, _, err := c.socket.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) write() {
	for msg := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
