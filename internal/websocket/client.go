// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/notevault/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only ever send {"type":"ping"}.
	maxInboundSize = 4 * 1024
	sendBuffer     = 256
)

var clientIDCounter atomic.Uint64

// Client is one subscriber to task, restore and export notifications. It
// receives broadcasts from the hub and sends nothing but keepalive pings.
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. Register it with the hub, then
// call Start.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := clientIDCounter.Add(1)
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		logger: logging.WithComponent("websocket").With().Uint64("subscriber", id).Logger(),
	}
}

// ID returns the subscriber sequence number. Broadcasts go out in ID order.
func (c *Client) ID() uint64 {
	return c.id
}

// Start runs the delivery and inbound loops until the connection ends.
func (c *Client) Start() {
	go c.deliver()
	go c.listen()
}

// listen keeps the read deadline fresh and answers application pings. When
// the subscriber goes away it leaves the hub.
func (c *Client) listen() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close() //nolint:errcheck // connection already finished
	}()

	c.conn.SetReadLimit(maxInboundSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	if err := extend(""); err != nil {
		c.logger.Debug().Err(err).Msg("Subscriber connection unusable")
		return
	}
	c.conn.SetPongHandler(extend)

	for {
		var in Message
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("Subscriber disconnected unexpectedly")
			}
			return
		}
		if in.Type != MessageTypePing {
			continue
		}
		select {
		case c.send <- Message{Type: MessageTypePong}:
		default:
			// the hub is flooding this subscriber; skip the pong
		}
	}
}

// deliver writes queued notifications and a protocol ping every pingPeriod.
// A closed send channel means the hub dropped this subscriber.
func (c *Client) deliver() {
	keepalive := time.NewTicker(pingPeriod)
	defer func() {
		keepalive.Stop()
		c.conn.Close() //nolint:errcheck // connection already finished
	}()

	for {
		select {
		case msg, open := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !open {
				c.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck // peer may already be gone
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "notifications closed"))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to deliver notification")
				return
			}

		case <-keepalive.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
