/*
Package chat contains the relay core: the presence registry, the per-connection
clients, the envelope router and the broadcast fan-out.

This file defines Client, one WebSocket connection. Its read pump hands
inbound frames to the hub one at a time in arrival order; its write pump
drains the send queue filled by broadcasts and keeps the connection alive
with pings.
*/
package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// default maximum size (in bytes) of a frame sent by the client; see Hub.SetReadLimit.
	defaultReadLimit = 1 << 20

	// number of outbound frames buffered per client before broadcasts start dropping.
	sendQueueSize = 256
)

// Client is one WebSocket connection and its optional user association.
type Client struct {
	// ID identifies the connection for its lifetime.
	ID string

	hub *Hub

	// nil only for clients built in tests.
	conn *websocket.Conn

	// queued outbound frames; never closed, done signals the end instead.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// userID is the associated user, "" until a join succeeds.
	// Only the read pump goroutine touches it.
	userID string

	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. The client is unassociated until it joins.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	id := randx.ConnectionID()

	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logx.Logger().With().Str("conn_id", id).Logger(),
	}
}

// UserID returns the associated user ID, or "" for an unassociated connection.
func (c *Client) UserID() string {
	return c.userID
}

// IsOpen reports whether the client can still receive frames.
func (c *Client) IsOpen() bool {
	return !c.closed.Load()
}

// Close marks the client closed and stops its write pump. It is idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
}

// bind associates the connection with userID.
func (c *Client) bind(userID string) {
	c.userID = userID
}

// unbind clears the association after an explicit exit.
func (c *Client) unbind() {
	c.userID = ""
}

// enqueue offers frame to the send queue without blocking.
// It returns false when the client is closed or its queue is full.
func (c *Client) enqueue(frame []byte) bool {
	if !c.IsOpen() {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame")
		return false
	}
}

// ReadPump reads frames until the connection fails or closes, routing each one
// through the hub before reading the next. On return the client is
// unregistered, which runs the exit sequence if it was associated.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(c.hub.readLimit)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		c.hub.Dispatch(c, frame)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	c.Close()
	c.hub.Unregister(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames to the connection and pings it periodically.
// It returns when the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// unblocks ReadPump, whose cleanup unregisters the client
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// writeFrame writes one frame under the write deadline and reports whether the pump should continue.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if messageType != websocket.CloseMessage {
			c.logger.Info().Err(err).Int("frame_type", messageType).Msg("Error writing frame")
		}
		return false
	}

	return true
}
