// Package ws is the WebSocket transport of the relay: connection upgrade and
// authentication, per-connection read/write pumps, and the protocol router.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"alumnet/domain"

	"github.com/gorilla/websocket"
)

// Client is one live connection handle. It satisfies contract.Transport:
// writes go through a buffered channel drained by the write pump, pings and
// close frames go through WriteControl, which gorilla allows concurrently
// with the pump.
type Client struct {
	userID       string
	conn         *websocket.Conn
	send         chan domain.Envelope
	log          *slog.Logger
	writeTimeout time.Duration
	closeOnce    sync.Once
	done         chan struct{}
}

func NewClient(userID string, conn *websocket.Conn, log *slog.Logger,
	sendBufferSize int, maxMessageSize int64, writeTimeout time.Duration) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		userID:       userID,
		conn:         conn,
		send:         make(chan domain.Envelope, sendBufferSize),
		log:          log,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// WriteEnvelope queues an envelope for delivery. It never blocks: a full
// buffer or a closed connection reports an error and the caller drops the
// send, consistent with at-most-once relay.
func (c *Client) WriteEnvelope(envelope domain.Envelope) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	case c.send <- envelope:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Ping fires a liveness probe. Fire-and-forget: the answer, if any, arrives
// as a pong on the read pump.
func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// Close sends a close frame carrying the reason, then tears the connection
// down. Safe to call multiple times.
func (c *Client) Close(reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(c.writeTimeout))
		_ = c.conn.Close()
	})
	return nil
}

// readPump delivers inbound frames to the router until the connection dies.
// Any inbound traffic, pongs included, counts as a liveness signal.
func (c *Client) readPump(onAlive func(), onFrame func(raw []byte)) {
	defer func() { _ = c.Close("read pump terminated") }()

	c.conn.SetPongHandler(func(string) error {
		onAlive()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.log.Debug("Unexpected close", "user_id", c.userID, "error", err)
			}
			return
		}
		onAlive()
		onFrame(raw)
	}
}

// writePump drains the send channel onto the wire.
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case envelope := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.log.Debug("Write failed", "user_id", c.userID, "error", err)
				_ = c.Close("write failure")
				return
			}
		}
	}
}
