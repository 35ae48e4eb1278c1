package notifications

import (
	"bytes"
	"log"
	"sync/atomic"
	"time"

	"artvault/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 1024
	sendBuffer     = 256
)

// WSHub is the part of a hub a Client reports back to.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one websocket connection subscribed to the realtime feed.
// Events flow server to client only; the read side exists for keepalive
// and the optional text "ping" that answers with a pong event.
type Client struct {
	UserID uint
	// Send holds encoded events waiting for WritePump. The hub closes it on unregister.
	Send chan []byte

	hub    WSHub
	conn   *websocket.Conn
	lagged atomic.Bool
}

// NewClient wraps conn for userID. conn may be nil in tests that only
// exercise delivery through Send.
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		hub:    hub,
		conn:   conn,
	}
}

// ReadPump reads until the peer goes away, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("feed: read from user %d: %v", c.UserID, err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if kind == websocket.TextMessage {
			c.handleInbound(frame)
		}
	}
}

// handleInbound answers application-level pings from clients that cannot
// send websocket control frames. Anything else is ignored.
func (c *Client) handleInbound(frame []byte) {
	if bytes.Equal(bytes.TrimSpace(frame), []byte("ping")) {
		c.TrySend(pongNotice)
	}
}

// WritePump writes queued events and periodic pings until Send is closed
// or a write fails. After a client has lost events to a full buffer it is
// sent a messages_dropped notice so it can refetch.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			if c.lagged.Swap(false) {
				if err := c.conn.WriteMessage(websocket.TextMessage, dropNotice); err != nil {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues msg without blocking. A full buffer drops msg and marks
// the client as lagged; a closed buffer drops it silently.
func (c *Client) TrySend(msg []byte) {
	defer func() {
		if recover() != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hubName(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- msg:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hubName(), "full").Inc()
		if !c.lagged.Swap(true) {
			log.Printf("feed: user %d is lagging, dropping events", c.UserID)
		}
	}
}

// Lagged reports whether events were dropped since the last notice was written.
func (c *Client) Lagged() bool { return c.lagged.Load() }

func (c *Client) hubName() string {
	if c.hub == nil {
		return "unknown"
	}
	return c.hub.Name()
}
