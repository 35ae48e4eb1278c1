package notifications

import (
	"context"
	"errors"
	"log"
	"sync"

	"artvault/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	connsPerUserLimit = 12
	connsTotalLimit   = 10000
)

var (
	ErrServerFull  = errors.New("server connection limit reached")
	ErrUserLimit   = errors.New("user connection limit reached")
	ErrHubShutdown = errors.New("hub is shutting down")
)

type clientSet map[*Client]struct{}

// Hub tracks the feed clients of every user. Events reach it either
// directly through Publish or from Redis through StartWiring.
type Hub struct {
	mu       sync.RWMutex
	byUser   map[uint]clientSet
	total    int
	closed   bool
	notifier *Notifier
}

// NewHub creates a hub. With a configured notifier, events are published to
// Redis and delivered when they come back through the subscription, so every
// instance sees them exactly once.
func NewHub(notifier *Notifier) *Hub {
	return &Hub{byUser: make(map[uint]clientSet), notifier: notifier}
}

func (h *Hub) Name() string { return "feed hub" }

// Register admits a connection for userID unless the hub is closing or a
// connection limit is reached.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrHubShutdown
	case h.total >= connsTotalLimit:
		return nil, ErrServerFull
	case len(h.byUser[userID]) >= connsPerUserLimit:
		return nil, ErrUserLimit
	}

	set := h.byUser[userID]
	if set == nil {
		set = clientSet{}
		h.byUser[userID] = set
	}
	c := NewClient(h, conn, userID)
	set[c] = struct{}{}
	h.total++
	observability.WebSocketConnectionsTotal.Inc()
	return c, nil
}

// UnregisterClient removes the client and closes its send buffer. Repeated
// calls are no-ops.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.byUser[c.UserID]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.byUser, c.UserID)
	}
	h.total--
	observability.WebSocketConnectionsTotal.Dec()
	close(c.Send)
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// SendToUser queues payload for every connection of userID.
func (h *Hub) SendToUser(userID uint, payload string) {
	msg := []byte(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byUser[userID] {
		c.TrySend(msg)
	}
}

// SendToAll queues payload for every connection.
func (h *Hub) SendToAll(payload string) {
	msg := []byte(payload)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.byUser {
		for c := range set {
			c.TrySend(msg)
		}
	}
}

// Publish delivers a feed event to every client. Through Redis when the
// notifier is configured, in-process otherwise.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	if h.notifier.Enabled() {
		return h.notifier.PublishBroadcast(ctx, payload)
	}
	h.SendToAll(payload)
	return nil
}

// PublishToUser delivers an event to the connections of one user, on every
// instance when Redis is configured.
func (h *Hub) PublishToUser(ctx context.Context, userID uint, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return err
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()
	if h.notifier.Enabled() {
		return h.notifier.PublishUser(ctx, userID, payload)
	}
	h.SendToUser(userID, payload)
	return nil
}

// StartWiring subscribes to the feed channels and routes each message to
// the matching connections. Without Redis it does nothing.
func (h *Hub) StartWiring(ctx context.Context) error {
	return h.notifier.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == BroadcastChannel {
			h.SendToAll(payload)
			return
		}
		if userID, ok := parseUserChannel(channel); ok {
			h.SendToUser(userID, payload)
			return
		}
		log.Printf("feed: ignoring message on unknown channel %q", channel)
	})
}

// Shutdown closes every send buffer; each WritePump then sends a going-away
// close frame and closes its connection.
func (h *Hub) Shutdown(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for _, set := range h.byUser {
		for c := range set {
			close(c.Send)
		}
	}
	observability.WebSocketConnectionsTotal.Sub(float64(h.total))
	h.byUser = make(map[uint]clientSet)
	h.total = 0
	return nil
}
