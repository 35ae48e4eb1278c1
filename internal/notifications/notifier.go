// Package notifications fans realtime feed events out to websocket clients
// across instances through Redis pub/sub.
package notifications

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	// BroadcastChannel carries feed events for every connected client.
	BroadcastChannel  = "artvault:feed:all"
	userChannelPrefix = "artvault:feed:user:"
	userChannelGlob   = userChannelPrefix + "*"
)

// Notifier publishes feed events to Redis and subscribes to them.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier wraps rdb. With a nil client every publish is a no-op and
// the hub delivers in-process.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events leave the process through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends payload to the clients of one user on every instance.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends payload to every client on every instance.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// StartPatternSubscriber calls onMessage for each message on the broadcast
// and per-user channels until ctx is done. It returns once the subscription
// is confirmed so events published right after startup are not missed. A
// panicking onMessage is logged and the loop continues.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel string, payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelGlob, BroadcastChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to feed channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				deliver(onMessage, msg)
			}
		}
	}()

	return nil
}

func deliver(onMessage func(channel, payload string), msg *redis.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("feed: handler panic on %s: %v\n%s", msg.Channel, r, debug.Stack())
		}
	}()
	onMessage(msg.Channel, msg.Payload)
}

// UserChannel is the Redis channel for one user's feed events.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// parseUserChannel is the inverse of UserChannel.
func parseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
