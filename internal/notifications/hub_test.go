package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(msg, &ev))
		return ev
	case <-time.After(testEventuallyTimeout):
		t.Fatal("timed out waiting for message")
		return Event{}
	}
}

func TestHub_RegisterLimits(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < connsPerUserLimit; i++ {
		_, err := hub.Register(1, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(1, nil)
	assert.ErrorIs(t, err, ErrUserLimit)

	_, err = hub.Register(2, nil)
	assert.NoError(t, err, "limit is per user")
	assert.Equal(t, connsPerUserLimit+1, hub.Count())

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Equal(t, 0, hub.Count())
	_, err = hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrHubShutdown)
}

func TestHub_UnregisterClosesSendOnce(t *testing.T) {
	hub := NewHub(nil)
	client, err := hub.Register(4, nil)
	require.NoError(t, err)

	hub.UnregisterClient(client)
	hub.UnregisterClient(client)
	_, open := <-client.Send
	assert.False(t, open)
	assert.Equal(t, 0, hub.Count())
}

func TestHub_PublishInProcess(t *testing.T) {
	hub := NewHub(nil)
	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(2, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), Event{
		Type:    EventPostReactionUpdated,
		Payload: ReactionPayload{PostID: 9, Kind: "like", LikesCount: 3},
	}))

	for _, c := range []*Client{a, b} {
		ev := receive(t, c)
		assert.Equal(t, EventPostReactionUpdated, ev.Type)
		payload := ev.Payload.(map[string]interface{})
		assert.EqualValues(t, 9, payload["post_id"])
		assert.EqualValues(t, 3, payload["likes_count"])
	}

	assert.Error(t, hub.Publish(context.Background(), Event{}), "events need a type")
}

func TestHub_BufferFullDrops(t *testing.T) {
	hub := NewHub(nil)
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	for i := 0; i < cap(client.Send); i++ {
		client.TrySend([]byte(`{}`))
	}
	assert.False(t, client.Lagged())
	client.TrySend([]byte(`{"type":"lost"}`))
	assert.Len(t, client.Send, cap(client.Send), "overflow is dropped, not blocked on")
	assert.True(t, client.Lagged())

	hub.UnregisterClient(client)
	assert.NotPanics(t, func() { client.TrySend([]byte(`{}`)) }, "send after close is dropped")
}

func TestClient_AnswersTextPing(t *testing.T) {
	hub := NewHub(nil)
	client, err := hub.Register(6, nil)
	require.NoError(t, err)

	client.handleInbound([]byte("hello"))
	assert.Empty(t, client.Send)

	client.handleInbound([]byte(" ping\n"))
	assert.Equal(t, EventPong, receive(t, client).Type)
}

func TestHub_StartWiringDeliversRedisEventsOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub(NewNotifier(rdb))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx))

	fan, err := hub.Register(5, nil)
	require.NoError(t, err)
	other, err := hub.Register(6, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, Event{Type: EventPostDeleted, Payload: map[string]uint{"post_id": 1}}))
	assert.Equal(t, EventPostDeleted, receive(t, fan).Type)
	assert.Equal(t, EventPostDeleted, receive(t, other).Type)
	assert.Never(t, func() bool { return len(fan.Send) > 0 }, 20*testPollInterval, testPollInterval)

	require.NoError(t, hub.PublishToUser(ctx, 6, Event{Type: EventActivity, Payload: ActivityPayload{Kind: "comment", PostID: 1, ActorID: 5}}))
	assert.Equal(t, EventActivity, receive(t, other).Type)
	assert.Empty(t, fan.Send, "user events reach only that user")
}

func TestHub_PublishToUserInProcess(t *testing.T) {
	hub := NewHub(nil)
	author, err := hub.Register(3, nil)
	require.NoError(t, err)
	reader, err := hub.Register(4, nil)
	require.NoError(t, err)

	require.NoError(t, hub.PublishToUser(context.Background(), 3, Event{Type: EventActivity, Payload: ActivityPayload{Kind: "like", PostID: 9, ActorID: 4}}))
	ev := receive(t, author)
	assert.Equal(t, EventActivity, ev.Type)
	assert.Empty(t, reader.Send)

	assert.Error(t, hub.PublishToUser(context.Background(), 3, Event{}))
}
