package notifications

import (
	"encoding/json"
	"fmt"
)

// Event types delivered on the realtime feed.
const (
	EventPostCreated         = "post_created"
	EventPostUpdated         = "post_updated"
	EventPostDeleted         = "post_deleted"
	EventPostReactionUpdated = "post_reaction_updated"
	EventCommentCreated      = "comment_created"
	EventCommentDeleted      = "comment_deleted"
	EventMessagesDropped     = "messages_dropped"
	EventPong                = "pong"

	// EventActivity goes only to a post's author when someone else reacts
	// to or comments on the post.
	EventActivity = "activity"
)

// Event is the {type, payload} envelope sent to websocket clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ReactionPayload carries both counters so clients can patch a post card
// after either a like or a save.
type ReactionPayload struct {
	PostID     uint   `json:"post_id"`
	Kind       string `json:"kind"`
	LikesCount int    `json:"likes_count"`
	SavesCount int    `json:"saves_count"`
}

// ActivityPayload tells an author what happened on one of their posts.
type ActivityPayload struct {
	Kind      string `json:"kind"`
	PostID    uint   `json:"post_id"`
	ActorID   uint   `json:"actor_id"`
	CommentID uint   `json:"comment_id,omitempty"`
}

// Encode renders the event as the wire payload.
func (e Event) Encode() (string, error) {
	if e.Type == "" {
		return "", fmt.Errorf("event type is required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	return string(data), nil
}

var dropNotice = mustEncode(Event{
	Type:    EventMessagesDropped,
	Payload: map[string]string{"reason": "buffer_full"},
})

var pongNotice = mustEncode(Event{Type: EventPong, Payload: struct{}{}})

func mustEncode(e Event) []byte {
	s, err := e.Encode()
	if err != nil {
		panic(err)
	}
	return []byte(s)
}
