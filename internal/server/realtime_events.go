package server

import (
	"context"
	"time"

	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/notifications"
)

// publishEvent fans an event out to feed subscribers. Delivery is best-effort;
// failures are logged and never fail the request that caused them.
func (s *Server) publishEvent(ctx context.Context, eventType string, payload interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(ctx, notifications.Event{Type: eventType, Payload: payload}); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			"event", eventType, "error", err)
	}
}

// notifyAuthor sends an activity event to the post author's own connections
// unless the author caused it.
func (s *Server) notifyAuthor(ctx context.Context, authorID uint, activity notifications.ActivityPayload) {
	if s.hub == nil || authorID == 0 || authorID == activity.ActorID {
		return
	}
	event := notifications.Event{Type: notifications.EventActivity, Payload: activity}
	if err := s.hub.PublishToUser(ctx, authorID, event); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to notify post author",
			"author_id", authorID, "post_id", activity.PostID, "error", err)
	}
}

func (s *Server) publishPostEvent(ctx context.Context, eventType string, post *models.Post) {
	s.publishEvent(ctx, eventType, map[string]interface{}{
		"post_id":    post.ID,
		"author_id":  post.UserID,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// publishReactionEvent reports both counters of the post after a toggle.
func (s *Server) publishReactionEvent(ctx context.Context, viewerID uint, result *models.ToggleResult) {
	payload := notifications.ReactionPayload{
		PostID: result.PostID,
		Kind:   string(result.Kind),
	}
	post, err := s.postService.GetPost(ctx, result.PostID, viewerID)
	switch {
	case err == nil:
		payload.LikesCount = post.LikesCount
		payload.SavesCount = post.SavesCount
	case result.Kind == models.ReactionSave:
		payload.SavesCount = result.Count
	default:
		payload.LikesCount = result.Count
	}
	s.publishEvent(ctx, notifications.EventPostReactionUpdated, payload)

	if err == nil && result.Active {
		s.notifyAuthor(ctx, post.UserID, notifications.ActivityPayload{
			Kind:    string(result.Kind),
			PostID:  post.ID,
			ActorID: viewerID,
		})
	}
}

// publishCommentEvent includes the post's comment counter after the change.
func (s *Server) publishCommentEvent(ctx context.Context, eventType string, comment *models.Comment) {
	payload := map[string]interface{}{
		"post_id":    comment.PostID,
		"comment_id": comment.ID,
		"user_id":    comment.UserID,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if eventType == notifications.EventCommentCreated {
		payload["comment"] = comment
	}
	post, err := s.postService.GetPost(ctx, comment.PostID, comment.UserID)
	if err == nil {
		payload["comments_count"] = post.CommentsCount
	}
	s.publishEvent(ctx, eventType, payload)

	if err == nil && eventType == notifications.EventCommentCreated {
		s.notifyAuthor(ctx, post.UserID, notifications.ActivityPayload{
			Kind:      "comment",
			PostID:    post.ID,
			ActorID:   comment.UserID,
			CommentID: comment.ID,
		})
	}
}
