package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artvault/internal/models"
	"artvault/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const toggleAttempts = 3

type reactionRepository struct {
	db *mongo.Database
}

// Toggle flips the membership with a conditional single-document update: the
// add only matches when the user is absent and the remove only when present,
// so the member array and counter always move together.
func (r *reactionRepository) Toggle(ctx context.Context, kind models.ReactionKind, userID, postID uint) (res *models.ToggleResult, err error) {
	if !kind.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown reaction kind %q", kind))
	}
	ctx, span := observability.StartStoreSpan(ctx, "mongodb", "toggle_"+string(kind), postsColl)
	defer func() { observability.EndSpan(span, err) }()

	members, counter, joined := membersField(kind), counterField(kind), joinedField(kind, userID)
	uid, pid := int64(userID), int64(postID)
	coll := r.db.Collection(postsColl)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{counter: 1})

	for attempt := 0; attempt < toggleAttempts; attempt++ {
		var doc bson.M
		err = coll.FindOneAndUpdate(ctx,
			bson.M{"_id": pid, "deleted": false, members: bson.M{"$ne": uid}},
			bson.M{
				"$addToSet": bson.M{members: uid},
				"$inc":      bson.M{counter: 1},
				"$set":      bson.M{joined: time.Now().UTC()},
			},
			opts,
		).Decode(&doc)
		if err == nil {
			return &models.ToggleResult{PostID: postID, Kind: kind, Active: true, Count: countOf(doc, counter)}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translate(err, "Post", postID)
		}

		err = coll.FindOneAndUpdate(ctx,
			bson.M{"_id": pid, "deleted": false, members: uid},
			bson.M{
				"$pull":  bson.M{members: uid},
				"$inc":   bson.M{counter: -1},
				"$unset": bson.M{joined: ""},
			},
			opts,
		).Decode(&doc)
		if err == nil {
			return &models.ToggleResult{PostID: postID, Kind: kind, Active: false, Count: countOf(doc, counter)}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, translate(err, "Post", postID)
		}

		// Neither update matched: either the post is gone or a concurrent
		// toggle by the same user landed in between.
		n, cerr := coll.CountDocuments(ctx, bson.M{"_id": pid, "deleted": false})
		if cerr != nil {
			err = cerr
			return nil, translate(cerr, "Post", postID)
		}
		if n == 0 {
			err = models.NewNotFoundError("Post", postID)
			return nil, err
		}
	}
	err = models.NewUnavailableError("mongodb", fmt.Errorf("toggle on post %d kept racing", postID))
	return nil, err
}

func countOf(doc bson.M, field string) int {
	switch v := doc[field].(type) {
	case int32:
		return max(int(v), 0)
	case int64:
		return max(int(v), 0)
	case float64:
		return max(int(v), 0)
	default:
		return 0
	}
}
