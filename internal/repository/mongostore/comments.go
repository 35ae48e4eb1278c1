package mongostore

import (
	"context"
	"time"

	"artvault/internal/models"
	"artvault/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type commentRepository struct {
	db    *mongo.Database
	users *userRepository
}

func (r *commentRepository) coll() *mongo.Collection {
	return r.db.Collection(commentsColl)
}

func (r *commentRepository) bumpCount(ctx context.Context, postID uint, delta int) (bool, error) {
	filter := bson.M{"_id": int64(postID), "deleted": false}
	if delta < 0 {
		filter["commentsCount"] = bson.M{"$gt": 0}
	}
	res, err := r.db.Collection(postsColl).UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"commentsCount": delta}})
	if err != nil {
		return false, translate(err, "Post", postID)
	}
	return res.MatchedCount > 0, nil
}

// Create bumps the post counter first so a missing post fails before the
// insert; a failed insert takes the bump back.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	ok, err := r.bumpCount(ctx, comment.PostID, 1)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewNotFoundError("Post", comment.PostID)
	}

	id, err := nextID(ctx, r.db, commentsColl)
	if err == nil {
		now := time.Now().UTC()
		comment.ID = id
		comment.CreatedAt, comment.UpdatedAt = now, now
		_, err = r.coll().InsertOne(ctx, commentDoc{
			ID:        int64(id),
			PostID:    int64(comment.PostID),
			UserID:    int64(comment.UserID),
			Content:   comment.Content,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		comment.ID = 0
		_, _ = r.bumpCount(context.WithoutCancel(ctx), comment.PostID, -1)
		return translate(err, "Comment", nil)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var doc commentDoc
	if err := r.coll().FindOne(ctx, bson.M{"_id": int64(id), "deleted": false}).Decode(&doc); err != nil {
		return nil, translate(err, "Comment", id)
	}
	out, err := r.withAuthors(ctx, []commentDoc{doc})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uint, page repository.Page) ([]*models.Comment, error) {
	n, err := r.db.Collection(postsColl).CountDocuments(ctx, bson.M{"_id": int64(postID), "deleted": false})
	if err != nil {
		return nil, translate(err, "Post", postID)
	}
	if n == 0 {
		return nil, models.NewNotFoundError("Post", postID)
	}
	cur, err := r.coll().Find(ctx, bson.M{"postId": int64(postID), "deleted": false}, pageOptions(page))
	if err != nil {
		return nil, translate(err, "Comment", nil)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "Comment", nil)
	}
	return r.withAuthors(ctx, docs)
}

func (r *commentRepository) Update(ctx context.Context, comment *models.Comment) error {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": int64(comment.ID), "deleted": false},
		bson.M{"$set": bson.M{"content": comment.Content, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return translate(err, "Comment", comment.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Comment", comment.ID)
	}
	return nil
}

// Delete tombstones the comment and drops the post counter. A failed counter
// update revives the comment.
func (r *commentRepository) Delete(ctx context.Context, comment *models.Comment) error {
	res, err := r.coll().UpdateOne(ctx,
		bson.M{"_id": int64(comment.ID), "postId": int64(comment.PostID), "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return translate(err, "Comment", comment.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Comment", comment.ID)
	}
	if _, err := r.bumpCount(ctx, comment.PostID, -1); err != nil {
		_, _ = r.coll().UpdateOne(context.WithoutCancel(ctx),
			bson.M{"_id": int64(comment.ID), "deleted": true},
			bson.M{"$set": bson.M{"deleted": false}},
		)
		return err
	}
	return nil
}

func (r *commentRepository) withAuthors(ctx context.Context, docs []commentDoc) ([]*models.Comment, error) {
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	authors, err := r.users.authors(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Comment, 0, len(docs))
	for i := range docs {
		c := docs[i].model()
		c.User = authors[docs[i].UserID]
		out = append(out, c)
	}
	return out, nil
}
