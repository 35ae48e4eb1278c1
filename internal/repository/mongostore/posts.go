package mongostore

import (
	"context"
	"math"
	"strings"
	"time"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const maxNearbyDocs = 500

type postRepository struct {
	db    *mongo.Database
	users *userRepository
}

func (r *postRepository) coll() *mongo.Collection {
	return r.db.Collection(postsColl)
}

func live(filter bson.M) bson.M {
	filter["deleted"] = false
	return filter
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	id, err := nextID(ctx, r.db, postsColl)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	post.ID = id
	post.CreatedAt, post.UpdatedAt = now, now
	post.LikesCount, post.SavesCount, post.CommentsCount = 0, 0, 0
	if _, err := r.coll().InsertOne(ctx, newPostDoc(post)); err != nil {
		post.ID = 0
		return translate(err, "Post", id)
	}
	if post.Exhibition != nil {
		post.Exhibition.PostID = id
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var doc postDoc
	if err := r.coll().FindOne(ctx, live(bson.M{"_id": int64(id)})).Decode(&doc); err != nil {
		return nil, translate(err, "Post", id)
	}
	posts, err := r.attachAuthors(ctx, []postDoc{doc}, viewerID)
	if err != nil {
		return nil, err
	}
	return posts[0], nil
}

func (r *postRepository) List(ctx context.Context, page repository.Page, viewerID uint) ([]*models.Post, error) {
	return r.find(ctx, live(bson.M{}), pageOptions(page), viewerID)
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, page repository.Page, viewerID uint) ([]*models.Post, error) {
	return r.find(ctx, live(bson.M{"userId": int64(userID)}), pageOptions(page), viewerID)
}

func (r *postRepository) ListByArtist(ctx context.Context, artist string, page repository.Page, viewerID uint) ([]*models.Post, error) {
	return r.find(ctx, live(bson.M{"artistLower": strings.ToLower(artist)}), pageOptions(page), viewerID)
}

func (r *postRepository) ListLiked(ctx context.Context, userID uint, page repository.Page) ([]*models.Post, error) {
	return r.listMembership(ctx, models.ReactionLike, userID, page)
}

func (r *postRepository) ListSaved(ctx context.Context, userID uint, page repository.Page) ([]*models.Post, error) {
	return r.listMembership(ctx, models.ReactionSave, userID, page)
}

// listMembership lists the posts a user liked or saved, most recently
// joined first.
func (r *postRepository) listMembership(ctx context.Context, kind models.ReactionKind, userID uint, page repository.Page) ([]*models.Post, error) {
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: joinedField(kind, userID), Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	return r.find(ctx, live(bson.M{membersField(kind): int64(userID)}), opts, userID)
}

func (r *postRepository) Search(ctx context.Context, query string, page repository.Page, viewerID uint) ([]*models.Post, error) {
	pattern := containsPattern(query)
	filter := live(bson.M{"$or": bson.A{
		bson.M{"title": pattern},
		bson.M{"artist": pattern},
		bson.M{"hashtags": pattern},
	}})
	return r.find(ctx, filter, pageOptions(page), viewerID)
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	hashtags := post.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	exhibition := newExhibitionDoc(post)
	res, err := r.coll().UpdateOne(ctx, live(bson.M{"_id": int64(post.ID)}), bson.M{"$set": bson.M{
		"title":         post.Title,
		"description":   post.Description,
		"imageUrl":      post.ImageURL,
		"imageKey":      post.ImageKey,
		"artist":        post.Artist,
		"artistLower":   strings.ToLower(post.Artist),
		"hashtags":      hashtags,
		"hasExhibition": exhibition != nil,
		"exhibition":    exhibition,
		"latitude":      post.Latitude,
		"longitude":     post.Longitude,
		"city":          post.City,
		"updatedAt":     time.Now().UTC(),
	}})
	if err != nil {
		return translate(err, "Post", post.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// Delete tombstones the post, clears its memberships and exhibition, and
// tombstones its comments. If the comments cannot be tombstoned the post is
// restored from its prior state and the error returned.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var before postDoc
	err := r.coll().FindOneAndUpdate(ctx, live(bson.M{"_id": int64(id)}), bson.M{"$set": bson.M{
		"deleted":       true,
		"likedBy":       bson.A{},
		"savedBy":       bson.A{},
		"likedAt":       bson.M{},
		"savedAt":       bson.M{},
		"likesCount":    0,
		"savesCount":    0,
		"hasExhibition": false,
		"exhibition":    nil,
		"updatedAt":     time.Now().UTC(),
	}}, options.FindOneAndUpdate().SetReturnDocument(options.Before)).Decode(&before)
	if err != nil {
		return translate(err, "Post", id)
	}
	_, err = r.db.Collection(commentsColl).UpdateMany(ctx,
		bson.M{"postId": int64(id), "deleted": false},
		bson.M{"$set": bson.M{"deleted": true}},
	)
	if err != nil {
		r.restore(context.WithoutCancel(ctx), &before)
		return translate(err, "Comment", id)
	}
	return nil
}

// restore undoes a tombstone written by Delete.
func (r *postRepository) restore(ctx context.Context, before *postDoc) {
	likedAt, savedAt := before.LikedAt, before.SavedAt
	if likedAt == nil {
		likedAt = map[string]time.Time{}
	}
	if savedAt == nil {
		savedAt = map[string]time.Time{}
	}
	_, _ = r.coll().UpdateOne(ctx, bson.M{"_id": before.ID, "deleted": true}, bson.M{"$set": bson.M{
		"deleted":       false,
		"likedBy":       nonNil(before.LikedBy),
		"savedBy":       nonNil(before.SavedBy),
		"likedAt":       likedAt,
		"savedAt":       savedAt,
		"likesCount":    before.LikesCount,
		"savesCount":    before.SavesCount,
		"hasExhibition": before.HasExhibition,
		"exhibition":    before.Exhibition,
		"updatedAt":     before.UpdatedAt,
	}})
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func (r *postRepository) CountByImageKey(ctx context.Context, key string) (int64, error) {
	n, err := r.coll().CountDocuments(ctx, live(bson.M{"imageKey": key}))
	if err != nil {
		return 0, translate(err, "Post", nil)
	}
	return n, nil
}

func (r *postRepository) ExhibitionsInBox(ctx context.Context, box geo.Box) ([]*models.Post, error) {
	filter := live(bson.M{
		"hasExhibition":       true,
		"exhibition.latitude": bson.M{"$gte": box.MinLat, "$lte": box.MaxLat},
	})
	if box.WrapsLng {
		filter["$or"] = bson.A{
			bson.M{"exhibition.longitude": bson.M{"$gte": box.MinLng}},
			bson.M{"exhibition.longitude": bson.M{"$lte": box.MaxLng}},
		}
	} else {
		filter["exhibition.longitude"] = bson.M{"$gte": box.MinLng, "$lte": box.MaxLng}
	}
	return r.nearest(ctx, filter, box.Center)
}

// nearest ranks the matching exhibitions by squared equirectangular distance
// from center, longitude difference taken the short way round, and keeps the
// closest maxNearbyDocs.
func (r *postRepository) nearest(ctx context.Context, filter bson.M, center geo.Point) ([]*models.Post, error) {
	cos := math.Cos(center.Lat * math.Pi / 180)
	rank := bson.M{"$let": bson.M{
		"vars": bson.M{
			"dlat": bson.M{"$subtract": bson.A{"$exhibition.latitude", center.Lat}},
			"dlng": bson.M{"$abs": bson.M{"$subtract": bson.A{"$exhibition.longitude", center.Lng}}},
		},
		"in": bson.M{"$add": bson.A{
			bson.M{"$multiply": bson.A{"$$dlat", "$$dlat"}},
			bson.M{"$multiply": bson.A{cos * cos, bson.M{"$cond": bson.A{
				bson.M{"$gt": bson.A{"$$dlng", 180}},
				bson.M{"$multiply": bson.A{
					bson.M{"$subtract": bson.A{360, "$$dlng"}},
					bson.M{"$subtract": bson.A{360, "$$dlng"}},
				}},
				bson.M{"$multiply": bson.A{"$$dlng", "$$dlng"}},
			}}}},
		}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$addFields", Value: bson.M{"rank": rank}}},
		{{Key: "$sort", Value: bson.D{{Key: "rank", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: maxNearbyDocs}},
		{{Key: "$project", Value: bson.M{"rank": 0}}},
	}
	cur, err := r.coll().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err, "Exhibition", nil)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "Exhibition", nil)
	}
	return r.attachAuthors(ctx, docs, 0)
}

func (r *postRepository) ExhibitionsByUser(ctx context.Context, userID uint) ([]*models.Post, error) {
	filter := live(bson.M{"userId": int64(userID), "hasExhibition": true})
	opts := options.Find().SetSort(bson.D{{Key: "exhibition.date", Value: 1}, {Key: "_id", Value: 1}})
	return r.find(ctx, filter, opts, userID)
}

func (r *postRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions, viewerID uint) ([]*models.Post, error) {
	cur, err := r.coll().Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err, "Post", nil)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "Post", nil)
	}
	return r.attachAuthors(ctx, docs, viewerID)
}

func (r *postRepository) attachAuthors(ctx context.Context, docs []postDoc, viewerID uint) ([]*models.Post, error) {
	ids := make([]int64, 0, len(docs))
	seen := make(map[int64]bool, len(docs))
	for _, d := range docs {
		if !seen[d.UserID] {
			seen[d.UserID] = true
			ids = append(ids, d.UserID)
		}
	}
	authors, err := r.users.authors(ctx, ids)
	if err != nil {
		return nil, err
	}
	posts := make([]*models.Post, 0, len(docs))
	for i := range docs {
		p := docs[i].model(viewerID)
		p.User = authors[docs[i].UserID]
		posts = append(posts, p)
	}
	return posts, nil
}
