package mongostore

import (
	"context"
	"regexp"
	"strings"
	"time"

	"artvault/internal/cache"
	"artvault/internal/models"
	"artvault/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userRepository struct {
	db *mongo.Database
}

func (r *userRepository) coll() *mongo.Collection {
	return r.db.Collection(usersColl)
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M, key interface{}) (*models.User, error) {
	var doc userDoc
	if err := r.coll().FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err, "User", key)
	}
	return doc.model(), nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		u, err := r.findOne(ctx, bson.M{"_id": int64(id)}, id)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"emailLower": strings.ToLower(email)}, email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username}, username)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	id, err := nextID(ctx, r.db, usersColl)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user.ID = id
	user.CreatedAt, user.UpdatedAt = now, now
	if _, err := r.coll().InsertOne(ctx, newUserDoc(user)); err != nil {
		user.ID = 0
		return translate(err, "User", user.Username)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": int64(user.ID)}, bson.M{"$set": bson.M{
		"displayName":  user.DisplayName,
		"bio":          user.Bio,
		"profileImage": user.ProfileImage,
		"website":      user.Website,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		return translate(err, "User", user.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res, err := r.coll().UpdateOne(ctx, bson.M{"_id": int64(id)}, bson.M{"$set": bson.M{
		"isAdmin":   admin,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return translate(err, "User", id)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) Search(ctx context.Context, query string, page repository.Page) ([]*models.User, error) {
	page = page.Normalize()
	pattern := containsPattern(query)
	cur, err := r.coll().Find(ctx,
		bson.M{"$or": bson.A{
			bson.M{"username": pattern},
			bson.M{"displayName": pattern},
		}},
		options.Find().
			SetSort(bson.D{{Key: "username", Value: 1}}).
			SetLimit(int64(page.Limit)).
			SetSkip(int64(page.Offset)),
	)
	if err != nil {
		return nil, translate(err, "User", nil)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "User", nil)
	}
	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].model())
	}
	return users, nil
}

// authors loads the public author cards for a set of user IDs.
func (r *userRepository) authors(ctx context.Context, ids []int64) (map[int64]models.User, error) {
	out := make(map[int64]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.coll().Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1, "displayName": 1, "profileImage": 1}),
	)
	if err != nil {
		return nil, translate(err, "User", nil)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "User", nil)
	}
	for i := range docs {
		d := docs[i]
		out[d.ID] = models.User{ID: uint(d.ID), Username: d.Username, DisplayName: d.DisplayName, ProfileImage: d.ProfileImage}
	}
	return out, nil
}

// containsPattern builds a case-insensitive substring match for user input.
func containsPattern(q string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}
}
