// Package mongostore implements the repository interfaces over MongoDB.
// Posts carry their like and save member arrays, so a toggle is a single
// atomic document update.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"artvault/internal/config"
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersColl    = "users"
	postsColl    = "posts"
	commentsColl = "comments"
	countersColl = "counters"
)

// Connect dials MongoDB, ensures indexes and returns a Store.
func Connect(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.MongoDatabase)
	if err := EnsureIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	middleware.Logger.Info("Connected to MongoDB", slog.String("database", cfg.MongoDatabase))

	store := New(db)
	store.Close = client.Disconnect
	return store, nil
}

// New builds a Store over db without touching the server.
func New(db *mongo.Database) *repository.Store {
	users := &userRepository{db: db}
	return &repository.Store{
		Posts:     &postRepository{db: db, users: users},
		Reactions: &reactionRepository{db: db},
		Comments:  &commentRepository{db: db, users: users},
		Users:     users,
		Ping: func(ctx context.Context) error {
			return db.Client().Ping(ctx, nil)
		},
		Close: func(context.Context) error { return nil },
	}
}

// EnsureIndexes creates the unique and lookup indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersColl: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "emailLower", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		postsColl: {
			{Keys: bson.D{{Key: "deleted", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "artistLower", Value: 1}}},
			{Keys: bson.D{{Key: "likedBy", Value: 1}}},
			{Keys: bson.D{{Key: "savedBy", Value: 1}}},
			{Keys: bson.D{{Key: "exhibition.latitude", Value: 1}, {Key: "exhibition.longitude", Value: 1}}},
		},
		commentsColl: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// nextID allocates sequential numeric IDs so documents keep the same
// canonical ID type as the SQL store.
func nextID(ctx context.Context, db *mongo.Database, name string) (uint, error) {
	var out struct {
		Seq int64 `bson:"seq"`
	}
	err := db.Collection(countersColl).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		return 0, translate(err, "Counter", name)
	}
	return uint(out.Seq), nil
}

// translate maps driver errors onto the application error taxonomy.
func translate(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NewNotFoundError(resource, id)
	case mongo.IsDuplicateKeyError(err):
		return models.NewConflictError(resource + " already exists")
	case mongo.IsTimeout(err), mongo.IsNetworkError(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return models.NewUnavailableError("mongodb", err)
	default:
		return models.NewInternalError(err)
	}
}

func pageOptions(page repository.Page) *options.FindOptions {
	page = page.Normalize()
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(page.Limit)).
		SetSkip(int64(page.Offset))
}
