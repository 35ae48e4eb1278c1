package mongostore

import (
	"context"
	"strings"
	"testing"
	"time"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func findAndModifyValue(doc bson.D) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: doc})
}

func findAndModifyMiss() bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil})
}

func updateResult(matched int32) bson.D {
	return mtest.CreateSuccessResponse(bson.E{Key: "n", Value: matched}, bson.E{Key: "nModified", Value: matched})
}

func cursor(ns string, docs ...bson.D) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, docs...)
}

func TestReactionToggle(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("adds when absent", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(findAndModifyValue(bson.D{{Key: "_id", Value: int64(5)}, {Key: "likesCount", Value: int32(4)}}))

		res, err := store.Reactions.Toggle(context.Background(), models.ReactionLike, 9, 5)
		require.NoError(mt, err)
		assert.True(mt, res.Active)
		assert.Equal(mt, 4, res.Count)
		assert.Equal(mt, models.ReactionLike, res.Kind)
	})

	mt.Run("removes when present", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			findAndModifyMiss(),
			findAndModifyValue(bson.D{{Key: "_id", Value: int64(5)}, {Key: "savesCount", Value: int32(0)}}),
		)

		res, err := store.Reactions.Toggle(context.Background(), models.ReactionSave, 9, 5)
		require.NoError(mt, err)
		assert.False(mt, res.Active)
		assert.Equal(mt, 0, res.Count)
	})

	mt.Run("missing post", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(findAndModifyMiss(), findAndModifyMiss(), cursor("db.posts"))

		_, err := store.Reactions.Toggle(context.Background(), models.ReactionLike, 9, 404)
		assert.True(mt, models.IsNotFound(err))
	})

	mt.Run("server error", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value"}))

		_, err := store.Reactions.Toggle(context.Background(), models.ReactionLike, 9, 5)
		assert.Equal(mt, models.CodeInternal, models.ErrorCode(err))
	})

	mt.Run("unknown kind", func(mt *mtest.T) {
		store := New(mt.DB)
		_, err := store.Reactions.Toggle(context.Background(), "bookmark", 9, 5)
		assert.Equal(mt, models.CodeValidation, models.ErrorCode(err))
	})
}

func TestPostGetByIDViewerFlags(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("flags and author", func(mt *mtest.T) {
		store := New(mt.DB)
		post := bson.D{
			{Key: "_id", Value: int64(5)},
			{Key: "title", Value: "Composition VIII"},
			{Key: "artist", Value: "Wassily"},
			{Key: "hashtags", Value: bson.A{"abstract"}},
			{Key: "userId", Value: int64(2)},
			{Key: "likesCount", Value: int32(1)},
			{Key: "likedBy", Value: bson.A{int64(9)}},
			{Key: "savedBy", Value: bson.A{}},
			{Key: "hasExhibition", Value: true},
			{Key: "exhibition", Value: bson.D{{Key: "name", Value: "Bauhaus"}, {Key: "latitude", Value: 51.83}, {Key: "longitude", Value: 12.24}}},
			{Key: "deleted", Value: false},
			{Key: "createdAt", Value: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		}
		author := bson.D{{Key: "_id", Value: int64(2)}, {Key: "username", Value: "kandinsky"}}
		mt.AddMockResponses(cursor("db.posts", post), cursor("db.users", author))

		got, err := store.Posts.GetByID(context.Background(), 5, 9)
		require.NoError(mt, err)
		assert.Equal(mt, uint(5), got.ID)
		assert.True(mt, got.Liked)
		assert.False(mt, got.Saved)
		assert.Equal(mt, "kandinsky", got.User.Username)
		require.NotNil(mt, got.Exhibition)
		assert.Equal(mt, "Bauhaus", got.Exhibition.Name)
		assert.True(mt, got.Exhibition.HasCoordinates())
	})

	mt.Run("not found", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.posts"))

		_, err := store.Posts.GetByID(context.Background(), 5, 0)
		assert.True(mt, models.IsNotFound(err))
	})
}

func TestPostMutations(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create assigns sequential id", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(bson.D{{Key: "_id", Value: "posts"}, {Key: "seq", Value: int64(42)}}),
			mtest.CreateSuccessResponse(),
		)
		post := &models.Post{Title: "t", Artist: "a", UserID: 1, HasExhibition: true, Exhibition: &models.Exhibition{Name: "show"}}
		require.NoError(mt, store.Posts.Create(context.Background(), post))
		assert.Equal(mt, uint(42), post.ID)
		assert.Equal(mt, uint(42), post.Exhibition.PostID)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(updateResult(0))
		err := store.Posts.Update(context.Background(), &models.Post{ID: 3, Title: "x"})
		assert.True(mt, models.IsNotFound(err))
	})

	mt.Run("delete tombstones comments", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(findAndModifyValue(livePost(3)), updateResult(2))
		require.NoError(mt, store.Posts.Delete(context.Background(), 3))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(findAndModifyMiss())
		assert.True(mt, models.IsNotFound(store.Posts.Delete(context.Background(), 3)))
	})

	mt.Run("delete restores the post when comments fail", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(livePost(3)),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value"}),
			updateResult(1),
		)
		err := store.Posts.Delete(context.Background(), 3)
		assert.Equal(mt, models.CodeInternal, models.ErrorCode(err))

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 3)
		assert.Equal(mt, "findAndModify", events[0].CommandName)
		assert.Equal(mt, "update", events[2].CommandName, "the tombstone is rolled back")
	})

	mt.Run("count by image key", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.posts", bson.D{{Key: "n", Value: int32(2)}}))
		n, err := store.Posts.CountByImageKey(context.Background(), "4/abc/master.jpg")
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})

	mt.Run("exhibitions in wrapped box", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.posts"), cursor("db.users"))
		box := geo.BoundingBox(geo.Point{Lat: 0, Lng: 179.9}, 50)
		require.True(mt, box.WrapsLng)
		posts, err := store.Posts.ExhibitionsInBox(context.Background(), box)
		require.NoError(mt, err)
		assert.Empty(mt, posts)
	})

	mt.Run("exhibitions ranked before the cap", func(mt *mtest.T) {
		store := New(mt.DB)
		near := livePost(8)
		near = append(near, bson.E{Key: "hasExhibition", Value: true},
			bson.E{Key: "exhibition", Value: bson.D{{Key: "name", Value: "Orangerie"}, {Key: "latitude", Value: 48.8638}, {Key: "longitude", Value: 2.3225}}})
		mt.AddMockResponses(cursor("db.posts", near), cursor("db.users"))

		posts, err := store.Posts.ExhibitionsInBox(context.Background(), geo.BoundingBox(geo.Point{Lat: 48.86, Lng: 2.33}, 10))
		require.NoError(mt, err)
		require.Len(mt, posts, 1)
		assert.Equal(mt, uint(8), posts[0].ID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "aggregate", evt.CommandName)
		pipeline := evt.Command.Lookup("pipeline").String()
		assert.Contains(mt, pipeline, `"$sort"`)
		assert.Less(mt, strings.Index(pipeline, `"$sort"`), strings.Index(pipeline, `"$limit"`))
	})

	mt.Run("liked posts by membership time", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.posts"), cursor("db.users"))
		_, err := store.Posts.ListLiked(context.Background(), 9, repository.Page{})
		require.NoError(mt, err)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Contains(mt, evt.Command.Lookup("sort").String(), "likedAt.9")
	})
}

func livePost(id int64) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "title", Value: "Water Lilies"},
		{Key: "userId", Value: int64(2)},
		{Key: "likedBy", Value: bson.A{int64(9)}},
		{Key: "likesCount", Value: int32(1)},
		{Key: "deleted", Value: false},
	}
}

func TestComments(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create on missing post", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(updateResult(0))
		err := store.Comments.Create(context.Background(), &models.Comment{PostID: 77, UserID: 1, Content: "hi"})
		assert.True(mt, models.IsNotFound(err))
	})

	mt.Run("create", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			updateResult(1),
			findAndModifyValue(bson.D{{Key: "_id", Value: "comments"}, {Key: "seq", Value: int64(7)}}),
			mtest.CreateSuccessResponse(),
		)
		c := &models.Comment{PostID: 5, UserID: 1, Content: "hi"}
		require.NoError(mt, store.Comments.Create(context.Background(), c))
		assert.Equal(mt, uint(7), c.ID)
	})

	mt.Run("delete revives the comment when the counter fails", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			updateResult(1),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value"}),
			updateResult(1),
		)
		err := store.Comments.Delete(context.Background(), &models.Comment{ID: 7, PostID: 5})
		assert.Equal(mt, models.CodeInternal, models.ErrorCode(err))

		events := mt.GetAllStartedEvents()
		require.Len(mt, events, 3)
		assert.Equal(mt, "update", events[2].CommandName)
	})

	mt.Run("delete mismatched post", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(updateResult(0))
		err := store.Comments.Delete(context.Background(), &models.Comment{ID: 7, PostID: 6})
		assert.True(mt, models.IsNotFound(err))
	})

	mt.Run("list on missing post", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.posts"))
		_, err := store.Comments.ListByPost(context.Background(), 77, repository.Page{})
		assert.True(mt, models.IsNotFound(err))
	})
}

func TestUsers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate is conflict", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(
			findAndModifyValue(bson.D{{Key: "_id", Value: "users"}, {Key: "seq", Value: int64(2)}}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "duplicate key error"}),
		)
		u := &models.User{Username: "matisse", Email: "h@example.com", Password: "x"}
		err := store.Users.Create(context.Background(), u)
		assert.Equal(mt, models.CodeConflict, models.ErrorCode(err))
		assert.Zero(mt, u.ID)
	})

	mt.Run("lookup by email", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(cursor("db.users", bson.D{
			{Key: "_id", Value: int64(3)},
			{Key: "username", Value: "pollock"},
			{Key: "email", Value: "pollock@example.com"},
			{Key: "password", Value: "hash"},
		}))
		u, err := store.Users.GetByEmail(context.Background(), "POLLOCK@example.com")
		require.NoError(mt, err)
		assert.Equal(mt, uint(3), u.ID)
		assert.Equal(mt, "hash", u.Password)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		store := New(mt.DB)
		mt.AddMockResponses(updateResult(0))
		assert.True(mt, models.IsNotFound(store.Users.Update(context.Background(), &models.User{ID: 9})))
	})
}

func TestCountOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3, countOf(bson.M{"likesCount": int32(3)}, "likesCount"))
	assert.Equal(t, 0, countOf(bson.M{"likesCount": int64(-1)}, "likesCount"))
	assert.Equal(t, 0, countOf(bson.M{}, "likesCount"))
}
