package service

import (
	"context"
	"strings"
	"testing"

	"artvault/internal/cache"
	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/storage"
	"artvault/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateInput() CreatePostInput {
	return CreatePostInput{
		UserID:      1,
		Title:       "Water Lilies",
		Description: "Oil on canvas",
		ImageURL:    "/media/abc/master.jpg",
	}
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(&postRepoStub{}, &userRepoStub{}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreatePostInput)
	}{
		{"empty title", func(in *CreatePostInput) { in.Title = "  " }},
		{"title too long", func(in *CreatePostInput) { in.Title = strings.Repeat("x", 301) }},
		{"empty description", func(in *CreatePostInput) { in.Description = "" }},
		{"description too long", func(in *CreatePostInput) { in.Description = strings.Repeat("x", 5001) }},
		{"missing image", func(in *CreatePostInput) { in.ImageURL = "" }},
		{"latitude out of range", func(in *CreatePostInput) { in.Latitude, in.Longitude = fptr(91), fptr(0) }},
		{"longitude only", func(in *CreatePostInput) { in.Longitude = fptr(2.35) }},
		{"exhibition without name", func(in *CreatePostInput) {
			in.HasExhibition = true
			in.Exhibition = &ExhibitionInput{City: "Paris"}
		}},
		{"exhibition flag without block", func(in *CreatePostInput) { in.HasExhibition = true }},
		{"bad exhibition date", func(in *CreatePostInput) {
			in.HasExhibition = true
			in.Exhibition = &ExhibitionInput{Name: "Salon", Date: "next tuesday"}
		}},
		{"hashtag too long", func(in *CreatePostInput) { in.Hashtags = []string{strings.Repeat("h", 51)} }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := validCreateInput()
			tc.mutate(&in)
			_, err := svc.CreatePost(ctx, in)
			assertValidationError(t, err)
		})
	}
}

func TestPostService_CreatePost_Normalization(t *testing.T) {
	t.Parallel()

	var stored *models.Post
	posts := &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error {
			p.ID = 10
			stored = p
			return nil
		},
		getByIDFn: func(_ context.Context, _, _ uint) (*models.Post, error) { return stored, nil },
	}
	users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Username: "claude_m", DisplayName: "Claude Monet"}, nil
	}}
	svc := NewPostService(posts, users, nil, nil)

	in := validCreateInput()
	in.Hashtags = []string{"#Impressionism #water, lilies", "#water"}
	in.HasExhibition = false
	in.Exhibition = &ExhibitionInput{Name: "ignored"}

	got, err := svc.CreatePost(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Claude Monet", got.Artist, "artist defaults to the author's display name")
	assert.Equal(t, []string{"impressionism", "water", "lilies"}, got.Hashtags)
	assert.False(t, got.HasExhibition)
	assert.Nil(t, got.Exhibition, "exhibition is null without the flag")
}

func TestPostService_CreatePost_ExhibitionDefaults(t *testing.T) {
	t.Parallel()

	var stored *models.Post
	posts := &postRepoStub{
		createFn:  func(_ context.Context, p *models.Post) error { stored = p; return nil },
		getByIDFn: func(_ context.Context, _, _ uint) (*models.Post, error) { return stored, nil },
	}
	svc := NewPostService(posts, &userRepoStub{}, nil, nil)

	in := validCreateInput()
	in.Artist = "Claude"
	in.Latitude, in.Longitude, in.City = fptr(48.8606), fptr(2.3376), "Paris"
	in.HasExhibition = true
	in.Exhibition = &ExhibitionInput{Name: "Orangerie", Date: "2026-12-01"}

	got, err := svc.CreatePost(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, got.Exhibition)
	assert.Equal(t, 48.8606, *got.Exhibition.Latitude, "exhibition falls back to the post geotag")
	assert.Equal(t, "Paris", got.Exhibition.City)
	require.NotNil(t, got.Exhibition.Date)
	assert.Equal(t, "2026-12-01", got.Exhibition.Date.Format("2006-01-02"))
}

func TestPostService_UpdateAndDelete(t *testing.T) {
	store, db := testutil.NewSQLiteStore(t)
	objects := testutil.NewMemoryObjectStore()
	users := NewUserService(store.Users)
	svc := NewPostService(store.Posts, store.Users, objects, users.IsAdmin)
	ctx := context.Background()

	author := testutil.SeedUser(t, db, "seurat")
	other := testutil.SeedUser(t, db, "signac")
	admin := testutil.SeedUser(t, db, "curator")
	require.NoError(t, db.Model(admin).Update("is_admin", true).Error)

	key := storage.OwnerPrefix(author.ID) + "abc/" + storage.MasterJPEG
	for _, object := range storage.Renditions(key) {
		_, err := objects.Put(ctx, object, "image/jpeg", []byte("jpeg"))
		require.NoError(t, err)
	}

	in := validCreateInput()
	in.UserID = author.ID
	in.ImageKey = key
	in.HasExhibition = true
	in.Exhibition = &ExhibitionInput{Name: "Salon des Indépendants", City: "Paris"}
	post, err := svc.CreatePost(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "Seurat", post.Artist)

	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: other.ID, PostID: post.ID, Title: sptr("mine now")})
	assertCode(t, err, models.CodeForbidden)

	updated, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: author.ID, PostID: post.ID, Title: sptr("La Grande Jatte")})
	require.NoError(t, err)
	assert.Equal(t, "La Grande Jatte", updated.Title)
	require.NotNil(t, updated.Exhibition, "untouched exhibition is kept")
	assert.Equal(t, "Salon des Indépendants", updated.Exhibition.Name)

	cleared, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: author.ID, PostID: post.ID, HasExhibition: bptr(false)})
	require.NoError(t, err)
	assert.Nil(t, cleared.Exhibition)

	_, err = svc.DeletePost(ctx, DeletePostInput{UserID: other.ID, PostID: post.ID})
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.DeletePost(ctx, DeletePostInput{UserID: admin.ID, PostID: post.ID})
	require.NoError(t, err)
	for _, object := range storage.Renditions(key) {
		assert.False(t, objects.Has(object), "%s is removed", object)
	}

	_, err = svc.GetPost(ctx, post.ID, 0)
	assert.True(t, models.IsNotFound(err))
}

func TestPostService_ImageKeyMustBelongToAuthor(t *testing.T) {
	store, db := testutil.NewSQLiteStore(t)
	objects := testutil.NewMemoryObjectStore()
	svc := NewPostService(store.Posts, store.Users, objects, nil)
	ctx := context.Background()

	victim := testutil.SeedUser(t, db, "kahlo")
	mallory := testutil.SeedUser(t, db, "mallory")
	victimKey := storage.OwnerPrefix(victim.ID) + "abc/" + storage.MasterJPEG
	_, err := objects.Put(ctx, victimKey, "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)

	in := validCreateInput()
	in.UserID = victim.ID
	in.ImageKey = victimKey
	_, err = svc.CreatePost(ctx, in)
	require.NoError(t, err)

	in.UserID = mallory.ID
	_, err = svc.CreatePost(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in.ImageKey = storage.OwnerPrefix(mallory.ID) + "../" + victimKey
	_, err = svc.CreatePost(ctx, in)
	assertCode(t, err, models.CodeValidation)

	in.ImageKey = ""
	own, err := svc.CreatePost(ctx, in)
	require.NoError(t, err)
	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: mallory.ID, PostID: own.ID, ImageKey: sptr(victimKey)})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.DeletePost(ctx, DeletePostInput{UserID: mallory.ID, PostID: own.ID})
	require.NoError(t, err)
	assert.True(t, objects.Has(victimKey), "another user's image survives")
}

func TestPostService_SharedImageKeyOutlivesOnePost(t *testing.T) {
	store, db := testutil.NewSQLiteStore(t)
	objects := testutil.NewMemoryObjectStore()
	svc := NewPostService(store.Posts, store.Users, objects, nil)
	ctx := context.Background()

	author := testutil.SeedUser(t, db, "hokusai")
	key := storage.OwnerPrefix(author.ID) + "wave/" + storage.MasterJPEG
	for _, object := range storage.Renditions(key) {
		_, err := objects.Put(ctx, object, "image/jpeg", []byte("x"))
		require.NoError(t, err)
	}

	in := validCreateInput()
	in.UserID = author.ID
	in.ImageKey = key
	first, err := svc.CreatePost(ctx, in)
	require.NoError(t, err)
	second, err := svc.CreatePost(ctx, in)
	require.NoError(t, err)

	_, err = svc.DeletePost(ctx, DeletePostInput{UserID: author.ID, PostID: first.ID})
	require.NoError(t, err)
	assert.True(t, objects.Has(key), "still referenced by the second post")

	replacement := storage.OwnerPrefix(author.ID) + "fuji/" + storage.MasterJPEG
	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: author.ID, PostID: second.ID, ImageKey: sptr(replacement)})
	require.NoError(t, err)
	for _, object := range storage.Renditions(key) {
		assert.False(t, objects.Has(object), "%s is released once unreferenced", object)
	}
}

func TestPostService_DeleteKeepsImageWhenCountFails(t *testing.T) {
	t.Parallel()
	objects := testutil.NewMemoryObjectStore()
	key := storage.OwnerPrefix(1) + "abc/" + storage.MasterJPEG
	_, err := objects.Put(context.Background(), key, "image/jpeg", []byte("x"))
	require.NoError(t, err)

	posts := &postRepoStub{
		getByIDFn: func(context.Context, uint, uint) (*models.Post, error) {
			return &models.Post{ID: 3, UserID: 1, ImageKey: key}, nil
		},
		countKeyFn: func(context.Context, string) (int64, error) {
			return 0, models.NewUnavailableError("store", nil)
		},
	}
	svc := NewPostService(posts, &userRepoStub{}, objects, nil)

	_, err = svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 3})
	require.NoError(t, err)
	assert.True(t, objects.Has(key))
}

func TestPostService_AnonymousFeedIsCached(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { cache.SetClient(nil) })

	calls := 0
	posts := &postRepoStub{listFn: func(_ context.Context, page repository.Page, viewerID uint) ([]*models.Post, error) {
		calls++
		return []*models.Post{{ID: 1, Title: "Nighthawks", Liked: viewerID != 0}}, nil
	}}
	svc := NewPostService(posts, &userRepoStub{}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		feed, err := svc.ListPosts(ctx, ListPostsInput{Limit: 20})
		require.NoError(t, err)
		require.Len(t, feed, 1)
	}
	assert.Equal(t, 1, calls, "second anonymous read is a cache hit")
	assert.True(t, mr.Exists(cache.FeedKey(20, 0)))

	feed, err := svc.ListPosts(ctx, ListPostsInput{Limit: 20, ViewerID: 7})
	require.NoError(t, err)
	assert.True(t, feed[0].Liked, "signed-in viewers bypass the cache")
	assert.Equal(t, 2, calls)

	cache.InvalidateFeed(ctx)
	assert.False(t, mr.Exists(cache.FeedKey(20, 0)))
}

func TestPostService_SearchRequiresQuery(t *testing.T) {
	t.Parallel()
	var got string
	posts := &postRepoStub{searchFn: func(_ context.Context, q string, _ repository.Page, _ uint) ([]*models.Post, error) {
		got = q
		return nil, nil
	}}
	svc := NewPostService(posts, &userRepoStub{}, nil, nil)

	_, err := svc.SearchPosts(context.Background(), "   ", ListPostsInput{})
	assertValidationError(t, err)

	_, err = svc.SearchPosts(context.Background(), "#cubism", ListPostsInput{})
	require.NoError(t, err)
	assert.Equal(t, "cubism", got)
}
