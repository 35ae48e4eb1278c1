package repository

import (
	"context"
	"testing"

	"artvault/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_CreateAndDeleteKeepCounter(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	posts := NewPostRepository(db, nil)
	ctx := context.Background()

	author := seedUser(t, db, "rothko")
	fan := seedUser(t, db, "fan")
	post := seedPost(t, db, author, "no61")

	first := &models.Comment{PostID: post.ID, UserID: fan.ID, Content: "hypnotic"}
	second := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "thanks"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	got, err := posts.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CommentsCount)

	list, err := repo.ListByPost(ctx, post.ID, Page{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "fan", list[1].User.Username)

	require.NoError(t, repo.Delete(ctx, first))

	list, err = repo.ListByPost(ctx, post.ID, Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	got, err = posts.GetByID(ctx, post.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentsCount)

	assert.True(t, models.IsNotFound(repo.Delete(ctx, first)), "second delete is NOT_FOUND")
}

func TestCommentRepository_MissingPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	user := seedUser(t, db, "ghost")
	ctx := context.Background()

	err := repo.Create(ctx, &models.Comment{PostID: 77, UserID: user.ID, Content: "hello"})
	assert.True(t, models.IsNotFound(err))

	_, err = repo.ListByPost(ctx, 77, Page{})
	assert.True(t, models.IsNotFound(err))
}

func TestCommentRepository_DeleteRequiresMatchingPost(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "miro")
	a := seedPost(t, db, author, "a")
	b := seedPost(t, db, author, "b")

	c := &models.Comment{PostID: a.ID, UserID: author.ID, Content: "on a"}
	require.NoError(t, repo.Create(ctx, c))

	wrong := *c
	wrong.PostID = b.ID
	assert.True(t, models.IsNotFound(repo.Delete(ctx, &wrong)))

	got, err := NewPostRepository(db, nil).GetByID(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CommentsCount)
}

func TestCommentRepository_Update(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()
	author := seedUser(t, db, "magritte")
	post := seedPost(t, db, author, "pipe")

	c := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "ceci"}
	require.NoError(t, repo.Create(ctx, c))
	c.Content = "ceci n'est pas"
	require.NoError(t, repo.Update(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ceci n'est pas", got.Content)

	assert.True(t, models.IsNotFound(repo.Update(ctx, &models.Comment{ID: 999, Content: "x"})))
}
