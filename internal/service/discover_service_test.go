package service

import (
	"context"
	"testing"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exhibitionPost(id uint, name, city string, lat, lng float64) *models.Post {
	return &models.Post{
		ID:            id,
		Title:         name + " piece",
		HasExhibition: true,
		Exhibition:    &models.Exhibition{Name: name, City: city, Latitude: fptr(lat), Longitude: fptr(lng)},
		User:          models.User{ID: 1, Username: "artist"},
	}
}

func TestDiscoverService_NearbyExhibitions(t *testing.T) {
	t.Parallel()

	var gotBox geo.Box
	posts := &postRepoStub{inBoxFn: func(_ context.Context, box geo.Box) ([]*models.Post, error) {
		gotBox = box
		return []*models.Post{
			exhibitionPost(3, "Pompidou", "Paris", 48.8607, 2.3524),
			exhibitionPost(1, "Louvre", "Paris", 48.8606, 2.3376),
			exhibitionPost(2, "Versailles", "Versailles", 48.8049, 2.1204),
			{ID: 4, HasExhibition: true, Exhibition: &models.Exhibition{Name: "Unplaced"}},
		}, nil
	}}
	svc := NewDiscoverService(posts, &userRepoStub{}, 10)
	center := geo.Point{Lat: 48.8606, Lng: 2.3376}

	got, err := svc.NearbyExhibitions(context.Background(), NearbyInput{Lat: center.Lat, Lng: center.Lng, RadiusKM: 5})
	require.NoError(t, err)
	require.Len(t, got, 2, "Versailles lies outside 5 km")
	assert.Equal(t, uint(1), got[0].PostID, "nearest first")
	assert.Equal(t, uint(3), got[1].PostID)
	assert.InDelta(t, 0, got[0].DistanceKM, 1e-9)
	assert.Equal(t, "artist", got[1].Author.Username)
	assert.True(t, gotBox.Contains(center))
	assert.Equal(t, center, gotBox.Center, "the store ranks candidates around the query point")

	got, err = svc.NearbyExhibitions(context.Background(), NearbyInput{Lat: center.Lat, Lng: center.Lng, RadiusKM: 50, Query: "versailles"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint(2), got[0].PostID)
}

func TestDiscoverService_NearbyRejectsBadPoint(t *testing.T) {
	t.Parallel()
	svc := NewDiscoverService(&postRepoStub{}, &userRepoStub{}, 10)
	_, err := svc.NearbyExhibitions(context.Background(), NearbyInput{Lat: 95, Lng: 0})
	assertValidationError(t, err)
}

func TestDiscoverService_UserExhibitionsChecksUser(t *testing.T) {
	t.Parallel()
	users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
		return nil, models.NewNotFoundError("User", id)
	}}
	svc := NewDiscoverService(&postRepoStub{}, users, 10)
	_, err := svc.UserExhibitions(context.Background(), 5)
	assert.True(t, models.IsNotFound(err))
}

func TestDiscoverService_Search(t *testing.T) {
	t.Parallel()
	posts := &postRepoStub{searchFn: func(_ context.Context, q string, _ repository.Page, _ uint) ([]*models.Post, error) {
		return []*models.Post{{ID: 1, Title: q}}, nil
	}}
	users := &userRepoStub{searchFn: func(_ context.Context, q string, _ repository.Page) ([]*models.User, error) {
		return []*models.User{{ID: 2, Username: q, Email: "hidden@example.com"}}, nil
	}}
	svc := NewDiscoverService(posts, users, 10)

	_, err := svc.Search(context.Background(), "", ListPostsInput{})
	assertValidationError(t, err)

	res, err := svc.Search(context.Background(), "#baroque", ListPostsInput{})
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Equal(t, "baroque", res.Posts[0].Title)
	require.Len(t, res.Users, 1)
	assert.Empty(t, res.Users[0].Email)
}
