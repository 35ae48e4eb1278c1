package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"artvault/internal/cache"
	"artvault/internal/geo"
	"artvault/internal/middleware"
	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/storage"
	"artvault/internal/validation"
)

const (
	maxTitleLen       = 300
	maxDescriptionLen = 5000
	maxArtistLen      = 200
	maxExhibitionLen  = 300
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	objects  storage.ObjectStore
	isAdmin  func(ctx context.Context, userID uint) (bool, error)
}

// ExhibitionInput is the optional exhibition block of a post.
type ExhibitionInput struct {
	Name      string   `json:"name"`
	Location  string   `json:"location"`
	City      string   `json:"city"`
	Date      string   `json:"date"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type CreatePostInput struct {
	UserID        uint
	Title         string
	Description   string
	ImageURL      string
	ImageKey      string
	Artist        string
	Hashtags      []string
	HasExhibition bool
	Exhibition    *ExhibitionInput
	Latitude      *float64
	Longitude     *float64
	City          string
}

// UpdatePostInput is a partial update; nil fields keep their value.
type UpdatePostInput struct {
	UserID        uint
	PostID        uint
	Title         *string
	Description   *string
	ImageURL      *string
	ImageKey      *string
	Artist        *string
	Hashtags      []string
	HasExhibition *bool
	Exhibition    *ExhibitionInput
	Latitude      *float64
	Longitude     *float64
	City          *string
}

type ListPostsInput struct {
	Limit    int
	Offset   int
	ViewerID uint
}

func (in ListPostsInput) page() repository.Page {
	return repository.Page{Limit: in.Limit, Offset: in.Offset}.Normalize()
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// NewPostService builds the post service. objects may be nil, in which case
// stored images are left in place when a post is deleted.
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	objects storage.ObjectStore,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		objects:  objects,
		isAdmin:  isAdmin,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	post := &models.Post{
		UserID:      in.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		ImageKey:    strings.TrimSpace(in.ImageKey),
		Artist:      strings.TrimSpace(in.Artist),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		City:        strings.TrimSpace(in.City),
	}

	hashtags, err := validation.NormalizeHashtags(in.Hashtags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	post.Hashtags = hashtags

	if err := validatePostFields(post); err != nil {
		return nil, err
	}
	if err := checkImageKey(post.ImageKey, in.UserID); err != nil {
		return nil, err
	}
	if err := applyExhibition(post, in.HasExhibition, in.Exhibition); err != nil {
		return nil, err
	}

	if post.Artist == "" {
		author, err := s.userRepo.GetByID(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		post.Artist = author.PublicName()
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidateFeed(ctx)
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// ListPosts returns the feed. The anonymous first page is served from cache.
func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	page := in.page()
	if in.ViewerID != 0 || page.Offset != 0 {
		return s.postRepo.List(ctx, page, in.ViewerID)
	}

	var posts []*models.Post
	err := cache.Aside(ctx, cache.FeedKey(page.Limit, page.Offset), &posts, cache.FeedTTL, func() error {
		var fetchErr error
		posts, fetchErr = s.postRepo.List(ctx, page, 0)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	if viewerID != 0 {
		return s.postRepo.GetByID(ctx, id, viewerID)
	}
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(id), &post, cache.PostTTL, func() error {
		p, fetchErr := s.postRepo.GetByID(ctx, id, 0)
		if fetchErr != nil {
			return fetchErr
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *PostService) ListByUser(ctx context.Context, userID uint, in ListPostsInput) ([]*models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.postRepo.ListByUser(ctx, userID, in.page(), in.ViewerID)
}

func (s *PostService) ListByArtist(ctx context.Context, artist string, in ListPostsInput) ([]*models.Post, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, models.NewValidationError("Artist is required")
	}
	return s.postRepo.ListByArtist(ctx, artist, in.page(), in.ViewerID)
}

func (s *PostService) SearchPosts(ctx context.Context, query string, in ListPostsInput) ([]*models.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.postRepo.Search(ctx, strings.TrimLeft(query, "#"), in.page(), in.ViewerID)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own posts")
	}

	if in.Title != nil {
		post.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		post.Description = strings.TrimSpace(*in.Description)
	}
	if in.ImageURL != nil {
		post.ImageURL = strings.TrimSpace(*in.ImageURL)
	}
	previousKey := post.ImageKey
	if in.ImageKey != nil {
		post.ImageKey = strings.TrimSpace(*in.ImageKey)
		if post.ImageKey != previousKey {
			if err := checkImageKey(post.ImageKey, in.UserID); err != nil {
				return nil, err
			}
		}
	}
	if in.Artist != nil {
		post.Artist = strings.TrimSpace(*in.Artist)
		if post.Artist == "" {
			post.Artist = post.User.PublicName()
		}
	}
	if in.City != nil {
		post.City = strings.TrimSpace(*in.City)
	}
	if in.Latitude != nil || in.Longitude != nil {
		post.Latitude, post.Longitude = in.Latitude, in.Longitude
	}
	if in.Hashtags != nil {
		hashtags, err := validation.NormalizeHashtags(in.Hashtags)
		if err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		post.Hashtags = hashtags
	}
	if err := validatePostFields(post); err != nil {
		return nil, err
	}

	if in.HasExhibition != nil || in.Exhibition != nil {
		has := post.HasExhibition
		if in.HasExhibition != nil {
			has = *in.HasExhibition
		}
		exhibition := in.Exhibition
		if exhibition == nil && has {
			exhibition = exhibitionInputOf(post.Exhibition)
		}
		if err := applyExhibition(post, has, exhibition); err != nil {
			return nil, err
		}
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, post.ID)
	if previousKey != post.ImageKey {
		s.releaseImage(ctx, post.ID, previousKey)
	}
	return s.postRepo.GetByID(ctx, post.ID, in.UserID)
}

// DeletePost removes the post for its author or an admin, then drops the
// stored image on a best-effort basis once no other post uses it.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		if err := requireAdmin(ctx, s.isAdmin, in.UserID, "You can only delete your own posts"); err != nil {
			return nil, err
		}
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return nil, err
	}
	cache.InvalidatePost(ctx, in.PostID)
	s.releaseImage(ctx, post.ID, post.ImageKey)
	return post, nil
}

// checkImageKey accepts an empty key or one under the author's upload prefix.
func checkImageKey(key string, userID uint) error {
	if key == "" || storage.OwnedBy(key, userID) {
		return nil
	}
	return models.NewValidationError("image_key must reference one of your uploads")
}

// releaseImage deletes the renditions stored under key when no live post
// references it any more.
func (s *PostService) releaseImage(ctx context.Context, postID uint, key string) {
	if s.objects == nil || key == "" {
		return
	}
	refs, err := s.postRepo.CountByImageKey(ctx, key)
	if err != nil {
		middleware.Logger.Warn("keeping stored image, reference count failed",
			"post_id", postID, "key", key, "error", err)
		return
	}
	if refs > 0 {
		return
	}
	for _, object := range storage.Renditions(key) {
		if err := s.objects.Delete(ctx, object); err != nil {
			middleware.Logger.Warn("failed to delete stored image",
				"post_id", postID, "key", object, "error", err)
		}
	}
}

func validatePostFields(p *models.Post) error {
	switch {
	case p.Title == "":
		return models.NewValidationError("Title is required")
	case utf8.RuneCountInString(p.Title) > maxTitleLen:
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	case p.Description == "":
		return models.NewValidationError("Description is required")
	case utf8.RuneCountInString(p.Description) > maxDescriptionLen:
		return models.NewValidationError(fmt.Sprintf("Description too long (max %d characters)", maxDescriptionLen))
	case p.ImageURL == "":
		return models.NewValidationError("image_url is required")
	case utf8.RuneCountInString(p.Artist) > maxArtistLen:
		return models.NewValidationError(fmt.Sprintf("Artist too long (max %d characters)", maxArtistLen))
	}
	if err := geo.ValidateOptional(p.Latitude, p.Longitude); err != nil {
		return models.NewValidationError(err.Error())
	}
	return nil
}

// applyExhibition sets the exhibition of p. Without the flag the exhibition
// is always cleared, whatever the client sent.
func applyExhibition(p *models.Post, has bool, in *ExhibitionInput) error {
	if !has {
		p.HasExhibition = false
		p.Exhibition = nil
		return nil
	}
	if in == nil || strings.TrimSpace(in.Name) == "" {
		return models.NewValidationError("Exhibition name is required")
	}
	ex := &models.Exhibition{
		Name:      strings.TrimSpace(in.Name),
		Location:  strings.TrimSpace(in.Location),
		City:      strings.TrimSpace(in.City),
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
	}
	if utf8.RuneCountInString(ex.Name) > maxExhibitionLen || utf8.RuneCountInString(ex.Location) > maxExhibitionLen {
		return models.NewValidationError(fmt.Sprintf("Exhibition fields are limited to %d characters", maxExhibitionLen))
	}
	if ex.Latitude == nil && ex.Longitude == nil {
		ex.Latitude, ex.Longitude = p.Latitude, p.Longitude
	}
	if err := geo.ValidateOptional(ex.Latitude, ex.Longitude); err != nil {
		return models.NewValidationError("exhibition " + err.Error())
	}
	if ex.City == "" {
		ex.City = p.City
	}
	if date := strings.TrimSpace(in.Date); date != "" {
		parsed, err := parseExhibitionDate(date)
		if err != nil {
			return err
		}
		ex.Date = &parsed
	}
	p.HasExhibition = true
	p.Exhibition = ex
	return nil
}

func parseExhibitionDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, models.NewValidationError("Exhibition date must be YYYY-MM-DD or RFC 3339")
}

func exhibitionInputOf(e *models.Exhibition) *ExhibitionInput {
	if e == nil {
		return nil
	}
	in := &ExhibitionInput{
		Name:      e.Name,
		Location:  e.Location,
		City:      e.City,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
	}
	if e.Date != nil {
		in.Date = e.Date.UTC().Format(time.RFC3339)
	}
	return in
}

func requireAdmin(ctx context.Context, isAdmin func(context.Context, uint) (bool, error), userID uint, msg string) error {
	if isAdmin == nil {
		return models.NewForbiddenError(msg)
	}
	admin, err := isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return models.NewForbiddenError(msg)
	}
	return nil
}
