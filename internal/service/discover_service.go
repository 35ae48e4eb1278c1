package service

import (
	"context"
	"sort"
	"strings"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/repository"
)

// DiscoverService answers nearby-exhibition and combined search queries.
type DiscoverService struct {
	postRepo      repository.PostRepository
	userRepo      repository.UserRepository
	defaultRadius float64
}

type NearbyInput struct {
	Lat      float64
	Lng      float64
	RadiusKM float64
	Query    string
}

// SearchResult is the combined post and user search.
type SearchResult struct {
	Posts []*models.Post `json:"posts"`
	Users []*models.User `json:"users"`
}

func NewDiscoverService(postRepo repository.PostRepository, userRepo repository.UserRepository, defaultRadiusKM float64) *DiscoverService {
	return &DiscoverService{postRepo: postRepo, userRepo: userRepo, defaultRadius: defaultRadiusKM}
}

// NearbyExhibitions returns exhibitions within the radius of the point,
// nearest first. The store prefilters by bounding box; the haversine
// distance decides.
func (s *DiscoverService) NearbyExhibitions(ctx context.Context, in NearbyInput) ([]models.NearbyExhibition, error) {
	center := geo.Point{Lat: in.Lat, Lng: in.Lng}
	if err := geo.ValidatePoint(center); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	radius := geo.ClampRadius(in.RadiusKM, s.defaultRadius)
	query := strings.ToLower(strings.TrimSpace(in.Query))

	candidates, err := s.postRepo.ExhibitionsInBox(ctx, geo.BoundingBox(center, radius))
	if err != nil {
		return nil, err
	}

	out := make([]models.NearbyExhibition, 0, len(candidates))
	for _, p := range candidates {
		ex := p.Exhibition
		if !ex.HasCoordinates() {
			continue
		}
		d := geo.DistanceKM(center, geo.Point{Lat: *ex.Latitude, Lng: *ex.Longitude})
		if d > radius {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(ex.City), query) &&
			!strings.Contains(strings.ToLower(ex.Name), query) {
			continue
		}
		out = append(out, models.NearbyExhibition{
			PostID:     p.ID,
			Title:      p.Title,
			Artist:     p.Artist,
			ImageURL:   p.ImageURL,
			Exhibition: *ex,
			DistanceKM: d,
			Author:     p.User.Summary(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKM != out[j].DistanceKM {
			return out[i].DistanceKM < out[j].DistanceKM
		}
		return out[i].PostID < out[j].PostID
	})
	return out, nil
}

// UserExhibitions lists the exhibitions attached to a user's posts.
func (s *DiscoverService) UserExhibitions(ctx context.Context, userID uint) ([]*models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.postRepo.ExhibitionsByUser(ctx, userID)
}

// Search matches posts by title, artist, or hashtag and users by name.
func (s *DiscoverService) Search(ctx context.Context, query string, in ListPostsInput) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	posts, err := s.postRepo.Search(ctx, strings.TrimLeft(query, "#"), in.page(), in.ViewerID)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.Search(ctx, query, in.page())
	if err != nil {
		return nil, err
	}
	public := make([]*models.User, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return &SearchResult{Posts: posts, Users: public}, nil
}
