// Package seed provides database seeding utilities for development and testing.
// Seeding goes through the repository interfaces, so it works for every store
// backend.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"artvault/internal/models"
	"artvault/internal/repository"
	"artvault/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "Artvault123!"

// City anchors seeded exhibitions on the map.
type City struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lng  float64 `yaml:"lng"`
}

// DefaultCities are used when a preset names none.
var DefaultCities = []City{
	{Name: "Paris", Lat: 48.8566, Lng: 2.3522},
	{Name: "New York", Lat: 40.7128, Lng: -74.0060},
	{Name: "London", Lat: 51.5074, Lng: -0.1278},
	{Name: "Tokyo", Lat: 35.6762, Lng: 139.6503},
	{Name: "Mexico City", Lat: 19.4326, Lng: -99.1332},
	{Name: "Berlin", Lat: 52.5200, Lng: 13.4050},
}

// DefaultHashtags are used when a preset names none.
var DefaultHashtags = []string{
	"oilpainting", "watercolor", "sculpture", "photography", "abstract",
	"portrait", "landscape", "streetart", "ceramics", "printmaking",
	"digitalart", "charcoal", "impressionism", "minimalism", "collage",
}

var mediums = []string{
	"Oil on canvas", "Watercolor on paper", "Bronze", "Charcoal", "Linocut",
	"Acrylic on panel", "Gelatin silver print", "Glazed stoneware", "Mixed media",
}

// Options control how much data a Seeder creates.
type Options struct {
	Users           int
	Posts           int
	ExhibitionRatio float64
	MaxLikes        int
	MaxSaves        int
	MaxComments     int
	Cities          []City
	Hashtags        []string
	// RandSeed makes a run reproducible when non-zero.
	RandSeed int64
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// DefaultOptions is a small demo data set.
func DefaultOptions() Options {
	return Options{
		Users:           20,
		Posts:           60,
		ExhibitionRatio: 0.4,
		MaxLikes:        12,
		MaxSaves:        5,
		MaxComments:     4,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users     int
	Posts     int
	Reactions int
	Comments  int
}

// Seeder fills a Store with generated artworks, exhibitions, and engagement.
type Seeder struct {
	store *repository.Store
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand
}

// NewSeeder creates a Seeder bound to store.
func NewSeeder(store *repository.Store, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if len(opts.Cities) == 0 {
		opts.Cities = DefaultCities
	}
	if len(opts.Hashtags) == 0 {
		opts.Hashtags = DefaultHashtags
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Seeder{
		store: store,
		opts:  opts,
		faker: gofakeit.New(seed),
		//nolint:gosec // Weak random number generator is fine for seeding
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Run creates users, then posts, then likes, saves, and comments on them.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d users and %d posts...", s.opts.Users, s.opts.Posts)

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	summary := &Summary{Users: len(users)}
	if len(users) == 0 {
		return summary, nil
	}

	for i := 0; i < s.opts.Posts; i++ {
		author := users[s.rng.Intn(len(users))]
		post := s.BuildPost(author)
		if err := s.store.Posts.Create(ctx, post); err != nil {
			return nil, fmt.Errorf("failed to create post %d: %w", i, err)
		}
		summary.Posts++

		reactions, err := s.engage(ctx, post, users)
		if err != nil {
			return nil, err
		}
		summary.Reactions += reactions

		comments, err := s.comment(ctx, post, users)
		if err != nil {
			return nil, err
		}
		summary.Comments += comments
	}

	log.Printf("🎉 Seeded %d users, %d posts, %d reactions, %d comments",
		summary.Users, summary.Posts, summary.Reactions, summary.Comments)
	return summary, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	if s.opts.Users <= 0 {
		return nil, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.BcryptCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, i))
		username = strings.Map(func(r rune) rune {
			if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
				return r
			}
			return -1
		}, username)

		user := &models.User{
			Username:     username,
			Email:        username + "@example.com",
			Password:     string(hashed),
			DisplayName:  first + " " + last,
			Bio:          s.faker.HipsterSentence(8),
			ProfileImage: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		}
		if err := s.store.Users.Create(ctx, user); err != nil {
			if models.ErrorCode(err) == models.CodeConflict {
				continue
			}
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// BuildPost generates an unsaved artwork post by author. Some posts carry an
// exhibition placed near one of the configured cities.
func (s *Seeder) BuildPost(author *models.User) *models.Post {
	title := strings.TrimSuffix(s.faker.Sentence(s.rng.Intn(3)+2), ".")
	post := &models.Post{
		Title:       title,
		Description: fmt.Sprintf("%s. %s", s.faker.RandomString(mediums), s.faker.Paragraph(1, 2, 12, " ")),
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/1080/1080", s.faker.UUID()),
		Artist:      author.PublicName(),
		Hashtags:    s.hashtags(),
		UserID:      author.ID,
	}
	if s.rng.Intn(4) == 0 {
		post.Artist = s.faker.Name()
	}

	if s.rng.Float64() < s.opts.ExhibitionRatio {
		city := s.opts.Cities[s.rng.Intn(len(s.opts.Cities))]
		lat := city.Lat + (s.rng.Float64()-0.5)*0.1
		lng := city.Lng + (s.rng.Float64()-0.5)*0.1
		date := time.Now().AddDate(0, 0, s.rng.Intn(120)-30).UTC().Truncate(24 * time.Hour)
		post.HasExhibition = true
		post.City = city.Name
		post.Latitude, post.Longitude = &lat, &lng
		post.Exhibition = &models.Exhibition{
			Name:      fmt.Sprintf("%s %s", s.faker.Adjective(), s.faker.RandomString([]string{"Visions", "Forms", "Light", "Surfaces", "Echoes"})),
			Location:  s.faker.Company() + " Gallery",
			City:      city.Name,
			Date:      &date,
			Latitude:  &lat,
			Longitude: &lng,
		}
	}
	return post
}

func (s *Seeder) hashtags() []string {
	n := s.rng.Intn(4)
	raw := make([]string, 0, n)
	for _, i := range s.rng.Perm(len(s.opts.Hashtags))[:min(n, len(s.opts.Hashtags))] {
		raw = append(raw, s.opts.Hashtags[i])
	}
	tags, err := validation.NormalizeHashtags(raw)
	if err != nil {
		return nil
	}
	return tags
}

// engage toggles likes and saves on post from distinct random users.
func (s *Seeder) engage(ctx context.Context, post *models.Post, users []*models.User) (int, error) {
	count := 0
	for _, r := range []struct {
		kind models.ReactionKind
		max  int
	}{
		{models.ReactionLike, s.opts.MaxLikes},
		{models.ReactionSave, s.opts.MaxSaves},
	} {
		if r.max <= 0 {
			continue
		}
		n := min(s.rng.Intn(r.max+1), len(users))
		for _, i := range s.rng.Perm(len(users))[:n] {
			if _, err := s.store.Reactions.Toggle(ctx, r.kind, users[i].ID, post.ID); err != nil {
				return count, fmt.Errorf("failed to %s post %d: %w", r.kind, post.ID, err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) comment(ctx context.Context, post *models.Post, users []*models.User) (int, error) {
	if s.opts.MaxComments <= 0 {
		return 0, nil
	}
	n := s.rng.Intn(s.opts.MaxComments + 1)
	for i := 0; i < n; i++ {
		c := &models.Comment{
			Content: s.faker.Sentence(s.rng.Intn(10) + 3),
			UserID:  users[s.rng.Intn(len(users))].ID,
			PostID:  post.ID,
		}
		if err := s.store.Comments.Create(ctx, c); err != nil {
			return i, fmt.Errorf("failed to comment on post %d: %w", post.ID, err)
		}
	}
	return n, nil
}
