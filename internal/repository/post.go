package repository

import (
	"context"
	"math"
	"strings"

	"artvault/internal/geo"
	"artvault/internal/models"
	"artvault/internal/validation"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// editableColumns are the post columns an update may change. Counters are
// owned by the toggle and comment flows.
var editableColumns = []string{
	"title", "description", "image_url", "image_key", "artist", "hashtags",
	"has_exhibition", "latitude", "longitude", "city",
}

type postRepository struct {
	db      *gorm.DB
	replica *gorm.DB
}

// NewPostRepository creates a new post repository. replica may be nil.
func NewPostRepository(db *gorm.DB, replica *gorm.DB) PostRepository {
	return &postRepository{db: db, replica: replica}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exhibition := post.Exhibition
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if exhibition != nil {
			exhibition.ID = 0
			exhibition.PostID = post.ID
			if err := tx.Create(exhibition).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Post", post.ID)
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(r.db.WithContext(ctx), viewerID).First(&post, id).Error
	if err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, page Page, viewerID uint) ([]*models.Post, error) {
	return r.find(r.withDetails(r.read(ctx), viewerID), page)
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, page Page, viewerID uint) ([]*models.Post, error) {
	return r.find(r.withDetails(r.read(ctx), viewerID).Where("posts.user_id = ?", userID), page)
}

func (r *postRepository) ListByArtist(ctx context.Context, artist string, page Page, viewerID uint) ([]*models.Post, error) {
	q := r.withDetails(r.read(ctx), viewerID).Where("LOWER(posts.artist) = ?", strings.ToLower(artist))
	return r.find(q, page)
}

func (r *postRepository) ListLiked(ctx context.Context, userID uint, page Page) ([]*models.Post, error) {
	return r.listMembership(ctx, models.ReactionLike, userID, page)
}

func (r *postRepository) ListSaved(ctx context.Context, userID uint, page Page) ([]*models.Post, error) {
	return r.listMembership(ctx, models.ReactionSave, userID, page)
}

// listMembership lists the posts a user liked or saved, most recent first.
func (r *postRepository) listMembership(ctx context.Context, kind models.ReactionKind, userID uint, page Page) ([]*models.Post, error) {
	page = page.Normalize()
	table := kind.Table()
	var posts []*models.Post
	err := r.withDetails(r.read(ctx), userID).
		Joins("JOIN "+table+" m ON m.post_id = posts.id AND m.user_id = ?", userID).
		Order("m.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "Post", nil)
	}
	return posts, nil
}

// Search matches title and artist substrings. Hashtags are stored as JSON
// text, so they are only searched when the query is hashtag text and thus
// cannot span a tag boundary.
func (r *postRepository) Search(ctx context.Context, query string, page Page, viewerID uint) ([]*models.Post, error) {
	lower := strings.ToLower(query)
	like := containsPattern(lower)
	cond := "LOWER(posts.title) LIKE ? ESCAPE '\\' OR LOWER(posts.artist) LIKE ? ESCAPE '\\'"
	args := []interface{}{like, like}
	if validation.IsHashtagText(lower) {
		cond += " OR LOWER(posts.hashtags) LIKE ? ESCAPE '\\'"
		args = append(args, like)
	}
	q := r.withDetails(r.read(ctx), viewerID).Where(cond, args...)
	return r.find(q, page)
}

// Update writes the editable columns and replaces the exhibition.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{ID: post.ID}).Select(editableColumns).Updates(post)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Exhibition{}).Error; err != nil {
			return err
		}
		if post.Exhibition != nil {
			post.Exhibition.ID = 0
			post.Exhibition.PostID = post.ID
			return tx.Create(post.Exhibition).Error
		}
		return nil
	})
	return translate(err, "Post", post.ID)
}

// Delete soft-deletes the post and removes its memberships, comments and
// exhibition.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		for _, model := range []interface{}{&models.Like{}, &models.Save{}, &models.Exhibition{}} {
			if err := tx.Where("post_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error
	})
	return translate(err, "Post", id)
}

func (r *postRepository) ExhibitionsInBox(ctx context.Context, box geo.Box) ([]*models.Post, error) {
	q := r.withDetails(r.read(ctx), 0).
		Joins("JOIN exhibitions e ON e.post_id = posts.id").
		Where("posts.has_exhibition = ?", true).
		Where("e.latitude BETWEEN ? AND ?", box.MinLat, box.MaxLat)
	if box.WrapsLng {
		q = q.Where("(e.longitude >= ? OR e.longitude <= ?)", box.MinLng, box.MaxLng)
	} else {
		q = q.Where("e.longitude BETWEEN ? AND ?", box.MinLng, box.MaxLng)
	}

	var posts []*models.Post
	if err := q.Order(nearestFirst(box.Center)).Limit(maxNearbyRows).Find(&posts).Error; err != nil {
		return nil, translate(err, "Exhibition", nil)
	}
	return posts, nil
}

// nearestFirst orders exhibitions by squared equirectangular distance from
// center, with the longitude difference taken the short way round.
func nearestFirst(center geo.Point) clause.OrderBy {
	cos := math.Cos(center.Lat * math.Pi / 180)
	return clause.OrderBy{Expression: clause.Expr{
		SQL: "(e.latitude - ?) * (e.latitude - ?) + ? * (CASE WHEN ABS(e.longitude - ?) > 180 " +
			"THEN (360 - ABS(e.longitude - ?)) * (360 - ABS(e.longitude - ?)) " +
			"ELSE (e.longitude - ?) * (e.longitude - ?) END), posts.id",
		Vars: []interface{}{
			center.Lat, center.Lat, cos * cos,
			center.Lng, center.Lng, center.Lng, center.Lng, center.Lng,
		},
		WithoutParentheses: true,
	}}
}

func (r *postRepository) CountByImageKey(ctx context.Context, key string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("image_key = ?", key).Count(&n).Error
	if err != nil {
		return 0, translate(err, "Post", nil)
	}
	return n, nil
}

func (r *postRepository) ExhibitionsByUser(ctx context.Context, userID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.withDetails(r.read(ctx), 0).
		Joins("JOIN exhibitions e ON e.post_id = posts.id").
		Where("posts.user_id = ? AND posts.has_exhibition = ?", userID, true).
		Order("e.date IS NULL, e.date ASC, posts.created_at DESC").
		Limit(maxPageSize).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "Exhibition", nil)
	}
	return posts, nil
}

func (r *postRepository) read(ctx context.Context) *gorm.DB {
	return reader(r.db, r.replica).WithContext(ctx)
}

func (r *postRepository) find(q *gorm.DB, page Page) ([]*models.Post, error) {
	page = page.Normalize()
	var posts []*models.Post
	err := q.Order("posts.created_at DESC").
		Order("posts.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "Post", nil)
	}
	return posts, nil
}

// withDetails selects the post columns plus the viewer's liked/saved flags
// and preloads the author card and exhibition.
func (r *postRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	db = db.Model(&models.Post{}).
		Preload("User", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "username", "display_name", "profile_image")
		}).
		Preload("Exhibition")

	if viewerID == 0 {
		return db.Select("posts.*, false AS liked, false AS saved")
	}
	return db.Select(
		"posts.*, "+
			"EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked, "+
			"EXISTS(SELECT 1 FROM saves WHERE saves.post_id = posts.id AND saves.user_id = ?) AS saved",
		viewerID, viewerID,
	)
}
