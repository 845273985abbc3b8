package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/pagination"
)

// Repository manages persistence for generated tracks.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, track *models.Track) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Track, error)
	ListPublic(ctx context.Context, params pagination.Params) ([]models.Track, int64, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]models.Track, int64, error)
	IncrementPlays(ctx context.Context, id uuid.UUID) (bool, error)
	IncrementLikes(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a track repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, track *models.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).First(&track, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

func (r *repository) ListPublic(ctx context.Context, params pagination.Params) ([]models.Track, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("is_public = ?", true), params)
}

func (r *repository) ListByCreator(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]models.Track, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("creator_id = ?", creatorID), params)
}

func (r *repository) list(ctx context.Context, scope *gorm.DB, params pagination.Params) ([]models.Track, int64, error) {
	params = params.Normalize()

	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&models.Track{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tracks []models.Track
	err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.PageSize).
		Offset(params.Offset()).
		Find(&tracks).Error
	if err != nil {
		return nil, 0, err
	}
	return tracks, total, nil
}

func (r *repository) IncrementPlays(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.bump(ctx, id, "plays")
}

func (r *repository) IncrementLikes(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.bump(ctx, id, "likes")
}

// bump is a single-statement increment; play and like counters never touch
// the token ledger.
func (r *repository) bump(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Track{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
