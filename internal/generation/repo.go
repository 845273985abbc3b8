package generation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
)

// Repository manages persistence for generation jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.GenerationJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error)
	FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*models.GenerationJob, error)
	TransitionState(ctx context.Context, id uuid.UUID, from, to enums.GenerationJobState, updates map[string]any) (bool, error)
	ListStuck(ctx context.Context, state enums.GenerationJobState, startedBefore time.Time, limit int) ([]models.GenerationJob, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a generation job repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.GenerationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GenerationJob, error) {
	var job models.GenerationJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, accountID uuid.UUID, key string) (*models.GenerationJob, error) {
	if key == "" {
		return nil, nil
	}
	var job models.GenerationJob
	err := r.db.WithContext(ctx).
		First(&job, "account_id = ? AND idempotency_key = ?", accountID, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// TransitionState advances the job state machine only when the job still
// holds the expected current state. Extra column updates ride along in the
// same statement.
func (r *repository) TransitionState(ctx context.Context, id uuid.UUID, from, to enums.GenerationJobState, updates map[string]any) (bool, error) {
	if from.IsTerminal() {
		return false, errors.New("job state is terminal")
	}
	values := map[string]any{"state": to}
	for column, value := range updates {
		values[column] = value
	}
	res := r.db.WithContext(ctx).
		Model(&models.GenerationJob{}).
		Where("id = ? AND state = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListStuck(ctx context.Context, state enums.GenerationJobState, startedBefore time.Time, limit int) ([]models.GenerationJob, error) {
	var jobs []models.GenerationJob
	err := r.db.WithContext(ctx).
		Where("state = ? AND provider_started_at IS NOT NULL AND provider_started_at < ?", state, startedBefore).
		Order("provider_started_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
