package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	"github.com/pumpmusic/backend/pkg/pagination"
)

// Repository manages persistence for accounts' balances and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, entry *models.LedgerEntry) error
	FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LedgerEntryState) (bool, error)
	DebitBalance(ctx context.Context, accountID uuid.UUID, amount int) (bool, error)
	CreditBalance(ctx context.Context, accountID uuid.UUID, amount int) (bool, error)
	CurrentBalance(ctx context.Context, accountID uuid.UUID) (int, error)
	FinalizedSum(ctx context.Context, accountID uuid.UUID) (int, error)
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Append(ctx context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return errors.New("entry is required")
	}
	if entry.Amount == 0 {
		return errors.New("entry amount must not be zero")
	}
	if !entry.Kind.IsValid() {
		return errors.New("entry kind is invalid")
	}
	if !entry.Status.IsValid() {
		return errors.New("entry status is invalid")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// TransitionStatus moves an entry between states only when it still holds the
// expected current state. Returns false when another writer got there first.
func (r *repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enums.LedgerEntryState) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, errors.New("illegal ledger entry transition")
	}
	res := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumn("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DebitBalance decrements the balance in a single conditional statement so a
// concurrent debit can never push it below zero. Returns false when the
// account lacks the funds (or does not exist).
func (r *repository) DebitBalance(ctx context.Context, accountID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, errors.New("debit amount must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE accounts
		SET balance = balance - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND balance >= ?
	`, amount, accountID, amount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreditBalance(ctx context.Context, accountID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, errors.New("credit amount must be positive")
	}
	res := r.db.WithContext(ctx).Exec(`
		UPDATE accounts
		SET balance = balance + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, amount, accountID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CurrentBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// FinalizedSum adds up settled and reversed entry amounts. Once no pending
// reservations are in flight it must match the account balance column.
func (r *repository) FinalizedSum(ctx context.Context, accountID uuid.UUID) (int, error) {
	var total *int
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("SUM(amount)").
		Where("account_id = ? AND status IN ?", accountID, []enums.LedgerEntryState{
			enums.LedgerEntryStateSettled,
			enums.LedgerEntryStateReversed,
		}).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (r *repository) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error) {
	params = params.Normalize()

	var total int64
	base := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("account_id = ?", accountID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(params.PageSize).
		Offset(params.Offset()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
