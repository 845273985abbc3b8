package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db"
	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/pagination"
)

// Guard is the only path through which account balances change. Every
// mutation pairs a conditional balance update with exactly one ledger entry
// inside the same transaction.
type Guard interface {
	Reserve(ctx context.Context, input ReserveInput) (*models.LedgerEntry, error)
	Settle(ctx context.Context, entryID uuid.UUID) error
	Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*models.LedgerEntry, error)
	Entry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error)
	Credit(ctx context.Context, input CreditInput) (*models.LedgerEntry, error)
	CreditInTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.LedgerEntry, error)
	CurrentBalance(ctx context.Context, accountID uuid.UUID) (int, error)
	History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error)
}

// ReserveInput captures a pending debit held while a generation job runs.
type ReserveInput struct {
	AccountID uuid.UUID
	Amount    int
	Reference string
}

// CreditInput captures a direct settled credit (purchases, rewards).
type CreditInput struct {
	AccountID uuid.UUID
	Amount    int
	Kind      enums.LedgerEntryKind
	Reference string
	Metadata  json.RawMessage
}

type guard struct {
	repo     Repository
	dbClient *db.Client
	logg     *logger.Logger
}

// NewGuard wires the balance guard with its repository and database client.
func NewGuard(repo Repository, dbClient *db.Client, logg *logger.Logger) (Guard, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &guard{repo: repo, dbClient: dbClient, logg: logg}, nil
}

// Reserve atomically debits the balance and appends a pending usage entry.
// The debit is a single conditional UPDATE, so two racing reservations can
// never spend the same credit.
func (g *guard) Reserve(ctx context.Context, input ReserveInput) (*models.LedgerEntry, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve amount must be positive")
	}

	entry := &models.LedgerEntry{
		AccountID: input.AccountID,
		Amount:    -input.Amount,
		Kind:      enums.LedgerEntryKindUsage,
		Status:    enums.LedgerEntryStatePending,
		Reference: input.Reference,
	}

	err := g.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := g.repo.WithTx(tx)

		debited, err := txRepo.DebitBalance(ctx, input.AccountID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit balance")
		}
		if !debited {
			return pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough tokens; your account was not charged")
		}

		if err := txRepo.Append(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append usage entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if g.logg != nil {
		ctx := g.logg.WithFields(ctx, map[string]any{
			"account_id": input.AccountID.String(),
			"entry_id":   entry.ID.String(),
			"amount":     input.Amount,
		})
		g.logg.Info(ctx, "reservation held")
	}
	return entry, nil
}

// Settle finalizes a reservation as a permanent debit. Retried settlement of
// an already settled entry succeeds quietly.
func (g *guard) Settle(ctx context.Context, entryID uuid.UUID) error {
	if entryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}

	moved, err := g.repo.TransitionStatus(ctx, entryID, enums.LedgerEntryStatePending, enums.LedgerEntryStateSettled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle entry")
	}
	if moved {
		return nil
	}

	entry, err := g.repo.FindEntry(ctx, entryID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entry")
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}
	if entry.Status == enums.LedgerEntryStateSettled {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("entry is %s, not pending", entry.Status))
}

// Reverse cancels a pending reservation: the entry moves to reversed, the
// amount is credited back, and a settled refund entry referencing the
// original records the restoration.
func (g *guard) Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}

	entry, err := g.repo.FindEntry(ctx, entryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}

	amount := -entry.Amount
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only debit entries can be reversed")
	}

	var metadata json.RawMessage
	if reason != "" {
		metadata, _ = json.Marshal(map[string]string{"reason": reason})
	}
	refund := &models.LedgerEntry{
		AccountID: entry.AccountID,
		Amount:    amount,
		Kind:      enums.LedgerEntryKindRefund,
		Status:    enums.LedgerEntryStateSettled,
		Reference: entry.ID.String(),
		Metadata:  metadata,
	}

	err = g.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := g.repo.WithTx(tx)

		moved, err := txRepo.TransitionStatus(ctx, entryID, enums.LedgerEntryStatePending, enums.LedgerEntryStateReversed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reverse entry")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "entry is no longer pending")
		}

		credited, err := txRepo.CreditBalance(ctx, entry.AccountID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
		}
		if !credited {
			return pkgerrors.New(pkgerrors.CodeDependency, "account row missing during reversal")
		}

		if err := txRepo.Append(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append refund entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if g.logg != nil {
		ctx := g.logg.WithFields(ctx, map[string]any{
			"account_id": entry.AccountID.String(),
			"entry_id":   entryID.String(),
			"refund_id":  refund.ID.String(),
		})
		g.logg.Info(ctx, "reservation reversed")
	}
	return refund, nil
}

// Entry loads one ledger entry so callers can inspect its status.
func (g *guard) Entry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	if entryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry id is required")
	}
	entry, err := g.repo.FindEntry(ctx, entryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entry")
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger entry not found")
	}
	return entry, nil
}

// Credit applies a direct settled credit in its own transaction.
func (g *guard) Credit(ctx context.Context, input CreditInput) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := g.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := g.CreditInTx(ctx, tx, input)
		if err != nil {
			return err
		}
		entry = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditInTx applies a direct settled credit inside the caller's transaction
// so additional rows (outbox events, payment records) commit atomically with it.
func (g *guard) CreditInTx(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if input.Kind != enums.LedgerEntryKindPurchase && input.Kind != enums.LedgerEntryKindReward {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("kind %q cannot be credited directly", input.Kind))
	}

	entry := &models.LedgerEntry{
		AccountID: input.AccountID,
		Amount:    input.Amount,
		Kind:      input.Kind,
		Status:    enums.LedgerEntryStateSettled,
		Reference: input.Reference,
		Metadata:  input.Metadata,
	}

	txRepo := g.repo.WithTx(tx)

	credited, err := txRepo.CreditBalance(ctx, input.AccountID, input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit balance")
	}
	if !credited {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}

	if err := txRepo.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append credit entry")
	}
	return entry, nil
}

func (g *guard) CurrentBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	if accountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	balance, err := g.repo.CurrentBalance(ctx, accountID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "account not found")
	}
	return balance, nil
}

func (g *guard) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error) {
	if accountID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	return g.repo.History(ctx, accountID, params)
}
