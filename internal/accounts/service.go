package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/db"
	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/outbox"
)

// Service provisions accounts on first contact.
type Service interface {
	Ensure(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

type service struct {
	repo        Repository
	dbClient    *db.Client
	guard       ledger.Guard
	outboxSvc   *outbox.Service
	logg        *logger.Logger
	signupGrant int
}

// ServiceParams wires the account service dependencies.
type ServiceParams struct {
	Repo        Repository
	DBClient    *db.Client
	Guard       ledger.Guard
	Outbox      *outbox.Service
	Logger      *logger.Logger
	SignupGrant int
}

// NewService constructs an account service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if params.DBClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("balance guard required")
	}
	if params.SignupGrant < 0 {
		return nil, fmt.Errorf("signup grant must not be negative")
	}
	return &service{
		repo:        params.Repo,
		dbClient:    params.DBClient,
		guard:       params.Guard,
		outboxSvc:   params.Outbox,
		logg:        params.Logger,
		signupGrant: params.SignupGrant,
	}, nil
}

// Ensure creates the account with its signup grant on first sight of the id.
// Subsequent calls return the existing row untouched, so the grant is applied
// at most once.
func (s *service) Ensure(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required")
	}

	existing, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	// the row starts empty; the grant flows through the guard so every
	// balance mutation has its paired ledger entry
	account := &models.Account{
		ID:       accountID,
		Balance:  0,
		IsActive: true,
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).CreateIfAbsent(ctx, account)
		if err != nil {
			return err
		}
		if !created {
			// lost the race to a concurrent first request
			return nil
		}

		if s.signupGrant > 0 {
			if _, err := s.guard.CreditInTx(ctx, tx, ledger.CreditInput{
				AccountID: accountID,
				Amount:    s.signupGrant,
				Kind:      enums.LedgerEntryKindReward,
				Reference: "signup_grant",
			}); err != nil {
				return err
			}
		}

		if s.outboxSvc != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventAccountProvisioned,
				AggregateType: enums.AggregateAccount,
				AggregateID:   accountID,
				Data: map[string]any{
					"accountId":   accountID.String(),
					"signupGrant": s.signupGrant,
				},
				Version: 1,
			}
			if err := s.outboxSvc.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	row, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("account %s missing after provisioning", accountID)
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithAccountID(ctx, accountID.String()), "account provisioned")
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required")
	}
	return s.repo.FindByID(ctx, accountID)
}
