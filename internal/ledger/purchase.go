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
	"github.com/pumpmusic/backend/pkg/outbox"
)

// PurchaseService converts token pack purchases into settled ledger credits.
type PurchaseService interface {
	PurchasePack(ctx context.Context, accountID uuid.UUID, packID string) (*models.LedgerEntry, TokenPack, error)
}

type purchaseService struct {
	guard     Guard
	dbClient  *db.Client
	outboxSvc *outbox.Service
}

// NewPurchaseService wires the token purchase flow.
func NewPurchaseService(guard Guard, dbClient *db.Client, outboxSvc *outbox.Service) (PurchaseService, error) {
	if guard == nil {
		return nil, fmt.Errorf("balance guard required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &purchaseService{guard: guard, dbClient: dbClient, outboxSvc: outboxSvc}, nil
}

// PurchasePack credits the pack's tokens and records the purchase event in
// one transaction. Payment capture is assumed confirmed upstream, so the
// entry is born settled.
func (s *purchaseService) PurchasePack(ctx context.Context, accountID uuid.UUID, packID string) (*models.LedgerEntry, TokenPack, error) {
	pack, err := PackByID(packID)
	if err != nil {
		return nil, TokenPack{}, err
	}

	metadata, _ := json.Marshal(map[string]string{
		"pack_id":   pack.ID,
		"price_usd": pack.PriceUSD.StringFixed(2),
	})

	var entry *models.LedgerEntry
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.guard.CreditInTx(ctx, tx, CreditInput{
			AccountID: accountID,
			Amount:    pack.Tokens,
			Kind:      enums.LedgerEntryKindPurchase,
			Reference: "pack:" + pack.ID,
			Metadata:  metadata,
		})
		if err != nil {
			return err
		}
		entry = created

		if s.outboxSvc != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventTokensPurchased,
				AggregateType: enums.AggregateLedgerEntry,
				AggregateID:   entry.ID,
				Actor:         &outbox.ActorRef{AccountID: accountID},
				Data: map[string]any{
					"accountId": accountID.String(),
					"packId":    pack.ID,
					"tokens":    pack.Tokens,
					"priceUsd":  pack.PriceUSD.StringFixed(2),
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
		return nil, TokenPack{}, err
	}
	return entry, pack, nil
}
