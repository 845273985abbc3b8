package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pumpmusic/backend/api/responses"
	"github.com/pumpmusic/backend/api/validators"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/pagination"
)

type purchaseRequest struct {
	PackID string `json:"pack_id" validate:"required"`
}

type ledgerEntryResponse struct {
	ID        uuid.UUID       `json:"id"`
	Amount    int             `json:"amount"`
	Kind      string          `json:"kind"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func newLedgerEntryResponse(entry models.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:        entry.ID,
		Amount:    entry.Amount,
		Kind:      string(entry.Kind),
		Status:    string(entry.Status),
		Reference: entry.Reference,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}
}

// TokenBalance returns the account's current token balance.
func TokenBalance(guard ledger.Guard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := guard.CurrentBalance(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"balance": balance})
	}
}

// TokenPacks lists the purchasable token packs.
func TokenPacks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"packs": ledger.Packs()})
	}
}

// PurchaseTokens credits a pack's tokens to the account.
func PurchaseTokens(svc ledger.PurchaseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req purchaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, pack, err := svc.PurchasePack(r.Context(), accountID, req.PackID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"entry": newLedgerEntryResponse(*entry),
			"pack":  pack,
		})
	}
}

// TokenHistory lists the account's ledger entries, newest first.
func TokenHistory(guard ledger.Guard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, total, err := guard.History(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ledgerEntryResponse, 0, len(entries))
		for _, entry := range entries {
			items = append(items, newLedgerEntryResponse(entry))
		}
		responses.WriteSuccess(w, map[string]any{
			"entries": items,
			"meta":    pagination.MetaFor(params.Normalize(), total),
		})
	}
}
