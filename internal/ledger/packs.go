package ledger

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
)

// TokenPack is a purchasable bundle of generation tokens.
type TokenPack struct {
	ID       string          `json:"id"`
	Tokens   int             `json:"tokens"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}

var tokenPacks = []TokenPack{
	{ID: "starter", Tokens: 10, PriceUSD: decimal.NewFromFloat(2.99)},
	{ID: "creator", Tokens: 50, PriceUSD: decimal.NewFromFloat(9.99)},
	{ID: "studio", Tokens: 200, PriceUSD: decimal.NewFromFloat(29.99)},
}

// Packs returns the purchasable token packs in display order.
func Packs() []TokenPack {
	out := make([]TokenPack, len(tokenPacks))
	copy(out, tokenPacks)
	return out
}

// PackByID finds a token pack by its id.
func PackByID(id string) (TokenPack, error) {
	for _, pack := range tokenPacks {
		if pack.ID == id {
			return pack, nil
		}
	}
	return TokenPack{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown token pack")
}
