package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pumpmusic/backend/api/responses"
	pkgauth "github.com/pumpmusic/backend/pkg/auth"
	"github.com/pumpmusic/backend/pkg/config"
	"github.com/pumpmusic/backend/pkg/db/models"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/logger"
)

// AccountProvisioner creates the account row with its signup grant the
// first time a token holder shows up.
type AccountProvisioner interface {
	Ensure(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

// Auth validates a bearer token and seeds the request context with the
// account identity. Unknown accounts are provisioned on first contact.
func Auth(cfg config.JWTConfig, provisioner AccountProvisioner, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if provisioner != nil {
				if _, err := provisioner.Ensure(r.Context(), claims.AccountID); err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision account"))
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxAccountID, claims.AccountID.String())
			if logg != nil {
				ctx = logg.WithAccountID(ctx, claims.AccountID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
