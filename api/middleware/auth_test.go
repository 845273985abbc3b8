package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pumpmusic/backend/pkg/auth"
	"github.com/pumpmusic/backend/pkg/config"
	"github.com/pumpmusic/backend/pkg/db/models"
)

var testJWT = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "pumpmusic-test",
	ExpirationMinutes: 15,
}

type fakeProvisioner struct {
	seen []uuid.UUID
	err  error
}

func (f *fakeProvisioner) Ensure(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	f.seen = append(f.seen, accountID)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Account{ID: accountID}, nil
}

func mintToken(t *testing.T, accountID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		AccountID:   accountID,
		DisplayName: "tester",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthSeedsAccountContext(t *testing.T) {
	accountID := uuid.New()
	provisioner := &fakeProvisioner{}

	var gotAccount string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = AccountIDFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, accountID))
	resp := httptest.NewRecorder()

	Auth(testJWT, provisioner, nil)(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if gotAccount != accountID.String() {
		t.Fatalf("expected account %s in context, got %q", accountID, gotAccount)
	}
	if len(provisioner.seen) != 1 || provisioner.seen[0] != accountID {
		t.Fatalf("expected provision call for %s, got %v", accountID, provisioner.seen)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/balance", nil)
	resp := httptest.NewRecorder()

	Auth(testJWT, &fakeProvisioner{}, nil)(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthRejectsForgedToken(t *testing.T) {
	forged := config.JWTConfig{Secret: "other-secret", Issuer: testJWT.Issuer, ExpirationMinutes: 15}
	token, err := auth.MintAccessToken(forged, time.Now(), auth.AccessTokenPayload{AccountID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a forged token")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()

	Auth(testJWT, &fakeProvisioner{}, nil)(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}
