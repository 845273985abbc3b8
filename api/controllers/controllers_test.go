package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/api/middleware"
	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/internal/generation"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/pagination"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func withAccount(r *http.Request, accountID uuid.UUID) *http.Request {
	return r.WithContext(middleware.WithAccountID(r.Context(), accountID.String()))
}

type testGenerationService struct {
	submitFn func(ctx context.Context, input generation.SubmitInput) (*models.GenerationJob, error)
	getFn    func(ctx context.Context, accountID, jobID uuid.UUID) (*models.GenerationJob, error)
}

func (s *testGenerationService) Submit(ctx context.Context, input generation.SubmitInput) (*models.GenerationJob, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, input)
	}
	return nil, nil
}

func (s *testGenerationService) Get(ctx context.Context, accountID, jobID uuid.UUID) (*models.GenerationJob, error) {
	if s.getFn != nil {
		return s.getFn(ctx, accountID, jobID)
	}
	return nil, nil
}

func (s *testGenerationService) SweepStuck(ctx context.Context) (int, error) {
	return 0, nil
}

type testCatalogService struct {
	listPublicFn  func(ctx context.Context, params pagination.Params) ([]catalog.TrackDTO, pagination.Meta, error)
	listCreatorFn func(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]catalog.TrackDTO, pagination.Meta, error)
	getFn         func(ctx context.Context, viewerID, trackID uuid.UUID) (*catalog.TrackDTO, error)
	playFn        func(ctx context.Context, trackID uuid.UUID) error
	likeFn        func(ctx context.Context, trackID uuid.UUID) error
}

func (s *testCatalogService) ListPublic(ctx context.Context, params pagination.Params) ([]catalog.TrackDTO, pagination.Meta, error) {
	if s.listPublicFn != nil {
		return s.listPublicFn(ctx, params)
	}
	return nil, pagination.Meta{}, nil
}

func (s *testCatalogService) ListByCreator(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]catalog.TrackDTO, pagination.Meta, error) {
	if s.listCreatorFn != nil {
		return s.listCreatorFn(ctx, creatorID, params)
	}
	return nil, pagination.Meta{}, nil
}

func (s *testCatalogService) Get(ctx context.Context, viewerID, trackID uuid.UUID) (*catalog.TrackDTO, error) {
	if s.getFn != nil {
		return s.getFn(ctx, viewerID, trackID)
	}
	return nil, nil
}

func (s *testCatalogService) RecordPlay(ctx context.Context, trackID uuid.UUID) error {
	if s.playFn != nil {
		return s.playFn(ctx, trackID)
	}
	return nil
}

func (s *testCatalogService) RecordLike(ctx context.Context, trackID uuid.UUID) error {
	if s.likeFn != nil {
		return s.likeFn(ctx, trackID)
	}
	return nil
}

type testGuard struct {
	balanceFn func(ctx context.Context, accountID uuid.UUID) (int, error)
	historyFn func(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error)
}

func (g *testGuard) Reserve(ctx context.Context, input ledger.ReserveInput) (*models.LedgerEntry, error) {
	return nil, nil
}

func (g *testGuard) Settle(ctx context.Context, entryID uuid.UUID) error { return nil }

func (g *testGuard) Reverse(ctx context.Context, entryID uuid.UUID, reason string) (*models.LedgerEntry, error) {
	return nil, nil
}

func (g *testGuard) Entry(ctx context.Context, entryID uuid.UUID) (*models.LedgerEntry, error) {
	return nil, nil
}

func (g *testGuard) Credit(ctx context.Context, input ledger.CreditInput) (*models.LedgerEntry, error) {
	return nil, nil
}

func (g *testGuard) CreditInTx(ctx context.Context, tx *gorm.DB, input ledger.CreditInput) (*models.LedgerEntry, error) {
	return nil, nil
}

func (g *testGuard) CurrentBalance(ctx context.Context, accountID uuid.UUID) (int, error) {
	if g.balanceFn != nil {
		return g.balanceFn(ctx, accountID)
	}
	return 0, nil
}

func (g *testGuard) History(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error) {
	if g.historyFn != nil {
		return g.historyFn(ctx, accountID, params)
	}
	return nil, 0, nil
}

type testPurchaseService struct {
	purchaseFn func(ctx context.Context, accountID uuid.UUID, packID string) (*models.LedgerEntry, ledger.TokenPack, error)
}

func (s *testPurchaseService) PurchasePack(ctx context.Context, accountID uuid.UUID, packID string) (*models.LedgerEntry, ledger.TokenPack, error) {
	if s.purchaseFn != nil {
		return s.purchaseFn(ctx, accountID, packID)
	}
	return nil, ledger.TokenPack{}, nil
}

func TestGenerateMusicSuccess(t *testing.T) {
	accountID := uuid.New()
	trackID := uuid.New()
	svc := &testGenerationService{
		submitFn: func(ctx context.Context, input generation.SubmitInput) (*models.GenerationJob, error) {
			if input.AccountID != accountID {
				t.Fatalf("unexpected account %s", input.AccountID)
			}
			if input.IdempotencyKey != "req-1" {
				t.Fatalf("expected idempotency key from header, got %q", input.IdempotencyKey)
			}
			return &models.GenerationJob{
				ID:        uuid.New(),
				AccountID: accountID,
				Prompt:    input.Prompt,
				Title:     input.Title,
				State:     enums.GenerationJobStateCompleted,
				TrackID:   &trackID,
			}, nil
		},
	}

	guard := &testGuard{
		balanceFn: func(ctx context.Context, id uuid.UUID) (int, error) {
			if id != accountID {
				t.Fatalf("balance read for wrong account %s", id)
			}
			return 4, nil
		},
	}

	body := `{"prompt":"lofi beats","title":"Late Night","is_public":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/music/generate", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "req-1")
	req = withAccount(req, accountID)
	resp := httptest.NewRecorder()

	GenerateMusic(svc, guard, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data generateResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.State != "completed" || envelope.Data.TrackID == nil {
		t.Fatalf("unexpected response: %+v", envelope.Data)
	}
	if envelope.Data.Balance == nil || *envelope.Data.Balance != 4 {
		t.Fatalf("expected remaining balance 4, got %+v", envelope.Data.Balance)
	}
}

func TestGenerateMusicInsufficientBalance(t *testing.T) {
	svc := &testGenerationService{
		submitFn: func(ctx context.Context, input generation.SubmitInput) (*models.GenerationJob, error) {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientBalance, "not enough tokens; your account was not charged")
		},
	}

	body := `{"prompt":"lofi beats","title":"Late Night"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/music/generate", strings.NewReader(body))
	req = withAccount(req, uuid.New())
	resp := httptest.NewRecorder()

	GenerateMusic(svc, &testGuard{}, testLogger())(resp, req)

	if resp.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Code != "INSUFFICIENT_BALANCE" {
		t.Fatalf("unexpected error code %q", envelope.Error.Code)
	}
}

func TestGenerateMusicRejectsMissingBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/music/generate", strings.NewReader(`{}`))
	req = withAccount(req, uuid.New())
	resp := httptest.NewRecorder()

	GenerateMusic(&testGenerationService{}, &testGuard{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGenerateMusicRequiresAccountContext(t *testing.T) {
	body := `{"prompt":"lofi beats","title":"Late Night"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/music/generate", strings.NewReader(body))
	resp := httptest.NewRecorder()

	GenerateMusic(&testGenerationService{}, &testGuard{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGenerationStatusNotFound(t *testing.T) {
	svc := &testGenerationService{
		getFn: func(ctx context.Context, accountID, jobID uuid.UUID) (*models.GenerationJob, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/music/generations/"+uuid.NewString(), nil)
	req = withAccount(req, uuid.New())
	req = addRouteParam(req, "jobId", uuid.NewString())
	resp := httptest.NewRecorder()

	GenerationStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestPublicLibraryPassesPagination(t *testing.T) {
	var captured pagination.Params
	svc := &testCatalogService{
		listPublicFn: func(ctx context.Context, params pagination.Params) ([]catalog.TrackDTO, pagination.Meta, error) {
			captured = params
			return []catalog.TrackDTO{{ID: uuid.New(), Title: "one"}}, pagination.Meta{Total: 1, Page: 2, PageSize: 5, Pages: 1}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/public/library?page=2&page_size=5", nil)
	resp := httptest.NewRecorder()

	PublicLibrary(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if captured.Page != 2 || captured.PageSize != 5 {
		t.Fatalf("pagination not forwarded: %+v", captured)
	}
}

func TestPublicLibraryRejectsOversizedPage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/public/library?page_size=5000", nil)
	resp := httptest.NewRecorder()

	PublicLibrary(&testCatalogService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetTrackHidesPrivateTracks(t *testing.T) {
	svc := &testCatalogService{
		getFn: func(ctx context.Context, viewerID, trackID uuid.UUID) (*catalog.TrackDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "track not found")
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/music/"+uuid.NewString(), nil)
	req = withAccount(req, uuid.New())
	req = addRouteParam(req, "trackId", uuid.NewString())
	resp := httptest.NewRecorder()

	GetTrack(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestPlayTrackBumpsCounter(t *testing.T) {
	trackID := uuid.New()
	called := false
	svc := &testCatalogService{
		playFn: func(ctx context.Context, id uuid.UUID) error {
			called = true
			if id != trackID {
				t.Fatalf("unexpected track %s", id)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/music/"+trackID.String()+"/play", nil)
	req = withAccount(req, uuid.New())
	req = addRouteParam(req, "trackId", trackID.String())
	resp := httptest.NewRecorder()

	PlayTrack(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !called {
		t.Fatal("expected play recorded")
	}
}

func TestTokenBalance(t *testing.T) {
	accountID := uuid.New()
	guard := &testGuard{
		balanceFn: func(ctx context.Context, id uuid.UUID) (int, error) {
			if id != accountID {
				t.Fatalf("unexpected account %s", id)
			}
			return 7, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/balance", nil)
	req = withAccount(req, accountID)
	resp := httptest.NewRecorder()

	TokenBalance(guard, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data["balance"] != 7 {
		t.Fatalf("unexpected balance %d", envelope.Data["balance"])
	}
}

func TestPurchaseTokens(t *testing.T) {
	accountID := uuid.New()
	svc := &testPurchaseService{
		purchaseFn: func(ctx context.Context, id uuid.UUID, packID string) (*models.LedgerEntry, ledger.TokenPack, error) {
			if packID != "creator" {
				t.Fatalf("unexpected pack %q", packID)
			}
			pack, err := ledger.PackByID(packID)
			if err != nil {
				t.Fatalf("pack lookup: %v", err)
			}
			return &models.LedgerEntry{
				ID:        uuid.New(),
				AccountID: id,
				Amount:    pack.Tokens,
				Kind:      enums.LedgerEntryKindPurchase,
				Status:    enums.LedgerEntryStateSettled,
				Reference: "pack:" + packID,
			}, pack, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/purchase", strings.NewReader(`{"pack_id":"creator"}`))
	req = withAccount(req, accountID)
	resp := httptest.NewRecorder()

	PurchaseTokens(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestPurchaseTokensRequiresPackID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tokens/purchase", strings.NewReader(`{}`))
	req = withAccount(req, uuid.New())
	resp := httptest.NewRecorder()

	PurchaseTokens(&testPurchaseService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTokenHistory(t *testing.T) {
	accountID := uuid.New()
	guard := &testGuard{
		historyFn: func(ctx context.Context, id uuid.UUID, params pagination.Params) ([]models.LedgerEntry, int64, error) {
			return []models.LedgerEntry{{
				ID:        uuid.New(),
				AccountID: id,
				Amount:    -1,
				Kind:      enums.LedgerEntryKindUsage,
				Status:    enums.LedgerEntryStateSettled,
				Reference: uuid.NewString(),
			}}, 1, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tokens/history", nil)
	req = withAccount(req, accountID)
	resp := httptest.NewRecorder()

	TokenHistory(guard, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Entries []ledgerEntryResponse `json:"entries"`
			Meta    pagination.Meta       `json:"meta"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(envelope.Data.Entries) != 1 || envelope.Data.Meta.Total != 1 {
		t.Fatalf("unexpected payload: %+v", envelope.Data)
	}
}
