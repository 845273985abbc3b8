package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/pagination"
)

func TestGetHidesPrivateTracksFromStrangers(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	creator := uuid.New()
	trackID := seedTrack(t, conn, creator, "secret", false)

	if _, err := svc.Get(ctx, uuid.New(), trackID); err == nil {
		t.Fatal("expected stranger to be denied")
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}

	dto, err := svc.Get(ctx, creator, trackID)
	if err != nil {
		t.Fatalf("creator get: %v", err)
	}
	if dto.Title != "secret" {
		t.Fatalf("unexpected track: %+v", dto)
	}
}

func TestRecordPlayUnknownTrack(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.RecordPlay(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestListPublicMetaPages(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	creator := uuid.New()
	for i := 0; i < 13; i++ {
		seedTrack(t, conn, creator, "t", true)
	}

	dtos, meta, err := svc.ListPublic(ctx, pagination.Params{Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(dtos) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(dtos))
	}
	if meta.Total != 13 || meta.Pages != 3 || meta.Page != 2 {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}
