package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	"github.com/pumpmusic/backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Track{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func seedTrack(t *testing.T, conn *gorm.DB, creatorID uuid.UUID, title string, isPublic bool) uuid.UUID {
	t.Helper()
	track := models.Track{
		CreatorID: creatorID,
		Title:     title,
		Prompt:    "a test prompt",
		AudioURL:  "https://cdn.example.com/" + title + ".mp3",
		Genre:     enums.GenreElectronic,
		Mood:      enums.MoodCalm,
		IsPublic:  isPublic,
	}
	if err := conn.Create(&track).Error; err != nil {
		t.Fatalf("seed track: %v", err)
	}
	return track.ID
}

func TestListPublicExcludesPrivateTracks(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	creator := uuid.New()

	seedTrack(t, conn, creator, "public-one", true)
	seedTrack(t, conn, creator, "private-one", false)

	tracks, total, err := repo.ListPublic(ctx, pagination.Params{})
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if total != 1 || len(tracks) != 1 {
		t.Fatalf("expected 1 public track, got total=%d len=%d", total, len(tracks))
	}
	if tracks[0].Title != "public-one" {
		t.Fatalf("unexpected track: %+v", tracks[0])
	}
}

func TestListByCreatorIncludesPrivateTracks(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	creator := uuid.New()
	other := uuid.New()

	seedTrack(t, conn, creator, "mine-public", true)
	seedTrack(t, conn, creator, "mine-private", false)
	seedTrack(t, conn, other, "theirs", true)

	tracks, total, err := repo.ListByCreator(ctx, creator, pagination.Params{})
	if err != nil {
		t.Fatalf("list by creator: %v", err)
	}
	if total != 2 || len(tracks) != 2 {
		t.Fatalf("expected 2 creator tracks, got total=%d len=%d", total, len(tracks))
	}
}

func TestListPublicPagesAreDisjoint(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	creator := uuid.New()

	for i := 0; i < 20; i++ {
		seedTrack(t, conn, creator, fmt.Sprintf("track-%02d", i), true)
	}

	pageOne, _, err := repo.ListPublic(ctx, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	pageTwo, _, err := repo.ListPublic(ctx, pagination.Params{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	all, _, err := repo.ListPublic(ctx, pagination.Params{Page: 1, PageSize: 20})
	if err != nil {
		t.Fatalf("full page: %v", err)
	}

	combined := append(append([]models.Track{}, pageOne...), pageTwo...)
	if len(combined) != len(all) {
		t.Fatalf("expected %d combined tracks, got %d", len(all), len(combined))
	}
	for i := range combined {
		if combined[i].ID != all[i].ID {
			t.Fatalf("page split changed ordering at index %d", i)
		}
	}
}

func TestIncrementPlaysAndLikes(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(conn)
	trackID := seedTrack(t, conn, uuid.New(), "counted", true)

	for i := 0; i < 3; i++ {
		if _, err := repo.IncrementPlays(ctx, trackID); err != nil {
			t.Fatalf("increment plays: %v", err)
		}
	}
	if _, err := repo.IncrementLikes(ctx, trackID); err != nil {
		t.Fatalf("increment likes: %v", err)
	}

	track, err := repo.FindByID(ctx, trackID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if track.Plays != 3 || track.Likes != 1 {
		t.Fatalf("expected plays=3 likes=1, got plays=%d likes=%d", track.Plays, track.Likes)
	}

	found, err := repo.IncrementPlays(ctx, uuid.New())
	if err != nil {
		t.Fatalf("increment unknown: %v", err)
	}
	if found {
		t.Fatal("expected unknown track to report not found")
	}
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	tags := ExtractTags("An Epic synthwave journey through NEON cities at night, with epic drums")
	want := []string{"epic", "synthwave", "journey", "through", "neon"}
	if len(tags) != len(want) {
		t.Fatalf("expected %d tags, got %v", len(want), tags)
	}
	for i, tag := range want {
		if tags[i] != tag {
			t.Fatalf("expected tag %q at %d, got %q", tag, i, tags[i])
		}
	}

	if got := ExtractTags("a at it on"); len(got) != 0 {
		t.Fatalf("expected no tags for short words, got %v", got)
	}
}

func TestTagRoundTrip(t *testing.T) {
	t.Parallel()

	joined := JoinTags([]string{"lofi", "study"})
	if joined != "lofi,study" {
		t.Fatalf("unexpected joined form %q", joined)
	}
	split := SplitTags(joined)
	if len(split) != 2 || split[0] != "lofi" || split[1] != "study" {
		t.Fatalf("unexpected split %v", split)
	}
	if SplitTags("") != nil {
		t.Fatal("expected nil for empty stored tags")
	}
}
