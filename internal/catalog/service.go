package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/pagination"
)

// Service exposes the track catalog: the public library, per-creator
// listings, and the relaxed play/like counters.
type Service interface {
	ListPublic(ctx context.Context, params pagination.Params) ([]TrackDTO, pagination.Meta, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]TrackDTO, pagination.Meta, error)
	Get(ctx context.Context, viewerID, trackID uuid.UUID) (*TrackDTO, error)
	RecordPlay(ctx context.Context, trackID uuid.UUID) error
	RecordLike(ctx context.Context, trackID uuid.UUID) error
}

// TrackDTO is the serialized catalog view of a track.
type TrackDTO struct {
	ID              uuid.UUID   `json:"id"`
	CreatorID       uuid.UUID   `json:"creator_id"`
	Title           string      `json:"title"`
	Prompt          string      `json:"prompt"`
	AudioURL        string      `json:"audio_url"`
	DurationSeconds int         `json:"duration_seconds"`
	Genre           enums.Genre `json:"genre"`
	Mood            enums.Mood  `json:"mood"`
	IsPublic        bool        `json:"is_public"`
	Tags            []string    `json:"tags"`
	Plays           int64       `json:"plays"`
	Likes           int64       `json:"likes"`
	CreatedAt       time.Time   `json:"created_at"`
}

type service struct {
	repo Repository
}

// NewService constructs a catalog service instance.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListPublic(ctx context.Context, params pagination.Params) ([]TrackDTO, pagination.Meta, error) {
	params = params.Normalize()
	tracks, total, err := s.repo.ListPublic(ctx, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list public tracks")
	}
	return toDTOs(tracks), pagination.MetaFor(params, total), nil
}

func (s *service) ListByCreator(ctx context.Context, creatorID uuid.UUID, params pagination.Params) ([]TrackDTO, pagination.Meta, error) {
	if creatorID == uuid.Nil {
		return nil, pagination.Meta{}, pkgerrors.New(pkgerrors.CodeValidation, "creator id is required")
	}
	params = params.Normalize()
	tracks, total, err := s.repo.ListByCreator(ctx, creatorID, params)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list creator tracks")
	}
	return toDTOs(tracks), pagination.MetaFor(params, total), nil
}

// Get returns a track. Private tracks are visible only to their creator.
func (s *service) Get(ctx context.Context, viewerID, trackID uuid.UUID) (*TrackDTO, error) {
	if trackID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "track id is required")
	}
	track, err := s.repo.FindByID(ctx, trackID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load track")
	}
	if track == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "track not found")
	}
	if !track.IsPublic && track.CreatorID != viewerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "track not found")
	}
	dto := toDTO(*track)
	return &dto, nil
}

func (s *service) RecordPlay(ctx context.Context, trackID uuid.UUID) error {
	return s.bump(ctx, trackID, s.repo.IncrementPlays)
}

func (s *service) RecordLike(ctx context.Context, trackID uuid.UUID) error {
	return s.bump(ctx, trackID, s.repo.IncrementLikes)
}

func (s *service) bump(ctx context.Context, trackID uuid.UUID, fn func(context.Context, uuid.UUID) (bool, error)) error {
	if trackID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "track id is required")
	}
	found, err := fn(ctx, trackID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bump counter")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "track not found")
	}
	return nil
}

func toDTOs(tracks []models.Track) []TrackDTO {
	out := make([]TrackDTO, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, toDTO(track))
	}
	return out
}

func toDTO(track models.Track) TrackDTO {
	return TrackDTO{
		ID:              track.ID,
		CreatorID:       track.CreatorID,
		Title:           track.Title,
		Prompt:          track.Prompt,
		AudioURL:        track.AudioURL,
		DurationSeconds: track.DurationSeconds,
		Genre:           track.Genre,
		Mood:            track.Mood,
		IsPublic:        track.IsPublic,
		Tags:            SplitTags(track.Tags),
		Plays:           track.Plays,
		Likes:           track.Likes,
		CreatedAt:       track.CreatedAt,
	}
}
