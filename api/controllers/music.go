package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pumpmusic/backend/api/middleware"
	"github.com/pumpmusic/backend/api/responses"
	"github.com/pumpmusic/backend/api/validators"
	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/internal/generation"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/db/models"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/logger"
)

type generateRequest struct {
	Prompt   string `json:"prompt" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Genre    string `json:"genre"`
	Mood     string `json:"mood"`
	IsPublic bool   `json:"is_public"`
}

type generationJobResponse struct {
	ID            uuid.UUID  `json:"id"`
	State         string     `json:"state"`
	Prompt        string     `json:"prompt"`
	Title         string     `json:"title"`
	Genre         string     `json:"genre"`
	Mood          string     `json:"mood"`
	IsPublic      bool       `json:"is_public"`
	TrackID       *uuid.UUID `json:"track_id,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newGenerationJobResponse(job *models.GenerationJob) generationJobResponse {
	return generationJobResponse{
		ID:            job.ID,
		State:         string(job.State),
		Prompt:        job.Prompt,
		Title:         job.Title,
		Genre:         string(job.Genre),
		Mood:          string(job.Mood),
		IsPublic:      job.IsPublic,
		TrackID:       job.TrackID,
		FailureReason: job.FailureReason,
		CreatedAt:     job.CreatedAt,
	}
}

type generateResponse struct {
	generationJobResponse
	Balance *int `json:"balance,omitempty"`
}

// GenerateMusic runs one metered generation for the authenticated account.
// The response carries the remaining balance so clients can show what the
// charge left.
func GenerateMusic(svc generation.Service, guard ledger.Guard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req generateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := svc.Submit(r.Context(), generation.SubmitInput{
			AccountID:      accountID,
			Prompt:         req.Prompt,
			Title:          req.Title,
			Genre:          req.Genre,
			Mood:           req.Mood,
			IsPublic:       req.IsPublic,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := generateResponse{generationJobResponse: newGenerationJobResponse(job)}
		if balance, err := guard.CurrentBalance(r.Context(), accountID); err != nil {
			// the job already ran; a failed read must not fail the response
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "balance read after generation failed")
		} else {
			resp.Balance = &balance
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, resp)
	}
}

// GenerationStatus returns one of the caller's generation jobs.
func GenerationStatus(svc generation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid job id"))
			return
		}

		job, err := svc.Get(r.Context(), accountID, jobID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newGenerationJobResponse(job))
	}
}

// MusicHistory lists the caller's own tracks, private ones included.
func MusicHistory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
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

		tracks, meta, err := svc.ListByCreator(r.Context(), accountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trackListResponse{Tracks: tracks, Meta: meta})
	}
}

// GetTrack returns a single track; private tracks only for their creator.
func GetTrack(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trackID, err := uuid.Parse(chi.URLParam(r, "trackId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid track id"))
			return
		}

		track, err := svc.Get(r.Context(), accountID, trackID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, track)
	}
}

// PlayTrack bumps the play counter.
func PlayTrack(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return trackCounter(svc.RecordPlay, "played", logg)
}

// LikeTrack bumps the like counter.
func LikeTrack(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return trackCounter(svc.RecordLike, "liked", logg)
}

func trackCounter(bump func(ctx context.Context, trackID uuid.UUID) error, field string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trackID, err := uuid.Parse(chi.URLParam(r, "trackId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid track id"))
			return
		}

		if err := bump(r.Context(), trackID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{field: true})
	}
}

func accountFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing")
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid account context")
	}
	return accountID, nil
}
