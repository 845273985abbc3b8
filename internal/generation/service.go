package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pumpmusic/backend/internal/catalog"
	"github.com/pumpmusic/backend/internal/ledger"
	"github.com/pumpmusic/backend/pkg/config"
	"github.com/pumpmusic/backend/pkg/db"
	"github.com/pumpmusic/backend/pkg/db/models"
	"github.com/pumpmusic/backend/pkg/enums"
	pkgerrors "github.com/pumpmusic/backend/pkg/errors"
	"github.com/pumpmusic/backend/pkg/logger"
	"github.com/pumpmusic/backend/pkg/metrics"
	"github.com/pumpmusic/backend/pkg/outbox"
)

// tokenCost is the metered price of one generation.
const tokenCost = 1

// idempotencyScope namespaces generation keys in the cache.
const idempotencyScope = "generation"

// Service coordinates the reserve -> provider -> settle/reverse pipeline.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.GenerationJob, error)
	Get(ctx context.Context, accountID, jobID uuid.UUID) (*models.GenerationJob, error)
	SweepStuck(ctx context.Context) (int, error)
}

// SubmitInput is one validated generation request.
type SubmitInput struct {
	AccountID      uuid.UUID
	Prompt         string
	Title          string
	Genre          string
	Mood           string
	IsPublic       bool
	IdempotencyKey string
}

type idempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IdempotencyKey(scope, id string) string
}

type service struct {
	jobs      Repository
	guard     ledger.Guard
	tracks    catalog.Repository
	dbClient  *db.Client
	provider  Provider
	cache     idempotencyStore
	outboxSvc *outbox.Service
	metrics   *metrics.GenerationMetrics
	logg      *logger.Logger
	cfg       config.GenerationConfig
}

// ServiceParams wires the generation coordinator dependencies.
type ServiceParams struct {
	Jobs     Repository
	Guard    ledger.Guard
	Tracks   catalog.Repository
	DBClient *db.Client
	Provider Provider
	Cache    idempotencyStore
	Outbox   *outbox.Service
	Metrics  *metrics.GenerationMetrics
	Logger   *logger.Logger
	Config   config.GenerationConfig
}

// NewService constructs the generation coordinator.
func NewService(params ServiceParams) (Service, error) {
	if params.Jobs == nil {
		return nil, fmt.Errorf("generation repository required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("balance guard required")
	}
	if params.Tracks == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.DBClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("provider required")
	}
	if params.Config.ProviderTimeout <= 0 {
		return nil, fmt.Errorf("provider timeout must be positive")
	}
	return &service{
		jobs:      params.Jobs,
		guard:     params.Guard,
		tracks:    params.Tracks,
		dbClient:  params.DBClient,
		provider:  params.Provider,
		cache:     params.Cache,
		outboxSvc: params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       params.Config,
	}, nil
}

// Submit runs one generation end to end: reserve a token, call the provider,
// then settle or reverse. A retried call with the same idempotency key
// returns the already accepted job instead of charging again.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.GenerationJob, error) {
	parsed, err := s.validate(input)
	if err != nil {
		return nil, err
	}

	if existing, err := s.findExisting(ctx, input.AccountID, parsed.idemKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	jobID := uuid.New()

	entry, err := s.guard.Reserve(ctx, ledger.ReserveInput{
		AccountID: input.AccountID,
		Amount:    tokenCost,
		Reference: jobID.String(),
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeInsufficientBalance {
			s.metrics.IncInsufficientBalance()
		}
		return nil, err
	}

	job := &models.GenerationJob{
		ID:            jobID,
		AccountID:     input.AccountID,
		Prompt:        parsed.prompt,
		Title:         parsed.title,
		Genre:         parsed.genre,
		Mood:          parsed.mood,
		IsPublic:      input.IsPublic,
		LedgerEntryID: entry.ID,
		State:         enums.GenerationJobStateReserved,
	}
	if parsed.idemKey != "" {
		job.IdempotencyKey = &parsed.idemKey
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if db.IsUniqueViolation(err, "ux_generation_jobs_account_idem") {
			// a concurrent retry with the same key won; release this hold
			if _, reverseErr := s.guard.Reverse(context.WithoutCancel(ctx), entry.ID, "duplicate submit"); reverseErr != nil {
				return nil, multierr.Append(err, reverseErr)
			}
			return s.findExisting(ctx, input.AccountID, parsed.idemKey)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create generation job")
	}

	s.rememberJob(ctx, input.AccountID, parsed.idemKey, jobID)

	return s.run(ctx, job)
}

// run drives an accepted job through the provider and into a terminal state.
func (s *service) run(ctx context.Context, job *models.GenerationJob) (*models.GenerationJob, error) {
	now := time.Now()
	moved, err := s.jobs.TransitionState(ctx, job.ID, enums.GenerationJobStateReserved, enums.GenerationJobStateProviderCalling, map[string]any{
		"provider_started_at": now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark provider call")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "job was picked up elsewhere")
	}
	job.State = enums.GenerationJobStateProviderCalling
	job.ProviderStartedAt = &now

	providerCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	started := time.Now()
	artifact, err := s.provider.Generate(providerCtx, GenerateRequest{
		JobID:  job.ID,
		Prompt: job.Prompt,
		Title:  job.Title,
		Genre:  job.Genre,
		Mood:   job.Mood,
	})
	s.metrics.ObserveProviderDuration(time.Since(started))

	// bookkeeping must finish even when the caller goes away mid-request
	bctx := context.WithoutCancel(ctx)

	if err != nil {
		if failErr := s.fail(bctx, job, err.Error()); failErr != nil {
			return nil, failErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGenerationFailed, err, "music generation failed; your token was refunded")
	}

	if err := s.complete(bctx, job, artifact); err != nil {
		return nil, err
	}
	return job, nil
}

// complete settles the reservation and publishes the artifact. Settlement is
// idempotent, so a crash between settle and the catalog write is repaired by
// the recovery sweep re-running this path.
func (s *service) complete(ctx context.Context, job *models.GenerationJob, artifact *Artifact) error {
	if artifact == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider returned no artifact")
	}

	if err := s.guard.Settle(ctx, job.LedgerEntryID); err != nil {
		return err
	}

	track := &models.Track{
		ID:              uuid.New(),
		CreatorID:       job.AccountID,
		Title:           job.Title,
		Prompt:          job.Prompt,
		AudioURL:        artifact.AudioURL,
		DurationSeconds: artifact.DurationSeconds,
		Genre:           job.Genre,
		Mood:            job.Mood,
		IsPublic:        job.IsPublic,
		Tags:            catalog.JoinTags(catalog.ExtractTags(job.Prompt)),
	}

	resolved := false
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.jobs.WithTx(tx).TransitionState(ctx, job.ID, job.State, enums.GenerationJobStateCompleted, map[string]any{
			"track_id": track.ID,
		})
		if err != nil {
			return err
		}
		if !moved {
			// another worker finished this job; keep its track
			return nil
		}
		resolved = true

		if err := s.tracks.WithTx(tx).Create(ctx, track); err != nil {
			return err
		}

		if s.outboxSvc != nil {
			events := []outbox.DomainEvent{{
				EventType:     enums.EventGenerationCompleted,
				AggregateType: enums.AggregateGenerationJob,
				AggregateID:   job.ID,
				Actor:         &outbox.ActorRef{AccountID: job.AccountID},
				Data: map[string]any{
					"jobId":   job.ID.String(),
					"trackId": track.ID.String(),
				},
				Version: 1,
			}}
			if track.IsPublic {
				events = append(events, outbox.DomainEvent{
					EventType:     enums.EventTrackPublished,
					AggregateType: enums.AggregateTrack,
					AggregateID:   track.ID,
					Actor:         &outbox.ActorRef{AccountID: job.AccountID},
					Data: map[string]any{
						"trackId": track.ID.String(),
						"title":   track.Title,
					},
					Version: 1,
				})
			}
			for _, event := range events {
				if err := s.outboxSvc.Emit(ctx, tx, event); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize generation")
	}

	if resolved {
		job.State = enums.GenerationJobStateCompleted
		job.TrackID = &track.ID
		s.metrics.IncOutcome(string(enums.GenerationJobStateCompleted))
		if s.logg != nil {
			s.logg.Info(s.logg.WithJobID(ctx, job.ID.String()), "generation completed")
		}
	} else {
		refreshed, err := s.jobs.FindByID(ctx, job.ID)
		if err == nil && refreshed != nil {
			*job = *refreshed
		}
	}
	return nil
}

// fail reverses the reservation first, then records the terminal state. A
// crash in between leaves the job in provider_calling for the sweep, which
// tolerates the already-reversed entry. An already-settled entry means the
// charge stood, so the job must not be marked refunded.
func (s *service) fail(ctx context.Context, job *models.GenerationJob, reason string) error {
	if _, err := s.guard.Reverse(ctx, job.LedgerEntryID, reason); err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			return err
		}
		entry, entryErr := s.guard.Entry(ctx, job.LedgerEntryID)
		if entryErr != nil {
			return entryErr
		}
		if entry.Status == enums.LedgerEntryStateSettled {
			// a crash after settle left the completion unfinished; keep the
			// job recoverable so a later sweep can finish it
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation already settled; awaiting artifact recovery")
		}
		// entry already reversed; carry on and finalize the job
	}

	trimmed := reason
	if len(trimmed) > 500 {
		trimmed = trimmed[:500]
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.jobs.WithTx(tx).TransitionState(ctx, job.ID, job.State, enums.GenerationJobStateFailedRefunded, map[string]any{
			"failure_reason": trimmed,
		})
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}

		if s.outboxSvc != nil {
			event := outbox.DomainEvent{
				EventType:     enums.EventGenerationRefunded,
				AggregateType: enums.AggregateGenerationJob,
				AggregateID:   job.ID,
				Actor:         &outbox.ActorRef{AccountID: job.AccountID},
				Data: map[string]any{
					"jobId":  job.ID.String(),
					"reason": trimmed,
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
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize failed generation")
	}

	job.State = enums.GenerationJobStateFailedRefunded
	job.FailureReason = &trimmed
	s.metrics.IncOutcome(string(enums.GenerationJobStateFailedRefunded))
	if s.logg != nil {
		s.logg.Warn(s.logg.WithJobID(ctx, job.ID.String()), "generation failed and refunded")
	}
	return nil
}

func (s *service) Get(ctx context.Context, accountID, jobID uuid.UUID) (*models.GenerationJob, error) {
	if accountID == uuid.Nil || jobID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id and job id are required")
	}
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load job")
	}
	if job == nil || job.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "generation job not found")
	}
	return job, nil
}

// SweepStuck resolves jobs abandoned in provider_calling past the grace
// period: completed when the provider can hand back the artifact, reversed
// otherwise. Returns how many jobs reached a terminal state.
func (s *service) SweepStuck(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.SweepGrace)
	stuck, err := s.jobs.ListStuck(ctx, enums.GenerationJobStateProviderCalling, cutoff, 100)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stuck jobs")
	}

	resolved := 0
	var errs error
	for i := range stuck {
		job := stuck[i]
		artifact, lookupErr := s.provider.Lookup(ctx, job.ID)
		switch {
		case lookupErr == nil && artifact != nil:
			if err := s.complete(ctx, &job, artifact); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("job %s: %w", job.ID, err))
				continue
			}
		default:
			reason := "recovery sweep: provider result unavailable"
			if lookupErr != nil && lookupErr != ErrResultUnknown {
				reason = fmt.Sprintf("recovery sweep: %v", lookupErr)
			}
			if err := s.fail(ctx, &job, reason); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("job %s: %w", job.ID, err))
				continue
			}
		}
		resolved++
		s.metrics.IncSwept()
	}
	return resolved, errs
}

type parsedInput struct {
	prompt  string
	title   string
	genre   enums.Genre
	mood    enums.Mood
	idemKey string
}

func (s *service) validate(input SubmitInput) (parsedInput, error) {
	if input.AccountID == uuid.Nil {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}
	if len(prompt) > s.cfg.MaxPromptLen {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("prompt exceeds %d characters", s.cfg.MaxPromptLen))
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if len(title) > s.cfg.MaxTitleLen {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("title exceeds %d characters", s.cfg.MaxTitleLen))
	}

	genre, err := enums.ParseGenre(input.Genre)
	if err != nil {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	mood, err := enums.ParseMood(input.Mood)
	if err != nil {
		return parsedInput{}, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	return parsedInput{
		prompt:  prompt,
		title:   title,
		genre:   genre,
		mood:    mood,
		idemKey: strings.TrimSpace(input.IdempotencyKey),
	}, nil
}

// findExisting resolves a retried idempotency key to its original job. The
// cache is a fast path only; the unique index on (account_id,
// idempotency_key) is the authority.
func (s *service) findExisting(ctx context.Context, accountID uuid.UUID, idemKey string) (*models.GenerationJob, error) {
	if idemKey == "" {
		return nil, nil
	}

	if s.cache != nil {
		cacheKey := s.cache.IdempotencyKey(idempotencyScope, accountID.String()+":"+idemKey)
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			if jobID, parseErr := uuid.Parse(cached); parseErr == nil {
				job, err := s.jobs.FindByID(ctx, jobID)
				if err == nil && job != nil && job.AccountID == accountID {
					return job, nil
				}
			}
		}
	}

	job, err := s.jobs.FindByIdempotencyKey(ctx, accountID, idemKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency lookup")
	}
	return job, nil
}

func (s *service) rememberJob(ctx context.Context, accountID uuid.UUID, idemKey string, jobID uuid.UUID) {
	if s.cache == nil || idemKey == "" {
		return
	}
	cacheKey := s.cache.IdempotencyKey(idempotencyScope, accountID.String()+":"+idemKey)
	if err := s.cache.Set(ctx, cacheKey, jobID.String(), s.cfg.IdempotencyTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "idempotency cache write failed")
	}
}
