package generation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pumpmusic/backend/pkg/enums"
)

// ErrResultUnknown is returned by Lookup when the provider holds no
// recoverable result for the job; the sweep then reverses the reservation.
var ErrResultUnknown = errors.New("no provider result for job")

// GenerateRequest carries everything the provider needs. JobID doubles as the
// provider-side idempotency key so a retried call cannot produce two tracks.
type GenerateRequest struct {
	JobID  uuid.UUID
	Prompt string
	Title  string
	Genre  enums.Genre
	Mood   enums.Mood
}

// Artifact is the provider's finished output.
type Artifact struct {
	AudioURL        string
	DurationSeconds int
}

// Provider abstracts the external music generation capability so the
// coordinator can be exercised against a fake without real I/O.
type Provider interface {
	// Generate produces an artifact or fails. Implementations must respect
	// ctx cancellation; the coordinator applies the configured timeout.
	Generate(ctx context.Context, req GenerateRequest) (*Artifact, error)

	// Lookup recovers the result of a previously submitted job, keyed by
	// JobID. Returns ErrResultUnknown when nothing is recoverable.
	Lookup(ctx context.Context, jobID uuid.UUID) (*Artifact, error)
}
