package cron

import (
	"context"
	"fmt"

	"github.com/pumpmusic/backend/pkg/logger"
)

// GenerationRecoveryJobParams configure the stuck-job sweep.
type GenerationRecoveryJobParams struct {
	Logger  *logger.Logger
	Sweeper generationSweeper
}

type generationSweeper interface {
	SweepStuck(ctx context.Context) (int, error)
}

// NewGenerationRecoveryJob builds the job that resolves generations
// abandoned mid provider call.
func NewGenerationRecoveryJob(params GenerationRecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("generation service required")
	}
	return &generationRecoveryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
	}, nil
}

type generationRecoveryJob struct {
	logg    *logger.Logger
	sweeper generationSweeper
}

func (j *generationRecoveryJob) Name() string { return "generation-recovery" }

func (j *generationRecoveryJob) Run(ctx context.Context) error {
	resolved, err := j.sweeper.SweepStuck(ctx)
	if err != nil {
		return fmt.Errorf("generation recovery: %w", err)
	}
	if resolved > 0 {
		logCtx := j.logg.WithField(ctx, "jobs_resolved", resolved)
		j.logg.Info(logCtx, "stuck generations resolved")
	}
	return nil
}
