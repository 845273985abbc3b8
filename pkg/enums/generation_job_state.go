package enums

import "fmt"

// GenerationJobState describes the allowed values for the `state` column in generation_jobs.
type GenerationJobState string

const (
	GenerationJobStateReserved        GenerationJobState = "reserved"
	GenerationJobStateProviderCalling GenerationJobState = "provider_calling"
	GenerationJobStateCompleted       GenerationJobState = "completed"
	GenerationJobStateFailedRefunded  GenerationJobState = "failed_refunded"
)

var validGenerationJobStates = []GenerationJobState{
	GenerationJobStateReserved,
	GenerationJobStateProviderCalling,
	GenerationJobStateCompleted,
	GenerationJobStateFailedRefunded,
}

// IsValid reports whether the value matches the canonical generation job state enum.
func (s GenerationJobState) IsValid() bool {
	for _, candidate := range validGenerationJobStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the job can no longer transition.
func (s GenerationJobState) IsTerminal() bool {
	return s == GenerationJobStateCompleted || s == GenerationJobStateFailedRefunded
}

// ParseGenerationJobState converts the raw string to GenerationJobState.
func ParseGenerationJobState(value string) (GenerationJobState, error) {
	for _, candidate := range validGenerationJobStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid generation job state %q", value)
}
