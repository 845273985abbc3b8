package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateTrack         OutboxAggregateType = "track"
	AggregateGenerationJob OutboxAggregateType = "generation_job"
	AggregateLedgerEntry   OutboxAggregateType = "ledger_entry"
	AggregateAccount       OutboxAggregateType = "account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTrack,
	AggregateGenerationJob,
	AggregateLedgerEntry,
	AggregateAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventTrackPublished      OutboxEventType = "track_published"
	EventGenerationCompleted OutboxEventType = "generation_completed"
	EventGenerationRefunded  OutboxEventType = "generation_refunded"
	EventTokensPurchased     OutboxEventType = "tokens_purchased"
	EventAccountProvisioned  OutboxEventType = "account_provisioned"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTrackPublished,
	EventGenerationCompleted,
	EventGenerationRefunded,
	EventTokensPurchased,
	EventAccountProvisioned,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
