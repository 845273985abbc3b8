package enums

import "fmt"

// LedgerEntryState describes the allowed values for the `status` column in ledger_entries.
// Only pending -> settled and pending -> reversed transitions are legal.
type LedgerEntryState string

const (
	LedgerEntryStatePending  LedgerEntryState = "pending"
	LedgerEntryStateSettled  LedgerEntryState = "settled"
	LedgerEntryStateReversed LedgerEntryState = "reversed"
)

var validLedgerEntryStates = []LedgerEntryState{
	LedgerEntryStatePending,
	LedgerEntryStateSettled,
	LedgerEntryStateReversed,
}

// IsValid reports whether the value matches the canonical ledger entry status enum.
func (s LedgerEntryState) IsValid() bool {
	for _, candidate := range validLedgerEntryStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the target state is reachable from s.
func (s LedgerEntryState) CanTransitionTo(target LedgerEntryState) bool {
	if s != LedgerEntryStatePending {
		return false
	}
	return target == LedgerEntryStateSettled || target == LedgerEntryStateReversed
}

// ParseLedgerEntryState converts the raw string to LedgerEntryState.
func ParseLedgerEntryState(value string) (LedgerEntryState, error) {
	for _, candidate := range validLedgerEntryStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
