package enums

import "fmt"

// LedgerEntryKind describes the allowed values for the `kind` column in ledger_entries.
type LedgerEntryKind string

const (
	LedgerEntryKindPurchase LedgerEntryKind = "purchase"
	LedgerEntryKindUsage    LedgerEntryKind = "usage"
	LedgerEntryKindReward   LedgerEntryKind = "reward"
	LedgerEntryKindRefund   LedgerEntryKind = "refund"
)

var validLedgerEntryKinds = []LedgerEntryKind{
	LedgerEntryKindPurchase,
	LedgerEntryKindUsage,
	LedgerEntryKindReward,
	LedgerEntryKindRefund,
}

// IsValid reports whether the value matches the canonical ledger entry kind enum.
func (k LedgerEntryKind) IsValid() bool {
	for _, candidate := range validLedgerEntryKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerEntryKind converts the raw string to LedgerEntryKind.
func ParseLedgerEntryKind(value string) (LedgerEntryKind, error) {
	for _, candidate := range validLedgerEntryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry kind %q", value)
}
