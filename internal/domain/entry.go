package domain

import (
	"fmt"
	"time"
)

// EntryKind tags an entry as a credit or a debit.
type EntryKind string

const (
	EntryKindCredit EntryKind = "credit"
	EntryKindDebit  EntryKind = "debit"
)

// Valid reports whether k is a known kind.
func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindCredit, EntryKindDebit:
		return true
	default:
		return false
	}
}

// Entry is an immutable credit or debit fact owned by exactly one ledger.
type Entry struct {
	ID          string    `json:"id"`
	LedgerID    string    `json:"ledger_id"`
	Kind        EntryKind `json:"kind"`
	Amount      Amount    `json:"amount"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEntry validates and builds an entry. The amount must be positive.
func NewEntry(id, ledgerID string, kind EntryKind, amount Amount, description string, at time.Time) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownEntryKind, kind)
	}
	if err := ValidateAmount(amount); err != nil {
		return Entry{}, err
	}
	if err := ValidateDescription(description); err != nil {
		return Entry{}, err
	}

	return Entry{
		ID:          id,
		LedgerID:    ledgerID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		Timestamp:   at.UTC(),
	}, nil
}

// Signed returns the entry's effect on a balance: +amount for credits,
// -amount for debits.
func (e Entry) Signed() (Amount, error) {
	switch e.Kind {
	case EntryKindCredit:
		return e.Amount, nil
	case EntryKindDebit:
		return e.Amount.Neg(), nil
	default:
		return Amount{}, fmt.Errorf("%w: %q", ErrUnknownEntryKind, e.Kind)
	}
}

// Date returns the UTC calendar day the entry was recorded on.
func (e Entry) Date() time.Time {
	return Day(e.Timestamp)
}
