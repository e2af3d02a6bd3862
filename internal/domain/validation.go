package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxLedgerNameLength  = 255
	MinLedgerNameLength  = 1
	MaxDescriptionLength = 200
)

// ValidateLedgerName validates a ledger name.
func ValidateLedgerName(name string) error {
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) < MinLedgerNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidLedgerName)
	}

	if utf8.RuneCountInString(name) > MaxLedgerNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidLedgerName, MaxLedgerNameLength)
	}

	return nil
}

// ValidateDescription limits entry descriptions to MaxDescriptionLength characters.
func ValidateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return fmt.Errorf("%w: %d characters, limit is %d", ErrDescriptionTooLong, n, MaxDescriptionLength)
	}
	return nil
}

// ValidateAmount accepts any positive amount. Amounts are arbitrary
// precision decimals, so there is no upper bound.
func ValidateAmount(amount Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
