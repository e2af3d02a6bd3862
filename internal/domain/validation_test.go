package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateLedgerName(t *testing.T) {
	t.Parallel()

	t.Run("valid name", func(t *testing.T) {
		if err := ValidateLedgerName("Loja Centro"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("empty name rejected", func(t *testing.T) {
		err := ValidateLedgerName("   ")
		if !errors.Is(err, ErrInvalidLedgerName) {
			t.Fatalf("expected ErrInvalidLedgerName, got %v", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		tooLong := strings.Repeat("a", MaxLedgerNameLength+1)
		err := ValidateLedgerName(tooLong)
		if !errors.Is(err, ErrInvalidLedgerName) {
			t.Fatalf("expected ErrInvalidLedgerName, got %v", err)
		}
	})

	t.Run("multibyte name counted by characters", func(t *testing.T) {
		name := strings.Repeat("ç", MaxLedgerNameLength)
		if err := ValidateLedgerName(name); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}

func TestValidateDescription(t *testing.T) {
	t.Parallel()

	if err := ValidateDescription(""); err != nil {
		t.Fatalf("expected empty description to pass, got %v", err)
	}

	if err := ValidateDescription(strings.Repeat("x", MaxDescriptionLength)); err != nil {
		t.Fatalf("expected description at limit to pass, got %v", err)
	}

	err := ValidateDescription(strings.Repeat("x", MaxDescriptionLength+1))
	if !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	if err := ValidateAmount(MustParseAmount("100.25")); err != nil {
		t.Fatalf("expected valid amount, got %v", err)
	}

	if err := ValidateAmount(ZeroAmount); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}

	if err := ValidateAmount(MustParseAmount("-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}

	huge := MustParseAmount("1000000000000000000000.01")
	if err := ValidateAmount(huge); err != nil {
		t.Fatalf("expected large positive amount to be valid, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset := ValidatePagination(0, -5)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, offset = ValidatePagination(5000, 10)
	if limit != 1000 || offset != 10 {
		t.Fatalf("expected clamped 1000/10, got %d/%d", limit, offset)
	}
}
