package dto

import (
	"time"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// RegisterLedgerRequest represents a request to open a ledger.
type RegisterLedgerRequest struct {
	Name          string         `json:"name"`
	InitialCredit *domain.Amount `json:"initial_credit,omitempty"`
	Description   string         `json:"description,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RegisterLedgerRequest) ToUseCaseInput() usecase.RegisterLedgerInput {
	return usecase.RegisterLedgerInput{
		Name:          r.Name,
		InitialCredit: r.InitialCredit,
		Description:   r.Description,
	}
}

// EntryRequest represents a credit or a debit.
type EntryRequest struct {
	Amount      domain.Amount `json:"amount"`
	Description string        `json:"description"`
}

// ToUseCaseInput converts to use case input.
func (r *EntryRequest) ToUseCaseInput(ledgerID string) usecase.AppendEntryInput {
	return usecase.AppendEntryInput{
		LedgerID:    ledgerID,
		Amount:      r.Amount,
		Description: r.Description,
	}
}

// RenameLedgerRequest represents a request to rename a ledger.
type RenameLedgerRequest struct {
	Name string `json:"name"`
}

// ConsolidateRequest asks for an immediate consolidation of one day.
type ConsolidateRequest struct {
	Date string `json:"date"`
}

// Day parses the requested date.
func (r *ConsolidateRequest) Day() (time.Time, error) {
	return domain.ParseDay(r.Date)
}
