package dto

import (
	"time"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// LedgerResponse represents a ledger in API responses.
type LedgerResponse struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	OpenedDate     string         `json:"opened_date"`
	Balance        domain.Amount  `json:"balance"`
	BalanceDisplay string         `json:"balance_display"`
	Version        int64          `json:"version"`
	EntryCount     int            `json:"entry_count"`
	LastEntry      *EntryResponse `json:"last_entry,omitempty"`
}

// LedgerFromDomain converts a domain ledger to a response. Balances are
// rendered in currency for display only.
func LedgerFromDomain(l *domain.Ledger, currency string) *LedgerResponse {
	resp := &LedgerResponse{
		ID:             l.ID(),
		Name:           l.Name(),
		OpenedDate:     l.OpenedDate().Format(domain.DateLayout),
		Balance:        l.CurrentBalance(),
		BalanceDisplay: l.CurrentBalance().Display(currency),
		Version:        l.Version(),
		EntryCount:     l.EntryCount(),
	}
	if e, ok := l.LastEntry(); ok {
		resp.LastEntry = EntryFromDomain(e)
	}
	return resp
}

// LedgersFromDomain converts domain ledgers to responses.
func LedgersFromDomain(ledgers []*domain.Ledger, currency string) []*LedgerResponse {
	result := make([]*LedgerResponse, len(ledgers))
	for i, l := range ledgers {
		result[i] = LedgerFromDomain(l, currency)
	}
	return result
}

// ListLedgersResponse is a page of ledgers.
type ListLedgersResponse struct {
	Ledgers []*LedgerResponse `json:"ledgers"`
	Total   int64             `json:"total"`
}

// EntryResponse represents an entry in API responses.
type EntryResponse struct {
	ID          string           `json:"id"`
	LedgerID    string           `json:"ledger_id"`
	Kind        domain.EntryKind `json:"kind"`
	Amount      domain.Amount    `json:"amount"`
	Description string           `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		LedgerID:    e.LedgerID,
		Kind:        e.Kind,
		Amount:      e.Amount,
		Description: e.Description,
		Timestamp:   e.Timestamp,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []domain.Entry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ReportResponse represents a report in API responses.
type ReportResponse struct {
	ID           string           `json:"id"`
	Scope        string           `json:"scope"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	TotalCredits domain.Amount    `json:"total_credits"`
	TotalDebits  domain.Amount    `json:"total_debits"`
	FinalBalance domain.Amount    `json:"final_balance"`
	Currency     string           `json:"currency"`
	Entries      []*EntryResponse `json:"entries"`
	Fingerprint  string           `json:"fingerprint"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ReportFromDomain converts a domain report to a response.
func ReportFromDomain(r domain.Report, currency string) *ReportResponse {
	return &ReportResponse{
		ID:           r.ID,
		Scope:        r.Scope,
		StartDate:    r.StartDate.Format(domain.DateLayout),
		EndDate:      r.EndDate.Format(domain.DateLayout),
		TotalCredits: r.TotalCredits,
		TotalDebits:  r.TotalDebits,
		FinalBalance: r.FinalBalance,
		Currency:     currency,
		Entries:      EntriesFromDomain(r.Entries),
		Fingerprint:  r.Fingerprint,
		CreatedAt:    r.CreatedAt,
	}
}

// ReportsFromDomain converts domain reports to responses.
func ReportsFromDomain(reports []domain.Report, currency string) []*ReportResponse {
	result := make([]*ReportResponse, len(reports))
	for i, r := range reports {
		result[i] = ReportFromDomain(r, currency)
	}
	return result
}

// ConsolidationResponse is the outcome of a manual consolidation.
type ConsolidationResponse struct {
	Date     string            `json:"date"`
	Inserted int               `json:"inserted"`
	Reports  []*ReportResponse `json:"reports"`
}

// ConsolidationFromResult converts a consolidation result to a response.
func ConsolidationFromResult(res *usecase.ConsolidationResult, currency string) *ConsolidationResponse {
	return &ConsolidationResponse{
		Date:     res.Date.Format(domain.DateLayout),
		Inserted: res.Inserted,
		Reports:  ReportsFromDomain(res.Reports, currency),
	}
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
