package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

func TestLedgerFromDomain(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	l, err := domain.NewLedger("Loja", at,
		domain.WithClock(func() time.Time { return at }),
		domain.WithIDGenerator(func() string { return "ID1" }))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if _, err := l.AddCredit(domain.MustParseAmount("1234.5"), "opening"); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	resp := LedgerFromDomain(l, "USD")
	if resp.ID != "ID1" || resp.OpenedDate != "2024-03-10" || resp.EntryCount != 1 {
		t.Fatalf("unexpected ledger response: %+v", resp)
	}
	if resp.BalanceDisplay != "$1,234.50" {
		t.Fatalf("expected display $1,234.50, got %s", resp.BalanceDisplay)
	}
	if resp.LastEntry == nil || resp.LastEntry.Description != "opening" {
		t.Fatalf("expected last entry, got %+v", resp.LastEntry)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["balance"] != "1234.5" {
		t.Fatalf("expected balance as a string literal, got %v", decoded["balance"])
	}
}

func TestConsolidationFromResult(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	r := domain.Report{
		ID:           "R1",
		Scope:        domain.ScopeAll,
		StartDate:    day,
		EndDate:      day,
		TotalCredits: domain.MustParseAmount("100"),
		TotalDebits:  domain.MustParseAmount("30"),
		FinalBalance: domain.MustParseAmount("70"),
	}

	resp := ConsolidationFromResult(&usecase.ConsolidationResult{Date: day, Reports: []domain.Report{r}, Inserted: 1}, "EUR")
	if resp.Date != "2024-03-10" || resp.Inserted != 1 || len(resp.Reports) != 1 {
		t.Fatalf("unexpected consolidation response: %+v", resp)
	}
	rep := resp.Reports[0]
	if rep.StartDate != "2024-03-10" || rep.Currency != "EUR" || !rep.FinalBalance.Equal(domain.MustParseAmount("70")) {
		t.Fatalf("unexpected report response: %+v", rep)
	}
	if rep.Entries == nil {
		t.Fatalf("expected empty entries slice, not nil")
	}
}
