package dto

import (
	"encoding/json"
	"testing"

	"github.com/iho/cashflow/internal/domain"
)

func TestRegisterLedgerRequest_ToUseCaseInput(t *testing.T) {
	var req RegisterLedgerRequest
	if err := json.Unmarshal([]byte(`{"name":"Loja","initial_credit":"100.50","description":"opening"}`), &req); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	got := req.ToUseCaseInput()
	if got.Name != "Loja" || got.Description != "opening" {
		t.Fatalf("unexpected input: %+v", got)
	}
	if got.InitialCredit == nil || !got.InitialCredit.Equal(domain.MustParseAmount("100.50")) {
		t.Fatalf("expected initial credit 100.50, got %v", got.InitialCredit)
	}
}

func TestRegisterLedgerRequest_WithoutCredit(t *testing.T) {
	var req RegisterLedgerRequest
	if err := json.Unmarshal([]byte(`{"name":"Loja"}`), &req); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if req.ToUseCaseInput().InitialCredit != nil {
		t.Fatalf("expected no initial credit")
	}
}

func TestEntryRequest_ToUseCaseInput(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantErr   bool
		wantValue string
	}{
		{name: "quoted amount", body: `{"amount":"12.34","description":"sale"}`, wantValue: "12.34"},
		{name: "bare amount", body: `{"amount":7.5,"description":"sale"}`, wantValue: "7.5"},
		{name: "invalid amount", body: `{"amount":"abc"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req EntryRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}

			got := req.ToUseCaseInput("L1")
			if got.LedgerID != "L1" || got.Description != "sale" {
				t.Fatalf("unexpected input: %+v", got)
			}
			if !got.Amount.Equal(domain.MustParseAmount(tt.wantValue)) {
				t.Fatalf("expected amount %s, got %s", tt.wantValue, got.Amount)
			}
		})
	}
}

func TestConsolidateRequest_Day(t *testing.T) {
	req := ConsolidateRequest{Date: "2024-03-10"}
	day, err := req.Day()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if day.Format(domain.DateLayout) != "2024-03-10" {
		t.Fatalf("unexpected day %s", day)
	}

	req.Date = "10/03/2024"
	if _, err := req.Day(); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}
