package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

type ledgerServiceStub struct {
	registerFn func(ctx context.Context, input usecase.RegisterLedgerInput) (*domain.Ledger, error)
	creditFn   func(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error)
	debitFn    func(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error)
	renameFn   func(ctx context.Context, id, name string) (*domain.Ledger, error)
	deleteFn   func(ctx context.Context, id string) error
	getFn      func(ctx context.Context, id string) (*domain.Ledger, error)
	listFn     func(ctx context.Context, input usecase.ListLedgersInput) ([]*domain.Ledger, error)
	entriesFn  func(ctx context.Context, id string, date time.Time) ([]domain.Entry, error)
}

func (s *ledgerServiceStub) RegisterLedger(ctx context.Context, input usecase.RegisterLedgerInput) (*domain.Ledger, error) {
	return s.registerFn(ctx, input)
}

func (s *ledgerServiceStub) Credit(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error) {
	return s.creditFn(ctx, input)
}

func (s *ledgerServiceStub) Debit(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error) {
	return s.debitFn(ctx, input)
}

func (s *ledgerServiceStub) RenameLedger(ctx context.Context, id, name string) (*domain.Ledger, error) {
	return s.renameFn(ctx, id, name)
}

func (s *ledgerServiceStub) DeleteLedger(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func (s *ledgerServiceStub) GetLedger(ctx context.Context, id string) (*domain.Ledger, error) {
	return s.getFn(ctx, id)
}

func (s *ledgerServiceStub) ListLedgers(ctx context.Context, input usecase.ListLedgersInput) ([]*domain.Ledger, error) {
	return s.listFn(ctx, input)
}

func (s *ledgerServiceStub) EntriesByDate(ctx context.Context, id string, date time.Time) ([]domain.Entry, error) {
	return s.entriesFn(ctx, id, date)
}

var testNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func testLedger(t *testing.T, name string) *domain.Ledger {
	t.Helper()
	n := 0
	l, err := domain.NewLedger(name, testNow,
		domain.WithClock(func() time.Time { return testNow }),
		domain.WithIDGenerator(func() string { n++; return fmt.Sprintf("ID%d", n) }))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

// serve routes a single request through a chi router so URL params resolve.
func serve(method, pattern, target string, body io.Reader, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, body))
	return rec
}

func TestLedgerHandler_Register_Success(t *testing.T) {
	var captured usecase.RegisterLedgerInput
	h := NewLedgerHandler(&ledgerServiceStub{
		registerFn: func(ctx context.Context, input usecase.RegisterLedgerInput) (*domain.Ledger, error) {
			captured = input
			l := testLedger(t, input.Name)
			if _, err := l.AddCredit(*input.InitialCredit, input.Description); err != nil {
				return nil, err
			}
			return l, nil
		},
	}, "USD")

	rec := serve(http.MethodPost, "/ledgers", "/ledgers",
		strings.NewReader(`{"name":"Loja","initial_credit":"100","description":"opening"}`), h.Register)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.Name != "Loja" || captured.InitialCredit == nil {
		t.Fatalf("expected input to match request, got %+v", captured)
	}

	var resp dto.LedgerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Name != "Loja" || !resp.Balance.Equal(domain.MustParseAmount("100")) || resp.BalanceDisplay != "$100.00" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestLedgerHandler_Register_InvalidBody(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{}, "USD")

	rec := serve(http.MethodPost, "/ledgers", "/ledgers", strings.NewReader(`{`), h.Register)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLedgerHandler_Register_InvalidName(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{
		registerFn: func(ctx context.Context, input usecase.RegisterLedgerInput) (*domain.Ledger, error) {
			return nil, domain.ErrInvalidLedgerName
		},
	}, "USD")

	rec := serve(http.MethodPost, "/ledgers", "/ledgers", strings.NewReader(`{"name":""}`), h.Register)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLedgerHandler_Get_NotFound(t *testing.T) {
	var gotID string
	h := NewLedgerHandler(&ledgerServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Ledger, error) {
			gotID = id
			return nil, domain.ErrLedgerNotFound
		},
	}, "USD")

	rec := serve(http.MethodGet, "/ledgers/{id}", "/ledgers/L404", nil, h.Get)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if gotID != "L404" {
		t.Fatalf("expected id from path, got %q", gotID)
	}
}

func TestLedgerHandler_List_Pagination(t *testing.T) {
	var captured usecase.ListLedgersInput
	h := NewLedgerHandler(&ledgerServiceStub{
		listFn: func(ctx context.Context, input usecase.ListLedgersInput) ([]*domain.Ledger, error) {
			captured = input
			return []*domain.Ledger{testLedger(t, "A"), testLedger(t, "B")}, nil
		},
	}, "USD")

	rec := serve(http.MethodGet, "/ledgers", "/ledgers?limit=5&offset=10", nil, h.List)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if captured.Limit != 5 || captured.Offset != 10 {
		t.Fatalf("unexpected pagination %+v", captured)
	}

	var resp dto.ListLedgersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Ledgers) != 2 {
		t.Fatalf("unexpected list %+v", resp)
	}
}

func TestLedgerHandler_Rename(t *testing.T) {
	h := NewLedgerHandler(&ledgerServiceStub{
		renameFn: func(ctx context.Context, id, name string) (*domain.Ledger, error) {
			return testLedger(t, name), nil
		},
	}, "USD")

	rec := serve(http.MethodPatch, "/ledgers/{id}", "/ledgers/L1", strings.NewReader(`{"name":"Matriz"}`), h.Rename)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"name":"Matriz"`) {
		t.Fatalf("expected new name in body, got %s", rec.Body.String())
	}
}

func TestLedgerHandler_Delete(t *testing.T) {
	var deleted string
	h := NewLedgerHandler(&ledgerServiceStub{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}, "USD")

	rec := serve(http.MethodDelete, "/ledgers/{id}", "/ledgers/L1", nil, h.Delete)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if deleted != "L1" {
		t.Fatalf("expected L1 deleted, got %q", deleted)
	}
}

func TestLedgerHandler_Credit(t *testing.T) {
	var captured usecase.AppendEntryInput
	h := NewLedgerHandler(&ledgerServiceStub{
		creditFn: func(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error) {
			captured = input
			return domain.NewEntry("E1", input.LedgerID, domain.EntryKindCredit, input.Amount, input.Description, testNow)
		},
	}, "USD")

	rec := serve(http.MethodPost, "/ledgers/{id}/credits", "/ledgers/L1/credits",
		strings.NewReader(`{"amount":"25.10","description":"sale"}`), h.Credit)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.LedgerID != "L1" || !captured.Amount.Equal(domain.MustParseAmount("25.10")) {
		t.Fatalf("unexpected input %+v", captured)
	}

	var resp dto.EntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Kind != domain.EntryKindCredit || resp.ID != "E1" {
		t.Fatalf("unexpected entry %+v", resp)
	}
}

func TestLedgerHandler_Debit_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusBadRequest},
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"not found", domain.ErrLedgerNotFound, http.StatusNotFound},
		{"conflict", domain.ErrConcurrentUpdate, http.StatusConflict},
		{"store down", domain.ErrTransientStoreFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewLedgerHandler(&ledgerServiceStub{
				debitFn: func(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error) {
					return domain.Entry{}, tt.err
				},
			}, "USD")

			rec := serve(http.MethodPost, "/ledgers/{id}/debits", "/ledgers/L1/debits",
				strings.NewReader(`{"amount":"5","description":"fee"}`), h.Debit)
			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestLedgerHandler_Entries(t *testing.T) {
	var gotDate time.Time
	h := NewLedgerHandler(&ledgerServiceStub{
		entriesFn: func(ctx context.Context, id string, date time.Time) ([]domain.Entry, error) {
			gotDate = date
			return nil, nil
		},
	}, "USD")

	rec := serve(http.MethodGet, "/ledgers/{id}/entries", "/ledgers/L1/entries?date=2024-03-10", nil, h.Entries)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotDate.Format(domain.DateLayout) != "2024-03-10" {
		t.Fatalf("unexpected date %s", gotDate)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rec.Body.String())
	}

	rec = serve(http.MethodGet, "/ledgers/{id}/entries", "/ledgers/L1/entries", nil, h.Entries)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without date, got %d", rec.Code)
	}
}
