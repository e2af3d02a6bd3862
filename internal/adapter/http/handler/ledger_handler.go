package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	RegisterLedger(ctx context.Context, input usecase.RegisterLedgerInput) (*domain.Ledger, error)
	Credit(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error)
	Debit(ctx context.Context, input usecase.AppendEntryInput) (domain.Entry, error)
	RenameLedger(ctx context.Context, id, name string) (*domain.Ledger, error)
	DeleteLedger(ctx context.Context, id string) error
	GetLedger(ctx context.Context, id string) (*domain.Ledger, error)
	ListLedgers(ctx context.Context, input usecase.ListLedgersInput) ([]*domain.Ledger, error)
	EntriesByDate(ctx context.Context, id string, date time.Time) ([]domain.Entry, error)
}

// LedgerHandler handles ledger HTTP requests.
type LedgerHandler struct {
	ledgerUC LedgerService
	currency string
}

// NewLedgerHandler creates a new LedgerHandler. currency is used only to
// render balances.
func NewLedgerHandler(ledgerUC LedgerService, currency string) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, currency: currency}
}

// Register opens a ledger.
func (h *LedgerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ledger, err := h.ledgerUC.RegisterLedger(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to register ledger", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LedgerFromDomain(ledger, h.currency))
}

// Get retrieves a ledger by ID.
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.ledgerUC.GetLedger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(ledger, h.currency))
}

// List lists ledgers.
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 20)
	offset := parseIntQuery(r, "offset", 0)

	ledgers, err := h.ledgerUC.ListLedgers(r.Context(), usecase.ListLedgersInput{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list ledgers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListLedgersResponse{
		Ledgers: dto.LedgersFromDomain(ledgers, h.currency),
		Total:   int64(len(ledgers)),
	})
}

// Rename changes a ledger's name.
func (h *LedgerHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req dto.RenameLedgerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ledger, err := h.ledgerUC.RenameLedger(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeDomainError(w, "failed to rename ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerFromDomain(ledger, h.currency))
}

// Delete removes a ledger and its entries.
func (h *LedgerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerUC.DeleteLedger(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to delete ledger", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Credit appends a credit.
func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.appendEntry(w, r, h.ledgerUC.Credit)
}

// Debit appends a debit.
func (h *LedgerHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.appendEntry(w, r, h.ledgerUC.Debit)
}

func (h *LedgerHandler) appendEntry(
	w http.ResponseWriter,
	r *http.Request,
	add func(context.Context, usecase.AppendEntryInput) (domain.Entry, error),
) {
	var req dto.EntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := add(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to append entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Entries lists a ledger's entries of one day.
func (h *LedgerHandler) Entries(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	entries, err := h.ledgerUC.EntriesByDate(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
