package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/iho/cashflow/internal/adapter/http/dto"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// ReportService defines the report queries needed by ReportHandler.
type ReportService interface {
	GenerateConsolidatedReport(ctx context.Context, date time.Time) (domain.Report, error)
	GeneratePeriodReport(ctx context.Context, start, end time.Time) (domain.Report, error)
	GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error)
	GetSnapshot(ctx context.Context, date time.Time) ([]domain.Report, bool)
}

// Consolidator runs a consolidation on demand.
type Consolidator interface {
	RunNow(ctx context.Context, date time.Time) (*usecase.ConsolidationResult, error)
}

// Reconciler checks stored reports against the live ledgers.
type Reconciler interface {
	ReconcileDate(ctx context.Context, date time.Time) (*usecase.ReconciliationResult, error)
	ReconcilePeriod(ctx context.Context, start, end time.Time) ([]*usecase.ReconciliationResult, error)
}

// ReportHandler handles report HTTP requests.
type ReportHandler struct {
	reports      ReportService
	consolidator Consolidator
	reconciler   Reconciler
	currency     string
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports ReportService, consolidator Consolidator, reconciler Reconciler, currency string) *ReportHandler {
	return &ReportHandler{
		reports:      reports,
		consolidator: consolidator,
		reconciler:   reconciler,
		currency:     currency,
	}
}

// Daily returns the consolidated report of all ledgers for one day.
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	report, err := h.reports.GenerateConsolidatedReport(r.Context(), date)
	if err != nil {
		writeDomainError(w, "failed to generate daily report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromDomain(report, h.currency))
}

// Period returns the consolidated report of [start, end].
func (h *ReportHandler) Period(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	report, err := h.reports.GeneratePeriodReport(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, "failed to generate period report", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportFromDomain(report, h.currency))
}

// Stored lists the persisted reports of one day.
func (h *ReportHandler) Stored(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	reports, err := h.reports.GetReportsByDate(r.Context(), date)
	if err != nil {
		writeDomainError(w, "failed to get reports", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportsFromDomain(reports, h.currency))
}

// Snapshot returns the cached result of the last consolidation of a day.
func (h *ReportHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	reports, ok := h.reports.GetSnapshot(r.Context(), date)
	if !ok {
		writeError(w, http.StatusNotFound, "snapshot not found", "no cached consolidation for "+date.Format(domain.DateLayout))
		return
	}

	writeJSON(w, http.StatusOK, dto.ReportsFromDomain(reports, h.currency))
}

// Consolidate runs the daily consolidation of a date now. Failures are
// returned to the caller and never retried.
func (h *ReportHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req dto.ConsolidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	date, err := req.Day()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	res, err := h.consolidator.RunNow(r.Context(), date)
	if err != nil {
		writeDomainError(w, "consolidation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsolidationFromResult(res, h.currency))
}

// Reconcile compares stored reports with the ledgers, for ?date= or for
// ?start=&end=.
func (h *ReportHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("date") {
		date, err := parseDateQuery(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date", err.Error())
			return
		}
		res, err := h.reconciler.ReconcileDate(r.Context(), date)
		if err != nil {
			writeDomainError(w, "reconciliation failed", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}
	res, err := h.reconciler.ReconcilePeriod(r.Context(), start, end)
	if err != nil {
		writeDomainError(w, "reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	start, err := parseDateQuery(r, "start")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start", err.Error())
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDateQuery(r, "end")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end", err.Error())
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
