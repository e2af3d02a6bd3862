package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

// ReconciliationUseCase compares stored reports with the live ledgers.
type ReconciliationUseCase struct {
	repo LedgerReadRepository
	now  func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(repo LedgerReadRepository) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		repo: repo,
		now:  time.Now,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	Date               time.Time     `json:"date"`
	Consolidated       bool          `json:"consolidated"`
	StoredFingerprint  string        `json:"stored_fingerprint,omitempty"`
	CurrentFingerprint string        `json:"current_fingerprint"`
	StoredBalance      domain.Amount `json:"stored_balance"`
	CurrentBalance     domain.Amount `json:"current_balance"`
	Difference         domain.Amount `json:"difference"`
	LedgersChecked     int           `json:"ledgers_checked"`
	BalanceErrors      []string      `json:"balance_errors"`
	IsReconciled       bool          `json:"is_reconciled"`
	CheckedAt          time.Time     `json:"checked_at"`
}

// ReconcileDate checks that the newest stored all-scope report of date
// still matches a fresh consolidation, and that every ledger with entries
// on date has a balance equal to the sum of its entries.
func (uc *ReconciliationUseCase) ReconcileDate(ctx context.Context, date time.Time) (*ReconciliationResult, error) {
	day := domain.Day(date)

	ledgers, err := uc.repo.GetByDate(ctx, day)
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		Date:           day,
		StoredBalance:  domain.ZeroAmount,
		LedgersChecked: len(ledgers),
		BalanceErrors:  make([]string, 0),
		CheckedAt:      uc.now().UTC(),
	}

	for _, l := range ledgers {
		if err := l.VerifyBalance(); err != nil {
			result.BalanceErrors = append(result.BalanceErrors, fmt.Sprintf("%s: %v", l.ID(), err))
		}
	}

	current, err := domain.Consolidate(domain.ScopeAll, day, entriesOn(ledgers, day))
	if err != nil {
		return nil, err
	}
	result.CurrentFingerprint = current.Fingerprint
	result.CurrentBalance = current.FinalBalance

	stored, err := uc.repo.GetReportsByDate(ctx, day)
	if err != nil {
		return nil, err
	}

	var latest *domain.Report
	for i := range stored {
		r := &stored[i]
		if r.Scope != domain.ScopeAll || !r.IsDaily() {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}

	if latest != nil {
		result.Consolidated = true
		result.StoredFingerprint = latest.Fingerprint
		result.StoredBalance = latest.FinalBalance
	}

	result.Difference = result.CurrentBalance.Sub(result.StoredBalance)
	result.IsReconciled = result.Consolidated &&
		result.StoredFingerprint == result.CurrentFingerprint &&
		len(result.BalanceErrors) == 0

	return result, nil
}

// ReconcilePeriod reconciles every day of [start, end].
func (uc *ReconciliationUseCase) ReconcilePeriod(ctx context.Context, start, end time.Time) ([]*ReconciliationResult, error) {
	p, err := domain.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}

	results := make([]*ReconciliationResult, 0, len(p.Days()))
	for _, d := range p.Days() {
		r, err := uc.ReconcileDate(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile %s: %w", d.Format(domain.DateLayout), err)
		}
		results = append(results, r)
	}

	return results, nil
}
