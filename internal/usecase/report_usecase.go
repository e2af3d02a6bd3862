package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iho/cashflow/internal/domain"
)

// ReportUseCase consolidates ledger entries into reports.
type ReportUseCase struct {
	repo        LedgerRepository
	cache       *ReportCache
	idGen       IDGenerator
	now         func() time.Time
	dailyTTL    time.Duration
	snapshotTTL time.Duration
}

// ReportOption configures a ReportUseCase.
type ReportOption func(*ReportUseCase)

// WithReportClock overrides the clock used to decide what "today" is.
func WithReportClock(now func() time.Time) ReportOption {
	return func(uc *ReportUseCase) { uc.now = now }
}

// WithReportTTLs overrides the cache lifetimes. Zero values keep the defaults.
func WithReportTTLs(daily, snapshot time.Duration) ReportOption {
	return func(uc *ReportUseCase) {
		if daily > 0 {
			uc.dailyTTL = daily
		}
		if snapshot > 0 {
			uc.snapshotTTL = snapshot
		}
	}
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(repo LedgerRepository, cache *ReportCache, idGen IDGenerator, opts ...ReportOption) *ReportUseCase {
	uc := &ReportUseCase{
		repo:        repo,
		cache:       cache,
		idGen:       idGen,
		now:         time.Now,
		dailyTTL:    DailyReportTTL,
		snapshotTTL: SnapshotTTL,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// GenerateConsolidatedReport returns the all-ledger report for date,
// reading through the daily cache.
func (uc *ReportUseCase) GenerateConsolidatedReport(ctx context.Context, date time.Time) (domain.Report, error) {
	day := domain.Day(date)
	version, cacheable := uc.cache.Version(ctx, NamespaceDaily, day)
	key := DailyKey(domain.ScopeAll, day, version)

	if cacheable {
		if r, ok := uc.cache.Get(ctx, NamespaceDaily, key); ok {
			return r, nil
		}
	}

	ledgers, err := uc.repo.GetByDate(ctx, day)
	if err != nil {
		return domain.Report{}, fmt.Errorf("load ledgers for %s: %w", day.Format(domain.DateLayout), err)
	}

	r, err := domain.Consolidate(domain.ScopeAll, day, entriesOn(ledgers, day))
	if err != nil {
		return domain.Report{}, err
	}
	r = uc.stamp(r)

	if cacheable {
		uc.cache.Set(ctx, key, r, uc.dailyTTL)
	}
	return r, nil
}

// ConsolidateForPeriod accumulates the daily reports of every day in
// [start, end]. Each day goes through the daily cache.
func (uc *ReportUseCase) ConsolidateForPeriod(ctx context.Context, start, end time.Time) (domain.Report, error) {
	p, err := domain.NewPeriod(start, end)
	if err != nil {
		return domain.Report{}, err
	}
	return uc.consolidatePeriod(ctx, p)
}

func (uc *ReportUseCase) consolidatePeriod(ctx context.Context, p domain.Period) (domain.Report, error) {
	days := p.Days()
	reports := make([]domain.Report, 0, len(days))
	for _, d := range days {
		if err := ctx.Err(); err != nil {
			return domain.Report{}, err
		}
		r, err := uc.GenerateConsolidatedReport(ctx, d)
		if err != nil {
			return domain.Report{}, err
		}
		reports = append(reports, r)
	}

	return uc.stamp(domain.CombinePeriod(domain.ScopeAll, p, reports)), nil
}

// GeneratePeriodReport is ConsolidateForPeriod with the aggregate cached
// under the period namespace. Periods reaching today are not cached
// because today's entries are still changing.
func (uc *ReportUseCase) GeneratePeriodReport(ctx context.Context, start, end time.Time) (domain.Report, error) {
	p, err := domain.NewPeriod(start, end)
	if err != nil {
		return domain.Report{}, err
	}

	cacheable := p.End.Before(domain.Day(uc.now()))
	var key string
	if cacheable {
		key = PeriodKey(domain.ScopeAll, p, uc.cache.Epoch(ctx))
		if r, ok := uc.cache.Get(ctx, NamespacePeriod, key); ok {
			return r, nil
		}
	}

	r, err := uc.consolidatePeriod(ctx, p)
	if err != nil {
		return domain.Report{}, err
	}

	if cacheable {
		uc.cache.Set(ctx, key, r, uc.dailyTTL)
	}
	return r, nil
}

// ConsolidationResult is the outcome of a daily consolidation run.
type ConsolidationResult struct {
	Date     time.Time       `json:"date"`
	Reports  []domain.Report `json:"reports"`
	Inserted int             `json:"inserted"`
}

// Summary returns the all-scope report of the run.
func (r *ConsolidationResult) Summary() (domain.Report, bool) {
	for _, rep := range r.Reports {
		if rep.Scope == domain.ScopeAll {
			return rep, true
		}
	}
	return domain.Report{}, false
}

// ProcessDailyConsolidation builds one report per ledger with entries on
// date plus the all-scope report, stores them in one atomic batch and
// caches the result. Replaying a date whose entries did not change stores
// nothing new.
func (uc *ReportUseCase) ProcessDailyConsolidation(ctx context.Context, date time.Time) (*ConsolidationResult, error) {
	day := domain.Day(date)
	version, cacheable := uc.cache.Version(ctx, NamespaceDaily, day)

	ledgers, err := uc.repo.GetByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load ledgers for %s: %w", day.Format(domain.DateLayout), err)
	}

	reports := make([]domain.Report, 0, len(ledgers)+1)
	for _, l := range ledgers {
		r, err := domain.Consolidate(l.ID(), day, l.EntriesByDate(day))
		if err != nil {
			return nil, fmt.Errorf("consolidate ledger %s: %w", l.ID(), err)
		}
		reports = append(reports, uc.stamp(r))
	}

	all, err := domain.Consolidate(domain.ScopeAll, day, entriesOn(ledgers, day))
	if err != nil {
		return nil, fmt.Errorf("consolidate all ledgers: %w", err)
	}
	all = uc.stamp(all)
	reports = append(reports, all)

	inserted, err := uc.repo.AddReports(ctx, reports)
	if err != nil {
		return nil, fmt.Errorf("store reports for %s: %w", day.Format(domain.DateLayout), err)
	}

	uc.cache.SetReports(ctx, SnapshotKey(day), reports, uc.snapshotTTL)
	if cacheable {
		uc.cache.Set(ctx, DailyKey(domain.ScopeAll, day, version), all, uc.dailyTTL)
	}
	uc.cache.Retire(ctx, NamespacePersisted, []time.Time{day}, uc.now())

	return &ConsolidationResult{Date: day, Reports: reports, Inserted: inserted}, nil
}

// GetReportsByDate returns the stored reports of date.
func (uc *ReportUseCase) GetReportsByDate(ctx context.Context, date time.Time) ([]domain.Report, error) {
	day := domain.Day(date)
	version, cacheable := uc.cache.Version(ctx, NamespacePersisted, day)
	key := PersistedKey(day, version)

	if cacheable {
		if rs, ok := uc.cache.GetReports(ctx, NamespacePersisted, key); ok {
			return rs, nil
		}
	}

	rs, err := uc.repo.GetReportsByDate(ctx, day)
	if err != nil {
		return nil, err
	}

	if cacheable {
		uc.cache.SetReports(ctx, key, rs, uc.dailyTTL)
	}
	return rs, nil
}

// GetSnapshot returns the cached result of the last consolidation run for date.
func (uc *ReportUseCase) GetSnapshot(ctx context.Context, date time.Time) ([]domain.Report, bool) {
	return uc.cache.GetReports(ctx, NamespaceSnapshot, SnapshotKey(date))
}

func (uc *ReportUseCase) stamp(r domain.Report) domain.Report {
	r.ID = uc.idGen.Generate()
	r.CreatedAt = uc.now().UTC()
	return r
}

// entriesOn gathers the entries of all ledgers on day in timestamp order.
// Ties keep ledger order, then insertion order.
func entriesOn(ledgers []*domain.Ledger, day time.Time) []domain.Entry {
	var entries []domain.Entry
	for _, l := range ledgers {
		entries = append(entries, l.EntriesByDate(day)...)
	}
	slices.SortStableFunc(entries, func(a, b domain.Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return entries
}
