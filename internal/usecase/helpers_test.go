package usecase_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashflow/internal/adapter/repository/memory"
	"github.com/iho/cashflow/internal/usecase"
	"github.com/iho/cashflow/internal/usecase/mocks"
)

var (
	march10 = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	march11 = march10.AddDate(0, 0, 1)
	march12 = march10.AddDate(0, 0, 2)
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

type fixture struct {
	repo    *memory.LedgerRepository
	cache   *memory.Cache
	rc      *usecase.ReportCache
	clock   *testClock
	ids     *mocks.SequentialIDGenerator
	ledgers *usecase.LedgerUseCase
	reports *usecase.ReportUseCase
}

func newFixture(t *testing.T, opts ...usecase.LedgerOption) *fixture {
	t.Helper()

	f := &fixture{
		repo:  memory.NewLedgerRepository(),
		clock: &testClock{t: march10.Add(9 * time.Hour)},
		ids:   mocks.NewSequentialIDGenerator("ID"),
	}
	f.cache = memory.NewCache(f.clock.Now)
	f.rc = usecase.NewReportCache(f.cache, zerolog.Nop(), nil)

	opts = append([]usecase.LedgerOption{usecase.WithLedgerClock(f.clock.Now)}, opts...)
	f.ledgers = usecase.NewLedgerUseCase(f.repo, f.rc, f.ids, opts...)
	f.reports = usecase.NewReportUseCase(f.repo, f.rc, f.ids, usecase.WithReportClock(f.clock.Now))
	return f
}
