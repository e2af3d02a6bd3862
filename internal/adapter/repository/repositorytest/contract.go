// Package repositorytest holds the behaviour every usecase.LedgerRepository
// implementation must share.
package repositorytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
)

// Factory returns an empty repository. It is called once per subtest.
type Factory func(t *testing.T) usecase.LedgerRepository

var day = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func idGen(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%04d", prefix, n)
	}
}

func newLedger(t *testing.T, name string, c *clock, ids func() string) *domain.Ledger {
	t.Helper()
	l, err := domain.NewLedger(name, c.t, domain.WithClock(c.now), domain.WithIDGenerator(ids))
	require.NoError(t, err)
	return l
}

// Run executes the contract suite against the repositories produced by f.
func Run(t *testing.T, f Factory) {
	t.Run("AddAndGetByID", func(t *testing.T) { testAddAndGet(t, f(t)) })
	t.Run("GetByIDNotFound", func(t *testing.T) { testNotFound(t, f(t)) })
	t.Run("UpdateAppendsPendingEntries", func(t *testing.T) { testUpdate(t, f(t)) })
	t.Run("UpdateDetectsConcurrentWrite", func(t *testing.T) { testConcurrentUpdate(t, f(t)) })
	t.Run("GetByDateAndGetAll", func(t *testing.T) { testGetByDate(t, f(t)) })
	t.Run("DeleteCascadesEntriesKeepsReports", func(t *testing.T) { testDelete(t, f(t)) })
	t.Run("AddReportInsertIfAbsent", func(t *testing.T) { testAddReport(t, f(t)) })
	t.Run("AddReportsBatch", func(t *testing.T) { testAddReports(t, f(t)) })
}

func testAddAndGet(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	c := &clock{t: day.Add(9 * time.Hour)}
	l := newLedger(t, "Loja Centro", c, idGen("A"))
	_, err := l.AddCredit(domain.MustParseAmount("100.25"), "opening")
	require.NoError(t, err)

	require.NoError(t, repo.Add(ctx, l))
	assert.Empty(t, l.PendingEntries())

	got, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	assert.Equal(t, l.ID(), got.ID())
	assert.Equal(t, "Loja Centro", got.Name())
	assert.True(t, got.OpenedDate().Equal(day))
	assert.True(t, got.CurrentBalance().Equal(domain.MustParseAmount("100.25")))
	assert.Equal(t, l.Version(), got.Version())

	entries := got.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryKindCredit, entries[0].Kind)
	assert.Equal(t, "opening", entries[0].Description)
	assert.True(t, entries[0].Timestamp.Equal(c.t))
}

func testNotFound(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrLedgerNotFound)

	c := &clock{t: day}
	ghost := newLedger(t, "Ghost", c, idGen("G"))
	assert.ErrorIs(t, repo.Update(ctx, ghost), domain.ErrLedgerNotFound)
}

func testUpdate(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	c := &clock{t: day.Add(8 * time.Hour)}
	ids := idGen("U")
	l := newLedger(t, "Caixa", c, ids)
	require.NoError(t, repo.Add(ctx, l))

	loaded, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	loaded.Apply(domain.WithClock(c.now), domain.WithIDGenerator(ids))

	_, err = loaded.AddCredit(domain.MustParseAmount("100"), "sale")
	require.NoError(t, err)
	c.t = c.t.Add(time.Hour)
	_, err = loaded.AddDebit(domain.MustParseAmount("30"), "supplies")
	require.NoError(t, err)
	require.NoError(t, loaded.Rename("Caixa Principal"))
	require.NoError(t, repo.Update(ctx, loaded))

	// a second update on the same instance appends only the new entry
	c.t = c.t.Add(time.Hour)
	_, err = loaded.AddDebit(domain.MustParseAmount("20"), "rent")
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, loaded))

	got, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	assert.Equal(t, "Caixa Principal", got.Name())
	assert.True(t, got.CurrentBalance().Equal(domain.MustParseAmount("50")))
	require.NoError(t, got.VerifyBalance())

	entries := got.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "sale", entries[0].Description)
	assert.Equal(t, "supplies", entries[1].Description)
	assert.Equal(t, "rent", entries[2].Description)
}

func testConcurrentUpdate(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	c := &clock{t: day}
	ids := idGen("C")
	l := newLedger(t, "Caixa", c, ids)
	require.NoError(t, repo.Add(ctx, l))

	first, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	first.Apply(domain.WithIDGenerator(ids))
	second.Apply(domain.WithIDGenerator(ids))

	_, err = first.AddCredit(domain.MustParseAmount("1"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, first))

	_, err = second.AddCredit(domain.MustParseAmount("2"), "")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Update(ctx, second), domain.ErrConcurrentUpdate)

	got, err := repo.GetByID(ctx, l.ID())
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance().Equal(domain.MustParseAmount("1")))
}

func testGetByDate(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	c := &clock{t: day.Add(10 * time.Hour)}
	ids := idGen("D")

	active := newLedger(t, "Active", c, ids)
	_, err := active.AddCredit(domain.MustParseAmount("5"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, active))

	c.t = day.AddDate(0, 0, 1).Add(time.Hour)
	other := newLedger(t, "Other day", c, ids)
	_, err = other.AddDebit(domain.MustParseAmount("3"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, other))

	empty := newLedger(t, "Empty", c, ids)
	require.NoError(t, repo.Add(ctx, empty))

	onDay, err := repo.GetByDate(ctx, day.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, active.ID(), onDay[0].ID())

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, active.ID(), all[0].ID())
	assert.Equal(t, other.ID(), all[1].ID())
	assert.Equal(t, empty.ID(), all[2].ID())
}

func testDelete(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	c := &clock{t: day.Add(10 * time.Hour)}
	l := newLedger(t, "Temp", c, idGen("X"))
	_, err := l.AddCredit(domain.MustParseAmount("10"), "")
	require.NoError(t, err)
	require.NoError(t, repo.Add(ctx, l))

	r, err := domain.Consolidate(domain.ScopeAll, day, l.Entries())
	require.NoError(t, err)
	r.ID = "R1"
	r.CreatedAt = c.t
	_, err = repo.AddReport(ctx, r)
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, l.ID()))

	_, err = repo.GetByID(ctx, l.ID())
	assert.ErrorIs(t, err, domain.ErrLedgerNotFound)

	onDay, err := repo.GetByDate(ctx, day)
	require.NoError(t, err)
	assert.Empty(t, onDay)

	reports, err := repo.GetReportsByDate(ctx, day)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func testAddReport(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	entries := []domain.Entry{
		{ID: "E1", LedgerID: "L1", Kind: domain.EntryKindCredit, Amount: domain.MustParseAmount("100"), Timestamp: day.Add(time.Hour)},
		{ID: "E2", LedgerID: "L1", Kind: domain.EntryKindDebit, Amount: domain.MustParseAmount("30"), Timestamp: day.Add(2 * time.Hour)},
	}

	r, err := domain.Consolidate("L1", day, entries)
	require.NoError(t, err)
	r.ID = "R1"
	r.CreatedAt = day.Add(23 * time.Hour)

	inserted, err := repo.AddReport(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	// replaying the same consolidation is a no-op
	r.ID = "R2"
	inserted, err = repo.AddReport(ctx, r)
	require.NoError(t, err)
	assert.False(t, inserted)

	// a recomputation over changed entries stores a new row
	changed, err := domain.Consolidate("L1", day, entries[:1])
	require.NoError(t, err)
	changed.ID = "R3"
	changed.CreatedAt = day.Add(23*time.Hour + time.Minute)
	inserted, err = repo.AddReport(ctx, changed)
	require.NoError(t, err)
	assert.True(t, inserted)

	reports, err := repo.GetReportsByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "R1", reports[0].ID)
	assert.True(t, reports[0].TotalCredits.Equal(domain.MustParseAmount("100")))
	assert.True(t, reports[0].TotalDebits.Equal(domain.MustParseAmount("30")))
	assert.True(t, reports[0].FinalBalance.Equal(domain.MustParseAmount("70")))
	assert.Equal(t, r.Fingerprint, reports[0].Fingerprint)
	require.Len(t, reports[0].Entries, 2)
	assert.Equal(t, "E2", reports[0].Entries[1].ID)
	assert.Equal(t, "R3", reports[1].ID)

	other, err := repo.GetReportsByDate(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func testAddReports(t *testing.T, repo usecase.LedgerRepository) {
	ctx := context.Background()
	entries := []domain.Entry{
		{ID: "E1", LedgerID: "L1", Kind: domain.EntryKindCredit, Amount: domain.MustParseAmount("7"), Timestamp: day},
	}

	perLedger, err := domain.Consolidate("L1", day, entries)
	require.NoError(t, err)
	perLedger.ID, perLedger.CreatedAt = "R1", day
	all, err := domain.Consolidate(domain.ScopeAll, day, entries)
	require.NoError(t, err)
	all.ID, all.CreatedAt = "R2", day

	n, err := repo.AddReports(ctx, []domain.Report{perLedger, all})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	perLedger.ID, all.ID = "R3", "R4"
	n, err = repo.AddReports(ctx, []domain.Report{perLedger, all})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = repo.AddReports(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	reports, err := repo.GetReportsByDate(ctx, day)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}
