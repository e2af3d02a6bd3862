package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"

	"github.com/iho/cashflow/internal/adapter/repository/memory"
	"github.com/iho/cashflow/internal/domain"
	"github.com/iho/cashflow/internal/usecase"
	"github.com/iho/cashflow/internal/usecase/mocks"
)

func TestLedgerUseCase_RegisterLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	initial := domain.MustParseAmount("250")
	ledger, err := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{
		Name:          "Loja Centro",
		InitialCredit: &initial,
		Description:   "opening balance",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := f.repo.GetByID(ctx, ledger.ID())
	if err != nil {
		t.Fatalf("expected stored ledger, got %v", err)
	}
	if !stored.CurrentBalance().Equal(initial) {
		t.Errorf("expected balance 250, got %s", stored.CurrentBalance())
	}
	if stored.EntryCount() != 1 {
		t.Errorf("expected the opening credit, got %d entries", stored.EntryCount())
	}
}

func TestLedgerUseCase_RegisterLedger_InvalidName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// no repository calls expected
	repo := mocks.NewMockLedgerRepository(ctrl)
	rc := usecase.NewReportCache(memory.NopCache{}, zerolog.Nop(), nil)
	uc := usecase.NewLedgerUseCase(repo, rc, mocks.NewSequentialIDGenerator("ID"))

	_, err := uc.RegisterLedger(context.Background(), usecase.RegisterLedgerInput{Name: ""})
	if !errors.Is(err, domain.ErrInvalidLedgerName) {
		t.Fatalf("expected ErrInvalidLedgerName, got %v", err)
	}
}

func TestLedgerUseCase_CreditAndDebit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, err := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.ledgers.Credit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("100"), Description: "sale"}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	entry, err := f.ledgers.Debit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("30"), Description: "supplies"})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if entry.Kind != domain.EntryKindDebit || !entry.Timestamp.Equal(f.clock.t) {
		t.Errorf("unexpected entry: %+v", entry)
	}

	got, err := f.ledgers.GetLedger(ctx, ledger.ID())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.CurrentBalance().Equal(domain.MustParseAmount("70")) {
		t.Errorf("expected balance 70, got %s", got.CurrentBalance())
	}
}

func TestLedgerUseCase_Credit_RejectsBeforeLoading(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mocks.NewMockLedgerRepository(ctrl)
	rc := usecase.NewReportCache(memory.NopCache{}, zerolog.Nop(), nil)
	uc := usecase.NewLedgerUseCase(repo, rc, mocks.NewSequentialIDGenerator("ID"))
	ctx := context.Background()

	_, err := uc.Credit(ctx, usecase.AppendEntryInput{LedgerID: "L1", Amount: domain.ZeroAmount})
	if !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	long := make([]byte, domain.MaxDescriptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = uc.Debit(ctx, usecase.AppendEntryInput{LedgerID: "L1", Amount: domain.MustParseAmount("1"), Description: string(long)})
	if !errors.Is(err, domain.ErrDescriptionTooLong) {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestLedgerUseCase_Credit_LedgerNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledgers.Credit(context.Background(), usecase.AppendEntryInput{LedgerID: "missing", Amount: domain.MustParseAmount("1")})
	if !errors.Is(err, domain.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}
}

func storedLedger(t *testing.T) domain.LedgerSnapshot {
	t.Helper()
	l, err := domain.NewLedger("Caixa", march10, domain.WithIDGenerator(func() string { return "L1" }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.MarkCommitted()
	return l.Snapshot()
}

func TestLedgerUseCase_Credit_RetriesConcurrentUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	snapshot := storedLedger(t)
	repo := mocks.NewMockLedgerRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), "L1").DoAndReturn(func(context.Context, string) (*domain.Ledger, error) {
		return domain.RestoreLedger(snapshot)
	}).Times(2)
	gomock.InOrder(
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(domain.ErrConcurrentUpdate),
		repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil),
	)

	rc := usecase.NewReportCache(memory.NopCache{}, zerolog.Nop(), nil)
	uc := usecase.NewLedgerUseCase(repo, rc, mocks.NewSequentialIDGenerator("E"))

	entry, err := uc.Credit(context.Background(), usecase.AppendEntryInput{LedgerID: "L1", Amount: domain.MustParseAmount("5")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.LedgerID != "L1" {
		t.Errorf("expected entry for L1, got %+v", entry)
	}
}

func TestLedgerUseCase_Credit_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	snapshot := storedLedger(t)
	repo := mocks.NewMockLedgerRepository(ctrl)
	repo.EXPECT().GetByID(gomock.Any(), "L1").DoAndReturn(func(context.Context, string) (*domain.Ledger, error) {
		return domain.RestoreLedger(snapshot)
	}).Times(3)
	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(domain.ErrConcurrentUpdate).Times(3)

	rc := usecase.NewReportCache(memory.NopCache{}, zerolog.Nop(), nil)
	uc := usecase.NewLedgerUseCase(repo, rc, mocks.NewSequentialIDGenerator("E"))

	_, err := uc.Credit(context.Background(), usecase.AppendEntryInput{LedgerID: "L1", Amount: domain.MustParseAmount("5")})
	if !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
}

func TestLedgerUseCase_Debit_RejectOverdraft(t *testing.T) {
	f := newFixture(t, usecase.WithDebitPolicy(domain.DebitPolicyRejectOverdraft))
	ctx := context.Background()

	ledger, _ := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})

	_, err := f.ledgers.Debit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("1")})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	got, _ := f.ledgers.GetLedger(ctx, ledger.ID())
	if got.EntryCount() != 0 {
		t.Errorf("rejected debit must not be stored")
	}
}

func TestLedgerUseCase_AppendInvalidatesTodaysReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, _ := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})
	if _, err := f.ledgers.Credit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("100")}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}

	before, err := f.reports.GenerateConsolidatedReport(ctx, march10)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if _, err := f.ledgers.Debit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("40")}); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	after, err := f.reports.GenerateConsolidatedReport(ctx, march10)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if !before.FinalBalance.Equal(domain.MustParseAmount("100")) {
		t.Errorf("expected first report balance 100, got %s", before.FinalBalance)
	}
	if !after.FinalBalance.Equal(domain.MustParseAmount("60")) {
		t.Errorf("expected report to reflect the debit, got %s", after.FinalBalance)
	}
}

func TestLedgerUseCase_RenameLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, _ := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})

	renamed, err := f.ledgers.RenameLedger(ctx, ledger.ID(), "Caixa Sul")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if renamed.Name() != "Caixa Sul" {
		t.Errorf("expected new name, got %q", renamed.Name())
	}

	if _, err := f.ledgers.RenameLedger(ctx, ledger.ID(), " "); !errors.Is(err, domain.ErrInvalidLedgerName) {
		t.Errorf("expected ErrInvalidLedgerName, got %v", err)
	}
}

func TestLedgerUseCase_DeleteLedger_RetiresCachedReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, _ := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})
	_, _ = f.ledgers.Credit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("10")})

	// move to a later day so march10 is in the past and its period is cacheable
	f.clock.t = march12.Add(time.Hour)
	period, err := f.reports.GeneratePeriodReport(ctx, march10, march11)
	if err != nil {
		t.Fatalf("period report failed: %v", err)
	}
	if !period.FinalBalance.Equal(domain.MustParseAmount("10")) {
		t.Fatalf("expected balance 10, got %s", period.FinalBalance)
	}

	epoch := f.rc.Epoch(ctx)
	version, _ := f.rc.Version(ctx, usecase.NamespaceDaily, march10)
	if err := f.ledgers.DeleteLedger(ctx, ledger.ID()); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if f.rc.Epoch(ctx) == epoch {
		t.Errorf("expected delete to bump the cache epoch")
	}
	if got, _ := f.rc.Version(ctx, usecase.NamespaceDaily, march10); got == version {
		t.Errorf("expected daily version of the ledger's entry day to be retired")
	}

	period, err = f.reports.GeneratePeriodReport(ctx, march10, march11)
	if err != nil {
		t.Fatalf("period report failed: %v", err)
	}
	if !period.FinalBalance.IsZero() {
		t.Errorf("expected period report without the deleted ledger, got %s", period.FinalBalance)
	}

	if _, err := f.ledgers.GetLedger(ctx, ledger.ID()); !errors.Is(err, domain.ErrLedgerNotFound) {
		t.Errorf("expected ErrLedgerNotFound, got %v", err)
	}
}

func TestLedgerUseCase_ListLedgers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		if _, err := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: name}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	page, err := f.ledgers.ListLedgers(ctx, usecase.ListLedgersInput{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page) != 2 || page[0].Name() != "B" || page[1].Name() != "C" {
		t.Errorf("unexpected page: %v", page)
	}

	empty, err := f.ledgers.ListLedgers(ctx, usecase.ListLedgersInput{Offset: 10})
	if err != nil || len(empty) != 0 {
		t.Errorf("expected empty page, got %v %v", empty, err)
	}
}

func TestLedgerUseCase_EntriesByDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ledger, _ := f.ledgers.RegisterLedger(ctx, usecase.RegisterLedgerInput{Name: "Caixa"})
	_, _ = f.ledgers.Credit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("1")})
	f.clock.t = march11.Add(time.Hour)
	_, _ = f.ledgers.Credit(ctx, usecase.AppendEntryInput{LedgerID: ledger.ID(), Amount: domain.MustParseAmount("2")})

	entries, err := f.ledgers.EntriesByDate(ctx, ledger.ID(), march11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Amount.String() != "2" {
		t.Errorf("expected the march 11 entry, got %+v", entries)
	}
}
