package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// DebitPolicy decides whether a debit may take the balance below zero.
type DebitPolicy string

const (
	DebitPolicyAllowOverdraft  DebitPolicy = "allow"
	DebitPolicyRejectOverdraft DebitPolicy = "reject"
)

// ParseDebitPolicy maps a configuration value to a DebitPolicy.
func ParseDebitPolicy(s string) (DebitPolicy, error) {
	switch p := DebitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case DebitPolicyAllowOverdraft, DebitPolicyRejectOverdraft:
		return p, nil
	case "":
		return DebitPolicyAllowOverdraft, nil
	default:
		return "", fmt.Errorf("unknown debit policy %q", s)
	}
}

// Ledger is the aggregate root: a named cash flow holding an ordered,
// append-only list of entries. Its balance always equals the sum of
// credits minus the sum of debits.
type Ledger struct {
	id         string
	name       string
	openedDate time.Time
	balance    Amount
	entries    []Entry
	version    int64

	// persisted is the number of leading entries already stored.
	persisted int

	policy DebitPolicy
	now    func() time.Time
	newID  func() string
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator overrides the generator used for entry ids.
func WithIDGenerator(gen func() string) LedgerOption {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithDebitPolicy sets the overdraft policy.
func WithDebitPolicy(p DebitPolicy) LedgerOption {
	return func(l *Ledger) {
		if p != "" {
			l.policy = p
		}
	}
}

func newLedger(opts []LedgerOption) *Ledger {
	l := &Ledger{
		balance: ZeroAmount,
		policy:  DebitPolicyAllowOverdraft,
		now:     time.Now,
		newID:   func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply reconfigures a loaded ledger, e.g. with the service's debit policy.
func (l *Ledger) Apply(opts ...LedgerOption) {
	for _, opt := range opts {
		opt(l)
	}
}

// NewLedger opens an empty ledger with a zero balance.
func NewLedger(name string, opened time.Time, opts ...LedgerOption) (*Ledger, error) {
	if err := ValidateLedgerName(name); err != nil {
		return nil, err
	}

	l := newLedger(opts)
	l.id = l.newID()
	l.name = strings.TrimSpace(name)
	l.openedDate = Day(opened)
	return l, nil
}

// LedgerSnapshot is the stored form of a ledger.
type LedgerSnapshot struct {
	ID         string
	Name       string
	OpenedDate time.Time
	Balance    Amount
	Version    int64
	Entries    []Entry
}

// RestoreLedger rehydrates a stored ledger. Entries must be in insertion
// order. The stored balance must agree with the entries.
func RestoreLedger(s LedgerSnapshot, opts ...LedgerOption) (*Ledger, error) {
	l := newLedger(opts)
	l.id = s.ID
	l.name = s.Name
	l.openedDate = Day(s.OpenedDate)
	l.version = s.Version
	l.entries = append([]Entry(nil), s.Entries...)
	l.persisted = len(l.entries)

	credits, debits, err := SumEntries(l.entries)
	if err != nil {
		return nil, err
	}
	l.balance = credits.Sub(debits)

	if !l.balance.Equal(s.Balance) {
		return nil, fmt.Errorf("%w: ledger %s stored %s, entries sum to %s",
			ErrInconsistentBalance, s.ID, s.Balance, l.balance)
	}
	return l, nil
}

func (l *Ledger) ID() string             { return l.id }
func (l *Ledger) Name() string           { return l.name }
func (l *Ledger) OpenedDate() time.Time  { return l.openedDate }
func (l *Ledger) Version() int64         { return l.version }
func (l *Ledger) Policy() DebitPolicy    { return l.policy }
func (l *Ledger) CurrentBalance() Amount { return l.balance }
func (l *Ledger) EntryCount() int        { return len(l.entries) }

// Rename changes the ledger name.
func (l *Ledger) Rename(name string) error {
	if err := ValidateLedgerName(name); err != nil {
		return err
	}
	l.name = strings.TrimSpace(name)
	return nil
}

// AddCredit appends a credit stamped with the current time.
func (l *Ledger) AddCredit(amount Amount, description string) (Entry, error) {
	return l.append(EntryKindCredit, amount, description)
}

// AddDebit appends a debit stamped with the current time.
func (l *Ledger) AddDebit(amount Amount, description string) (Entry, error) {
	if err := ValidateAmount(amount); err != nil {
		return Entry{}, err
	}
	if l.policy == DebitPolicyRejectOverdraft && l.balance.Sub(amount).IsNegative() {
		return Entry{}, fmt.Errorf("%w: balance %s, debit %s", ErrInsufficientFunds, l.balance, amount)
	}
	return l.append(EntryKindDebit, amount, description)
}

func (l *Ledger) append(kind EntryKind, amount Amount, description string) (Entry, error) {
	e, err := NewEntry(l.newID(), l.id, kind, amount, description, l.now())
	if err != nil {
		return Entry{}, err
	}
	signed, err := e.Signed()
	if err != nil {
		return Entry{}, err
	}

	l.entries = append(l.entries, e)
	l.balance = l.balance.Add(signed)
	return e, nil
}

// Entries returns a copy of all entries in insertion order.
func (l *Ledger) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// EntriesByDate returns the entries recorded on the UTC calendar day of date.
func (l *Ledger) EntriesByDate(date time.Time) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if SameDay(e.Timestamp, date) {
			out = append(out, e)
		}
	}
	return out
}

// EntryDays returns the distinct days the ledger has entries on, ascending.
func (l *Ledger) EntryDays() []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, e := range l.entries {
		d := e.Date()
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days
}

// LastEntry returns the most recently appended entry.
func (l *Ledger) LastEntry() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// PendingEntries returns the entries appended since the ledger was loaded
// or last committed.
func (l *Ledger) PendingEntries() []Entry {
	return append([]Entry(nil), l.entries[l.persisted:]...)
}

// MarkCommitted records that the current state has been stored.
// Repositories call it after a successful write.
func (l *Ledger) MarkCommitted() {
	l.persisted = len(l.entries)
	l.version++
}

// VerifyBalance recomputes the balance from scratch and compares it with
// the incrementally tracked value.
func (l *Ledger) VerifyBalance() error {
	credits, debits, err := SumEntries(l.entries)
	if err != nil {
		return err
	}
	if full := credits.Sub(debits); !full.Equal(l.balance) {
		return fmt.Errorf("%w: tracked %s, recomputed %s", ErrInconsistentBalance, l.balance, full)
	}
	return nil
}

// Snapshot returns the stored form of the ledger.
func (l *Ledger) Snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		ID:         l.id,
		Name:       l.name,
		OpenedDate: l.openedDate,
		Balance:    l.balance,
		Version:    l.version,
		Entries:    l.Entries(),
	}
}

// SumEntries totals credits and debits separately, in order.
func SumEntries(entries []Entry) (credits, debits Amount, err error) {
	credits, debits = ZeroAmount, ZeroAmount
	for _, e := range entries {
		switch e.Kind {
		case EntryKindCredit:
			credits = credits.Add(e.Amount)
		case EntryKindDebit:
			debits = debits.Add(e.Amount)
		default:
			return ZeroAmount, ZeroAmount, fmt.Errorf("%w: entry %s has kind %q", ErrUnknownEntryKind, e.ID, e.Kind)
		}
	}
	return credits, debits, nil
}
