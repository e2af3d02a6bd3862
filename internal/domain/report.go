package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ScopeAll is the report scope aggregating every ledger.
const ScopeAll = "all"

// Report is an immutable consolidation of entries over a day or a period.
// Recomputing produces a new Report; stored reports are never updated.
type Report struct {
	ID           string    `json:"id"`
	Scope        string    `json:"scope"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	TotalCredits Amount    `json:"total_credits"`
	TotalDebits  Amount    `json:"total_debits"`
	FinalBalance Amount    `json:"final_balance"`
	Entries      []Entry   `json:"entries"`
	Fingerprint  string    `json:"fingerprint"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsDaily reports whether the report covers a single day.
func (r Report) IsDaily() bool {
	return r.StartDate.Equal(r.EndDate)
}

// Period returns the range the report covers.
func (r Report) Period() Period {
	return Period{Start: r.StartDate, End: r.EndDate}
}

// Consolidate builds the daily report of scope for date from the given
// entries. Entries recorded on other days are ignored. Totals are summed
// in the order given. The result has no ID or CreatedAt; the caller
// stamps them before storing.
func Consolidate(scope string, date time.Time, entries []Entry) (Report, error) {
	day := Day(date)

	onDay := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if SameDay(e.Timestamp, day) {
			onDay = append(onDay, e)
		}
	}

	credits, debits, err := SumEntries(onDay)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Scope:        scope,
		StartDate:    day,
		EndDate:      day,
		TotalCredits: credits,
		TotalDebits:  debits,
		FinalBalance: credits.Sub(debits),
		Entries:      onDay,
		Fingerprint:  Fingerprint(scope, day, day, onDay),
	}, nil
}

// CombinePeriod accumulates day reports into a single period report.
// days must be in ascending order and lie within p.
func CombinePeriod(scope string, p Period, days []Report) Report {
	credits, debits := ZeroAmount, ZeroAmount
	entries := make([]Entry, 0)

	for _, d := range days {
		credits = credits.Add(d.TotalCredits)
		debits = debits.Add(d.TotalDebits)
		entries = append(entries, d.Entries...)
	}

	return Report{
		Scope:        scope,
		StartDate:    p.Start,
		EndDate:      p.End,
		TotalCredits: credits,
		TotalDebits:  debits,
		FinalBalance: credits.Sub(debits),
		Entries:      entries,
		Fingerprint:  Fingerprint(scope, p.Start, p.End, entries),
	}
}

// Fingerprint identifies the inputs of a consolidation. Two reports with
// the same scope, range and contributing entries share a fingerprint.
func Fingerprint(scope string, start, end time.Time, entries []Entry) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(Day(start).Format(DateLayout)))
	h.Write([]byte{0})
	h.Write([]byte(Day(end).Format(DateLayout)))
	for _, e := range entries {
		h.Write([]byte{0})
		h.Write([]byte(e.ID))
	}
	return hex.EncodeToString(h.Sum(nil))
}
