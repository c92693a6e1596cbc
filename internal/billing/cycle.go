// Package billing holds the pure statement arithmetic: billing-cycle
// computation, statement status derivation and invoice consolidation.
// Nothing here touches I/O; everything is recomputed per request since
// "today" changes the derived state.
package billing

import (
	"time"

	"github.com/dmoreira/financas-familia-go/internal/domain"
)

// Cycle is the {opening, closing, due} date triple governing one
// statement of one card family. Dates are at midnight UTC; the time
// component is never meaningful.
type Cycle struct {
	Opening time.Time `json:"opening"`
	Closing time.Time `json:"closing"`
	Due     time.Time `json:"due"`
}

// Key identifies the cycle for idempotency purposes (one settlement
// per card per cycle). The closing date is unique per cycle.
func (c Cycle) Key() string {
	return c.Closing.Format("2006-01-02")
}

// CycleFor computes the billing cycle a reference date falls into,
// given the card's closing and due day configuration.
//
// When dueDay < closingDay the statement closes near month-end and is
// due early in the next month: the due date keeps the reference month
// and the closing shifts one month back. Days beyond a month's length
// clamp to the last valid day (closing day 31 in February closes on
// Feb 28/29). The opening is always the day after the previous
// cycle's closing.
func CycleFor(closingDay, dueDay int, ref time.Time) (Cycle, error) {
	if closingDay < 1 || closingDay > 31 {
		return Cycle{}, &domain.ErrValidation{Field: "closing_day", Message: "must be between 1 and 31"}
	}
	if dueDay < 1 || dueDay > 31 {
		return Cycle{}, &domain.ErrValidation{Field: "due_day", Message: "must be between 1 and 31"}
	}

	year, month := ref.Year(), ref.Month()

	var closing, due time.Time
	if dueDay < closingDay {
		due = dateIn(year, month, dueDay)
		closing = dateIn(year, month-1, closingDay)
	} else {
		closing = dateIn(year, month, closingDay)
		due = dateIn(year, month, dueDay)
	}

	previousClosing := dateIn(closing.Year(), closing.Month()-1, closingDay)
	opening := previousClosing.AddDate(0, 0, 1)

	return Cycle{Opening: opening, Closing: closing, Due: due}, nil
}

// Next returns the cycle immediately after c for the same card
// configuration. Its opening is c.Closing + 1 day.
func (c Cycle) Next(closingDay, dueDay int) (Cycle, error) {
	// The reference month is whatever month CycleFor anchors on: the
	// closing month normally, the due month in the wrap configuration.
	anchor := c.Closing
	if dueDay < closingDay {
		anchor = c.Due
	}
	ref := dateIn(anchor.Year(), anchor.Month()+1, 1)
	return CycleFor(closingDay, dueDay, ref)
}

// Contains reports whether a transaction date falls inside the cycle
// window [opening, closing], both inclusive, at date granularity.
func (c Cycle) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(c.Opening) && !d.After(c.Closing)
}

// DateOnly truncates a timestamp to midnight UTC, the granularity all
// cycle arithmetic operates at.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateIn builds a UTC date clamping day to the month's length.
// time.Date normalizes out-of-range months, so month-1 / month+1
// arithmetic is safe to pass through.
func dateIn(year int, month time.Month, day int) time.Time {
	// last day of the target month
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	if day > last.Day() {
		day = last.Day()
	}
	return time.Date(last.Year(), last.Month(), day, 0, 0, 0, 0, time.UTC)
}
