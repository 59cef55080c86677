package documents

import (
	"time"

	ierr "sop-portal/portal-backend/internal/errors"
)

const (
	DateLayout          = "2006-01-02"
	minRevisionGapMonth = 3
)

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHintf("%q is not a valid date (expected YYYY-MM-DD)", s).
			Mark(ierr.ErrValidation)
	}
	return t, nil
}

// MinNextRevisionDate is last plus three calendar months, clamped to the end of the
// target month (Jan 31 gives Apr 30).
func MinNextRevisionDate(last time.Time) time.Time {
	return addClampedMonths(truncateDay(last), minRevisionGapMonth)
}

// IsValidRevisionGap reports whether next is at least three calendar months after last.
func IsValidRevisionGap(last, next time.Time) bool {
	return !truncateDay(next).Before(MinNextRevisionDate(last))
}

// ValidateRevisionDates fails with ErrPreconditionFailed when both dates are present
// and next falls below the three month floor.
func ValidateRevisionDates(last, next *time.Time) error {
	if last == nil || next == nil {
		return nil
	}
	if IsValidRevisionGap(*last, *next) {
		return nil
	}

	floor := MinNextRevisionDate(*last)
	return ierr.NewErrorf("next revision date %s is before %s", next.Format(DateLayout), floor.Format(DateLayout)).
		WithHintf("Next revision date must be on or after %s", floor.Format(DateLayout)).
		WithReportableDetails(map[string]any{
			"last_revision_date":     last.Format(DateLayout),
			"next_revision_date":     next.Format(DateLayout),
			"min_next_revision_date": floor.Format(DateLayout),
		}).
		Mark(ierr.ErrPreconditionFailed)
}

func addClampedMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()

	newY := y
	newM := time.Month(int(m) + months)
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// day 0 of the following month is the last day of newM
	lastDay := time.Date(newY, newM+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}

	return time.Date(newY, newM, d, 0, 0, 0, 0, t.Location())
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
