package expense

import (
	"fmt"
	"time"
)

// RangeKind selects the calendar window used for filtering and navigation.
type RangeKind string

const (
	RangeWeek  RangeKind = "week"
	RangeMonth RangeKind = "month"
	RangeYear  RangeKind = "year"
)

// Period is an inclusive [Start, End] calendar window.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// endOfDayNanos matches the 23:59:59.999 end-of-day convention.
const endOfDayNanos = int(999 * time.Millisecond)

// WeekRange returns the Sunday-to-Saturday week containing d.
func WeekRange(d time.Time) Period {
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
	start = start.AddDate(0, 0, -int(start.Weekday())) // back to Sunday
	end := start.AddDate(0, 0, 6)
	end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, endOfDayNanos, d.Location())
	return Period{Start: start, End: end}
}

// MonthRange returns the calendar month containing d. The end is computed
// as day zero of the following month, so month lengths and leap years fall
// out of the calendar arithmetic.
func MonthRange(d time.Time) Period {
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	end := time.Date(d.Year(), d.Month()+1, 0, 23, 59, 59, endOfDayNanos, d.Location())
	return Period{Start: start, End: end}
}

// YearRange returns the calendar year containing d.
func YearRange(d time.Time) Period {
	start := time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, d.Location())
	end := time.Date(d.Year(), time.December, 31, 23, 59, 59, endOfDayNanos, d.Location())
	return Period{Start: start, End: end}
}

// RangeFor computes the period of the given kind containing d.
func RangeFor(kind RangeKind, d time.Time) (Period, error) {
	switch kind {
	case RangeWeek:
		return WeekRange(d), nil
	case RangeMonth:
		return MonthRange(d), nil
	case RangeYear:
		return YearRange(d), nil
	default:
		return Period{}, fmt.Errorf("unknown range kind: %s", kind)
	}
}

// shiftPeriod moves the reference date by n units of the given kind. The
// day-of-month is reset to 1 before month arithmetic so a Jan 31 reference
// cannot overflow into March.
func shiftPeriod(kind RangeKind, d time.Time, n int) time.Time {
	switch kind {
	case RangeWeek:
		return d.AddDate(0, 0, 7*n)
	case RangeMonth:
		first := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
		return first.AddDate(0, n, 0)
	case RangeYear:
		return d.AddDate(n, 0, 0)
	default:
		return d
	}
}

// PrevPeriod returns a reference date one period earlier.
func PrevPeriod(kind RangeKind, d time.Time) time.Time {
	return shiftPeriod(kind, d, -1)
}

// NextPeriod returns a reference date one period later.
func NextPeriod(kind RangeKind, d time.Time) time.Time {
	return shiftPeriod(kind, d, 1)
}

// NextDisabled reports whether forward navigation from d should be
// disabled: you cannot navigate past the period containing now.
func NextDisabled(kind RangeKind, d, now time.Time) bool {
	p, err := RangeFor(kind, d)
	if err != nil {
		return true
	}
	return p.End.After(now)
}

// FormatPeriod renders the period containing d for display.
func FormatPeriod(kind RangeKind, d time.Time) string {
	switch kind {
	case RangeWeek:
		p := WeekRange(d)
		start, end := p.Start, p.End
		if start.Year() != end.Year() {
			return fmt.Sprintf("%s - %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
		}
		if start.Month() == end.Month() {
			return fmt.Sprintf("%s - %d, %d", start.Format("Jan 2"), end.Day(), start.Year())
		}
		return fmt.Sprintf("%s - %s, %d", start.Format("Jan 2"), end.Format("Jan 2"), start.Year())
	case RangeMonth:
		return d.Format("January 2006")
	case RangeYear:
		return d.Format("2006")
	default:
		return "All Time"
	}
}
