package models

import (
	"fmt"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange builds a range from two dates; times of day are discarded.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s, en := normalizeDate(start), normalizeDate(end)
	if s.IsZero() || en.IsZero() {
		return DateRange{}, fmt.Errorf("%w: date range bounds are required", e.ErrInvalidInput)
	}
	if en.Before(s) {
		return DateRange{}, fmt.Errorf("%w: date range end %s is before start %s",
			e.ErrInvalidInput, en.Format(dateLayout), s.Format(dateLayout))
	}
	return DateRange{start: s, end: en}, nil
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start date %q", e.ErrInvalidInput, start)
	}
	en, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end date %q", e.ErrInvalidInput, end)
	}
	return NewDateRange(s, en)
}

func normalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Start() time.Time { return r.start }
func (r DateRange) End() time.Time   { return r.end }
func (r DateRange) IsZero() bool     { return r.start.IsZero() && r.end.IsZero() }

// TotalDays counts both bounds.
func (r DateRange) TotalDays() int {
	return int(r.end.Sub(r.start).Hours()/24) + 1
}

// Weekdays counts Monday to Friday days in the range.
func (r DateRange) Weekdays() int {
	count := 0
	for d := r.start; !d.After(r.end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func (r DateRange) Contains(t time.Time) bool {
	d := normalizeDate(t)
	return !d.Before(r.start) && !d.After(r.end)
}

// Within reports whether r lies entirely inside outer.
func (r DateRange) Within(outer DateRange) bool {
	return !r.start.Before(outer.start) && !r.end.After(outer.end)
}

func (r DateRange) Overlaps(other DateRange) bool {
	return !r.start.After(other.end) && !other.start.After(r.end)
}

func (r DateRange) String() string {
	return r.start.Format(dateLayout) + ".." + r.end.Format(dateLayout)
}
