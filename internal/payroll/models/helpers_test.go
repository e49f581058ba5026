package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2027, 2, 1, 9, 0, 0, 0, time.UTC)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustRange(t *testing.T, start, end time.Time) DateRange {
	t.Helper()
	r, err := NewDateRange(start, end)
	require.NoError(t, err)
	return r
}

func mustDepartment(t *testing.T, name string, clock Clock) *Department {
	t.Helper()
	d, err := NewDepartment(name, nil, WithClock(clock))
	require.NoError(t, err)
	return d
}
