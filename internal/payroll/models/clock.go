package models

import "time"

// Clock provides the current time to aggregates.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// HolidayPolicy decides what happens when holiday adjustments would push a
// full-time allowance below zero.
type HolidayPolicy string

const (
	// HolidayPolicyClamp accepts every adjustment and floors the allowance at zero.
	HolidayPolicyClamp HolidayPolicy = "clamp"
	// HolidayPolicyReject refuses an adjustment that would make the allowance negative.
	HolidayPolicyReject HolidayPolicy = "reject"
)

// ParseHolidayPolicy maps a configuration value to a policy. Empty means clamp.
func ParseHolidayPolicy(raw string) (HolidayPolicy, bool) {
	switch HolidayPolicy(raw) {
	case "", HolidayPolicyClamp:
		return HolidayPolicyClamp, true
	case HolidayPolicyReject:
		return HolidayPolicyReject, true
	default:
		return "", false
	}
}

type options struct {
	clock         Clock
	holidayPolicy HolidayPolicy
}

// Option customises how an aggregate is constructed or restored.
type Option func(*options)

// WithClock overrides the clock used for validation and event timestamps.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithHolidayPolicy sets the allowance policy of a full-time employee.
func WithHolidayPolicy(policy HolidayPolicy) Option {
	return func(o *options) {
		if policy != "" {
			o.holidayPolicy = policy
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}, holidayPolicy: HolidayPolicyClamp}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
