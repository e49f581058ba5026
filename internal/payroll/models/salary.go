package models

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
)

// SalaryReason explains why a salary record was created.
type SalaryReason string

const (
	ReasonAnnualReview        SalaryReason = "annual_review"
	ReasonPromotion           SalaryReason = "promotion"
	ReasonMarketAdjustment    SalaryReason = "market_adjustment"
	ReasonPerformanceIncrease SalaryReason = "performance_increase"
	ReasonRoleChange          SalaryReason = "role_change"
	ReasonCorrection          SalaryReason = "correction"
	ReasonOther               SalaryReason = "other"
)

func ParseSalaryReason(raw string) (SalaryReason, error) {
	switch r := SalaryReason(strings.ToLower(strings.TrimSpace(raw))); r {
	case ReasonAnnualReview, ReasonPromotion, ReasonMarketAdjustment, ReasonPerformanceIncrease,
		ReasonRoleChange, ReasonCorrection, ReasonOther:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown salary reason %q", e.ErrInvalidInput, raw)
	}
}

// Salary is a scheduled pay level that takes effect on a date.
type Salary struct {
	EventLog

	id            uuid.UUID
	employeeID    uuid.UUID
	amount        Money
	effectiveDate time.Time
	reason        SalaryReason
	notes         string
	clock         Clock
}

// NewSalary schedules a salary. The effective date may be today but not earlier.
func NewSalary(employeeID uuid.UUID, amount Money, effectiveDate time.Time, reason SalaryReason, notes string, opts ...Option) (*Salary, error) {
	if employeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: salary amount must be positive", e.ErrInvalidInput)
	}
	if _, err := ParseSalaryReason(string(reason)); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	effective := normalizeDate(effectiveDate)
	if effective.IsZero() {
		return nil, fmt.Errorf("%w: effective date is required", e.ErrInvalidInput)
	}
	if effective.Before(normalizeDate(o.clock.Now())) {
		return nil, fmt.Errorf("%w: effective date must not be in the past", e.ErrInvalidInput)
	}
	s := &Salary{
		id:            uuid.New(),
		employeeID:    employeeID,
		amount:        amount,
		effectiveDate: effective,
		reason:        reason,
		notes:         strings.TrimSpace(notes),
		clock:         o.clock,
	}
	s.raise(SalaryScheduled, map[string]string{
		"employee_id":    employeeID.String(),
		"amount":         amount.String(),
		"effective_date": effective.Format(dateLayout),
		"reason":         string(reason),
	})
	return s, nil
}

func (s *Salary) raise(eventType EventType, payload map[string]string) {
	s.record(s.id, AggregateSalary, eventType, s.clock.Now(), payload)
}

func (s *Salary) ID() uuid.UUID            { return s.id }
func (s *Salary) EmployeeID() uuid.UUID    { return s.employeeID }
func (s *Salary) Amount() Money            { return s.amount }
func (s *Salary) EffectiveDate() time.Time { return s.effectiveDate }
func (s *Salary) Reason() SalaryReason     { return s.reason }
func (s *Salary) Notes() string            { return s.notes }

// IsActive reports whether the effective date has been reached.
func (s *Salary) IsActive() bool {
	return !s.effectiveDate.After(s.clock.Now())
}

// DeferChange moves a salary that has not taken effect yet.
func (s *Salary) DeferChange(newDate time.Time) error {
	if s.IsActive() {
		return fmt.Errorf("%w: salary is already in effect", e.ErrInvalidTransition)
	}
	next := normalizeDate(newDate)
	if next.IsZero() || next.Before(normalizeDate(s.clock.Now())) {
		return fmt.Errorf("%w: new effective date must not be in the past", e.ErrInvalidInput)
	}
	old := s.effectiveDate
	s.effectiveDate = next
	s.raise(SalaryDeferred, map[string]string{
		"old_effective_date": old.Format(dateLayout),
		"effective_date":     next.Format(dateLayout),
	})
	return nil
}

func (s *Salary) UpdateNotes(notes string) error {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return fmt.Errorf("%w: notes must not be empty", e.ErrInvalidInput)
	}
	s.notes = notes
	s.raise(SalaryNotesUpdated, map[string]string{"notes": notes})
	return nil
}
