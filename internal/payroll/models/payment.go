package models

import (
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// PaymentHistory is an append-only record of money paid to an employee for a
// period. It leaves Pending exactly once.
type PaymentHistory struct {
	EventLog

	id            uuid.UUID
	employeeID    uuid.UUID
	period        DateRange
	amount        Money
	reference     string
	status        PaymentStatus
	failureReason string
	processedAt   *time.Time
	clock         Clock
}

// NewPayment creates a pending payment outside of an Employee aggregate.
// Employee.AddPayment is the usual entry point since it also guards overlap.
func NewPayment(employeeID uuid.UUID, period DateRange, amount Money, reference string, opts ...Option) (*PaymentHistory, error) {
	o := buildOptions(opts)
	return newPayment(uuid.New(), employeeID, period, amount, reference, o.clock)
}

func newPayment(id, employeeID uuid.UUID, period DateRange, amount Money, reference string, clock Clock) (*PaymentHistory, error) {
	if employeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	if period.IsZero() {
		return nil, fmt.Errorf("%w: payment period is required", e.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", e.ErrInvalidInput)
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", e.ErrInvalidInput)
	}
	return &PaymentHistory{
		id:         id,
		employeeID: employeeID,
		period:     period,
		amount:     amount,
		reference:  reference,
		status:     PaymentStatusPending,
		clock:      clock,
	}, nil
}

func (p *PaymentHistory) raise(eventType EventType, payload map[string]string) {
	p.record(p.id, AggregatePayment, eventType, p.clock.Now(), payload)
}

func (p *PaymentHistory) ID() uuid.UUID           { return p.id }
func (p *PaymentHistory) EmployeeID() uuid.UUID   { return p.employeeID }
func (p *PaymentHistory) Period() DateRange       { return p.period }
func (p *PaymentHistory) Amount() Money           { return p.amount }
func (p *PaymentHistory) Reference() string       { return p.reference }
func (p *PaymentHistory) Status() PaymentStatus   { return p.status }
func (p *PaymentHistory) FailureReason() string   { return p.failureReason }
func (p *PaymentHistory) ProcessedAt() *time.Time { return p.processedAt }

func (p *PaymentHistory) MarkAsSuccessful() error {
	if p.status != PaymentStatusPending {
		return fmt.Errorf("%w: payment %s can only transition from pending, is %s", e.ErrInvalidTransition, p.reference, p.status)
	}
	now := p.clock.Now()
	p.status = PaymentStatusSuccessful
	p.processedAt = &now
	p.raise(PaymentSucceeded, map[string]string{"employee_id": p.employeeID.String(), "reference": p.reference})
	return nil
}

func (p *PaymentHistory) MarkAsFailed(reason string) error {
	if p.status != PaymentStatusPending {
		return fmt.Errorf("%w: payment %s can only transition from pending, is %s", e.ErrInvalidTransition, p.reference, p.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: failure reason is required", e.ErrInvalidInput)
	}
	now := p.clock.Now()
	p.status = PaymentStatusFailed
	p.failureReason = reason
	p.processedAt = &now
	p.raise(PaymentFailed, map[string]string{
		"employee_id": p.employeeID.String(),
		"reference":   p.reference,
		"reason":      reason,
	})
	return nil
}
