package models

import (
	"time"

	"github.com/google/uuid"
)

// AggregateType names the kind of aggregate that raised an event.
type AggregateType string

const (
	AggregateEmployee    AggregateType = "employee"
	AggregateDepartment  AggregateType = "department"
	AggregatePayment     AggregateType = "payment"
	AggregateSalary      AggregateType = "salary"
	AggregateBankDetails AggregateType = "bank_details"
)

// EventType identifies a domain event.
type EventType string

const (
	EmployeeCreated           EventType = "employee_created"
	EmployeeNameUpdated       EventType = "employee_name_updated"
	EmployeeSalaryUpdated     EventType = "employee_salary_updated"
	EmployeeDepartmentChanged EventType = "employee_department_changed"
	PaymentAdded              EventType = "payment_added"
	HolidayAllowanceAdjusted  EventType = "holiday_allowance_adjusted"
	ContractExtended          EventType = "contract_extended"

	DepartmentCreated         EventType = "department_created"
	DepartmentRenamed         EventType = "department_renamed"
	DepartmentEmployeeAdded   EventType = "department_employee_added"
	DepartmentEmployeeRemoved EventType = "department_employee_removed"
	SubDepartmentAdded        EventType = "sub_department_added"
	SubDepartmentRemoved      EventType = "sub_department_removed"
	DepartmentActivated       EventType = "department_activated"
	DepartmentDeactivated     EventType = "department_deactivated"

	PaymentSucceeded EventType = "payment_succeeded"
	PaymentFailed    EventType = "payment_failed"

	SalaryScheduled    EventType = "salary_scheduled"
	SalaryDeferred     EventType = "salary_deferred"
	SalaryNotesUpdated EventType = "salary_notes_updated"

	BankDetailsRegistered EventType = "bank_details_registered"
	BankDetailsVerified   EventType = "bank_details_verified"
	BankDetailsRejected   EventType = "bank_details_rejected"
)

// Event is an immutable record of a change to one aggregate.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	AggregateID   uuid.UUID         `json:"aggregate_id"`
	AggregateType AggregateType     `json:"aggregate_type"`
	Type          EventType         `json:"type"`
	Payload       map[string]string `json:"payload,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// EventLog queues events raised by an aggregate until the persistence
// boundary drains them.
type EventLog struct {
	pending []Event
}

func (l *EventLog) record(aggregateID uuid.UUID, aggregateType AggregateType, eventType EventType, at time.Time, payload map[string]string) {
	l.pending = append(l.pending, Event{
		ID:            uuid.New(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Type:          eventType,
		Payload:       payload,
		OccurredAt:    at,
	})
}

// PendingEvents returns a copy of the queued events without draining them.
func (l *EventLog) PendingEvents() []Event {
	out := make([]Event, len(l.pending))
	copy(out, l.pending)
	return out
}

// DrainEvents returns the queued events and empties the queue.
func (l *EventLog) DrainEvents() []Event {
	out := l.pending
	l.pending = nil
	return out
}
