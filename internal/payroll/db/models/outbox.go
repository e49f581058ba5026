package models

import (
	"encoding/json"
	"time"

	domain "github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
)

// OutboxEvent stores a drained domain event until it has been published.
type OutboxEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AggregateID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	AggregateType string     `gorm:"size:30;not null"`
	Type          string     `gorm:"size:60;not null"`
	Payload       string     `gorm:"type:text"`
	OccurredAt    time.Time  `gorm:"not null;index"`
	PublishedAt   *time.Time `gorm:"index"`
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

func OutboxFromDomain(ev domain.Event) (*OutboxEvent, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:            ev.ID,
		AggregateID:   ev.AggregateID,
		AggregateType: string(ev.AggregateType),
		Type:          string(ev.Type),
		Payload:       string(payload),
		OccurredAt:    ev.OccurredAt,
	}, nil
}

func (m *OutboxEvent) ToDomain() (domain.Event, error) {
	var payload map[string]string
	if m.Payload != "" {
		if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
			return domain.Event{}, err
		}
	}
	return domain.Event{
		ID:            m.ID,
		AggregateID:   m.AggregateID,
		AggregateType: domain.AggregateType(m.AggregateType),
		Type:          domain.EventType(m.Type),
		Payload:       payload,
		OccurredAt:    m.OccurredAt,
	}, nil
}

// All lists every row type for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Employee{},
		&HolidayAdjustment{},
		&Department{},
		&Membership{},
		&Payment{},
		&Salary{},
		&BankDetails{},
		&OutboxEvent{},
	}
}
