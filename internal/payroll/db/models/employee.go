// Package models contains the GORM row types of the payroll store and their
// mapping to and from the domain aggregates.
package models

import (
	"time"

	domain "github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Employee is the stored form of an employee aggregate. Variant columns are
// null for the variants that do not use them.
type Employee struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Name          string              `gorm:"size:100;not null"`
	Kind          string              `gorm:"size:20;not null;index"`
	AnnualPay     decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Currency      string              `gorm:"size:3;not null"`
	DepartmentID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	WorkingHours  decimal.NullDecimal `gorm:"type:decimal(5,4)"`
	DailyRate     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	ContractStart *time.Time          `gorm:"type:date"`
	ContractEnd   *time.Time          `gorm:"type:date"`
	HolidayPolicy string              `gorm:"size:10;not null;default:'clamp'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HolidayAdjustment is one signed change to a full-time allowance.
type HolidayAdjustment struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;index"`
	Days       int       `gorm:"not null"`
	Reason     string    `gorm:"size:500;not null"`
	At         time.Time `gorm:"not null"`
}

// EmployeeFromDomain builds the employee row and its adjustment rows.
func EmployeeFromDomain(emp *domain.Employee) (*Employee, []HolidayAdjustment) {
	s := emp.Snapshot()
	row := &Employee{
		ID:            s.ID,
		Name:          s.Name,
		Kind:          string(s.Kind),
		AnnualPay:     s.AnnualPay.Amount(),
		Currency:      s.AnnualPay.Currency(),
		DepartmentID:  s.DepartmentID,
		HolidayPolicy: string(s.HolidayPolicy),
	}
	switch s.Kind {
	case domain.KindPartTime:
		row.WorkingHours = decimal.NewNullDecimal(s.WorkingHoursPercentage)
	case domain.KindContractor:
		row.DailyRate = decimal.NewNullDecimal(s.DailyRate.Amount())
		start, end := s.ContractPeriod.Start(), s.ContractPeriod.End()
		row.ContractStart, row.ContractEnd = &start, &end
	}

	adjustments := make([]HolidayAdjustment, len(s.Adjustments))
	for i, adj := range s.Adjustments {
		adjustments[i] = HolidayAdjustment{EmployeeID: s.ID, Days: adj.Days, Reason: adj.Reason, At: adj.At}
	}
	return row, adjustments
}

// ToDomain rehydrates the aggregate from its rows without re-running
// creation rules.
func (m *Employee) ToDomain(adjustments []HolidayAdjustment, payments []*domain.PaymentHistory, opts ...domain.Option) (*domain.Employee, error) {
	annual, err := domain.NewMoney(m.AnnualPay, m.Currency)
	if err != nil {
		return nil, err
	}
	s := domain.EmployeeSnapshot{
		ID:            m.ID,
		Name:          m.Name,
		Kind:          domain.Kind(m.Kind),
		AnnualPay:     annual,
		DepartmentID:  m.DepartmentID,
		Payments:      payments,
		HolidayPolicy: domain.HolidayPolicy(m.HolidayPolicy),
	}
	if m.WorkingHours.Valid {
		s.WorkingHoursPercentage = m.WorkingHours.Decimal
	}
	if m.DailyRate.Valid {
		rate, err := domain.NewMoney(m.DailyRate.Decimal, m.Currency)
		if err != nil {
			return nil, err
		}
		s.DailyRate = rate
	}
	if m.ContractStart != nil && m.ContractEnd != nil {
		period, err := domain.NewDateRange(*m.ContractStart, *m.ContractEnd)
		if err != nil {
			return nil, err
		}
		s.ContractPeriod = period
	}
	for _, adj := range adjustments {
		s.Adjustments = append(s.Adjustments, domain.HolidayAdjustment{Days: adj.Days, Reason: adj.Reason, At: adj.At})
	}
	return domain.RestoreEmployee(s, opts...)
}
