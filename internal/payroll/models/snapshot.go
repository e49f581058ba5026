package models

import (
	"fmt"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshots carry stored state in and out of aggregates. Restoring from a
// snapshot skips creation rules and queues no events.

type EmployeeSnapshot struct {
	ID                     uuid.UUID
	Name                   string
	Kind                   Kind
	AnnualPay              Money
	DepartmentID           uuid.UUID
	WorkingHoursPercentage decimal.Decimal
	DailyRate              Money
	ContractPeriod         DateRange
	Adjustments            []HolidayAdjustment
	Payments               []*PaymentHistory
	HolidayPolicy          HolidayPolicy
}

func (emp *Employee) Snapshot() EmployeeSnapshot {
	s := EmployeeSnapshot{
		ID:            emp.id,
		Name:          emp.name.String(),
		Kind:          emp.Kind(),
		AnnualPay:     emp.annualPay,
		DepartmentID:  emp.departmentID,
		Payments:      emp.Payments(),
		HolidayPolicy: emp.policy,
	}
	switch c := emp.contract.(type) {
	case *FullTimeContract:
		s.Adjustments = c.Adjustments()
	case *PartTimeContract:
		s.WorkingHoursPercentage = c.workingHours
	case *ContractorContract:
		s.DailyRate = c.dailyRate
		s.ContractPeriod = c.period
	}
	return s
}

// RestoreEmployee rebuilds an employee from stored state.
func RestoreEmployee(s EmployeeSnapshot, opts ...Option) (*Employee, error) {
	var contract Contract
	switch s.Kind {
	case KindFullTime:
		adjustments := make([]HolidayAdjustment, len(s.Adjustments))
		copy(adjustments, s.Adjustments)
		contract = &FullTimeContract{adjustments: adjustments}
	case KindPartTime:
		contract = &PartTimeContract{workingHours: s.WorkingHoursPercentage}
	case KindContractor:
		contract = &ContractorContract{period: s.ContractPeriod, dailyRate: s.DailyRate}
	default:
		return nil, fmt.Errorf("%w: unknown employee kind %q", e.ErrInvalidInput, s.Kind)
	}
	// A stored policy beats the caller's default; WithHolidayPolicy ignores "".
	o := buildOptions(append(opts[:len(opts):len(opts)], WithHolidayPolicy(s.HolidayPolicy)))
	payments := make([]*PaymentHistory, len(s.Payments))
	copy(payments, s.Payments)
	return &Employee{
		id:           s.ID,
		name:         EmployeeName{value: s.Name},
		annualPay:    s.AnnualPay,
		departmentID: s.DepartmentID,
		contract:     contract,
		payments:     payments,
		policy:       o.holidayPolicy,
		clock:        o.clock,
	}, nil
}

type DepartmentSnapshot struct {
	ID             uuid.UUID
	Name           string
	Active         bool
	ParentID       uuid.UUID
	Members        []uuid.UUID
	SubDepartments []uuid.UUID
}

func (d *Department) Snapshot() DepartmentSnapshot {
	return DepartmentSnapshot{
		ID:             d.id,
		Name:           d.name.String(),
		Active:         d.active,
		ParentID:       d.parentID,
		Members:        d.Members(),
		SubDepartments: d.SubDepartments(),
	}
}

func RestoreDepartment(s DepartmentSnapshot, opts ...Option) *Department {
	o := buildOptions(opts)
	d := &Department{
		id:       s.ID,
		name:     DepartmentName{value: s.Name},
		active:   s.Active,
		parentID: s.ParentID,
		members:  make(map[uuid.UUID]struct{}, len(s.Members)),
		subs:     make(map[uuid.UUID]struct{}, len(s.SubDepartments)),
		clock:    o.clock,
	}
	for _, id := range s.Members {
		d.members[id] = struct{}{}
	}
	for _, id := range s.SubDepartments {
		d.subs[id] = struct{}{}
	}
	return d
}

type PaymentSnapshot struct {
	ID            uuid.UUID
	EmployeeID    uuid.UUID
	Period        DateRange
	Amount        Money
	Reference     string
	Status        PaymentStatus
	FailureReason string
	ProcessedAt   *time.Time
}

func (p *PaymentHistory) Snapshot() PaymentSnapshot {
	return PaymentSnapshot{
		ID:            p.id,
		EmployeeID:    p.employeeID,
		Period:        p.period,
		Amount:        p.amount,
		Reference:     p.reference,
		Status:        p.status,
		FailureReason: p.failureReason,
		ProcessedAt:   p.processedAt,
	}
}

func RestorePayment(s PaymentSnapshot, opts ...Option) *PaymentHistory {
	o := buildOptions(opts)
	return &PaymentHistory{
		id:            s.ID,
		employeeID:    s.EmployeeID,
		period:        s.Period,
		amount:        s.Amount,
		reference:     s.Reference,
		status:        s.Status,
		failureReason: s.FailureReason,
		processedAt:   s.ProcessedAt,
		clock:         o.clock,
	}
}

type SalarySnapshot struct {
	ID            uuid.UUID
	EmployeeID    uuid.UUID
	Amount        Money
	EffectiveDate time.Time
	Reason        SalaryReason
	Notes         string
}

func (s *Salary) Snapshot() SalarySnapshot {
	return SalarySnapshot{
		ID:            s.id,
		EmployeeID:    s.employeeID,
		Amount:        s.amount,
		EffectiveDate: s.effectiveDate,
		Reason:        s.reason,
		Notes:         s.notes,
	}
}

func RestoreSalary(s SalarySnapshot, opts ...Option) *Salary {
	o := buildOptions(opts)
	return &Salary{
		id:            s.ID,
		employeeID:    s.EmployeeID,
		amount:        s.Amount,
		effectiveDate: normalizeDate(s.EffectiveDate),
		reason:        s.Reason,
		notes:         s.Notes,
		clock:         o.clock,
	}
}

type BankDetailsSnapshot struct {
	ID              uuid.UUID
	EmployeeID      uuid.UUID
	AccountHolder   string
	IBAN            string
	BIC             string
	Status          BankDetailsStatus
	RejectionReason string
}

func (b *BankDetails) Snapshot() BankDetailsSnapshot {
	return BankDetailsSnapshot{
		ID:              b.id,
		EmployeeID:      b.employeeID,
		AccountHolder:   b.accountHolder,
		IBAN:            b.iban,
		BIC:             b.bic,
		Status:          b.status,
		RejectionReason: b.rejectionReason,
	}
}

func RestoreBankDetails(s BankDetailsSnapshot, opts ...Option) *BankDetails {
	o := buildOptions(opts)
	return &BankDetails{
		id:              s.ID,
		employeeID:      s.EmployeeID,
		accountHolder:   s.AccountHolder,
		iban:            s.IBAN,
		bic:             s.BIC,
		status:          s.Status,
		rejectionReason: s.RejectionReason,
		clock:           o.clock,
	}
}
