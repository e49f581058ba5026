package models

import (
	"time"

	domain "github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmployeeID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PeriodStart   time.Time       `gorm:"type:date;not null"`
	PeriodEnd     time.Time       `gorm:"type:date;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"size:3;not null"`
	Reference     string          `gorm:"size:64;not null;uniqueIndex"`
	Status        string          `gorm:"size:20;not null;index"`
	FailureReason string          `gorm:"size:500"`
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func PaymentFromDomain(p *domain.PaymentHistory) *Payment {
	s := p.Snapshot()
	return &Payment{
		ID:            s.ID,
		EmployeeID:    s.EmployeeID,
		PeriodStart:   s.Period.Start(),
		PeriodEnd:     s.Period.End(),
		Amount:        s.Amount.Amount(),
		Currency:      s.Amount.Currency(),
		Reference:     s.Reference,
		Status:        string(s.Status),
		FailureReason: s.FailureReason,
		ProcessedAt:   s.ProcessedAt,
	}
}

func (m *Payment) ToDomain(opts ...domain.Option) (*domain.PaymentHistory, error) {
	period, err := domain.NewDateRange(m.PeriodStart, m.PeriodEnd)
	if err != nil {
		return nil, err
	}
	amount, err := domain.NewMoney(m.Amount, m.Currency)
	if err != nil {
		return nil, err
	}
	return domain.RestorePayment(domain.PaymentSnapshot{
		ID:            m.ID,
		EmployeeID:    m.EmployeeID,
		Period:        period,
		Amount:        amount,
		Reference:     m.Reference,
		Status:        domain.PaymentStatus(m.Status),
		FailureReason: m.FailureReason,
		ProcessedAt:   m.ProcessedAt,
	}, opts...), nil
}

type Salary struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	EmployeeID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Currency      string          `gorm:"size:3;not null"`
	EffectiveDate time.Time       `gorm:"type:date;not null;index"`
	Reason        string          `gorm:"size:30;not null"`
	Notes         string          `gorm:"size:2000"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func SalaryFromDomain(s *domain.Salary) *Salary {
	snap := s.Snapshot()
	return &Salary{
		ID:            snap.ID,
		EmployeeID:    snap.EmployeeID,
		Amount:        snap.Amount.Amount(),
		Currency:      snap.Amount.Currency(),
		EffectiveDate: snap.EffectiveDate,
		Reason:        string(snap.Reason),
		Notes:         snap.Notes,
	}
}

func (m *Salary) ToDomain(opts ...domain.Option) (*domain.Salary, error) {
	amount, err := domain.NewMoney(m.Amount, m.Currency)
	if err != nil {
		return nil, err
	}
	return domain.RestoreSalary(domain.SalarySnapshot{
		ID:            m.ID,
		EmployeeID:    m.EmployeeID,
		Amount:        amount,
		EffectiveDate: m.EffectiveDate,
		Reason:        domain.SalaryReason(m.Reason),
		Notes:         m.Notes,
	}, opts...), nil
}

type BankDetails struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmployeeID      uuid.UUID `gorm:"type:uuid;not null;index"`
	AccountHolder   string    `gorm:"size:200;not null"`
	IBAN            string    `gorm:"column:iban;size:34;not null"`
	BIC             string    `gorm:"column:bic;size:11;not null"`
	Status          string    `gorm:"size:20;not null"`
	RejectionReason string    `gorm:"size:500"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (BankDetails) TableName() string {
	return "bank_details"
}

func BankDetailsFromDomain(b *domain.BankDetails) *BankDetails {
	s := b.Snapshot()
	return &BankDetails{
		ID:              s.ID,
		EmployeeID:      s.EmployeeID,
		AccountHolder:   s.AccountHolder,
		IBAN:            s.IBAN,
		BIC:             s.BIC,
		Status:          string(s.Status),
		RejectionReason: s.RejectionReason,
	}
}

func (m *BankDetails) ToDomain(opts ...domain.Option) *domain.BankDetails {
	return domain.RestoreBankDetails(domain.BankDetailsSnapshot{
		ID:              m.ID,
		EmployeeID:      m.EmployeeID,
		AccountHolder:   m.AccountHolder,
		IBAN:            m.IBAN,
		BIC:             m.BIC,
		Status:          domain.BankDetailsStatus(m.Status),
		RejectionReason: m.RejectionReason,
	}, opts...)
}
