package models

import (
	"fmt"
	"strings"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
)

// AccountValidator checks the format of bank identifiers. The format rules
// live outside the domain; the domain decides what to do with the answer.
type AccountValidator interface {
	IsValidIBAN(iban string) bool
	IsValidBIC(bic string) bool
}

type BankDetailsStatus string

const (
	BankStatusPending  BankDetailsStatus = "pending"
	BankStatusVerified BankDetailsStatus = "verified"
	BankStatusRejected BankDetailsStatus = "rejected"
)

// BankDetails is the account an employee is paid into.
type BankDetails struct {
	EventLog

	id              uuid.UUID
	employeeID      uuid.UUID
	accountHolder   string
	iban            string
	bic             string
	status          BankDetailsStatus
	rejectionReason string
	clock           Clock
}

// NormalizeIBAN strips spaces and upper-cases an IBAN.
func NormalizeIBAN(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

func NewBankDetails(employeeID uuid.UUID, accountHolder, iban, bic string, validator AccountValidator, opts ...Option) (*BankDetails, error) {
	if validator == nil {
		panic("models: NewBankDetails called with nil validator")
	}
	if employeeID == uuid.Nil {
		return nil, fmt.Errorf("%w: employee is required", e.ErrInvalidInput)
	}
	holder := strings.TrimSpace(accountHolder)
	if holder == "" {
		return nil, fmt.Errorf("%w: account holder is required", e.ErrInvalidInput)
	}
	iban = NormalizeIBAN(iban)
	if !validator.IsValidIBAN(iban) {
		return nil, fmt.Errorf("%w: IBAN is not valid", e.ErrInvalidInput)
	}
	bic = strings.ToUpper(strings.TrimSpace(bic))
	if !validator.IsValidBIC(bic) {
		return nil, fmt.Errorf("%w: BIC is not valid", e.ErrInvalidInput)
	}

	o := buildOptions(opts)
	b := &BankDetails{
		id:            uuid.New(),
		employeeID:    employeeID,
		accountHolder: holder,
		iban:          iban,
		bic:           bic,
		status:        BankStatusPending,
		clock:         o.clock,
	}
	b.raise(BankDetailsRegistered, map[string]string{
		"employee_id": employeeID.String(),
		"iban":        b.MaskedIBAN(),
	})
	return b, nil
}

func (b *BankDetails) raise(eventType EventType, payload map[string]string) {
	b.record(b.id, AggregateBankDetails, eventType, b.clock.Now(), payload)
}

func (b *BankDetails) ID() uuid.UUID             { return b.id }
func (b *BankDetails) EmployeeID() uuid.UUID     { return b.employeeID }
func (b *BankDetails) AccountHolder() string     { return b.accountHolder }
func (b *BankDetails) IBAN() string              { return b.iban }
func (b *BankDetails) BIC() string               { return b.bic }
func (b *BankDetails) Status() BankDetailsStatus { return b.status }
func (b *BankDetails) RejectionReason() string   { return b.rejectionReason }

// MaskedIBAN keeps the country code and the last four characters.
func (b *BankDetails) MaskedIBAN() string {
	if len(b.iban) <= 6 {
		return b.iban
	}
	return b.iban[:2] + strings.Repeat("*", len(b.iban)-6) + b.iban[len(b.iban)-4:]
}

func (b *BankDetails) Verify() error {
	if b.status != BankStatusPending {
		return fmt.Errorf("%w: bank details can only transition from pending, are %s", e.ErrInvalidTransition, b.status)
	}
	b.status = BankStatusVerified
	b.raise(BankDetailsVerified, map[string]string{"employee_id": b.employeeID.String()})
	return nil
}

func (b *BankDetails) Reject(reason string) error {
	if b.status != BankStatusPending {
		return fmt.Errorf("%w: bank details can only transition from pending, are %s", e.ErrInvalidTransition, b.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", e.ErrInvalidInput)
	}
	b.status = BankStatusRejected
	b.rejectionReason = reason
	b.raise(BankDetailsRejected, map[string]string{"employee_id": b.employeeID.String(), "reason": reason})
	return nil
}
