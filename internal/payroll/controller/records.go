package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlePayment records the outcome of a pending payment. A failed payment
// needs a reason.
func (s *PayrollService) SettlePayment(ctx context.Context, id uuid.UUID, successful bool, reason string) (*models.PaymentHistory, error) {
	var payment *models.PaymentHistory
	err := s.transact(ctx, "settle payment", func(u *unitOfWork) error {
		var err error
		if payment, err = u.tx.GetPayment(ctx, id); err != nil {
			return err
		}
		if successful {
			err = payment.MarkAsSuccessful()
		} else {
			err = payment.MarkAsFailed(reason)
		}
		if err != nil {
			return err
		}
		return u.collect(u.tx.SavePayment(ctx, payment))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment settled",
		zap.String("payment_id", id.String()),
		zap.String("status", string(payment.Status())),
	)
	return payment, nil
}

// HandleSettlement applies a settlement message from the payment provider.
func (s *PayrollService) HandleSettlement(ctx context.Context, settlement events.Settlement) error {
	_, err := s.SettlePayment(ctx, settlement.PaymentID,
		settlement.Status == events.SettlementSuccessful, settlement.Reason)
	return err
}

// NewSalary describes a scheduled salary. An empty currency uses the
// employee's pay currency.
type NewSalary struct {
	EmployeeID    uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	EffectiveDate time.Time
	Reason        models.SalaryReason
	Notes         string
}

func (s *PayrollService) ScheduleSalary(ctx context.Context, req NewSalary) (*models.Salary, error) {
	var salary *models.Salary
	err := s.transact(ctx, "schedule salary", func(u *unitOfWork) error {
		emp, err := u.tx.GetEmployee(ctx, req.EmployeeID)
		if err != nil {
			return err
		}
		currency := req.Currency
		if currency == "" {
			currency = emp.AnnualPay().Currency()
		}
		amount, err := models.NewMoney(req.Amount, currency)
		if err != nil {
			return err
		}
		if salary, err = models.NewSalary(emp.ID(), amount, req.EffectiveDate, req.Reason, req.Notes, s.opts...); err != nil {
			return err
		}
		return u.collect(u.tx.SaveSalary(ctx, salary))
	})
	if err != nil {
		return nil, err
	}
	return salary, nil
}

func (s *PayrollService) GetSalary(ctx context.Context, id uuid.UUID) (*models.Salary, error) {
	salary, err := s.repo.GetSalary(ctx, id)
	if err != nil {
		return nil, s.fail("get salary", err)
	}
	return salary, nil
}

func (s *PayrollService) updateSalary(ctx context.Context, op string, id uuid.UUID, fn func(*models.Salary) error) (*models.Salary, error) {
	var salary *models.Salary
	err := s.transact(ctx, op, func(u *unitOfWork) error {
		var err error
		if salary, err = u.tx.GetSalary(ctx, id); err != nil {
			return err
		}
		if err := fn(salary); err != nil {
			return err
		}
		return u.collect(u.tx.SaveSalary(ctx, salary))
	})
	if err != nil {
		return nil, err
	}
	return salary, nil
}

func (s *PayrollService) DeferSalary(ctx context.Context, id uuid.UUID, effectiveDate time.Time) (*models.Salary, error) {
	return s.updateSalary(ctx, "defer salary", id, func(salary *models.Salary) error {
		return salary.DeferChange(effectiveDate)
	})
}

func (s *PayrollService) UpdateSalaryNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Salary, error) {
	return s.updateSalary(ctx, "update salary notes", id, func(salary *models.Salary) error {
		return salary.UpdateNotes(notes)
	})
}

// RegisterBankDetails stores pending bank details for an existing employee.
func (s *PayrollService) RegisterBankDetails(ctx context.Context, employeeID uuid.UUID, holder, iban, bic string) (*models.BankDetails, error) {
	var details *models.BankDetails
	err := s.transact(ctx, "register bank details", func(u *unitOfWork) error {
		if _, err := u.tx.GetEmployee(ctx, employeeID); err != nil {
			return err
		}
		var err error
		if details, err = models.NewBankDetails(employeeID, holder, iban, bic, s.validator, s.opts...); err != nil {
			return err
		}
		return u.collect(u.tx.SaveBankDetails(ctx, details))
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

func (s *PayrollService) GetBankDetails(ctx context.Context, id uuid.UUID) (*models.BankDetails, error) {
	details, err := s.repo.GetBankDetails(ctx, id)
	if err != nil {
		return nil, s.fail("get bank details", err)
	}
	return details, nil
}

// VerifyBankDetails asks the bank to confirm the account and verifies or
// rejects the details with its answer. The bank is called outside the
// transaction.
func (s *PayrollService) VerifyBankDetails(ctx context.Context, id uuid.UUID) (*models.BankDetails, error) {
	if s.bank == nil {
		return nil, errors.New("bank verification is not configured")
	}
	details, err := s.repo.GetBankDetails(ctx, id)
	if err != nil {
		return nil, s.fail("verify bank details", err)
	}
	if details.Status() != models.BankStatusPending {
		return nil, fmt.Errorf("%w: bank details are already %s", e.ErrInvalidTransition, details.Status())
	}

	verdict, err := s.bank.VerifyAccount(ctx, details.IBAN(), details.AccountHolder())
	if err != nil {
		s.logger.Error("Bank verification failed",
			zap.Error(err),
			zap.String("bank_details_id", id.String()),
			zap.String("iban", details.MaskedIBAN()),
		)
		return nil, fmt.Errorf("failed to verify bank details: %w", err)
	}

	return s.updateBankDetails(ctx, "verify bank details", id, func(b *models.BankDetails) error {
		if verdict.Verified {
			return b.Verify()
		}
		reason := verdict.Reason
		if reason == "" {
			reason = "rejected by bank"
		}
		return b.Reject(reason)
	})
}

func (s *PayrollService) RejectBankDetails(ctx context.Context, id uuid.UUID, reason string) (*models.BankDetails, error) {
	return s.updateBankDetails(ctx, "reject bank details", id, func(b *models.BankDetails) error {
		return b.Reject(reason)
	})
}

func (s *PayrollService) updateBankDetails(ctx context.Context, op string, id uuid.UUID, fn func(*models.BankDetails) error) (*models.BankDetails, error) {
	var details *models.BankDetails
	err := s.transact(ctx, op, func(u *unitOfWork) error {
		var err error
		if details, err = u.tx.GetBankDetails(ctx, id); err != nil {
			return err
		}
		if err := fn(details); err != nil {
			return err
		}
		return u.collect(u.tx.SaveBankDetails(ctx, details))
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}
