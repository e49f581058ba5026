package controller

import (
	"context"
	"fmt"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NewEmployee describes an employee to hire. AnnualPay is ignored for
// contractors, whose pay derives from DailyRate.
type NewEmployee struct {
	Name                   string
	Kind                   models.Kind
	DepartmentID           uuid.UUID
	AnnualPay              decimal.Decimal
	Currency               string
	WorkingHoursPercentage decimal.Decimal
	DailyRate              decimal.Decimal
	ContractPeriod         models.DateRange
}

// CreateEmployee hires an employee into an active department.
func (s *PayrollService) CreateEmployee(ctx context.Context, req NewEmployee) (*models.Employee, error) {
	var emp *models.Employee
	err := s.transact(ctx, "create employee", func(u *unitOfWork) error {
		dept, err := u.tx.GetDepartment(ctx, req.DepartmentID)
		if err != nil {
			return err
		}

		switch req.Kind {
		case models.KindFullTime, models.KindPartTime:
			pay, err := s.money(req.AnnualPay, req.Currency)
			if err != nil {
				return err
			}
			if req.Kind == models.KindFullTime {
				emp, err = models.NewFullTimeEmployee(req.Name, pay, dept, s.opts...)
			} else {
				emp, err = models.NewPartTimeEmployee(req.Name, pay, dept, req.WorkingHoursPercentage, s.opts...)
			}
			if err != nil {
				return err
			}
		case models.KindContractor:
			rate, err := s.money(req.DailyRate, req.Currency)
			if err != nil {
				return err
			}
			if emp, err = models.NewContractor(req.Name, rate, req.ContractPeriod, dept, s.opts...); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown employee kind %q", e.ErrInvalidInput, req.Kind)
		}

		if err := dept.AddEmployee(emp, models.NewOrgChart(dept)); err != nil {
			return err
		}
		if err := u.saveEmployee(ctx, emp); err != nil {
			return err
		}
		return u.saveDepartments(ctx, dept)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Employee created",
		zap.String("employee_id", emp.ID().String()),
		zap.String("kind", string(emp.Kind())),
		zap.String("department_id", emp.DepartmentID().String()),
	)
	return emp, nil
}

func (s *PayrollService) GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	emp, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return nil, s.fail("get employee", err)
	}
	return emp, nil
}

// updateEmployee loads one employee, applies fn and saves it.
func (s *PayrollService) updateEmployee(ctx context.Context, op string, id uuid.UUID, fn func(*models.Employee) error) (*models.Employee, error) {
	var emp *models.Employee
	err := s.transact(ctx, op, func(u *unitOfWork) error {
		var err error
		if emp, err = u.tx.GetEmployee(ctx, id); err != nil {
			return err
		}
		if err := fn(emp); err != nil {
			return err
		}
		return u.saveEmployee(ctx, emp)
	})
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (s *PayrollService) RenameEmployee(ctx context.Context, id uuid.UUID, name string) (*models.Employee, error) {
	return s.updateEmployee(ctx, "rename employee", id, func(emp *models.Employee) error {
		return emp.UpdateName(name)
	})
}

// ChangeSalary sets the annual pay, or the daily rate of a contractor, in
// the employee's pay currency.
func (s *PayrollService) ChangeSalary(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Employee, error) {
	return s.updateEmployee(ctx, "change salary", id, func(emp *models.Employee) error {
		pay, err := models.NewMoney(amount, emp.AnnualPay().Currency())
		if err != nil {
			return err
		}
		return emp.UpdateSalary(pay)
	})
}

func (s *PayrollService) AdjustHoliday(ctx context.Context, id uuid.UUID, days int, reason string) (*models.Employee, error) {
	return s.updateEmployee(ctx, "adjust holiday", id, func(emp *models.Employee) error {
		return emp.AddHolidayAdjustment(days, reason)
	})
}

func (s *PayrollService) ExtendContract(ctx context.Context, id uuid.UUID, next models.DateRange) (*models.Employee, error) {
	return s.updateEmployee(ctx, "extend contract", id, func(emp *models.Employee) error {
		return emp.ExtendContract(next)
	})
}

// TransferEmployee moves an employee between departments. Leaving the old
// department and joining the new one commit together.
func (s *PayrollService) TransferEmployee(ctx context.Context, id, departmentID uuid.UUID) (*models.Employee, error) {
	var emp *models.Employee
	err := s.transact(ctx, "transfer employee", func(u *unitOfWork) error {
		var err error
		if emp, err = u.tx.GetEmployee(ctx, id); err != nil {
			return err
		}
		if emp.DepartmentID() == departmentID {
			return fmt.Errorf("%w: employee already belongs to department %s", e.ErrInvalidInput, departmentID)
		}
		target, err := u.tx.GetDepartment(ctx, departmentID)
		if err != nil {
			return err
		}

		current, err := u.tx.GetDepartment(ctx, emp.DepartmentID())
		if err != nil {
			return err
		}

		if err := emp.UpdateDepartment(target, models.NewOrgChart(current, target)); err != nil {
			return err
		}
		if err := u.saveEmployee(ctx, emp); err != nil {
			return err
		}
		return u.saveDepartments(ctx, current, target)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Employee transferred",
		zap.String("employee_id", id.String()),
		zap.String("department_id", departmentID.String()),
	)
	return emp, nil
}

// QuotePay calculates what the employee earns for a period without
// recording anything.
func (s *PayrollService) QuotePay(ctx context.Context, id uuid.UUID, period models.DateRange) (models.Money, error) {
	emp, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return models.Money{}, s.fail("quote pay", err)
	}
	pay, err := emp.CalculatePayForPeriod(period)
	if err != nil {
		return models.Money{}, s.fail("quote pay", err)
	}
	return pay, nil
}

// RecordPayment adds a pending payment. A nil amount pays the calculated
// amount for the period.
func (s *PayrollService) RecordPayment(ctx context.Context, id uuid.UUID, period models.DateRange, amount *decimal.Decimal, reference string) (*models.PaymentHistory, error) {
	var payment *models.PaymentHistory
	_, err := s.updateEmployee(ctx, "record payment", id, func(emp *models.Employee) error {
		quote, err := emp.CalculatePayForPeriod(period)
		if err != nil {
			return err
		}
		paid := quote
		if amount != nil {
			if paid, err = models.NewMoney(*amount, quote.Currency()); err != nil {
				return err
			}
			if over, _ := paid.GreaterThan(quote); over {
				s.logger.Warn("Payment exceeds calculated pay",
					zap.String("employee_id", id.String()),
					zap.String("amount", paid.String()),
					zap.String("calculated", quote.String()),
				)
			}
		}
		payment, err = emp.AddPayment(period, paid, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}
