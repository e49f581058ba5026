// Package models defines the payroll domain: value objects, the Employee and
// Department aggregates, payment, salary and bank records, and the domain
// events they raise. Nothing in this package performs I/O or logs.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// BaseHolidayAllowance is the yearly allowance of a full-time employee in days.
	BaseHolidayAllowance = 25
	// ContractorWorkingDays converts a contractor day rate into annual pay.
	ContractorWorkingDays = 260
	daysPerYear           = 365
)

// Kind tags the contract variant of an employee.
type Kind string

const (
	KindFullTime   Kind = "full_time"
	KindPartTime   Kind = "part_time"
	KindContractor Kind = "contractor"
)

// Contract is the closed set of employment variants. Only the types in this
// package implement it.
type Contract interface {
	Kind() Kind
	isContract()
}

// HolidayAdjustment is a signed change to a full-time allowance.
type HolidayAdjustment struct {
	Days   int
	Reason string
	At     time.Time
}

// FullTimeContract carries the holiday adjustments of a full-time employee.
type FullTimeContract struct {
	adjustments []HolidayAdjustment
}

func (*FullTimeContract) Kind() Kind  { return KindFullTime }
func (*FullTimeContract) isContract() {}

func (c *FullTimeContract) Adjustments() []HolidayAdjustment {
	out := make([]HolidayAdjustment, len(c.adjustments))
	copy(out, c.adjustments)
	return out
}

func (c *FullTimeContract) rawAllowance() int {
	total := BaseHolidayAllowance
	for _, adj := range c.adjustments {
		total += adj.Days
	}
	return total
}

// PartTimeContract holds the share of full-time hours, strictly between 0 and 1.
type PartTimeContract struct {
	workingHours decimal.Decimal
}

func (*PartTimeContract) Kind() Kind  { return KindPartTime }
func (*PartTimeContract) isContract() {}

func (c *PartTimeContract) WorkingHoursPercentage() decimal.Decimal { return c.workingHours }

// ContractorContract holds the engagement period and day rate of a contractor.
type ContractorContract struct {
	period    DateRange
	dailyRate Money
}

func (*ContractorContract) Kind() Kind  { return KindContractor }
func (*ContractorContract) isContract() {}

func (c *ContractorContract) Period() DateRange { return c.period }
func (c *ContractorContract) DailyRate() Money  { return c.dailyRate }

// Employee is the aggregate root for a person on the payroll.
type Employee struct {
	EventLog

	id           uuid.UUID
	name         EmployeeName
	annualPay    Money
	departmentID uuid.UUID
	contract     Contract
	payments     []*PaymentHistory
	policy       HolidayPolicy
	clock        Clock
}

// NewFullTimeEmployee validates and creates a full-time employee.
func NewFullTimeEmployee(name string, annualPay Money, dept *Department, opts ...Option) (*Employee, error) {
	if !annualPay.IsPositive() {
		return nil, fmt.Errorf("%w: annual pay must be positive", e.ErrInvalidInput)
	}
	return newEmployee(name, annualPay, dept, &FullTimeContract{}, opts)
}

// NewPartTimeEmployee validates and creates a part-time employee working the
// given share of full-time hours.
func NewPartTimeEmployee(name string, annualPay Money, dept *Department, workingHours decimal.Decimal, opts ...Option) (*Employee, error) {
	if !annualPay.IsPositive() {
		return nil, fmt.Errorf("%w: annual pay must be positive", e.ErrInvalidInput)
	}
	if !workingHours.IsPositive() || workingHours.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("%w: working hours percentage must be between 0 and 1 exclusive", e.ErrInvalidInput)
	}
	return newEmployee(name, annualPay, dept, &PartTimeContract{workingHours: workingHours}, opts)
}

// NewContractor validates and creates a contractor. Annual pay is derived
// from the day rate.
func NewContractor(name string, dailyRate Money, period DateRange, dept *Department, opts ...Option) (*Employee, error) {
	if !dailyRate.IsPositive() {
		return nil, fmt.Errorf("%w: daily rate must be positive", e.ErrInvalidInput)
	}
	if period.IsZero() {
		return nil, fmt.Errorf("%w: contract period is required", e.ErrInvalidInput)
	}
	o := buildOptions(opts)
	if period.Start().Before(normalizeDate(o.clock.Now())) {
		return nil, fmt.Errorf("%w: contract cannot start in the past", e.ErrInvalidInput)
	}
	annual := dailyRate.Mul(decimal.NewFromInt(ContractorWorkingDays))
	return newEmployee(name, annual, dept, &ContractorContract{period: period, dailyRate: dailyRate}, opts)
}

func newEmployee(name string, annualPay Money, dept *Department, contract Contract, opts []Option) (*Employee, error) {
	n, err := NewEmployeeName(name)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		return nil, fmt.Errorf("%w: department is required", e.ErrInvalidInput)
	}
	o := buildOptions(opts)
	emp := &Employee{
		id:           uuid.New(),
		name:         n,
		annualPay:    annualPay,
		departmentID: dept.ID(),
		contract:     contract,
		policy:       o.holidayPolicy,
		clock:        o.clock,
	}
	emp.raise(EmployeeCreated, map[string]string{
		"name":          n.String(),
		"kind":          string(contract.Kind()),
		"annual_pay":    annualPay.String(),
		"department_id": dept.ID().String(),
	})
	return emp, nil
}

func (emp *Employee) raise(eventType EventType, payload map[string]string) {
	emp.record(emp.id, AggregateEmployee, eventType, emp.clock.Now(), payload)
}

func (emp *Employee) ID() uuid.UUID                { return emp.id }
func (emp *Employee) Name() EmployeeName           { return emp.name }
func (emp *Employee) AnnualPay() Money             { return emp.annualPay }
func (emp *Employee) DepartmentID() uuid.UUID      { return emp.departmentID }
func (emp *Employee) Contract() Contract           { return emp.contract }
func (emp *Employee) Kind() Kind                   { return emp.contract.Kind() }
func (emp *Employee) HolidayPolicy() HolidayPolicy { return emp.policy }

// Payments returns the payment records of this employee in insertion order.
func (emp *Employee) Payments() []*PaymentHistory {
	out := make([]*PaymentHistory, len(emp.payments))
	copy(out, emp.payments)
	return out
}

// AnnualHolidayAllowance is derived from the contract variant and never stored.
func (emp *Employee) AnnualHolidayAllowance() int {
	switch c := emp.contract.(type) {
	case *FullTimeContract:
		if total := c.rawAllowance(); total > 0 {
			return total
		}
		return 0
	case *PartTimeContract:
		return int(decimal.NewFromInt(BaseHolidayAllowance).Mul(c.workingHours).Round(0).IntPart())
	case *ContractorContract:
		return 0
	default:
		panic(fmt.Sprintf("models: unknown contract %T", c))
	}
}

// CalculatePayForPeriod returns the gross pay owed for the period, rounded to
// two decimal places.
func (emp *Employee) CalculatePayForPeriod(period DateRange) (Money, error) {
	if period.IsZero() {
		return Money{}, fmt.Errorf("%w: pay period is required", e.ErrInvalidInput)
	}
	days := decimal.NewFromInt(int64(period.TotalDays()))
	prorated := func() Money {
		return Money{
			amount:   emp.annualPay.amount.Mul(days).Div(decimal.NewFromInt(daysPerYear)),
			currency: emp.annualPay.currency,
		}
	}

	switch c := emp.contract.(type) {
	case *FullTimeContract:
		return prorated().Round(2), nil
	case *PartTimeContract:
		return prorated().Mul(c.workingHours).Round(2), nil
	case *ContractorContract:
		if !period.Within(c.period) {
			return Money{}, fmt.Errorf("%w: %s is not inside contract %s", e.ErrOutsideContract, period, c.period)
		}
		return c.dailyRate.Mul(decimal.NewFromInt(int64(period.Weekdays()))).Round(2), nil
	default:
		panic(fmt.Sprintf("models: unknown contract %T", c))
	}
}

// UpdateName renames the employee.
func (emp *Employee) UpdateName(raw string) error {
	n, err := NewEmployeeName(raw)
	if err != nil {
		return err
	}
	old := emp.name
	emp.name = n
	emp.raise(EmployeeNameUpdated, map[string]string{"old_name": old.String(), "name": n.String()})
	return nil
}

// UpdateSalary replaces the pay. For a contractor amount is the new day rate
// and annual pay is recomputed from it.
func (emp *Employee) UpdateSalary(amount Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: salary must be positive", e.ErrInvalidInput)
	}
	if err := emp.annualPay.sameCurrency(amount); err != nil {
		return err
	}

	payload := map[string]string{"old_annual_pay": emp.annualPay.String()}
	if c, ok := emp.contract.(*ContractorContract); ok {
		c.dailyRate = amount
		emp.annualPay = amount.Mul(decimal.NewFromInt(ContractorWorkingDays))
		payload["daily_rate"] = amount.String()
	} else {
		emp.annualPay = amount
	}
	payload["annual_pay"] = emp.annualPay.String()
	emp.raise(EmployeeSalaryUpdated, payload)
	return nil
}

// UpdateDepartment moves the employee into dept through Department.AddEmployee,
// so the previous department, resolved through lookup, drops the membership.
func (emp *Employee) UpdateDepartment(dept *Department, lookup DepartmentLookup) error {
	if dept == nil {
		return fmt.Errorf("%w: department is required", e.ErrInvalidInput)
	}
	if dept.HasMember(emp.id) {
		return nil
	}
	return dept.AddEmployee(emp, lookup)
}

func (emp *Employee) moveTo(departmentID uuid.UUID) {
	if emp.departmentID == departmentID {
		return
	}
	old := emp.departmentID
	emp.departmentID = departmentID
	emp.raise(EmployeeDepartmentChanged, map[string]string{
		"old_department_id": old.String(),
		"department_id":     departmentID.String(),
	})
}

// AddPayment records a pending payment for a period that overlaps no earlier
// payment of this employee. An empty reference is generated.
func (emp *Employee) AddPayment(period DateRange, amount Money, reference string) (*PaymentHistory, error) {
	if period.IsZero() {
		return nil, fmt.Errorf("%w: payment period is required", e.ErrInvalidInput)
	}
	if err := emp.annualPay.sameCurrency(amount); err != nil {
		return nil, err
	}
	for _, existing := range emp.payments {
		if existing.period.Overlaps(period) {
			return nil, fmt.Errorf("%w: %s overlaps payment %s for %s",
				e.ErrOverlap, period, existing.reference, existing.period)
		}
	}

	id := uuid.New()
	if strings.TrimSpace(reference) == "" {
		reference = paymentReference(id, period)
	}
	payment, err := newPayment(id, emp.id, period, amount, reference, emp.clock)
	if err != nil {
		return nil, err
	}
	emp.payments = append(emp.payments, payment)
	emp.raise(PaymentAdded, map[string]string{
		"payment_id": payment.id.String(),
		"period":     period.String(),
		"amount":     amount.String(),
		"reference":  payment.reference,
	})
	return payment, nil
}

func paymentReference(id uuid.UUID, period DateRange) string {
	return "PAY-" + period.Start().Format("20060102") + "-" + strings.ToUpper(id.String()[:8])
}

// AddHolidayAdjustment adds a signed number of days to a full-time allowance.
func (emp *Employee) AddHolidayAdjustment(days int, reason string) error {
	c, ok := emp.contract.(*FullTimeContract)
	if !ok {
		return fmt.Errorf("%w: holiday adjustments apply to full-time employees only", e.ErrInvalidInput)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("%w: adjustment reason is required", e.ErrInvalidInput)
	}
	if emp.policy == HolidayPolicyReject && c.rawAllowance()+days < 0 {
		return fmt.Errorf("%w: adjustment would make the holiday allowance negative", e.ErrInvalidInput)
	}

	c.adjustments = append(c.adjustments, HolidayAdjustment{Days: days, Reason: reason, At: emp.clock.Now()})
	emp.raise(HolidayAllowanceAdjusted, map[string]string{
		"days":      strconv.Itoa(days),
		"reason":    reason,
		"allowance": strconv.Itoa(emp.AnnualHolidayAllowance()),
	})
	return nil
}

// ExtendContract continues a contractor's engagement. The new period must
// start on the last contract day or the day after it.
func (emp *Employee) ExtendContract(next DateRange) error {
	c, ok := emp.contract.(*ContractorContract)
	if !ok {
		return fmt.Errorf("%w: only contractors have a contract to extend", e.ErrInvalidInput)
	}
	if next.IsZero() {
		return fmt.Errorf("%w: extension period is required", e.ErrInvalidInput)
	}
	end := c.period.End()
	if next.Start().Before(end) {
		return fmt.Errorf("%w: extension %s overlaps contract %s", e.ErrInvalidInput, next, c.period)
	}
	if next.Start().After(end.AddDate(0, 0, 1)) {
		return fmt.Errorf("%w: extension %s leaves a gap after contract %s", e.ErrInvalidInput, next, c.period)
	}

	extended, err := NewDateRange(c.period.Start(), next.End())
	if err != nil {
		return err
	}
	old := c.period
	c.period = extended
	emp.raise(ContractExtended, map[string]string{"old_period": old.String(), "period": extended.String()})
	return nil
}
