package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gartstein/payroll/internal/payroll/banking"
	"github.com/gartstein/payroll/internal/payroll/db"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/events"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/gartstein/payroll/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testClock = fixedClock{now: time.Date(2027, 2, 1, 9, 0, 0, 0, time.UTC)}

// MockProducer records produced events.
type MockProducer struct {
	mu     sync.Mutex
	events []models.Event
}

func (m *MockProducer) Produce(event models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *MockProducer) types() []models.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.EventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

func (m *MockProducer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// MockBank answers verification requests with a fixed verdict.
type MockBank struct {
	verdict banking.Verdict
	err     error
	calls   int
}

func (m *MockBank) VerifyAccount(_ context.Context, _, _ string) (banking.Verdict, error) {
	m.calls++
	return m.verdict, m.err
}

type fixture struct {
	service  *PayrollService
	repo     *db.Repository
	producer *MockProducer
	bank     *MockBank
}

func setup(t *testing.T, policy models.HolidayPolicy) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	repo, err := db.Open(sqlite.Open(dsn), models.WithClock(testClock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	producer := &MockProducer{}
	bank := &MockBank{verdict: banking.Verdict{Verified: true}}
	service := NewPayrollService(repo, producer, bank, Config{
		Currency:      "GBP",
		HolidayPolicy: policy,
		Clock:         testClock,
	}, zaptest.NewLogger(t))
	return &fixture{service: service, repo: repo, producer: producer, bank: bank}
}

func (f *fixture) department(t *testing.T, name string, parent *uuid.UUID) *models.Department {
	t.Helper()
	d, err := f.service.CreateDepartment(context.Background(), name, parent)
	require.NoError(t, err)
	return d
}

func (f *fixture) fullTime(t *testing.T, name string, deptID uuid.UUID, pay string) *models.Employee {
	t.Helper()
	emp, err := f.service.CreateEmployee(context.Background(), NewEmployee{
		Name:         name,
		Kind:         models.KindFullTime,
		DepartmentID: deptID,
		AnnualPay:    decimal.RequireFromString(pay),
	})
	require.NoError(t, err)
	return emp
}

func period(t *testing.T, start, end string) models.DateRange {
	t.Helper()
	r, err := models.ParseDateRange(start, end)
	require.NoError(t, err)
	return r
}

func TestPayrollService_CreateEmployee(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "Engineering", nil)
	inactive := f.department(t, "Archive", nil)
	_, err := f.service.SetDepartmentActive(ctx, inactive.ID(), false)
	require.NoError(t, err)

	tests := []struct {
		name          string
		input         NewEmployee
		expectedError error
		check         func(t *testing.T, emp *models.Employee)
	}{
		{
			name: "full time in default currency",
			input: NewEmployee{
				Name: "Alice", Kind: models.KindFullTime, DepartmentID: dept.ID(),
				AnnualPay: decimal.RequireFromString("52000"),
			},
			check: func(t *testing.T, emp *models.Employee) {
				assert.Equal(t, "52000.00 GBP", emp.AnnualPay().String())
				assert.Equal(t, 25, emp.AnnualHolidayAllowance())
			},
		},
		{
			name: "part time",
			input: NewEmployee{
				Name: "Bob", Kind: models.KindPartTime, DepartmentID: dept.ID(),
				AnnualPay: decimal.RequireFromString("30000"), Currency: "EUR",
				WorkingHoursPercentage: decimal.RequireFromString("0.5"),
			},
			check: func(t *testing.T, emp *models.Employee) {
				assert.Equal(t, "EUR", emp.AnnualPay().Currency())
				assert.Equal(t, 13, emp.AnnualHolidayAllowance())
			},
		},
		{
			name: "contractor",
			input: NewEmployee{
				Name: "Carol", Kind: models.KindContractor, DepartmentID: dept.ID(),
				DailyRate: decimal.RequireFromString("400"), ContractPeriod: period(t, "2027-03-01", "2027-03-31"),
			},
			check: func(t *testing.T, emp *models.Employee) {
				assert.Equal(t, "104000.00 GBP", emp.AnnualPay().String())
				assert.Equal(t, 0, emp.AnnualHolidayAllowance())
			},
		},
		{
			name: "unknown kind",
			input: NewEmployee{
				Name: "Dan", Kind: models.Kind("intern"), DepartmentID: dept.ID(),
				AnnualPay: decimal.RequireFromString("1000"),
			},
			expectedError: e.ErrInvalidInput,
		},
		{
			name: "missing department",
			input: NewEmployee{
				Name: "Eve", Kind: models.KindFullTime, DepartmentID: uuid.New(),
				AnnualPay: decimal.RequireFromString("1000"),
			},
			expectedError: e.ErrNotFound,
		},
		{
			name: "inactive department",
			input: NewEmployee{
				Name: "Finn", Kind: models.KindFullTime, DepartmentID: inactive.ID(),
				AnnualPay: decimal.RequireFromString("1000"),
			},
			expectedError: e.ErrInvalidInput,
		},
		{
			name: "blank name",
			input: NewEmployee{
				Name: "   ", Kind: models.KindFullTime, DepartmentID: dept.ID(),
				AnnualPay: decimal.RequireFromString("1000"),
			},
			expectedError: e.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.producer.reset()
			emp, err := f.service.CreateEmployee(ctx, tt.input)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, f.producer.types(), "failed operations must not publish")
				return
			}
			require.NoError(t, err)
			tt.check(t, emp)
			assert.Equal(t,
				[]models.EventType{models.EmployeeCreated, models.DepartmentEmployeeAdded},
				f.producer.types())

			stored, err := f.service.GetDepartment(ctx, dept.ID())
			require.NoError(t, err)
			assert.True(t, stored.HasMember(emp.ID()))
		})
	}
}

func TestPayrollService_TransferEmployee(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	from := f.department(t, "Support", nil)
	to := f.department(t, "Sales", nil)
	emp := f.fullTime(t, "Alice", from.ID(), "40000")
	f.producer.reset()

	moved, err := f.service.TransferEmployee(ctx, emp.ID(), to.ID())
	require.NoError(t, err)
	assert.Equal(t, to.ID(), moved.DepartmentID())
	assert.ElementsMatch(t, []models.EventType{
		models.EmployeeDepartmentChanged,
		models.DepartmentEmployeeRemoved,
		models.DepartmentEmployeeAdded,
	}, f.producer.types())

	oldDept, err := f.service.GetDepartment(ctx, from.ID())
	require.NoError(t, err)
	assert.False(t, oldDept.HasMember(emp.ID()))
	newDept, err := f.service.GetDepartment(ctx, to.ID())
	require.NoError(t, err)
	assert.True(t, newDept.HasMember(emp.ID()))

	employees, err := f.service.ListDepartmentEmployees(ctx, to.ID())
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, emp.ID(), employees[0].ID())

	_, err = f.service.TransferEmployee(ctx, emp.ID(), to.ID())
	assert.ErrorIs(t, err, e.ErrInvalidInput)
	_, err = f.service.TransferEmployee(ctx, emp.ID(), uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPayrollService_EmployeeUpdates(t *testing.T) {
	f := setup(t, models.HolidayPolicyReject)
	ctx := context.Background()
	dept := f.department(t, "Finance", nil)
	emp := f.fullTime(t, "Alice", dept.ID(), "36500")

	renamed, err := f.service.RenameEmployee(ctx, emp.ID(), "  Alice Smith ")
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", renamed.Name().String())

	paid, err := f.service.ChangeSalary(ctx, emp.ID(), decimal.RequireFromString("40000"))
	require.NoError(t, err)
	assert.Equal(t, "40000.00 GBP", paid.AnnualPay().String())

	adjusted, err := f.service.AdjustHoliday(ctx, emp.ID(), 5, "long service")
	require.NoError(t, err)
	assert.Equal(t, 30, adjusted.AnnualHolidayAllowance())

	_, err = f.service.AdjustHoliday(ctx, emp.ID(), -31, "too many")
	assert.ErrorIs(t, err, e.ErrInvalidInput, "reject policy refuses a negative allowance")

	_, err = f.service.ExtendContract(ctx, emp.ID(), period(t, "2027-04-01", "2027-04-30"))
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	stored, err := f.service.GetEmployee(ctx, emp.ID())
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", stored.Name().String())
	assert.Equal(t, 30, stored.AnnualHolidayAllowance())

	_, err = f.service.GetEmployee(ctx, uuid.New())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPayrollService_ContractorLifecycle(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "Consulting", nil)
	emp, err := f.service.CreateEmployee(ctx, NewEmployee{
		Name: "Carol", Kind: models.KindContractor, DepartmentID: dept.ID(),
		DailyRate: decimal.RequireFromString("400"), ContractPeriod: period(t, "2027-03-01", "2027-03-31"),
	})
	require.NoError(t, err)

	quote, err := f.service.QuotePay(ctx, emp.ID(), period(t, "2027-03-01", "2027-03-31"))
	require.NoError(t, err)
	assert.Equal(t, "9200.00 GBP", quote.String())

	_, err = f.service.QuotePay(ctx, emp.ID(), period(t, "2027-04-01", "2027-04-30"))
	assert.ErrorIs(t, err, e.ErrOutsideContract)

	extended, err := f.service.ExtendContract(ctx, emp.ID(), period(t, "2027-04-01", "2027-04-30"))
	require.NoError(t, err)
	contract := extended.Contract().(*models.ContractorContract)
	assert.Equal(t, "2027-03-01..2027-04-30", contract.Period().String())

	quote, err = f.service.QuotePay(ctx, emp.ID(), period(t, "2027-04-01", "2027-04-30"))
	require.NoError(t, err)
	assert.Equal(t, "8800.00 GBP", quote.String())
}

func TestPayrollService_Payments(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "Ops", nil)
	emp := f.fullTime(t, "Alice", dept.ID(), "36500")

	payment, err := f.service.RecordPayment(ctx, emp.ID(), period(t, "2027-01-01", "2027-01-31"), nil, "")
	require.NoError(t, err)
	assert.Equal(t, "3100.00 GBP", payment.Amount().String())
	assert.Equal(t, models.PaymentStatusPending, payment.Status())
	assert.Regexp(t, `^PAY-20270101-[0-9A-F]{8}$`, payment.Reference())

	_, err = f.service.RecordPayment(ctx, emp.ID(), period(t, "2027-01-15", "2027-02-14"),
		utils.Ptr(decimal.RequireFromString("100")), "")
	assert.ErrorIs(t, err, e.ErrOverlap)

	second, err := f.service.RecordPayment(ctx, emp.ID(), period(t, "2027-02-01", "2027-02-28"),
		utils.Ptr(decimal.RequireFromString("2800")), "PAY-FEB")
	require.NoError(t, err)
	assert.Equal(t, "PAY-FEB", second.Reference())

	f.producer.reset()
	settled, err := f.service.SettlePayment(ctx, payment.ID(), true, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSuccessful, settled.Status())
	assert.Equal(t, []models.EventType{models.PaymentSucceeded}, f.producer.types())

	_, err = f.service.SettlePayment(ctx, payment.ID(), false, "late")
	assert.ErrorIs(t, err, e.ErrInvalidTransition)

	err = f.service.HandleSettlement(ctx, events.Settlement{
		PaymentID: second.ID(), Status: events.SettlementFailed, Reason: "account closed",
	})
	require.NoError(t, err)

	stored, err := f.service.GetEmployee(ctx, emp.ID())
	require.NoError(t, err)
	require.Len(t, stored.Payments(), 2)
	assert.Equal(t, models.PaymentStatusSuccessful, stored.Payments()[0].Status())
	assert.Equal(t, models.PaymentStatusFailed, stored.Payments()[1].Status())
	assert.Equal(t, "account closed", stored.Payments()[1].FailureReason())

	err = f.service.HandleSettlement(ctx, events.Settlement{PaymentID: uuid.New(), Status: events.SettlementSuccessful})
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPayrollService_Departments(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	root := f.department(t, "Company", nil)
	eng := f.department(t, "Engineering", utils.Ptr(root.ID()))
	platform := f.department(t, "Platform", utils.Ptr(eng.ID()))
	sales := f.department(t, "Sales", utils.Ptr(root.ID()))

	storedRoot, err := f.service.GetDepartment(ctx, root.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{eng.ID(), sales.ID()}, storedRoot.SubDepartments())

	t.Run("cycle through an ancestor is rejected", func(t *testing.T) {
		f.producer.reset()
		_, err := f.service.AttachSubDepartment(ctx, platform.ID(), root.ID())
		assert.ErrorIs(t, err, e.ErrCycle)
		_, err = f.service.AttachSubDepartment(ctx, eng.ID(), eng.ID())
		assert.ErrorIs(t, err, e.ErrCycle)
		assert.Empty(t, f.producer.types())
	})

	t.Run("reparenting moves the sub-department", func(t *testing.T) {
		parent, err := f.service.AttachSubDepartment(ctx, sales.ID(), platform.ID())
		require.NoError(t, err)
		assert.True(t, parent.HasSubDepartment(platform.ID()))

		oldParent, err := f.service.GetDepartment(ctx, eng.ID())
		require.NoError(t, err)
		assert.False(t, oldParent.HasSubDepartment(platform.ID()))

		moved, err := f.service.GetDepartment(ctx, platform.ID())
		require.NoError(t, err)
		parentID, ok := moved.ParentID()
		require.True(t, ok)
		assert.Equal(t, sales.ID(), parentID)
	})

	t.Run("already attached", func(t *testing.T) {
		_, err := f.service.AttachSubDepartment(ctx, sales.ID(), platform.ID())
		assert.ErrorIs(t, err, e.ErrInvalidInput)
	})

	t.Run("rename and status", func(t *testing.T) {
		renamed, err := f.service.RenameDepartment(ctx, sales.ID(), "Revenue")
		require.NoError(t, err)
		assert.Equal(t, "Revenue", renamed.Name().String())

		_, err = f.service.SetDepartmentActive(ctx, sales.ID(), true)
		assert.ErrorIs(t, err, e.ErrInvalidTransition)
		off, err := f.service.SetDepartmentActive(ctx, sales.ID(), false)
		require.NoError(t, err)
		assert.False(t, off.Active())
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := f.service.CreateDepartment(ctx, "Orphan", utils.Ptr(uuid.New()))
		assert.ErrorIs(t, err, e.ErrNotFound)
	})
}

func TestPayrollService_Salaries(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "People", nil)
	emp := f.fullTime(t, "Alice", dept.ID(), "36500")

	salary, err := f.service.ScheduleSalary(ctx, NewSalary{
		EmployeeID:    emp.ID(),
		Amount:        decimal.RequireFromString("40000"),
		EffectiveDate: time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC),
		Reason:        models.ReasonPromotion,
	})
	require.NoError(t, err)
	assert.Equal(t, "40000.00 GBP", salary.Amount().String())
	assert.False(t, salary.IsActive())

	deferred, err := f.service.DeferSalary(ctx, salary.ID(), time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 5, 1, 0, 0, 0, 0, time.UTC), deferred.EffectiveDate())

	_, err = f.service.DeferSalary(ctx, salary.ID(), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	noted, err := f.service.UpdateSalaryNotes(ctx, salary.ID(), "approved by board")
	require.NoError(t, err)
	assert.Equal(t, "approved by board", noted.Notes())

	_, err = f.service.ScheduleSalary(ctx, NewSalary{
		EmployeeID:    uuid.New(),
		Amount:        decimal.RequireFromString("1"),
		EffectiveDate: time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC),
		Reason:        models.ReasonOther,
	})
	assert.ErrorIs(t, err, e.ErrNotFound)

	_, err = f.service.ScheduleSalary(ctx, NewSalary{
		EmployeeID:    emp.ID(),
		Amount:        decimal.RequireFromString("1"),
		EffectiveDate: time.Date(2027, 4, 1, 0, 0, 0, 0, time.UTC),
		Reason:        models.SalaryReason("bonus"),
	})
	assert.ErrorIs(t, err, e.ErrInvalidInput)
}

func TestPayrollService_BankDetails(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "People", nil)
	emp := f.fullTime(t, "Alice", dept.ID(), "36500")

	_, err := f.service.RegisterBankDetails(ctx, emp.ID(), "Alice", "GB82WEST12345698765433", "NWBKGB2L")
	assert.ErrorIs(t, err, e.ErrInvalidInput)

	register := func(t *testing.T) *models.BankDetails {
		details, err := f.service.RegisterBankDetails(ctx, emp.ID(), "Alice", "gb82 west 1234 5698 7654 32", "nwbkgb2l")
		require.NoError(t, err)
		assert.Equal(t, "GB82WEST12345698765432", details.IBAN())
		return details
	}

	t.Run("verified by bank", func(t *testing.T) {
		f.bank.verdict, f.bank.err = banking.Verdict{Verified: true}, nil
		details := register(t)
		verified, err := f.service.VerifyBankDetails(ctx, details.ID())
		require.NoError(t, err)
		assert.Equal(t, models.BankStatusVerified, verified.Status())

		_, err = f.service.VerifyBankDetails(ctx, details.ID())
		assert.ErrorIs(t, err, e.ErrInvalidTransition)
	})

	t.Run("rejected by bank", func(t *testing.T) {
		f.bank.verdict, f.bank.err = banking.Verdict{Verified: false, Reason: "name mismatch"}, nil
		details := register(t)
		rejected, err := f.service.VerifyBankDetails(ctx, details.ID())
		require.NoError(t, err)
		assert.Equal(t, models.BankStatusRejected, rejected.Status())
		assert.Equal(t, "name mismatch", rejected.RejectionReason())
	})

	t.Run("bank unavailable", func(t *testing.T) {
		f.bank.verdict, f.bank.err = banking.Verdict{}, errors.New("timeout")
		details := register(t)
		_, err := f.service.VerifyBankDetails(ctx, details.ID())
		require.Error(t, err)

		stored, err := f.service.GetBankDetails(ctx, details.ID())
		require.NoError(t, err)
		assert.Equal(t, models.BankStatusPending, stored.Status())
	})

	t.Run("manual rejection", func(t *testing.T) {
		details := register(t)
		_, err := f.service.RejectBankDetails(ctx, details.ID(), "  ")
		assert.ErrorIs(t, err, e.ErrInvalidInput)
		rejected, err := f.service.RejectBankDetails(ctx, details.ID(), "duplicate account")
		require.NoError(t, err)
		assert.Equal(t, models.BankStatusRejected, rejected.Status())
	})

	_, err = f.service.RegisterBankDetails(ctx, uuid.New(), "Nobody", "GB82WEST12345698765432", "NWBKGB2L")
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestPayrollService_ReplayOutbox(t *testing.T) {
	f := setup(t, models.HolidayPolicyClamp)
	ctx := context.Background()
	dept := f.department(t, "People", nil)
	f.fullTime(t, "Alice", dept.ID(), "36500")
	f.producer.reset()

	count, err := f.service.ReplayOutbox(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.ElementsMatch(t, []models.EventType{
		models.DepartmentCreated, models.EmployeeCreated, models.DepartmentEmployeeAdded,
	}, f.producer.types())

	for _, ev := range f.producer.events {
		require.NoError(t, f.service.Acknowledge(ctx, ev))
	}
	f.producer.reset()

	count, err = f.service.ReplayOutbox(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.producer.types())
}
