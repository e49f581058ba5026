// Package controller implements the payroll service layer. Each operation
// loads aggregates, applies one business change inside a transaction, saves
// them and publishes the drained domain events after commit.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/gartstein/payroll/internal/payroll/banking"
	"github.com/gartstein/payroll/internal/payroll/db"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventProducer interface {
	Produce(event models.Event)
}

// BankVerifier confirms that an account exists and belongs to the holder.
type BankVerifier interface {
	VerifyAccount(ctx context.Context, iban, holder string) (banking.Verdict, error)
}

// Repository defines the storage the service reads from. Writes happen on
// the transactional repository handed to WithTransaction.
type Repository interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	ListEmployeesByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*models.Employee, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.PaymentHistory, error)
	GetSalary(ctx context.Context, id uuid.UUID) (*models.Salary, error)
	GetBankDetails(ctx context.Context, id uuid.UUID) (*models.BankDetails, error)
	PendingOutbox(ctx context.Context, limit int) ([]models.Event, error)
	MarkOutboxPublished(ctx context.Context, ids ...uuid.UUID) error
	WithTransaction(ctx context.Context, fn func(repo *db.Repository) error) error
	Close() error
}

type Config struct {
	// Currency is used when a request does not name one.
	Currency      string
	HolidayPolicy models.HolidayPolicy
	Clock         models.Clock
}

// PayrollService coordinates the payroll aggregates with storage, the
// bank and the event stream.
type PayrollService struct {
	repo      Repository
	producer  EventProducer
	bank      BankVerifier
	validator models.AccountValidator
	currency  string
	opts      []models.Option
	logger    *zap.Logger
}

func NewPayrollService(repo Repository, producer EventProducer, bank BankVerifier, cfg Config, logger *zap.Logger) *PayrollService {
	currency := cfg.Currency
	if currency == "" {
		currency = "GBP"
	}
	return &PayrollService{
		repo:      repo,
		producer:  producer,
		bank:      bank,
		validator: banking.NewValidator(),
		currency:  currency,
		opts:      []models.Option{models.WithClock(cfg.Clock), models.WithHolidayPolicy(cfg.HolidayPolicy)},
		logger:    logger.Named("payroll_service"),
	}
}

// unitOfWork collects the events drained by every save in a transaction.
type unitOfWork struct {
	tx     *db.Repository
	events []models.Event
}

func (u *unitOfWork) collect(events []models.Event, err error) error {
	u.events = append(u.events, events...)
	return err
}

func (u *unitOfWork) saveEmployee(ctx context.Context, emp *models.Employee) error {
	return u.collect(u.tx.SaveEmployee(ctx, emp))
}

func (u *unitOfWork) saveDepartments(ctx context.Context, depts ...*models.Department) error {
	for _, d := range depts {
		if d == nil {
			continue
		}
		if err := u.collect(u.tx.SaveDepartment(ctx, d)); err != nil {
			return err
		}
	}
	return nil
}

// transact runs fn in one transaction and publishes its events once the
// transaction has committed.
func (s *PayrollService) transact(ctx context.Context, op string, fn func(u *unitOfWork) error) error {
	var published []models.Event
	err := s.repo.WithTransaction(ctx, func(tx *db.Repository) error {
		u := &unitOfWork{tx: tx}
		if err := fn(u); err != nil {
			return err
		}
		published = u.events
		return nil
	})
	if err != nil {
		return s.fail(op, err)
	}
	s.publish(published)
	return nil
}

// fail passes business errors through and wraps infrastructure errors.
func (s *PayrollService) fail(op string, err error) error {
	if e.IsValidation(err) || errors.Is(err, e.ErrNotFound) || errors.Is(err, e.ErrDuplicate) {
		return err
	}
	s.logger.Error("Operation failed", zap.String("operation", op), zap.Error(err))
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *PayrollService) publish(events []models.Event) {
	if s.producer == nil {
		return
	}
	for _, ev := range events {
		s.producer.Produce(ev)
	}
}

// ReplayOutbox republishes events that were stored but never acknowledged,
// for example because the process stopped before the producer ran.
func (s *PayrollService) ReplayOutbox(ctx context.Context, limit int) (int, error) {
	pending, err := s.repo.PendingOutbox(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to read outbox: %w", err)
	}
	s.publish(pending)
	if len(pending) > 0 {
		s.logger.Info("Replayed outbox events", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}

// Acknowledge marks a published event in the outbox.
func (s *PayrollService) Acknowledge(ctx context.Context, event models.Event) error {
	return s.repo.MarkOutboxPublished(ctx, event.ID)
}

func (s *PayrollService) money(amount decimal.Decimal, currency string) (models.Money, error) {
	if currency == "" {
		currency = s.currency
	}
	return models.NewMoney(amount, currency)
}
