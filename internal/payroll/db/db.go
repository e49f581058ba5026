package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gartstein/payroll/internal/payroll/db/models"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	domain "github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db   *gorm.DB
	opts []domain.Option
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func NewRepository(cfg *Config, opts ...domain.Option) (*Repository, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	return Open(postgres.Open(dsn), opts...)
}

// Open connects through any GORM dialector and migrates the schema. Options
// are applied to every aggregate the repository rehydrates.
func Open(dialector gorm.Dialector, opts ...domain.Option) (*Repository, error) {
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db, opts: opts}, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return e.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", e.ErrDuplicate, err)
	default:
		return err
	}
}

func upsert(tx *gorm.DB, row interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// SaveEmployee upserts the employee with its holiday adjustments and
// payments, then moves their pending events to the outbox. The drained
// events are returned for publishing once the caller commits.
func (r *Repository) SaveEmployee(ctx context.Context, emp *domain.Employee) ([]domain.Event, error) {
	var drained []domain.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, adjustments := models.EmployeeFromDomain(emp)
		if err := upsert(tx, row); err != nil {
			return translate(err)
		}

		if err := tx.Where("employee_id = ?", row.ID).Delete(&models.HolidayAdjustment{}).Error; err != nil {
			return err
		}
		if len(adjustments) > 0 {
			if err := tx.Create(&adjustments).Error; err != nil {
				return err
			}
		}

		events := emp.PendingEvents()
		for _, p := range emp.Payments() {
			if err := upsert(tx, models.PaymentFromDomain(p)); err != nil {
				return translate(err)
			}
			events = append(events, p.PendingEvents()...)
		}

		if err := appendOutbox(tx, events); err != nil {
			return err
		}
		drained = events
		return nil
	})
	if err != nil {
		return nil, err
	}

	emp.DrainEvents()
	for _, p := range emp.Payments() {
		p.DrainEvents()
	}
	return drained, nil
}

func (r *Repository) GetEmployee(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	db := r.db.WithContext(ctx)

	var row models.Employee
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}

	var adjustments []models.HolidayAdjustment
	if err := db.Where("employee_id = ?", id).Order("at, id").Find(&adjustments).Error; err != nil {
		return nil, err
	}

	var paymentRows []models.Payment
	if err := db.Where("employee_id = ?", id).Order("period_start").Find(&paymentRows).Error; err != nil {
		return nil, err
	}
	payments := make([]*domain.PaymentHistory, 0, len(paymentRows))
	for i := range paymentRows {
		p, err := paymentRows[i].ToDomain(r.opts...)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}

	return row.ToDomain(adjustments, payments, r.opts...)
}

// ListEmployeesByDepartment returns the employees pointing at a department,
// ordered by name.
func (r *Repository) ListEmployeesByDepartment(ctx context.Context, departmentID uuid.UUID) ([]*domain.Employee, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("department_id = ?", departmentID).
		Order("name, id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	employees := make([]*domain.Employee, 0, len(ids))
	for _, id := range ids {
		emp, err := r.GetEmployee(ctx, id)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, nil
}

// SaveDepartment upserts the department row and replaces its memberships.
// Sub-departments are not stored on the parent; each child row carries its
// ParentID.
func (r *Repository) SaveDepartment(ctx context.Context, d *domain.Department) ([]domain.Event, error) {
	var drained []domain.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, members := models.DepartmentFromDomain(d)
		if err := upsert(tx, row); err != nil {
			return translate(err)
		}
		if err := tx.Where("department_id = ?", row.ID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		if len(members) > 0 {
			if err := upsert(tx, &members); err != nil {
				return translate(err)
			}
		}

		drained = d.PendingEvents()
		return appendOutbox(tx, drained)
	})
	if err != nil {
		return nil, err
	}
	d.DrainEvents()
	return drained, nil
}

func (r *Repository) GetDepartment(ctx context.Context, id uuid.UUID) (*domain.Department, error) {
	db := r.db.WithContext(ctx)

	var row models.Department
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}

	var members []uuid.UUID
	if err := db.Model(&models.Membership{}).Where("department_id = ?", id).
		Order("employee_id").Pluck("employee_id", &members).Error; err != nil {
		return nil, err
	}

	var children []uuid.UUID
	if err := db.Model(&models.Department{}).Where("parent_id = ?", id).
		Order("id").Pluck("id", &children).Error; err != nil {
		return nil, err
	}

	return row.ToDomain(members, children, r.opts...), nil
}

// LoadOrgChart rehydrates every department so hierarchy changes can be
// checked against the whole tree.
func (r *Repository) LoadOrgChart(ctx context.Context) (*domain.OrgChart, error) {
	db := r.db.WithContext(ctx)

	var rows []models.Department
	if err := db.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	var memberships []models.Membership
	if err := db.Find(&memberships).Error; err != nil {
		return nil, err
	}

	members := make(map[uuid.UUID][]uuid.UUID)
	for _, m := range memberships {
		members[m.DepartmentID] = append(members[m.DepartmentID], m.EmployeeID)
	}
	children := make(map[uuid.UUID][]uuid.UUID)
	for _, row := range rows {
		if row.ParentID != nil {
			children[*row.ParentID] = append(children[*row.ParentID], row.ID)
		}
	}

	chart := domain.NewOrgChart()
	for i := range rows {
		chart.Add(rows[i].ToDomain(members[rows[i].ID], children[rows[i].ID], r.opts...))
	}
	return chart, nil
}

// SavePayment stores a payment that is changed outside of its employee,
// such as a settlement.
func (r *Repository) SavePayment(ctx context.Context, p *domain.PaymentHistory) ([]domain.Event, error) {
	return r.saveRecord(ctx, models.PaymentFromDomain(p), &p.EventLog)
}

func (r *Repository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.PaymentHistory, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.ToDomain(r.opts...)
}

func (r *Repository) SaveSalary(ctx context.Context, s *domain.Salary) ([]domain.Event, error) {
	return r.saveRecord(ctx, models.SalaryFromDomain(s), &s.EventLog)
}

func (r *Repository) GetSalary(ctx context.Context, id uuid.UUID) (*domain.Salary, error) {
	var row models.Salary
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.ToDomain(r.opts...)
}

func (r *Repository) SaveBankDetails(ctx context.Context, b *domain.BankDetails) ([]domain.Event, error) {
	return r.saveRecord(ctx, models.BankDetailsFromDomain(b), &b.EventLog)
}

func (r *Repository) GetBankDetails(ctx context.Context, id uuid.UUID) (*domain.BankDetails, error) {
	var row models.BankDetails
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.ToDomain(r.opts...), nil
}

func (r *Repository) saveRecord(ctx context.Context, row interface{}, log *domain.EventLog) ([]domain.Event, error) {
	drained := log.PendingEvents()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, row); err != nil {
			return translate(err)
		}
		return appendOutbox(tx, drained)
	})
	if err != nil {
		return nil, err
	}
	log.DrainEvents()
	return drained, nil
}

func appendOutbox(tx *gorm.DB, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEvent, 0, len(events))
	for _, ev := range events {
		row, err := models.OutboxFromDomain(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.Type, err)
		}
		rows = append(rows, row)
	}
	return tx.Create(&rows).Error
}

// PendingOutbox returns unpublished events, oldest first.
func (r *Repository) PendingOutbox(ctx context.Context, limit int) ([]domain.Event, error) {
	var rows []models.OutboxEvent
	if err := r.db.WithContext(ctx).Where("published_at IS NULL").
		Order("occurred_at, id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(rows))
	for i := range rows {
		ev, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", time.Now().UTC())
	return result.Error
}

// Exec runs a raw statement. Used by maintenance tasks and test cleanup.
func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	return r.db.WithContext(ctx).Exec(query, params...).Error
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx, opts: r.opts})
	})
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
