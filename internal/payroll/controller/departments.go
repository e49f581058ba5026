package controller

import (
	"context"

	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateDepartment creates a department, below parentID when it is set.
func (s *PayrollService) CreateDepartment(ctx context.Context, name string, parentID *uuid.UUID) (*models.Department, error) {
	var dept *models.Department
	err := s.transact(ctx, "create department", func(u *unitOfWork) error {
		var parent *models.Department
		if parentID != nil {
			var err error
			if parent, err = u.tx.GetDepartment(ctx, *parentID); err != nil {
				return err
			}
		}
		var err error
		if dept, err = models.NewDepartment(name, parent, s.opts...); err != nil {
			return err
		}
		return u.saveDepartments(ctx, dept, parent)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Department created",
		zap.String("department_id", dept.ID().String()),
		zap.String("name", dept.Name().String()),
	)
	return dept, nil
}

func (s *PayrollService) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	dept, err := s.repo.GetDepartment(ctx, id)
	if err != nil {
		return nil, s.fail("get department", err)
	}
	return dept, nil
}

// ListDepartmentEmployees returns the employees assigned to a department.
func (s *PayrollService) ListDepartmentEmployees(ctx context.Context, id uuid.UUID) ([]*models.Employee, error) {
	if _, err := s.repo.GetDepartment(ctx, id); err != nil {
		return nil, s.fail("list department employees", err)
	}
	employees, err := s.repo.ListEmployeesByDepartment(ctx, id)
	if err != nil {
		return nil, s.fail("list department employees", err)
	}
	return employees, nil
}

func (s *PayrollService) updateDepartment(ctx context.Context, op string, id uuid.UUID, fn func(*models.Department) error) (*models.Department, error) {
	var dept *models.Department
	err := s.transact(ctx, op, func(u *unitOfWork) error {
		var err error
		if dept, err = u.tx.GetDepartment(ctx, id); err != nil {
			return err
		}
		if err := fn(dept); err != nil {
			return err
		}
		return u.saveDepartments(ctx, dept)
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

func (s *PayrollService) RenameDepartment(ctx context.Context, id uuid.UUID, name string) (*models.Department, error) {
	return s.updateDepartment(ctx, "rename department", id, func(d *models.Department) error {
		return d.UpdateName(name)
	})
}

// SetDepartmentActive activates or deactivates a department.
func (s *PayrollService) SetDepartmentActive(ctx context.Context, id uuid.UUID, active bool) (*models.Department, error) {
	return s.updateDepartment(ctx, "set department status", id, func(d *models.Department) error {
		if active {
			return d.Activate()
		}
		return d.Deactivate()
	})
}

// AttachSubDepartment moves childID below parentID. The whole hierarchy is
// loaded so that cycles through any ancestor are caught.
func (s *PayrollService) AttachSubDepartment(ctx context.Context, parentID, childID uuid.UUID) (*models.Department, error) {
	var parent *models.Department
	err := s.transact(ctx, "attach sub-department", func(u *unitOfWork) error {
		chart, err := u.tx.LoadOrgChart(ctx)
		if err != nil {
			return err
		}
		var previous *models.Department
		if child, ok := chart.Department(childID); ok {
			if prevID, has := child.ParentID(); has && prevID != parentID {
				previous, _ = chart.Department(prevID)
			}
		}
		if err := chart.Attach(parentID, childID); err != nil {
			return err
		}
		parent, _ = chart.Department(parentID)
		child, _ := chart.Department(childID)
		return u.saveDepartments(ctx, parent, child, previous)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Sub-department attached",
		zap.String("department_id", parentID.String()),
		zap.String("sub_department_id", childID.String()),
	)
	return parent, nil
}
