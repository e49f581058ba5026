package models

import (
	"time"

	domain "github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
)

// Department rows link to their parent; children are found by ParentID.
type Department struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name      string     `gorm:"size:100;not null"`
	Active    bool       `gorm:"not null;default:true"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership records that an employee belongs to a department. An employee
// has at most one membership.
type Membership struct {
	EmployeeID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	DepartmentID uuid.UUID `gorm:"type:uuid;not null;index"`
}

func DepartmentFromDomain(d *domain.Department) (*Department, []Membership) {
	s := d.Snapshot()
	row := &Department{ID: s.ID, Name: s.Name, Active: s.Active}
	if s.ParentID != uuid.Nil {
		parent := s.ParentID
		row.ParentID = &parent
	}
	members := make([]Membership, len(s.Members))
	for i, id := range s.Members {
		members[i] = Membership{EmployeeID: id, DepartmentID: s.ID}
	}
	return row, members
}

func (m *Department) ToDomain(members []uuid.UUID, children []uuid.UUID, opts ...domain.Option) *domain.Department {
	s := domain.DepartmentSnapshot{
		ID:             m.ID,
		Name:           m.Name,
		Active:         m.Active,
		Members:        members,
		SubDepartments: children,
	}
	if m.ParentID != nil {
		s.ParentID = *m.ParentID
	}
	return domain.RestoreDepartment(s, opts...)
}
