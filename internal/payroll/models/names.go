package models

import (
	"fmt"
	"strings"
	"unicode/utf8"

	e "github.com/gartstein/payroll/internal/payroll/errors"
)

const maxNameLength = 100

// EmployeeName is a trimmed, non-empty name of at most 100 characters.
type EmployeeName struct {
	value string
}

func NewEmployeeName(raw string) (EmployeeName, error) {
	v, err := normalizeName(raw, "employee name")
	if err != nil {
		return EmployeeName{}, err
	}
	return EmployeeName{value: v}, nil
}

func (n EmployeeName) String() string { return n.value }

// DepartmentName follows the same rules as EmployeeName.
type DepartmentName struct {
	value string
}

func NewDepartmentName(raw string) (DepartmentName, error) {
	v, err := normalizeName(raw, "department name")
	if err != nil {
		return DepartmentName{}, err
	}
	return DepartmentName{value: v}, nil
}

func (n DepartmentName) String() string { return n.value }

func normalizeName(raw, field string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", e.ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", e.ErrInvalidInput, field, maxNameLength)
	}
	return trimmed, nil
}
