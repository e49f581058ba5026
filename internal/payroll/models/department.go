package models

import (
	"fmt"
	"sort"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/google/uuid"
)

// DepartmentLookup resolves department ids while walking the hierarchy.
type DepartmentLookup interface {
	Department(id uuid.UUID) (*Department, bool)
}

// Department groups employees and sub-departments. Relations are kept as ids;
// the parent is a back-reference only.
type Department struct {
	EventLog

	id       uuid.UUID
	name     DepartmentName
	active   bool
	parentID uuid.UUID
	members  map[uuid.UUID]struct{}
	subs     map[uuid.UUID]struct{}
	clock    Clock
}

// NewDepartment creates an active department, optionally under parent.
func NewDepartment(name string, parent *Department, opts ...Option) (*Department, error) {
	n, err := NewDepartmentName(name)
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	d := &Department{
		id:      uuid.New(),
		name:    n,
		active:  true,
		members: make(map[uuid.UUID]struct{}),
		subs:    make(map[uuid.UUID]struct{}),
		clock:   o.clock,
	}
	payload := map[string]string{"name": n.String()}
	if parent != nil {
		d.parentID = parent.id
		parent.subs[d.id] = struct{}{}
		parent.raise(SubDepartmentAdded, map[string]string{"sub_department_id": d.id.String()})
		payload["parent_id"] = parent.id.String()
	}
	d.raise(DepartmentCreated, payload)
	return d, nil
}

func (d *Department) raise(eventType EventType, payload map[string]string) {
	d.record(d.id, AggregateDepartment, eventType, d.clock.Now(), payload)
}

func (d *Department) ID() uuid.UUID        { return d.id }
func (d *Department) Name() DepartmentName { return d.name }
func (d *Department) Active() bool         { return d.active }

// ParentID returns the parent id and whether the department has a parent.
func (d *Department) ParentID() (uuid.UUID, bool) {
	return d.parentID, d.parentID != uuid.Nil
}

func (d *Department) HasMember(employeeID uuid.UUID) bool {
	_, ok := d.members[employeeID]
	return ok
}

func (d *Department) HasSubDepartment(id uuid.UUID) bool {
	_, ok := d.subs[id]
	return ok
}

// Members returns the employee ids sorted for stable output.
func (d *Department) Members() []uuid.UUID { return sortedIDs(d.members) }

// SubDepartments returns the direct child ids sorted for stable output.
func (d *Department) SubDepartments() []uuid.UUID { return sortedIDs(d.subs) }

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// AddEmployee makes emp a member and points emp at this department. The
// department emp currently points at is found through lookup and loses the
// membership, so an employee is a member of one department at most.
func (d *Department) AddEmployee(emp *Employee, lookup DepartmentLookup) error {
	if emp == nil {
		panic("models: AddEmployee called with nil employee")
	}
	if lookup == nil {
		panic("models: AddEmployee called with nil lookup")
	}
	if !d.active {
		return fmt.Errorf("%w: department %s is inactive", e.ErrInvalidInput, d.name)
	}
	if d.HasMember(emp.id) {
		return fmt.Errorf("%w: employee %s already belongs to %s", e.ErrDuplicate, emp.id, d.name)
	}

	if prev := emp.departmentID; prev != uuid.Nil && prev != d.id {
		old, ok := lookup.Department(prev)
		if !ok {
			return fmt.Errorf("department %s: %w", prev, e.ErrNotFound)
		}
		if old.HasMember(emp.id) {
			delete(old.members, emp.id)
			old.raise(DepartmentEmployeeRemoved, map[string]string{"employee_id": emp.id.String()})
		}
	}
	d.members[emp.id] = struct{}{}
	emp.moveTo(d.id)
	d.raise(DepartmentEmployeeAdded, map[string]string{"employee_id": emp.id.String()})
	return nil
}

// RemoveEmployee drops emp from the members.
func (d *Department) RemoveEmployee(emp *Employee) error {
	if emp == nil {
		panic("models: RemoveEmployee called with nil employee")
	}
	if !d.HasMember(emp.id) {
		return fmt.Errorf("%w: employee %s is not a member of %s", e.ErrInvalidInput, emp.id, d.name)
	}
	delete(d.members, emp.id)
	d.raise(DepartmentEmployeeRemoved, map[string]string{"employee_id": emp.id.String()})
	return nil
}

// AddSubDepartment attaches sub below d. It is rejected when sub is d itself
// or one of d's ancestors. If sub had another parent that parent is found
// through lookup and detached.
func (d *Department) AddSubDepartment(sub *Department, lookup DepartmentLookup) error {
	if sub == nil {
		panic("models: AddSubDepartment called with nil department")
	}
	if lookup == nil {
		panic("models: AddSubDepartment called with nil lookup")
	}
	if d.HasSubDepartment(sub.id) {
		return fmt.Errorf("%w: %s is already a sub-department of %s", e.ErrInvalidInput, sub.name, d.name)
	}
	if sub.id == d.id {
		return fmt.Errorf("%w: %s cannot contain itself", e.ErrCycle, d.name)
	}

	seen := map[uuid.UUID]struct{}{d.id: {}}
	for cur := d.parentID; cur != uuid.Nil; {
		if cur == sub.id {
			return fmt.Errorf("%w: %s is an ancestor of %s", e.ErrCycle, sub.name, d.name)
		}
		if _, loop := seen[cur]; loop {
			break
		}
		seen[cur] = struct{}{}
		parent, ok := lookup.Department(cur)
		if !ok {
			break
		}
		cur = parent.parentID
	}

	if prev := sub.parentID; prev != uuid.Nil && prev != d.id {
		if old, ok := lookup.Department(prev); ok {
			delete(old.subs, sub.id)
			old.raise(SubDepartmentRemoved, map[string]string{"sub_department_id": sub.id.String()})
		}
	}
	sub.parentID = d.id
	d.subs[sub.id] = struct{}{}
	d.raise(SubDepartmentAdded, map[string]string{"sub_department_id": sub.id.String()})
	return nil
}

// UpdateName renames the department.
func (d *Department) UpdateName(raw string) error {
	n, err := NewDepartmentName(raw)
	if err != nil {
		return err
	}
	old := d.name
	d.name = n
	d.raise(DepartmentRenamed, map[string]string{"old_name": old.String(), "name": n.String()})
	return nil
}

func (d *Department) Activate() error {
	if d.active {
		return fmt.Errorf("%w: department %s is already active", e.ErrInvalidTransition, d.name)
	}
	d.active = true
	d.raise(DepartmentActivated, nil)
	return nil
}

// Deactivate stops new members from joining; existing members stay.
func (d *Department) Deactivate() error {
	if !d.active {
		return fmt.Errorf("%w: department %s is already inactive", e.ErrInvalidTransition, d.name)
	}
	d.active = false
	d.raise(DepartmentDeactivated, nil)
	return nil
}

// OrgChart is an id-indexed arena of departments.
type OrgChart struct {
	departments map[uuid.UUID]*Department
}

func NewOrgChart(departments ...*Department) *OrgChart {
	c := &OrgChart{departments: make(map[uuid.UUID]*Department, len(departments))}
	for _, d := range departments {
		c.Add(d)
	}
	return c
}

func (c *OrgChart) Add(d *Department) {
	if d != nil {
		c.departments[d.id] = d
	}
}

func (c *OrgChart) Department(id uuid.UUID) (*Department, bool) {
	d, ok := c.departments[id]
	return d, ok
}

// Ancestors lists the parent chain of id, nearest first.
func (c *OrgChart) Ancestors(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	d, ok := c.departments[id]
	seen := map[uuid.UUID]struct{}{id: {}}
	for ok && d.parentID != uuid.Nil {
		if _, loop := seen[d.parentID]; loop {
			break
		}
		seen[d.parentID] = struct{}{}
		out = append(out, d.parentID)
		d, ok = c.departments[d.parentID]
	}
	return out
}

// Attach places child under parent, both resolved from the chart.
func (c *OrgChart) Attach(parentID, childID uuid.UUID) error {
	parent, ok := c.departments[parentID]
	if !ok {
		return fmt.Errorf("department %s: %w", parentID, e.ErrNotFound)
	}
	child, ok := c.departments[childID]
	if !ok {
		return fmt.Errorf("department %s: %w", childID, e.ErrNotFound)
	}
	return parent.AddSubDepartment(child, c)
}
