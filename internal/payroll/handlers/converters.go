package handlers

import (
	"fmt"
	"time"

	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/gartstein/payroll/internal/pkg/utils"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type moneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type periodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type employeeResponse struct {
	ID                     string             `json:"id"`
	Name                   string             `json:"name"`
	Kind                   string             `json:"kind"`
	AnnualPay              moneyDTO           `json:"annual_pay"`
	DepartmentID           string             `json:"department_id"`
	HolidayAllowance       int                `json:"holiday_allowance"`
	HolidayPolicy          string             `json:"holiday_policy"`
	WorkingHoursPercentage *string            `json:"working_hours_percentage,omitempty"`
	DailyRate              *moneyDTO          `json:"daily_rate,omitempty"`
	ContractPeriod         *periodDTO         `json:"contract_period,omitempty"`
	Payments               []*paymentResponse `json:"payments"`
}

type departmentResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Active         bool     `json:"active"`
	ParentID       *string  `json:"parent_id,omitempty"`
	Members        []string `json:"members"`
	SubDepartments []string `json:"sub_departments"`
}

type paymentResponse struct {
	ID            string     `json:"id"`
	EmployeeID    string     `json:"employee_id"`
	Period        periodDTO  `json:"period"`
	Amount        moneyDTO   `json:"amount"`
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

type salaryResponse struct {
	ID            string   `json:"id"`
	EmployeeID    string   `json:"employee_id"`
	Amount        moneyDTO `json:"amount"`
	EffectiveDate string   `json:"effective_date"`
	Reason        string   `json:"reason"`
	Notes         string   `json:"notes,omitempty"`
	Active        bool     `json:"active"`
}

type bankDetailsResponse struct {
	ID              string `json:"id"`
	EmployeeID      string `json:"employee_id"`
	AccountHolder   string `json:"account_holder"`
	IBAN            string `json:"iban"`
	BIC             string `json:"bic"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

type quoteResponse struct {
	EmployeeID string    `json:"employee_id"`
	Period     periodDTO `json:"period"`
	Amount     moneyDTO  `json:"amount"`
}

func moneyToDTO(m models.Money) moneyDTO {
	return moneyDTO{Amount: m.Amount().StringFixed(2), Currency: m.Currency()}
}

func periodToDTO(r models.DateRange) periodDTO {
	return periodDTO{Start: r.Start().Format(dateLayout), End: r.End().Format(dateLayout)}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func employeeToResponse(emp *models.Employee) *employeeResponse {
	resp := &employeeResponse{
		ID:               emp.ID().String(),
		Name:             emp.Name().String(),
		Kind:             string(emp.Kind()),
		AnnualPay:        moneyToDTO(emp.AnnualPay()),
		DepartmentID:     emp.DepartmentID().String(),
		HolidayAllowance: emp.AnnualHolidayAllowance(),
		HolidayPolicy:    string(emp.HolidayPolicy()),
		Payments:         make([]*paymentResponse, 0, len(emp.Payments())),
	}
	switch c := emp.Contract().(type) {
	case *models.PartTimeContract:
		resp.WorkingHoursPercentage = utils.Ptr(c.WorkingHoursPercentage().String())
	case *models.ContractorContract:
		resp.DailyRate = utils.Ptr(moneyToDTO(c.DailyRate()))
		resp.ContractPeriod = utils.Ptr(periodToDTO(c.Period()))
	}
	for _, p := range emp.Payments() {
		resp.Payments = append(resp.Payments, paymentToResponse(p))
	}
	return resp
}

func employeesToResponse(employees []*models.Employee) []*employeeResponse {
	out := make([]*employeeResponse, len(employees))
	for i, emp := range employees {
		out[i] = employeeToResponse(emp)
	}
	return out
}

func departmentToResponse(d *models.Department) *departmentResponse {
	resp := &departmentResponse{
		ID:             d.ID().String(),
		Name:           d.Name().String(),
		Active:         d.Active(),
		Members:        idStrings(d.Members()),
		SubDepartments: idStrings(d.SubDepartments()),
	}
	if parentID, ok := d.ParentID(); ok {
		resp.ParentID = utils.Ptr(parentID.String())
	}
	return resp
}

func paymentToResponse(p *models.PaymentHistory) *paymentResponse {
	return &paymentResponse{
		ID:            p.ID().String(),
		EmployeeID:    p.EmployeeID().String(),
		Period:        periodToDTO(p.Period()),
		Amount:        moneyToDTO(p.Amount()),
		Reference:     p.Reference(),
		Status:        string(p.Status()),
		FailureReason: p.FailureReason(),
		ProcessedAt:   p.ProcessedAt(),
	}
}

func salaryToResponse(s *models.Salary) *salaryResponse {
	return &salaryResponse{
		ID:            s.ID().String(),
		EmployeeID:    s.EmployeeID().String(),
		Amount:        moneyToDTO(s.Amount()),
		EffectiveDate: s.EffectiveDate().Format(dateLayout),
		Reason:        string(s.Reason()),
		Notes:         s.Notes(),
		Active:        s.IsActive(),
	}
}

// bankDetailsToResponse masks the IBAN; full account numbers never leave
// the service.
func bankDetailsToResponse(b *models.BankDetails) *bankDetailsResponse {
	return &bankDetailsResponse{
		ID:              b.ID().String(),
		EmployeeID:      b.EmployeeID().String(),
		AccountHolder:   b.AccountHolder(),
		IBAN:            b.MaskedIBAN(),
		BIC:             b.BIC(),
		Status:          string(b.Status()),
		RejectionReason: b.RejectionReason(),
	}
}

func parseDate(raw, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be a date like 2006-01-02", e.ErrInvalidInput, field)
	}
	return t, nil
}

func parsePeriod(start, end string) (models.DateRange, error) {
	if start == "" || end == "" {
		return models.DateRange{}, fmt.Errorf("%w: start and end are required", e.ErrInvalidInput)
	}
	return models.ParseDateRange(start, end)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", e.ErrInvalidInput, raw)
	}
	return id, nil
}
