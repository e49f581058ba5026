package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gartstein/payroll/internal/payroll/auth"
	"github.com/gartstein/payroll/internal/payroll/controller"
	e "github.com/gartstein/payroll/internal/payroll/errors"
	"github.com/gartstein/payroll/internal/payroll/models"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PayrollController defines the business operations the HTTP handlers
// invoke.
type PayrollController interface {
	CreateEmployee(ctx context.Context, req controller.NewEmployee) (*models.Employee, error)
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	RenameEmployee(ctx context.Context, id uuid.UUID, name string) (*models.Employee, error)
	ChangeSalary(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Employee, error)
	TransferEmployee(ctx context.Context, id, departmentID uuid.UUID) (*models.Employee, error)
	AdjustHoliday(ctx context.Context, id uuid.UUID, days int, reason string) (*models.Employee, error)
	ExtendContract(ctx context.Context, id uuid.UUID, next models.DateRange) (*models.Employee, error)
	QuotePay(ctx context.Context, id uuid.UUID, period models.DateRange) (models.Money, error)
	RecordPayment(ctx context.Context, id uuid.UUID, period models.DateRange, amount *decimal.Decimal, reference string) (*models.PaymentHistory, error)
	SettlePayment(ctx context.Context, id uuid.UUID, successful bool, reason string) (*models.PaymentHistory, error)

	CreateDepartment(ctx context.Context, name string, parentID *uuid.UUID) (*models.Department, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	ListDepartmentEmployees(ctx context.Context, id uuid.UUID) ([]*models.Employee, error)
	RenameDepartment(ctx context.Context, id uuid.UUID, name string) (*models.Department, error)
	AttachSubDepartment(ctx context.Context, parentID, childID uuid.UUID) (*models.Department, error)
	SetDepartmentActive(ctx context.Context, id uuid.UUID, active bool) (*models.Department, error)

	ScheduleSalary(ctx context.Context, req controller.NewSalary) (*models.Salary, error)
	GetSalary(ctx context.Context, id uuid.UUID) (*models.Salary, error)
	DeferSalary(ctx context.Context, id uuid.UUID, effectiveDate time.Time) (*models.Salary, error)
	UpdateSalaryNotes(ctx context.Context, id uuid.UUID, notes string) (*models.Salary, error)

	RegisterBankDetails(ctx context.Context, employeeID uuid.UUID, holder, iban, bic string) (*models.BankDetails, error)
	GetBankDetails(ctx context.Context, id uuid.UUID) (*models.BankDetails, error)
	VerifyBankDetails(ctx context.Context, id uuid.UUID) (*models.BankDetails, error)
	RejectBankDetails(ctx context.Context, id uuid.UUID, reason string) (*models.BankDetails, error)
}

// PayrollHandler serves the payroll JSON API.
type PayrollHandler struct {
	service PayrollController
	logger  *zap.Logger
}

func NewPayrollHandler(service PayrollController, logger *zap.Logger) *PayrollHandler {
	return &PayrollHandler{
		service: service,
		logger:  logger.Named("http_handler"),
	}
}

// endpoint handles one route and returns the status and body to write.
type endpoint func(r *http.Request, params map[string]string) (int, interface{}, error)

// Register adds every payroll route to mux.
func (h *PayrollHandler) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method  string
		pattern string
		handle  endpoint
	}{
		{http.MethodPost, "/v1/employees", h.createEmployee},
		{http.MethodGet, "/v1/employees/{id}", h.getEmployee},
		{http.MethodPatch, "/v1/employees/{id}/name", h.renameEmployee},
		{http.MethodPatch, "/v1/employees/{id}/salary", h.changeSalary},
		{http.MethodPost, "/v1/employees/{id}/transfer", h.transferEmployee},
		{http.MethodPost, "/v1/employees/{id}/holiday-adjustments", h.adjustHoliday},
		{http.MethodPost, "/v1/employees/{id}/contract-extensions", h.extendContract},
		{http.MethodGet, "/v1/employees/{id}/pay", h.quotePay},
		{http.MethodPost, "/v1/employees/{id}/payments", h.recordPayment},
		{http.MethodPost, "/v1/payments/{id}/settlement", h.settlePayment},

		{http.MethodPost, "/v1/departments", h.createDepartment},
		{http.MethodGet, "/v1/departments/{id}", h.getDepartment},
		{http.MethodGet, "/v1/departments/{id}/employees", h.listDepartmentEmployees},
		{http.MethodPatch, "/v1/departments/{id}/name", h.renameDepartment},
		{http.MethodPost, "/v1/departments/{id}/sub-departments", h.attachSubDepartment},
		{http.MethodPost, "/v1/departments/{id}/status", h.setDepartmentStatus},

		{http.MethodPost, "/v1/salaries", h.scheduleSalary},
		{http.MethodGet, "/v1/salaries/{id}", h.getSalary},
		{http.MethodPost, "/v1/salaries/{id}/deferral", h.deferSalary},
		{http.MethodPatch, "/v1/salaries/{id}/notes", h.updateSalaryNotes},

		{http.MethodPost, "/v1/bank-details", h.registerBankDetails},
		{http.MethodGet, "/v1/bank-details/{id}", h.getBankDetails},
		{http.MethodPost, "/v1/bank-details/{id}/verification", h.verifyBankDetails},
		{http.MethodPost, "/v1/bank-details/{id}/rejection", h.rejectBankDetails},
	}

	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, h.wrap(route.handle)); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", route.method, route.pattern, err)
		}
	}
	return nil
}

func (h *PayrollHandler) wrap(handle endpoint) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		status, body, err := handle(r, params)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, status, body)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrDuplicate), errors.Is(err, e.ErrInvalidTransition):
		return http.StatusConflict
	case e.IsValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *PayrollHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", e.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed request body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func (h *PayrollHandler) audit(r *http.Request, action string, fields ...zap.Field) {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		fields = append(fields, zap.String("user", user))
	}
	h.logger.Info(action, fields...)
}

type createEmployeeRequest struct {
	Name                   string          `json:"name"`
	Kind                   string          `json:"kind"`
	DepartmentID           uuid.UUID       `json:"department_id"`
	AnnualPay              decimal.Decimal `json:"annual_pay"`
	Currency               string          `json:"currency"`
	WorkingHoursPercentage decimal.Decimal `json:"working_hours_percentage"`
	DailyRate              decimal.Decimal `json:"daily_rate"`
	ContractStart          string          `json:"contract_start"`
	ContractEnd            string          `json:"contract_end"`
}

func (h *PayrollHandler) createEmployee(r *http.Request, _ map[string]string) (int, interface{}, error) {
	var req createEmployeeRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	in := controller.NewEmployee{
		Name:                   req.Name,
		Kind:                   models.Kind(req.Kind),
		DepartmentID:           req.DepartmentID,
		AnnualPay:              req.AnnualPay,
		Currency:               req.Currency,
		WorkingHoursPercentage: req.WorkingHoursPercentage,
		DailyRate:              req.DailyRate,
	}
	if in.Kind == models.KindContractor {
		period, err := parsePeriod(req.ContractStart, req.ContractEnd)
		if err != nil {
			return 0, nil, err
		}
		in.ContractPeriod = period
	}

	emp, err := h.service.CreateEmployee(r.Context(), in)
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Employee created", zap.String("employee_id", emp.ID().String()))
	return http.StatusCreated, employeeToResponse(emp), nil
}

func (h *PayrollHandler) getEmployee(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	emp, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeeToResponse(emp), nil
}

type nameRequest struct {
	Name string `json:"name"`
}

func (h *PayrollHandler) renameEmployee(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req nameRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	emp, err := h.service.RenameEmployee(r.Context(), id, req.Name)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeeToResponse(emp), nil
}

type salaryChangeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *PayrollHandler) changeSalary(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req salaryChangeRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	emp, err := h.service.ChangeSalary(r.Context(), id, req.Amount)
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Salary changed", zap.String("employee_id", id.String()))
	return http.StatusOK, employeeToResponse(emp), nil
}

type transferRequest struct {
	DepartmentID uuid.UUID `json:"department_id"`
}

func (h *PayrollHandler) transferEmployee(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req transferRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	emp, err := h.service.TransferEmployee(r.Context(), id, req.DepartmentID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeeToResponse(emp), nil
}

type holidayAdjustmentRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

func (h *PayrollHandler) adjustHoliday(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req holidayAdjustmentRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	emp, err := h.service.AdjustHoliday(r.Context(), id, req.Days, req.Reason)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeeToResponse(emp), nil
}

func (h *PayrollHandler) extendContract(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req periodDTO
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	next, err := parsePeriod(req.Start, req.End)
	if err != nil {
		return 0, nil, err
	}
	emp, err := h.service.ExtendContract(r.Context(), id, next)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeeToResponse(emp), nil
}

func (h *PayrollHandler) quotePay(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	query := r.URL.Query()
	period, err := parsePeriod(query.Get("start"), query.Get("end"))
	if err != nil {
		return 0, nil, err
	}
	pay, err := h.service.QuotePay(r.Context(), id, period)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, quoteResponse{
		EmployeeID: id.String(),
		Period:     periodToDTO(period),
		Amount:     moneyToDTO(pay),
	}, nil
}

type paymentRequest struct {
	Start     string           `json:"start"`
	End       string           `json:"end"`
	Amount    *decimal.Decimal `json:"amount"`
	Reference string           `json:"reference"`
}

func (h *PayrollHandler) recordPayment(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req paymentRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	period, err := parsePeriod(req.Start, req.End)
	if err != nil {
		return 0, nil, err
	}
	payment, err := h.service.RecordPayment(r.Context(), id, period, req.Amount, req.Reference)
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Payment recorded",
		zap.String("employee_id", id.String()),
		zap.String("payment_id", payment.ID().String()),
	)
	return http.StatusCreated, paymentToResponse(payment), nil
}

type settlementRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *PayrollHandler) settlePayment(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req settlementRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	var successful bool
	switch models.PaymentStatus(req.Status) {
	case models.PaymentStatusSuccessful:
		successful = true
	case models.PaymentStatusFailed:
	default:
		return 0, nil, fmt.Errorf("%w: status must be %q or %q", e.ErrInvalidInput,
			models.PaymentStatusSuccessful, models.PaymentStatusFailed)
	}
	payment, err := h.service.SettlePayment(r.Context(), id, successful, req.Reason)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, paymentToResponse(payment), nil
}

type createDepartmentRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id"`
}

func (h *PayrollHandler) createDepartment(r *http.Request, _ map[string]string) (int, interface{}, error) {
	var req createDepartmentRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	dept, err := h.service.CreateDepartment(r.Context(), req.Name, req.ParentID)
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Department created", zap.String("department_id", dept.ID().String()))
	return http.StatusCreated, departmentToResponse(dept), nil
}

func (h *PayrollHandler) getDepartment(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	dept, err := h.service.GetDepartment(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, departmentToResponse(dept), nil
}

func (h *PayrollHandler) listDepartmentEmployees(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	employees, err := h.service.ListDepartmentEmployees(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, employeesToResponse(employees), nil
}

func (h *PayrollHandler) renameDepartment(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req nameRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	dept, err := h.service.RenameDepartment(r.Context(), id, req.Name)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, departmentToResponse(dept), nil
}

type subDepartmentRequest struct {
	DepartmentID uuid.UUID `json:"department_id"`
}

func (h *PayrollHandler) attachSubDepartment(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req subDepartmentRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	dept, err := h.service.AttachSubDepartment(r.Context(), id, req.DepartmentID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, departmentToResponse(dept), nil
}

type statusRequest struct {
	Active *bool `json:"active"`
}

func (h *PayrollHandler) setDepartmentStatus(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	if req.Active == nil {
		return 0, nil, fmt.Errorf("%w: active is required", e.ErrInvalidInput)
	}
	dept, err := h.service.SetDepartmentActive(r.Context(), id, *req.Active)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, departmentToResponse(dept), nil
}

type createSalaryRequest struct {
	EmployeeID    uuid.UUID       `json:"employee_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EffectiveDate string          `json:"effective_date"`
	Reason        string          `json:"reason"`
	Notes         string          `json:"notes"`
}

func (h *PayrollHandler) scheduleSalary(r *http.Request, _ map[string]string) (int, interface{}, error) {
	var req createSalaryRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	effective, err := parseDate(req.EffectiveDate, "effective_date")
	if err != nil {
		return 0, nil, err
	}
	salary, err := h.service.ScheduleSalary(r.Context(), controller.NewSalary{
		EmployeeID:    req.EmployeeID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		EffectiveDate: effective,
		Reason:        models.SalaryReason(req.Reason),
		Notes:         req.Notes,
	})
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Salary scheduled", zap.String("salary_id", salary.ID().String()))
	return http.StatusCreated, salaryToResponse(salary), nil
}

func (h *PayrollHandler) getSalary(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	salary, err := h.service.GetSalary(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, salaryToResponse(salary), nil
}

type deferralRequest struct {
	EffectiveDate string `json:"effective_date"`
}

func (h *PayrollHandler) deferSalary(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req deferralRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	effective, err := parseDate(req.EffectiveDate, "effective_date")
	if err != nil {
		return 0, nil, err
	}
	salary, err := h.service.DeferSalary(r.Context(), id, effective)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, salaryToResponse(salary), nil
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *PayrollHandler) updateSalaryNotes(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req notesRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	salary, err := h.service.UpdateSalaryNotes(r.Context(), id, req.Notes)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, salaryToResponse(salary), nil
}

type bankDetailsRequest struct {
	EmployeeID    uuid.UUID `json:"employee_id"`
	AccountHolder string    `json:"account_holder"`
	IBAN          string    `json:"iban"`
	BIC           string    `json:"bic"`
}

func (h *PayrollHandler) registerBankDetails(r *http.Request, _ map[string]string) (int, interface{}, error) {
	var req bankDetailsRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	details, err := h.service.RegisterBankDetails(r.Context(), req.EmployeeID, req.AccountHolder, req.IBAN, req.BIC)
	if err != nil {
		return 0, nil, err
	}
	h.audit(r, "Bank details registered",
		zap.String("bank_details_id", details.ID().String()),
		zap.String("iban", details.MaskedIBAN()),
	)
	return http.StatusCreated, bankDetailsToResponse(details), nil
}

func (h *PayrollHandler) getBankDetails(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	details, err := h.service.GetBankDetails(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, bankDetailsToResponse(details), nil
}

func (h *PayrollHandler) verifyBankDetails(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	details, err := h.service.VerifyBankDetails(r.Context(), id)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, bankDetailsToResponse(details), nil
}

type rejectionRequest struct {
	Reason string `json:"reason"`
}

func (h *PayrollHandler) rejectBankDetails(r *http.Request, params map[string]string) (int, interface{}, error) {
	id, err := parseID(params["id"])
	if err != nil {
		return 0, nil, err
	}
	var req rejectionRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	details, err := h.service.RejectBankDetails(r.Context(), id, req.Reason)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, bankDetailsToResponse(details), nil
}
