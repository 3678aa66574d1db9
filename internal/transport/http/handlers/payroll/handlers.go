package payrollhandler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"hris/internal/domain/auth"
	"hris/internal/domain/payroll"
	"hris/internal/transport/http/api"
	"hris/internal/transport/http/middleware"
	"hris/internal/transport/http/shared"
)

type Handler struct {
	Service *payroll.Service
	Perms   middleware.PermissionChecker
}

func NewHandler(service *payroll.Service, perms middleware.PermissionChecker) *Handler {
	return &Handler{Service: service, Perms: perms}
}

type periodPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	PayDate   string `json:"payDate"`
	Cadence   string `json:"cadence"`
}

type allowancePayload struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    string          `json:"kind"`
	Taxable bool            `json:"taxable"`
}

type deductionPayload struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Type   string          `json:"type"`
}

type createPayload struct {
	EmployeeID   string             `json:"employeeId"`
	EmployeeName string             `json:"employeeName"`
	PayPeriod    periodPayload      `json:"payPeriod"`
	BaseSalary   decimal.Decimal    `json:"baseSalary"`
	Overtime     decimal.Decimal    `json:"overtime"`
	Bonuses      decimal.Decimal    `json:"bonuses"`
	Allowances   []allowancePayload `json:"allowances"`
	Deductions   []deductionPayload `json:"deductions"`
	Currency     string             `json:"currency"`
}

type statusPayload struct {
	Status string `json:"status"`
}

type loanDeductionPayload struct {
	RequestID string          `json:"requestId"`
	Amount    decimal.Decimal `json:"amount"`
}

type periodRecoveryPayload struct {
	EmployeeID     string          `json:"employeeId"`
	PayPeriod      periodPayload   `json:"payPeriod"`
	ProposedAmount decimal.Decimal `json:"proposedAmount"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/records", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/records", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/records/{recordID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Post("/records/{recordID}/status", h.handleSetStatus)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/records/{recordID}/loan-deductions", h.handleLoanDeduction)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/records/{recordID}/payslip", h.handlePayslip)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/recoveries", h.handleRecoverForPeriod)
	})
}

func parsePeriod(v *shared.Validator, field string, in periodPayload) payroll.PayPeriod {
	start, _ := v.Date(field+".startDate", in.StartDate)
	end, _ := v.Date(field+".endDate", in.EndDate)
	v.DateOrder(field+".startDate", start, field+".endDate", end)
	period := payroll.PayPeriod{StartDate: start, EndDate: end}
	if strings.TrimSpace(in.PayDate) != "" {
		period.PayDate, _ = v.Date(field+".payDate", in.PayDate)
	}
	cadence, err := payroll.ParseCadence(in.Cadence)
	if err != nil {
		v.Add(field+".cadence", "must be weekly, biweekly, semimonthly or monthly")
	}
	period.Cadence = cadence
	return period
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	v := shared.NewValidator()
	filter := payroll.Filter{EmployeeID: strings.TrimSpace(query.Get("employeeId"))}
	if raw := query.Get("paymentStatus"); raw != "" {
		status, err := payroll.ParsePaymentStatus(raw)
		if err != nil {
			v.Add("paymentStatus", "must be a known payment status")
		}
		filter.PaymentStatus = status
	}
	if query.Get("periodStart") != "" || query.Get("periodEnd") != "" {
		period := parsePeriod(v, "period", periodPayload{StartDate: query.Get("periodStart"), EndDate: query.Get("periodEnd")})
		filter.Period = &period
	}
	if v.Reject(w, requestID) {
		return
	}
	if user.RoleName == auth.RoleEmployee {
		filter.EmployeeID = user.UserID
	}

	list, err := h.Service.List(r.Context(), user.TenantID, filter)
	if err != nil {
		api.FailError(w, err, "payroll_records_failed", requestID)
		return
	}
	api.Success(w, shared.Page(list, shared.ParsePagination(r, 50, 200)), requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	period := parsePeriod(v, "payPeriod", payload.PayPeriod)
	v.NonNegative("baseSalary", payload.BaseSalary)
	v.NonNegative("overtime", payload.Overtime)
	v.NonNegative("bonuses", payload.Bonuses)

	allowances := make([]payroll.Allowance, 0, len(payload.Allowances))
	for i, a := range payload.Allowances {
		field := fmt.Sprintf("allowances[%d]", i)
		v.Required(field+".name", a.Name, "is required")
		v.NonNegative(field+".amount", a.Amount)
		v.Enum(field+".kind", a.Kind, []string{string(payroll.AllowanceFixed), string(payroll.AllowanceVariable)}, "must be fixed or variable")
		kind := payroll.AllowanceKind(strings.ToLower(strings.TrimSpace(a.Kind)))
		if kind == "" {
			kind = payroll.AllowanceFixed
		}
		allowances = append(allowances, payroll.Allowance{Name: a.Name, Amount: a.Amount, Kind: kind, Taxable: a.Taxable})
	}
	deductions := make([]payroll.Deduction, 0, len(payload.Deductions))
	for i, d := range payload.Deductions {
		field := fmt.Sprintf("deductions[%d]", i)
		v.Required(field+".name", d.Name, "is required")
		v.NonNegative(field+".amount", d.Amount)
		deductionType, err := payroll.ParseDeductionType(d.Type)
		if err != nil {
			v.Add(field+".type", "must be tax, insurance, retirement or other")
		} else if deductionType == payroll.DeductionLoan {
			v.Add(field+".type", "loan deductions are applied through the recovery endpoints")
		}
		deductions = append(deductions, payroll.Deduction{Name: d.Name, Amount: d.Amount, Type: deductionType})
	}
	if v.Reject(w, requestID) {
		return
	}

	record, err := h.Service.Create(r.Context(), payroll.NewRecord{
		TenantID:     user.TenantID,
		EmployeeID:   payload.EmployeeID,
		EmployeeName: payload.EmployeeName,
		PayPeriod:    period,
		BaseSalary:   payload.BaseSalary,
		Overtime:     payload.Overtime,
		Bonuses:      payload.Bonuses,
		Allowances:   allowances,
		Deductions:   deductions,
		Currency:     payload.Currency,
	})
	if err != nil {
		api.FailError(w, err, "payroll_record_create_failed", requestID)
		return
	}
	api.Created(w, record, requestID)
}

func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (payroll.PayrollRecord, bool) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	record, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "recordID"))
	if err == nil && user.RoleName == auth.RoleEmployee && record.EmployeeID != user.UserID {
		err = payroll.ErrNotFound
	}
	if err != nil {
		api.FailError(w, err, "payroll_record_failed", requestID)
		return payroll.PayrollRecord{}, false
	}
	return record, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload statusPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("status", payload.Status, "is required")
	if v.Reject(w, requestID) {
		return
	}
	record, err := h.Service.SetPaymentStatus(r.Context(), user.TenantID, chi.URLParam(r, "recordID"), payload.Status)
	if err != nil {
		api.FailError(w, err, "payroll_status_failed", requestID)
		return
	}
	api.Success(w, record, requestID)
}

func (h *Handler) handleLoanDeduction(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload loanDeductionPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("requestId", payload.RequestID, "is required")
	v.NonNegative("amount", payload.Amount)
	if v.Reject(w, requestID) {
		return
	}
	result, err := h.Service.ApplyLoanDeduction(r.Context(), user.TenantID, chi.URLParam(r, "recordID"), payload.RequestID, payload.Amount)
	if err != nil {
		api.FailError(w, err, "payroll_loan_deduction_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handleRecoverForPeriod(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload periodRecoveryPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	period := parsePeriod(v, "payPeriod", payload.PayPeriod)
	v.NonNegative("proposedAmount", payload.ProposedAmount)
	if v.Reject(w, requestID) {
		return
	}
	result, err := h.Service.RecoverForPeriod(r.Context(), user.TenantID, payload.EmployeeID, period, payload.ProposedAmount)
	if err != nil {
		api.FailError(w, err, "payroll_recovery_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) handlePayslip(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	pdf, record, err := h.Service.Payslip(r.Context(), user.TenantID, chi.URLParam(r, "recordID"))
	if err == nil && user.RoleName == auth.RoleEmployee && record.EmployeeID != user.UserID {
		err = payroll.ErrNotFound
	}
	if err != nil {
		api.FailError(w, err, "payslip_render_failed", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=payslip-%s.pdf", record.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
