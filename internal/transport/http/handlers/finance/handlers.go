package financehandler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"hris/internal/domain/auth"
	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
	"hris/internal/transport/http/api"
	"hris/internal/transport/http/middleware"
	"hris/internal/transport/http/shared"
)

// LoanDeductor advances the ledger through a payroll record, so every
// recovery is backed by a loan line item on a payslip.
type LoanDeductor interface {
	ApplyLoanDeduction(ctx context.Context, tenantID, recordID, requestID string, proposed decimal.Decimal) (payroll.LoanDeduction, error)
}

type Handler struct {
	Service *finance.Service
	Loans   LoanDeductor
	Perms   middleware.PermissionChecker
}

func NewHandler(service *finance.Service, loans LoanDeductor, perms middleware.PermissionChecker) *Handler {
	return &Handler{Service: service, Loans: loans, Perms: perms}
}

type createPayload struct {
	EmployeeID    string          `json:"employeeId"`
	EmployeeName  string          `json:"employeeName"`
	EmployeeEmail string          `json:"employeeEmail"`
	RequestType   string          `json:"requestType"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

type rejectPayload struct {
	Reason string `json:"reason"`
}

type disbursePayload struct {
	RepaymentType     string `json:"repaymentType"`
	InstallmentMonths int    `json:"installmentMonths"`
	RepaymentMethod   string `json:"repaymentMethod"`
}

type recoveryPayload struct {
	PayrollRecordID string          `json:"payrollRecordId"`
	Amount          decimal.Decimal `json:"amount"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/financial-requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermFinanceRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermFinanceWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermFinanceRead, h.Perms)).Get("/outstanding/{employeeID}", h.handleOutstanding)
		r.With(middleware.RequirePermission(auth.PermFinanceRead, h.Perms)).Get("/{requestID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermFinanceApprove, h.Perms)).Post("/{requestID}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermFinanceApprove, h.Perms)).Post("/{requestID}/reject", h.handleReject)
		r.With(middleware.RequirePermission(auth.PermFinanceDisburse, h.Perms)).Post("/{requestID}/disburse", h.handleDisburse)
		r.With(middleware.RequirePermission(auth.PermPayrollRun, h.Perms)).Post("/{requestID}/recoveries", h.handleApplyRecovery)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	v := shared.NewValidator()
	filter := finance.Filter{EmployeeID: strings.TrimSpace(query.Get("employeeId"))}
	if raw := query.Get("status"); raw != "" {
		status, err := finance.ParseStatus(raw)
		if err != nil {
			v.Add("status", "must be a known request status")
		}
		filter.Status = status
	}
	if raw := query.Get("requestType"); raw != "" {
		requestType, err := finance.ParseRequestType(raw)
		if err != nil {
			v.Add("requestType", "must be advance, loan, reimbursement or allowance")
		}
		filter.RequestType = requestType
	}
	if v.Reject(w, requestID) {
		return
	}
	// Employees only ever see their own requests.
	if user.RoleName == auth.RoleEmployee {
		filter.EmployeeID = user.UserID
	}

	list, err := h.Service.List(r.Context(), user.TenantID, filter)
	if err != nil {
		api.FailError(w, err, "financial_requests_failed", requestID)
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	api.Success(w, shared.Page(list, page), requestID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	if user.RoleName == auth.RoleEmployee {
		payload.EmployeeID = user.UserID
	}
	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "is required")
	v.Required("requestType", payload.RequestType, "is required")
	requestType, err := finance.ParseRequestType(payload.RequestType)
	if err != nil && payload.RequestType != "" {
		v.Add("requestType", "must be advance, loan, reimbursement or allowance")
	}
	v.Positive("amount", payload.Amount)
	if c := strings.TrimSpace(payload.Currency); c != "" && len(c) != 3 {
		v.Add("currency", "must be a 3-letter ISO code")
	}
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Service.Create(r.Context(), finance.NewRequest{
		TenantID:      user.TenantID,
		EmployeeID:    payload.EmployeeID,
		EmployeeName:  payload.EmployeeName,
		EmployeeEmail: payload.EmployeeEmail,
		RequestType:   requestType,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Reason:        payload.Reason,
	})
	if err != nil {
		api.FailError(w, err, "financial_request_create_failed", requestID)
		return
	}
	api.Created(w, req, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	req, err := h.Service.Get(r.Context(), user.TenantID, chi.URLParam(r, "requestID"))
	if err != nil {
		api.FailError(w, err, "financial_request_failed", requestID)
		return
	}
	if user.RoleName == auth.RoleEmployee && req.EmployeeID != user.UserID {
		api.FailError(w, finance.ErrNotFound, "financial_request_failed", requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleOutstanding(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	employeeID := chi.URLParam(r, "employeeID")
	if user.RoleName == auth.RoleEmployee && employeeID != user.UserID {
		api.Fail(w, http.StatusForbidden, "forbidden", "employees may only view their own balances", requestID)
		return
	}
	list, err := h.Service.Outstanding(r.Context(), user.TenantID, employeeID)
	if err != nil {
		api.FailError(w, err, "financial_requests_failed", requestID)
		return
	}
	total := decimal.Zero
	for _, req := range list {
		total = total.Add(req.RemainingBalance)
	}
	api.Success(w, map[string]any{"requests": list, "totalRemaining": total}, requestID)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	req, err := h.Service.Approve(r.Context(), user.TenantID, chi.URLParam(r, "requestID"), user.UserID)
	if err != nil {
		api.FailError(w, err, "financial_request_approve_failed", requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload rejectPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("reason", payload.Reason, "is required")
	if v.Reject(w, requestID) {
		return
	}
	req, err := h.Service.Reject(r.Context(), user.TenantID, chi.URLParam(r, "requestID"), payload.Reason)
	if err != nil {
		api.FailError(w, err, "financial_request_reject_failed", requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleDisburse(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload disbursePayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	var plan finance.RepaymentPlan
	if payload.RepaymentType != "" {
		repaymentType, err := finance.ParseRepaymentType(payload.RepaymentType)
		if err != nil {
			v.Add("repaymentType", "must be full or installments")
		}
		plan.RepaymentType = repaymentType
	}
	method, err := finance.ParseRepaymentMethod(payload.RepaymentMethod)
	if err != nil {
		v.Add("repaymentMethod", "must be salary_deduction, bank_transfer, cash or mobile_money")
	}
	plan.RepaymentMethod = method
	if payload.InstallmentMonths < 0 {
		v.Add("installmentMonths", "must not be negative")
	}
	plan.InstallmentMonths = payload.InstallmentMonths
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Service.Disburse(r.Context(), user.TenantID, chi.URLParam(r, "requestID"), plan)
	if err != nil {
		api.FailError(w, err, "financial_request_disburse_failed", requestID)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleApplyRecovery(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload recoveryPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("payrollRecordId", payload.PayrollRecordID, "is required")
	v.NonNegative("amount", payload.Amount)
	if v.Reject(w, requestID) {
		return
	}
	result, err := h.Loans.ApplyLoanDeduction(r.Context(), user.TenantID, payload.PayrollRecordID, chi.URLParam(r, "requestID"), payload.Amount)
	if err != nil {
		api.FailError(w, err, "financial_request_recovery_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}
