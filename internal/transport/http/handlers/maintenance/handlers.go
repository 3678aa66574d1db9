package maintenancehandler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hris/internal/domain/auth"
	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
	"hris/internal/platform/jobs"
	"hris/internal/transport/http/api"
	"hris/internal/transport/http/middleware"
	"hris/internal/transport/http/shared"
)

type RepairRecorder interface {
	RecordRepair(fixed, failed int)
}

type Handler struct {
	Finance *finance.Service
	Payroll *payroll.Service
	Jobs    *jobs.Service
	Metrics RepairRecorder
	Perms   middleware.PermissionChecker
}

func NewHandler(fin *finance.Service, pay *payroll.Service, runner *jobs.Service, m RepairRecorder, perms middleware.PermissionChecker) *Handler {
	return &Handler{Finance: fin, Payroll: pay, Jobs: runner, Metrics: m, Perms: perms}
}

type normalizePayload struct {
	Currency   string `json:"currency"`
	Collection string `json:"collection"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/maintenance", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermMaintenanceRun, h.Perms))
		r.Post("/repair-installments", h.handleRepair)
		r.Post("/normalize-currency", h.handleNormalize)
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{runID}", h.handleGetJob)
	})
}

// RepairJob recomputes installment amounts and records the outcome.
func (h *Handler) RepairJob() jobs.RunFunc {
	return func(ctx context.Context) (any, error) {
		report, err := h.Finance.RepairInstallments(ctx)
		if h.Metrics != nil {
			h.Metrics.RecordRepair(report.Fixed, report.Failed)
		}
		return report, err
	}
}

// NormalizeJob rewrites currencies in one collection, or both when collection is empty.
func (h *Handler) NormalizeJob(currency, collection string) jobs.RunFunc {
	return func(ctx context.Context) (any, error) {
		var reports []finance.NormalizeReport
		if collection == "" || collection == finance.CollectionFinancialRequests {
			report, err := h.Finance.NormalizeCurrency(ctx, currency)
			if err != nil {
				return reports, err
			}
			reports = append(reports, report)
		}
		if collection == "" || collection == payroll.CollectionPayrollRecords {
			report, err := h.Payroll.NormalizeCurrency(ctx, currency)
			if err != nil {
				return reports, err
			}
			reports = append(reports, report)
		}
		return reports, nil
	}
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request, jobType string, fn jobs.RunFunc) {
	requestID := middleware.GetRequestID(r.Context())
	if r.URL.Query().Get("async") == "true" {
		id := h.Jobs.Enqueue(jobType, fn)
		if id == "" {
			api.Fail(w, http.StatusServiceUnavailable, "job_queue_full", "job queue is full", requestID)
			return
		}
		run, _ := h.Jobs.Get(id)
		api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: run, RequestID: requestID})
		return
	}
	run, err := h.Jobs.RunNow(r.Context(), jobType, fn)
	if err != nil {
		api.FailError(w, err, jobType+"_failed", requestID)
		return
	}
	api.Success(w, run, requestID)
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("dryRun") == "true" {
		requestID := middleware.GetRequestID(r.Context())
		report, err := h.Finance.PreviewInstallmentRepair(r.Context())
		if err != nil {
			api.FailError(w, err, "repair_preview_failed", requestID)
			return
		}
		api.Success(w, report, requestID)
		return
	}
	h.run(w, r, jobs.JobRepairInstallments, h.RepairJob())
}

func (h *Handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload normalizePayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("currency", payload.Currency, "is required")
	if c := strings.TrimSpace(payload.Currency); c != "" && len(c) != 3 {
		v.Add("currency", "must be a 3-letter ISO code")
	}
	collection := strings.TrimSpace(payload.Collection)
	v.Enum("collection", collection, []string{finance.CollectionFinancialRequests, payroll.CollectionPayrollRecords},
		fmt.Sprintf("must be %s or %s", finance.CollectionFinancialRequests, payroll.CollectionPayrollRecords))
	if v.Reject(w, requestID) {
		return
	}
	h.run(w, r, jobs.JobNormalizeCurrency, h.NormalizeJob(payload.Currency, strings.ToLower(collection)))
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Jobs.History(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	run, ok := h.Jobs.Get(chi.URLParam(r, "runID"))
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", requestID)
		return
	}
	api.Success(w, run, requestID)
}
