package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
)

func TestFailErrorMapsDomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"finance not found", finance.ErrNotFound, http.StatusNotFound, "not_found"},
		{"payroll not found", fmt.Errorf("load: %w", payroll.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid state", &finance.InvalidStateError{Op: "apply recovery", Status: finance.StatusRejected}, http.StatusConflict, "invalid_state"},
		{"closed record", payroll.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{"duplicate period", payroll.ErrDuplicatePeriod, http.StatusConflict, "duplicate_period"},
		{"conflict", finance.ErrConflict, http.StatusConflict, "conflict"},
		{"not recoverable", finance.ErrNotRecoverable, http.StatusUnprocessableEntity, "not_recoverable"},
		{"bad input", fmt.Errorf("%w: amount must be positive", finance.ErrInvalidInput), http.StatusBadRequest, "validation_error"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "finance_failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FailError(rec, tc.err, "finance_failed", "req-1")
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var env Envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Success || env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("unexpected envelope %+v", env)
			}
			if env.RequestID != "req-1" {
				t.Fatalf("expected request id, got %q", env.RequestID)
			}
		})
	}
}

func TestInternalErrorsHideDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	FailError(rec, errors.New("pq: password authentication failed"), "payroll_failed", "")
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Message != "internal error" {
		t.Fatalf("expected generic message, got %q", env.Error.Message)
	}
}
