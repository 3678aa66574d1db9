package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hris/internal/domain/finance"
	"hris/internal/domain/payroll"
)

// FailError maps a domain error onto the response envelope. Anything it does
// not recognise is logged and reported as a 500 with fallbackCode.
func FailError(w http.ResponseWriter, err error, fallbackCode, requestID string) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "code", fallbackCode, "requestId", requestID, "err", err)
		Fail(w, status, fallbackCode, "internal error", requestID)
		return
	}
	Fail(w, status, code, err.Error(), requestID)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, finance.ErrNotFound), errors.Is(err, payroll.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, finance.ErrInvalidState), errors.Is(err, payroll.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, payroll.ErrDuplicatePeriod):
		return http.StatusConflict, "duplicate_period"
	case errors.Is(err, finance.ErrConflict), errors.Is(err, payroll.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, finance.ErrNotRecoverable):
		return http.StatusUnprocessableEntity, "not_recoverable"
	case errors.Is(err, finance.ErrInvalidInput), errors.Is(err, payroll.ErrInvalidInput),
		errors.Is(err, finance.ErrUnknownStatus), errors.Is(err, payroll.ErrUnknownStatus):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout"
	}
	return http.StatusInternalServerError, ""
}
