package payroll

import "errors"

var (
	ErrNotFound        = errors.New("payroll record not found")
	ErrInvalidInput    = errors.New("invalid payroll record input")
	ErrInvalidState    = errors.New("payroll record is not in a state that permits this operation")
	ErrConflict        = errors.New("payroll record was modified concurrently")
	ErrUnknownStatus   = errors.New("unknown payment status")
	ErrDuplicatePeriod = errors.New("employee already has a payroll record for this pay period")
)
