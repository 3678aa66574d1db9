package finance

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState   = errors.New("financial request is not in a state that permits this operation")
	ErrNotFound       = errors.New("financial request not found")
	ErrInvalidInput   = errors.New("invalid financial request input")
	ErrConflict       = errors.New("financial request was modified concurrently")
	ErrUnknownStatus  = errors.New("unknown financial request status")
	ErrNotRecoverable = errors.New("request type does not participate in recovery")
)

// InvalidStateError carries the operation and the status it was attempted from.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed from status %q", e.Op, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func invalidState(op string, status Status) error {
	return &InvalidStateError{Op: op, Status: status}
}
