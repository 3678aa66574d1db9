package payroll

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentArchived   PaymentStatus = "archived"
)

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case PaymentPending, PaymentProcessing, PaymentPaid, PaymentCancelled, PaymentArchived:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

// AcceptsDeductions reports whether line items may still be added to a record.
func (s PaymentStatus) AcceptsDeductions() bool {
	return s == PaymentPending || s == PaymentProcessing
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:    {PaymentProcessing, PaymentCancelled},
	PaymentProcessing: {PaymentPaid, PaymentCancelled},
	PaymentPaid:       {PaymentArchived},
	PaymentCancelled:  {PaymentArchived},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Cadence string

const (
	CadenceWeekly      Cadence = "weekly"
	CadenceBiweekly    Cadence = "biweekly"
	CadenceSemimonthly Cadence = "semimonthly"
	CadenceMonthly     Cadence = "monthly"
)

func ParseCadence(raw string) (Cadence, error) {
	switch c := Cadence(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return CadenceMonthly, nil
	case CadenceWeekly, CadenceBiweekly, CadenceSemimonthly, CadenceMonthly:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown cadence %q", ErrInvalidInput, raw)
}

type AllowanceKind string

const (
	AllowanceFixed    AllowanceKind = "fixed"
	AllowanceVariable AllowanceKind = "variable"
)

type DeductionType string

const (
	DeductionTax        DeductionType = "tax"
	DeductionInsurance  DeductionType = "insurance"
	DeductionRetirement DeductionType = "retirement"
	DeductionLoan       DeductionType = "loan"
	DeductionOther      DeductionType = "other"
)

func ParseDeductionType(raw string) (DeductionType, error) {
	switch t := DeductionType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return DeductionOther, nil
	case DeductionTax, DeductionInsurance, DeductionRetirement, DeductionLoan, DeductionOther:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown deduction type %q", ErrInvalidInput, raw)
}

const (
	CollectionPayrollRecords = "payroll_records"

	DefaultCurrency = "NGN"

	WarningNegativeNet = "negative_net"
)
