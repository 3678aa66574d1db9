package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the scale every stored amount is kept at.
const MoneyPlaces = 2

// ValidMoney reports whether d fits the stored money scale without rounding.
func ValidMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyPlaces))
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusPaid       Status = "paid"
	StatusRecovering Status = "recovering"
	StatusCompleted  Status = "completed"
)

var allStatuses = []Status{
	StatusPending,
	StatusApproved,
	StatusRejected,
	StatusPaid,
	StatusRecovering,
	StatusCompleted,
}

// ParseStatus normalizes case and whitespace and rejects anything outside the
// six ledger states.
func ParseStatus(raw string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range allStatuses {
		if s == normalized {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s Status) CanRecover() bool {
	return s == StatusPaid || s == StatusRecovering
}

type RequestType string

const (
	RequestTypeAdvance       RequestType = "advance"
	RequestTypeLoan          RequestType = "loan"
	RequestTypeReimbursement RequestType = "reimbursement"
	RequestTypeAllowance     RequestType = "allowance"
)

func ParseRequestType(raw string) (RequestType, error) {
	switch t := RequestType(strings.ToLower(strings.TrimSpace(raw))); t {
	case RequestTypeAdvance, RequestTypeLoan, RequestTypeReimbursement, RequestTypeAllowance:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown request type %q", ErrInvalidInput, raw)
}

// Recoverable reports whether the type participates in the recovery ledger.
func (t RequestType) Recoverable() bool {
	return t == RequestTypeAdvance || t == RequestTypeLoan
}

type RepaymentType string

const (
	RepaymentFull         RepaymentType = "full"
	RepaymentInstallments RepaymentType = "installments"
)

func ParseRepaymentType(raw string) (RepaymentType, error) {
	switch t := RepaymentType(strings.ToLower(strings.TrimSpace(raw))); t {
	case RepaymentFull, RepaymentInstallments:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown repayment type %q", ErrInvalidInput, raw)
}

type RepaymentMethod string

const (
	MethodSalaryDeduction RepaymentMethod = "salary_deduction"
	MethodBankTransfer    RepaymentMethod = "bank_transfer"
	MethodCash            RepaymentMethod = "cash"
	MethodMobileMoney     RepaymentMethod = "mobile_money"
)

func ParseRepaymentMethod(raw string) (RepaymentMethod, error) {
	switch m := RepaymentMethod(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return "", nil
	case MethodSalaryDeduction, MethodBankTransfer, MethodCash, MethodMobileMoney:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown repayment method %q", ErrInvalidInput, raw)
}

const (
	CollectionFinancialRequests = "financial_requests"

	DefaultCurrency = "NGN"
)
