package finance

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type FinancialRequest struct {
	ID                   string          `json:"id"`
	TenantID             string          `json:"tenantId"`
	EmployeeID           string          `json:"employeeId"`
	EmployeeName         string          `json:"employeeName"`
	EmployeeEmail        string          `json:"employeeEmail,omitempty"`
	RequestType          RequestType     `json:"requestType"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	Reason               string          `json:"reason,omitempty"`
	Status               Status          `json:"status"`
	RepaymentType        RepaymentType   `json:"repaymentType,omitempty"`
	RepaymentMethod      RepaymentMethod `json:"repaymentMethod,omitempty"`
	InstallmentMonths    int             `json:"installmentMonths,omitempty"`
	InstallmentAmount    decimal.Decimal `json:"installmentAmount"`
	AmountRecovered      decimal.Decimal `json:"amountRecovered"`
	RemainingBalance     decimal.Decimal `json:"remainingBalance"`
	LinkedPayrollIDs     []string        `json:"linkedPayrollIds"`
	Recoveries           []Recovery      `json:"recoveries"`
	RecoveryStartDate    *time.Time      `json:"recoveryStartDate,omitempty"`
	RecoveryCompleteDate *time.Time      `json:"recoveryCompleteDate,omitempty"`
	ApprovedBy           string          `json:"approvedBy,omitempty"`
	ApprovedAt           *time.Time      `json:"approvedAt,omitempty"`
	RejectionReason      string          `json:"rejectionReason,omitempty"`
	PaidAt               *time.Time      `json:"paidAt,omitempty"`
	Version              int64           `json:"version"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// Recovery is one payroll deduction applied against a request.
type Recovery struct {
	PayrollRecordID string          `json:"payrollRecordId"`
	Amount          decimal.Decimal `json:"amount"`
	RecoveredAt     time.Time       `json:"recoveredAt"`
}

// Clone returns a deep copy so ledger operations never mutate the caller's value.
func (r FinancialRequest) Clone() FinancialRequest {
	out := r
	out.LinkedPayrollIDs = slices.Clone(r.LinkedPayrollIDs)
	out.Recoveries = slices.Clone(r.Recoveries)
	out.RecoveryStartDate = cloneTime(r.RecoveryStartDate)
	out.RecoveryCompleteDate = cloneTime(r.RecoveryCompleteDate)
	out.ApprovedAt = cloneTime(r.ApprovedAt)
	out.PaidAt = cloneTime(r.PaidAt)
	return out
}

func (r FinancialRequest) IsLinked(payrollRecordID string) bool {
	return slices.Contains(r.LinkedPayrollIDs, payrollRecordID)
}

// OriginalAmount is the amount implied by the ledger itself, independent of the
// stored amount field.
func (r FinancialRequest) OriginalAmount() decimal.Decimal {
	return r.AmountRecovered.Add(r.RemainingBalance)
}

type NewRequest struct {
	TenantID      string
	EmployeeID    string
	EmployeeName  string
	EmployeeEmail string
	RequestType   RequestType
	Amount        decimal.Decimal
	Currency      string
	Reason        string
}

type RepaymentPlan struct {
	RepaymentType     RepaymentType
	InstallmentMonths int
	RepaymentMethod   RepaymentMethod
}

// Filter narrows a query; zero-valued fields match everything.
type Filter struct {
	EmployeeID  string
	Status      Status
	RequestType RequestType
}

func (f Filter) Matches(r FinancialRequest) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.RequestType != "" && r.RequestType != f.RequestType {
		return false
	}
	return true
}

type RecoveryResult struct {
	Request  FinancialRequest `json:"request"`
	Amount   decimal.Decimal  `json:"amount"`
	Replayed bool             `json:"replayed"`
}

type RepairOutcome struct {
	ID      string `json:"id"`
	Changed bool   `json:"changed"`
	Error   string `json:"error,omitempty"`
}

type RepairReport struct {
	Total          int             `json:"total"`
	Fixed          int             `json:"fixed"`
	AlreadyCorrect int             `json:"alreadyCorrect"`
	Failed         int             `json:"failed"`
	Outcomes       []RepairOutcome `json:"outcomes"`
}

type NormalizeReport struct {
	Collection    string   `json:"collection"`
	Total         int      `json:"total"`
	Updated       int      `json:"updated"`
	AlreadyTarget int      `json:"alreadyTarget"`
	Failed        int      `json:"failed"`
	FailedIDs     []string `json:"failedIds,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
