package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NewFinancialRequest validates the input and returns a pending request.
func NewFinancialRequest(id string, in NewRequest, at time.Time) (FinancialRequest, error) {
	if strings.TrimSpace(in.EmployeeID) == "" {
		return FinancialRequest{}, fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	}
	if !in.Amount.IsPositive() {
		return FinancialRequest{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !ValidMoney(in.Amount) {
		return FinancialRequest{}, fmt.Errorf("%w: amount must have at most %d decimal places", ErrInvalidInput, MoneyPlaces)
	}
	if _, err := ParseRequestType(string(in.RequestType)); err != nil {
		return FinancialRequest{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}
	return FinancialRequest{
		ID:                id,
		TenantID:          in.TenantID,
		EmployeeID:        in.EmployeeID,
		EmployeeName:      in.EmployeeName,
		EmployeeEmail:     in.EmployeeEmail,
		RequestType:       in.RequestType,
		Amount:            in.Amount,
		Currency:          currency,
		Reason:            in.Reason,
		Status:            StatusPending,
		InstallmentAmount: decimal.Zero,
		AmountRecovered:   decimal.Zero,
		RemainingBalance:  in.Amount,
		LinkedPayrollIDs:  []string{},
		Recoveries:        []Recovery{},
		CreatedAt:         at,
		UpdatedAt:         at,
	}, nil
}

// InstallmentAmountFor returns the per-cycle deduction for a plan. Installment
// plans round up so the schedule never under-recovers.
func InstallmentAmountFor(amount decimal.Decimal, repaymentType RepaymentType, months int) decimal.Decimal {
	if repaymentType == RepaymentFull || months <= 1 {
		return amount
	}
	return amount.Div(decimal.NewFromInt(int64(months))).Ceil()
}

func Approve(req FinancialRequest, approverID string, at time.Time) (FinancialRequest, error) {
	if req.Status != StatusPending {
		return req, invalidState("approve", req.Status)
	}
	out := req.Clone()
	out.Status = StatusApproved
	out.ApprovedBy = approverID
	out.ApprovedAt = &at
	out.UpdatedAt = at
	return out, nil
}

// Reject is allowed from pending and approved; rejected is terminal.
func Reject(req FinancialRequest, reason string, at time.Time) (FinancialRequest, error) {
	if req.Status != StatusPending && req.Status != StatusApproved {
		return req, invalidState("reject", req.Status)
	}
	out := req.Clone()
	out.Status = StatusRejected
	out.RejectionReason = strings.TrimSpace(reason)
	out.UpdatedAt = at
	return out, nil
}

// Disburse moves an approved request to paid. Loans and advances get their
// repayment plan fixed here; other types are settled with no ledger state.
func Disburse(req FinancialRequest, plan RepaymentPlan, at time.Time) (FinancialRequest, error) {
	if req.Status != StatusApproved {
		return req, invalidState("disburse", req.Status)
	}
	if req.RequestType.Recoverable() {
		return EstablishRepaymentPlan(req, plan, at)
	}
	out := req.Clone()
	out.Status = StatusPaid
	out.PaidAt = &at
	out.UpdatedAt = at
	return out, nil
}

func EstablishRepaymentPlan(req FinancialRequest, plan RepaymentPlan, at time.Time) (FinancialRequest, error) {
	if req.Status != StatusApproved {
		return req, invalidState("establish repayment plan", req.Status)
	}
	if !req.RequestType.Recoverable() {
		return req, fmt.Errorf("%w: %s", ErrNotRecoverable, req.RequestType)
	}
	if plan.RepaymentType != RepaymentFull && plan.RepaymentType != RepaymentInstallments {
		return req, fmt.Errorf("%w: unknown repayment type %q", ErrInvalidInput, plan.RepaymentType)
	}
	if plan.InstallmentMonths < 1 {
		return req, fmt.Errorf("%w: installmentMonths must be at least 1", ErrInvalidInput)
	}

	months := plan.InstallmentMonths
	if plan.RepaymentType == RepaymentFull {
		months = 1
	}

	out := req.Clone()
	out.RepaymentType = plan.RepaymentType
	out.RepaymentMethod = plan.RepaymentMethod
	out.InstallmentMonths = months
	out.InstallmentAmount = InstallmentAmountFor(req.Amount, plan.RepaymentType, months)
	out.AmountRecovered = decimal.Zero
	out.RemainingBalance = req.Amount
	out.LinkedPayrollIDs = []string{}
	out.Recoveries = []Recovery{}
	out.Status = StatusPaid
	out.PaidAt = &at
	out.UpdatedAt = at
	return out, nil
}

// ApplyRecovery deducts min(proposed, remainingBalance) on behalf of one
// payroll record. Reapplying a linked payroll record is a no-op that reports
// the amount recovered the first time, including after completion.
//
// On an installment plan the cycle filling the last scheduled slot must clear
// the balance, so linkedPayrollIds never outgrows installmentMonths. A shorter
// proposal for that slot is refused rather than topped up.
func ApplyRecovery(req FinancialRequest, payrollRecordID string, proposed decimal.Decimal, at time.Time) (RecoveryResult, error) {
	if !req.RequestType.Recoverable() {
		return RecoveryResult{Request: req}, invalidState("apply recovery to "+string(req.RequestType), req.Status)
	}
	if strings.TrimSpace(payrollRecordID) == "" {
		return RecoveryResult{Request: req}, fmt.Errorf("%w: payrollRecordId is required", ErrInvalidInput)
	}
	if req.IsLinked(payrollRecordID) {
		return RecoveryResult{Request: req, Amount: recoveredBy(req, payrollRecordID), Replayed: true}, nil
	}
	if !req.Status.CanRecover() {
		return RecoveryResult{Request: req}, invalidState("apply recovery", req.Status)
	}
	if !proposed.IsPositive() {
		return RecoveryResult{Request: req}, fmt.Errorf("%w: proposed amount must be positive", ErrInvalidInput)
	}
	if !ValidMoney(proposed) {
		return RecoveryResult{Request: req}, fmt.Errorf("%w: proposed amount must have at most %d decimal places", ErrInvalidInput, MoneyPlaces)
	}

	actual := decimal.Min(proposed, req.RemainingBalance)
	if finalSlot(req) && actual.LessThan(req.RemainingBalance) {
		return RecoveryResult{Request: req}, fmt.Errorf("%w: final installment must recover the remaining balance %s, proposed %s",
			ErrInvalidInput, req.RemainingBalance, proposed)
	}

	out := req.Clone()
	out.AmountRecovered = out.AmountRecovered.Add(actual)
	out.RemainingBalance = out.RemainingBalance.Sub(actual)
	out.LinkedPayrollIDs = append(out.LinkedPayrollIDs, payrollRecordID)
	out.Recoveries = append(out.Recoveries, Recovery{PayrollRecordID: payrollRecordID, Amount: actual, RecoveredAt: at})
	if out.Status == StatusPaid {
		out.Status = StatusRecovering
		out.RecoveryStartDate = &at
	}
	if out.RemainingBalance.IsZero() {
		out.Status = StatusCompleted
		out.RecoveryCompleteDate = &at
	}
	out.UpdatedAt = at
	return RecoveryResult{Request: out, Amount: actual}, nil
}

// NextDue is the amount the next payroll cycle should propose: the installment
// amount, or the whole remaining balance when the next cycle is the last
// scheduled one.
func NextDue(req FinancialRequest) decimal.Decimal {
	if finalSlot(req) {
		return req.RemainingBalance
	}
	return decimal.Min(req.InstallmentAmount, req.RemainingBalance)
}

func finalSlot(req FinancialRequest) bool {
	return req.RepaymentType == RepaymentInstallments && req.InstallmentMonths > 1 &&
		len(req.LinkedPayrollIDs)+1 >= req.InstallmentMonths
}

// NeedsInstallmentRepair reports whether a request carries an installment
// amount left behind by the old calculation, which stored the whole loan
// amount instead of dividing it across the plan.
func NeedsInstallmentRepair(req FinancialRequest) bool {
	if !req.RequestType.Recoverable() || req.RepaymentType != RepaymentInstallments || req.InstallmentMonths <= 1 {
		return false
	}
	if !req.Status.CanRecover() {
		return false
	}
	if !req.InstallmentAmount.IsPositive() {
		return true
	}
	return req.InstallmentAmount.GreaterThanOrEqual(req.OriginalAmount())
}

// RepairInstallmentAmount corrects the forward-looking installment amount only;
// past recoveries stay as recorded.
func RepairInstallmentAmount(req FinancialRequest, at time.Time) (FinancialRequest, bool) {
	if !NeedsInstallmentRepair(req) {
		return req, false
	}
	out := req.Clone()
	out.InstallmentAmount = InstallmentAmountFor(req.OriginalAmount(), RepaymentInstallments, req.InstallmentMonths)
	if out.RepaymentMethod == "" {
		out.RepaymentMethod = MethodSalaryDeduction
	}
	out.UpdatedAt = at
	return out, true
}

// CheckInvariants verifies the ledger arithmetic of a request.
func CheckInvariants(req FinancialRequest) error {
	if !req.RequestType.Recoverable() || req.RepaymentType == "" {
		return nil
	}
	if !req.AmountRecovered.Add(req.RemainingBalance).Equal(req.Amount) {
		return fmt.Errorf("ledger out of balance: recovered %s + remaining %s != amount %s", req.AmountRecovered, req.RemainingBalance, req.Amount)
	}
	if req.RemainingBalance.IsNegative() {
		return fmt.Errorf("remaining balance is negative: %s", req.RemainingBalance)
	}
	if req.RemainingBalance.IsZero() && req.Status != StatusCompleted {
		return fmt.Errorf("zero balance with status %q", req.Status)
	}
	if req.RepaymentType == RepaymentInstallments && len(req.LinkedPayrollIDs) > req.InstallmentMonths {
		return fmt.Errorf("%d linked payroll records exceed %d installments", len(req.LinkedPayrollIDs), req.InstallmentMonths)
	}
	return nil
}

func recoveredBy(req FinancialRequest, payrollRecordID string) decimal.Decimal {
	for _, r := range req.Recoveries {
		if r.PayrollRecordID == payrollRecordID {
			return r.Amount
		}
	}
	return decimal.Zero
}
