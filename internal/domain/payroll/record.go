package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hris/internal/domain/finance"
)

// NewPayrollRecord validates the input and returns a pending record with its
// totals computed. Loan deductions are refused here: they are only attached
// through the recovery ledger.
func NewPayrollRecord(id string, in NewRecord, at time.Time) (PayrollRecord, error) {
	if strings.TrimSpace(in.EmployeeID) == "" {
		return PayrollRecord{}, fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	}
	period, err := validatePeriod(in.PayPeriod)
	if err != nil {
		return PayrollRecord{}, err
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{{"baseSalary", in.BaseSalary}, {"overtime", in.Overtime}, {"bonuses", in.Bonuses}} {
		if err := checkAmount(f.name, f.value); err != nil {
			return PayrollRecord{}, err
		}
	}

	allowances := make([]Allowance, 0, len(in.Allowances))
	for i, a := range in.Allowances {
		if strings.TrimSpace(a.Name) == "" {
			return PayrollRecord{}, fmt.Errorf("%w: allowances[%d].name is required", ErrInvalidInput, i)
		}
		if err := checkAmount(fmt.Sprintf("allowances[%d].amount", i), a.Amount); err != nil {
			return PayrollRecord{}, err
		}
		switch a.Kind {
		case "":
			a.Kind = AllowanceFixed
		case AllowanceFixed, AllowanceVariable:
		default:
			return PayrollRecord{}, fmt.Errorf("%w: allowances[%d].kind %q", ErrInvalidInput, i, a.Kind)
		}
		allowances = append(allowances, a)
	}

	deductions := make([]Deduction, 0, len(in.Deductions))
	for i, ded := range in.Deductions {
		if strings.TrimSpace(ded.Name) == "" {
			return PayrollRecord{}, fmt.Errorf("%w: deductions[%d].name is required", ErrInvalidInput, i)
		}
		if err := checkAmount(fmt.Sprintf("deductions[%d].amount", i), ded.Amount); err != nil {
			return PayrollRecord{}, err
		}
		typ, err := ParseDeductionType(string(ded.Type))
		if err != nil {
			return PayrollRecord{}, err
		}
		if typ == DeductionLoan {
			return PayrollRecord{}, fmt.Errorf("%w: loan deductions are added through loan recovery", ErrInvalidInput)
		}
		ded.Type = typ
		deductions = append(deductions, ded)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	return Recompute(PayrollRecord{
		ID:            id,
		TenantID:      in.TenantID,
		EmployeeID:    in.EmployeeID,
		EmployeeName:  in.EmployeeName,
		PayPeriod:     period,
		BaseSalary:    in.BaseSalary,
		Overtime:      in.Overtime,
		Bonuses:       in.Bonuses,
		Allowances:    allowances,
		Deductions:    deductions,
		PaymentStatus: PaymentPending,
		Currency:      currency,
		CreatedAt:     at,
		UpdatedAt:     at,
	}), nil
}

func checkAmount(field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return fmt.Errorf("%w: %s cannot be negative", ErrInvalidInput, field)
	}
	if !finance.ValidMoney(v) {
		return fmt.Errorf("%w: %s must have at most %d decimal places", ErrInvalidInput, field, finance.MoneyPlaces)
	}
	return nil
}

func validatePeriod(p PayPeriod) (PayPeriod, error) {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return PayPeriod{}, fmt.Errorf("%w: payPeriod start and end dates are required", ErrInvalidInput)
	}
	if p.EndDate.Before(p.StartDate) {
		return PayPeriod{}, fmt.Errorf("%w: payPeriod ends before it starts", ErrInvalidInput)
	}
	cadence, err := ParseCadence(string(p.Cadence))
	if err != nil {
		return PayPeriod{}, err
	}
	p.Cadence = cadence
	if p.PayDate.IsZero() {
		p.PayDate = p.EndDate
	}
	return p, nil
}

// TransitionPayment moves a record to next if the payment lifecycle allows it.
func TransitionPayment(r PayrollRecord, next PaymentStatus, at time.Time) (PayrollRecord, error) {
	if !r.PaymentStatus.CanTransitionTo(next) {
		return r, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidState, r.PaymentStatus, next)
	}
	out := r.Clone()
	out.PaymentStatus = next
	out.UpdatedAt = at
	return out, nil
}

// LoanDeductionName is stable per request so reapplying a recovery updates the
// same line item instead of adding another.
func LoanDeductionName(req finance.FinancialRequest) string {
	label := "Loan repayment"
	if req.RequestType == finance.RequestTypeAdvance {
		label = "Salary advance recovery"
	}
	return fmt.Sprintf("%s (%s)", label, req.ID)
}

// AttachLoanDeduction sets the loan line item for req to amount and recomputes
// totals. The second return value is false when the record already carried it.
func AttachLoanDeduction(r PayrollRecord, req finance.FinancialRequest, amount decimal.Decimal, at time.Time) (PayrollRecord, Deduction, bool) {
	line := Deduction{Name: LoanDeductionName(req), Amount: amount, Type: DeductionLoan}
	for i, existing := range r.Deductions {
		if existing.Type == DeductionLoan && existing.Name == line.Name {
			if existing.Amount.Equal(amount) {
				return r, existing, false
			}
			out := r.Clone()
			out.Deductions[i] = line
			out.UpdatedAt = at
			return Recompute(out), line, true
		}
	}
	out := r.Clone()
	out.Deductions = append(out.Deductions, line)
	out.UpdatedAt = at
	return Recompute(out), line, true
}
