package payroll

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"hris/internal/domain/finance"
)

type PayPeriod struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	PayDate   time.Time `json:"payDate"`
	Cadence   Cadence   `json:"cadence"`
}

// Same reports whether both periods cover the same dates.
func (p PayPeriod) Same(other PayPeriod) bool {
	return p.StartDate.Equal(other.StartDate) && p.EndDate.Equal(other.EndDate)
}

func (p PayPeriod) Label() string {
	return p.StartDate.Format("2006-01-02") + " to " + p.EndDate.Format("2006-01-02")
}

type Allowance struct {
	Name    string          `json:"name"`
	Amount  decimal.Decimal `json:"amount"`
	Kind    AllowanceKind   `json:"kind"`
	Taxable bool            `json:"taxable"`
}

type Deduction struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Type   DeductionType   `json:"type"`
}

type PayrollRecord struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenantId"`
	EmployeeID      string          `json:"employeeId"`
	EmployeeName    string          `json:"employeeName"`
	PayPeriod       PayPeriod       `json:"payPeriod"`
	BaseSalary      decimal.Decimal `json:"baseSalary"`
	Overtime        decimal.Decimal `json:"overtime"`
	Bonuses         decimal.Decimal `json:"bonuses"`
	Allowances      []Allowance     `json:"allowances"`
	Deductions      []Deduction     `json:"deductions"`
	GrossPay        decimal.Decimal `json:"grossPay"`
	TotalDeductions decimal.Decimal `json:"totalDeductions"`
	NetPay          decimal.Decimal `json:"netPay"`
	Warnings        []string        `json:"warnings,omitempty"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Currency        string          `json:"currency"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (r PayrollRecord) Clone() PayrollRecord {
	out := r
	out.Allowances = slices.Clone(r.Allowances)
	out.Deductions = slices.Clone(r.Deductions)
	out.Warnings = slices.Clone(r.Warnings)
	return out
}

type NewRecord struct {
	TenantID     string
	EmployeeID   string
	EmployeeName string
	PayPeriod    PayPeriod
	BaseSalary   decimal.Decimal
	Overtime     decimal.Decimal
	Bonuses      decimal.Decimal
	Allowances   []Allowance
	Deductions   []Deduction
	Currency     string
}

type Filter struct {
	EmployeeID    string
	PaymentStatus PaymentStatus
	// Period matches records covering exactly these dates when non-zero.
	Period *PayPeriod
}

func (f Filter) Matches(r PayrollRecord) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.PaymentStatus != "" && r.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.Period != nil && !r.PayPeriod.Same(*f.Period) {
		return false
	}
	return true
}

// LoanDeduction is the outcome of recovering one financial request through one payroll record.
type LoanDeduction struct {
	Record    PayrollRecord            `json:"record"`
	Deduction Deduction                `json:"deduction"`
	Request   finance.FinancialRequest `json:"request"`
	Replayed  bool                     `json:"replayed"`
}

type PeriodRecovery struct {
	Record     PayrollRecord              `json:"record"`
	Deductions []Deduction                `json:"deductions"`
	Requests   []finance.FinancialRequest `json:"requests"`
}
