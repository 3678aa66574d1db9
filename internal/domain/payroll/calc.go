package payroll

import "github.com/shopspring/decimal"

// ComputeGrossPay sums base salary, overtime, bonuses and every allowance.
// Zero values stand in for anything missing.
func ComputeGrossPay(r PayrollRecord) decimal.Decimal {
	gross := r.BaseSalary.Add(r.Overtime).Add(r.Bonuses)
	for _, a := range r.Allowances {
		gross = gross.Add(a.Amount)
	}
	return gross
}

func ComputeTotalDeductions(r PayrollRecord) decimal.Decimal {
	total := decimal.Zero
	for _, d := range r.Deductions {
		total = total.Add(d.Amount)
	}
	return total
}

// ComputeNetPay may return a negative amount; see Warnings.
func ComputeNetPay(r PayrollRecord) decimal.Decimal {
	return ComputeGrossPay(r).Sub(ComputeTotalDeductions(r))
}

// ComputePayroll returns gross, deductions and net in one pass.
func ComputePayroll(r PayrollRecord) (gross, deductions, net decimal.Decimal) {
	gross = ComputeGrossPay(r)
	deductions = ComputeTotalDeductions(r)
	net = gross.Sub(deductions)
	return gross, deductions, net
}

// Recompute overwrites the derived totals and warnings from the record's inputs.
func Recompute(r PayrollRecord) PayrollRecord {
	out := r.Clone()
	out.GrossPay, out.TotalDeductions, out.NetPay = ComputePayroll(r)
	out.Warnings = Warnings(out)
	return out
}

// Warnings flags records for HR review without rejecting them.
func Warnings(r PayrollRecord) []string {
	var warnings []string
	if ComputeNetPay(r).IsNegative() {
		warnings = append(warnings, WarningNegativeNet)
	}
	return warnings
}
