package payroll

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Payslip renders the record as a PDF.
func (s *Service) Payslip(ctx context.Context, tenantID, id string) ([]byte, PayrollRecord, error) {
	record, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, PayrollRecord{}, err
	}
	data, err := RenderPayslip(record)
	if err != nil {
		return nil, PayrollRecord{}, err
	}
	return data, record, nil
}

func RenderPayslip(r PayrollRecord) ([]byte, error) {
	money := func(v decimal.Decimal) string {
		return fmt.Sprintf("%s %s", r.Currency, v.StringFixed(2))
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	name := r.EmployeeName
	if name == "" {
		name = r.EmployeeID
	}
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Period: %s (%s)", r.PayPeriod.Label(), r.PayPeriod.Cadence))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay date: %s", r.PayPeriod.PayDate.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s", r.PaymentStatus))
	pdf.Ln(10)

	row := func(label string, v decimal.Decimal) {
		pdf.CellFormat(120, 7, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, money(v), "", 1, "R", false, 0, "")
	}
	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(170, 8, title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}

	section("Earnings")
	row("Base salary", r.BaseSalary)
	if !r.Overtime.IsZero() {
		row("Overtime", r.Overtime)
	}
	if !r.Bonuses.IsZero() {
		row("Bonuses", r.Bonuses)
	}
	for _, a := range r.Allowances {
		label := a.Name
		if !a.Taxable {
			label += " (non-taxable)"
		}
		row(label, a.Amount)
	}
	pdf.SetFont("Helvetica", "B", 11)
	row("Gross pay", r.GrossPay)
	pdf.Ln(4)

	section("Deductions")
	for _, d := range r.Deductions {
		row(fmt.Sprintf("%s [%s]", d.Name, d.Type), d.Amount)
	}
	pdf.SetFont("Helvetica", "B", 11)
	row("Total deductions", r.TotalDeductions)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	row("Net pay", r.NetPay)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
