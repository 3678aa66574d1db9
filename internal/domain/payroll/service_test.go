package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hris/internal/domain/finance"
	"hris/internal/platform/docstore"
	"hris/internal/platform/lock"
)

var (
	testNow    = time.Date(2026, 4, 30, 12, 0, 0, 0, time.UTC)
	testPeriod = PayPeriod{
		StartDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		Cadence:   CadenceMonthly,
	}
)

type fixture struct {
	payroll *Service
	ledger  *finance.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := docstore.Open(filepath.Join(t.TempDir(), "hris.db"), finance.CollectionFinancialRequests, CollectionPayrollRecords)
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	locker := lock.NewMemory()
	clock := func() time.Time { return testNow }
	var mu sync.Mutex
	seq := 0
	ids := func(prefix string) func() string {
		return func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("%s-%03d", prefix, seq)
		}
	}

	ledger := finance.NewService(finance.NewBoltStore(db), locker, finance.WithClock(clock), finance.WithIDGenerator(ids("fr")))
	svc := NewService(NewBoltStore(db), ledger, locker, WithClock(clock), WithIDGenerator(ids("pr")))
	return fixture{payroll: svc, ledger: ledger}
}

func (f fixture) record(t *testing.T, employeeID string, period PayPeriod) PayrollRecord {
	t.Helper()
	record, err := f.payroll.Create(context.Background(), NewRecord{
		TenantID:   "t1",
		EmployeeID: employeeID,
		PayPeriod:  period,
		BaseSalary: d("300000"),
		Allowances: []Allowance{{Name: "Housing", Amount: d("50000"), Taxable: true}},
		Deductions: []Deduction{{Name: "PAYE", Amount: d("35000"), Type: DeductionTax}},
	})
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return record
}

func (f fixture) loan(t *testing.T, employeeID string, amount int64, months int) finance.FinancialRequest {
	t.Helper()
	ctx := context.Background()
	req, err := f.ledger.Create(ctx, finance.NewRequest{TenantID: "t1", EmployeeID: employeeID, RequestType: finance.RequestTypeLoan, Amount: decimal.NewFromInt(amount)})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := f.ledger.Approve(ctx, "t1", req.ID, "hr"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	req, err = f.ledger.Disburse(ctx, "t1", req.ID, finance.RepaymentPlan{RepaymentType: finance.RepaymentInstallments, InstallmentMonths: months})
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}
	return req
}

func nextMonth(p PayPeriod, n int) PayPeriod {
	start := p.StartDate.AddDate(0, n, 0)
	return PayPeriod{StartDate: start, EndDate: start.AddDate(0, 1, -1), Cadence: p.Cadence}
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)
	record := f.record(t, "emp-1", testPeriod)
	if !record.GrossPay.Equal(d("350000")) || !record.NetPay.Equal(d("315000")) {
		t.Fatalf("unexpected totals gross=%s net=%s", record.GrossPay, record.NetPay)
	}
	if record.Currency != DefaultCurrency || record.PaymentStatus != PaymentPending {
		t.Fatalf("unexpected defaults: %+v", record)
	}
	if !record.PayPeriod.PayDate.Equal(testPeriod.EndDate) {
		t.Fatalf("expected pay date to default to period end, got %s", record.PayPeriod.PayDate)
	}
}

func TestCreateRejectsDuplicatePeriod(t *testing.T) {
	f := newFixture(t)
	f.record(t, "emp-1", testPeriod)
	_, err := f.payroll.Create(context.Background(), NewRecord{TenantID: "t1", EmployeeID: "emp-1", PayPeriod: testPeriod})
	if !errors.Is(err, ErrDuplicatePeriod) {
		t.Fatalf("expected ErrDuplicatePeriod, got %v", err)
	}
}

func TestCreateRejectsLoanDeductions(t *testing.T) {
	f := newFixture(t)
	_, err := f.payroll.Create(context.Background(), NewRecord{
		TenantID:   "t1",
		EmployeeID: "emp-1",
		PayPeriod:  testPeriod,
		Deductions: []Deduction{{Name: "Loan", Amount: d("10"), Type: DeductionLoan}},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestApplyLoanDeductionUsesActualAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.loan(t, "emp-1", 25000, 4)

	var last LoanDeduction
	for i := 0; i < 4; i++ {
		record := f.record(t, "emp-1", nextMonth(testPeriod, i))
		res, err := f.payroll.ApplyLoanDeduction(ctx, "t1", record.ID, req.ID, decimal.Zero)
		if err != nil {
			t.Fatalf("apply deduction %d: %v", i, err)
		}
		if !res.Deduction.Amount.Equal(d("6250")) {
			t.Fatalf("deduction %d: expected 6250, got %s", i, res.Deduction.Amount)
		}
		if res.Deduction.Type != DeductionLoan || res.Deduction.Name != LoanDeductionName(req) {
			t.Fatalf("unexpected line item: %+v", res.Deduction)
		}
		if !res.Record.TotalDeductions.Equal(d("41250")) {
			t.Fatalf("expected total deductions 41250, got %s", res.Record.TotalDeductions)
		}
		last = res
	}
	if last.Request.Status != finance.StatusCompleted {
		t.Fatalf("expected completed, got %s", last.Request.Status)
	}
}

func TestApplyLoanDeductionCapsFinalCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.loan(t, "emp-1", 10000, 3)

	first := f.record(t, "emp-1", testPeriod)
	if _, err := f.payroll.ApplyLoanDeduction(ctx, "t1", first.ID, req.ID, d("8000")); err != nil {
		t.Fatalf("first deduction: %v", err)
	}
	second := f.record(t, "emp-1", nextMonth(testPeriod, 1))
	res, err := f.payroll.ApplyLoanDeduction(ctx, "t1", second.ID, req.ID, d("8000"))
	if err != nil {
		t.Fatalf("second deduction: %v", err)
	}
	if !res.Deduction.Amount.Equal(d("2000")) {
		t.Fatalf("expected capped deduction 2000, got %s", res.Deduction.Amount)
	}
	if !res.Request.RemainingBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", res.Request.RemainingBalance)
	}
}

func TestApplyLoanDeductionFinalSlotNeedsRemainingBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.loan(t, "emp-1", 9000, 3)

	for i := 0; i < 2; i++ {
		record := f.record(t, "emp-1", nextMonth(testPeriod, i))
		if _, err := f.payroll.ApplyLoanDeduction(ctx, "t1", record.ID, req.ID, d("1000")); err != nil {
			t.Fatalf("deduction %d: %v", i, err)
		}
	}
	last := f.record(t, "emp-1", nextMonth(testPeriod, 2))
	if _, err := f.payroll.ApplyLoanDeduction(ctx, "t1", last.ID, req.ID, d("1000")); !errors.Is(err, finance.ErrInvalidInput) {
		t.Fatalf("expected short final proposal to be refused, got %v", err)
	}
	unchanged, err := f.payroll.Get(ctx, "t1", last.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if len(unchanged.Deductions) != 1 {
		t.Fatalf("refused deduction left a line item: %v", unchanged.Deductions)
	}

	res, err := f.payroll.ApplyLoanDeduction(ctx, "t1", last.ID, req.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("final deduction: %v", err)
	}
	if !res.Deduction.Amount.Equal(d("7000")) || res.Request.Status != finance.StatusCompleted {
		t.Fatalf("expected 7000 clearing the loan, got %s (%s)", res.Deduction.Amount, res.Request.Status)
	}
}

func TestCreateRejectsSubCentAmounts(t *testing.T) {
	f := newFixture(t)
	_, err := f.payroll.Create(context.Background(), NewRecord{
		TenantID:   "t1",
		EmployeeID: "emp-1",
		PayPeriod:  testPeriod,
		BaseSalary: d("300000.005"),
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestApplyLoanDeductionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.loan(t, "emp-1", 9000, 3)
	record := f.record(t, "emp-1", testPeriod)

	first, err := f.payroll.ApplyLoanDeduction(ctx, "t1", record.ID, req.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	second, err := f.payroll.ApplyLoanDeduction(ctx, "t1", record.ID, req.ID, decimal.Zero)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.Replayed {
		t.Fatalf("expected replay")
	}
	if len(second.Record.Deductions) != len(first.Record.Deductions) {
		t.Fatalf("replay added a line item: %v", second.Record.Deductions)
	}
	if second.Record.Version != first.Record.Version {
		t.Fatalf("replay wrote the record: version %d -> %d", first.Record.Version, second.Record.Version)
	}
	if !second.Request.RemainingBalance.Equal(d("6000")) {
		t.Fatalf("expected remaining 6000, got %s", second.Request.RemainingBalance)
	}
}

func TestApplyLoanDeductionRefusesClosedRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := f.loan(t, "emp-1", 9000, 3)
	record := f.record(t, "emp-1", testPeriod)

	if _, err := f.payroll.SetPaymentStatus(ctx, "t1", record.ID, "processing"); err != nil {
		t.Fatalf("processing: %v", err)
	}
	if _, err := f.payroll.SetPaymentStatus(ctx, "t1", record.ID, "Paid"); err != nil {
		t.Fatalf("paid: %v", err)
	}
	_, err := f.payroll.ApplyLoanDeduction(ctx, "t1", record.ID, req.ID, decimal.Zero)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	untouched, err := f.ledger.Get(ctx, "t1", req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if !untouched.AmountRecovered.IsZero() {
		t.Fatalf("ledger advanced for a closed record: %s", untouched.AmountRecovered)
	}
}

func TestApplyLoanDeductionRejectsOtherEmployeesRequest(t *testing.T) {
	f := newFixture(t)
	req := f.loan(t, "emp-2", 9000, 3)
	record := f.record(t, "emp-1", testPeriod)
	_, err := f.payroll.ApplyLoanDeduction(context.Background(), "t1", record.ID, req.ID, decimal.Zero)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRecoverForPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	loan := f.loan(t, "emp-1", 12000, 3)
	advance, err := f.ledger.Create(ctx, finance.NewRequest{TenantID: "t1", EmployeeID: "emp-1", RequestType: finance.RequestTypeAdvance, Amount: d("5000")})
	if err != nil {
		t.Fatalf("create advance: %v", err)
	}
	if _, err := f.ledger.Approve(ctx, "t1", advance.ID, "hr"); err != nil {
		t.Fatalf("approve advance: %v", err)
	}
	if _, err := f.ledger.Disburse(ctx, "t1", advance.ID, finance.RepaymentPlan{RepaymentType: finance.RepaymentFull, InstallmentMonths: 1}); err != nil {
		t.Fatalf("disburse advance: %v", err)
	}
	f.loan(t, "emp-2", 1000, 1)
	record := f.record(t, "emp-1", testPeriod)

	res, err := f.payroll.RecoverForPeriod(ctx, "t1", "emp-1", testPeriod, decimal.Zero)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if res.Record.ID != record.ID {
		t.Fatalf("wrong record %s", res.Record.ID)
	}
	if len(res.Deductions) != 2 {
		t.Fatalf("expected 2 deductions, got %v", res.Deductions)
	}
	want := map[string]decimal.Decimal{LoanDeductionName(loan): d("4000"), LoanDeductionName(advance): d("5000")}
	for _, ded := range res.Deductions {
		if !ded.Amount.Equal(want[ded.Name]) {
			t.Fatalf("deduction %s: expected %s, got %s", ded.Name, want[ded.Name], ded.Amount)
		}
	}
	if !res.Record.TotalDeductions.Equal(d("44000")) {
		t.Fatalf("expected total deductions 44000, got %s", res.Record.TotalDeductions)
	}

	again, err := f.payroll.RecoverForPeriod(ctx, "t1", "emp-1", testPeriod, decimal.Zero)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if !again.Record.TotalDeductions.Equal(res.Record.TotalDeductions) || len(again.Deductions) != 2 {
		t.Fatalf("rerun changed the record: %+v", again.Record)
	}
}

func TestRecoverForPeriodWithoutRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.payroll.RecoverForPeriod(context.Background(), "t1", "emp-1", testPeriod, decimal.Zero)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaymentStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	record := f.record(t, "emp-1", testPeriod)

	if _, err := f.payroll.SetPaymentStatus(ctx, "t1", record.ID, "paid"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState skipping processing, got %v", err)
	}
	if _, err := f.payroll.SetPaymentStatus(ctx, "t1", record.ID, "on_hold"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	cancelled, err := f.payroll.SetPaymentStatus(ctx, "t1", record.ID, "cancelled")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	archived, err := f.payroll.SetPaymentStatus(ctx, "t1", cancelled.ID, "archived")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.PaymentStatus != PaymentArchived || archived.Version != 3 {
		t.Fatalf("unexpected record: %+v", archived)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "emp-1", testPeriod)
	if _, err := f.payroll.Create(ctx, NewRecord{TenantID: "t1", EmployeeID: "emp-2", PayPeriod: testPeriod, Currency: "ghs"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := f.payroll.NormalizeCurrency(ctx, "NGN")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if report.Total != 2 || report.Updated != 1 || report.AlreadyTarget != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	again, err := f.payroll.NormalizeCurrency(ctx, "NGN")
	if err != nil {
		t.Fatalf("normalize again: %v", err)
	}
	if again.Updated != 0 || again.AlreadyTarget != 2 {
		t.Fatalf("expected idempotent rerun, got %+v", again)
	}
}

func TestPayslipRendersPDF(t *testing.T) {
	f := newFixture(t)
	record := f.record(t, "emp-1", testPeriod)
	data, _, err := f.payroll.Payslip(context.Background(), "t1", record.ID)
	if err != nil {
		t.Fatalf("payslip: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected a PDF document")
	}
	if _, _, err := f.payroll.Payslip(context.Background(), "t2", record.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another tenant, got %v", err)
	}
}

func TestBoltQueryOrdersByPeriodThenCreation(t *testing.T) {
	db, err := docstore.Open(filepath.Join(t.TempDir(), "hris.db"), CollectionPayrollRecords)
	if err != nil {
		t.Fatalf("open docstore: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	store := NewBoltStore(db)
	ctx := context.Background()

	march := PayPeriod{
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		Cadence:   CadenceMonthly,
	}
	seed := []struct {
		id     string
		period PayPeriod
		at     time.Time
	}{
		{"zz-first", testPeriod, testNow},
		{"mm-second", testPeriod, testNow.Add(time.Hour)},
		{"aa-third", testPeriod, testNow.Add(2 * time.Hour)},
		{"bb-march", march, testNow.Add(3 * time.Hour)},
	}
	for _, s := range seed {
		record, err := NewPayrollRecord(s.id, NewRecord{TenantID: "t1", EmployeeID: s.id, PayPeriod: s.period, BaseSalary: d("1000")}, s.at)
		if err != nil {
			t.Fatalf("new record %s: %v", s.id, err)
		}
		record.Version = 1
		if err := store.Create(ctx, record); err != nil {
			t.Fatalf("create %s: %v", s.id, err)
		}
	}

	got, err := store.Query(ctx, "t1", Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	want := []string{"zz-first", "mm-second", "aa-third", "bb-march"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}
