package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"hris/internal/domain/finance"
	"hris/internal/platform/lock"
	"hris/internal/requestctx"
)

// Ledger is the part of the finance service payroll depends on.
type Ledger interface {
	Get(ctx context.Context, tenantID, id string) (finance.FinancialRequest, error)
	List(ctx context.Context, tenantID string, filter finance.Filter) ([]finance.FinancialRequest, error)
	ApplyRecovery(ctx context.Context, tenantID, id, payrollRecordID string, proposed decimal.Decimal) (finance.RecoveryResult, error)
}

type Service struct {
	store            StoreAPI
	ledger           Ledger
	locker           lock.Locker
	now              func() time.Time
	newID            func() string
	maxAttempts      int
	batchConcurrency int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(store StoreAPI, ledger Ledger, locker lock.Locker, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewMemory()
	}
	s := &Service{
		store:            store,
		ledger:           ledger,
		locker:           locker,
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		maxAttempts:      5,
		batchConcurrency: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in NewRecord) (PayrollRecord, error) {
	record, err := NewPayrollRecord(s.newID(), in, s.now())
	if err != nil {
		return PayrollRecord{}, err
	}
	record.Version = 1

	release, err := s.locker.Lock(ctx, CollectionPayrollRecords+"/employee/"+record.TenantID+"/"+record.EmployeeID)
	if err != nil {
		return PayrollRecord{}, err
	}
	defer release()

	existing, err := s.store.Query(ctx, record.TenantID, Filter{EmployeeID: record.EmployeeID, Period: &record.PayPeriod})
	if err != nil {
		return PayrollRecord{}, err
	}
	if len(existing) > 0 {
		return PayrollRecord{}, fmt.Errorf("%w: %s", ErrDuplicatePeriod, existing[0].ID)
	}
	if err := s.store.Create(ctx, record); err != nil {
		return PayrollRecord{}, err
	}
	return record, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (PayrollRecord, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return PayrollRecord{}, err
	}
	if tenantID != "" && record.TenantID != tenantID {
		return PayrollRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter) ([]PayrollRecord, error) {
	return s.store.Query(ctx, tenantID, filter)
}

func (s *Service) SetPaymentStatus(ctx context.Context, tenantID, id, status string) (PayrollRecord, error) {
	next, err := ParsePaymentStatus(status)
	if err != nil {
		return PayrollRecord{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.mutate(ctx, tenantID, id, func(current PayrollRecord) (PayrollRecord, bool, error) {
		if current.PaymentStatus == next {
			return current, false, nil
		}
		out, err := TransitionPayment(current, next, s.now())
		return out, err == nil, err
	})
}

// ApplyLoanDeduction recovers one financial request through the record and
// attaches a loan line item carrying the amount actually recovered. A zero
// proposed amount means the amount next due on the request. Calling it again
// for the same pair changes nothing.
func (s *Service) ApplyLoanDeduction(ctx context.Context, tenantID, recordID, requestID string, proposed decimal.Decimal) (LoanDeduction, error) {
	var out LoanDeduction
	record, err := s.mutate(ctx, tenantID, recordID, func(current PayrollRecord) (PayrollRecord, bool, error) {
		if !current.PaymentStatus.AcceptsDeductions() {
			return current, false, fmt.Errorf("%w: record is %s", ErrInvalidState, current.PaymentStatus)
		}
		req, err := s.ledger.Get(ctx, current.TenantID, requestID)
		if err != nil {
			return current, false, err
		}
		if req.EmployeeID != current.EmployeeID {
			return current, false, fmt.Errorf("%w: request %s belongs to another employee", ErrInvalidInput, requestID)
		}
		amount := proposed
		if !amount.IsPositive() {
			amount = finance.NextDue(req)
		}

		result, err := s.ledger.ApplyRecovery(ctx, current.TenantID, requestID, current.ID, amount)
		if err != nil {
			return current, false, err
		}
		next, line, changed := AttachLoanDeduction(current, result.Request, result.Amount, s.now())
		out = LoanDeduction{Deduction: line, Request: result.Request, Replayed: result.Replayed}
		return next, changed, nil
	})
	if err != nil {
		if out.Request.ID != "" {
			requestctx.Logger(ctx).Warn("loan recovered but payroll record not updated; retry to attach the deduction",
				"payrollRecordId", recordID, "requestId", requestID, "err", err)
		}
		return LoanDeduction{}, err
	}
	out.Record = record
	return out, nil
}

// RecoverForPeriod finds the employee's record for the period and applies one
// recovery per outstanding loan or advance. Requests already recovered through
// this record are replayed so a retried run converges on the same line items.
func (s *Service) RecoverForPeriod(ctx context.Context, tenantID, employeeID string, period PayPeriod, proposed decimal.Decimal) (PeriodRecovery, error) {
	if strings.TrimSpace(employeeID) == "" {
		return PeriodRecovery{}, fmt.Errorf("%w: employeeId is required", ErrInvalidInput)
	}
	records, err := s.store.Query(ctx, tenantID, Filter{EmployeeID: employeeID, Period: &period})
	if err != nil {
		return PeriodRecovery{}, err
	}
	if len(records) == 0 {
		return PeriodRecovery{}, fmt.Errorf("%w: no record for employee %s in %s", ErrNotFound, employeeID, period.Label())
	}
	record := records[0]

	requests, err := s.ledger.List(ctx, tenantID, finance.Filter{EmployeeID: employeeID})
	if err != nil {
		return PeriodRecovery{}, err
	}

	result := PeriodRecovery{Record: record, Deductions: []Deduction{}, Requests: []finance.FinancialRequest{}}
	for _, req := range requests {
		if !req.RequestType.Recoverable() {
			continue
		}
		outstanding := req.Status.CanRecover() && req.RemainingBalance.IsPositive()
		if !outstanding && !req.IsLinked(record.ID) {
			continue
		}
		applied, err := s.ApplyLoanDeduction(ctx, tenantID, record.ID, req.ID, proposed)
		if err != nil {
			return result, fmt.Errorf("recover %s: %w", req.ID, err)
		}
		result.Record = applied.Record
		result.Deductions = append(result.Deductions, applied.Deduction)
		result.Requests = append(result.Requests, applied.Request)
	}
	return result, nil
}

// NormalizeCurrency rewrites the currency of every payroll record to target.
func (s *Service) NormalizeCurrency(ctx context.Context, target string) (finance.NormalizeReport, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	if len(target) != 3 {
		return finance.NormalizeReport{}, fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidInput)
	}
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return finance.NormalizeReport{}, err
	}

	updated := make([]bool, len(ids))
	errs := make([]error, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			_, errs[i] = s.mutate(gctx, "", id, func(current PayrollRecord) (PayrollRecord, bool, error) {
				if current.Currency == target {
					return current, false, nil
				}
				next := current.Clone()
				next.Currency = target
				next.UpdatedAt = s.now()
				updated[i] = true
				return next, true, nil
			})
			return nil
		})
	}
	_ = g.Wait()

	report := finance.NormalizeReport{Collection: CollectionPayrollRecords, Total: len(ids)}
	for i, id := range ids {
		switch {
		case errs[i] != nil:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, id)
			slog.Warn("currency normalization failed", "payrollRecordId", id, "err", errs[i])
		case updated[i]:
			report.Updated++
		default:
			report.AlreadyTarget++
		}
	}
	return report, ctx.Err()
}

func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(PayrollRecord) (PayrollRecord, bool, error)) (PayrollRecord, error) {
	release, err := s.locker.Lock(ctx, CollectionPayrollRecords+"/"+id)
	if err != nil {
		return PayrollRecord{}, err
	}
	defer release()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, err := s.Get(ctx, tenantID, id)
		if err != nil {
			return PayrollRecord{}, err
		}
		next, changed, err := fn(current)
		if err != nil {
			return current, err
		}
		if !changed {
			return current, nil
		}
		next = Recompute(next)
		next.Version = current.Version + 1
		err = s.store.Update(ctx, next, current.Version)
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return current, err
		}
		return next, nil
	}
	return PayrollRecord{}, ErrConflict
}
