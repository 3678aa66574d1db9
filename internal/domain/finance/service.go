package finance

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

	"hris/internal/platform/lock"
	"hris/internal/requestctx"
)

const (
	defaultMaxAttempts      = 5
	defaultBatchConcurrency = 16
)

type Service struct {
	store            StoreAPI
	locker           lock.Locker
	notifier         Notifier
	recorder         RecoveryRecorder
	now              func() time.Time
	newID            func() string
	maxAttempts      int
	batchConcurrency int
}

type Option func(*Service)

// RecoveryRecorder observes every ApplyRecovery outcome, replays included.
type RecoveryRecorder interface {
	RecordRecovery(amount decimal.Decimal, replayed, completed bool)
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithRecoveryRecorder(r RecoveryRecorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithBatchConcurrency bounds the goroutines used by batch maintenance; n <= 0 means unbounded.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		s.batchConcurrency = n
	}
}

func NewService(store StoreAPI, locker lock.Locker, opts ...Option) *Service {
	if locker == nil {
		locker = lock.NewMemory()
	}
	s := &Service{
		store:            store,
		locker:           locker,
		notifier:         noopNotifier{},
		now:              func() time.Time { return time.Now().UTC() },
		newID:            uuid.NewString,
		maxAttempts:      defaultMaxAttempts,
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in NewRequest) (FinancialRequest, error) {
	req, err := NewFinancialRequest(s.newID(), in, s.now())
	if err != nil {
		return FinancialRequest{}, err
	}
	req.Version = 1
	if err := s.store.Create(ctx, req); err != nil {
		return FinancialRequest{}, err
	}
	return req, nil
}

// Get returns the request if it belongs to tenantID. An empty tenantID skips the check.
func (s *Service) Get(ctx context.Context, tenantID, id string) (FinancialRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		return FinancialRequest{}, err
	}
	if tenantID != "" && req.TenantID != tenantID {
		return FinancialRequest{}, ErrNotFound
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter) ([]FinancialRequest, error) {
	return s.store.Query(ctx, tenantID, filter)
}

// Outstanding lists the employee's loans and advances still being recovered,
// oldest first.
func (s *Service) Outstanding(ctx context.Context, tenantID, employeeID string) ([]FinancialRequest, error) {
	all, err := s.store.Query(ctx, tenantID, Filter{EmployeeID: employeeID})
	if err != nil {
		return nil, err
	}
	out := make([]FinancialRequest, 0, len(all))
	for _, req := range all {
		if req.RequestType.Recoverable() && req.Status.CanRecover() && req.RemainingBalance.IsPositive() {
			out = append(out, req)
		}
	}
	return out, nil
}

func (s *Service) Approve(ctx context.Context, tenantID, id, approverID string) (FinancialRequest, error) {
	req, err := s.mutate(ctx, tenantID, id, func(current FinancialRequest) (FinancialRequest, bool, error) {
		next, err := Approve(current, approverID, s.now())
		return next, err == nil, err
	})
	if err == nil {
		s.notify(ctx, req)
	}
	return req, err
}

func (s *Service) Reject(ctx context.Context, tenantID, id, reason string) (FinancialRequest, error) {
	req, err := s.mutate(ctx, tenantID, id, func(current FinancialRequest) (FinancialRequest, bool, error) {
		next, err := Reject(current, reason, s.now())
		return next, err == nil, err
	})
	if err == nil {
		s.notify(ctx, req)
	}
	return req, err
}

func (s *Service) Disburse(ctx context.Context, tenantID, id string, plan RepaymentPlan) (FinancialRequest, error) {
	req, err := s.mutate(ctx, tenantID, id, func(current FinancialRequest) (FinancialRequest, bool, error) {
		next, err := Disburse(current, plan, s.now())
		return next, err == nil, err
	})
	if err == nil {
		s.notify(ctx, req)
	}
	return req, err
}

// ApplyRecovery records one payroll record's deduction against the request.
// The returned amount is what the payroll deduction line item must carry.
func (s *Service) ApplyRecovery(ctx context.Context, tenantID, id, payrollRecordID string, proposed decimal.Decimal) (RecoveryResult, error) {
	var result RecoveryResult
	req, err := s.mutate(ctx, tenantID, id, func(current FinancialRequest) (FinancialRequest, bool, error) {
		r, err := ApplyRecovery(current, payrollRecordID, proposed, s.now())
		if err != nil {
			return current, false, err
		}
		result = r
		return r.Request, !r.Replayed, nil
	})
	if err != nil {
		return RecoveryResult{Request: req}, err
	}
	result.Request = req
	if s.recorder != nil {
		s.recorder.RecordRecovery(result.Amount, result.Replayed, req.Status == StatusCompleted)
	}
	if !result.Replayed {
		requestctx.Logger(ctx).Info("financial request recovery applied",
			"requestId", req.ID, "payrollRecordId", payrollRecordID,
			"amount", result.Amount.String(), "remaining", req.RemainingBalance.String(), "status", req.Status)
		if req.Status == StatusCompleted {
			s.notify(ctx, req)
		}
	}
	return result, nil
}

// RepairInstallments recomputes installment amounts across every stored request.
// Reads fan out concurrently; each write goes through the per-request lock.
// A record that fails is reported and skipped.
func (s *Service) RepairInstallments(ctx context.Context) (RepairReport, error) {
	return s.repairAll(ctx, s.repairOne)
}

// PreviewInstallmentRepair reports which requests RepairInstallments would
// change without writing anything.
func (s *Service) PreviewInstallmentRepair(ctx context.Context) (RepairReport, error) {
	return s.repairAll(ctx, func(ctx context.Context, id string) RepairOutcome {
		req, err := s.store.Get(ctx, id)
		if err != nil {
			return RepairOutcome{ID: id, Error: err.Error()}
		}
		return RepairOutcome{ID: id, Changed: NeedsInstallmentRepair(req)}
	})
}

func (s *Service) repairAll(ctx context.Context, visit func(context.Context, string) RepairOutcome) (RepairReport, error) {
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return RepairReport{}, err
	}

	outcomes := make([]RepairOutcome, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if s.batchConcurrency > 0 {
		g.SetLimit(s.batchConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = visit(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	report := RepairReport{Total: len(ids), Outcomes: outcomes}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			report.Failed++
		case o.Changed:
			report.Fixed++
		default:
			report.AlreadyCorrect++
		}
	}
	slog.Info("installment repair finished",
		"total", report.Total, "fixed", report.Fixed, "alreadyCorrect", report.AlreadyCorrect, "failed", report.Failed)
	return report, ctx.Err()
}

func (s *Service) repairOne(ctx context.Context, id string) RepairOutcome {
	snapshot, err := s.store.Get(ctx, id)
	if err != nil {
		slog.Warn("installment repair read failed", "requestId", id, "err", err)
		return RepairOutcome{ID: id, Error: err.Error()}
	}
	if !NeedsInstallmentRepair(snapshot) {
		return RepairOutcome{ID: id}
	}

	changed := false
	_, err = s.mutate(ctx, "", id, func(current FinancialRequest) (FinancialRequest, bool, error) {
		next, ok := RepairInstallmentAmount(current, s.now())
		changed = ok
		return next, ok, nil
	})
	if err != nil {
		slog.Warn("installment repair write failed", "requestId", id, "err", err)
		return RepairOutcome{ID: id, Error: err.Error()}
	}
	return RepairOutcome{ID: id, Changed: changed}
}

// NormalizeCurrency rewrites the currency of every request to target.
func (s *Service) NormalizeCurrency(ctx context.Context, target string) (NormalizeReport, error) {
	target = strings.ToUpper(strings.TrimSpace(target))
	if len(target) != 3 {
		return NormalizeReport{}, fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrInvalidInput)
	}
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return NormalizeReport{}, err
	}

	type result struct {
		updated bool
		err     error
	}
	results := make([]result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if s.batchConcurrency > 0 {
		g.SetLimit(s.batchConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			updated := false
			_, err := s.mutate(gctx, "", id, func(current FinancialRequest) (FinancialRequest, bool, error) {
				if current.Currency == target {
					return current, false, nil
				}
				next := current.Clone()
				next.Currency = target
				next.UpdatedAt = s.now()
				updated = true
				return next, true, nil
			})
			results[i] = result{updated: updated, err: err}
			return nil
		})
	}
	_ = g.Wait()

	report := NormalizeReport{Collection: CollectionFinancialRequests, Total: len(ids)}
	for i, r := range results {
		switch {
		case r.err != nil:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, ids[i])
			slog.Warn("currency normalization failed", "requestId", ids[i], "err", r.err)
		case r.updated:
			report.Updated++
		default:
			report.AlreadyTarget++
		}
	}
	return report, ctx.Err()
}

// mutate runs fn against the latest stored request under the per-request lock
// and writes the result with a version check. fn reports whether it changed
// anything; unchanged results are not written.
func (s *Service) mutate(ctx context.Context, tenantID, id string, fn func(FinancialRequest) (FinancialRequest, bool, error)) (FinancialRequest, error) {
	release, err := s.locker.Lock(ctx, CollectionFinancialRequests+"/"+id)
	if err != nil {
		return FinancialRequest{}, err
	}
	defer release()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		current, err := s.Get(ctx, tenantID, id)
		if err != nil {
			return FinancialRequest{}, err
		}
		next, changed, err := fn(current)
		if err != nil {
			return current, err
		}
		if !changed {
			return current, nil
		}
		if err := CheckInvariants(next); err != nil {
			return current, fmt.Errorf("refusing to store request %s: %w", id, err)
		}
		next.Version = current.Version + 1
		err = s.store.Update(ctx, next, current.Version)
		if errors.Is(err, ErrConflict) {
			slog.Debug("financial request version conflict, retrying", "requestId", id, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return current, err
		}
		return next, nil
	}
	return FinancialRequest{}, ErrConflict
}

func (s *Service) notify(ctx context.Context, req FinancialRequest) {
	if err := s.notifier.StatusChanged(ctx, req); err != nil {
		requestctx.Logger(ctx).Warn("financial request notification failed", "requestId", req.ID, "status", req.Status, "err", err)
	}
}
