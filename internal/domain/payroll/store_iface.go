package payroll

import "context"

type StoreAPI interface {
	Get(ctx context.Context, id string) (PayrollRecord, error)
	Query(ctx context.Context, tenantID string, filter Filter) ([]PayrollRecord, error)
	Create(ctx context.Context, record PayrollRecord) error
	// Update fails with ErrConflict unless the stored version equals expectedVersion.
	Update(ctx context.Context, record PayrollRecord, expectedVersion int64) error
	ListIDs(ctx context.Context) ([]string, error)
}

func normalizeStored(r PayrollRecord) (PayrollRecord, error) {
	status, err := ParsePaymentStatus(string(r.PaymentStatus))
	if err != nil {
		return PayrollRecord{}, err
	}
	r.PaymentStatus = status
	if r.Allowances == nil {
		r.Allowances = []Allowance{}
	}
	if r.Deductions == nil {
		r.Deductions = []Deduction{}
	}
	return Recompute(r), nil
}
