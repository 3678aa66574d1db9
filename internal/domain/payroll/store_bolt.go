package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"hris/internal/platform/docstore"
)

type BoltStore struct {
	docs *docstore.Collection[PayrollRecord]
}

func NewBoltStore(db *docstore.DB) *BoltStore {
	return &BoltStore{
		docs: docstore.NewCollection(db, CollectionPayrollRecords, func(r PayrollRecord) int64 { return r.Version }),
	}
}

func (s *BoltStore) Get(ctx context.Context, id string) (PayrollRecord, error) {
	record, err := s.docs.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return PayrollRecord{}, ErrNotFound
	}
	if err != nil {
		return PayrollRecord{}, err
	}
	return normalizeStored(record)
}

func (s *BoltStore) Query(ctx context.Context, tenantID string, filter Filter) ([]PayrollRecord, error) {
	docs, err := s.docs.Find(ctx, func(r PayrollRecord) bool {
		if tenantID != "" && r.TenantID != tenantID {
			return false
		}
		if status, err := ParsePaymentStatus(string(r.PaymentStatus)); err == nil {
			r.PaymentStatus = status
		}
		return filter.Matches(r)
	})
	if err != nil {
		return nil, err
	}
	out := make([]PayrollRecord, 0, len(docs))
	for _, doc := range docs {
		record, err := normalizeStored(doc)
		if err != nil {
			return nil, fmt.Errorf("payroll record %s: %w", doc.ID, err)
		}
		out = append(out, record)
	}
	// Same order as the SQL store: latest period first, then creation order.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.PayPeriod.StartDate.Equal(b.PayPeriod.StartDate) {
			return a.PayPeriod.StartDate.After(b.PayPeriod.StartDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *BoltStore) Create(ctx context.Context, record PayrollRecord) error {
	err := s.docs.Create(ctx, record.ID, record)
	if errors.Is(err, docstore.ErrExists) {
		return fmt.Errorf("%w: id %s already exists", ErrConflict, record.ID)
	}
	return err
}

func (s *BoltStore) Update(ctx context.Context, record PayrollRecord, expectedVersion int64) error {
	err := s.docs.CompareAndSwap(ctx, record.ID, expectedVersion, record)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrVersionConflict):
		return ErrConflict
	}
	return err
}

func (s *BoltStore) ListIDs(ctx context.Context) ([]string, error) {
	return s.docs.IDs(ctx)
}
