package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"hris/internal/platform/docstore"
)

type BoltStore struct {
	docs *docstore.Collection[FinancialRequest]
}

func NewBoltStore(db *docstore.DB) *BoltStore {
	return &BoltStore{
		docs: docstore.NewCollection(db, CollectionFinancialRequests, func(r FinancialRequest) int64 { return r.Version }),
	}
}

func (s *BoltStore) Get(ctx context.Context, id string) (FinancialRequest, error) {
	req, err := s.docs.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return FinancialRequest{}, ErrNotFound
	}
	if err != nil {
		return FinancialRequest{}, err
	}
	return normalizeStored(req)
}

func (s *BoltStore) Query(ctx context.Context, tenantID string, filter Filter) ([]FinancialRequest, error) {
	return s.find(ctx, func(r FinancialRequest) bool {
		if tenantID != "" && r.TenantID != tenantID {
			return false
		}
		return filter.Matches(r)
	})
}

func (s *BoltStore) Create(ctx context.Context, req FinancialRequest) error {
	if err := s.docs.Create(ctx, req.ID, req); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return fmt.Errorf("%w: id %s already exists", ErrConflict, req.ID)
		}
		return err
	}
	return nil
}

func (s *BoltStore) Update(ctx context.Context, req FinancialRequest, expectedVersion int64) error {
	err := s.docs.CompareAndSwap(ctx, req.ID, expectedVersion, req)
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

func (s *BoltStore) find(ctx context.Context, keep func(FinancialRequest) bool) ([]FinancialRequest, error) {
	docs, err := s.docs.Find(ctx, func(r FinancialRequest) bool {
		status, err := ParseStatus(string(r.Status))
		if err == nil {
			r.Status = status
		}
		return keep == nil || keep(r)
	})
	if err != nil {
		return nil, err
	}
	out := make([]FinancialRequest, 0, len(docs))
	for _, doc := range docs {
		req, err := normalizeStored(doc)
		if err != nil {
			return nil, fmt.Errorf("financial request %s: %w", doc.ID, err)
		}
		out = append(out, req)
	}
	// Bolt iterates in key order; callers expect creation order.
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
