package finance

import "context"

// StoreAPI is the document-store contract the ledger depends on: get by id,
// query by field, create, and version-checked update.
type StoreAPI interface {
	Get(ctx context.Context, id string) (FinancialRequest, error)
	Query(ctx context.Context, tenantID string, filter Filter) ([]FinancialRequest, error)
	Create(ctx context.Context, req FinancialRequest) error
	// Update replaces the stored request if its version still equals
	// expectedVersion; otherwise it fails with ErrConflict.
	Update(ctx context.Context, req FinancialRequest, expectedVersion int64) error
	// ListIDs returns every request id across tenants, for batch maintenance.
	ListIDs(ctx context.Context) ([]string, error)
}

// normalizeStored enforces the closed enumerations on anything read back from storage.
func normalizeStored(req FinancialRequest) (FinancialRequest, error) {
	status, err := ParseStatus(string(req.Status))
	if err != nil {
		return FinancialRequest{}, err
	}
	req.Status = status
	if req.LinkedPayrollIDs == nil {
		req.LinkedPayrollIDs = []string{}
	}
	if req.Recoveries == nil {
		req.Recoveries = []Recovery{}
	}
	return req, nil
}
