package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hris/internal/platform/querier"
)

// Store persists financial requests in PostgreSQL.
type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const requestColumns = `id, tenant_id, employee_id, employee_name, employee_email, request_type,
    amount, currency, reason, status, repayment_type, repayment_method,
    installment_months, installment_amount, amount_recovered, remaining_balance,
    linked_payroll_ids, recoveries, recovery_start_date, recovery_complete_date,
    approved_by, approved_at, rejection_reason, paid_at, version, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (FinancialRequest, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM financial_requests WHERE id = $1", id)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FinancialRequest{}, ErrNotFound
	}
	return req, err
}

func (s *Store) Query(ctx context.Context, tenantID string, filter Filter) ([]FinancialRequest, error) {
	query, args := buildQuery(tenantID, filter)
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FinancialRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, req FinancialRequest) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO financial_requests (`+requestColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
  `, req.ID, req.TenantID, req.EmployeeID, req.EmployeeName, req.EmployeeEmail, string(req.RequestType),
		req.Amount, req.Currency, req.Reason, string(req.Status), string(req.RepaymentType), string(req.RepaymentMethod),
		req.InstallmentMonths, req.InstallmentAmount, req.AmountRecovered, req.RemainingBalance,
		req.LinkedPayrollIDs, req.Recoveries, req.RecoveryStartDate, req.RecoveryCompleteDate,
		req.ApprovedBy, req.ApprovedAt, req.RejectionReason, req.PaidAt, req.Version, req.CreatedAt, req.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: id %s already exists", ErrConflict, req.ID)
	}
	return err
}

func (s *Store) Update(ctx context.Context, req FinancialRequest, expectedVersion int64) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE financial_requests SET
      employee_name = $3, employee_email = $4, amount = $5, currency = $6, reason = $7, status = $8,
      repayment_type = $9, repayment_method = $10, installment_months = $11, installment_amount = $12,
      amount_recovered = $13, remaining_balance = $14, linked_payroll_ids = $15, recoveries = $16,
      recovery_start_date = $17, recovery_complete_date = $18, approved_by = $19, approved_at = $20,
      rejection_reason = $21, paid_at = $22, version = $23, updated_at = $24
    WHERE id = $1 AND version = $2
  `, req.ID, expectedVersion, req.EmployeeName, req.EmployeeEmail, req.Amount, req.Currency, req.Reason, string(req.Status),
		string(req.RepaymentType), string(req.RepaymentMethod), req.InstallmentMonths, req.InstallmentAmount,
		req.AmountRecovered, req.RemainingBalance, req.LinkedPayrollIDs, req.Recoveries,
		req.RecoveryStartDate, req.RecoveryCompleteDate, req.ApprovedBy, req.ApprovedAt,
		req.RejectionReason, req.PaidAt, req.Version, req.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM financial_requests WHERE id = $1)", req.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM financial_requests ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func buildQuery(tenantID string, filter Filter) (string, []any) {
	var where []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if tenantID != "" {
		add("tenant_id", tenantID)
	}
	if filter.EmployeeID != "" {
		add("employee_id", filter.EmployeeID)
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.RequestType != "" {
		add("request_type", string(filter.RequestType))
	}
	query := "SELECT " + requestColumns + " FROM financial_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at"
	return query, args
}

func scanRequest(row pgx.Row) (FinancialRequest, error) {
	var req FinancialRequest
	var requestType, status, repaymentType, repaymentMethod string
	err := row.Scan(&req.ID, &req.TenantID, &req.EmployeeID, &req.EmployeeName, &req.EmployeeEmail, &requestType,
		&req.Amount, &req.Currency, &req.Reason, &status, &repaymentType, &repaymentMethod,
		&req.InstallmentMonths, &req.InstallmentAmount, &req.AmountRecovered, &req.RemainingBalance,
		&req.LinkedPayrollIDs, &req.Recoveries, &req.RecoveryStartDate, &req.RecoveryCompleteDate,
		&req.ApprovedBy, &req.ApprovedAt, &req.RejectionReason, &req.PaidAt, &req.Version, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return FinancialRequest{}, err
	}
	req.RequestType = RequestType(requestType)
	req.Status = Status(status)
	req.RepaymentType = RepaymentType(repaymentType)
	req.RepaymentMethod = RepaymentMethod(repaymentMethod)
	return normalizeStored(req)
}
