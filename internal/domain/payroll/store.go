package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"hris/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const recordColumns = `id, tenant_id, employee_id, employee_name,
    period_start, period_end, pay_date, cadence,
    base_salary, overtime, bonuses, allowances, deductions,
    gross_pay, total_deductions, net_pay,
    payment_status, currency, version, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (PayrollRecord, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+recordColumns+" FROM payroll_records WHERE id = $1", id)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PayrollRecord{}, ErrNotFound
	}
	return record, err
}

func (s *Store) Query(ctx context.Context, tenantID string, filter Filter) ([]PayrollRecord, error) {
	var where []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if tenantID != "" {
		add("tenant_id = $%d", tenantID)
	}
	if filter.EmployeeID != "" {
		add("employee_id = $%d", filter.EmployeeID)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", string(filter.PaymentStatus))
	}
	if filter.Period != nil {
		add("period_start = $%d", filter.Period.StartDate)
		add("period_end = $%d", filter.Period.EndDate)
	}
	query := "SELECT " + recordColumns + " FROM payroll_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY period_start DESC, created_at"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PayrollRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, r PayrollRecord) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO payroll_records (`+recordColumns+`)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
  `, r.ID, r.TenantID, r.EmployeeID, r.EmployeeName,
		r.PayPeriod.StartDate, r.PayPeriod.EndDate, r.PayPeriod.PayDate, string(r.PayPeriod.Cadence),
		r.BaseSalary, r.Overtime, r.Bonuses, r.Allowances, r.Deductions,
		r.GrossPay, r.TotalDeductions, r.NetPay,
		string(r.PaymentStatus), r.Currency, r.Version, r.CreatedAt, r.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == "payroll_records_employee_period_key" {
			return ErrDuplicatePeriod
		}
		return fmt.Errorf("%w: id %s already exists", ErrConflict, r.ID)
	}
	return err
}

func (s *Store) Update(ctx context.Context, r PayrollRecord, expectedVersion int64) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE payroll_records SET
      employee_name = $3, base_salary = $4, overtime = $5, bonuses = $6,
      allowances = $7, deductions = $8, gross_pay = $9, total_deductions = $10, net_pay = $11,
      payment_status = $12, currency = $13, version = $14, updated_at = $15
    WHERE id = $1 AND version = $2
  `, r.ID, expectedVersion, r.EmployeeName, r.BaseSalary, r.Overtime, r.Bonuses,
		r.Allowances, r.Deductions, r.GrossPay, r.TotalDeductions, r.NetPay,
		string(r.PaymentStatus), r.Currency, r.Version, r.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM payroll_records WHERE id = $1)", r.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM payroll_records ORDER BY created_at")
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

func scanRecord(row pgx.Row) (PayrollRecord, error) {
	var r PayrollRecord
	var cadence, status string
	err := row.Scan(&r.ID, &r.TenantID, &r.EmployeeID, &r.EmployeeName,
		&r.PayPeriod.StartDate, &r.PayPeriod.EndDate, &r.PayPeriod.PayDate, &cadence,
		&r.BaseSalary, &r.Overtime, &r.Bonuses, &r.Allowances, &r.Deductions,
		&r.GrossPay, &r.TotalDeductions, &r.NetPay,
		&status, &r.Currency, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return PayrollRecord{}, err
	}
	r.PayPeriod.Cadence = Cadence(cadence)
	r.PaymentStatus = PaymentStatus(status)
	return normalizeStored(r)
}
