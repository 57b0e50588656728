package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/penalty-service/internal/domain"
)

// AdjustmentFilter narrows ledger queries.
type AdjustmentFilter struct {
	Account     *domain.AccountRef
	Types       []domain.AdjustmentType
	ViolationID *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// AdjustmentSummary aggregates ledger rows of one type for an account.
type AdjustmentSummary struct {
	Count       int
	TotalPoints int
	LastAt      *time.Time
}

// AdjustmentRepository is the append-only ledger. There is no update or delete.
type AdjustmentRepository interface {
	Create(ctx context.Context, adjustment *domain.Adjustment) error
	List(ctx context.Context, filter AdjustmentFilter) ([]domain.Adjustment, error)
	Summarize(ctx context.Context, ref domain.AccountRef, adjustmentType domain.AdjustmentType) (AdjustmentSummary, error)
}

type adjustmentRepository struct {
	db DBTX
}

// NewAdjustmentRepository builds repository.
func NewAdjustmentRepository(db DBTX) AdjustmentRepository {
	return &adjustmentRepository{db: db}
}

func (r *adjustmentRepository) Create(ctx context.Context, a *domain.Adjustment) error {
	const query = `
        INSERT INTO penalty_adjustments (customer_id, provider_id, adjustment_type, points_adjusted, previous_points,
            new_points, reason, related_violation_id, adjusted_by_admin_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		a.Account.CustomerID(),
		a.Account.ProviderID(),
		a.Type,
		a.PointsAdjusted,
		a.PreviousPoints,
		a.NewPoints,
		a.Reason,
		a.RelatedViolationID,
		a.AdjustedByAdminID,
	).Scan(&a.ID, &a.CreatedAt)
}

func (r *adjustmentRepository) List(ctx context.Context, filter AdjustmentFilter) ([]domain.Adjustment, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Account != nil {
		args = append(args, filter.Account.ID)
		column := "customer_id"
		if filter.Account.Kind == domain.AccountKindProvider {
			column = "provider_id"
		}
		clauses = append(clauses, fmt.Sprintf("%s=$%d", column, len(args)))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("adjustment_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ViolationID != nil {
		args = append(args, *filter.ViolationID)
		clauses = append(clauses, fmt.Sprintf("related_violation_id=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`
        SELECT id, customer_id, provider_id, adjustment_type, points_adjusted, previous_points, new_points,
               reason, related_violation_id, adjusted_by_admin_id, created_at
        FROM penalty_adjustments WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func (r *adjustmentRepository) Summarize(ctx context.Context, ref domain.AccountRef, adjustmentType domain.AdjustmentType) (AdjustmentSummary, error) {
	column := "customer_id"
	if ref.Kind == domain.AccountKindProvider {
		column = "provider_id"
	}
	query := fmt.Sprintf(`
        SELECT COUNT(*), COALESCE(SUM(points_adjusted), 0), MAX(created_at)
        FROM penalty_adjustments WHERE %s=$1 AND adjustment_type=$2`, column)

	var summary AdjustmentSummary
	if err := r.db.QueryRow(ctx, query, ref.ID, adjustmentType).Scan(
		&summary.Count,
		&summary.TotalPoints,
		&summary.LastAt,
	); err != nil {
		return AdjustmentSummary{}, err
	}
	return summary, nil
}

func scanAdjustments(rows pgx.Rows) ([]domain.Adjustment, error) {
	var result []domain.Adjustment
	for rows.Next() {
		var (
			a          domain.Adjustment
			customerID *string
			providerID *string
		)
		if err := rows.Scan(
			&a.ID,
			&customerID,
			&providerID,
			&a.Type,
			&a.PointsAdjusted,
			&a.PreviousPoints,
			&a.NewPoints,
			&a.Reason,
			&a.RelatedViolationID,
			&a.AdjustedByAdminID,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		ref, err := domain.RefFromColumns(customerID, providerID)
		if err != nil {
			return nil, fmt.Errorf("adjustment %s: %w", a.ID, err)
		}
		a.Account = ref
		result = append(result, a)
	}
	return result, rows.Err()
}
