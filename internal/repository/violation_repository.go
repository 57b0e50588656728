package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bookwell/penalty-service/internal/domain"
)

// ViolationFilter captures violation search parameters.
type ViolationFilter struct {
	Account      *domain.AccountRef
	Code         *string
	Statuses     []domain.ViolationStatus
	AppealStatus *domain.AppealStatus
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// CodeCount is a per-code tally used by dashboards.
type CodeCount struct {
	Code  string
	Count int
}

// ViolationRepository encapsulates violation persistence.
type ViolationRepository interface {
	Create(ctx context.Context, violation *domain.Violation) error
	Update(ctx context.Context, violation *domain.Violation) error
	GetByID(ctx context.Context, id string) (*domain.Violation, error)
	// GetForUpdate locks the violation row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Violation, error)
	List(ctx context.Context, filter ViolationFilter) ([]domain.Violation, error)
	Count(ctx context.Context, filter ViolationFilter) (int, error)
	CountByCodeSince(ctx context.Context, since time.Time, limit int) ([]CodeCount, error)
}

type violationRepository struct {
	db DBTX
}

// NewViolationRepository instantiates repository.
func NewViolationRepository(db DBTX) ViolationRepository {
	return &violationRepository{db: db}
}

const violationColumns = `id, customer_id, provider_id, violation_code, points_deducted, status, appeal_status,
               appeal_reason, appealed_at, reviewed_by, reviewed_at, review_notes, reversal_reason,
               appointment_id, report_id, rating_id, details, evidence_urls, detected_by,
               detected_by_admin_id, idempotency_key, created_at, updated_at`

func (r *violationRepository) Create(ctx context.Context, v *domain.Violation) error {
	const query = `
        INSERT INTO penalty_violations (customer_id, provider_id, violation_code, points_deducted, status, appeal_status,
            appointment_id, report_id, rating_id, details, evidence_urls, detected_by, detected_by_admin_id, idempotency_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	evidence := v.EvidenceURLs
	if evidence == nil {
		evidence = []string{}
	}
	err := r.db.QueryRow(ctx, query,
		v.Account.CustomerID(),
		v.Account.ProviderID(),
		v.ViolationCode,
		v.PointsDeducted,
		v.Status,
		v.AppealStatus,
		v.AppointmentID,
		v.ReportID,
		v.RatingID,
		v.Details,
		evidence,
		v.DetectedBy,
		v.DetectedByAdminID,
		v.IdempotencyKey,
	).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt)
	return translateErr(err)
}

// Update writes the mutable workflow columns. points_deducted and the
// account reference are immutable after creation.
func (r *violationRepository) Update(ctx context.Context, v *domain.Violation) error {
	const query = `
        UPDATE penalty_violations SET status=$1, appeal_status=$2, appeal_reason=$3, appealed_at=$4,
            reviewed_by=$5, reviewed_at=$6, review_notes=$7, reversal_reason=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.db.Exec(ctx, query,
		v.Status,
		v.AppealStatus,
		v.AppealReason,
		v.AppealedAt,
		v.ReviewedBy,
		v.ReviewedAt,
		v.ReviewNotes,
		v.ReversalReason,
		v.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *violationRepository) GetByID(ctx context.Context, id string) (*domain.Violation, error) {
	query := fmt.Sprintf(`SELECT %s FROM penalty_violations WHERE id=$1`, violationColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *violationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Violation, error) {
	query := fmt.Sprintf(`SELECT %s FROM penalty_violations WHERE id=$1 FOR UPDATE`, violationColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *violationRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Violation, error) {
	row := r.db.QueryRow(ctx, query, arg)
	v, err := scanViolation(row)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *violationRepository) List(ctx context.Context, filter ViolationFilter) ([]domain.Violation, error) {
	where, args := violationWhere(filter)
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM penalty_violations WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		violationColumns, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Violation
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *violationRepository) Count(ctx context.Context, filter ViolationFilter) (int, error) {
	where, args := violationWhere(filter)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM penalty_violations WHERE %s`, where)
	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *violationRepository) CountByCodeSince(ctx context.Context, since time.Time, limit int) ([]CodeCount, error) {
	const query = `
        SELECT violation_code, COUNT(*) FROM penalty_violations
        WHERE created_at >= $1 GROUP BY violation_code ORDER BY COUNT(*) DESC, violation_code LIMIT $2`
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CodeCount
	for rows.Next() {
		var cc CodeCount
		if err := rows.Scan(&cc.Code, &cc.Count); err != nil {
			return nil, err
		}
		result = append(result, cc)
	}
	return result, rows.Err()
}

func violationWhere(filter ViolationFilter) (string, []any) {
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
	if filter.Code != nil {
		args = append(args, *filter.Code)
		clauses = append(clauses, fmt.Sprintf("violation_code=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AppealStatus != nil {
		args = append(args, *filter.AppealStatus)
		clauses = append(clauses, fmt.Sprintf("appeal_status=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func scanViolation(row pgx.Row) (*domain.Violation, error) {
	var (
		v          domain.Violation
		customerID *string
		providerID *string
	)
	if err := row.Scan(
		&v.ID,
		&customerID,
		&providerID,
		&v.ViolationCode,
		&v.PointsDeducted,
		&v.Status,
		&v.AppealStatus,
		&v.AppealReason,
		&v.AppealedAt,
		&v.ReviewedBy,
		&v.ReviewedAt,
		&v.ReviewNotes,
		&v.ReversalReason,
		&v.AppointmentID,
		&v.ReportID,
		&v.RatingID,
		&v.Details,
		&v.EvidenceURLs,
		&v.DetectedBy,
		&v.DetectedByAdminID,
		&v.IdempotencyKey,
		&v.CreatedAt,
		&v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ref, err := domain.RefFromColumns(customerID, providerID)
	if err != nil {
		return nil, fmt.Errorf("violation %s: %w", v.ID, err)
	}
	v.Account = ref
	return &v, nil
}
