package repository

import (
	"context"

	"github.com/bookwell/penalty-service/internal/domain"
)

// ViolationTypeRepository persists the violation catalog.
type ViolationTypeRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.ViolationType, error)
	List(ctx context.Context, filter ViolationTypeFilter) ([]domain.ViolationType, error)
	Upsert(ctx context.Context, vt *domain.ViolationType) error
}

// ViolationTypeFilter narrows catalog listings.
type ViolationTypeFilter struct {
	Category   *domain.ViolationCategory
	ActiveOnly bool
}

type violationTypeRepository struct {
	db DBTX
}

// NewViolationTypeRepository instantiates the repository.
func NewViolationTypeRepository(db DBTX) ViolationTypeRepository {
	return &violationTypeRepository{db: db}
}

func (r *violationTypeRepository) GetByCode(ctx context.Context, code string) (*domain.ViolationType, error) {
	const query = `
        SELECT code, category, point_cost, description, requires_evidence, auto_detect, is_active, created_at, updated_at
        FROM violation_types WHERE code=$1`

	var vt domain.ViolationType
	if err := r.db.QueryRow(ctx, query, code).Scan(
		&vt.Code,
		&vt.Category,
		&vt.PointCost,
		&vt.Description,
		&vt.RequiresEvidence,
		&vt.AutoDetect,
		&vt.IsActive,
		&vt.CreatedAt,
		&vt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &vt, nil
}

func (r *violationTypeRepository) List(ctx context.Context, filter ViolationTypeFilter) ([]domain.ViolationType, error) {
	const query = `
        SELECT code, category, point_cost, description, requires_evidence, auto_detect, is_active, created_at, updated_at
        FROM violation_types WHERE ($1::text IS NULL OR category=$1) AND (NOT $2 OR is_active)
        ORDER BY category, point_cost, code`

	var category *string
	if filter.Category != nil {
		c := string(*filter.Category)
		category = &c
	}
	rows, err := r.db.Query(ctx, query, category, filter.ActiveOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ViolationType
	for rows.Next() {
		var vt domain.ViolationType
		if err := rows.Scan(
			&vt.Code,
			&vt.Category,
			&vt.PointCost,
			&vt.Description,
			&vt.RequiresEvidence,
			&vt.AutoDetect,
			&vt.IsActive,
			&vt.CreatedAt,
			&vt.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, vt)
	}
	return result, rows.Err()
}

func (r *violationTypeRepository) Upsert(ctx context.Context, vt *domain.ViolationType) error {
	const query = `
        INSERT INTO violation_types (code, category, point_cost, description, requires_evidence, auto_detect, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (code) DO UPDATE SET category=EXCLUDED.category, point_cost=EXCLUDED.point_cost,
            description=EXCLUDED.description, requires_evidence=EXCLUDED.requires_evidence,
            auto_detect=EXCLUDED.auto_detect, is_active=EXCLUDED.is_active, updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		vt.Code,
		vt.Category,
		vt.PointCost,
		vt.Description,
		vt.RequiresEvidence,
		vt.AutoDetect,
		vt.IsActive,
	).Scan(&vt.CreatedAt, &vt.UpdatedAt)
}
