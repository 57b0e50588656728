package repository

import (
	"context"

	"github.com/bookwell/penalty-service/internal/domain"
)

// RatingRepository is a read-only view over submitted ratings.
type RatingRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Rating, error)
	// ListRecentForProvider returns the newest customer-written ratings of a provider first.
	ListRecentForProvider(ctx context.Context, providerID string, limit int) ([]domain.Rating, error)
}

type ratingRepository struct {
	db DBTX
}

// NewRatingRepository instantiates the repository.
func NewRatingRepository(db DBTX) RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) GetByID(ctx context.Context, id string) (*domain.Rating, error) {
	const query = `
        SELECT id, appointment_id, customer_id, provider_id, rated_by, rating_value, created_at
        FROM ratings WHERE id=$1`

	var rating domain.Rating
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&rating.ID,
		&rating.AppointmentID,
		&rating.CustomerID,
		&rating.ProviderID,
		&rating.RatedBy,
		&rating.RatingValue,
		&rating.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *ratingRepository) ListRecentForProvider(ctx context.Context, providerID string, limit int) ([]domain.Rating, error) {
	const query = `
        SELECT id, appointment_id, customer_id, provider_id, rated_by, rating_value, created_at
        FROM ratings WHERE provider_id=$1 AND rated_by=$2
        ORDER BY created_at DESC, id DESC LIMIT $3`
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.db.Query(ctx, query, providerID, domain.AccountKindCustomer, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Rating
	for rows.Next() {
		var rating domain.Rating
		if err := rows.Scan(
			&rating.ID,
			&rating.AppointmentID,
			&rating.CustomerID,
			&rating.ProviderID,
			&rating.RatedBy,
			&rating.RatingValue,
			&rating.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rating)
	}
	return result, rows.Err()
}
