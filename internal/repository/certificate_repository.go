package repository

import (
	"context"
	"time"

	"github.com/bookwell/penalty-service/internal/domain"
)

// CertificateRepository tracks provider certificate expiry.
type CertificateRepository interface {
	// ListExpiringBetween returns active certificates expiring in [from, to) with no reminder sent yet.
	ListExpiringBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.Certificate, error)
	// ListExpired returns certificates still marked active whose expiry is at or before now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Certificate, error)
	// MarkExpired flips an active certificate to expired. It reports false if
	// another worker already claimed it.
	MarkExpired(ctx context.Context, id string) (bool, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
}

type certificateRepository struct {
	db DBTX
}

// NewCertificateRepository instantiates the repository.
func NewCertificateRepository(db DBTX) CertificateRepository {
	return &certificateRepository{db: db}
}

const certificateColumns = `id, provider_id, name, expires_at, status, reminder_sent_at, created_at, updated_at`

func (r *certificateRepository) ListExpiringBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.Certificate, error) {
	const query = `
        SELECT ` + certificateColumns + `
        FROM provider_certificates
        WHERE status=$1 AND reminder_sent_at IS NULL AND expires_at >= $2 AND expires_at < $3
        ORDER BY expires_at LIMIT $4`
	return r.list(ctx, query, domain.CertificateActive, from, to, pageLimit(limit))
}

func (r *certificateRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Certificate, error) {
	const query = `
        SELECT ` + certificateColumns + `
        FROM provider_certificates
        WHERE status=$1 AND expires_at <= $2
        ORDER BY expires_at LIMIT $3`
	return r.list(ctx, query, domain.CertificateActive, now, pageLimit(limit))
}

func (r *certificateRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE provider_certificates SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3`
	cmd, err := r.db.Exec(ctx, query, domain.CertificateExpired, id, domain.CertificateActive)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *certificateRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE provider_certificates SET reminder_sent_at=$1, updated_at=NOW()
        WHERE id=$2 AND reminder_sent_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *certificateRepository) list(ctx context.Context, query string, args ...any) ([]domain.Certificate, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Certificate
	for rows.Next() {
		var cert domain.Certificate
		if err := rows.Scan(
			&cert.ID,
			&cert.ProviderID,
			&cert.Name,
			&cert.ExpiresAt,
			&cert.Status,
			&cert.ReminderSentAt,
			&cert.CreatedAt,
			&cert.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, cert)
	}
	return result, rows.Err()
}

func pageLimit(limit int) int {
	if limit <= 0 {
		return 500
	}
	return limit
}
