package repository

import (
	"context"
	"time"

	"github.com/bookwell/penalty-service/internal/domain"
)

// AppointmentRepository is a read-only view over the booking service's appointments.
type AppointmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Appointment, error)
	CountActiveByCustomer(ctx context.Context, customerID string) (int, error)
	CountActiveByProviderOn(ctx context.Context, providerID string, day time.Time) (int, error)
}

type appointmentRepository struct {
	db DBTX
}

// NewAppointmentRepository instantiates the repository.
func NewAppointmentRepository(db DBTX) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) GetByID(ctx context.Context, id string) (*domain.Appointment, error) {
	const query = `
        SELECT id, customer_id, provider_id, scheduled_at, status, cancelled_at, cancelled_by, created_at, updated_at
        FROM appointments WHERE id=$1`

	var appt domain.Appointment
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.CustomerID,
		&appt.ProviderID,
		&appt.ScheduledAt,
		&appt.Status,
		&appt.CancelledAt,
		&appt.CancelledBy,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) CountActiveByCustomer(ctx context.Context, customerID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM appointments
        WHERE customer_id=$1 AND status IN ($2, $3)`
	var count int
	if err := r.db.QueryRow(ctx, query, customerID, domain.AppointmentScheduled, domain.AppointmentInProgress).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *appointmentRepository) CountActiveByProviderOn(ctx context.Context, providerID string, day time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM appointments
        WHERE provider_id=$1 AND status IN ($2, $3) AND scheduled_at >= $4 AND scheduled_at < $5`
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var count int
	if err := r.db.QueryRow(ctx, query, providerID, domain.AppointmentScheduled, domain.AppointmentInProgress, start, end).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
