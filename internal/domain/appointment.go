package domain

import "time"

// AppointmentStatus mirrors the booking service's status column.
type AppointmentStatus string

const (
	AppointmentScheduled      AppointmentStatus = "scheduled"
	AppointmentInProgress     AppointmentStatus = "in-progress"
	AppointmentCompleted      AppointmentStatus = "completed"
	AppointmentCancelled      AppointmentStatus = "cancelled"
	AppointmentCustomerNoShow AppointmentStatus = "customer-no-show"
	AppointmentProviderNoShow AppointmentStatus = "provider-no-show"
)

// IsActiveCommitment reports whether the appointment still occupies a booking slot.
func (s AppointmentStatus) IsActiveCommitment() bool {
	return s == AppointmentScheduled || s == AppointmentInProgress
}

// Appointment is the read-only view the penalty engine needs of a booking.
type Appointment struct {
	ID          string
	CustomerID  string
	ProviderID  string
	ScheduledAt time.Time
	Status      AppointmentStatus
	CancelledAt *time.Time
	CancelledBy *AccountKind
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
