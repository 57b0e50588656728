package domain

import "time"

// Rating is a star rating left after an appointment. RatedBy names the
// party that wrote it; a customer-written rating scores the provider.
type Rating struct {
	ID            string
	AppointmentID string
	CustomerID    string
	ProviderID    string
	RatedBy       AccountKind
	RatingValue   int
	CreatedAt     time.Time
}
