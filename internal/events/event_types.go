package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/bookwell/penalty-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventViolationRecorded   EventType = "violation_recorded"
	EventAccountSuspended    EventType = "account_suspended"
	EventAccountReactivated  EventType = "account_reactivated"
	EventAppealSubmitted     EventType = "appeal_submitted"
	EventAppealReviewed      EventType = "appeal_reviewed"
	EventViolationReversed   EventType = "violation_reversed"
	EventPointsReset         EventType = "points_reset"
	EventCertificateExpiring EventType = "certificate_expiring"
	EventCertificateExpired  EventType = "certificate_expired"
)

// AllEventTypes lists every event the engine publishes.
func AllEventTypes() []EventType {
	return []EventType{
		EventViolationRecorded,
		EventAccountSuspended,
		EventAccountReactivated,
		EventAppealSubmitted,
		EventAppealReviewed,
		EventViolationReversed,
		EventPointsReset,
		EventCertificateExpiring,
		EventCertificateExpired,
	}
}

// Actor encapsulates actor metadata for an event. A nil ID means the system.
type Actor struct {
	Type domain.SubjectType `json:"type"`
	ID   *string            `json:"id,omitempty"`
}

// SystemActor is used for automated detections and scheduled jobs.
var SystemActor = Actor{Type: domain.SubjectTypeService}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Account   domain.AccountRef `json:"account"`
	Actor     Actor             `json:"actor"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   interface{}       `json:"payload"`
}

// New stamps an event with an id and the current time.
func New(eventType EventType, account domain.AccountRef, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Account:   account,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ViolationRecordedPayload payload.
type ViolationRecordedPayload struct {
	ViolationID    string `json:"violation_id"`
	ViolationCode  string `json:"violation_code"`
	PointsDeducted int    `json:"points_deducted"`
	NewPoints      int    `json:"new_points"`
	Description    string `json:"description"`
}

// SuspensionPayload is shared by account_suspended and account_reactivated.
type SuspensionPayload struct {
	PreviousPoints int        `json:"previous_points"`
	NewPoints      int        `json:"new_points"`
	Reason         string     `json:"reason"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}

// AppealSubmittedPayload payload.
type AppealSubmittedPayload struct {
	ViolationID string `json:"violation_id"`
	Reason      string `json:"reason"`
}

// AppealReviewedPayload payload.
type AppealReviewedPayload struct {
	ViolationID    string `json:"violation_id"`
	Approved       bool   `json:"approved"`
	Notes          string `json:"notes,omitempty"`
	PointsRestored int    `json:"points_restored"`
	NewPoints      int    `json:"new_points"`
}

// ViolationReversedPayload payload.
type ViolationReversedPayload struct {
	ViolationID    string `json:"violation_id"`
	Reason         string `json:"reason"`
	PointsRestored int    `json:"points_restored"`
	NewPoints      int    `json:"new_points"`
}

// PointsResetPayload payload.
type PointsResetPayload struct {
	PreviousPoints int `json:"previous_points"`
}

// CertificatePayload is shared by the certificate lifecycle events.
type CertificatePayload struct {
	CertificateID string    `json:"certificate_id"`
	Name          string    `json:"name"`
	ExpiresAt     time.Time `json:"expires_at"`
	ViolationID   *string   `json:"violation_id,omitempty"`
}
