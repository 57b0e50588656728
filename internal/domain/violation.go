package domain

import "time"

// ViolationStatus is the lifecycle state of a recorded violation.
type ViolationStatus string

const (
	ViolationStatusActive   ViolationStatus = "active"
	ViolationStatusAppealed ViolationStatus = "appealed"
	ViolationStatusReversed ViolationStatus = "reversed"
)

// AppealStatus tracks the appeal sub-state of a violation.
type AppealStatus string

const (
	AppealStatusNone     AppealStatus = "none"
	AppealStatusPending  AppealStatus = "pending"
	AppealStatusApproved AppealStatus = "approved"
	AppealStatusRejected AppealStatus = "rejected"
)

// DetectionSource records who raised a violation.
type DetectionSource string

const (
	DetectedBySystem DetectionSource = "system"
	DetectedByAdmin  DetectionSource = "admin"
)

// Violation is a recorded infraction against one account.
type Violation struct {
	ID                string
	Account           AccountRef
	ViolationCode     string
	PointsDeducted    int
	Status            ViolationStatus
	AppealStatus      AppealStatus
	AppealReason      *string
	AppealedAt        *time.Time
	ReviewedBy        *string
	ReviewedAt        *time.Time
	ReviewNotes       *string
	ReversalReason    *string
	AppointmentID     *string
	ReportID          *string
	RatingID          *string
	Details           *string
	EvidenceURLs      []string
	DetectedBy        DetectionSource
	DetectedByAdminID *string
	IdempotencyKey    *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OwnedBy reports whether the violation was recorded against ref.
func (v *Violation) OwnedBy(ref AccountRef) bool {
	return v.Account == ref
}
