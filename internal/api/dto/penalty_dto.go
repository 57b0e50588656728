package dto

import (
	"time"

	"github.com/bookwell/penalty-service/internal/domain"
)

// AppealRequest payload.
type AppealRequest struct {
	Reason string `json:"reason"`
}

// RecordViolationRequest is the admin payload for a manual violation.
type RecordViolationRequest struct {
	AccountKind   domain.AccountKind `json:"account_kind"`
	AccountID     string             `json:"account_id"`
	ViolationCode string             `json:"violation_code"`
	Details       *string            `json:"details"`
	EvidenceURLs  []string           `json:"evidence_urls"`
	AppointmentID *string            `json:"appointment_id"`
	ReportID      *string            `json:"report_id"`
	RatingID      *string            `json:"rating_id"`
}

// ReviewAppealRequest payload for approve / reject.
type ReviewAppealRequest struct {
	Notes string `json:"notes"`
}

// ReasonRequest is shared by reversal and suspension lift.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// AdjustPointsRequest payload. Negative points deduct.
type AdjustPointsRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// SuspendRequest payload.
type SuspendRequest struct {
	Reason         string     `json:"reason"`
	SuspendedUntil *time.Time `json:"suspended_until"`
}

// UpsertViolationTypeRequest payload.
type UpsertViolationTypeRequest struct {
	Category         domain.ViolationCategory `json:"category"`
	PointCost        int                      `json:"point_cost"`
	Description      string                   `json:"description"`
	RequiresEvidence bool                     `json:"requires_evidence"`
	AutoDetect       bool                     `json:"auto_detect"`
	IsActive         *bool                    `json:"is_active"`
}

// HookRequest is the optional body of the internal event hooks.
type HookRequest struct {
	IdempotencyToken string `json:"idempotency_token"`
}

// ViolationResponse response.
type ViolationResponse struct {
	ID             string                 `json:"id"`
	Account        domain.AccountRef      `json:"account"`
	ViolationCode  string                 `json:"violation_code"`
	PointsDeducted int                    `json:"points_deducted"`
	Status         domain.ViolationStatus `json:"status"`
	AppealStatus   domain.AppealStatus    `json:"appeal_status"`
	AppealReason   *string                `json:"appeal_reason,omitempty"`
	AppealedAt     *time.Time             `json:"appealed_at,omitempty"`
	ReviewedBy     *string                `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time             `json:"reviewed_at,omitempty"`
	ReviewNotes    *string                `json:"review_notes,omitempty"`
	ReversalReason *string                `json:"reversal_reason,omitempty"`
	AppointmentID  *string                `json:"appointment_id,omitempty"`
	ReportID       *string                `json:"report_id,omitempty"`
	RatingID       *string                `json:"rating_id,omitempty"`
	Details        *string                `json:"details,omitempty"`
	EvidenceURLs   []string               `json:"evidence_urls"`
	DetectedBy     domain.DetectionSource `json:"detected_by"`
	CreatedAt      time.Time              `json:"created_at"`
}

// AdjustmentResponse response.
type AdjustmentResponse struct {
	ID                 string                `json:"id"`
	Account            domain.AccountRef     `json:"account"`
	Type               domain.AdjustmentType `json:"adjustment_type"`
	PointsAdjusted     int                   `json:"points_adjusted"`
	PreviousPoints     int                   `json:"previous_points"`
	NewPoints          int                   `json:"new_points"`
	Reason             string                `json:"reason"`
	RelatedViolationID *string               `json:"related_violation_id,omitempty"`
	AdjustedByAdminID  *string               `json:"adjusted_by_admin_id,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

// ViolationTypeResponse response.
type ViolationTypeResponse struct {
	Code             string                   `json:"code"`
	Category         domain.ViolationCategory `json:"category"`
	PointCost        int                      `json:"point_cost"`
	Description      string                   `json:"description"`
	RequiresEvidence bool                     `json:"requires_evidence"`
	AutoDetect       bool                     `json:"auto_detect"`
	IsActive         bool                     `json:"is_active"`
}

// AccountResponse exposes the penalty columns of an account.
type AccountResponse struct {
	Account          domain.AccountRef `json:"account"`
	PenaltyPoints    int               `json:"penalty_points"`
	IsSuspended      bool              `json:"is_suspended"`
	AdminSuspended   bool              `json:"admin_suspended"`
	SuspensionReason *string           `json:"suspension_reason,omitempty"`
	SuspendedAt      *time.Time        `json:"suspended_at,omitempty"`
	SuspendedUntil   *time.Time        `json:"suspended_until,omitempty"`
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// NewViolationResponse maps the domain model.
func NewViolationResponse(v *domain.Violation) ViolationResponse {
	evidence := v.EvidenceURLs
	if evidence == nil {
		evidence = []string{}
	}
	return ViolationResponse{
		ID:             v.ID,
		Account:        v.Account,
		ViolationCode:  v.ViolationCode,
		PointsDeducted: v.PointsDeducted,
		Status:         v.Status,
		AppealStatus:   v.AppealStatus,
		AppealReason:   v.AppealReason,
		AppealedAt:     v.AppealedAt,
		ReviewedBy:     v.ReviewedBy,
		ReviewedAt:     v.ReviewedAt,
		ReviewNotes:    v.ReviewNotes,
		ReversalReason: v.ReversalReason,
		AppointmentID:  v.AppointmentID,
		ReportID:       v.ReportID,
		RatingID:       v.RatingID,
		Details:        v.Details,
		EvidenceURLs:   evidence,
		DetectedBy:     v.DetectedBy,
		CreatedAt:      v.CreatedAt,
	}
}

// NewViolationResponses maps a slice.
func NewViolationResponses(items []domain.Violation) []ViolationResponse {
	resp := make([]ViolationResponse, 0, len(items))
	for i := range items {
		resp = append(resp, NewViolationResponse(&items[i]))
	}
	return resp
}

// NewAdjustmentResponses maps ledger entries.
func NewAdjustmentResponses(items []domain.Adjustment) []AdjustmentResponse {
	resp := make([]AdjustmentResponse, 0, len(items))
	for _, a := range items {
		resp = append(resp, AdjustmentResponse{
			ID:                 a.ID,
			Account:            a.Account,
			Type:               a.Type,
			PointsAdjusted:     a.PointsAdjusted,
			PreviousPoints:     a.PreviousPoints,
			NewPoints:          a.NewPoints,
			Reason:             a.Reason,
			RelatedViolationID: a.RelatedViolationID,
			AdjustedByAdminID:  a.AdjustedByAdminID,
			CreatedAt:          a.CreatedAt,
		})
	}
	return resp
}

// NewViolationTypeResponse maps a catalog entry.
func NewViolationTypeResponse(vt *domain.ViolationType) ViolationTypeResponse {
	return ViolationTypeResponse{
		Code:             vt.Code,
		Category:         vt.Category,
		PointCost:        vt.PointCost,
		Description:      vt.Description,
		RequiresEvidence: vt.RequiresEvidence,
		AutoDetect:       vt.AutoDetect,
		IsActive:         vt.IsActive,
	}
}

// NewAccountResponse maps an account.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		Account:          a.Ref,
		PenaltyPoints:    a.PenaltyPoints,
		IsSuspended:      a.IsSuspended,
		AdminSuspended:   a.AdminSuspended,
		SuspensionReason: a.SuspensionReason,
		SuspendedAt:      a.SuspendedAt,
		SuspendedUntil:   a.SuspendedUntil,
	}
}
