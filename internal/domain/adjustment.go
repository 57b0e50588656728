package domain

import "time"

// AdjustmentType classifies a ledger entry.
type AdjustmentType string

const (
	AdjustmentPenalty        AdjustmentType = "penalty"
	AdjustmentRestore        AdjustmentType = "restore"
	AdjustmentBonus          AdjustmentType = "bonus"
	AdjustmentReset          AdjustmentType = "reset"
	AdjustmentSuspension     AdjustmentType = "suspension"
	AdjustmentLiftSuspension AdjustmentType = "lift_suspension"
)

// Adjustment is an immutable ledger entry for one balance-changing operation.
// AdjustedByAdminID is nil for system-automated changes.
type Adjustment struct {
	ID                 string
	Account            AccountRef
	Type               AdjustmentType
	PointsAdjusted     int
	PreviousPoints     int
	NewPoints          int
	Reason             string
	RelatedViolationID *string
	AdjustedByAdminID  *string
	CreatedAt          time.Time
}
