package domain

import "time"

// ViolationCategory restricts which account kind a violation type applies to.
type ViolationCategory string

const (
	CategoryCustomer ViolationCategory = "customer"
	CategoryProvider ViolationCategory = "provider"
)

// Matches reports whether the category applies to the given account kind.
func (c ViolationCategory) Matches(kind AccountKind) bool {
	return string(c) == string(kind)
}

// Known violation codes. The catalog is data, these are the codes the
// detectors and sweeps reference directly.
const (
	CodeUserLateCancel         = "USER_LATE_CANCEL"
	CodeUserNoShow             = "USER_NO_SHOW"
	CodeUserRepeatedLateCancel = "USER_REPEATED_LATE_CANCEL"
	CodeUserRepeatedNoShow     = "USER_REPEATED_NO_SHOW"
	CodeUserInappropriate      = "USER_INAPPROPRIATE_BEHAVIOR"
	CodeUserFalseReport        = "USER_FALSE_REPORT"
	CodeProviderLateCancel     = "PROVIDER_LATE_CANCEL"
	CodeProviderNoShow         = "PROVIDER_NO_SHOW"
	CodeProviderRepeatedLate   = "PROVIDER_REPEATED_LATE_CANCEL"
	CodeProviderRepeatedNoShow = "PROVIDER_REPEATED_NO_SHOW"
	CodeProviderPoorService    = "PROVIDER_POOR_SERVICE"
	CodeProviderExpiredCert    = "PROVIDER_EXPIRED_CERTIFICATE"
	CodeProviderUnprofessional = "PROVIDER_UNPROFESSIONAL_CONDUCT"
	CodeProviderFraud          = "PROVIDER_FRAUD"
)

// ViolationType is a catalog entry: a code with a fixed point cost.
type ViolationType struct {
	Code             string
	Category         ViolationCategory
	PointCost        int
	Description      string
	RequiresEvidence bool
	AutoDetect       bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RepeatedVariant maps a base code to its escalated code, if one exists.
func RepeatedVariant(code string) (string, bool) {
	variant, ok := repeatedVariants[code]
	return variant, ok
}

var repeatedVariants = map[string]string{
	CodeUserLateCancel:     CodeUserRepeatedLateCancel,
	CodeUserNoShow:         CodeUserRepeatedNoShow,
	CodeProviderLateCancel: CodeProviderRepeatedLate,
	CodeProviderNoShow:     CodeProviderRepeatedNoShow,
}

// DefaultViolationTypes is the catalog installed by the seed routine.
func DefaultViolationTypes() []ViolationType {
	types := []ViolationType{
		{Code: CodeUserLateCancel, Category: CategoryCustomer, PointCost: 10, Description: "Cancelled less than 24 hours before the appointment", AutoDetect: true},
		{Code: CodeUserNoShow, Category: CategoryCustomer, PointCost: 15, Description: "Did not show up for a booked appointment", AutoDetect: true},
		{Code: CodeUserRepeatedLateCancel, Category: CategoryCustomer, PointCost: 20, Description: "Third or later late cancellation within the repeat window", AutoDetect: true},
		{Code: CodeUserRepeatedNoShow, Category: CategoryCustomer, PointCost: 25, Description: "Third or later no-show within the repeat window", AutoDetect: true},
		{Code: CodeUserInappropriate, Category: CategoryCustomer, PointCost: 20, Description: "Inappropriate behaviour towards a provider", RequiresEvidence: true},
		{Code: CodeUserFalseReport, Category: CategoryCustomer, PointCost: 15, Description: "Filed a report found to be false", RequiresEvidence: true},
		{Code: CodeProviderLateCancel, Category: CategoryProvider, PointCost: 15, Description: "Cancelled less than 24 hours before the appointment", AutoDetect: true},
		{Code: CodeProviderNoShow, Category: CategoryProvider, PointCost: 20, Description: "Did not show up for a booked appointment", AutoDetect: true},
		{Code: CodeProviderRepeatedLate, Category: CategoryProvider, PointCost: 25, Description: "Third or later late cancellation within the repeat window", AutoDetect: true},
		{Code: CodeProviderRepeatedNoShow, Category: CategoryProvider, PointCost: 30, Description: "Third or later no-show within the repeat window", AutoDetect: true},
		{Code: CodeProviderPoorService, Category: CategoryProvider, PointCost: 15, Description: "Three consecutive one-star ratings", AutoDetect: true},
		{Code: CodeProviderExpiredCert, Category: CategoryProvider, PointCost: 10, Description: "Professional certificate expired without renewal", AutoDetect: true},
		{Code: CodeProviderUnprofessional, Category: CategoryProvider, PointCost: 20, Description: "Unprofessional conduct during service", RequiresEvidence: true},
		{Code: CodeProviderFraud, Category: CategoryProvider, PointCost: 50, Description: "Fraudulent activity", RequiresEvidence: true},
	}
	for i := range types {
		types[i].IsActive = true
	}
	return types
}
