package domain

import (
	"fmt"
	"time"
)

const (
	// MaxPenaltyPoints is both the initial and the ceiling balance.
	MaxPenaltyPoints = 100
	// MinPenaltyPoints is the floor; deductions never go below it.
	MinPenaltyPoints = 0
	// DeactivationThreshold suspends an account whose balance drops to or below it.
	DeactivationThreshold = 50
)

// AccountKind distinguishes the two account tables carrying a penalty balance.
type AccountKind string

const (
	AccountKindCustomer AccountKind = "customer"
	AccountKindProvider AccountKind = "provider"
)

// Valid reports whether the kind is one of the known account kinds.
func (k AccountKind) Valid() bool {
	return k == AccountKindCustomer || k == AccountKindProvider
}

// AccountRef points at exactly one customer or provider.
type AccountRef struct {
	Kind AccountKind `json:"kind"`
	ID   string      `json:"id"`
}

// CustomerRef builds a reference to a customer account.
func CustomerRef(id string) AccountRef {
	return AccountRef{Kind: AccountKindCustomer, ID: id}
}

// ProviderRef builds a reference to a provider account.
func ProviderRef(id string) AccountRef {
	return AccountRef{Kind: AccountKindProvider, ID: id}
}

// Valid reports whether the reference names a known kind and a non-empty id.
func (r AccountRef) Valid() bool {
	return r.Kind.Valid() && r.ID != ""
}

// CustomerID returns the id when the ref is a customer, nil otherwise.
func (r AccountRef) CustomerID() *string {
	if r.Kind != AccountKindCustomer {
		return nil
	}
	id := r.ID
	return &id
}

// ProviderID returns the id when the ref is a provider, nil otherwise.
func (r AccountRef) ProviderID() *string {
	if r.Kind != AccountKindProvider {
		return nil
	}
	id := r.ID
	return &id
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// RefFromColumns rebuilds a ref from the customer_id / provider_id column pair.
func RefFromColumns(customerID, providerID *string) (AccountRef, error) {
	switch {
	case customerID != nil && providerID != nil:
		return AccountRef{}, fmt.Errorf("row references both customer %s and provider %s", *customerID, *providerID)
	case customerID != nil:
		return CustomerRef(*customerID), nil
	case providerID != nil:
		return ProviderRef(*providerID), nil
	default:
		return AccountRef{}, fmt.Errorf("row references neither customer nor provider")
	}
}

// Account is the penalty-relevant projection of a customer or provider.
type Account struct {
	Ref              AccountRef
	PenaltyPoints    int
	IsSuspended      bool
	AdminSuspended   bool
	SuspensionReason *string
	SuspendedAt      *time.Time
	SuspendedUntil   *time.Time
	UpdatedAt        time.Time
}

// BelowThreshold reports whether the balance is inside the deactivation band.
func BelowThreshold(points int) bool {
	return points <= DeactivationThreshold
}

// ClampPoints bounds a balance to [MinPenaltyPoints, MaxPenaltyPoints].
func ClampPoints(points int) int {
	if points < MinPenaltyPoints {
		return MinPenaltyPoints
	}
	if points > MaxPenaltyPoints {
		return MaxPenaltyPoints
	}
	return points
}

// StandingStatus is a descriptive bucket over the balance. It never drives suspension.
type StandingStatus string

const (
	StandingGood     StandingStatus = "good"
	StandingWarning  StandingStatus = "warning"
	StandingCritical StandingStatus = "critical"
)

// StandingFor buckets a balance: >50 good, 21-50 warning, <=20 critical.
func StandingFor(points int) StandingStatus {
	switch {
	case points > 50:
		return StandingGood
	case points > 20:
		return StandingWarning
	default:
		return StandingCritical
	}
}
