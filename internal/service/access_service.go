package service

import (
	"context"
	"time"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

// Rejection codes returned by the booking gate.
const (
	RejectAccountSuspended = "account_suspended"
	RejectAppointmentLimit = "appointment_limit_reached"
	RejectDailySlotLimit   = "daily_slot_limit_reached"
)

// BookingDecision is the gate's verdict. Limit and Current are set whenever
// the tier carries a cap.
type BookingDecision struct {
	Allowed bool              `json:"allowed"`
	Code    string            `json:"code,omitempty"`
	Limit   *int              `json:"limit,omitempty"`
	Current int               `json:"current"`
	Points  int               `json:"points"`
	Tier    domain.AccessTier `json:"tier"`
}

// AccessService evaluates booking eligibility on the request path.
type AccessService struct {
	accounts     repository.AccountRepository
	appointments repository.AppointmentRepository
}

// NewAccessService constructs the service.
func NewAccessService(accounts repository.AccountRepository, appointments repository.AppointmentRepository) *AccessService {
	return &AccessService{accounts: accounts, appointments: appointments}
}

// CheckBookingEligibility reads the live balance and commitment count. day
// selects the slot day for providers and is ignored for customers.
func (s *AccessService) CheckBookingEligibility(ctx context.Context, ref domain.AccountRef, day time.Time) (*BookingDecision, error) {
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a valid account reference is required", nil)
	}
	account, err := s.accounts.Get(ctx, ref)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", map[string]any{"account": ref.String()})
	}

	tier := domain.TierFor(ref.Kind, account.PenaltyPoints)
	decision := &BookingDecision{Points: account.PenaltyPoints, Tier: tier, Limit: tier.Limit}
	if domain.BelowThreshold(account.PenaltyPoints) || account.IsSuspended {
		decision.Code = RejectAccountSuspended
		return decision, nil
	}
	if tier.Limit == nil {
		decision.Allowed = true
		return decision, nil
	}

	code := RejectAppointmentLimit
	var current int
	if ref.Kind == domain.AccountKindProvider {
		code = RejectDailySlotLimit
		current, err = s.appointments.CountActiveByProviderOn(ctx, ref.ID, day)
	} else {
		current, err = s.appointments.CountActiveByCustomer(ctx, ref.ID)
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "appointment", nil)
	}
	decision.Current = current
	if current >= *tier.Limit {
		decision.Code = code
		return decision, nil
	}
	decision.Allowed = true
	return decision, nil
}

// EnsureCanBook is the gate booking flows call right before creating a booking.
func (s *AccessService) EnsureCanBook(ctx context.Context, ref domain.AccountRef, day time.Time) (*BookingDecision, error) {
	decision, err := s.CheckBookingEligibility(ctx, ref, day)
	if err != nil {
		return nil, err
	}
	if decision.Allowed {
		return decision, nil
	}
	details := map[string]any{"code": decision.Code, "points": decision.Points, "current": decision.Current}
	if decision.Limit != nil {
		details["limit"] = *decision.Limit
	}
	message := "booking limit reached for the current penalty tier"
	if decision.Code == RejectAccountSuspended {
		message = "account is suspended"
	}
	return decision, apperrors.NewForbiddenWithDetails(message, details)
}
