package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

const (
	bookingBonusCustomer = 5
	bookingBonusProvider = 10
)

// BookingReward lists the credits granted for a completed booking. A nil
// side means that party was not credited.
type BookingReward struct {
	Customer *BalanceResult `json:"customer,omitempty"`
	Provider *BalanceResult `json:"provider,omitempty"`
}

// ratingBonus maps a star value to its bonus; values not listed earn nothing.
var ratingBonus = map[int]int{5: 5, 4: 3, 3: 2}

// RewardSuccessfulBooking credits both parties of a completed appointment.
// It returns nil without touching any account for every other status.
func (s *PenaltyService) RewardSuccessfulBooking(ctx context.Context, appointmentID string) (*BookingReward, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.FromStore(err, "appointment", map[string]any{"appointment_id": appointmentID})
	}
	if appt.Status != domain.AppointmentCompleted {
		return nil, nil
	}

	reward := &BookingReward{}
	reason := fmt.Sprintf("Successful booking completed: appointment %s", appt.ID)
	err = s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		customer, err := lockAccount(ctx, stores, domain.CustomerRef(appt.CustomerID))
		if err != nil {
			return err
		}
		if customer.PenaltyPoints < domain.MaxPenaltyPoints {
			result, err := s.applyCredit(ctx, stores, customer, bookingBonusCustomer, domain.AdjustmentBonus, reason, nil, nil)
			if err != nil {
				return err
			}
			reward.Customer = &result
		}

		provider, err := lockAccount(ctx, stores, domain.ProviderRef(appt.ProviderID))
		if err != nil {
			return err
		}
		result, err := s.applyCredit(ctx, stores, provider, bookingBonusProvider, domain.AdjustmentBonus, reason, nil, nil)
		if err != nil {
			return err
		}
		reward.Provider = &result
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, result := range []*BalanceResult{reward.Customer, reward.Provider} {
		if result != nil {
			s.afterBalanceChange(ctx, *result, domain.AdjustmentBonus, events.SystemActor, reason)
		}
	}
	s.logger.Debug("booking reward applied", zap.String("appointment_id", appt.ID))
	return reward, nil
}

// RewardGoodRating credits the provider for a customer rating of three stars
// or more. Anything else returns nil with no mutation.
func (s *PenaltyService) RewardGoodRating(ctx context.Context, ratingID string) (*BalanceResult, error) {
	rating, err := s.ratings.GetByID(ctx, ratingID)
	if err != nil {
		return nil, apperrors.FromStore(err, "rating", map[string]any{"rating_id": ratingID})
	}
	if rating.RatedBy != domain.AccountKindCustomer {
		return nil, nil
	}
	bonus, ok := ratingBonus[rating.RatingValue]
	if !ok {
		return nil, nil
	}
	reason := fmt.Sprintf("Good rating received: %d stars (rating %s)", rating.RatingValue, rating.ID)
	return s.credit(ctx, domain.ProviderRef(rating.ProviderID), bonus, domain.AdjustmentBonus, reason, nil, nil)
}
