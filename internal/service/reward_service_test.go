package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwell/penalty-service/internal/domain"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

func (h *harness) rating(id string, value int, by domain.AccountKind) {
	h.store.PutRating(domain.Rating{
		ID: id, AppointmentID: "a-1", CustomerID: "c-1", ProviderID: "p-1", RatedBy: by, RatingValue: value,
	})
}

func TestRewardGoodRating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	provider := domain.ProviderRef("p-1")
	h.setPoints(provider, 80)

	cases := []struct {
		value int
		bonus int
	}{{5, 5}, {4, 3}, {3, 2}}
	points := 80
	for _, tc := range cases {
		id := fmt.Sprintf("r-%d", tc.value)
		h.rating(id, tc.value, domain.AccountKindCustomer)
		result, err := h.penalty.RewardGoodRating(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, result)
		points += tc.bonus
		assert.Equal(t, points, result.NewPoints)
		assert.Equal(t, domain.AdjustmentBonus, result.Adjustment.Type)
		assert.Equal(t, tc.bonus, result.Adjustment.PointsAdjusted)
	}

	stats, err := h.penalty.GetRewardStats(ctx, provider)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBonuses)
	assert.Equal(t, 10, stats.TotalPoints)
	assert.Equal(t, 90, stats.CurrentPoints)
	require.NotNil(t, stats.LastBonusAt)
}

func TestRewardGoodRatingIgnoresLowRatings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	provider := domain.ProviderRef("p-1")
	h.setPoints(provider, 80)

	h.rating("r-2", 2, domain.AccountKindCustomer)
	result, err := h.penalty.RewardGoodRating(ctx, "r-2")
	require.NoError(t, err)
	assert.Nil(t, result)

	h.rating("r-by-provider", 5, domain.AccountKindProvider)
	result, err = h.penalty.RewardGoodRating(ctx, "r-by-provider")
	require.NoError(t, err)
	assert.Nil(t, result)

	assert.Equal(t, 80, h.account(t, provider).PenaltyPoints)
	assert.Empty(t, h.store.AllAdjustments())

	_, err = h.penalty.RewardGoodRating(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestRewardSuccessfulBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := domain.CustomerRef("c-1")
	provider := domain.ProviderRef("p-1")
	h.setPoints(customer, 90)
	h.setPoints(provider, 95)
	h.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-1", ScheduledAt: testNow, Status: domain.AppointmentCompleted,
	})

	reward, err := h.penalty.RewardSuccessfulBooking(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, reward)
	require.NotNil(t, reward.Customer)
	require.NotNil(t, reward.Provider)
	assert.Equal(t, 95, reward.Customer.NewPoints)
	assert.Equal(t, 100, reward.Provider.NewPoints)
	assert.Equal(t, 10, reward.Provider.Adjustment.PointsAdjusted)
}

func TestRewardSuccessfulBookingSkipsCustomerAtMaximum(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := domain.CustomerRef("c-1")
	provider := domain.ProviderRef("p-1")
	h.store.AddAccount(customer)
	h.setPoints(provider, 70)
	h.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-1", ScheduledAt: testNow, Status: domain.AppointmentCompleted,
	})

	reward, err := h.penalty.RewardSuccessfulBooking(ctx, "a-1")
	require.NoError(t, err)
	assert.Nil(t, reward.Customer)
	require.NotNil(t, reward.Provider)
	assert.Equal(t, 80, reward.Provider.NewPoints)
	assert.Empty(t, h.ledger(customer))
}

func TestRewardSuccessfulBookingIgnoresUncompletedAppointments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := domain.CustomerRef("c-1")
	provider := domain.ProviderRef("p-1")
	h.setPoints(customer, 60)
	h.setPoints(provider, 60)
	h.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-1", ScheduledAt: testNow, Status: domain.AppointmentScheduled,
	})

	reward, err := h.penalty.RewardSuccessfulBooking(ctx, "a-1")
	require.NoError(t, err)
	assert.Nil(t, reward)
	assert.Equal(t, 60, h.account(t, customer).PenaltyPoints)
	assert.Equal(t, 60, h.account(t, provider).PenaltyPoints)
	assert.Empty(t, h.store.AllAdjustments())
}

func TestRewardSuccessfulBookingIsAtomic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := domain.CustomerRef("c-1")
	h.setPoints(customer, 60)
	h.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-missing", ScheduledAt: testNow, Status: domain.AppointmentCompleted,
	})

	_, err := h.penalty.RewardSuccessfulBooking(ctx, "a-1")
	require.Error(t, err)
	assert.Equal(t, 60, h.account(t, customer).PenaltyPoints)
	assert.Empty(t, h.store.AllAdjustments())
}
