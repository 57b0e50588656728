package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwell/penalty-service/internal/domain"
)

func TestHooksApplyDetectorsAndRewards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	customer := domain.CustomerRef("c-1")
	provider := domain.ProviderRef("p-1")
	h.setPoints(customer, 80)
	h.setPoints(provider, 80)

	h.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-1", ScheduledAt: testNow, Status: domain.AppointmentCompleted,
	})
	h.hooks.OnAppointmentStatusChanged(ctx, "a-1", DetectionOptions{})
	assert.Equal(t, 85, h.account(t, customer).PenaltyPoints)
	assert.Equal(t, 90, h.account(t, provider).PenaltyPoints)

	h.store.PutAppointment(domain.Appointment{
		ID: "a-2", CustomerID: "c-1", ProviderID: "p-1", ScheduledAt: testNow, Status: domain.AppointmentCustomerNoShow,
	})
	h.hooks.OnAppointmentStatusChanged(ctx, "a-2", DetectionOptions{})
	h.hooks.OnAppointmentStatusChanged(ctx, "a-2", DetectionOptions{})
	assert.Equal(t, 70, h.account(t, customer).PenaltyPoints)

	h.rating("r-1", 5, domain.AccountKindCustomer)
	h.hooks.OnRatingSubmitted(ctx, "r-1", DetectionOptions{})
	assert.Equal(t, 95, h.account(t, provider).PenaltyPoints)

	failures, err := testutil.GatherAndCount(h.metrics.Registry(), "penalty_hook_failures_total")
	require.NoError(t, err)
	assert.Zero(t, failures)
}

func TestHooksSwallowAndCountFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		h.hooks.OnAppointmentStatusChanged(ctx, "missing", DetectionOptions{})
		h.hooks.OnRatingSubmitted(ctx, "missing", DetectionOptions{})
	})

	// one series per failing hook: three detectors, the booking reward and both rating hooks
	failures, err := testutil.GatherAndCount(h.metrics.Registry(), "penalty_hook_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 6, failures)
}
