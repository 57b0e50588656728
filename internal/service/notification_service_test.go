package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
)

func TestNotificationFanOut(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	notifications := NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{
		EmailFrom: "noreply@example.com",
		PushTopic: "penalties",
	})
	notifications.RegisterHandlers()

	ref := domain.ProviderRef("p-1")
	require.NoError(t, dispatcher.Publish(context.Background(),
		events.New(events.EventAccountSuspended, ref, events.SystemActor, events.SuspensionPayload{NewPoints: 40})))

	assert.Equal(t, 1, logs.FilterMessage("SuspensionChanged").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendEmailNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("sendPushNotificationStub").Len())
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len(), "webhook channel is not configured")
}

func TestNotificationsFollowEngineEvents(t *testing.T) {
	h := newHarness(t)
	core, logs := observer.New(zap.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	NewNotificationService(dispatcher, zap.New(core), config.NotificationConfig{}).RegisterHandlers()
	h.penalty.dispatcher = dispatcher

	ref := domain.CustomerRef("c-1")
	h.setPoints(ref, 60)
	h.record(t, ref, domain.CodeUserNoShow)

	assert.Equal(t, 1, logs.FilterMessage("ViolationRecorded").Len())
	assert.Equal(t, 1, logs.FilterMessage("SuspensionChanged").Len())
}
