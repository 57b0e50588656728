package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/events"
)

// NotificationService fans penalty events out to the notification channels.
// Delivery is best effort; nothing here can affect the mutation that raised the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventViolationRecorded, n.handleViolationRecorded)
	n.dispatcher.Subscribe(events.EventAccountSuspended, n.handleSuspensionChanged)
	n.dispatcher.Subscribe(events.EventAccountReactivated, n.handleSuspensionChanged)
	n.dispatcher.Subscribe(events.EventAppealSubmitted, n.handleAppealSubmitted)
	n.dispatcher.Subscribe(events.EventAppealReviewed, n.handleAppealOutcome)
	n.dispatcher.Subscribe(events.EventViolationReversed, n.handleAppealOutcome)
	n.dispatcher.Subscribe(events.EventPointsReset, n.handlePointsReset)
	n.dispatcher.Subscribe(events.EventCertificateExpiring, n.handleCertificate)
	n.dispatcher.Subscribe(events.EventCertificateExpired, n.handleCertificate)
}

func (n *NotificationService) handleViolationRecorded(ctx context.Context, event events.Event) error {
	n.logger.Info("ViolationRecorded", zap.Stringer("account", event.Account), zap.Any("payload", event.Payload))
	n.sendPushNotificationStub(ctx, event)
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleSuspensionChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("SuspensionChanged",
		zap.String("event_type", string(event.Type)),
		zap.Stringer("account", event.Account),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendPushNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAppealSubmitted(ctx context.Context, event events.Event) error {
	n.logger.Info("AppealSubmitted", zap.Stringer("account", event.Account), zap.Any("payload", event.Payload))
	// admins watch the webhook channel for the review queue
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAppealOutcome(ctx context.Context, event events.Event) error {
	n.logger.Info("AppealOutcome",
		zap.String("event_type", string(event.Type)),
		zap.Stringer("account", event.Account),
		zap.Any("payload", event.Payload))
	n.sendPushNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handlePointsReset(ctx context.Context, event events.Event) error {
	n.logger.Debug("PointsReset", zap.Stringer("account", event.Account))
	n.sendPushNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleCertificate(ctx context.Context, event events.Event) error {
	n.logger.Info("CertificateLifecycle",
		zap.String("event_type", string(event.Type)),
		zap.Stringer("account", event.Account),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.Stringer("account", event.Account),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.Stringer("account", event.Account),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendPushNotificationStub(ctx context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.PushTopic) == "" {
		return
	}
	n.logger.Debug("sendPushNotificationStub",
		zap.String("topic", n.cfg.PushTopic),
		zap.Stringer("account", event.Account),
		zap.String("event_type", string(event.Type)))
}
