package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

const poorRatingStreak = 3

// DetectionService turns appointment and rating facts into violations.
type DetectionService struct {
	penalty      *PenaltyService
	appointments repository.AppointmentRepository
	ratings      repository.RatingRepository
	guard        IdempotencyGuard
	metrics      *observability.Metrics
	logger       *zap.Logger
	cfg          config.PenaltyConfig
}

// DetectionDependencies bundles collaborators for detection.
type DetectionDependencies struct {
	Penalty         *PenaltyService
	AppointmentRepo repository.AppointmentRepository
	RatingRepo      repository.RatingRepository
	Guard           IdempotencyGuard
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Config          config.PenaltyConfig
}

// NewDetectionService constructs the service. A nil guard falls back to an
// in-process one.
func NewDetectionService(deps DetectionDependencies) *DetectionService {
	guard := deps.Guard
	if guard == nil {
		guard = NewMemoryGuard()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetectionService{
		penalty:      deps.Penalty,
		appointments: deps.AppointmentRepo,
		ratings:      deps.RatingRepo,
		guard:        guard,
		metrics:      deps.Metrics,
		logger:       logger,
		cfg:          deps.Config,
	}
}

// DetectionOptions carries the caller's idempotency token. When empty a token
// is derived from the triggering record and its state.
type DetectionOptions struct {
	IdempotencyToken string
}

func (o DetectionOptions) token(fallback string) string {
	if t := strings.TrimSpace(o.IdempotencyToken); t != "" {
		return t
	}
	return fallback
}

// DetectLateCancellation penalises whoever cancelled inside the late window.
func (d *DetectionService) DetectLateCancellation(ctx context.Context, appointmentID string, opts DetectionOptions) ([]*domain.Violation, error) {
	appt, err := d.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentCancelled || appt.CancelledAt == nil || appt.CancelledBy == nil {
		return nil, nil
	}
	if appt.ScheduledAt.Sub(*appt.CancelledAt) >= d.cfg.LateCancelWindow() {
		return nil, nil
	}

	var (
		ref  domain.AccountRef
		code string
	)
	switch *appt.CancelledBy {
	case domain.AccountKindCustomer:
		ref, code = domain.CustomerRef(appt.CustomerID), domain.CodeUserLateCancel
	case domain.AccountKindProvider:
		ref, code = domain.ProviderRef(appt.ProviderID), domain.CodeProviderLateCancel
	default:
		return nil, apperrors.NewValidationError("appointment has an unknown cancelling party", map[string]any{"appointment_id": appt.ID})
	}
	hours := appt.ScheduledAt.Sub(*appt.CancelledAt).Hours()
	details := fmt.Sprintf("Cancelled %.1f hours before the scheduled time", hours)
	return d.record(ctx, "late_cancellation", opts.token(appointmentToken(appt)), RecordViolationInput{
		Account:       ref,
		Code:          code,
		Details:       &details,
		AppointmentID: &appt.ID,
	})
}

// DetectProviderNoShow penalises the provider of a provider-no-show appointment.
func (d *DetectionService) DetectProviderNoShow(ctx context.Context, appointmentID string, opts DetectionOptions) ([]*domain.Violation, error) {
	appt, err := d.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentProviderNoShow {
		return nil, nil
	}
	return d.record(ctx, "provider_no_show", opts.token(appointmentToken(appt)), RecordViolationInput{
		Account:       domain.ProviderRef(appt.ProviderID),
		Code:          domain.CodeProviderNoShow,
		AppointmentID: &appt.ID,
	})
}

// DetectUserNoShow penalises the customer of a customer-no-show appointment.
func (d *DetectionService) DetectUserNoShow(ctx context.Context, appointmentID string, opts DetectionOptions) ([]*domain.Violation, error) {
	appt, err := d.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != domain.AppointmentCustomerNoShow {
		return nil, nil
	}
	return d.record(ctx, "user_no_show", opts.token(appointmentToken(appt)), RecordViolationInput{
		Account:       domain.CustomerRef(appt.CustomerID),
		Code:          domain.CodeUserNoShow,
		AppointmentID: &appt.ID,
	})
}

// DetectConsecutivePoorRatings penalises a provider whose three most recent
// customer ratings are all one star. The rating passed in must be one of them.
func (d *DetectionService) DetectConsecutivePoorRatings(ctx context.Context, ratingID string, opts DetectionOptions) ([]*domain.Violation, error) {
	rating, err := d.ratings.GetByID(ctx, ratingID)
	if err != nil {
		return nil, apperrors.FromStore(err, "rating", map[string]any{"rating_id": ratingID})
	}
	if rating.RatedBy != domain.AccountKindCustomer || rating.RatingValue != 1 {
		return nil, nil
	}
	recent, err := d.ratings.ListRecentForProvider(ctx, rating.ProviderID, poorRatingStreak)
	if err != nil {
		return nil, apperrors.FromStore(err, "rating", nil)
	}
	if len(recent) < poorRatingStreak {
		return nil, nil
	}
	inStreak := false
	for _, r := range recent {
		if r.RatingValue != 1 {
			return nil, nil
		}
		inStreak = inStreak || r.ID == rating.ID
	}
	if !inStreak {
		return nil, nil
	}
	details := fmt.Sprintf("%d consecutive one-star ratings", poorRatingStreak)
	return d.record(ctx, "poor_ratings", opts.token("rating:"+rating.ID), RecordViolationInput{
		Account:  domain.ProviderRef(rating.ProviderID),
		Code:     domain.CodeProviderPoorService,
		Details:  &details,
		RatingID: &rating.ID,
	})
}

// record claims the token, records the base violation and escalates to the
// repeated variant when the window already holds enough active ones.
func (d *DetectionService) record(ctx context.Context, detector, token string, input RecordViolationInput) ([]*domain.Violation, error) {
	claimed, err := d.guard.Claim(ctx, token, d.cfg.DetectionTokenTTL())
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if !claimed {
		d.skipped(detector, token)
		return nil, nil
	}

	input.DetectedBy = domain.DetectedBySystem
	input.IdempotencyKey = &token
	base, err := d.penalty.RecordViolation(ctx, input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			d.skipped(detector, token)
			return nil, nil
		}
		if releaseErr := d.guard.Release(ctx, token); releaseErr != nil {
			d.logger.Warn("release detection token failed", zap.String("token", token), zap.Error(releaseErr))
		}
		return nil, err
	}
	recorded := []*domain.Violation{base}

	variant, ok := domain.RepeatedVariant(input.Code)
	if !ok {
		return recorded, nil
	}
	check, err := d.penalty.CheckRepeatedViolations(ctx, input.Account, input.Code, 0)
	if err != nil {
		return recorded, err
	}
	if !check.ShouldApplyAdditionalPenalty {
		return recorded, nil
	}

	repeatedToken := token + ":repeated"
	details := fmt.Sprintf("%d %s violations within %d days", check.Count, input.Code, int(d.cfg.RepeatWindow().Hours()/24))
	escalated, err := d.penalty.RecordViolation(ctx, RecordViolationInput{
		Account:        input.Account,
		Code:           variant,
		Details:        &details,
		DetectedBy:     domain.DetectedBySystem,
		AppointmentID:  input.AppointmentID,
		RatingID:       input.RatingID,
		IdempotencyKey: &repeatedToken,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return recorded, nil
		}
		return recorded, err
	}
	d.logger.Info("repeated violation escalated",
		zap.Stringer("account", input.Account),
		zap.String("code", variant),
		zap.Int("count", check.Count))
	return append(recorded, escalated), nil
}

func (d *DetectionService) skipped(detector, token string) {
	d.metrics.RecordDuplicateDetection(detector)
	d.logger.Debug("detection already handled", zap.String("detector", detector), zap.String("token", token))
}

func (d *DetectionService) loadAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	appt, err := d.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "appointment", map[string]any{"appointment_id": id})
	}
	return appt, nil
}

func appointmentToken(appt *domain.Appointment) string {
	return appt.ID + ":" + string(appt.Status)
}
