package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/observability"
)

// HookRunner is the entry point for the booking and rating flows. It never
// returns an error: penalty bookkeeping must not fail the caller's request.
// Every swallowed failure is logged and counted.
type HookRunner struct {
	penalty   *PenaltyService
	detection *DetectionService
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewHookRunner constructs the runner.
func NewHookRunner(penalty *PenaltyService, detection *DetectionService, metrics *observability.Metrics, logger *zap.Logger) *HookRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookRunner{penalty: penalty, detection: detection, metrics: metrics, logger: logger}
}

// OnAppointmentStatusChanged runs every appointment detector and the booking
// reward. Each one ignores statuses it does not handle.
func (h *HookRunner) OnAppointmentStatusChanged(ctx context.Context, appointmentID string, opts DetectionOptions) {
	_, err := h.detection.DetectLateCancellation(ctx, appointmentID, opts)
	h.observe("late_cancellation", appointmentID, err)

	_, err = h.detection.DetectProviderNoShow(ctx, appointmentID, opts)
	h.observe("provider_no_show", appointmentID, err)

	_, err = h.detection.DetectUserNoShow(ctx, appointmentID, opts)
	h.observe("user_no_show", appointmentID, err)

	_, err = h.penalty.RewardSuccessfulBooking(ctx, appointmentID)
	h.observe("booking_reward", appointmentID, err)
}

// OnRatingSubmitted credits good ratings and checks for a poor-rating streak.
func (h *HookRunner) OnRatingSubmitted(ctx context.Context, ratingID string, opts DetectionOptions) {
	_, err := h.penalty.RewardGoodRating(ctx, ratingID)
	h.observe("rating_reward", ratingID, err)

	_, err = h.detection.DetectConsecutivePoorRatings(ctx, ratingID, opts)
	h.observe("poor_ratings", ratingID, err)
}

func (h *HookRunner) observe(hook, subjectID string, err error) {
	if err == nil {
		return
	}
	h.metrics.RecordHookFailure(hook)
	h.logger.Error("penalty hook failed",
		zap.String("hook", hook),
		zap.String("subject_id", subjectID),
		zap.Error(err))
}
