package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

// AppealService drives the violation state machine:
//
//	active -> appealed(pending) -> reversed(approved) | active(rejected)
//	active -> reversed (admin dismissal)
type AppealService struct {
	penalty    *PenaltyService
	violations repository.ViolationRepository
	logger     *zap.Logger
}

// NewAppealService constructs the service on top of the penalty engine.
func NewAppealService(penalty *PenaltyService, violations repository.ViolationRepository, logger *zap.Logger) *AppealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppealService{penalty: penalty, violations: violations, logger: logger}
}

// Appeal lets the owner of an active violation contest it.
func (s *AppealService) Appeal(ctx context.Context, violationID, reason string, caller domain.AccountRef) (*domain.Violation, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	now := s.penalty.now()

	var violation *domain.Violation
	err := s.penalty.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		var err error
		violation, err = lockViolation(ctx, stores, violationID)
		if err != nil {
			return err
		}
		if !violation.OwnedBy(caller) {
			return apperrors.NewUnauthorized("violation does not belong to the caller")
		}
		switch {
		case violation.Status == domain.ViolationStatusReversed:
			return apperrors.NewAlreadyReversed(violation.ID)
		case violation.AppealStatus == domain.AppealStatusPending:
			return apperrors.NewInvalidState("an appeal for this violation is already pending", map[string]any{"violation_id": violation.ID})
		case violation.Status != domain.ViolationStatusActive:
			return apperrors.NewInvalidState("only active violations can be appealed", map[string]any{"status": violation.Status})
		}

		violation.Status = domain.ViolationStatusAppealed
		violation.AppealStatus = domain.AppealStatusPending
		violation.AppealReason = &reason
		violation.AppealedAt = &now
		violation.ReviewedBy = nil
		violation.ReviewedAt = nil
		violation.ReviewNotes = nil
		return updateViolation(ctx, stores, violation)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appeal submitted", zap.String("violation_id", violation.ID), zap.Stringer("account", caller))
	s.penalty.publish(ctx, events.New(events.EventAppealSubmitted, violation.Account,
		events.Actor{Type: subjectFor(caller), ID: &caller.ID},
		events.AppealSubmittedPayload{ViolationID: violation.ID, Reason: reason}))
	return violation, nil
}

// ReviewAppeal resolves a pending appeal. Approval restores the deducted
// points in the same transaction as the status change.
func (s *AppealService) ReviewAppeal(ctx context.Context, violationID string, approved bool, adminID, notes string) (*domain.Violation, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, apperrors.NewValidationError("reviewer is required", nil)
	}
	notes = strings.TrimSpace(notes)
	now := s.penalty.now()

	var (
		violation *domain.Violation
		result    *BalanceResult
	)
	err := s.penalty.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		var err error
		violation, err = lockViolation(ctx, stores, violationID)
		if err != nil {
			return err
		}
		if violation.AppealStatus != domain.AppealStatusPending {
			return apperrors.NewInvalidState("violation has no pending appeal", map[string]any{
				"violation_id":  violation.ID,
				"appeal_status": violation.AppealStatus,
			})
		}

		violation.ReviewedBy = &adminID
		violation.ReviewedAt = &now
		if notes != "" {
			violation.ReviewNotes = &notes
		}
		if !approved {
			violation.Status = domain.ViolationStatusActive
			violation.AppealStatus = domain.AppealStatusRejected
			return updateViolation(ctx, stores, violation)
		}

		account, err := lockAccount(ctx, stores, violation.Account)
		if err != nil {
			return err
		}
		reason := "Appeal approved"
		if notes != "" {
			reason += ": " + notes
		}
		credited, err := s.penalty.applyCredit(ctx, stores, account, violation.PointsDeducted,
			domain.AdjustmentRestore, reason, &adminID, &violation.ID)
		if err != nil {
			return err
		}
		result = &credited
		violation.Status = domain.ViolationStatusReversed
		violation.AppealStatus = domain.AppealStatusApproved
		return updateViolation(ctx, stores, violation)
	})
	if err != nil {
		return nil, err
	}

	actor := actorFor(&adminID)
	payload := events.AppealReviewedPayload{ViolationID: violation.ID, Approved: approved, Notes: notes}
	if result != nil {
		payload.PointsRestored = violation.PointsDeducted
		payload.NewPoints = result.NewPoints
		s.penalty.afterBalanceChange(ctx, *result, domain.AdjustmentRestore, actor, "Appeal approved")
	}
	s.logger.Info("appeal reviewed", zap.String("violation_id", violation.ID), zap.Bool("approved", approved))
	s.penalty.publish(ctx, events.New(events.EventAppealReviewed, violation.Account, actor, payload))
	return violation, nil
}

// AdminReverseViolation dismisses an active violation directly, restoring its
// points exactly once.
func (s *AppealService) AdminReverseViolation(ctx context.Context, violationID, adminID, reason string) (*domain.Violation, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	now := s.penalty.now()

	var (
		violation *domain.Violation
		result    BalanceResult
	)
	err := s.penalty.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		var err error
		violation, err = lockViolation(ctx, stores, violationID)
		if err != nil {
			return err
		}
		switch violation.Status {
		case domain.ViolationStatusReversed:
			return apperrors.NewAlreadyReversed(violation.ID)
		case domain.ViolationStatusAppealed:
			return apperrors.NewInvalidState("violation has a pending appeal; review the appeal instead", map[string]any{"violation_id": violation.ID})
		}

		account, err := lockAccount(ctx, stores, violation.Account)
		if err != nil {
			return err
		}
		result, err = s.penalty.applyCredit(ctx, stores, account, violation.PointsDeducted,
			domain.AdjustmentRestore, "Violation reversed by admin: "+reason, &adminID, &violation.ID)
		if err != nil {
			return err
		}
		violation.Status = domain.ViolationStatusReversed
		violation.ReversalReason = &reason
		violation.ReviewedBy = &adminID
		violation.ReviewedAt = &now
		return updateViolation(ctx, stores, violation)
	})
	if err != nil {
		return nil, err
	}

	actor := actorFor(&adminID)
	s.penalty.afterBalanceChange(ctx, result, domain.AdjustmentRestore, actor, reason)
	s.logger.Info("violation reversed", zap.String("violation_id", violation.ID), zap.String("admin_id", adminID))
	s.penalty.publish(ctx, events.New(events.EventViolationReversed, violation.Account, actor, events.ViolationReversedPayload{
		ViolationID:    violation.ID,
		Reason:         reason,
		PointsRestored: violation.PointsDeducted,
		NewPoints:      result.NewPoints,
	}))
	return violation, nil
}

// ListPendingAppeals returns the review queue, newest first.
func (s *AppealService) ListPendingAppeals(ctx context.Context, limit, offset int) ([]domain.Violation, int, error) {
	pending := domain.AppealStatusPending
	return s.penalty.ListViolations(ctx, repository.ViolationFilter{
		AppealStatus: &pending,
		Limit:        limit,
		Offset:       offset,
	})
}

func lockViolation(ctx context.Context, stores repository.TxStores, id string) (*domain.Violation, error) {
	violation, err := stores.Violations.GetForUpdate(ctx, id)
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", map[string]any{"violation_id": id})
	}
	return violation, nil
}

func updateViolation(ctx context.Context, stores repository.TxStores, violation *domain.Violation) error {
	if err := stores.Violations.Update(ctx, violation); err != nil {
		return apperrors.FromStore(err, "violation", nil)
	}
	return nil
}

func subjectFor(ref domain.AccountRef) domain.SubjectType {
	if ref.Kind == domain.AccountKindProvider {
		return domain.SubjectTypeProvider
	}
	return domain.SubjectTypeCustomer
}

