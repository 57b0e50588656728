package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

const (
	minReasonLength     = 10
	statsRecentWindow   = 30 * 24 * time.Hour
	repeatThreshold     = 3
	pointFloorSuspended = "Penalty points fell to or below the deactivation threshold"
)

// PenaltyService owns every balance mutation. Each mutation locks the account
// row, computes the new balance, writes it and appends exactly one ledger
// entry inside a single transaction.
type PenaltyService struct {
	tx           repository.TxManager
	accounts     repository.AccountRepository
	types        repository.ViolationTypeRepository
	violations   repository.ViolationRepository
	adjustments  repository.AdjustmentRepository
	appointments repository.AppointmentRepository
	ratings      repository.RatingRepository
	dispatcher   events.Dispatcher
	metrics      *observability.Metrics
	logger       *zap.Logger
	cfg          config.PenaltyConfig
	now          func() time.Time
}

// PenaltyDependencies bundles collaborators for the penalty service.
type PenaltyDependencies struct {
	TxManager       repository.TxManager
	AccountRepo     repository.AccountRepository
	TypeRepo        repository.ViolationTypeRepository
	ViolationRepo   repository.ViolationRepository
	AdjustmentRepo  repository.AdjustmentRepository
	AppointmentRepo repository.AppointmentRepository
	RatingRepo      repository.RatingRepository
	Dispatcher      events.Dispatcher
	Metrics         *observability.Metrics
	Logger          *zap.Logger
	Config          config.PenaltyConfig
	Clock           func() time.Time
}

// NewPenaltyService constructs the service.
func NewPenaltyService(deps PenaltyDependencies) *PenaltyService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &PenaltyService{
		tx:           deps.TxManager,
		accounts:     deps.AccountRepo,
		types:        deps.TypeRepo,
		violations:   deps.ViolationRepo,
		adjustments:  deps.AdjustmentRepo,
		appointments: deps.AppointmentRepo,
		ratings:      deps.RatingRepo,
		dispatcher:   deps.Dispatcher,
		metrics:      deps.Metrics,
		logger:       logger,
		cfg:          deps.Config,
		now:          clock,
	}
}

// RecordViolationInput describes a violation to record.
type RecordViolationInput struct {
	Account           domain.AccountRef
	Code              string
	Details           *string
	EvidenceURLs      []string
	DetectedBy        domain.DetectionSource
	DetectedByAdminID *string
	AppointmentID     *string
	ReportID          *string
	RatingID          *string
	IdempotencyKey    *string
}

// BalanceResult reports the outcome of one ledger-producing mutation.
type BalanceResult struct {
	Account        domain.AccountRef  `json:"account"`
	PreviousPoints int                `json:"previous_points"`
	NewPoints      int                `json:"new_points"`
	Deactivated    bool               `json:"deactivated"`
	Reactivated    bool               `json:"reactivated"`
	Adjustment     *domain.Adjustment `json:"-"`
}

// RepeatCheck is the result of CheckRepeatedViolations.
type RepeatCheck struct {
	Count                        int  `json:"count"`
	ShouldApplyAdditionalPenalty bool `json:"should_apply_additional_penalty"`
}

// PenaltyStats summarises an account's standing.
type PenaltyStats struct {
	Account          domain.AccountRef     `json:"account"`
	CurrentPoints    int                   `json:"current_points"`
	IsSuspended      bool                  `json:"is_suspended"`
	SuspendedAt      *time.Time            `json:"suspended_at,omitempty"`
	SuspendedUntil   *time.Time            `json:"suspended_until,omitempty"`
	TotalViolations  int                   `json:"total_violations"`
	ActiveViolations int                   `json:"active_violations"`
	RecentViolations int                   `json:"recent_violations"`
	Status           domain.StandingStatus `json:"status"`
	Tier             domain.AccessTier     `json:"tier"`
}

// RewardStats summarises the bonus credits of an account.
type RewardStats struct {
	Account       domain.AccountRef `json:"account"`
	CurrentPoints int               `json:"current_points"`
	TotalBonuses  int               `json:"total_bonuses"`
	TotalPoints   int               `json:"total_points"`
	LastBonusAt   *time.Time        `json:"last_bonus_at,omitempty"`
}

// Dashboard aggregates figures for the admin console.
type Dashboard struct {
	SuspendedCustomers   int                    `json:"suspended_customers"`
	SuspendedProviders   int                    `json:"suspended_providers"`
	PendingAppeals       int                    `json:"pending_appeals"`
	ViolationsLast30Days int                    `json:"violations_last_30_days"`
	TopViolationCodes    []repository.CodeCount `json:"top_violation_codes"`
}

// RecordViolation validates the request against the catalog, stores the
// violation and deducts its cost in one transaction.
func (s *PenaltyService) RecordViolation(ctx context.Context, input RecordViolationInput) (*domain.Violation, error) {
	if !input.Account.Valid() {
		return nil, apperrors.NewValidationError("exactly one customer or provider account is required", nil)
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, apperrors.NewValidationError("violation code is required", nil)
	}
	if input.DetectedBy == "" {
		input.DetectedBy = domain.DetectedBySystem
	}

	vt, err := s.types.GetByCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewViolationTypeNotFound(code)
	}
	if err != nil {
		return nil, apperrors.FromStore(err, "violation type", nil)
	}
	if !vt.IsActive {
		return nil, apperrors.NewViolationTypeNotFound(code)
	}
	if !vt.Category.Matches(input.Account.Kind) {
		return nil, apperrors.NewCategoryMismatch(code, string(vt.Category), string(input.Account.Kind))
	}
	if vt.RequiresEvidence && input.DetectedBy == domain.DetectedByAdmin && len(input.EvidenceURLs) == 0 {
		return nil, apperrors.NewValidationError("evidence is required for this violation type", map[string]any{"code": code})
	}

	violation := &domain.Violation{
		Account:           input.Account,
		ViolationCode:     vt.Code,
		PointsDeducted:    vt.PointCost,
		Status:            domain.ViolationStatusActive,
		AppealStatus:      domain.AppealStatusNone,
		AppointmentID:     input.AppointmentID,
		ReportID:          input.ReportID,
		RatingID:          input.RatingID,
		Details:           input.Details,
		EvidenceURLs:      input.EvidenceURLs,
		DetectedBy:        input.DetectedBy,
		DetectedByAdminID: input.DetectedByAdminID,
		IdempotencyKey:    input.IdempotencyKey,
	}

	var result BalanceResult
	err = s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		account, err := lockAccount(ctx, stores, input.Account)
		if err != nil {
			return err
		}
		if err := stores.Violations.Create(ctx, violation); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("violation already recorded for this idempotency key",
					map[string]any{"idempotency_key": deref(input.IdempotencyKey)})
			}
			return apperrors.FromStore(err, "violation", nil)
		}
		result, err = s.applyDeduction(ctx, stores, account, vt.PointCost,
			fmt.Sprintf("Violation: %s", vt.Description), input.DetectedByAdminID, &violation.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordViolation(violation.ViolationCode, string(violation.DetectedBy))
	s.logger.Info("violation recorded",
		zap.String("violation_id", violation.ID),
		zap.String("code", violation.ViolationCode),
		zap.Stringer("account", violation.Account),
		zap.Int("points_deducted", violation.PointsDeducted),
		zap.Int("new_points", result.NewPoints))

	actor := events.SystemActor
	if input.DetectedByAdminID != nil {
		actor = events.Actor{Type: domain.SubjectTypeAdmin, ID: input.DetectedByAdminID}
	}
	s.publish(ctx, events.New(events.EventViolationRecorded, violation.Account, actor, events.ViolationRecordedPayload{
		ViolationID:    violation.ID,
		ViolationCode:  violation.ViolationCode,
		PointsDeducted: violation.PointsDeducted,
		NewPoints:      result.NewPoints,
		Description:    vt.Description,
	}))
	s.afterBalanceChange(ctx, result, domain.AdjustmentPenalty, actor, "")
	return violation, nil
}

// DeductPoints removes points from an account. The balance floors at zero and
// the account is deactivated once it reaches the threshold.
func (s *PenaltyService) DeductPoints(ctx context.Context, ref domain.AccountRef, points int, reason string, adminID, violationID *string) (*BalanceResult, error) {
	if err := validateMutation(ref, points); err != nil {
		return nil, err
	}
	var result BalanceResult
	err := s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		account, err := lockAccount(ctx, stores, ref)
		if err != nil {
			return err
		}
		result, err = s.applyDeduction(ctx, stores, account, points, reason, adminID, violationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterBalanceChange(ctx, result, domain.AdjustmentPenalty, actorFor(adminID), reason)
	return &result, nil
}

// RestorePoints credits points back, capped at the maximum. The ledger records
// the nominal amount even when the cap absorbs part of it.
func (s *PenaltyService) RestorePoints(ctx context.Context, ref domain.AccountRef, points int, reason string, adminID, violationID *string) (*BalanceResult, error) {
	return s.credit(ctx, ref, points, domain.AdjustmentRestore, reason, adminID, violationID)
}

// CheckRepeatedViolations counts active violations with the same code inside
// the window. windowDays <= 0 uses the configured window.
func (s *PenaltyService) CheckRepeatedViolations(ctx context.Context, ref domain.AccountRef, code string, windowDays int) (RepeatCheck, error) {
	window := s.cfg.RepeatWindow()
	if windowDays > 0 {
		window = time.Duration(windowDays) * 24 * time.Hour
	}
	since := s.now().Add(-window)
	count, err := s.violations.Count(ctx, repository.ViolationFilter{
		Account:     &ref,
		Code:        &code,
		Statuses:    []domain.ViolationStatus{domain.ViolationStatusActive},
		CreatedFrom: &since,
	})
	if err != nil {
		return RepeatCheck{}, apperrors.FromStore(err, "violation", nil)
	}
	return RepeatCheck{Count: count, ShouldApplyAdditionalPenalty: count >= repeatThreshold}, nil
}

// AdjustPoints is the admin's manual correction. Negative deltas go through
// the deduction path, positive ones through the restore path.
func (s *PenaltyService) AdjustPoints(ctx context.Context, ref domain.AccountRef, delta int, reason, adminID string) (*BalanceResult, error) {
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, apperrors.NewValidationError("points must be non-zero", nil)
	}
	reason = "Manual adjustment: " + strings.TrimSpace(reason)
	if delta < 0 {
		return s.DeductPoints(ctx, ref, -delta, reason, &adminID, nil)
	}
	return s.RestorePoints(ctx, ref, delta, reason, &adminID, nil)
}

// Suspend places an administrative suspension on the account, optionally
// for a fixed term. It is independent of the point balance.
func (s *PenaltyService) Suspend(ctx context.Context, ref domain.AccountRef, adminID, reason string, until *time.Time) (*domain.Account, error) {
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a valid account reference is required", nil)
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	now := s.now()
	if until != nil && !until.After(now) {
		return nil, apperrors.NewValidationError("suspended_until must be in the future", nil)
	}
	reason = strings.TrimSpace(reason)

	var (
		account *domain.Account
		before  int
	)
	err := s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		var err error
		account, err = lockAccount(ctx, stores, ref)
		if err != nil {
			return err
		}
		if account.AdminSuspended {
			return apperrors.NewInvalidState("account is already suspended by an administrator", map[string]any{"account": ref.String()})
		}
		before = account.PenaltyPoints
		if !account.IsSuspended {
			account.SuspendedAt = &now
		}
		account.IsSuspended = true
		account.AdminSuspended = true
		account.SuspendedUntil = until
		account.SuspensionReason = &reason
		if err := stores.Accounts.Update(ctx, account); err != nil {
			return apperrors.FromStore(err, "account", nil)
		}
		return appendAdjustment(ctx, stores, &domain.Adjustment{
			Account:           ref,
			Type:              domain.AdjustmentSuspension,
			PreviousPoints:    before,
			NewPoints:         before,
			Reason:            "Account suspended: " + reason,
			AdjustedByAdminID: &adminID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAdjustment(string(domain.AdjustmentSuspension), string(ref.Kind))
	s.metrics.RecordSuspension(string(ref.Kind), true)
	s.logger.Info("account suspended by admin", zap.Stringer("account", ref), zap.String("admin_id", adminID))
	s.publish(ctx, events.New(events.EventAccountSuspended, ref, actorFor(&adminID), events.SuspensionPayload{
		PreviousPoints: before,
		NewPoints:      before,
		Reason:         reason,
		SuspendedUntil: until,
	}))
	return account, nil
}

// LiftSuspension removes an administrative suspension. A suspension caused by
// the point floor can only be lifted by restoring points.
func (s *PenaltyService) LiftSuspension(ctx context.Context, ref domain.AccountRef, adminID, reason string) (*domain.Account, error) {
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a valid account reference is required", nil)
	}
	if err := validateReason(reason); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	var account *domain.Account
	err := s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		var err error
		account, err = lockAccount(ctx, stores, ref)
		if err != nil {
			return err
		}
		if !account.IsSuspended {
			return apperrors.NewInvalidState("account is not suspended", map[string]any{"account": ref.String()})
		}
		if domain.BelowThreshold(account.PenaltyPoints) {
			return apperrors.NewInvalidState("account is at or below the deactivation threshold; restore points instead",
				map[string]any{"account": ref.String(), "penalty_points": account.PenaltyPoints})
		}
		return s.liftLocked(ctx, stores, account, &adminID, "Suspension lifted: "+reason)
	})
	if err != nil {
		return nil, err
	}
	s.afterLift(ctx, account, actorFor(&adminID), reason)
	return account, nil
}

// LiftExpiredSuspensions clears administrative suspensions whose fixed term
// has passed. Accounts are processed independently; failures are collected.
func (s *PenaltyService) LiftExpiredSuspensions(ctx context.Context) (int, error) {
	now := s.now()
	lifted := 0
	var errs []error
	for _, kind := range []domain.AccountKind{domain.AccountKindCustomer, domain.AccountKindProvider} {
		ids, err := s.accounts.ListIDsWithExpiredSuspension(ctx, kind, now)
		if err != nil {
			return lifted, apperrors.FromStore(err, "account", nil)
		}
		for _, id := range ids {
			ref := domain.AccountRef{Kind: kind, ID: id}
			var account *domain.Account
			err := s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
				var err error
				account, err = lockAccount(ctx, stores, ref)
				if err != nil {
					return err
				}
				if !account.AdminSuspended || account.SuspendedUntil == nil || account.SuspendedUntil.After(now) {
					account = nil
					return nil
				}
				return s.liftLocked(ctx, stores, account, nil, "Fixed-term suspension expired")
			})
			if err != nil {
				s.logger.Error("lift expired suspension failed", zap.Stringer("account", ref), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", ref, err))
				continue
			}
			if account != nil {
				lifted++
				s.afterLift(ctx, account, events.SystemActor, "Fixed-term suspension expired")
			}
		}
	}
	return lifted, errors.Join(errs...)
}

// GetPenaltyStats returns the account's balance, standing and violation counts.
func (s *PenaltyService) GetPenaltyStats(ctx context.Context, ref domain.AccountRef) (*PenaltyStats, error) {
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a valid account reference is required", nil)
	}
	account, err := s.accounts.Get(ctx, ref)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", map[string]any{"account": ref.String()})
	}
	total, err := s.violations.Count(ctx, repository.ViolationFilter{Account: &ref})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}
	active, err := s.violations.Count(ctx, repository.ViolationFilter{
		Account:  &ref,
		Statuses: []domain.ViolationStatus{domain.ViolationStatusActive},
	})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}
	since := s.now().Add(-statsRecentWindow)
	recent, err := s.violations.Count(ctx, repository.ViolationFilter{Account: &ref, CreatedFrom: &since})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}

	return &PenaltyStats{
		Account:          ref,
		CurrentPoints:    account.PenaltyPoints,
		IsSuspended:      account.IsSuspended,
		SuspendedAt:      account.SuspendedAt,
		SuspendedUntil:   account.SuspendedUntil,
		TotalViolations:  total,
		ActiveViolations: active,
		RecentViolations: recent,
		Status:           domain.StandingFor(account.PenaltyPoints),
		Tier:             domain.TierFor(ref.Kind, account.PenaltyPoints),
	}, nil
}

// ListViolations returns a page of violations and the total matching count.
func (s *PenaltyService) ListViolations(ctx context.Context, filter repository.ViolationFilter) ([]domain.Violation, int, error) {
	items, err := s.violations.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.FromStore(err, "violation", nil)
	}
	total, err := s.violations.Count(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.FromStore(err, "violation", nil)
	}
	return items, total, nil
}

// ListAdjustments returns a page of ledger entries, newest first.
func (s *PenaltyService) ListAdjustments(ctx context.Context, filter repository.AdjustmentFilter) ([]domain.Adjustment, error) {
	items, err := s.adjustments.List(ctx, filter)
	if err != nil {
		return nil, apperrors.FromStore(err, "adjustment", nil)
	}
	return items, nil
}

// GetRewardStats summarises the bonus entries of an account.
func (s *PenaltyService) GetRewardStats(ctx context.Context, ref domain.AccountRef) (*RewardStats, error) {
	if !ref.Valid() {
		return nil, apperrors.NewValidationError("a valid account reference is required", nil)
	}
	account, err := s.accounts.Get(ctx, ref)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", map[string]any{"account": ref.String()})
	}
	summary, err := s.adjustments.Summarize(ctx, ref, domain.AdjustmentBonus)
	if err != nil {
		return nil, apperrors.FromStore(err, "adjustment", nil)
	}
	return &RewardStats{
		Account:       ref,
		CurrentPoints: account.PenaltyPoints,
		TotalBonuses:  summary.Count,
		TotalPoints:   summary.TotalPoints,
		LastBonusAt:   summary.LastAt,
	}, nil
}

// Dashboard aggregates the admin overview.
func (s *PenaltyService) Dashboard(ctx context.Context) (*Dashboard, error) {
	customers, err := s.accounts.CountSuspended(ctx, domain.AccountKindCustomer)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", nil)
	}
	providers, err := s.accounts.CountSuspended(ctx, domain.AccountKindProvider)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", nil)
	}
	pending := domain.AppealStatusPending
	appeals, err := s.violations.Count(ctx, repository.ViolationFilter{AppealStatus: &pending})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}
	since := s.now().Add(-statsRecentWindow)
	recent, err := s.violations.Count(ctx, repository.ViolationFilter{CreatedFrom: &since})
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}
	top, err := s.violations.CountByCodeSince(ctx, since, 5)
	if err != nil {
		return nil, apperrors.FromStore(err, "violation", nil)
	}
	return &Dashboard{
		SuspendedCustomers:   customers,
		SuspendedProviders:   providers,
		PendingAppeals:       appeals,
		ViolationsLast30Days: recent,
		TopViolationCodes:    top,
	}, nil
}

// credit runs a restore or bonus in its own transaction.
func (s *PenaltyService) credit(ctx context.Context, ref domain.AccountRef, points int, adjustmentType domain.AdjustmentType, reason string, adminID, violationID *string) (*BalanceResult, error) {
	if err := validateMutation(ref, points); err != nil {
		return nil, err
	}
	var result BalanceResult
	err := s.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		account, err := lockAccount(ctx, stores, ref)
		if err != nil {
			return err
		}
		result, err = s.applyCredit(ctx, stores, account, points, adjustmentType, reason, adminID, violationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterBalanceChange(ctx, result, adjustmentType, actorFor(adminID), reason)
	return &result, nil
}

// applyDeduction mutates a locked account. Callers must hold the transaction.
func (s *PenaltyService) applyDeduction(ctx context.Context, stores repository.TxStores, account *domain.Account, points int, reason string, adminID, violationID *string) (BalanceResult, error) {
	previous := account.PenaltyPoints
	wasSuspended := account.IsSuspended
	next := domain.ClampPoints(previous - points)

	account.PenaltyPoints = next
	if domain.BelowThreshold(next) {
		account.IsSuspended = true
	}
	deactivated := !wasSuspended && account.IsSuspended
	if deactivated {
		now := s.now()
		msg := pointFloorSuspended
		account.SuspendedAt = &now
		account.SuspensionReason = &msg
	}
	if err := stores.Accounts.Update(ctx, account); err != nil {
		return BalanceResult{}, apperrors.FromStore(err, "account", nil)
	}

	adjustment := &domain.Adjustment{
		Account:            account.Ref,
		Type:               domain.AdjustmentPenalty,
		PointsAdjusted:     -points,
		PreviousPoints:     previous,
		NewPoints:          next,
		Reason:             reason,
		RelatedViolationID: violationID,
		AdjustedByAdminID:  adminID,
	}
	if err := appendAdjustment(ctx, stores, adjustment); err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{
		Account:        account.Ref,
		PreviousPoints: previous,
		NewPoints:      next,
		Deactivated:    deactivated,
		Adjustment:     adjustment,
	}, nil
}

// applyCredit mutates a locked account for a restore or bonus. The point-floor
// suspension is recomputed from the new balance; an administrative
// suspension survives.
func (s *PenaltyService) applyCredit(ctx context.Context, stores repository.TxStores, account *domain.Account, points int, adjustmentType domain.AdjustmentType, reason string, adminID, violationID *string) (BalanceResult, error) {
	previous := account.PenaltyPoints
	wasSuspended := account.IsSuspended
	next := domain.ClampPoints(previous + points)

	account.PenaltyPoints = next
	account.IsSuspended = domain.BelowThreshold(next) || account.AdminSuspended
	if !account.IsSuspended {
		account.SuspendedAt = nil
		account.SuspendedUntil = nil
		account.SuspensionReason = nil
	}
	if err := stores.Accounts.Update(ctx, account); err != nil {
		return BalanceResult{}, apperrors.FromStore(err, "account", nil)
	}

	adjustment := &domain.Adjustment{
		Account:            account.Ref,
		Type:               adjustmentType,
		PointsAdjusted:     points,
		PreviousPoints:     previous,
		NewPoints:          next,
		Reason:             reason,
		RelatedViolationID: violationID,
		AdjustedByAdminID:  adminID,
	}
	if err := appendAdjustment(ctx, stores, adjustment); err != nil {
		return BalanceResult{}, err
	}
	return BalanceResult{
		Account:        account.Ref,
		PreviousPoints: previous,
		NewPoints:      next,
		Reactivated:    wasSuspended && !account.IsSuspended,
		Adjustment:     adjustment,
	}, nil
}

func (s *PenaltyService) liftLocked(ctx context.Context, stores repository.TxStores, account *domain.Account, adminID *string, reason string) error {
	account.AdminSuspended = false
	account.SuspendedUntil = nil
	account.IsSuspended = domain.BelowThreshold(account.PenaltyPoints)
	if !account.IsSuspended {
		account.SuspendedAt = nil
		account.SuspensionReason = nil
	} else {
		msg := pointFloorSuspended
		account.SuspensionReason = &msg
	}
	if err := stores.Accounts.Update(ctx, account); err != nil {
		return apperrors.FromStore(err, "account", nil)
	}
	return appendAdjustment(ctx, stores, &domain.Adjustment{
		Account:           account.Ref,
		Type:              domain.AdjustmentLiftSuspension,
		PreviousPoints:    account.PenaltyPoints,
		NewPoints:         account.PenaltyPoints,
		Reason:            reason,
		AdjustedByAdminID: adminID,
	})
}

func (s *PenaltyService) afterLift(ctx context.Context, account *domain.Account, actor events.Actor, reason string) {
	s.metrics.RecordAdjustment(string(domain.AdjustmentLiftSuspension), string(account.Ref.Kind))
	if account.IsSuspended {
		return
	}
	s.metrics.RecordSuspension(string(account.Ref.Kind), false)
	s.logger.Info("suspension lifted", zap.Stringer("account", account.Ref))
	s.publish(ctx, events.New(events.EventAccountReactivated, account.Ref, actor, events.SuspensionPayload{
		PreviousPoints: account.PenaltyPoints,
		NewPoints:      account.PenaltyPoints,
		Reason:         reason,
	}))
}

// afterBalanceChange emits metrics and suspension events once the mutation committed.
func (s *PenaltyService) afterBalanceChange(ctx context.Context, result BalanceResult, adjustmentType domain.AdjustmentType, actor events.Actor, reason string) {
	kind := string(result.Account.Kind)
	s.metrics.RecordAdjustment(string(adjustmentType), kind)
	switch {
	case result.Deactivated:
		s.metrics.RecordSuspension(kind, true)
		s.logger.Warn("account deactivated",
			zap.Stringer("account", result.Account),
			zap.Int("previous_points", result.PreviousPoints),
			zap.Int("new_points", result.NewPoints))
		s.publish(ctx, events.New(events.EventAccountSuspended, result.Account, actor, events.SuspensionPayload{
			PreviousPoints: result.PreviousPoints,
			NewPoints:      result.NewPoints,
			Reason:         pointFloorSuspended,
		}))
	case result.Reactivated:
		s.metrics.RecordSuspension(kind, false)
		s.logger.Info("account reactivated",
			zap.Stringer("account", result.Account),
			zap.Int("new_points", result.NewPoints))
		s.publish(ctx, events.New(events.EventAccountReactivated, result.Account, actor, events.SuspensionPayload{
			PreviousPoints: result.PreviousPoints,
			NewPoints:      result.NewPoints,
			Reason:         reason,
		}))
	}
}

// withinTx runs fn in one transaction. Begin and commit failures come back as
// persistence errors; errors from fn keep their code.
func (s *PenaltyService) withinTx(ctx context.Context, fn func(ctx context.Context, stores repository.TxStores) error) error {
	return apperrors.FromStore(s.tx.WithinTx(ctx, fn), "record", nil)
}

func (s *PenaltyService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func lockAccount(ctx context.Context, stores repository.TxStores, ref domain.AccountRef) (*domain.Account, error) {
	account, err := stores.Accounts.GetForUpdate(ctx, ref)
	if err != nil {
		return nil, apperrors.FromStore(err, "account", map[string]any{"account": ref.String()})
	}
	return account, nil
}

func appendAdjustment(ctx context.Context, stores repository.TxStores, adjustment *domain.Adjustment) error {
	if err := stores.Adjustments.Create(ctx, adjustment); err != nil {
		return apperrors.FromStore(err, "adjustment", nil)
	}
	return nil
}

func validateMutation(ref domain.AccountRef, points int) error {
	if !ref.Valid() {
		return apperrors.NewValidationError("a valid account reference is required", nil)
	}
	if points <= 0 {
		return apperrors.NewValidationError("points must be positive", map[string]any{"points": points})
	}
	if points > domain.MaxPenaltyPoints {
		return apperrors.NewValidationError("points exceed the balance range", map[string]any{"points": points, "max": domain.MaxPenaltyPoints})
	}
	return nil
}

func validateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < minReasonLength {
		return apperrors.NewValidationError("reason must be at least 10 characters", map[string]any{"min_length": minReasonLength})
	}
	return nil
}

func actorFor(adminID *string) events.Actor {
	if adminID == nil {
		return events.SystemActor
	}
	return events.Actor{Type: domain.SubjectTypeAdmin, ID: adminID}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
