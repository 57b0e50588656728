package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/repository"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

const quarterlyResetReason = "Quarterly penalty points reset"

// ResetReport summarises one bulk reset run.
type ResetReport struct {
	Customers int `json:"customers"`
	Providers int `json:"providers"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Total is the number of accounts restored.
func (r ResetReport) Total() int {
	return r.Customers + r.Providers
}

// ResetService restores every account below the maximum back to full points.
type ResetService struct {
	penalty     *PenaltyService
	concurrency int
}

// NewResetService constructs the service. concurrency bounds how many
// per-account transactions run at once.
func NewResetService(penalty *PenaltyService, concurrency int) *ResetService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ResetService{penalty: penalty, concurrency: concurrency}
}

// ResetAll resets both account kinds. Each account is reset in its own
// transaction; accounts already at the maximum when locked are skipped, so a
// second run in the same quarter writes nothing. Per-account failures do not
// stop the run and are returned joined.
func (s *ResetService) ResetAll(ctx context.Context) (ResetReport, error) {
	var (
		report ResetReport
		mu     sync.Mutex
		errs   []error
	)
	logger := s.penalty.logger

	for _, kind := range []domain.AccountKind{domain.AccountKindCustomer, domain.AccountKindProvider} {
		ids, err := s.penalty.accounts.ListIDsBelowMax(ctx, kind)
		if err != nil {
			s.penalty.metrics.RecordReset(report.Total(), err)
			return report, apperrors.FromStore(err, "account", nil)
		}

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, id := range ids {
			ref := domain.AccountRef{Kind: kind, ID: id}
			g.Go(func() error {
				reset, err := s.resetOne(ctx, ref)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					report.Failed++
					errs = append(errs, fmt.Errorf("%s: %w", ref, err))
					logger.Error("reset account failed", zap.Stringer("account", ref), zap.Error(err))
				case !reset:
					report.Skipped++
				case kind == domain.AccountKindCustomer:
					report.Customers++
				default:
					report.Providers++
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	err := errors.Join(errs...)
	s.penalty.metrics.RecordReset(report.Total(), err)
	logger.Info("penalty points reset",
		zap.Int("customers", report.Customers),
		zap.Int("providers", report.Providers),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, err
}

func (s *ResetService) resetOne(ctx context.Context, ref domain.AccountRef) (bool, error) {
	var (
		previous     int
		wasSuspended bool
	)
	applied := false
	err := s.penalty.withinTx(ctx, func(ctx context.Context, stores repository.TxStores) error {
		account, err := lockAccount(ctx, stores, ref)
		if err != nil {
			return err
		}
		if account.PenaltyPoints >= domain.MaxPenaltyPoints {
			return nil
		}
		previous = account.PenaltyPoints
		wasSuspended = account.IsSuspended

		account.PenaltyPoints = domain.MaxPenaltyPoints
		account.IsSuspended = false
		account.AdminSuspended = false
		account.SuspendedAt = nil
		account.SuspendedUntil = nil
		account.SuspensionReason = nil
		if err := stores.Accounts.Update(ctx, account); err != nil {
			return apperrors.FromStore(err, "account", nil)
		}
		applied = true
		return appendAdjustment(ctx, stores, &domain.Adjustment{
			Account:        ref,
			Type:           domain.AdjustmentReset,
			PointsAdjusted: domain.MaxPenaltyPoints - previous,
			PreviousPoints: previous,
			NewPoints:      domain.MaxPenaltyPoints,
			Reason:         quarterlyResetReason,
		})
	})
	if err != nil || !applied {
		return false, err
	}

	s.penalty.metrics.RecordAdjustment(string(domain.AdjustmentReset), string(ref.Kind))
	s.penalty.publish(ctx, events.New(events.EventPointsReset, ref, events.SystemActor,
		events.PointsResetPayload{PreviousPoints: previous}))
	if wasSuspended {
		s.penalty.metrics.RecordSuspension(string(ref.Kind), false)
		s.penalty.publish(ctx, events.New(events.EventAccountReactivated, ref, events.SystemActor, events.SuspensionPayload{
			PreviousPoints: previous,
			NewPoints:      domain.MaxPenaltyPoints,
			Reason:         quarterlyResetReason,
		}))
	}
	return true, nil
}

// NextQuarterStart returns midnight on the first day of the calendar quarter
// after t, in t's location.
func NextQuarterStart(t time.Time) time.Time {
	month := (int(t.Month())-1)/3*3 + 4
	year := t.Year()
	if month > 12 {
		month -= 12
		year++
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, t.Location())
}
