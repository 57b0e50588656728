package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/repository/memory"
)

var testNow = time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	store     *memory.Store
	metrics   *observability.Metrics
	events    *recorder
	penalty   *PenaltyService
	detection *DetectionService
	appeals   *AppealService
	access    *AccessService
	resets    *ResetService
	catalog   *CatalogService
	certs     *CertificateService
	hooks     *HookRunner
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{store: memory.New(), metrics: observability.NewMetrics(), events: &recorder{}, now: testNow}
	clock := func() time.Time { return h.now }
	h.store.SetClock(clock)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	for _, eventType := range events.AllEventTypes() {
		dispatcher.Subscribe(eventType, h.events.handle)
	}

	cfg := config.PenaltyConfig{RepeatWindowDays: 7, LateCancelHours: 24, ResetConcurrency: 4}
	h.penalty = NewPenaltyService(PenaltyDependencies{
		TxManager:       h.store,
		AccountRepo:     h.store.Accounts(),
		TypeRepo:        h.store.ViolationTypes(),
		ViolationRepo:   h.store.Violations(),
		AdjustmentRepo:  h.store.Adjustments(),
		AppointmentRepo: h.store.Appointments(),
		RatingRepo:      h.store.Ratings(),
		Dispatcher:      dispatcher,
		Metrics:         h.metrics,
		Config:          cfg,
		Clock:           clock,
	})
	h.detection = NewDetectionService(DetectionDependencies{
		Penalty:         h.penalty,
		AppointmentRepo: h.store.Appointments(),
		RatingRepo:      h.store.Ratings(),
		Guard:           NewMemoryGuard(),
		Metrics:         h.metrics,
		Config:          cfg,
	})
	h.appeals = NewAppealService(h.penalty, h.store.Violations(), zap.NewNop())
	h.access = NewAccessService(h.store.Accounts(), h.store.Appointments())
	h.resets = NewResetService(h.penalty, cfg.ResetConcurrency)
	h.catalog = NewCatalogService(h.store.ViolationTypes(), nil)
	h.certs = NewCertificateService(h.penalty, h.store.Certificates(), 7)
	h.hooks = NewHookRunner(h.penalty, h.detection, h.metrics, nil)

	_, err := h.catalog.Seed(context.Background())
	require.NoError(t, err)
	return h
}

func (h *harness) setPoints(ref domain.AccountRef, points int) {
	h.store.PutAccount(domain.Account{
		Ref:           ref,
		PenaltyPoints: points,
		IsSuspended:   domain.BelowThreshold(points),
	})
}

func (h *harness) account(t *testing.T, ref domain.AccountRef) *domain.Account {
	t.Helper()
	account, err := h.store.Accounts().Get(context.Background(), ref)
	require.NoError(t, err)
	return account
}

func (h *harness) ledger(ref domain.AccountRef) []domain.Adjustment {
	var out []domain.Adjustment
	for _, adj := range h.store.AllAdjustments() {
		if adj.Account == ref {
			out = append(out, adj)
		}
	}
	return out
}

func (h *harness) record(t *testing.T, ref domain.AccountRef, code string) *domain.Violation {
	t.Helper()
	violation, err := h.penalty.RecordViolation(context.Background(), RecordViolationInput{Account: ref, Code: code})
	require.NoError(t, err)
	return violation
}

func strPtr(s string) *string { return &s }
