package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/api/http/handlers"
	"github.com/bookwell/penalty-service/internal/auth"
	"github.com/bookwell/penalty-service/internal/bootstrap"
	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/repository/memory"
	"github.com/bookwell/penalty-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := &config.Config{
		App:       config.AppConfig{Name: "penalty-service", Version: "test"},
		Penalty:   config.PenaltyConfig{RepeatWindowDays: 7, LateCancelHours: 24, ResetConcurrency: 2},
		Scheduler: config.SchedulerConfig{CertificateReminderDays: 7},
	}
	store := memory.New()
	container := bootstrap.Assemble(cfg, logger, metrics, bootstrap.MemoryStores(store), service.NewMemoryGuard())
	_, err := container.Catalog.Seed(context.Background())
	require.NoError(t, err)

	tokens := auth.NewTokenManager("test-secret", 5)
	app := NewApp(cfg.App.Name)
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, nil, nil),
		Penalties:      handlers.NewPenaltiesHandler(container.Penalty, container.Appeals, container.Catalog, container.Access),
		AdminPenalties: handlers.NewAdminPenaltiesHandler(container.Penalty, container.Appeals, container.Catalog, container.Resets),
		InternalEvents: handlers.NewInternalEventsHandler(container.Hooks, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})
	return &testServer{app: app, store: store, tokens: tokens}
}

func (s *testServer) token(t *testing.T, id string, subject domain.SubjectType) string {
	t.Helper()
	token, _, err := s.tokens.GenerateToken(id, subject)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	envelope, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	code, _ := envelope["code"].(string)
	return code
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])

	status, _ = srv.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAuthErrorsUseEnvelope(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/api/v1/penalties/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))

	customer := srv.token(t, "c-1", domain.SubjectTypeCustomer)
	status, body = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/dashboard", customer, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	admin := srv.token(t, "admin-1", domain.SubjectTypeAdmin)
	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me", admin, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me", customer, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}

func TestViolationAppealFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.store.AddAccount(domain.CustomerRef("c-1"))
	admin := srv.token(t, "admin-1", domain.SubjectTypeAdmin)
	customer := srv.token(t, "c-1", domain.SubjectTypeCustomer)
	other := srv.token(t, "c-2", domain.SubjectTypeCustomer)

	status, body := srv.do(t, http.MethodPost, "/api/v1/admin/penalties/violations", admin, map[string]any{
		"account_kind": "customer", "account_id": "c-1", "violation_code": domain.CodeUserNoShow,
	})
	require.Equal(t, http.StatusCreated, status, "%v", body)
	violation := body["data"].(map[string]any)
	violationID := violation["id"].(string)
	assert.EqualValues(t, 15, violation["points_deducted"])
	assert.Equal(t, "admin", violation["detected_by"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 85, body["data"].(map[string]any)["current_points"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me/violations", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.EqualValues(t, 1, body["meta"].(map[string]any)["total"])

	appealPath := "/api/v1/penalties/me/violations/" + violationID + "/appeal"
	status, body = srv.do(t, http.MethodPost, appealPath, other, map[string]any{"reason": "I was never booked for this slot"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))

	status, body = srv.do(t, http.MethodPost, appealPath, customer, map[string]any{"reason": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = srv.do(t, http.MethodPost, appealPath, customer, map[string]any{"reason": "I was never booked for this slot"})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "pending", body["data"].(map[string]any)["appeal_status"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/appeals", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)

	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/appeals/"+violationID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "reversed", body["data"].(map[string]any)["status"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/violations/"+violationID+"/reverse", admin, map[string]any{"reason": "duplicate report from support"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_REVERSED", errorCode(t, body))

	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me/adjustments", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 2)

	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, body["data"].(map[string]any)["current_points"])
}

func TestAdminAccountControls(t *testing.T) {
	srv := newTestServer(t)
	srv.store.AddAccount(domain.ProviderRef("p-1"))
	admin := srv.token(t, "admin-1", domain.SubjectTypeAdmin)

	status, body := srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/robot/p-1/adjust", admin, map[string]any{"points": -5, "reason": "manual correction"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))

	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/provider/p-1/adjust", admin, map[string]any{"points": -20, "reason": "manual correction"})
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/provider/p-1/suspend", admin, map[string]any{"reason": "identity verification pending"})
	require.Equal(t, http.StatusOK, status, "%v", body)

	provider := srv.token(t, "p-1", domain.SubjectTypeProvider)
	status, body = srv.do(t, http.MethodGet, "/api/v1/penalties/me/eligibility", provider, nil)
	require.Equal(t, http.StatusOK, status)
	decision := body["data"].(map[string]any)
	assert.Equal(t, false, decision["allowed"])
	assert.Equal(t, service.RejectAccountSuspended, decision["code"])

	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/provider/p-1/lift-suspension", admin, map[string]any{"reason": "identity verified by support"})
	require.Equal(t, http.StatusOK, status, "%v", body)

	status, body = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/adjustments?account_kind=provider&account_id=p-1", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 3)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/dashboard", admin, nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = srv.do(t, http.MethodPut, "/api/v1/admin/penalties/violation-types/provider_late_arrival", admin, map[string]any{
		"category": "provider", "point_cost": 5, "description": "Arrived late",
	})
	require.Equal(t, http.StatusOK, status, "%v", body)
	assert.Equal(t, "PROVIDER_LATE_ARRIVAL", body["data"].(map[string]any)["code"])
	assert.Equal(t, true, body["data"].(map[string]any)["is_active"])
}

func TestInternalEventsAlwaysAccept(t *testing.T) {
	srv := newTestServer(t)
	srv.store.PutAccount(domain.Account{Ref: domain.CustomerRef("c-1"), PenaltyPoints: 80})
	srv.store.AddAccount(domain.ProviderRef("p-1"))
	cancelledAt := time.Now().UTC()
	by := domain.AccountKindCustomer
	srv.store.PutAppointment(domain.Appointment{
		ID: "a-1", CustomerID: "c-1", ProviderID: "p-1",
		ScheduledAt: cancelledAt.Add(2 * time.Hour), Status: domain.AppointmentCancelled,
		CancelledAt: &cancelledAt, CancelledBy: &by,
	})
	svc := srv.token(t, "booking", domain.SubjectTypeService)
	customer := srv.token(t, "c-1", domain.SubjectTypeCustomer)

	status, _ := srv.do(t, http.MethodPost, "/api/v1/internal/events/appointments/a-1", customer, nil)
	assert.Equal(t, http.StatusForbidden, status)

	for i := 0; i < 2; i++ {
		status, body := srv.do(t, http.MethodPost, "/api/v1/internal/events/appointments/a-1", svc, nil)
		require.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, true, body["data"].(map[string]any)["accepted"])
	}
	status, _ = srv.do(t, http.MethodPost, "/api/v1/internal/events/ratings/missing", svc, nil)
	assert.Equal(t, http.StatusAccepted, status)

	status, body := srv.do(t, http.MethodGet, "/api/v1/penalties/me", customer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 70, body["data"].(map[string]any)["current_points"])
}

func TestStoredLedgerRowsSurviveLaterRequests(t *testing.T) {
	srv := newTestServer(t)
	srv.store.AddAccount(domain.ProviderRef("p-1"))
	srv.store.AddAccount(domain.CustomerRef("c-7"))
	admin := srv.token(t, "admin-1", domain.SubjectTypeAdmin)
	provider := srv.token(t, "p-1", domain.SubjectTypeProvider)

	status, body := srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/provider/p-1/suspend", admin, map[string]any{"reason": "identity verification pending"})
	require.Equal(t, http.StatusOK, status, "%v", body)

	for i := 0; i < 5; i++ {
		status, _ = srv.do(t, http.MethodGet, "/api/v1/penalties/me/eligibility", provider, nil)
		require.Equal(t, http.StatusOK, status)
		status, _ = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/adjustments?account_kind=customer&account_id=c-7&type=restore", admin, nil)
		require.Equal(t, http.StatusOK, status)
	}
	status, body = srv.do(t, http.MethodPost, "/api/v1/admin/penalties/accounts/customer/c-7/adjust", admin, map[string]any{"points": -3, "reason": "duplicate booking abuse"})
	require.Equal(t, http.StatusOK, status, "%v", body)

	for _, adj := range srv.store.AllAdjustments() {
		assert.True(t, adj.Account.Valid(), "corrupted ledger account %+v", adj.Account)
	}
	status, body = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/adjustments?account_kind=provider&account_id=p-1", admin, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["data"], 1)
	assert.Equal(t, "suspension", body["data"].([]any)[0].(map[string]any)["adjustment_type"])

	status, body = srv.do(t, http.MethodGet, "/api/v1/admin/penalties/adjustments?account_kind=customer&account_id=c-7", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
}
