package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/service"
)

// A plain fiber.New() reuses request buffers, so anything kept from one
// request must not change when the next one arrives.
func TestRequestValuesOutliveTheRequest(t *testing.T) {
	h := NewInternalEventsHandler(nil, zap.NewNop())
	var refs []domain.AccountRef
	var filters []*domain.AccountRef
	var opts []service.DetectionOptions

	app := fiber.New()
	app.Post("/accounts/:kind/:id", func(c *fiber.Ctx) error {
		ref, err := pathAccount(c)
		if err != nil {
			return err
		}
		filter, err := queryAccount(c)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
		filters = append(filters, filter)
		opts = append(opts, h.hookOptions(c))
		return c.SendStatus(http.StatusNoContent)
	})

	calls := []struct {
		kind, id, key string
	}{
		{"provider", "p-1", "evt-1"},
		{"customer", "c-22", "evt-22"},
		{"customer", "tsx-999", "other-key-999"},
		{"provider", "p-4", "evt-4"},
	}
	for _, call := range calls {
		path := fmt.Sprintf("/accounts/%s/%s?account_kind=%s&account_id=%s", call.kind, call.id, call.kind, call.id)
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Idempotency-Key", call.key)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	}

	require.Len(t, refs, len(calls))
	for i, call := range calls {
		want := domain.AccountRef{Kind: domain.AccountKind(call.kind), ID: call.id}
		assert.Equal(t, want, refs[i])
		require.NotNil(t, filters[i])
		assert.Equal(t, want, *filters[i])
		assert.Equal(t, call.key, opts[i].IdempotencyToken)
	}
}

func TestPathAccountNormalizesKind(t *testing.T) {
	app := fiber.New()
	app.Get("/accounts/:kind/:id", func(c *fiber.Ctx) error {
		ref, err := pathAccount(c)
		if err != nil {
			return c.SendStatus(http.StatusBadRequest)
		}
		return c.SendString(ref.String())
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/accounts/Customer/c-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/accounts/robot/c-1", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHookOptionsLogsMalformedBody(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	h := NewInternalEventsHandler(nil, zap.New(core))
	var got service.DetectionOptions

	app := fiber.New()
	app.Post("/events/:id", func(c *fiber.Ctx) error {
		got = h.hookOptions(c)
		return c.SendStatus(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/events/a-1", strings.NewReader(`{"idempotency_token":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "header-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "header-token", got.IdempotencyToken)

	entries := logs.FilterMessage("ignoring malformed hook body").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "a-1", entries[0].ContextMap()["subject_id"])

	req = httptest.NewRequest(http.MethodPost, "/events/a-2", strings.NewReader(`{"idempotency_token":"body-token"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "header-token")
	_, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "body-token", got.IdempotencyToken)
	assert.Equal(t, 1, logs.Len())
}
