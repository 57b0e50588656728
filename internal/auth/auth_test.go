package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookwell/penalty-service/internal/domain"
	apperrors "github.com/bookwell/penalty-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, expiresAt, err := tm.GenerateToken("p-1", domain.SubjectTypeProvider)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "p-1", claims.Subject)
	assert.Equal(t, domain.SubjectTypeProvider, claims.SubjectType)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenRequiresSubject(t *testing.T) {
	_, _, err := NewTokenManager("secret", 5).GenerateToken("", domain.SubjectTypeAdmin)
	assert.Error(t, err)
}

func TestTokenRejectsOtherSigningMethods(t *testing.T) {
	claims := &Claims{SubjectType: domain.SubjectTypeAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "admin-1"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func newTestApp(tm *TokenManager, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.SendStatus(fiberErr.Code)
		}
		return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
	}})
	handlers := append([]fiber.Handler{NewAuthMiddleware(tm).Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(string(principal.SubjectType) + ":" + principal.ID)
	})
	app.Get("/", handlers...)
	return app
}

func request(t *testing.T, app *fiber.App, authorization string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp(tm)

	assert.Equal(t, http.StatusUnauthorized, request(t, app, "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "Basic abc").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "Bearer nope").StatusCode)

	token, _, err := tm.GenerateToken("c-1", domain.SubjectTypeCustomer)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, request(t, app, "Bearer "+token).StatusCode)

	unknown, _, err := tm.GenerateToken("x-1", domain.SubjectType("robot"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(t, app, "Bearer "+unknown).StatusCode)
}

func TestRoleGuards(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	tokenFor := func(subject domain.SubjectType) string {
		token, _, err := tm.GenerateToken("id-1", subject)
		require.NoError(t, err)
		return "Bearer " + token
	}

	admin := newTestApp(tm, RequireAdmin())
	assert.Equal(t, http.StatusOK, request(t, admin, tokenFor(domain.SubjectTypeAdmin)).StatusCode)
	assert.Equal(t, http.StatusForbidden, request(t, admin, tokenFor(domain.SubjectTypeCustomer)).StatusCode)

	holders := newTestApp(tm, RequireAccountHolder())
	assert.Equal(t, http.StatusOK, request(t, holders, tokenFor(domain.SubjectTypeProvider)).StatusCode)
	assert.Equal(t, http.StatusForbidden, request(t, holders, tokenFor(domain.SubjectTypeService)).StatusCode)

	service := newTestApp(tm, RequireService())
	assert.Equal(t, http.StatusOK, request(t, service, tokenFor(domain.SubjectTypeService)).StatusCode)
	assert.Equal(t, http.StatusOK, request(t, service, tokenFor(domain.SubjectTypeAdmin)).StatusCode)
	assert.Equal(t, http.StatusForbidden, request(t, service, tokenFor(domain.SubjectTypeProvider)).StatusCode)
}
