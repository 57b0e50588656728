package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore(nil, "account", nil))

	err := FromStore(fmt.Errorf("query: %w", pgx.ErrNoRows), "account", map[string]any{"account": "customer:c-1"})
	assert.True(t, HasCode(err, CodeNotFound))
	assert.Equal(t, "account not found", err.Error())

	conflict := NewConflict("duplicate detection", nil)
	assert.Same(t, conflict, FromStore(conflict, "violation", nil))

	err = FromStore(errors.New("connection reset"), "account", nil)
	domainErr := ToDomainError(err)
	assert.Equal(t, CodePersistence, domainErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, domainErr.HTTPStatus)
	assert.EqualError(t, errors.Unwrap(err), "connection reset")
}

func TestMalformedIdentifierIsNotFound(t *testing.T) {
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	err := FromStore(fmt.Errorf("lock violation: %w", badUUID), "violation", map[string]any{"violation_id": "abc"})
	assert.True(t, HasCode(err, CodeNotFound))
	assert.Equal(t, http.StatusNotFound, ToDomainError(err).HTTPStatus)
	assert.Equal(t, CodeNotFound, ToDomainError(badUUID).Code)

	assert.True(t, IsNotFound(pgx.ErrNoRows))
	assert.False(t, IsNotFound(&pgconn.PgError{Code: "23505"}))
	assert.True(t, HasCode(FromStore(&pgconn.PgError{Code: "08006"}, "violation", nil), CodePersistence))
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("appeal: %w", NewAlreadyReversed("v-1"))
	domainErr := ToDomainError(wrapped)
	assert.Equal(t, CodeAlreadyReversed, domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
	assert.Equal(t, "v-1", domainErr.Details["violation_id"])

	assert.Equal(t, CodeNotFound, ToDomainError(pgx.ErrNoRows).Code)
	assert.Equal(t, CodeInternal, ToDomainError(errors.New("boom")).Code)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewInvalidState("not suspended", nil), CodeInvalidState))
	assert.False(t, HasCode(NewInvalidState("not suspended", nil), CodeConflict))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
	assert.Equal(t, http.StatusUnprocessableEntity, ToDomainError(NewCategoryMismatch("USER_NO_SHOW", "customer", "provider")).HTTPStatus)
}
