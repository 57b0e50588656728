package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandingFor(t *testing.T) {
	assert.Equal(t, StandingGood, StandingFor(100))
	assert.Equal(t, StandingGood, StandingFor(51))
	assert.Equal(t, StandingWarning, StandingFor(50))
	assert.Equal(t, StandingWarning, StandingFor(21))
	assert.Equal(t, StandingCritical, StandingFor(20))
	assert.Equal(t, StandingCritical, StandingFor(0))
}

func TestThresholdAndClamp(t *testing.T) {
	assert.True(t, BelowThreshold(50))
	assert.False(t, BelowThreshold(51))
	assert.Equal(t, 0, ClampPoints(-30))
	assert.Equal(t, 100, ClampPoints(105))
	assert.Equal(t, 42, ClampPoints(42))
}

func TestRefFromColumns(t *testing.T) {
	c, p := "c-1", "p-1"

	ref, err := RefFromColumns(&c, nil)
	require.NoError(t, err)
	assert.Equal(t, CustomerRef("c-1"), ref)
	assert.Equal(t, "customer:c-1", ref.String())
	assert.Nil(t, ref.ProviderID())

	ref, err = RefFromColumns(nil, &p)
	require.NoError(t, err)
	assert.Equal(t, ProviderRef("p-1"), ref)
	require.NotNil(t, ref.ProviderID())
	assert.Equal(t, "p-1", *ref.ProviderID())

	_, err = RefFromColumns(&c, &p)
	assert.Error(t, err)
	_, err = RefFromColumns(nil, nil)
	assert.Error(t, err)
}

func TestAccountRefValid(t *testing.T) {
	assert.True(t, CustomerRef("c-1").Valid())
	assert.False(t, CustomerRef("").Valid())
	assert.False(t, AccountRef{Kind: "admin", ID: "a-1"}.Valid())
}

func TestRepeatedVariant(t *testing.T) {
	variant, ok := RepeatedVariant(CodeUserNoShow)
	require.True(t, ok)
	assert.Equal(t, CodeUserRepeatedNoShow, variant)

	variant, ok = RepeatedVariant(CodeProviderLateCancel)
	require.True(t, ok)
	assert.Equal(t, CodeProviderRepeatedLate, variant)

	_, ok = RepeatedVariant(CodeUserRepeatedNoShow)
	assert.False(t, ok)
	_, ok = RepeatedVariant(CodeProviderFraud)
	assert.False(t, ok)
}

func TestCategoryMatches(t *testing.T) {
	assert.True(t, CategoryCustomer.Matches(AccountKindCustomer))
	assert.False(t, CategoryProvider.Matches(AccountKindCustomer))
}

func TestDefaultCatalog(t *testing.T) {
	seen := map[string]bool{}
	for _, vt := range DefaultViolationTypes() {
		assert.False(t, seen[vt.Code], "duplicate code %s", vt.Code)
		seen[vt.Code] = true
		assert.True(t, vt.IsActive)
		assert.Positive(t, vt.PointCost)
	}
	assert.Len(t, seen, 14)
	for base, variant := range repeatedVariants {
		assert.True(t, seen[base], base)
		assert.True(t, seen[variant], variant)
	}
}
