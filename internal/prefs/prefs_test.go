package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

func newTestService() *Service {
	s := NewService(NewMemoryKV())
	s.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestFollowsStartEmpty(t *testing.T) {
	s := newTestService()

	state, err := s.Follows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state.BrandIDs)
	assert.Empty(t, state.CategoryIDs)
}

func TestToggleBrand(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	following, err := s.ToggleBrand(ctx, "brand-1")
	require.NoError(t, err)
	assert.True(t, following)

	following, err = s.ToggleBrand(ctx, "brand-2")
	require.NoError(t, err)
	assert.True(t, following)

	state, err := s.Follows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand-1", "brand-2"}, state.BrandIDs)

	following, err = s.ToggleBrand(ctx, "brand-1")
	require.NoError(t, err)
	assert.False(t, following, "second toggle unfollows")

	state, err = s.Follows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand-2"}, state.BrandIDs)
}

func TestToggleCategoryIsIndependentOfBrands(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.ToggleBrand(ctx, "brand-1")
	require.NoError(t, err)
	_, err = s.ToggleCategory(ctx, "cat-1")
	require.NoError(t, err)

	state, err := s.Follows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"brand-1"}, state.BrandIDs)
	assert.Equal(t, []string{"cat-1"}, state.CategoryIDs)
}

func TestSubscriptionDefaultsToFree(t *testing.T) {
	s := newTestService()

	sub, err := s.Subscription(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PlanFree, sub.Plan)
	assert.Nil(t, sub.ExpiresAt)
	assert.False(t, sub.IsPremium())
}

func TestSubscribeMonthly(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, PlanPremiumMonthly)
	require.NoError(t, err)
	assert.True(t, sub.IsPremium())
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), *sub.ExpiresAt)

	stored, err := s.Subscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub.Plan, stored.Plan)
}

func TestSubscribeYearly(t *testing.T) {
	s := newTestService()

	sub, err := s.Subscribe(context.Background(), PlanPremiumYearly)
	require.NoError(t, err)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), *sub.ExpiresAt)
}

func TestSubscribeBackToFreeClearsExpiry(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.Subscribe(ctx, PlanPremiumMonthly)
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, PlanFree)
	require.NoError(t, err)
	assert.Nil(t, sub.ExpiresAt)
	assert.False(t, sub.IsPremium())
}

func TestSubscribeRejectsUnknownPlan(t *testing.T) {
	s := newTestService()

	_, err := s.Subscribe(context.Background(), "platinum")
	assert.True(t, apperrors.IsValidation(err))
}

func TestRoleDefaultsToUser(t *testing.T) {
	s := newTestService()

	role, err := s.Role(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RoleUser, role)
}

func TestToggleAdmin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	role, err := s.ToggleAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = s.Role(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = s.ToggleAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, role)
}
