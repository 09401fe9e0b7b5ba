// Package prefs holds per-user app preferences: followed brands and
// categories, the subscription plan and the role toggle. Each is a small
// JSON blob behind an explicit load/save key-value contract with an
// injected backend.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	apperrors "kampanyasepeti/crawlworker/pkg/errors"
)

// Storage keys, shared with the mobile client's local store
const (
	keyFollowBrands     = "follow_brands"
	keyFollowCategories = "follow_categories"
	keySubscription     = "user_subscription"
	keyAuth             = "user_auth"
)

// KV is the persistence backend. Get returns (nil, nil) for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Plan is the subscription tier
type Plan string

const (
	PlanFree           Plan = "free"
	PlanPremiumMonthly Plan = "premium_monthly"
	PlanPremiumYearly  Plan = "premium_yearly"
)

// Valid reports whether p is a known plan
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPremiumMonthly, PlanPremiumYearly:
		return true
	}
	return false
}

// Subscription is the user's current tier. This is a state toggle, not a
// billing integration.
type Subscription struct {
	Plan      Plan       `json:"plan"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// IsPremium reports whether the subscription unlocks premium features
func (s Subscription) IsPremium() bool {
	return s.Plan != PlanFree
}

// Role is the user's app role
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// FollowState is the pair of followed id lists
type FollowState struct {
	BrandIDs    []string `json:"brand_ids"`
	CategoryIDs []string `json:"category_ids"`
}

// Service exposes the preference operations
type Service struct {
	kv  KV
	now func() time.Time
}

// NewService creates a preference service on the given backend
func NewService(kv KV) *Service {
	return &Service{kv: kv, now: time.Now}
}

func (s *Service) loadIDs(ctx context.Context, key string) ([]string, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("corrupt preference %s: %w", key, err)
	}
	return ids, nil
}

func (s *Service) saveIDs(ctx context.Context, key string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

// Follows returns the current follow state
func (s *Service) Follows(ctx context.Context) (FollowState, error) {
	brands, err := s.loadIDs(ctx, keyFollowBrands)
	if err != nil {
		return FollowState{}, err
	}
	categories, err := s.loadIDs(ctx, keyFollowCategories)
	if err != nil {
		return FollowState{}, err
	}
	return FollowState{BrandIDs: brands, CategoryIDs: categories}, nil
}

func (s *Service) toggle(ctx context.Context, key, id string) (bool, error) {
	ids, err := s.loadIDs(ctx, key)
	if err != nil {
		return false, err
	}
	following := true
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
		following = false
	} else {
		ids = append(ids, id)
	}
	if err := s.saveIDs(ctx, key, ids); err != nil {
		return false, err
	}
	return following, nil
}

// ToggleBrand flips the follow state of a brand and reports whether the
// brand is now followed
func (s *Service) ToggleBrand(ctx context.Context, brandID string) (bool, error) {
	return s.toggle(ctx, keyFollowBrands, brandID)
}

// ToggleCategory flips the follow state of a category
func (s *Service) ToggleCategory(ctx context.Context, categoryID string) (bool, error) {
	return s.toggle(ctx, keyFollowCategories, categoryID)
}

// Subscription returns the current subscription, defaulting to free
func (s *Service) Subscription(ctx context.Context) (Subscription, error) {
	raw, err := s.kv.Get(ctx, keySubscription)
	if err != nil {
		return Subscription{}, err
	}
	if raw == nil {
		return Subscription{Plan: PlanFree}, nil
	}
	var sub Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return Subscription{}, fmt.Errorf("corrupt subscription: %w", err)
	}
	return sub, nil
}

// Subscribe switches to a plan. Premium plans expire 30 or 365 days out;
// free clears the expiry.
func (s *Service) Subscribe(ctx context.Context, plan Plan) (Subscription, error) {
	if !plan.Valid() {
		return Subscription{}, apperrors.NewValidation("plan", "unknown subscription plan "+string(plan))
	}
	sub := Subscription{Plan: plan}
	if plan != PlanFree {
		days := 30
		if plan == PlanPremiumYearly {
			days = 365
		}
		expires := s.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
		sub.ExpiresAt = &expires
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return Subscription{}, err
	}
	if err := s.kv.Set(ctx, keySubscription, raw); err != nil {
		return Subscription{}, err
	}
	return sub, nil
}

type authState struct {
	Role Role `json:"role"`
}

// Role returns the current role, defaulting to user
func (s *Service) Role(ctx context.Context) (Role, error) {
	raw, err := s.kv.Get(ctx, keyAuth)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return RoleUser, nil
	}
	var state authState
	if err := json.Unmarshal(raw, &state); err != nil {
		return "", fmt.Errorf("corrupt auth state: %w", err)
	}
	return state.Role, nil
}

// ToggleAdmin flips between user and admin and returns the new role
func (s *Service) ToggleAdmin(ctx context.Context) (Role, error) {
	role, err := s.Role(ctx)
	if err != nil {
		return "", err
	}
	next := RoleAdmin
	if role == RoleAdmin {
		next = RoleUser
	}
	raw, err := json.Marshal(authState{Role: next})
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, keyAuth, raw); err != nil {
		return "", err
	}
	return next, nil
}
