package permission

import (
	"context"
	"fmt"
	"sort"
)

// GrantLookup reads one grant tier each. Every method returns an empty slice, not an error,
// when the user does not exist or holds nothing in that tier.
type GrantLookup interface {
	RolePermissionNames(ctx context.Context, userID int64) ([]string, error)
	PositionPermissionNames(ctx context.Context, userID int64) ([]string, error)
	UserPermissionNames(ctx context.Context, userID int64) ([]string, error)
}

// Resolver computes effective permissions as the union of role, position and user grants.
// The model is purely additive: there are no deny rules and no precedence between tiers.
type Resolver struct {
	lookup GrantLookup
}

func NewResolver(lookup GrantLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

func (r *Resolver) Resolve(ctx context.Context, userID int64) ([]string, error) {
	roleNames, err := r.lookup.RolePermissionNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("role permissions: %w", err)
	}

	positionNames, err := r.lookup.PositionPermissionNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("position permissions: %w", err)
	}

	userNames, err := r.lookup.UserPermissionNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user permissions: %w", err)
	}

	return Union(roleNames, positionNames, userNames), nil
}

func (r *Resolver) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	names, err := r.Resolve(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Union merges permission names, collapsing duplicates. The result is sorted.
func Union(tiers ...[]string) []string {
	seen := make(map[string]struct{})
	for _, tier := range tiers {
		for _, name := range tier {
			seen[name] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
