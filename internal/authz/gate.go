// Package authz holds the authorization gate every mutating use case consults before it writes.
package authz

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/observability"
)

// PermissionResolver answers whether a user currently holds a permission through any tier.
type PermissionResolver interface {
	HasPermission(ctx context.Context, userID int64, name string) (bool, error)
}

// RoleDirectory exposes the role facts the hierarchy rules depend on.
type RoleDirectory interface {
	// RoleOf returns the caller's role; found is false for unknown ids.
	RoleOf(ctx context.Context, userID int64) (role coreUser.Role, found bool, err error)
	CountByRole(ctx context.Context, role coreUser.Role) (int64, error)
}

type Gate struct {
	resolver  PermissionResolver
	roles     RoleDirectory
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewGate(resolver PermissionResolver, roles RoleDirectory, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Gate {
	return &Gate{
		resolver:  resolver,
		roles:     roles,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Require allows the call when callerID currently holds permission. A denial is a
// FORBIDDEN *internal.AppError; resolver failures are internal errors.
func (g *Gate) Require(ctx context.Context, callerID int64, permission string) error {
	if callerID <= 0 {
		return internal.ErrMissingToken
	}

	ok, err := g.resolver.HasPermission(ctx, callerID, permission)
	if err != nil {
		g.logger.Error("permission check failed", "caller_id", callerID, "permission", permission, "error", err)
		return internal.NewInternalError("failed to check permission", err)
	}

	if !ok {
		return g.deny(ctx, callerID, permission,
			internal.NewForbiddenError(fmt.Sprintf("Permission %s is required", permission), internal.ErrCodeInsufficientPermission))
	}

	g.metrics.RecordDecision(permission, true)
	g.logger.Debug("permission granted", "caller_id", callerID, "permission", permission)
	return nil
}

// AuthorizeUserCreation applies the role hierarchy for creating an account with requestedRole:
//
//	Master: caller is Master and fewer than MaxMasterUsers exist
//	Admin:  caller is Master or Admin
//	User:   caller is Master or Admin, or holds ManageUsers
//
// An unknown role is rejected as a validation error before any caller lookup.
func (g *Gate) AuthorizeUserCreation(ctx context.Context, callerID int64, requestedRole string) (coreUser.Role, error) {
	role, ok := coreUser.ParseRole(requestedRole)
	if !ok {
		return "", internal.ErrInvalidRole
	}
	if callerID <= 0 {
		return "", internal.ErrMissingToken
	}

	callerRole, found, err := g.roles.RoleOf(ctx, callerID)
	if err != nil {
		g.logger.Error("caller role lookup failed", "caller_id", callerID, "error", err)
		return "", internal.NewInternalError("failed to look up caller", err)
	}
	if !found {
		return "", g.deny(ctx, callerID, "CreateUser:"+role.String(),
			internal.NewForbiddenError("Caller account not found", internal.ErrCodeInsufficientPermission))
	}

	action := "CreateUser:" + role.String()
	switch role {
	case coreUser.RoleMaster:
		if callerRole != coreUser.RoleMaster {
			return "", g.deny(ctx, callerID, action,
				internal.NewForbiddenError("Only Master users can create Master users", internal.ErrCodeRoleHierarchy))
		}
		count, err := g.roles.CountByRole(ctx, coreUser.RoleMaster)
		if err != nil {
			return "", internal.NewInternalError("failed to count master users", err)
		}
		if count >= coreUser.MaxMasterUsers {
			return "", g.deny(ctx, callerID, action, internal.ErrMasterLimitReached)
		}

	case coreUser.RoleAdmin:
		if callerRole != coreUser.RoleMaster && callerRole != coreUser.RoleAdmin {
			return "", g.deny(ctx, callerID, action,
				internal.NewForbiddenError("Only Master or Admin users can create Admin users", internal.ErrCodeRoleHierarchy))
		}

	case coreUser.RoleUser:
		if callerRole != coreUser.RoleMaster && callerRole != coreUser.RoleAdmin {
			has, err := g.resolver.HasPermission(ctx, callerID, coreUser.PermManageUsers)
			if err != nil {
				return "", internal.NewInternalError("failed to check permission", err)
			}
			if !has {
				return "", g.deny(ctx, callerID, action,
					internal.NewForbiddenError("Master, Admin or ManageUsers permission is required to create users", internal.ErrCodeInsufficientPermission))
			}
		}
	}

	g.metrics.RecordDecision(action, true)
	g.logger.Debug("user creation authorized", "caller_id", callerID, "caller_role", callerRole, "requested_role", role)
	return role, nil
}

// AuthorizePositionChange gates reassigning a user's position.
func (g *Gate) AuthorizePositionChange(ctx context.Context, callerID int64) error {
	return g.Require(ctx, callerID, coreUser.PermManagePositions)
}

func (g *Gate) deny(ctx context.Context, callerID int64, action string, appErr *internal.AppError) error {
	g.metrics.RecordDecision(action, false)
	g.logger.Warn("access denied", "caller_id", callerID, "action", action, "reason", appErr.Message)

	if g.publisher != nil {
		evt := events.NewAuditEvent(events.EventTypeAccessDenied, callerID, events.OutcomeDenied,
			"user:"+strconv.FormatInt(callerID, 10), map[string]interface{}{"action": action, "reason": string(appErr.Code)})
		if err := g.publisher.Publish(ctx, evt); err != nil {
			g.logger.Warn("failed to publish audit event", "error", err)
		}
	}
	return appErr
}
