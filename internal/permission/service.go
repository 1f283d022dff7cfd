package permission

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/observability"
)

type RepositoryAPI interface {
	GrantLookup
	GetAll(ctx context.Context) ([]*permissionDatamodel.Permission, error)
	GetByName(ctx context.Context, name string) (*permissionDatamodel.Permission, error)
	Create(ctx context.Context, p *permissionDatamodel.Permission) error
	UserExists(ctx context.Context, userID int64) (bool, error)
	// AddUserPermission reports false when the grant already existed.
	AddUserPermission(ctx context.Context, grant *permissionDatamodel.UserPermission) (bool, error)
	// RemoveUserPermission reports false when there was nothing to remove.
	RemoveUserPermission(ctx context.Context, userID, permissionID int64) (bool, error)
	AddRolePermission(ctx context.Context, grant *permissionDatamodel.RolePermission) (bool, error)
	RemoveRolePermission(ctx context.Context, role string, permissionID int64) (bool, error)
}

// Gate is the authorization check every mutating operation runs first.
type Gate interface {
	Require(ctx context.Context, callerID int64, permission string) error
}

type Service struct {
	repo      RepositoryAPI
	resolver  *Resolver
	gate      Gate
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, resolver *Resolver, gate Gate, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		gate:      gate,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Service) ListPermissions(ctx context.Context) ([]*Permission, error) {
	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.Error("failed to list permissions", "error", err)
		return nil, internal.NewInternalError("failed to list permissions", err)
	}

	result := make([]*Permission, 0, len(rows))
	for _, row := range rows {
		result = append(result, FromDataModel(row))
	}
	return result, nil
}

func (s *Service) CreatePermission(ctx context.Context, callerID int64, dto CreatePermissionDTO) (*Permission, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePermissions); err != nil {
		return nil, err
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	existing, err := s.repo.GetByName(ctx, dto.Name)
	if err != nil {
		return nil, internal.NewInternalError("failed to check permission name", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError(fmt.Sprintf("Permission %q already exists", dto.Name), internal.ErrCodeDuplicatePermission)
	}

	row := &permissionDatamodel.Permission{Name: dto.Name, Description: dto.Description}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error("failed to create permission", "name", dto.Name, "error", err)
		return nil, internal.NewInternalError("failed to create permission", err)
	}

	s.logger.Info("permission created", "caller_id", callerID, "permission", row.Name, "permission_id", row.ID)
	s.audit(ctx, events.EventTypePermissionCreated, callerID, events.OutcomeSuccess, "permission:"+row.Name, nil)
	return FromDataModel(row), nil
}

// AssignToUser grants a permission directly to one user. Granting an already-held
// permission is reported as a conflict and writes nothing.
func (s *Service) AssignToUser(ctx context.Context, callerID int64, dto AssignPermissionDTO) error {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePermissions); err != nil {
		return err
	}
	if appErr := dto.Validate(); appErr != nil {
		return appErr
	}

	perm, err := s.lookupTargets(ctx, dto.UserID, dto.PermissionName)
	if err != nil {
		return err
	}

	granter := callerID
	added, err := s.repo.AddUserPermission(ctx, &permissionDatamodel.UserPermission{
		UserID:       dto.UserID,
		PermissionID: perm.ID,
		GrantedBy:    &granter,
	})
	s.metrics.RecordPermissionChange("user", "assign", err)
	if err != nil {
		s.logger.Error("failed to assign permission", "user_id", dto.UserID, "permission", perm.Name, "error", err)
		return internal.NewInternalError("failed to assign permission", err)
	}
	if !added {
		s.logger.Info("permission already assigned", "user_id", dto.UserID, "permission", perm.Name)
		return internal.ErrPermissionAssigned
	}

	s.logger.Info("permission assigned", "caller_id", callerID, "user_id", dto.UserID, "permission", perm.Name)
	s.audit(ctx, events.EventTypePermissionGranted, callerID, events.OutcomeSuccess, userTarget(dto.UserID),
		map[string]interface{}{"permission": perm.Name, "tier": "user"})
	return nil
}

// RemoveFromUser revokes a direct grant. Revoking a permission that is not held is NotFound.
func (s *Service) RemoveFromUser(ctx context.Context, callerID int64, dto AssignPermissionDTO) error {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePermissions); err != nil {
		return err
	}
	if appErr := dto.Validate(); appErr != nil {
		return appErr
	}

	perm, err := s.lookupTargets(ctx, dto.UserID, dto.PermissionName)
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveUserPermission(ctx, dto.UserID, perm.ID)
	s.metrics.RecordPermissionChange("user", "remove", err)
	if err != nil {
		s.logger.Error("failed to remove permission", "user_id", dto.UserID, "permission", perm.Name, "error", err)
		return internal.NewInternalError("failed to remove permission", err)
	}
	if !removed {
		return internal.ErrPermissionNotAssigned
	}

	s.logger.Info("permission removed", "caller_id", callerID, "user_id", dto.UserID, "permission", perm.Name)
	s.audit(ctx, events.EventTypePermissionRevoked, callerID, events.OutcomeSuccess, userTarget(dto.UserID),
		map[string]interface{}{"permission": perm.Name, "tier": "user"})
	return nil
}

func (s *Service) AssignToRole(ctx context.Context, callerID int64, roleName string, dto RolePermissionDTO) error {
	role, perm, err := s.roleTargets(ctx, callerID, roleName, dto)
	if err != nil {
		return err
	}

	added, err := s.repo.AddRolePermission(ctx, &permissionDatamodel.RolePermission{Role: role.String(), PermissionID: perm.ID})
	s.metrics.RecordPermissionChange("role", "assign", err)
	if err != nil {
		return internal.NewInternalError("failed to assign role permission", err)
	}
	if !added {
		return internal.ErrPermissionAssigned
	}

	s.logger.Info("role permission assigned", "caller_id", callerID, "role", role, "permission", perm.Name)
	s.audit(ctx, events.EventTypePermissionGranted, callerID, events.OutcomeSuccess, "role:"+role.String(),
		map[string]interface{}{"permission": perm.Name, "tier": "role"})
	return nil
}

func (s *Service) RemoveFromRole(ctx context.Context, callerID int64, roleName string, dto RolePermissionDTO) error {
	role, perm, err := s.roleTargets(ctx, callerID, roleName, dto)
	if err != nil {
		return err
	}

	removed, err := s.repo.RemoveRolePermission(ctx, role.String(), perm.ID)
	s.metrics.RecordPermissionChange("role", "remove", err)
	if err != nil {
		return internal.NewInternalError("failed to remove role permission", err)
	}
	if !removed {
		return internal.ErrPermissionNotAssigned
	}

	s.logger.Info("role permission removed", "caller_id", callerID, "role", role, "permission", perm.Name)
	s.audit(ctx, events.EventTypePermissionRevoked, callerID, events.OutcomeSuccess, "role:"+role.String(),
		map[string]interface{}{"permission": perm.Name, "tier": "role"})
	return nil
}

// EffectivePermissions lets a caller read their own set; reading anyone else's needs ManageUsers.
func (s *Service) EffectivePermissions(ctx context.Context, callerID, userID int64) ([]string, error) {
	if callerID != userID {
		if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
			return nil, err
		}
	}

	names, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		s.logger.Error("failed to resolve permissions", "user_id", userID, "error", err)
		return nil, internal.NewInternalError("failed to resolve permissions", err)
	}
	return names, nil
}

func (s *Service) lookupTargets(ctx context.Context, userID int64, permissionName string) (*permissionDatamodel.Permission, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, internal.NewInternalError("failed to look up user", err)
	}
	if !exists {
		return nil, internal.ErrUserNotFound
	}

	return s.lookupPermission(ctx, permissionName)
}

func (s *Service) lookupPermission(ctx context.Context, name string) (*permissionDatamodel.Permission, error) {
	perm, err := s.repo.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, internal.NewInternalError("failed to look up permission", err)
	}
	if perm == nil {
		return nil, internal.NewNotFoundError(fmt.Sprintf("Permission %q not found", name), internal.ErrCodePermissionNotFound)
	}
	return perm, nil
}

func (s *Service) roleTargets(ctx context.Context, callerID int64, roleName string, dto RolePermissionDTO) (coreUser.Role, *permissionDatamodel.Permission, error) {
	role, ok := coreUser.ParseRole(roleName)
	if !ok {
		return "", nil, internal.ErrInvalidRole
	}
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePermissions); err != nil {
		return "", nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return "", nil, appErr
	}

	perm, err := s.lookupPermission(ctx, dto.PermissionName)
	if err != nil {
		return "", nil, err
	}
	return role, perm, nil
}

func (s *Service) audit(ctx context.Context, action string, actorID int64, outcome events.Outcome, target string, details map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewAuditEvent(action, actorID, outcome, target, details)); err != nil {
		s.logger.Warn("failed to publish audit event", "action", action, "error", err)
	}
}

func userTarget(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}
