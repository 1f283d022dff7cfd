package permission

import (
	"context"
	"net/http"

	"github.com/frahmantamala/invoice-admin/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	ListPermissions(ctx context.Context) ([]*Permission, error)
	CreatePermission(ctx context.Context, callerID int64, dto CreatePermissionDTO) (*Permission, error)
	AssignToUser(ctx context.Context, callerID int64, dto AssignPermissionDTO) error
	RemoveFromUser(ctx context.Context, callerID int64, dto AssignPermissionDTO) error
	AssignToRole(ctx context.Context, callerID int64, role string, dto RolePermissionDTO) error
	RemoveFromRole(ctx context.Context, callerID int64, role string, dto RolePermissionDTO) error
	EffectivePermissions(ctx context.Context, callerID, userID int64) ([]string, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

// ListPermissions handles GET /permissions
func (h *Handler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.Service.ListPermissions(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PermissionsResponse{Permissions: perms})
}

// CreatePermission handles POST /permissions
func (h *Handler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto CreatePermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	perm, err := h.Service.CreatePermission(r.Context(), callerID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, perm)
}

// Assign handles POST /permissions/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	h.userGrant(w, r, h.Service.AssignToUser, "Permission assigned successfully")
}

// Remove handles POST /permissions/remove
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	h.userGrant(w, r, h.Service.RemoveFromUser, "Permission removed successfully")
}

func (h *Handler) userGrant(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, AssignPermissionDTO) error, okMessage string) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto AssignPermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := op(r.Context(), callerID, dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: okMessage})
}

// AssignToRole handles POST /roles/{role}/permissions
func (h *Handler) AssignToRole(w http.ResponseWriter, r *http.Request) {
	h.roleGrant(w, r, h.Service.AssignToRole, "Permission assigned to role")
}

// RemoveFromRole handles DELETE /roles/{role}/permissions
func (h *Handler) RemoveFromRole(w http.ResponseWriter, r *http.Request) {
	h.roleGrant(w, r, h.Service.RemoveFromRole, "Permission removed from role")
}

func (h *Handler) roleGrant(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, string, RolePermissionDTO) error, okMessage string) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto RolePermissionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := op(r.Context(), callerID, chi.URLParam(r, "role"), dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: okMessage})
}

// EffectivePermissions handles GET /permissions/users/{id}
func (h *Handler) EffectivePermissions(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	userID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	names, err := h.Service.EffectivePermissions(r.Context(), callerID, userID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, EffectivePermissionsResponse{UserID: userID, Permissions: names})
}
