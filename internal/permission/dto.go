package permission

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/common/validation"
)

var permissionNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.:-]*$`)

type CreatePermissionDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (d *CreatePermissionDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
}

func (d CreatePermissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).
		Required().
		MaxLength(100).
		Matches(permissionNamePattern, "name may only contain letters, digits and _.:-", internal.ErrCodeValidationFailed)
	v.Field("description", d.Description).
		MaxLength(500)
	return v.Validate()
}

// AssignPermissionDTO is the body of both assign and remove requests.
type AssignPermissionDTO struct {
	UserID         int64  `json:"userId"`
	PermissionName string `json:"permissionName"`
}

func (d AssignPermissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("userId", d.UserID).Required()
	v.Field("permissionName", strings.TrimSpace(d.PermissionName)).Required()
	return v.Validate()
}

type RolePermissionDTO struct {
	PermissionName string `json:"permissionName"`
}

func (d RolePermissionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("permissionName", strings.TrimSpace(d.PermissionName)).Required()
	return v.Validate()
}

type PermissionsResponse struct {
	Permissions []*Permission `json:"permissions"`
}

type EffectivePermissionsResponse struct {
	UserID      int64    `json:"userId"`
	Permissions []string `json:"permissions"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
