package position

import (
	"strings"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/common/validation"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
)

type Position struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func FromDataModel(p *positionDatamodel.Position, permissions []string) *Position {
	if permissions == nil {
		permissions = []string{}
	}
	return &Position{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Permissions: permissions,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type CreatePositionDTO struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	PermissionIDs []int64 `json:"permissionIds"`
}

func (d *CreatePositionDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.PermissionIDs = dedupe(d.PermissionIDs)
}

func (d CreatePositionDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(100)
	v.Field("description", d.Description).MaxLength(500)
	v.Field("permissionIds", d.PermissionIDs).Custom(positiveIDs("permissionIds"))
	return v.Validate()
}

type AddPermissionsDTO struct {
	PermissionIDs []int64 `json:"permissionIds"`
}

func (d *AddPermissionsDTO) Normalize() {
	d.PermissionIDs = dedupe(d.PermissionIDs)
}

func (d AddPermissionsDTO) Validate() *internal.AppError {
	v := validation.NewValidator()
	v.Field("permissionIds", d.PermissionIDs).Custom(func(value interface{}) *internal.AppError {
		if ids, _ := value.([]int64); len(ids) == 0 {
			return internal.NewValidationFieldError("permissionIds", "permissionIds must not be empty", internal.ErrCodeValidationFailed)
		}
		return nil
	}).Custom(positiveIDs("permissionIds"))
	return v.Validate()
}

type PositionsResponse struct {
	Positions []*Position `json:"positions"`
}

type AddPermissionsResponse struct {
	PositionID int64 `json:"positionId"`
	Added      int64 `json:"added"`
}

func positiveIDs(field string) validation.ValidatorFunc {
	return func(value interface{}) *internal.AppError {
		ids, _ := value.([]int64)
		for _, id := range ids {
			if id <= 0 {
				return internal.NewValidationFieldError(field, field+" must contain positive integers", internal.ErrCodeValidationFailed)
			}
		}
		return nil
	}
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
