package postgres

import (
	"context"

	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/invoice-admin/internal/permission"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PermissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

var _ permission.RepositoryAPI = (*PermissionRepository)(nil)

func (r *PermissionRepository) RolePermissionNames(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Select("p.name").
		Joins("JOIN role_permissions rp ON rp.permission_id = p.id").
		Joins("JOIN users u ON u.role = rp.role").
		Where("u.id = ?", userID).
		Pluck("p.name", &names).Error
	return names, err
}

func (r *PermissionRepository) PositionPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Select("p.name").
		Joins("JOIN position_permissions pp ON pp.permission_id = p.id").
		Joins("JOIN users u ON u.position_id = pp.position_id").
		Where("u.id = ?", userID).
		Pluck("p.name", &names).Error
	return names, err
}

func (r *PermissionRepository) UserPermissionNames(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Select("p.name").
		Joins("JOIN user_permissions up ON up.permission_id = p.id").
		Where("up.user_id = ?", userID).
		Pluck("p.name", &names).Error
	return names, err
}

func (r *PermissionRepository) GetAll(ctx context.Context) ([]*permissionDatamodel.Permission, error) {
	var perms []*permissionDatamodel.Permission
	err := r.db.WithContext(ctx).Order("name ASC").Find(&perms).Error
	return perms, err
}

func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*permissionDatamodel.Permission, error) {
	var perm permissionDatamodel.Permission
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&perm).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &perm, nil
}

func (r *PermissionRepository) Create(ctx context.Context, perm *permissionDatamodel.Permission) error {
	return r.db.WithContext(ctx).Create(perm).Error
}

func (r *PermissionRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}

func (r *PermissionRepository) AddUserPermission(ctx context.Context, grant *permissionDatamodel.UserPermission) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grant)
	return res.RowsAffected > 0, res.Error
}

func (r *PermissionRepository) RemoveUserPermission(ctx context.Context, userID, permissionID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND permission_id = ?", userID, permissionID).
		Delete(&permissionDatamodel.UserPermission{})
	return res.RowsAffected > 0, res.Error
}

func (r *PermissionRepository) AddRolePermission(ctx context.Context, grant *permissionDatamodel.RolePermission) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grant)
	return res.RowsAffected > 0, res.Error
}

func (r *PermissionRepository) RemoveRolePermission(ctx context.Context, role string, permissionID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("role = ? AND permission_id = ?", role, permissionID).
		Delete(&permissionDatamodel.RolePermission{})
	return res.RowsAffected > 0, res.Error
}
