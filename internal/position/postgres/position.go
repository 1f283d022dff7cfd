package postgres

import (
	"context"
	"errors"

	permissionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/permission"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	"github.com/frahmantamala/invoice-admin/internal/position"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PositionRepository struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

var _ position.RepositoryAPI = (*PositionRepository)(nil)

func (r *PositionRepository) GetAll(ctx context.Context) ([]*positionDatamodel.Position, error) {
	var rows []*positionDatamodel.Position
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *PositionRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&positionDatamodel.Position{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *PositionRepository) NameExists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&positionDatamodel.Position{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error
	return count > 0, err
}

func (r *PositionRepository) PermissionNames(ctx context.Context, positionIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(positionIDs))
	if len(positionIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PositionID int64
		Name       string
	}
	err := r.db.WithContext(ctx).
		Table("position_permissions pp").
		Select("pp.position_id AS position_id, p.name AS name").
		Joins("JOIN permissions p ON p.id = pp.permission_id").
		Where("pp.position_id IN ?", positionIDs).
		Order("p.name ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		out[row.PositionID] = append(out[row.PositionID], row.Name)
	}
	return out, nil
}

func (r *PositionRepository) MissingPermissions(ctx context.Context, ids []int64) ([]int64, error) {
	var found []int64
	if err := r.db.WithContext(ctx).Model(&permissionDatamodel.Permission{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, err
	}

	have := make(map[int64]struct{}, len(found))
	for _, id := range found {
		have[id] = struct{}{}
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *PositionRepository) Create(ctx context.Context, p *positionDatamodel.Position, permissionIDs []int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		return tx.Create(grants(p.ID, permissionIDs)).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return position.ErrUniqueViolation
	}
	return err
}

func (r *PositionRepository) AddPermissions(ctx context.Context, positionID int64, permissionIDs []int64) (int64, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(grants(positionID, permissionIDs))
	return res.RowsAffected, res.Error
}

func grants(positionID int64, permissionIDs []int64) []permissionDatamodel.PositionPermission {
	out := make([]permissionDatamodel.PositionPermission, 0, len(permissionIDs))
	for _, id := range permissionIDs {
		out = append(out, permissionDatamodel.PositionPermission{PositionID: positionID, PermissionID: id})
	}
	return out
}
