package postgres

import (
	"context"
	"errors"
	"time"

	signupDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/signup"
	"github.com/frahmantamala/invoice-admin/internal/signup"
	"gorm.io/gorm"
)

type SignupRepository struct {
	db *gorm.DB
}

func NewSignupRepository(db *gorm.DB) *SignupRepository {
	return &SignupRepository{db: db}
}

var _ signup.RepositoryAPI = (*SignupRepository)(nil)

func (r *SignupRepository) Create(ctx context.Context, req *signupDatamodel.SignupRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *SignupRepository) GetByID(ctx context.Context, id int64) (*signupDatamodel.SignupRequest, error) {
	var req signupDatamodel.SignupRequest
	err := r.db.WithContext(ctx).First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

func (r *SignupRepository) List(ctx context.Context, status *signup.Status) ([]*signupDatamodel.SignupRequest, error) {
	q := r.db.WithContext(ctx).Model(&signupDatamodel.SignupRequest{})
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	var rows []*signupDatamodel.SignupRequest
	err := q.Order("request_date DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func (r *SignupRepository) PendingEmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&signupDatamodel.SignupRequest{}).
		Where("LOWER(email) = ? AND status = ?", email, string(signup.StatusPending)).
		Count(&count).Error
	return count > 0, err
}

func (r *SignupRepository) Finalize(ctx context.Context, id int64, status signup.Status, reviewerID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&signupDatamodel.SignupRequest{}).
		Where("id = ? AND status = ?", id, string(signup.StatusPending)).
		Updates(map[string]interface{}{
			"status":      string(status),
			"approved_by": reviewerID,
			"approved_on": at,
		})
	return res.RowsAffected == 1, res.Error
}
