package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ user.RepositoryAPI = (*UserRepository)(nil)

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return user.ErrUniqueViolation
	}
	return err
}

func preload(db *gorm.DB, include user.IncludeOptions) *gorm.DB {
	if include.Address {
		db = db.Preload("Address")
	}
	if include.AccountDetails {
		db = db.Preload("AccountDetails")
	}
	if include.InvoiceData {
		db = db.Preload("InvoiceData", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id ASC")
		})
	}
	if include.InvoiceHistory {
		db = db.Preload("InvoiceHistories", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("id DESC")
		})
	}
	return db
}

func (r *UserRepository) GetByID(ctx context.Context, id int64, include user.IncludeOptions) (*userDatamodel.User, error) {
	var row userDatamodel.User
	err := preload(r.db.WithContext(ctx), include).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) exists(ctx context.Context, model interface{}, query string, args ...interface{}) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where(query, args...).Limit(1).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, &userDatamodel.User{}, "id = ?", id)
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, &userDatamodel.User{}, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepository) EmployeeIDExists(ctx context.Context, employeeID string) (bool, error) {
	return r.exists(ctx, &userDatamodel.User{}, "employee_id = ?", employeeID)
}

func (r *UserRepository) PositionExists(ctx context.Context, positionID int64) (bool, error) {
	return r.exists(ctx, &positionDatamodel.Position{}, "id = ?", positionID)
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return translate(r.db.WithContext(ctx).Omit("Address", "AccountDetails", "InvoiceData", "InvoiceHistories").Create(u).Error)
}

func (r *UserRepository) Search(ctx context.Context, opts user.SearchOptions) ([]*userDatamodel.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&userDatamodel.User{})

	if opts.SearchTerm != "" {
		like := "%" + escapeLike(strings.ToLower(opts.SearchTerm)) + "%"
		q = q.Where(`LOWER(email) LIKE ? ESCAPE '\' OR LOWER(first_name) LIKE ? ESCAPE '\' OR LOWER(last_name) LIKE ? ESCAPE '\'`,
			like, like, like)
	}
	if opts.Role != "" {
		q = q.Where("role = ?", opts.Role)
	}
	if opts.PositionID != nil {
		q = q.Where("position_id = ?", *opts.PositionID)
	}

	// filters are shared by the count and the page query
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if opts.SortDescending {
		dir = "DESC"
	}
	order := opts.SortColumn() + " " + dir
	if opts.SortColumn() != "id" {
		order += ", id " + dir
	}

	var rows []*userDatamodel.User
	err := preload(q, opts.Include).
		Order(order).
		Offset(opts.Skip).
		Limit(opts.Take).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *UserRepository) UpdatePosition(ctx context.Context, userID, positionID int64) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"position_id": positionID,
		"updated_at":  time.Now().UTC(),
	}).Error
}

func (r *UserRepository) UpdateSignature(ctx context.Context, userID int64, key string) error {
	return r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"signature":  key,
		"updated_at": time.Now().UTC(),
	}).Error
}

func (r *UserRepository) GetAddress(ctx context.Context, userID int64) (*userDatamodel.Address, error) {
	var row userDatamodel.Address
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) SaveAddress(ctx context.Context, a *userDatamodel.Address) error {
	return translate(r.db.WithContext(ctx).Save(a).Error)
}

func (r *UserRepository) GetAccountDetails(ctx context.Context, userID int64) (*userDatamodel.AccountDetails, error) {
	var row userDatamodel.AccountDetails
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) SaveAccountDetails(ctx context.Context, a *userDatamodel.AccountDetails) error {
	return translate(r.db.WithContext(ctx).Save(a).Error)
}

func (r *UserRepository) InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error) {
	return r.exists(ctx, &userDatamodel.InvoiceData{}, "invoice_number = ?", invoiceNumber)
}

func (r *UserRepository) GetInvoiceData(ctx context.Context, userID int64, invoiceNumber string) (*userDatamodel.InvoiceData, error) {
	var row userDatamodel.InvoiceData
	err := r.db.WithContext(ctx).Where("user_id = ? AND invoice_number = ?", userID, invoiceNumber).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) SaveInvoiceData(ctx context.Context, d *userDatamodel.InvoiceData, history *userDatamodel.InvoiceHistory) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(d).Error; err != nil {
			return err
		}
		if history.InvoiceDataID == nil {
			id := d.ID
			history.InvoiceDataID = &id
		}
		return tx.Create(history).Error
	}))
}

// RoleOf satisfies the authorization gate's role directory.
func (r *UserRepository) RoleOf(ctx context.Context, userID int64) (coreUser.Role, bool, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Select("id", "role").Where("id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return coreUser.Role(row.Role), true, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role coreUser.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role = ?", role.String()).Count(&count).Error
	return count, err
}
