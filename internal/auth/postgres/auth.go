package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frahmantamala/invoice-admin/internal/auth"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*auth.Credentials, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).
		Select("id", "email", "password_hash", "role").
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &auth.Credentials{
		UserID:       row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		Role:         row.Role,
	}, nil
}

// LockoutTracker keeps failure counts on the users row itself.
type LockoutTracker struct {
	db     *gorm.DB
	policy auth.LockoutPolicy
	now    func() time.Time
}

func NewLockoutTracker(db *gorm.DB, policy auth.LockoutPolicy) *LockoutTracker {
	return &LockoutTracker{db: db, policy: policy.Normalize(), now: time.Now}
}

func (t *LockoutTracker) LockedUntil(ctx context.Context, userID int64) (time.Time, bool, error) {
	var row userDatamodel.User
	err := t.db.WithContext(ctx).Select("id", "lockout_end").Where("id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if row.LockoutEnd == nil || !row.LockoutEnd.After(t.now()) {
		return time.Time{}, false, nil
	}
	return *row.LockoutEnd, true, nil
}

// RegisterFailure counts failures inside a window of LockoutDuration that starts at the first
// failure. A failure after the window has passed starts a new count.
func (t *LockoutTracker) RegisterFailure(ctx context.Context, userID int64) (bool, error) {
	locked := false
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row userDatamodel.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "failed_login_count", "first_failed_at").
			Where("id = ?", userID).First(&row).Error
		if err != nil {
			return err
		}

		now := t.now()
		count := row.FailedLoginCount + 1
		first := row.FirstFailedAt
		if first == nil || !first.Add(t.policy.LockoutDuration).After(now) {
			count = 1
			first = &now
		}

		updates := map[string]interface{}{
			"failed_login_count": count,
			"first_failed_at":    *first,
		}
		if count >= t.policy.MaxFailedAttempts {
			locked = true
			updates = map[string]interface{}{
				"failed_login_count": 0,
				"first_failed_at":    nil,
				"lockout_end":        now.Add(t.policy.LockoutDuration),
			}
		}
		return tx.Model(&userDatamodel.User{}).Where("id = ?", userID).UpdateColumns(updates).Error
	})
	if err != nil {
		return false, err
	}
	return locked, nil
}

func (t *LockoutTracker) Reset(ctx context.Context, userID int64) error {
	return t.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).UpdateColumns(map[string]interface{}{
		"failed_login_count": 0,
		"first_failed_at":    nil,
		"lockout_end":        nil,
	}).Error
}
