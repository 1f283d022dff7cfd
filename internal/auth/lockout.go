package auth

import (
	"context"
	"time"
)

// LockoutPolicy locks an account for LockoutDuration after MaxFailedAttempts consecutive failures.
type LockoutPolicy struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxFailedAttempts: 5, LockoutDuration: 15 * time.Minute}
}

// Normalize fills zero values with the defaults.
func (p LockoutPolicy) Normalize() LockoutPolicy {
	d := DefaultLockoutPolicy()
	if p.MaxFailedAttempts <= 0 {
		p.MaxFailedAttempts = d.MaxFailedAttempts
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = d.LockoutDuration
	}
	return p
}

// LockoutTracker records failed logins per account.
type LockoutTracker interface {
	// LockedUntil reports whether the account is locked right now and until when.
	LockedUntil(ctx context.Context, userID int64) (until time.Time, locked bool, err error)
	// RegisterFailure counts one failure and reports whether it tripped the lock.
	RegisterFailure(ctx context.Context, userID int64) (locked bool, err error)
	// Reset clears the failure count after a successful login.
	Reset(ctx context.Context, userID int64) error
}
