package auth

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"golang.org/x/crypto/bcrypt"
)

type CredentialRepository interface {
	// FindByEmail matches email case-insensitively and returns nil when no account exists.
	FindByEmail(ctx context.Context, email string) (*Credentials, error)
}

// PermissionResolver produces the effective permission set embedded in the token.
type PermissionResolver interface {
	Resolve(ctx context.Context, userID int64) ([]string, error)
}

type Service struct {
	repo      CredentialRepository
	lockout   LockoutTracker
	resolver  PermissionResolver
	tokens    TokenGenerator
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewService(repo CredentialRepository, lockout LockoutTracker, resolver PermissionResolver, tokens TokenGenerator,
	publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		lockout:   lockout,
		resolver:  resolver,
		tokens:    tokens,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Authenticate verifies credentials and issues a session. Every rejection returns
// internal.ErrInvalidCredentials; the actual cause only goes to the log.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (*Session, error) {
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	creds, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to load credentials", "email", email, "error", err)
		return nil, internal.NewInternalError("failed to authenticate", err)
	}
	if creds == nil {
		return nil, s.reject(ctx, 0, email, "unknown_email")
	}

	until, locked, err := s.lockout.LockedUntil(ctx, creds.UserID)
	if err != nil {
		s.logger.Error("failed to read lockout state", "user_id", creds.UserID, "error", err)
		return nil, internal.NewInternalError("failed to authenticate", err)
	}
	if locked {
		s.logger.Warn("login attempt on locked account", "user_id", creds.UserID, "locked_until", until)
		return nil, s.reject(ctx, creds.UserID, email, "locked")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(dto.Password)); err != nil {
		nowLocked, lerr := s.lockout.RegisterFailure(ctx, creds.UserID)
		if lerr != nil {
			s.logger.Error("failed to record login failure", "user_id", creds.UserID, "error", lerr)
		}
		if nowLocked {
			s.metrics.RecordLockout()
			s.logger.Warn("account locked after repeated failures", "user_id", creds.UserID)
		}
		return nil, s.reject(ctx, creds.UserID, email, "bad_password")
	}

	if err := s.lockout.Reset(ctx, creds.UserID); err != nil {
		s.logger.Error("failed to reset login failures", "user_id", creds.UserID, "error", err)
		return nil, internal.NewInternalError("failed to authenticate", err)
	}

	perms, err := s.resolver.Resolve(ctx, creds.UserID)
	if err != nil {
		s.logger.Error("failed to resolve permissions", "user_id", creds.UserID, "error", err)
		return nil, internal.NewInternalError("failed to authenticate", err)
	}

	identity := Identity{
		UserID:      creds.UserID,
		Email:       creds.Email,
		Roles:       []string{creds.Role},
		Permissions: perms,
	}
	token, expiresAt, err := s.tokens.GenerateToken(identity)
	if err != nil {
		s.logger.Error("failed to sign token", "user_id", creds.UserID, "error", err)
		return nil, internal.NewInternalError("failed to issue token", err)
	}

	s.metrics.RecordLogin("success")
	s.publish(ctx, events.NewAuditEvent(events.EventTypeLoginSucceeded, creds.UserID, events.OutcomeSuccess,
		"user:"+strconv.FormatInt(creds.UserID, 10), map[string]interface{}{"email": creds.Email}))
	s.logger.Info("user logged in", "user_id", creds.UserID, "role", creds.Role)

	return &Session{
		UserID:      creds.UserID,
		Email:       creds.Email,
		Roles:       identity.Roles,
		Permissions: perms,
		Token:       token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken checks a bearer token and returns its claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	if token == "" {
		return nil, internal.ErrMissingToken
	}
	return s.tokens.ValidateToken(token)
}

func (s *Service) reject(ctx context.Context, userID int64, email, cause string) error {
	s.metrics.RecordLogin("failure")
	s.logger.Info("login rejected", "email", email, "cause", cause)
	s.publish(ctx, events.NewAuditEvent(events.EventTypeLoginFailed, userID, events.OutcomeFailure,
		"email:"+email, map[string]interface{}{"cause": cause}))
	return internal.ErrInvalidCredentials
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish audit event", "type", evt.EventType(), "error", err)
	}
}

// HashPassword hashes a plain password with the given bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
