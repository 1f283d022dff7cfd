package signup

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	signupDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/signup"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/user"
)

type RepositoryAPI interface {
	Create(ctx context.Context, r *signupDatamodel.SignupRequest) error
	GetByID(ctx context.Context, id int64) (*signupDatamodel.SignupRequest, error)
	List(ctx context.Context, status *Status) ([]*signupDatamodel.SignupRequest, error)
	PendingEmailExists(ctx context.Context, email string) (bool, error)
	// Finalize moves a pending request to status. It reports false when the request
	// was no longer pending.
	Finalize(ctx context.Context, id int64, status Status, reviewerID int64, at time.Time) (bool, error)
}

type Gate interface {
	Require(ctx context.Context, callerID int64, permission string) error
}

// AccountCreator is the user directory operation an approval delegates to.
type AccountCreator interface {
	CreateUser(ctx context.Context, callerID int64, dto user.CreateUserDTO) (*user.User, error)
}

type Service struct {
	repo      RepositoryAPI
	gate      Gate
	accounts  AccountCreator
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, gate Gate, accounts AccountCreator, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gate:      gate,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit records a pending request. It needs no caller.
func (s *Service) Submit(ctx context.Context, dto SubmitDTO) (*Request, error) {
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	exists, err := s.repo.PendingEmailExists(ctx, dto.Email)
	if err != nil {
		return nil, s.internalErr("failed to check pending requests", err)
	}
	if exists {
		return nil, internal.NewConflictError("A pending signup request already exists for this email", internal.ErrCodeDuplicateEmail)
	}

	row := &signupDatamodel.SignupRequest{
		FirstName:   dto.FirstName,
		LastName:    dto.LastName,
		Email:       dto.Email,
		EmployeeID:  dto.EmployeeID,
		Phone:       dto.Phone,
		Status:      string(StatusPending),
		RequestDate: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, s.internalErr("failed to save signup request", err)
	}

	s.logger.Info("signup request submitted", "signup_id", row.ID, "email", row.Email)
	s.audit(ctx, events.EventTypeSignupSubmitted, 0, row.ID, map[string]interface{}{"email": row.Email})
	return FromDataModel(row), nil
}

func (s *Service) List(ctx context.Context, callerID int64, status string) ([]*Request, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}

	var filter *Status
	if status != "" {
		st, ok := ParseStatus(status)
		if !ok {
			return nil, internal.NewValidationFieldError("status", "status must be Pending, Approved or Rejected", internal.ErrCodeValidationFailed)
		}
		filter = &st
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.internalErr("failed to list signup requests", err)
	}
	out := make([]*Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row))
	}
	return out, nil
}

// Approve creates a User-role account from the request and marks it approved.
func (s *Service) Approve(ctx context.Context, callerID, requestID int64, dto ApproveDTO) (*Request, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}

	row, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	created, err := s.accounts.CreateUser(ctx, callerID, user.CreateUserDTO{
		EmployeeID: row.EmployeeID,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		Email:      row.Email,
		Phone:      row.Phone,
		Password:   dto.Password,
		Role:       coreUser.RoleUser.String(),
		PositionID: dto.PositionID,
	})
	if err != nil {
		return nil, err
	}

	out, err := s.finalize(ctx, callerID, row, StatusApproved)
	if err != nil {
		return nil, err
	}
	out.UserID = &created.ID
	return out, nil
}

func (s *Service) Reject(ctx context.Context, callerID, requestID int64) (*Request, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}

	row, err := s.pending(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, callerID, row, StatusRejected)
}

func (s *Service) pending(ctx context.Context, requestID int64) (*signupDatamodel.SignupRequest, error) {
	row, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, s.internalErr("failed to load signup request", err)
	}
	if row == nil {
		return nil, internal.ErrSignupNotFound
	}
	if Status(row.Status) != StatusPending {
		return nil, internal.ErrSignupProcessed
	}
	return row, nil
}

func (s *Service) finalize(ctx context.Context, callerID int64, row *signupDatamodel.SignupRequest, status Status) (*Request, error) {
	at := s.now().UTC()
	ok, err := s.repo.Finalize(ctx, row.ID, status, callerID, at)
	if err != nil {
		return nil, s.internalErr("failed to update signup request", err)
	}
	if !ok {
		return nil, internal.ErrSignupProcessed
	}

	row.Status = string(status)
	row.ApprovedBy = &callerID
	row.ApprovedOn = &at

	s.logger.Info("signup request reviewed", "caller_id", callerID, "signup_id", row.ID, "status", status)
	s.audit(ctx, events.EventTypeSignupReviewed, callerID, row.ID, map[string]interface{}{"status": string(status)})
	return FromDataModel(row), nil
}

func (s *Service) internalErr(msg string, err error) error {
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}

func (s *Service) audit(ctx context.Context, action string, callerID, requestID int64, details map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	evt := events.NewAuditEvent(action, callerID, events.OutcomeSuccess, "signup:"+strconv.FormatInt(requestID, 10), details)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish audit event", "type", action, "error", err)
	}
}
