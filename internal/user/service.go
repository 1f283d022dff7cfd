package user

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	userDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/user"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// MaxSignatureSize caps signature uploads at 2 MiB.
const MaxSignatureSize = 2 << 20

var signatureTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64, include IncludeOptions) (*userDatamodel.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	EmployeeIDExists(ctx context.Context, employeeID string) (bool, error)
	PositionExists(ctx context.Context, positionID int64) (bool, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Search(ctx context.Context, opts SearchOptions) ([]*userDatamodel.User, int64, error)
	UpdatePosition(ctx context.Context, userID, positionID int64) error
	UpdateSignature(ctx context.Context, userID int64, key string) error

	GetAddress(ctx context.Context, userID int64) (*userDatamodel.Address, error)
	SaveAddress(ctx context.Context, a *userDatamodel.Address) error
	GetAccountDetails(ctx context.Context, userID int64) (*userDatamodel.AccountDetails, error)
	SaveAccountDetails(ctx context.Context, a *userDatamodel.AccountDetails) error

	InvoiceNumberExists(ctx context.Context, invoiceNumber string) (bool, error)
	GetInvoiceData(ctx context.Context, userID int64, invoiceNumber string) (*userDatamodel.InvoiceData, error)
	// SaveInvoiceData writes the row and its history entry in one transaction.
	SaveInvoiceData(ctx context.Context, d *userDatamodel.InvoiceData, history *userDatamodel.InvoiceHistory) error
}

// Gate is the subset of the authorization gate the directory uses.
type Gate interface {
	Require(ctx context.Context, callerID int64, permission string) error
	AuthorizeUserCreation(ctx context.Context, callerID int64, requestedRole string) (coreUser.Role, error)
	AuthorizePositionChange(ctx context.Context, callerID int64) error
}

type PermissionResolver interface {
	Resolve(ctx context.Context, userID int64) ([]string, error)
}

type Service struct {
	repo       RepositoryAPI
	gate       Gate
	resolver   PermissionResolver
	files      storage.FileStorage
	publisher  events.Publisher
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

func NewService(repo RepositoryAPI, gate Gate, resolver PermissionResolver, files storage.FileStorage,
	publisher events.Publisher, logger *slog.Logger, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		gate:       gate,
		resolver:   resolver,
		files:      files,
		publisher:  publisher,
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// CreateUser creates an account after the role hierarchy allows it. Duplicate checks run
// before anything is written.
func (s *Service) CreateUser(ctx context.Context, callerID int64, dto CreateUserDTO) (*User, error) {
	dto.Normalize()

	role, err := s.gate.AuthorizeUserCreation(ctx, callerID, dto.Role)
	if err != nil {
		return nil, err
	}

	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	exists, err := s.repo.EmailExists(ctx, dto.Email)
	if err != nil {
		return nil, s.internalErr("failed to check email", err)
	}
	if exists {
		return nil, internal.ErrDuplicateEmail
	}

	exists, err = s.repo.EmployeeIDExists(ctx, dto.EmployeeID)
	if err != nil {
		return nil, s.internalErr("failed to check employee id", err)
	}
	if exists {
		return nil, internal.ErrDuplicateEmployeeID
	}

	if dto.PositionID != nil {
		found, err := s.repo.PositionExists(ctx, *dto.PositionID)
		if err != nil {
			return nil, s.internalErr("failed to check position", err)
		}
		if !found {
			return nil, internal.ErrPositionNotFound
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, s.internalErr("failed to hash password", err)
	}

	now := s.now().UTC()
	row := &userDatamodel.User{
		EmployeeID:   dto.EmployeeID,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		Email:        dto.Email,
		Phone:        dto.Phone,
		PasswordHash: string(hash),
		Role:         role.String(),
		PositionID:   dto.PositionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, internal.NewConflictError("Email or employee ID already exists", internal.ErrCodeDuplicateEmail)
		}
		return nil, s.internalErr("failed to create user", err)
	}

	s.logger.Info("user created", "caller_id", callerID, "user_id", row.ID, "role", row.Role)
	s.audit(ctx, events.EventTypeUserCreated, callerID, row.ID, map[string]interface{}{
		"role":        row.Role,
		"employee_id": row.EmployeeID,
	})

	return s.withPermissions(ctx, FromDataModel(row))
}

// GetUser returns a user with effective permissions. Callers may always read themselves;
// reading others needs ManageUsers.
func (s *Service) GetUser(ctx context.Context, callerID, userID int64, include IncludeOptions) (*User, error) {
	if callerID != userID {
		if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
			return nil, err
		}
	}

	row, err := s.repo.GetByID(ctx, userID, include)
	if err != nil {
		return nil, s.internalErr("failed to get user", err)
	}
	if row == nil {
		return nil, internal.ErrUserNotFound
	}
	return s.withPermissions(ctx, FromDataModel(row))
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, callerID int64) (*User, error) {
	if callerID <= 0 {
		return nil, internal.ErrMissingToken
	}
	return s.GetUser(ctx, callerID, callerID, IncludeOptions{Address: true, AccountDetails: true})
}

func (s *Service) ListUsers(ctx context.Context, callerID int64, opts SearchOptions) (*UserPage, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}

	opts = opts.Normalize()
	if opts.Role != "" {
		role, ok := coreUser.ParseRole(opts.Role)
		if !ok {
			return nil, internal.ErrInvalidRole
		}
		opts.Role = role.String()
	}

	rows, total, err := s.repo.Search(ctx, opts)
	if err != nil {
		return nil, s.internalErr("failed to list users", err)
	}

	items := make([]*User, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromDataModel(row))
	}
	return &UserPage{Items: items, Total: total, Skip: opts.Skip, Take: opts.Take}, nil
}

func (s *Service) UpdatePosition(ctx context.Context, callerID, userID int64, dto UpdatePositionDTO) error {
	if err := s.gate.AuthorizePositionChange(ctx, callerID); err != nil {
		return err
	}
	if appErr := dto.Validate(); appErr != nil {
		return appErr
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	found, err := s.repo.PositionExists(ctx, dto.PositionID)
	if err != nil {
		return s.internalErr("failed to check position", err)
	}
	if !found {
		return internal.ErrPositionNotFound
	}

	if err := s.repo.UpdatePosition(ctx, userID, dto.PositionID); err != nil {
		return s.internalErr("failed to update position", err)
	}

	s.logger.Info("user position changed", "caller_id", callerID, "user_id", userID, "position_id", dto.PositionID)
	s.audit(ctx, events.EventTypePositionChanged, callerID, userID, map[string]interface{}{"position_id": dto.PositionID})
	return nil
}

func (s *Service) AddAddress(ctx context.Context, callerID, userID int64, dto AddressDTO) (*Address, error) {
	return s.saveAddress(ctx, callerID, userID, dto, false)
}

func (s *Service) UpdateAddress(ctx context.Context, callerID, userID int64, dto AddressDTO) (*Address, error) {
	return s.saveAddress(ctx, callerID, userID, dto, true)
}

func (s *Service) saveAddress(ctx context.Context, callerID, userID int64, dto AddressDTO, update bool) (*Address, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	row, err := s.repo.GetAddress(ctx, userID)
	if err != nil {
		return nil, s.internalErr("failed to load address", err)
	}
	if err := subRecordState("Address", row != nil, update); err != nil {
		return nil, err
	}
	if row == nil {
		row = &userDatamodel.Address{UserID: userID}
	}
	dto.apply(row)

	if err := s.repo.SaveAddress(ctx, row); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, internal.NewConflictError("Address already exists", internal.ErrCodeRecordExists)
		}
		return nil, s.internalErr("failed to save address", err)
	}

	s.audit(ctx, events.EventTypeUserUpdated, callerID, userID, map[string]interface{}{"record": "address", "update": update})
	return addressFromDataModel(row), nil
}

func (s *Service) AddAccountDetails(ctx context.Context, callerID, userID int64, dto AccountDetailsDTO) (*AccountDetails, error) {
	return s.saveAccountDetails(ctx, callerID, userID, dto, false)
}

func (s *Service) UpdateAccountDetails(ctx context.Context, callerID, userID int64, dto AccountDetailsDTO) (*AccountDetails, error) {
	return s.saveAccountDetails(ctx, callerID, userID, dto, true)
}

func (s *Service) saveAccountDetails(ctx context.Context, callerID, userID int64, dto AccountDetailsDTO, update bool) (*AccountDetails, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	row, err := s.repo.GetAccountDetails(ctx, userID)
	if err != nil {
		return nil, s.internalErr("failed to load account details", err)
	}
	if err := subRecordState("Account details", row != nil, update); err != nil {
		return nil, err
	}
	if row == nil {
		row = &userDatamodel.AccountDetails{UserID: userID}
	}
	dto.apply(row)

	if err := s.repo.SaveAccountDetails(ctx, row); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, internal.NewConflictError("Account details already exist", internal.ErrCodeRecordExists)
		}
		return nil, s.internalErr("failed to save account details", err)
	}

	s.audit(ctx, events.EventTypeUserUpdated, callerID, userID, map[string]interface{}{"record": "account_details", "update": update})
	return accountDetailsFromDataModel(row), nil
}

// AddInvoiceData stores a new invoice record; the invoice number is unique system-wide.
func (s *Service) AddInvoiceData(ctx context.Context, callerID, userID int64, dto InvoiceDataDTO) (*InvoiceData, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	exists, err := s.repo.InvoiceNumberExists(ctx, dto.InvoiceNumber)
	if err != nil {
		return nil, s.internalErr("failed to check invoice number", err)
	}
	if exists {
		return nil, internal.ErrDuplicateInvoiceNumber
	}

	row := &userDatamodel.InvoiceData{UserID: userID}
	dto.apply(row)
	history := &userDatamodel.InvoiceHistory{
		UserID:    userID,
		Action:    HistoryActionCreated,
		Details:   fmt.Sprintf("Invoice %s created", row.InvoiceNumber),
		Timestamp: s.now().UTC(),
	}

	if err := s.repo.SaveInvoiceData(ctx, row, history); err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, internal.ErrDuplicateInvoiceNumber
		}
		return nil, s.internalErr("failed to save invoice data", err)
	}

	s.audit(ctx, events.EventTypeUserUpdated, callerID, userID, map[string]interface{}{"record": "invoice_data", "invoice_number": row.InvoiceNumber})
	return invoiceDataFromDataModel(row), nil
}

// UpdateInvoiceData matches the record by user and invoice number.
func (s *Service) UpdateInvoiceData(ctx context.Context, callerID, userID int64, dto InvoiceDataDTO) (*InvoiceData, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}
	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	row, err := s.repo.GetInvoiceData(ctx, userID, dto.InvoiceNumber)
	if err != nil {
		return nil, s.internalErr("failed to load invoice data", err)
	}
	if row == nil {
		return nil, internal.NewNotFoundError("Invoice data not found", internal.ErrCodeRecordNotFound)
	}

	dto.apply(row)
	id := row.ID
	history := &userDatamodel.InvoiceHistory{
		UserID:        userID,
		InvoiceDataID: &id,
		Action:        HistoryActionUpdated,
		Details:       fmt.Sprintf("Invoice %s updated", row.InvoiceNumber),
		Timestamp:     s.now().UTC(),
	}
	if err := s.repo.SaveInvoiceData(ctx, row, history); err != nil {
		return nil, s.internalErr("failed to save invoice data", err)
	}

	s.audit(ctx, events.EventTypeUserUpdated, callerID, userID, map[string]interface{}{"record": "invoice_data", "invoice_number": row.InvoiceNumber, "update": true})
	return invoiceDataFromDataModel(row), nil
}

// UploadSignature stores a png or jpeg image and then points the user at it.
// The pointer is only written after the file is stored.
func (s *Service) UploadSignature(ctx context.Context, callerID, userID int64, filename string, content io.Reader) (*SignatureResponse, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManageUsers); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	contentType, ok := signatureTypes[ext]
	if !ok {
		return nil, internal.NewValidationFieldError("file", "Only PNG and JPG files are allowed", internal.ErrCodeInvalidFile)
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxSignatureSize+1))
	if err != nil {
		return nil, internal.NewValidationFieldError("file", "Failed to read file", internal.ErrCodeInvalidFile).WithCause(err)
	}
	if len(data) == 0 {
		return nil, internal.NewValidationFieldError("file", "File is empty", internal.ErrCodeInvalidFile)
	}
	if len(data) > MaxSignatureSize {
		return nil, internal.NewValidationFieldError("file", "File must not exceed 2 MiB", internal.ErrCodeInvalidFile)
	}
	if detected := http.DetectContentType(data); detected != contentType {
		return nil, internal.NewValidationFieldError("file", "File content does not match its extension", internal.ErrCodeInvalidFile)
	}

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("signatures/%d_%d%s", userID, s.now().UnixNano(), ext)
	if err := s.files.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		s.logger.Error("failed to store signature", "user_id", userID, "key", key, "error", err)
		return nil, internal.NewInternalError("failed to store signature", err)
	}

	if err := s.repo.UpdateSignature(ctx, userID, key); err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			s.logger.Warn("failed to remove orphaned signature", "key", key, "error", derr)
		}
		return nil, s.internalErr("failed to update signature", err)
	}

	s.audit(ctx, events.EventTypeSignatureUploaded, callerID, userID, map[string]interface{}{"key": key, "size": len(data)})
	return &SignatureResponse{UserID: userID, Signature: key}, nil
}

func (s *Service) requireUser(ctx context.Context, userID int64) error {
	ok, err := s.repo.Exists(ctx, userID)
	if err != nil {
		return s.internalErr("failed to check user", err)
	}
	if !ok {
		return internal.ErrUserNotFound
	}
	return nil
}

func (s *Service) withPermissions(ctx context.Context, u *User) (*User, error) {
	perms, err := s.resolver.Resolve(ctx, u.ID)
	if err != nil {
		return nil, s.internalErr("failed to resolve permissions", err)
	}
	if perms == nil {
		perms = []string{}
	}
	u.Permissions = perms
	return u, nil
}

func subRecordState(name string, exists, update bool) error {
	if update && !exists {
		return internal.NewNotFoundError(name+" not found", internal.ErrCodeRecordNotFound)
	}
	if !update && exists {
		return internal.NewConflictError(name+" already exists", internal.ErrCodeRecordExists)
	}
	return nil
}

func (s *Service) internalErr(msg string, err error) error {
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}

func (s *Service) audit(ctx context.Context, action string, callerID, targetID int64, details map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	evt := events.NewAuditEvent(action, callerID, events.OutcomeSuccess, "user:"+strconv.FormatInt(targetID, 10), details)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish audit event", "type", action, "error", err)
	}
}
