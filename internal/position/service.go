package position

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/frahmantamala/invoice-admin/internal"
	positionDatamodel "github.com/frahmantamala/invoice-admin/internal/core/datamodel/position"
	"github.com/frahmantamala/invoice-admin/internal/core/events"
	coreUser "github.com/frahmantamala/invoice-admin/internal/core/user"
	"github.com/frahmantamala/invoice-admin/internal/observability"
)

var ErrUniqueViolation = errors.New("unique constraint violated")

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*positionDatamodel.Position, error)
	Exists(ctx context.Context, id int64) (bool, error)
	NameExists(ctx context.Context, name string) (bool, error)
	// PermissionNames maps position id to the names granted to it.
	PermissionNames(ctx context.Context, positionIDs []int64) (map[int64][]string, error)
	// MissingPermissions returns the ids that do not exist.
	MissingPermissions(ctx context.Context, ids []int64) ([]int64, error)
	// Create inserts the position and its grants in one transaction.
	Create(ctx context.Context, p *positionDatamodel.Position, permissionIDs []int64) error
	// AddPermissions skips grants that already exist and reports how many were new.
	AddPermissions(ctx context.Context, positionID int64, permissionIDs []int64) (int64, error)
}

type Gate interface {
	Require(ctx context.Context, callerID int64, permission string) error
}

type Service struct {
	repo      RepositoryAPI
	gate      Gate
	publisher events.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, gate Gate, publisher events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		gate:      gate,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *Service) ListPositions(ctx context.Context, callerID int64) ([]*Position, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePositions); err != nil {
		return nil, err
	}

	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, s.internalErr("failed to list positions", err)
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	names, err := s.repo.PermissionNames(ctx, ids)
	if err != nil {
		return nil, s.internalErr("failed to load position permissions", err)
	}

	out := make([]*Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromDataModel(row, names[row.ID]))
	}
	return out, nil
}

func (s *Service) CreatePosition(ctx context.Context, callerID int64, dto CreatePositionDTO) (*Position, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePositions); err != nil {
		return nil, err
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	exists, err := s.repo.NameExists(ctx, dto.Name)
	if err != nil {
		return nil, s.internalErr("failed to check position name", err)
	}
	if exists {
		return nil, internal.NewConflictError("Position already exists", internal.ErrCodeDuplicatePosition)
	}

	if err := s.checkPermissions(ctx, dto.PermissionIDs); err != nil {
		return nil, err
	}

	row := &positionDatamodel.Position{Name: dto.Name, Description: dto.Description}
	err = s.repo.Create(ctx, row, dto.PermissionIDs)
	s.metrics.RecordPermissionChange("position", "grant", err)
	if err != nil {
		if errors.Is(err, ErrUniqueViolation) {
			return nil, internal.NewConflictError("Position already exists", internal.ErrCodeDuplicatePosition)
		}
		return nil, s.internalErr("failed to create position", err)
	}

	s.logger.Info("position created", "caller_id", callerID, "position_id", row.ID, "permission_ids", dto.PermissionIDs)
	s.audit(ctx, events.EventTypePositionCreated, callerID, row.ID, map[string]interface{}{
		"name":           row.Name,
		"permission_ids": dto.PermissionIDs,
	})

	names, err := s.repo.PermissionNames(ctx, []int64{row.ID})
	if err != nil {
		return nil, s.internalErr("failed to load position permissions", err)
	}
	return FromDataModel(row, names[row.ID]), nil
}

// AddPermissions grants more permissions to a position. Grants it already holds are skipped.
func (s *Service) AddPermissions(ctx context.Context, callerID, positionID int64, dto AddPermissionsDTO) (*AddPermissionsResponse, error) {
	if err := s.gate.Require(ctx, callerID, coreUser.PermManagePositions); err != nil {
		return nil, err
	}

	dto.Normalize()
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	found, err := s.repo.Exists(ctx, positionID)
	if err != nil {
		return nil, s.internalErr("failed to check position", err)
	}
	if !found {
		return nil, internal.ErrPositionNotFound
	}

	if err := s.checkPermissions(ctx, dto.PermissionIDs); err != nil {
		return nil, err
	}

	added, err := s.repo.AddPermissions(ctx, positionID, dto.PermissionIDs)
	s.metrics.RecordPermissionChange("position", "grant", err)
	if err != nil {
		return nil, s.internalErr("failed to add position permissions", err)
	}

	s.audit(ctx, events.EventTypePermissionGranted, callerID, positionID, map[string]interface{}{
		"permission_ids": dto.PermissionIDs,
		"added":          added,
	})
	return &AddPermissionsResponse{PositionID: positionID, Added: added}, nil
}

func (s *Service) checkPermissions(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.repo.MissingPermissions(ctx, ids)
	if err != nil {
		return s.internalErr("failed to check permissions", err)
	}
	if len(missing) > 0 {
		return internal.ErrPermissionNotFound.WithDetails(map[string]interface{}{"missing": missing})
	}
	return nil
}

func (s *Service) internalErr(msg string, err error) error {
	s.logger.Error(msg, "error", err)
	return internal.NewInternalError(msg, err)
}

func (s *Service) audit(ctx context.Context, action string, callerID, positionID int64, details map[string]interface{}) {
	if s.publisher == nil {
		return
	}
	evt := events.NewAuditEvent(action, callerID, events.OutcomeSuccess, "position:"+strconv.FormatInt(positionID, 10), details)
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish audit event", "type", action, "error", err)
	}
}
