package position

import (
	"context"
	"net/http"

	"github.com/frahmantamala/invoice-admin/internal/transport"
)

type ServiceAPI interface {
	ListPositions(ctx context.Context, callerID int64) ([]*Position, error)
	CreatePosition(ctx context.Context, callerID int64, dto CreatePositionDTO) (*Position, error)
	AddPermissions(ctx context.Context, callerID, positionID int64, dto AddPermissionsDTO) (*AddPermissionsResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

// ListPositions handles GET /positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	positions, err := h.Service.ListPositions(r.Context(), callerID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, PositionsResponse{Positions: positions})
}

// CreatePosition handles POST /positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto CreatePositionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	pos, err := h.Service.CreatePosition(r.Context(), callerID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, pos)
}

// AddPermissions handles POST /positions/{id}/permissions
func (h *Handler) AddPermissions(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	positionID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto AddPermissionsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	out, err := h.Service.AddPermissions(r.Context(), callerID, positionID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}
