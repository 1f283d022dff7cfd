package signup

import (
	"context"
	"net/http"

	"github.com/frahmantamala/invoice-admin/internal/transport"
)

type ServiceAPI interface {
	Submit(ctx context.Context, dto SubmitDTO) (*Request, error)
	List(ctx context.Context, callerID int64, status string) ([]*Request, error)
	Approve(ctx context.Context, callerID, requestID int64, dto ApproveDTO) (*Request, error)
	Reject(ctx context.Context, callerID, requestID int64) (*Request, error)
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

// Submit handles POST /signup-requests. No token is required.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var dto SubmitDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	req, err := h.Service.Submit(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, req)
}

// List handles GET /signup-requests?status=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	reqs, err := h.Service.List(r.Context(), callerID, r.URL.Query().Get("status"))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RequestsResponse{Requests: reqs})
}

// Approve handles POST /signup-requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	requestID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto ApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	req, err := h.Service.Approve(r.Context(), callerID, requestID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

// Reject handles POST /signup-requests/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	requestID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	req, err := h.Service.Reject(r.Context(), callerID, requestID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}
