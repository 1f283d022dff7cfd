package user

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/transport"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, callerID int64, dto CreateUserDTO) (*User, error)
	GetUser(ctx context.Context, callerID, userID int64, include IncludeOptions) (*User, error)
	Me(ctx context.Context, callerID int64) (*User, error)
	ListUsers(ctx context.Context, callerID int64, opts SearchOptions) (*UserPage, error)
	UpdatePosition(ctx context.Context, callerID, userID int64, dto UpdatePositionDTO) error
	AddAddress(ctx context.Context, callerID, userID int64, dto AddressDTO) (*Address, error)
	UpdateAddress(ctx context.Context, callerID, userID int64, dto AddressDTO) (*Address, error)
	AddAccountDetails(ctx context.Context, callerID, userID int64, dto AccountDetailsDTO) (*AccountDetails, error)
	UpdateAccountDetails(ctx context.Context, callerID, userID int64, dto AccountDetailsDTO) (*AccountDetails, error)
	AddInvoiceData(ctx context.Context, callerID, userID int64, dto InvoiceDataDTO) (*InvoiceData, error)
	UpdateInvoiceData(ctx context.Context, callerID, userID int64, dto InvoiceDataDTO) (*InvoiceData, error)
	UploadSignature(ctx context.Context, callerID, userID int64, filename string, content io.Reader) (*SignatureResponse, error)
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

// Me handles GET /users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	u, err := h.Service.Me(r.Context(), callerID)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.CreateUser(r.Context(), callerID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// GetUser handles GET /users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	userID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.GetUser(r.Context(), callerID, userID, parseInclude(r.URL.Query()))
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}

// ListUsers handles GET /users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	opts, err := parseSearchOptions(r.URL.Query())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	page, err := h.Service.ListUsers(r.Context(), callerID, opts)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

// UpdatePosition handles PUT /users/{id}/position
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	callerID, userID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}

	var dto UpdatePositionDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	if err := h.Service.UpdatePosition(r.Context(), callerID, userID, dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]string{"message": "Position updated successfully"})
}

func (h *Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	h.address(w, r, http.StatusCreated, h.Service.AddAddress)
}

func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	h.address(w, r, http.StatusOK, h.Service.UpdateAddress)
}

func (h *Handler) address(w http.ResponseWriter, r *http.Request, status int,
	fn func(context.Context, int64, int64, AddressDTO) (*Address, error)) {
	callerID, userID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	var dto AddressDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	out, err := fn(r.Context(), callerID, userID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, status, out)
}

func (h *Handler) AddAccountDetails(w http.ResponseWriter, r *http.Request) {
	h.accountDetails(w, r, http.StatusCreated, h.Service.AddAccountDetails)
}

func (h *Handler) UpdateAccountDetails(w http.ResponseWriter, r *http.Request) {
	h.accountDetails(w, r, http.StatusOK, h.Service.UpdateAccountDetails)
}

func (h *Handler) accountDetails(w http.ResponseWriter, r *http.Request, status int,
	fn func(context.Context, int64, int64, AccountDetailsDTO) (*AccountDetails, error)) {
	callerID, userID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	var dto AccountDetailsDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	out, err := fn(r.Context(), callerID, userID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, status, out)
}

func (h *Handler) AddInvoiceData(w http.ResponseWriter, r *http.Request) {
	h.invoiceData(w, r, http.StatusCreated, h.Service.AddInvoiceData)
}

func (h *Handler) UpdateInvoiceData(w http.ResponseWriter, r *http.Request) {
	h.invoiceData(w, r, http.StatusOK, h.Service.UpdateInvoiceData)
}

func (h *Handler) invoiceData(w http.ResponseWriter, r *http.Request, status int,
	fn func(context.Context, int64, int64, InvoiceDataDTO) (*InvoiceData, error)) {
	callerID, userID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}
	var dto InvoiceDataDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	out, err := fn(r.Context(), callerID, userID, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, status, out)
}

// UploadSignature handles POST /users/{id}/signature with a multipart "file" field.
func (h *Handler) UploadSignature(w http.ResponseWriter, r *http.Request) {
	callerID, userID, ok := h.callerAndTarget(w, r)
	if !ok {
		return
	}

	// leave room for multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, MaxSignatureSize+(64<<10))
	file, header, err := r.FormFile("file")
	if err != nil {
		h.WriteAppError(w, r, internal.NewValidationFieldError("file", "A file is required and must not exceed 2 MiB", internal.ErrCodeInvalidFile).WithCause(err))
		return
	}
	defer file.Close()

	out, err := h.Service.UploadSignature(r.Context(), callerID, userID, header.Filename, file)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) callerAndTarget(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	callerID, err := h.CallerID(r)
	if err != nil {
		h.WriteAppError(w, r, err)
		return 0, 0, false
	}
	userID, err := h.PathID(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return 0, 0, false
	}
	return callerID, userID, true
}

func parseInclude(q url.Values) IncludeOptions {
	return IncludeOptions{
		Address:        parseBool(q.Get("includeAddress")),
		AccountDetails: parseBool(q.Get("includeAccountDetails")),
		InvoiceHistory: parseBool(q.Get("includeInvoiceHistory")),
		InvoiceData:    parseBool(q.Get("includeInvoiceData")),
	}
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

func parseSearchOptions(q url.Values) (SearchOptions, error) {
	opts := SearchOptions{
		SearchTerm:     q.Get("searchTerm"),
		Role:           q.Get("role"),
		SortBy:         q.Get("sortBy"),
		SortDescending: parseBool(q.Get("sortDescending")),
		Include:        parseInclude(q),
	}

	if v := q.Get("positionId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return opts, internal.NewValidationFieldError("positionId", "positionId must be a positive integer", internal.ErrCodeValidationFailed)
		}
		opts.PositionID = &id
	}
	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, internal.NewValidationFieldError("skip", "skip must be zero or greater", internal.ErrCodeValidationFailed)
		}
		opts.Skip = n
	}
	if v := q.Get("take"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, internal.NewValidationFieldError("take", "take must be a positive integer", internal.ErrCodeValidationFailed)
		}
		opts.Take = n
	}
	return opts, nil
}
