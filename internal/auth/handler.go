package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/frahmantamala/invoice-admin/internal"
	"github.com/frahmantamala/invoice-admin/internal/transport"
	"github.com/frahmantamala/invoice-admin/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (*Session, error)
	ValidateToken(token string) (*Claims, error)
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

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	session, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     session.Token,
		TokenType: session.TokenType,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /auth/logout. Tokens are stateless, so this only confirms the token is valid.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Service.ValidateToken(h.ExtractTokenFromHeader(r)); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware rejects requests without a valid bearer token and puts the caller on the context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.Service.ValidateToken(h.ExtractTokenFromHeader(r))
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		uid, err := claims.UserID()
		if err != nil || uid <= 0 {
			h.WriteAppError(w, r, internal.ErrInvalidToken)
			return
		}

		ctx := internal.ContextWithCallerID(r.Context(), uid)
		ctx = ContextWithClaims(ctx, claims)
		ctx = logger.WithCaller(ctx, uid, claims.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
