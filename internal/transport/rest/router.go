package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/invoice-admin/api"
	"github.com/frahmantamala/invoice-admin/internal/auth"
	"github.com/frahmantamala/invoice-admin/internal/observability"
	"github.com/frahmantamala/invoice-admin/internal/permission"
	"github.com/frahmantamala/invoice-admin/internal/position"
	"github.com/frahmantamala/invoice-admin/internal/signup"
	"github.com/frahmantamala/invoice-admin/internal/transport/middleware"
	"github.com/frahmantamala/invoice-admin/internal/transport/swagger"
	"github.com/frahmantamala/invoice-admin/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers bundles everything RegisterAllRoutes mounts. Metrics may be nil; when set,
// the Prometheus handler is mounted at MetricsPath.
type Handlers struct {
	Health     *HealthHandler
	Auth       *auth.Handler
	User       *user.Handler
	Permission *permission.Handler
	Position   *position.Handler
	Signup     *signup.Handler

	Metrics        *observability.Metrics
	MetricsPath    string
	AllowedOrigins string
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, logger *slog.Logger) {
	router.Use(middleware.CORS(h.AllowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	if h.Metrics != nil {
		router.Use(h.Metrics.Middleware(routePattern))
		router.Handle(h.MetricsPath, h.Metrics.Handler())
	}

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(api.Document())
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Post("/auth/login", h.Auth.Login)

		r.Route("/signup-requests", func(sr chi.Router) {
			sr.Post("/", h.Signup.Submit)
			sr.Group(func(ar chi.Router) {
				ar.Use(h.Auth.AuthMiddleware)
				ar.Get("/", h.Signup.List)
				ar.Post("/{id}/approve", h.Signup.Approve)
				ar.Post("/{id}/reject", h.Signup.Reject)
			})
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Post("/auth/logout", h.Auth.Logout)

			pr.Route("/users", func(ur chi.Router) {
				ur.Get("/me", h.User.Me)
				ur.Get("/", h.User.ListUsers)
				ur.Post("/", h.User.CreateUser)

				ur.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", h.User.GetUser)
					ir.Put("/position", h.User.UpdatePosition)
					ir.Post("/address", h.User.AddAddress)
					ir.Put("/address", h.User.UpdateAddress)
					ir.Post("/account-details", h.User.AddAccountDetails)
					ir.Put("/account-details", h.User.UpdateAccountDetails)
					ir.Post("/invoice-data", h.User.AddInvoiceData)
					ir.Put("/invoice-data", h.User.UpdateInvoiceData)
					ir.Post("/signature", h.User.UploadSignature)
				})
			})

			pr.Route("/permissions", func(per chi.Router) {
				per.Get("/", h.Permission.ListPermissions)
				per.Post("/", h.Permission.CreatePermission)
				per.Post("/assign", h.Permission.Assign)
				per.Post("/remove", h.Permission.Remove)
				per.Get("/users/{id}", h.Permission.EffectivePermissions)
			})

			pr.Post("/roles/{role}/permissions", h.Permission.AssignToRole)
			pr.Delete("/roles/{role}/permissions", h.Permission.RemoveFromRole)

			pr.Route("/positions", func(por chi.Router) {
				por.Get("/", h.Position.ListPositions)
				por.Post("/", h.Position.CreatePosition)
				por.Post("/{id}/permissions", h.Position.AddPermissions)
			})
		})
	})
}

// routePattern labels metrics with the matched chi pattern so ids never become label values.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
