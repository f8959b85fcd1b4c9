package rest

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"

	"github.com/courseloom/platform/internal"
	"github.com/courseloom/platform/internal/auth"
	"github.com/courseloom/platform/internal/course"
	"github.com/courseloom/platform/internal/impersonation"
	"github.com/courseloom/platform/internal/tenant"
	"github.com/courseloom/platform/internal/transport"
	appmiddleware "github.com/courseloom/platform/internal/transport/middleware"
	"github.com/courseloom/platform/internal/transport/swagger"
	"github.com/courseloom/platform/internal/user"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *auth.Handler
	User          *user.Handler
	Tenant        *tenant.Handler
	Impersonation *impersonation.Handler
	Course        *course.Handler
	Audit         appmiddleware.AuditRecorder
}

// RegisterAllRoutes wires the full HTTP surface: public auth endpoints,
// authenticated and permission-gated API routes, and the operational
// endpoints (health, metrics, swagger).
func RegisterAllRoutes(r chi.Router, cfg *internal.Config, h Handlers, logger *slog.Logger) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Server.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appmiddleware.RequestID)
	r.Use(appmiddleware.RecoveryMiddleware(logger))
	r.Use(appmiddleware.LoggingMiddleware(logger))
	if cfg.Observability.Metrics.Enabled {
		r.Use(transport.Instrument)
	}

	r.Get("/health", HealthCheck)
	r.Get("/ping", Ping)

	if cfg.Observability.Metrics.Enabled {
		r.Handle(cfg.Observability.Metrics.Path, transport.MetricsHandler())
	}
	swagger.RegisterRoutes(r)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.With(appmiddleware.RateLimit(cfg.Security.LoginRatePerMinute)).
				Post("/login", h.Auth.Login)
			ar.Post("/signup", h.Auth.Signup)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)

			ar.Group(func(authed chi.Router) {
				authed.Use(h.Auth.AuthMiddleware)
				authed.Post("/change-password", h.Auth.ChangePassword)
			})
		})

		api.Group(func(authed chi.Router) {
			authed.Use(h.Auth.AuthMiddleware)

			authed.Get("/users/me", h.User.Me)

			authed.Group(func(g chi.Router) {
				g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermUsersRead))
				g.Get("/users", h.User.List)
				g.Get("/users/{id}", h.User.Get)
				g.With(appmiddleware.RequireTenantAccess(h.Audit)).
					Get("/tenants/{tenantID}/users", h.User.List)
			})

			authed.Group(func(g chi.Router) {
				g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermUsersManage))
				g.Patch("/users/{id}/role", h.User.UpdateRole)
				g.Patch("/users/{id}/activation", h.User.SetActivation)
			})

			authed.Group(func(g chi.Router) {
				g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermTenantsManage))
				g.Post("/tenants", h.Tenant.Create)
				g.Get("/tenants", h.Tenant.List)
				g.Get("/tenants/{id}", h.Tenant.Get)
				g.Patch("/tenants/{id}/activation", h.Tenant.SetActivation)
			})

			authed.Group(func(g chi.Router) {
				g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermImpersonate))
				g.Post("/impersonation", h.Impersonation.Start)
				g.Get("/impersonation", h.Impersonation.List)
				g.Delete("/impersonation/{token}", h.Impersonation.End)
			})

			authed.Route("/courses", func(cr chi.Router) {
				cr.Group(func(g chi.Router) {
					g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermCoursesRead))
					g.Get("/", h.Course.List)
					g.Get("/{id}", h.Course.Get)
				})
				cr.Group(func(g chi.Router) {
					g.Use(appmiddleware.RequirePermissions(h.Audit, auth.PermCoursesManage))
					g.With(appmiddleware.RequireTenantAccess(h.Audit)).
						Post("/", h.Course.Create)
					g.Patch("/{id}", h.Course.Update)
					g.Delete("/{id}", h.Course.Delete)
				})
			})
		})
	})
}

// NewRouter builds a fully wired chi router.
func NewRouter(cfg *internal.Config, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	RegisterAllRoutes(r, cfg, h, logger)
	return r
}
