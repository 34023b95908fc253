package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/go-chi/chi/v5"
)

// NewRouter registers all routes and the middleware stack. With
// metricsEnabled the Prometheus endpoint is mounted on /metrics.
func NewRouter(h *Handler, metricsEnabled bool) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)
	if metricsEnabled {
		r.Use(metrics.Instrument(routePattern))
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Get("/healthz", h.healthz)

	r.Post("/login", h.login)
	r.Post("/register", h.register)
	r.Post("/admin/login", h.adminLogin)

	r.Group(func(r chi.Router) {
		r.Use(requireToken)
		r.Post("/logout", h.logout)
		r.Post("/update_password", h.updatePassword)

		r.Post("/admin/logout", h.adminLogout)
		r.Post("/generate_license_key", h.generateLicenseKey)
		r.Delete("/delete_license_key", h.deleteLicenseKey)
		r.Get("/license_keys", h.licenseKeys)
		r.Get("/view_users", h.viewUsers)
		r.Get("/view_user", h.viewUser)
		r.Delete("/delete_user", h.deleteUser)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
