package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/authgate/auth-service/pkg/health"
	"github.com/authgate/auth-service/pkg/middleware"
)

// RouterConfig bundles the handlers and middleware inputs for the HTTP surface.
type RouterConfig struct {
	Auth           *AuthHandler
	Data           *DataHandler
	Health         *health.Handler
	TokenValidator middleware.TokenValidator
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter assembles the chi router with the full middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("auth-service"))
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(ContentTypeJSON)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", cfg.Auth.Register)
		r.Post("/login", cfg.Auth.Login)
		r.Post("/refresh", cfg.Auth.Refresh)
		r.Post("/logout", cfg.Auth.Logout)
		r.Get("/basic", cfg.Auth.Basic)
	})

	r.Route("/data", func(r chi.Router) {
		r.Get("/public", cfg.Data.Public)
		r.With(middleware.Auth(cfg.TokenValidator)).Get("/private", cfg.Data.Private)
	})

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	return r
}
