package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "vaxtrack/pkg/platform/middleware/auth"
	requestmw "vaxtrack/pkg/platform/middleware/request"
	requesttimemw "vaxtrack/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by the per-area handlers.
type Registrar interface {
	Register(r chi.Router)
}

// Health reports readiness of a backing dependency.
type Health interface {
	Health(ctx context.Context) error
}

// Config assembles the router.
type Config struct {
	Logger    *slog.Logger
	Validator authmw.TokenValidator

	// Handlers are mounted behind operator authentication.
	Handlers []Registrar

	// HealthChecks run on /healthz, keyed by dependency name.
	HealthChecks map[string]Health
}

// NewRouter wires middleware, observability endpoints, and the area handlers.
// Everything except health and metrics requires an operator token.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestmw.Middleware)
	r.Use(requesttimemw.Middleware)

	r.Get("/healthz", handleHealth(cfg.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireOperator(cfg.Validator, cfg.Logger))
		for _, handler := range cfg.Handlers {
			handler.Register(r)
		}
	})

	return r
}

func handleHealth(checks map[string]Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := make(map[string]string, len(checks)+1)
		for name, check := range checks {
			if err := check.Health(r.Context()); err != nil {
				status = http.StatusServiceUnavailable
				body[name] = "unhealthy"
				continue
			}
			body[name] = "ok"
		}
		if status == http.StatusOK {
			body["status"] = "ok"
		} else {
			body["status"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
