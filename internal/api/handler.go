package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlpilot/sqlpilot/internal/auth"
	"github.com/sqlpilot/sqlpilot/internal/config"
	"github.com/sqlpilot/sqlpilot/internal/database"
	"github.com/sqlpilot/sqlpilot/internal/examples"
	"github.com/sqlpilot/sqlpilot/internal/observability"
	"github.com/sqlpilot/sqlpilot/internal/pilot"
)

type ReadinessCheck func(ctx context.Context) error

// Pilot is the question answering service behind the API.
type Pilot interface {
	Ask(ctx context.Context, req pilot.AskRequest) (pilot.AskResponse, error)
	Ping(ctx context.Context, info database.Info) error
	Examples() []examples.Example
	SaveExample(ctx context.Context, example examples.Example) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Pilot             Pilot
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	ask := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r, false)
	})
	legacyAsk := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r, true)
	})
	ping := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePing(deps, w, r, false)
	})
	legacyPing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePing(deps, w, r, true)
	})
	listExamples := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleListExamples(deps, w, r)
	})
	appendExample := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAppendExample(deps, w, r)
	})

	protected := http.NewServeMux()
	protected.Handle("POST /v1/ask", auth.RequireRole(auth.RoleAsker, ask))
	protected.Handle("POST /{$}", auth.RequireRole(auth.RoleAsker, legacyAsk))
	protected.Handle("POST /v1/ping", auth.RequireRole(auth.RoleAsker, ping))
	protected.Handle("POST /ping", auth.RequireRole(auth.RoleAsker, legacyPing))
	protected.Handle("GET /v1/examples", auth.RequireRole(auth.RoleAsker, listExamples))
	protected.Handle("POST /v1/examples", auth.RequireRole(auth.RoleCurator, appendExample))

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/ask", protectedHandler)
	mux.Handle("POST /{$}", protectedHandler)
	mux.Handle("POST /v1/ping", protectedHandler)
	mux.Handle("POST /ping", protectedHandler)
	mux.Handle("GET /v1/examples", protectedHandler)
	mux.Handle("POST /v1/examples", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.CORSMiddleware(cfg.CORS.AllowedOrigins),
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckExamplesLoaded reports ready once the example corpus is available.
func CheckExamplesLoaded(corpus *examples.Corpus) ReadinessCheck {
	return func(_ context.Context) error {
		if corpus == nil || corpus.Version() == 0 {
			return errors.New("example corpus is not loaded")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Examples.Backend != "s3" {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
