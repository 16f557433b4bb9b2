// Package gateway is the local HTTP listener through which hook scripts
// report token usage.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/j-veylop/claude-usage-dashboard/internal/logger"
	"github.com/j-veylop/claude-usage-dashboard/internal/metrics"
	"github.com/j-veylop/claude-usage-dashboard/internal/models"
)

const maxBodyBytes = 1 << 20

// Response bodies. Hook scripts print them verbatim.
const (
	msgOK           = "ok"
	msgUnauthorized = "Unauthorized"
	msgRateLimited  = "Rate limit exceeded"
	msgBadJSON      = "Invalid JSON body"
	msgInternal     = "Internal server error"
)

// TokenStore persists accepted reports. *db.DB implements it.
type TokenStore interface {
	StoreTokenSnapshot(ctx context.Context, report models.TokenReport) error
}

// Notifier is told about every stored report.
type Notifier interface {
	TokensUpdated(report models.TokenReport)
}

// Deps holds all dependencies for the gateway router.
type Deps struct {
	Store    TokenStore
	Notifier Notifier
	Limiter  *SlidingWindow
	Metrics  *metrics.Metrics
	Secret   string
}

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps Deps) http.Handler {
	if deps.Limiter == nil {
		deps.Limiter = NewSlidingWindow(DefaultMaxRequests, DefaultWindow)
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(deps.Metrics))

	h := &tokensHandler{store: deps.Store, notifier: deps.Notifier, metrics: deps.Metrics}
	requireSecret := authMiddleware(deps.Secret, deps.Metrics)

	r.Get("/api/v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, msgOK)
	})

	r.With(requireSecret, rateLimitMiddleware(deps.Limiter, deps.Metrics)).
		Post("/api/v1/tokens", h.reportTokens)

	if deps.Metrics != nil {
		// Only health is public.
		r.With(requireSecret).Get("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
		r.With(requireSecret).Get("/api/v1/metrics", deps.Metrics.Handler())
	}

	return r
}

type tokensHandler struct {
	store    TokenStore
	notifier Notifier
	metrics  *metrics.Metrics
}

func (h *tokensHandler) reportTokens(w http.ResponseWriter, r *http.Request) {
	var report models.TokenReport
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&report); err != nil {
		h.metrics.IncTokenReport(metrics.ReportBadJSON)
		writeText(w, http.StatusBadRequest, msgBadJSON)
		return
	}

	if err := validateReport(&report); err != nil {
		h.metrics.IncTokenReport(metrics.ReportInvalid)
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.StoreTokenSnapshot(r.Context(), report); err != nil {
		h.metrics.IncTokenReport(metrics.ReportStorageError)
		logger.Error("failed to store token snapshot",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeText(w, http.StatusInternalServerError, msgInternal)
		return
	}

	h.metrics.IncTokenReport(metrics.ReportAccepted)
	h.metrics.AddReportedTokens(report.TotalTokens())
	if h.notifier != nil {
		h.notifier.TokensUpdated(report)
	}
	writeText(w, http.StatusOK, msgOK)
}

// authMiddleware rejects requests without the bearer secret.
func authMiddleware(secret string, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checkAuth(r, secret) {
				m.IncAuthFailure()
				writeText(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware enforces the sliding window. Only authenticated
// requests reach it.
func rateLimitMiddleware(l *SlidingWindow, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := l.Allow()
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.Remaining()))
			if !allowed {
				m.IncRateLimitRejection()
				writeText(w, http.StatusTooManyRequests, msgRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestIDMiddleware ensures every request has an X-Request-ID.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs each request and records it in the HTTP metrics under
// its route pattern.
func requestLogger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveRequest(routePattern(r), status, elapsed)

			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"bytes", ww.BytesWritten(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

