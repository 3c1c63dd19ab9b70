package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/dashboard"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/summary"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/task"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-bulletin-go/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request at info level, server errors at error level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", lrw.size,
			}
			if status >= http.StatusInternalServerError {
				logger.Errorw("http request", kv...)
				return
			}
			logger.Infow("http request", kv...)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Pinger reports database reachability; *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Registrar mounts its own routes.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Logger     *zap.SugaredLogger
	Config     config.Config
	DB         Pinger
	Users      *user.Service
	Tasks      *task.Service
	Summarizer summary.Summarizer
	// Slack is nil when the integration is not configured.
	Slack Registrar
}

// RegisterRoutes mounts every endpoint on a ServeMux and wraps it with the
// middleware chain.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	showDetail := !d.Config.Production()

	mux.HandleFunc("GET /health", healthHandler(d))
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "ok",
			"message":   "API is running",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	resolve := user.Middleware(d.Users, d.Logger)
	task.NewHandler(d.Tasks, d.Logger, showDetail).Register(mux, resolve)

	users := user.NewHandler(d.Users, d.Logger, showDetail)
	mux.Handle("GET /api/users/me", resolve(http.HandlerFunc(users.Me)))
	mux.Handle("PUT /api/users/me/preferences", resolve(http.HandlerFunc(users.UpdatePreferences)))

	dashboard.NewHandler(d.Tasks, d.Summarizer, d.Logger, showDetail).Register(mux)

	if d.Slack != nil {
		d.Slack.Register(mux)
	} else {
		mux.HandleFunc("/slack/", func(w http.ResponseWriter, r *http.Request) {
			utilities.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error":   "Slack integration not configured",
				"message": "Please configure SLACK_BOT_TOKEN and SLACK_SIGNING_SECRET",
			})
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		utilities.WriteError(w, http.StatusNotFound, "Route not found")
	})

	limiter := NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst, d.Logger)
	var h http.Handler = metrics.InstrumentHandler(mux)
	h = limiter.Handler(h)
	h = CORSMiddleware(d.Config.CORSOrigins)(h)
	h = SecurityHeadersMiddleware()(h)
	h = LoggingMiddleware(d.Logger)(h)
	h = RequestIDMiddleware()(h)
	return h
}

func healthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, db, code := "ok", "connected", http.StatusOK
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				d.Logger.Warnw("health check ping failed", "err", err)
				status, db, code = "degraded", "disconnected", http.StatusServiceUnavailable
			}
		}
		utilities.WriteJSON(w, code, map[string]string{
			"status":      status,
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"environment": d.Config.Env,
			"database":    db,
		})
	}
}
