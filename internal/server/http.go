package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Val17-ui/CACESmodule-sub000/internal/config"
	"github.com/Val17-ui/CACESmodule-sub000/internal/logging"
	httperrors "github.com/Val17-ui/CACESmodule-sub000/pkg/http/errors"
)

// WSUpgrader handles WebSocket upgrades for the event stream. Origins are not checked;
// the bearer token guard runs before the upgrade.
var WSUpgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// RouteRegistrar mounts a feature's routes, wrapping each handler with the guard.
type RouteRegistrar interface {
	Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler)
}

// Routes are the feature handlers served next to the base endpoints.
type Routes struct {
	Features []RouteRegistrar
	Events   http.Handler
	Guard    func(http.Handler) http.Handler
}

// NewHTTPServer wires base routes (health, metrics, ping) and the feature routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, routes Routes) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewMux(logger, pool, redis, routes),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewMux builds the request router. pool and redis are only used by /v1/ping.
func NewMux(logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, routes Routes) http.Handler {
	mux := http.NewServeMux()
	guard := routes.Guard
	if guard == nil {
		guard = func(h http.Handler) http.Handler { return h }
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			logger := logging.FromContext(r.Context())
			logger.Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeUpstreamError, "upstream error")
			return
		}
		httperrors.RespondJSON(w, http.StatusOK, map[string]bool{"pong": true})
	})

	for _, feature := range routes.Features {
		feature.Register(mux, guard)
	}

	if routes.Events != nil {
		mux.Handle("GET /ws/events", guard(routes.Events))
	}

	return withRequestLogger(mux, logger)
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack hands the connection to the WebSocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// withRequestLogger stores a request-scoped logger in the context and logs completion.
func withRequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logger.With().
			Str("request_id", uuid.NewString()).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))

		reqLogger.Debug().
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}
