/*
Package handler hosts the relay over HTTP.

It wires the chi router with logging, CORS and recovery middleware, serves
the WebSocket upgrade together with a plain-text liveness answer on "/", and
exposes health and Prometheus endpoints.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"chatrelay/internal/metrics"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

// Router builds the HTTP routing table for the relay.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	if deps.UpgradeLimiter != nil {
		deps.UpgradeLimiter.OnReject(func(string) {
			metrics.RateLimitHits.WithLabelValues("ws").Inc()
		})
	}

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// non-browser clients send no Origin header
			if origin == "" || deps.Config.IsDevelopment() {
				return true
			}

			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			customErr := errs.NewError(errs.ErrInvalidParams)
			if status == http.StatusForbidden {
				customErr = errs.NewError(errs.ErrOriginNotAllowed, r.Header.Get("Origin"))
			}
			logx.Debug("WebSocket handshake failed", "status", status, "reason", reason.Error())
			resp.RespondError(w, r, customErr)
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	corsOptions := cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}
	if len(corsAllowedOrigins) == 0 {
		// rs/cors treats an empty list as "*"
		corsOptions.AllowOriginFunc = func(string) bool { return false }
	}
	r.Use(cors.New(corsOptions).Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger(observeRequest))
	r.Use(middleware.Recoverer)

	r.Get("/", HandleRoot(deps, wsUpgrader))
	r.Get("/health", HandleHealth(deps))

	if deps.Config.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// observeRequest feeds finished requests into the HTTP metrics, labelled by route pattern.
func observeRequest(r *http.Request, status int, latency time.Duration) {
	path := "unmatched"
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			path = pattern
		}
	}
	metrics.ObserveHTTP(r.Method, path, status, latency)
}
