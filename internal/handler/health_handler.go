package handler

import (
	"context"
	"net/http"
	"time"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/resp"
)

const healthCheckTimeout = 3 * time.Second

// HealthStatus is the data section of the /health response.
type HealthStatus struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Store       string `json:"store"`
	Connections int    `json:"connections"`
	OnlineUsers int    `json:"onlineUsers"`
}

// HandleHealth reports the relay's state and whether the backing store answers a ping.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		status := HealthStatus{
			Status:      "ok",
			Service:     "Chat Relay",
			Store:       "pass",
			Connections: deps.Hub.ClientCount(),
			OnlineUsers: len(deps.Hub.OnlineUsers()),
		}

		if err := deps.Store.Ping(ctx); err != nil {
			logx.Error(err, "Health check: store ping failed")
			status.Status = "degraded"
			status.Store = "fail"
			resp.RespondErrorWithData(w, r, errs.NewError(errs.ErrStoreUnavailable), status)
			return
		}

		resp.RespondSuccess(w, r, status)
	}
}
