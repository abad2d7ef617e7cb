package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// livenessText is returned to plain (non-upgrade) requests on "/".
const livenessText = "Chat Server is Running"

// HandleRoot answers plain requests with a liveness text and hands WebSocket
// upgrade requests to HandleWebSocket, rate limited per IP when an upgrade
// limiter is configured.
func HandleRoot(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	var ws http.Handler = HandleWebSocket(deps, upgrader)
	if deps.UpgradeLimiter != nil {
		ws = deps.UpgradeLimiter.Middleware(ws)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			ws.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := io.WriteString(w, livenessText); err != nil {
			logx.Warn("Failed to write liveness response", "error", err.Error())
		}
	}
}

// HandleWebSocket upgrades the connection and runs the client's pumps.
// It returns when the connection is closed.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// the upgrader has already answered with an HTTP error
			logx.Warn("Failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		client := chat.NewClient(deps.Hub, conn)

		if err := deps.Hub.Register(client); err != nil {
			logx.Warn("WebSocket connection rejected: hub closed.", "conn_id", client.ID)
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, errs.NewError(errs.ErrShuttingDown).Message)
			if err := conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(time.Second)); err != nil {
				logx.Debug("Failed to send close frame", "conn_id", client.ID, "error", err.Error())
			}
			if err := conn.Close(); err != nil {
				logx.Debug("Client connection close error", "conn_id", client.ID, "error", err.Error())
			}
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established", "conn_id", client.ID)

		client.ReadPump()
	}
}
