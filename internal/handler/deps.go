package handler

import (
	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
	"chatrelay/internal/pkg/limiter"
)

// AppDeps bundles what the HTTP layer needs from the rest of the relay.
type AppDeps struct {
	Hub            *chat.Hub
	Config         *configs.AppConfig
	Store          store.Store
	UpgradeLimiter *limiter.IPRateLimiter
}
