package handlers

import (
	"public-order-engine/internal/middleware"
	"public-order-engine/internal/session"

	"go.uber.org/zap"
)

type Handler struct {
	Session   *session.Session
	Logger    *zap.Logger
	Telemetry *middleware.Telemetry
	// Reachable reports the connectivity watcher's view; nil when disabled.
	Reachable func() bool
}
