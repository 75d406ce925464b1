// Package adminapi is the read-only Gin HTTP observability plane:
// operator login, health checks, rendezvous-engine status, and
// Prometheus metrics. It never mutates tunnel-user or session state.
package adminapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voidrelay/tunnelbroker/internal/config"
	"github.com/voidrelay/tunnelbroker/internal/metrics"
	"github.com/voidrelay/tunnelbroker/internal/middleware"
	"github.com/voidrelay/tunnelbroker/internal/utils"
)

// metricsSource is the engine surface the background gauge-refresh
// loop needs, beyond the per-user view engine already exposes.
type metricsSource interface {
	engine
	OnlineCount() int
	TotalPendingSessions() int
	TotalActiveListeners() int
}

// NewRouter builds the admin Gin engine, wiring every handler in
// SPEC_FULL.md §4.10 onto its own port, distinct from the control and
// tunnel ports.
func NewRouter(cfg *config.ServerConfig, server metricsSource) *gin.Engine {
	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL, cfg.JWTRefreshTokenTTL)

	authHandler := NewAuthHandler(cfg, jwtManager)
	healthHandler := NewHealthHandler(server)
	statusHandler := NewStatusHandler(server)

	r := gin.Default()

	r.GET("/health", healthHandler.Health)
	r.GET("/ping", healthHandler.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(jwtManager))
		authed.GET("/auth/me", authHandler.Me)

		status := api.Group("/status")
		status.Use(middleware.AuthMiddleware(jwtManager))
		status.GET("/users", statusHandler.Users)
		status.GET("/sessions", statusHandler.Sessions)
	}

	return r
}

// RefreshMetrics periodically samples the engine's live state into
// the Prometheus gauges until ctx is cancelled.
func RefreshMetrics(ctx context.Context, server metricsSource) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.OnlineUsers.Set(float64(server.OnlineCount()))
			metrics.PendingSessions.Set(float64(server.TotalPendingSessions()))
			metrics.ActiveListeners.Set(float64(server.TotalActiveListeners()))
		}
	}
}
