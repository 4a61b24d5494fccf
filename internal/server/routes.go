package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/api/version", s.handleVersion)

	// Public voting and status routes
	s.echo.POST("/api/vote", s.handleVote)
	s.echo.GET("/api/voting-data", s.handleVotingData)
	s.echo.GET("/api/hours", s.handleHours)
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.GET("/api/tv-controls", s.handleTvControls)

	// Display WebSocket (TVs poll /api/voting-data as a fallback)
	s.echo.GET("/ws/display", s.handleDisplayWS)

	// Admin session routes
	s.echo.POST("/admin/login", s.handleAdminLogin)
	s.echo.POST("/admin/logout", s.handleAdminLogout, s.requireAdmin)

	// Admin API (session-authenticated)
	s.echo.GET("/api/admin/data", s.handleAdminData, s.requireAdmin)
	s.echo.GET("/api/admin/voting-data", s.handleVotingData, s.requireAdmin)
	s.echo.POST("/api/admin/reset-votes", s.handleResetVotes, s.requireAdmin)
	s.echo.POST("/api/admin/set-votes", s.handleSetVotes, s.requireAdmin)
	s.echo.POST("/api/admin/restaurant-status", s.handleSetOverride, s.requireAdmin)
	s.echo.GET("/api/admin/hours", s.handleHours, s.requireAdmin)
	s.echo.POST("/api/admin/hours", s.handleSetHours, s.requireAdmin)
	s.echo.POST("/api/admin/closures", s.handleUpsertClosure, s.requireAdmin)
	s.echo.DELETE("/api/admin/closures/:date", s.handleDeleteClosure, s.requireAdmin)
	s.echo.POST("/api/admin/tv-controls", s.handleSetTvControls, s.requireAdmin)
}
