package main

import (
	"github.com/ashureev/portfolio-chat/internal/config"
	"github.com/ashureev/portfolio-chat/internal/middleware"
	"github.com/ashureev/portfolio-chat/internal/session"
	"github.com/ashureev/portfolio-chat/internal/store"
	"github.com/ashureev/portfolio-chat/internal/widget"
)

func newWidgetHandler(sessions *session.Registry, repo store.Repository, limiter *middleware.RateLimiter, cfg *config.Config) *widget.Handler {
	origin := ""
	if origins := cfg.AllowedOrigins(); len(origins) == 1 {
		origin = origins[0]
	}
	return widget.NewHandler(sessions, repo, limiter, origin, cfg.IsDevelopment())
}
