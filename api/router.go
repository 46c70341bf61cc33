// Package api wires the HTTP surface: routes, auth, and rate limiting.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapesome/scrapesome/api/handler"
	"github.com/scrapesome/scrapesome/api/middleware"
	"github.com/scrapesome/scrapesome/cache"
	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/fetch"
	"github.com/scrapesome/scrapesome/render"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(f *fetch.Fetcher, rd *render.Renderer, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(rd, startTime))

	// Protected group — auth + rate limit. Auth self-gates on its config.
	protected := v1.Group("")
	protected.Use(middleware.Auth(cfg.Auth))
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Fetch
	protected.POST("/fetch", handler.Fetch(f, cfg, cc))

	return r
}
