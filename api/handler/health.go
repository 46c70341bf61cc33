package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapesome/scrapesome/models"
	"github.com/scrapesome/scrapesome/render"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Health returns a handler for GET /api/v1/health. It reports browser pool
// saturation so orchestrators can route around a busy instance.
func Health(rd *render.Renderer, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := rd.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages >= stats.MaxPages {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
