package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/models"
)

// Auth enforces API-key authentication when enabled in config. Keys are
// accepted from the X-API-Key header or an Authorization bearer token.
// Disabled auth (or an empty key list) passes every request through.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	if !cfg.Enabled || len(cfg.APIKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	valid := make(map[string]bool, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			valid[k] = true
		}
	}

	return func(c *gin.Context) {
		key := clientKey(c)
		switch {
		case key == "":
			reject(c, "missing API key: set X-API-Key or Authorization: Bearer <key>")
		case !valid[key]:
			reject(c, "invalid API key")
		default:
			c.Next()
		}
	}
}

// clientKey reads the caller's API key. Also used by the rate limiter to
// bucket authenticated callers by key instead of IP.
func clientKey(c *gin.Context) string {
	if k := c.GetHeader("X-API-Key"); k != "" {
		return k
	}
	if bearer, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

func reject(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.FetchResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
