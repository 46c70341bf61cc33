package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scrapesome/scrapesome/cache"
	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/fetch"
	"github.com/scrapesome/scrapesome/format"
	"github.com/scrapesome/scrapesome/models"
)

// Fetch returns a handler for POST /api/v1/fetch.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults, clamp timeout.
//  2. Fetcher.Fetch → formatted data + raw HTML  (records fetch_ms)
//  3. Extract metadata/links/images/OG from the raw HTML (records format_ms)
//  4. Fill Timing and token estimates, return 200 (or mapped error status).
func Fetch(f *fetch.Fetcher, cfg *config.Config, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.FetchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.FetchResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()
		if maxSec := int(cfg.Fetch.MaxTimeout.Seconds()); req.Timeout > maxSec {
			req.Timeout = maxSec
		}

		// ── 1b. Cache lookup ────────────────────────────────────────
		cacheKey := cache.Key(&req)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 2. Fetch ────────────────────────────────────────────────
		fetchStart := time.Now()
		result := f.Fetch(c.Request.Context(), &req)
		fetchMs := time.Since(fetchStart).Milliseconds()

		if result.Failed() {
			c.JSON(statusFor(result.Error.Code), models.FetchResponse{
				Success:      false,
				SourceMethod: result.SourceMethod,
				Error:        result.Error,
				Timing: models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
					FetchMs: fetchMs,
				},
			})
			return
		}

		// ── 3. Page metadata from the winning HTML ──────────────────
		formatStart := time.Now()
		article, _ := format.ExtractContent(result.RawHTML, req.URL)
		pageMeta := format.CollectPageMeta(result.RawHTML, req.URL)
		formatMs := time.Since(formatStart).Milliseconds()

		// ── 4. Assemble response ────────────────────────────────────
		resp := &models.FetchResponse{
			Success:      true,
			Data:         result.Data,
			SourceMethod: result.SourceMethod,
			StatusCode:   result.StatusCode,
			Metadata: models.Metadata{
				Title:       article.Title,
				Description: article.Excerpt,
				SiteName:    article.SiteName,
				Author:      article.Byline,
				Language:    article.Language,
				SourceURL:   req.URL,
			},
			Links:      pageMeta.Links,
			Images:     pageMeta.Images,
			OGMetadata: pageMeta.OG,
			Tokens:     format.TokenStats(result.RawHTML, result.Data),
			Timing: models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				FetchMs:  fetchMs,
				FormatMs: formatMs,
			},
		}

		// ── 5. Cache store ──────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// statusFor maps fetch error codes to HTTP status codes.
func statusFor(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeTransport, models.ErrCodeHTTPStatus, models.ErrCodeForbidden, models.ErrCodeRender:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
