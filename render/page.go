package render

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/scrapesome/scrapesome/models"
	"github.com/ysmood/gson"
)

// Render navigates a pooled page to targetURL, waits for dynamic content to
// settle, and returns the fully rendered HTML. The returned HTML reflects
// the page after JavaScript execution; callers do no further waiting.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard          – hard deadline on the entire operation
//  2. Acquire page           – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup         – about:blank + return to pool (leak prevention)
//  4. Stealth injection      – mask navigator.webdriver etc. (before navigation!)
//  5. Extra headers          – Google Referer for bot-wall avoidance
//  6. Context binding        – propagate timeout to all Rod operations
//  7. Navigate               – triggers page load
//  8. Wait                   – DOM stable
//  9. Extract                – page.HTML()
//
// Steps 4-5 MUST happen before step 7: stealth JS and headers only take
// effect for navigations that happen after they are installed. Step 3's
// about:blank uses the ORIGINAL page reference (without request context),
// so cleanup succeeds even if the request context has expired.
func (r *Renderer) Render(ctx context.Context, targetURL string, timeout time.Duration) (string, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// ── 2. Acquire page from pool ─────────────────────────────────────
	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	page, acquireErr := r.pagePool.Get(func() (*rod.Page, error) {
		return r.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return "", models.NewFetchError(
			models.ErrCodeRender,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
		}
		r.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ──────────────────────────────────────────
	if r.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 5. Google Referer header ─────────────────────────────────────
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			}),
		}.Call(page)
	}

	// ── 6. Bind request context to page ───────────────────────────────
	p := page.Context(ctx)

	// ── 7. Navigate ───────────────────────────────────────────────────
	if navErr := p.Navigate(targetURL); navErr != nil {
		return "", categorizeError(navErr, "navigation to target URL failed")
	}

	// ── 8. Wait for the DOM to settle ─────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}

	// ── 9. Extract rendered HTML ──────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return "", categorizeError(htmlErr, "failed to extract page HTML")
	}

	return rawHTML, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed FetchErrors so callers can
// distinguish timeouts from navigation failures.
func categorizeError(err error, msg string) *models.FetchError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewFetchError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewFetchError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewFetchError(models.ErrCodeRender, msg, err)
	}
}
