// Package fetch implements the fetch orchestrator: the decision procedure
// that chooses between a plain HTTP request and a headless-browser render,
// applies the retry policy, and hands the winning HTML to the formatter.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/models"
	"github.com/scrapesome/scrapesome/transport"
)

// Transport issues a single HTTP GET. A non-nil error means a
// transport-level failure; HTTP error statuses are carried in the Response.
type Transport interface {
	Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*transport.Response, error)
}

// Renderer fetches a page through a headless browser, fully resolving
// dynamic content before returning.
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (string, error)
}

// Formatter converts fetched HTML into the request's output format.
type Formatter interface {
	Format(html string, req *models.FetchRequest) (string, error)
}

// fetchState enumerates the orchestrator's control states. The transition
// rules live in Fetch; keeping the state explicit keeps the retry-budget
// accounting auditable.
type fetchState int

const (
	stateHTTP fetchState = iota
	stateRender
	stateDone
)

// Fetcher drives one fetch operation per call. It holds no per-call state:
// each invocation is a pure function of its input plus collaborator
// responses, so concurrent invocations need no locking.
type Fetcher struct {
	transport Transport
	renderer  Renderer
	formatter Formatter

	minContentLength int
	defaultRetries   int
	defaultTimeout   time.Duration
	backoffInitial   time.Duration
	backoffMax       time.Duration
}

// New creates a Fetcher wired to the given collaborators. cfg supplies the
// retry budget and per-attempt timeout used when a request leaves them
// unset.
func New(t Transport, r Renderer, f Formatter, cfg config.FetchConfig) *Fetcher {
	minLen := cfg.MinContentLength
	if minLen <= 0 {
		minLen = 50
	}
	defTimeout := cfg.DefaultTimeout
	if defTimeout <= 0 {
		defTimeout = 30 * time.Second
	}
	defRetries := cfg.MaxRetries
	if defRetries < 0 {
		defRetries = 0
	}
	return &Fetcher{
		transport:        t,
		renderer:         r,
		formatter:        f,
		minContentLength: minLen,
		defaultRetries:   defRetries,
		defaultTimeout:   defTimeout,
		backoffInitial:   cfg.RetryInitialBackoff,
		backoffMax:       cfg.RetryMaxBackoff,
	}
}

// Fetch runs the full fetch/retry/fallback pipeline for one request.
//
// It never returns a Go error: every failure is encoded in the result's
// Error field with empty Data. State transitions:
//
//	stateHTTP   --success+sufficient--------------> stateDone
//	stateHTTP   --success+insufficient------------> stateRender  (no retry consumed)
//	stateHTTP   --transport failure / 403---------> stateHTTP    (while budget remains)
//	stateHTTP   --transport failure / 403, budget exhausted--> stateRender
//	stateHTTP   --other non-2xx status------------> stateRender  (no retry consumed)
//	stateRender --success-------------------------> stateDone
//	stateRender --failure-------------------------> terminal failure result
//
// ForceRender starts in stateRender, so the Transport is never called.
// Cancellation of ctx aborts the pipeline promptly without further retries
// or escalation.
func (f *Fetcher) Fetch(ctx context.Context, req *models.FetchRequest) *models.FetchResult {
	timeout := f.defaultTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}
	budget := f.defaultRetries
	if req.MaxRetries != nil {
		budget = *req.MaxRetries
	}

	state := stateHTTP
	if req.ForceRender {
		state = stateRender
	}

	retry := retryState{}
	bo := f.newBackoff()

	var (
		html       string
		source     string
		statusCode int
	)

	for state != stateDone {
		// Never start a new attempt on a dead context.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failure(source, models.NewFetchError(
				models.ErrCodeTimeout, "fetch canceled", ctxErr,
			))
		}

		switch state {
		case stateHTTP:
			source = models.SourceHTTP

			resp, err := f.transport.Get(ctx, req.URL, req.Headers, timeout)
			out := classify(resp, err)
			retry.attemptsMade++
			retry.last = out

			switch out.kind {
			case outcomeSuccess:
				if sufficient(out.body, f.minContentLength) {
					html = out.body
					statusCode = out.statusCode
					state = stateDone
					continue
				}
				// Insufficient content is not the transport/403 failure
				// class: escalate immediately without consuming retry
				// budget and without further HTTP attempts.
				slog.Debug("http content below threshold, escalating to render",
					"url", req.URL, "length", len(out.body),
				)
				state = stateRender

			case outcomeRetryable:
				if retry.attemptsMade <= budget {
					slog.Debug("retryable http failure, retrying",
						"url", req.URL,
						"attempt", retry.attemptsMade,
						"status", out.statusCode,
						"error", out.err,
					)
					if !f.sleep(ctx, bo.NextBackOff()) {
						return failure(source, models.NewFetchError(
							models.ErrCodeTimeout, "fetch canceled", ctx.Err(),
						))
					}
					continue // stay in stateHTTP
				}
				slog.Info("http retries exhausted, escalating to render",
					"url", req.URL,
					"attempts", retry.attemptsMade,
					"lastStatus", retry.last.statusCode,
					"lastError", retry.last.err,
				)
				state = stateRender

			case outcomeHTTPError:
				// Non-403 error statuses are not retried.
				slog.Info("http error status, escalating to render",
					"url", req.URL, "status", out.statusCode,
				)
				state = stateRender
			}

		case stateRender:
			source = models.SourceRendered
			statusCode = 0

			rendered, err := f.renderer.Render(ctx, req.URL, timeout)
			if err != nil {
				// The render path is terminal: its failure reason wins
				// over whatever the HTTP path reported.
				slog.Warn("render failed", "url", req.URL, "error", err)
				return failure(source, renderError(err))
			}
			html = rendered
			state = stateDone
		}
	}

	data, err := f.formatter.Format(html, req)
	if err != nil {
		return failure(source, formatError(err))
	}

	return &models.FetchResult{
		Data:         data,
		SourceMethod: source,
		StatusCode:   statusCode,
		RawHTML:      html,
	}
}

// newBackoff builds the wait-interval source for HTTP retries. The state
// machine owns the control flow, so the backoff is consulted only for
// sleep durations, never for stop decisions.
func (f *Fetcher) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	if f.backoffInitial > 0 {
		bo.InitialInterval = f.backoffInitial
	}
	if f.backoffMax > 0 {
		bo.MaxInterval = f.backoffMax
	}
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// sleep waits for d or until ctx is canceled. Returns false on cancellation.
func (f *Fetcher) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// failure builds a terminal failure result. Data stays empty; the source
// method records the path of the final attempt.
func failure(source string, err *models.FetchError) *models.FetchResult {
	if source == "" {
		source = models.SourceRendered
	}
	return &models.FetchResult{
		SourceMethod: source,
		Error:        err.ToDetail(),
	}
}

// renderError normalises a renderer failure into a FetchError, preserving
// codes the renderer already assigned.
func renderError(err error) *models.FetchError {
	if fe, ok := err.(*models.FetchError); ok {
		return fe
	}
	return models.NewFetchError(models.ErrCodeRender, "browser render failed", err)
}

// formatError normalises a formatter failure into a FetchError.
func formatError(err error) *models.FetchError {
	if fe, ok := err.(*models.FetchError); ok {
		return fe
	}
	return models.NewFetchError(models.ErrCodeFormat, "formatting failed", err)
}
