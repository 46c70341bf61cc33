package models

// Source methods recorded in FetchResult.SourceMethod.
const (
	SourceHTTP     = "http"
	SourceRendered = "rendered"
)

// FetchRequest is the input to one fetch operation. It is the payload for
// POST /api/v1/fetch and the orchestrator's immutable per-call input.
type FetchRequest struct {
	// URL is the target page to fetch. Required.
	URL string `json:"url" binding:"required,url"`

	// OutputFormat controls the response data format.
	// Allowed: "markdown" (default), "html", "text", "json".
	OutputFormat string `json:"output_format,omitempty" binding:"omitempty,oneof=markdown html text json"`

	// ExtractMode controls content extraction before format conversion.
	// "readability" (default): extract the main body first.
	// "raw": pass the fetched HTML directly to format conversion.
	ExtractMode string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability raw"`

	// ForceRender skips the HTTP path entirely and fetches via the
	// headless browser unconditionally.
	ForceRender bool `json:"force_render,omitempty"`

	// MaxRetries is the number of additional HTTP attempts after the first
	// one fails with a transport error or a 403 (total attempts are
	// MaxRetries+1). Unset means the server default (SCRAPESOME_MAX_RETRIES,
	// 2 unless overridden).
	MaxRetries *int `json:"max_retries,omitempty" binding:"omitempty,min=0,max=10"`

	// Timeout is the per-attempt deadline in seconds for each HTTP request
	// and for the browser render. Zero means the server default
	// (SCRAPESOME_DEFAULT_TIMEOUT, 30s unless overridden). Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Headers are extra request headers for the HTTP path. They override
	// the built-in Chrome-like defaults on key collision.
	Headers map[string]string `json:"headers,omitempty"`

	// CSSSelector optionally narrows the fetched HTML to the matched
	// elements' outer HTML before formatting.
	CSSSelector string `json:"css_selector,omitempty"`

	// MaxAge enables the response cache for this request: a cached entry
	// younger than MaxAge milliseconds is returned without fetching.
	// 0 disables caching.
	MaxAge int `json:"max_age_ms,omitempty"`
}

// Defaults applies the request-level defaults. Retry budget and timeout
// are operational policy: their defaults come from server configuration
// and the orchestrator fills them when the request leaves them unset.
func (r *FetchRequest) Defaults() {
	if r.OutputFormat == "" {
		r.OutputFormat = "markdown"
	}
	if r.ExtractMode == "" {
		r.ExtractMode = "readability"
	}
}
