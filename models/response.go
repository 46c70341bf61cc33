package models

// FetchResult is the orchestrator's return value. Failure is always encoded
// in Error with empty Data; the orchestrator never returns a Go error to
// its caller.
type FetchResult struct {
	// Data is the formatted page content. Empty only when every attempt
	// across both fetch paths failed.
	Data string `json:"data"`

	// SourceMethod records which path produced the content: "http" or
	// "rendered". When both paths failed it is "rendered", the terminal
	// attempt.
	SourceMethod string `json:"source_method"`

	// StatusCode is the HTTP status of the winning HTTP attempt. Zero for
	// rendered results.
	StatusCode int `json:"status_code,omitempty"`

	// Error is populated only when the fetch failed.
	Error *ErrorDetail `json:"error,omitempty"`

	// RawHTML is the unformatted HTML from the winning path. Kept for
	// metadata extraction by the API layer; not serialized.
	RawHTML string `json:"-"`
}

// Failed reports whether every attempt across both paths failed.
func (r *FetchResult) Failed() bool {
	return r.Error != nil
}

// FetchResponse is the response for POST /api/v1/fetch. It wraps the
// orchestrator's FetchResult with page metadata and operational info.
type FetchResponse struct {
	// Success indicates whether any fetch path produced usable content.
	Success bool `json:"success"`

	// Data is the formatted content in the requested output format.
	Data string `json:"data"`

	// SourceMethod is "http" or "rendered".
	SourceMethod string `json:"source_method"`

	// StatusCode is the HTTP status from the winning HTTP attempt, if any.
	StatusCode int `json:"status_code,omitempty"`

	// Metadata contains extracted page metadata.
	Metadata Metadata `json:"metadata"`

	// Links contains internal and external links extracted from the page.
	Links LinksResult `json:"links"`

	// Images contains image src and alt text extracted from the page.
	Images []Image `json:"images"`

	// OGMetadata contains Open Graph meta tags from the page.
	OGMetadata OGMetadata `json:"og_metadata"`

	// Tokens provides token estimates before and after formatting.
	Tokens TokenInfo `json:"tokens"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// LinksResult separates extracted links into internal and external groups.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Link represents a hyperlink extracted from the page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// Image represents an image element extracted from the page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// OGMetadata contains Open Graph protocol meta tags.
type OGMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
}

// Metadata holds page-level information extracted during fetching.
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	Author      string `json:"author,omitempty"`
	Language    string `json:"language,omitempty"`
	SourceURL   string `json:"source_url"`
}

// TokenInfo provides before/after token estimates to show formatting efficacy.
type TokenInfo struct {
	// OriginalEstimate is the estimated token count of the raw HTML.
	OriginalEstimate int `json:"original_estimate"`

	// FormattedEstimate is the estimated token count of the formatted output.
	FormattedEstimate int `json:"formatted_estimate"`

	// SavingsPercent is the percentage of tokens removed (0-100).
	SavingsPercent float64 `json:"savings_percent"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// FetchMs is the time spent fetching (HTTP attempts plus any render).
	FetchMs int64 `json:"fetch_ms"`

	// FormatMs is the time spent extracting content and converting formats.
	FormatMs int64 `json:"format_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
