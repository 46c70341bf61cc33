package fetch

import (
	"unicode/utf8"

	"github.com/scrapesome/scrapesome/transport"
)

// outcomeKind classifies a single HTTP attempt for the retry policy.
type outcomeKind int

const (
	// outcomeSuccess is a 2xx response; sufficiency is checked next.
	outcomeSuccess outcomeKind = iota

	// outcomeRetryable is a transport-level failure (connection, TLS,
	// timeout) or a 403 response. Both consume retry budget and are
	// treated identically.
	outcomeRetryable

	// outcomeHTTPError is any other non-2xx status. Never retried;
	// escalates straight to rendering.
	outcomeHTTPError
)

// attemptOutcome is the classified result of one Transport call. It is
// produced once per attempt and never retained beyond the attempt that
// produced it, except as retryState.last, which names the final failure in
// the retry-exhaustion log.
type attemptOutcome struct {
	kind       outcomeKind
	statusCode int
	body       string
	err        error // transport-level cause, nil unless kind is outcomeRetryable
}

// classify maps a Transport response (or transport error) onto the retry
// policy's failure classes.
func classify(resp *transport.Response, err error) attemptOutcome {
	if err != nil {
		return attemptOutcome{kind: outcomeRetryable, err: err}
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return attemptOutcome{kind: outcomeSuccess, statusCode: resp.StatusCode, body: resp.Body}
	case resp.StatusCode == 403:
		return attemptOutcome{kind: outcomeRetryable, statusCode: resp.StatusCode, body: resp.Body}
	default:
		return attemptOutcome{kind: outcomeHTTPError, statusCode: resp.StatusCode, body: resp.Body}
	}
}

// retryState tracks the HTTP retry budget for one orchestrator invocation.
// It is discarded at call end; nothing is shared across calls.
type retryState struct {
	attemptsMade int
	last         attemptOutcome
}

// sufficient reports whether an HTTP body is long enough to be usable.
// The check counts characters of raw HTML; bodies at or below the threshold
// are assumed to be SPA shells or bot walls and escalate to rendering.
func sufficient(body string, minLength int) bool {
	return utf8.RuneCountInString(body) > minLength
}
