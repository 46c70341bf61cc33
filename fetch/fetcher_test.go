package fetch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/scrapesome/scrapesome/config"
	"github.com/scrapesome/scrapesome/models"
	"github.com/scrapesome/scrapesome/transport"
)

// step is one scripted Transport reply.
type step struct {
	resp *transport.Response
	err  error
}

// fakeTransport replays a scripted sequence of replies. The last step
// repeats if more calls arrive than steps were scripted.
type fakeTransport struct {
	steps       []step
	calls       int
	lastTimeout time.Duration
}

func (f *fakeTransport) Get(_ context.Context, _ string, _ map[string]string, timeout time.Duration) (*transport.Response, error) {
	i := f.calls
	f.calls++
	f.lastTimeout = timeout
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	s := f.steps[i]
	return s.resp, s.err
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(_ context.Context, _ string, _ time.Duration) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

// fakeFormatter tags its input so tests can tell formatting happened.
type fakeFormatter struct{}

func (fakeFormatter) Format(html string, _ *models.FetchRequest) (string, error) {
	return "formatted:" + html, nil
}

type failingFormatter struct{}

func (failingFormatter) Format(string, *models.FetchRequest) (string, error) {
	return "", models.NewFetchError(models.ErrCodeInvalidInput, "unsupported output format", nil)
}

func testConfig() config.FetchConfig {
	return config.FetchConfig{
		MinContentLength:    50,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
	}
}

func newRequest(retries int) *models.FetchRequest {
	return &models.FetchRequest{
		URL:        "http://example.com",
		MaxRetries: &retries,
		Timeout:    5,
	}
}

func longBody() string {
	return "<html>" + strings.Repeat("content ", 100) + "</html>"
}

func ok(body string) step {
	return step{resp: &transport.Response{StatusCode: 200, Body: body}}
}

func status(code int) step {
	return step{resp: &transport.Response{StatusCode: code, Body: "error page"}}
}

func transportFail() step {
	return step{err: errors.New("connection refused")}
}

func TestFetch_SufficientHTTPContent(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok(longBody())}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(2))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if result.Data != "formatted:"+longBody() {
		t.Errorf("data not formatted from http body: %q", result.Data)
	}
	if result.SourceMethod != models.SourceHTTP {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceHTTP)
	}
	if result.StatusCode != 200 {
		t.Errorf("status code = %d, want 200", result.StatusCode)
	}
	if tr.calls != 1 {
		t.Errorf("transport calls = %d, want 1", tr.calls)
	}
	if rd.calls != 0 {
		t.Errorf("renderer called %d times, want 0", rd.calls)
	}
}

func TestFetch_ShortContentEscalatesToRender(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok("Too short")}}
	rd := &fakeRenderer{html: "<html><body>Rendered Content</body></html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(2))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if !strings.Contains(result.Data, "Rendered Content") {
		t.Errorf("data does not contain rendered content: %q", result.Data)
	}
	if result.SourceMethod != models.SourceRendered {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceRendered)
	}
	if rd.calls != 1 {
		t.Errorf("renderer called %d times, want exactly 1", rd.calls)
	}
}

func TestFetch_InsufficiencyDoesNotConsumeRetries(t *testing.T) {
	// A 200 with a short body escalates immediately: the retry budget
	// governs transport failures and 403s only.
	tr := &fakeTransport{steps: []step{ok("tiny")}}
	rd := &fakeRenderer{html: "<html>fallback</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(5))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 1 {
		t.Errorf("transport calls = %d, want 1 (no retries on short content)", tr.calls)
	}
	if rd.calls != 1 {
		t.Errorf("renderer called %d times, want 1", rd.calls)
	}
}

func TestFetch_SufficiencyThresholdBoundary(t *testing.T) {
	tests := []struct {
		name       string
		bodyLength int
		wantSource string
	}{
		{"at threshold escalates", 50, models.SourceRendered},
		{"above threshold stays http", 51, models.SourceHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{steps: []step{ok(strings.Repeat("x", tt.bodyLength))}}
			rd := &fakeRenderer{html: "<html>rendered instead</html>"}
			f := New(tr, rd, fakeFormatter{}, testConfig())

			result := f.Fetch(context.Background(), newRequest(0))

			if result.Failed() {
				t.Fatalf("unexpected error: %+v", result.Error)
			}
			if result.SourceMethod != tt.wantSource {
				t.Errorf("source method = %q, want %q", result.SourceMethod, tt.wantSource)
			}
		})
	}
}

func TestFetch_ForceRenderSkipsTransport(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok(longBody())}}
	rd := &fakeRenderer{html: "<html><body>Browser Rendered</body></html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	req := newRequest(2)
	req.ForceRender = true
	result := f.Fetch(context.Background(), req)

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 0 {
		t.Errorf("transport called %d times, want 0 with ForceRender", tr.calls)
	}
	if result.SourceMethod != models.SourceRendered {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceRendered)
	}
}

func TestFetch_ForceRenderFailureIsTerminal(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok(longBody())}}
	rd := &fakeRenderer{err: errors.New("browser crashed")}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	req := newRequest(2)
	req.ForceRender = true
	result := f.Fetch(context.Background(), req)

	if !result.Failed() {
		t.Fatal("expected failure result")
	}
	if tr.calls != 0 {
		t.Errorf("transport called %d times, want 0", tr.calls)
	}
	if result.Error.Code != models.ErrCodeRender {
		t.Errorf("error code = %q, want %q", result.Error.Code, models.ErrCodeRender)
	}
}

func TestFetch_RetriesExhaustedThenRenderFallback(t *testing.T) {
	tr := &fakeTransport{steps: []step{transportFail()}}
	rd := &fakeRenderer{html: "<html>Fallback Render</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(2))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if !strings.Contains(result.Data, "Fallback Render") {
		t.Errorf("data does not contain render fallback: %q", result.Data)
	}
	if result.SourceMethod != models.SourceRendered {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceRendered)
	}
	if tr.calls != 3 {
		t.Errorf("transport calls = %d, want 3 (maxRetries+1)", tr.calls)
	}
	if rd.calls != 1 {
		t.Errorf("renderer called %d times, want 1", rd.calls)
	}
}

func TestFetch_403RetriedThenSucceeds(t *testing.T) {
	tr := &fakeTransport{steps: []step{
		status(403),
		ok("<html><body>" + strings.Repeat("Recovered ", 50) + "</body></html>"),
	}}
	rd := &fakeRenderer{html: "<html>should not be used</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(2))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if !strings.Contains(result.Data, "Recovered") {
		t.Errorf("data does not contain recovered content: %q", result.Data)
	}
	if result.SourceMethod != models.SourceHTTP {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceHTTP)
	}
	if tr.calls != 2 {
		t.Errorf("transport calls = %d, want 2", tr.calls)
	}
	if rd.calls != 0 {
		t.Errorf("renderer called %d times, want 0", rd.calls)
	}
}

func TestFetch_403sExhaustBudgetLikeTransportFailures(t *testing.T) {
	tr := &fakeTransport{steps: []step{status(403)}}
	rd := &fakeRenderer{html: "<html>rendered after 403s</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(1))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 2 {
		t.Errorf("transport calls = %d, want 2 (maxRetries+1)", tr.calls)
	}
	if result.SourceMethod != models.SourceRendered {
		t.Errorf("source method = %q, want %q", result.SourceMethod, models.SourceRendered)
	}
}

func TestFetch_ErrorStatusEscalatesWithoutRetry(t *testing.T) {
	for _, code := range []int{404, 500, 502} {
		tr := &fakeTransport{steps: []step{status(code)}}
		rd := &fakeRenderer{html: "<html>rendered instead</html>"}
		f := New(tr, rd, fakeFormatter{}, testConfig())

		result := f.Fetch(context.Background(), newRequest(3))

		if result.Failed() {
			t.Fatalf("status %d: unexpected error: %+v", code, result.Error)
		}
		if tr.calls != 1 {
			t.Errorf("status %d: transport calls = %d, want 1 (no retry budget consumed)", code, tr.calls)
		}
		if rd.calls != 1 {
			t.Errorf("status %d: renderer called %d times, want 1", code, rd.calls)
		}
		if result.SourceMethod != models.SourceRendered {
			t.Errorf("status %d: source method = %q, want %q", code, result.SourceMethod, models.SourceRendered)
		}
	}
}

func TestFetch_AllPathsFail(t *testing.T) {
	tr := &fakeTransport{steps: []step{transportFail()}}
	rd := &fakeRenderer{err: errors.New("render fail")}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(1))

	if !result.Failed() {
		t.Fatal("expected failure result")
	}
	if result.Data != "" {
		t.Errorf("data = %q, want empty on total failure", result.Data)
	}
	if result.SourceMethod != models.SourceRendered {
		t.Errorf("source method = %q, want %q (terminal attempt)", result.SourceMethod, models.SourceRendered)
	}
	if result.Error.Code != models.ErrCodeRender {
		t.Errorf("error code = %q, want the renderer's failure reason %q", result.Error.Code, models.ErrCodeRender)
	}
	if tr.calls != 2 {
		t.Errorf("transport calls = %d, want 2", tr.calls)
	}
}

func TestFetch_RendererErrorCodePreserved(t *testing.T) {
	rd := &fakeRenderer{err: models.NewFetchError(models.ErrCodeTimeout, "navigation timed out", context.DeadlineExceeded)}
	f := New(&fakeTransport{steps: []step{transportFail()}}, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(0))

	if !result.Failed() {
		t.Fatal("expected failure result")
	}
	if result.Error.Code != models.ErrCodeTimeout {
		t.Errorf("error code = %q, want %q", result.Error.Code, models.ErrCodeTimeout)
	}
}

func TestFetch_CanceledBeforeStart(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok(longBody())}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := f.Fetch(ctx, newRequest(2))

	if !result.Failed() {
		t.Fatal("expected failure result on canceled context")
	}
	if tr.calls != 0 {
		t.Errorf("transport calls = %d, want 0 after cancellation", tr.calls)
	}
	if rd.calls != 0 {
		t.Errorf("renderer called %d times, want 0 after cancellation", rd.calls)
	}
}

// cancelingTransport cancels the context from inside the first call, as a
// caller shutting down mid-fetch would.
type cancelingTransport struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancelingTransport) Get(context.Context, string, map[string]string, time.Duration) (*transport.Response, error) {
	c.calls++
	c.cancel()
	return nil, errors.New("connection reset")
}

func TestFetch_CanceledMidRetryStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &cancelingTransport{cancel: cancel}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(ctx, newRequest(5))

	if !result.Failed() {
		t.Fatal("expected failure result")
	}
	if tr.calls != 1 {
		t.Errorf("transport calls = %d, want 1 (no retries after cancellation)", tr.calls)
	}
	if rd.calls != 0 {
		t.Errorf("renderer called %d times, want 0 (no escalation after cancellation)", rd.calls)
	}
	if result.Error.Code != models.ErrCodeTimeout {
		t.Errorf("error code = %q, want %q", result.Error.Code, models.ErrCodeTimeout)
	}
}

func TestFetch_FormatterFailureSurfacesInResult(t *testing.T) {
	tr := &fakeTransport{steps: []step{ok(longBody())}}
	f := New(tr, &fakeRenderer{}, failingFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(0))

	if !result.Failed() {
		t.Fatal("expected failure result")
	}
	if result.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error code = %q, want %q", result.Error.Code, models.ErrCodeInvalidInput)
	}
	if result.Data != "" {
		t.Errorf("data = %q, want empty", result.Data)
	}
}

func TestFetch_ConfigDefaultsApplyWhenRequestUnset(t *testing.T) {
	tr := &fakeTransport{steps: []step{transportFail()}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.DefaultTimeout = 7 * time.Second
	f := New(tr, rd, fakeFormatter{}, cfg)

	// No MaxRetries, no Timeout: the server config decides both.
	result := f.Fetch(context.Background(), &models.FetchRequest{URL: "http://example.com"})

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 3 {
		t.Errorf("transport calls = %d, want 3 (config default of 2 retries)", tr.calls)
	}
	if tr.lastTimeout != 7*time.Second {
		t.Errorf("attempt timeout = %v, want config default 7s", tr.lastTimeout)
	}
}

func TestFetch_RequestOverridesConfigDefaults(t *testing.T) {
	tr := &fakeTransport{steps: []step{transportFail()}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	cfg := testConfig()
	cfg.MaxRetries = 5
	cfg.DefaultTimeout = 30 * time.Second
	f := New(tr, rd, fakeFormatter{}, cfg)

	req := newRequest(0)
	req.Timeout = 5
	result := f.Fetch(context.Background(), req)

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 1 {
		t.Errorf("transport calls = %d, want 1 (explicit zero retries beats config)", tr.calls)
	}
	if tr.lastTimeout != 5*time.Second {
		t.Errorf("attempt timeout = %v, want explicit 5s", tr.lastTimeout)
	}
}

func TestFetch_ExhaustionLogNamesLastFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	tr := &fakeTransport{steps: []step{status(403)}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	f.Fetch(context.Background(), newRequest(1))

	if !strings.Contains(buf.String(), "lastStatus=403") {
		t.Errorf("exhaustion log does not name the final failure:\n%s", buf.String())
	}
}

func TestFetch_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	tr := &fakeTransport{steps: []step{transportFail()}}
	rd := &fakeRenderer{html: "<html>rendered</html>"}
	f := New(tr, rd, fakeFormatter{}, testConfig())

	result := f.Fetch(context.Background(), newRequest(0))

	if result.Failed() {
		t.Fatalf("unexpected error: %+v", result.Error)
	}
	if tr.calls != 1 {
		t.Errorf("transport calls = %d, want 1 with zero retries", tr.calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		resp *transport.Response
		err  error
		want outcomeKind
	}{
		{"transport error", nil, errors.New("timeout"), outcomeRetryable},
		{"200", &transport.Response{StatusCode: 200}, nil, outcomeSuccess},
		{"204", &transport.Response{StatusCode: 204}, nil, outcomeSuccess},
		{"403", &transport.Response{StatusCode: 403}, nil, outcomeRetryable},
		{"404", &transport.Response{StatusCode: 404}, nil, outcomeHTTPError},
		{"500", &transport.Response{StatusCode: 500}, nil, outcomeHTTPError},
		{"301 leftover redirect", &transport.Response{StatusCode: 301}, nil, outcomeHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.resp, tt.err); got.kind != tt.want {
				t.Errorf("classify() kind = %d, want %d", got.kind, tt.want)
			}
		})
	}
}
