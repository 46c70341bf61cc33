// Package transport implements the lightweight HTTP fetch path with a
// Chrome-like TLS fingerprint. It is the fastest option, suitable for
// static pages that don't need JavaScript rendering.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps body reads at 10 MB to prevent unbounded memory use.
const maxBody = 10 << 20

// Response is a completed HTTP exchange. The status code is always surfaced
// here, never as an error: callers decide how to treat non-2xx statuses.
type Response struct {
	StatusCode int
	Body       string
	FinalURL   string
}

// Client performs HTTP GETs with a Chrome TLS fingerprint (utls).
// It is safe for concurrent use.
type Client struct {
	client *http.Client
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
// chromeSpecOK records whether generation succeeded; when false, dialing
// falls back to a plain hello with NextProtos pinned to http/1.1.
var (
	chromeH1Spec tls.ClientHelloSpec
	chromeSpecOK bool
)

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2 (which Go's http.Transport cannot handle
	// over a utls connection).
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
	chromeSpecOK = true
}

// NewClient creates a Client with a Chrome-like TLS fingerprint.
// ALPN is locked to http/1.1 to avoid the HTTP/2 framing mismatch that
// occurs when utls negotiates h2 but Go's http.Transport only speaks h1.
// proxy, if non-empty, routes all requests through the given http/https
// proxy URL.
func NewClient(proxy string) *Client {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)

			var tlsConn *tls.UConn
			if chromeSpecOK {
				tlsConn = tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
				if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
					conn.Close()
					return nil, fmt.Errorf("transport: apply tls spec: %w", err)
				}
			} else {
				// No Chrome fingerprint available: a standard hello with
				// ALPN pinned to http/1.1 keeps the h1-only transport sound.
				tlsConn = tls.UClient(conn, &tls.Config{
					ServerName: host,
					NextProtos: []string{"http/1.1"},
				}, tls.HelloGolang)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Get issues a single GET with browser-like headers and the given deadline.
// A non-nil error means the request failed at the transport level
// (connection, TLS, timeout); HTTP error statuses are returned in Response.
func (c *Client) Get(ctx context.Context, targetURL string, headers map[string]string, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: build request: %w", err)
	}

	// Simulate browser-like headers.
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity") // no compression for simplicity
	req.Header.Set("Cache-Control", "no-cache")

	// Apply custom headers (override defaults if provided).
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("transport: read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		FinalURL:   resp.Request.URL.String(),
	}, nil
}
