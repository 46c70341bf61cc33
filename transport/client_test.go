package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tls "github.com/refraction-networking/utls"
)

func TestChromeSpecPinsALPNToHTTP1(t *testing.T) {
	if !chromeSpecOK {
		t.Fatal("chrome hello spec failed to initialise; dialing would use the plain-hello fallback")
	}
	for _, ext := range chromeH1Spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			if len(alpn.AlpnProtocols) != 1 || alpn.AlpnProtocols[0] != "http/1.1" {
				t.Errorf("ALPN protocols = %v, want [http/1.1]", alpn.AlpnProtocols)
			}
			return
		}
	}
	t.Error("no ALPN extension in the chrome hello spec")
}

func TestGet_ReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	c := NewClient("")
	resp, err := c.Get(context.Background(), srv.URL, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Body != "<html><body>hello</body></html>" {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestGet_ErrorStatusIsNotAGoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("")
	resp, err := c.Get(context.Background(), srv.URL, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("403 must not be a transport error, got: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestGet_SendsBrowserHeadersAndOverrides(t *testing.T) {
	var gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
	}))
	defer srv.Close()

	c := NewClient("")
	headers := map[string]string{
		"User-Agent": "custom-agent/1.0",
		"X-Custom":   "yes",
	}
	if _, err := c.Get(context.Background(), srv.URL, headers, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotUA != "custom-agent/1.0" {
		t.Errorf("custom User-Agent not applied: %q", gotUA)
	}
	if gotCustom != "yes" {
		t.Errorf("custom header not applied: %q", gotCustom)
	}
}

func TestGet_DefaultUserAgentIsChromeLike(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c := NewClient("")
	if _, err := c.Get(context.Background(), srv.URL, nil, 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUA != chromeUA {
		t.Errorf("User-Agent = %q, want %q", gotUA, chromeUA)
	}
}

func TestGet_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient("")
	resp, err := c.Get(context.Background(), srv.URL, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Body != "landed" {
		t.Errorf("body = %q, want redirect target", resp.Body)
	}
	if resp.FinalURL != srv.URL+"/final" {
		t.Errorf("final URL = %q, want %q", resp.FinalURL, srv.URL+"/final")
	}
}

func TestGet_TimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	c := NewClient("")
	_, err := c.Get(context.Background(), srv.URL, nil, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestGet_ConnectionRefusedIsTransportError(t *testing.T) {
	c := NewClient("")
	_, err := c.Get(context.Background(), "http://127.0.0.1:1", nil, 2*time.Second)
	if err == nil {
		t.Fatal("expected connection error")
	}
}
