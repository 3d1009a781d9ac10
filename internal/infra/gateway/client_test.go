package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/archiver/internal/core/domain"
)

func testOptions() Options {
	return Options{Timeout: 5 * time.Second, FormatHeader: "X-Block-Format", FormatVersion: "2"}
}

func TestClient_FetchBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify Path
		if r.URL.Path != "/block/height/1234" {
			t.Errorf("expected path /block/height/1234, got %s", r.URL.Path)
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected method GET, got %s", r.Method)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected Accept application/json, got %q", got)
		}
		if got := r.Header.Get("X-Block-Format"); got != "2" {
			t.Errorf("expected X-Block-Format 2, got %q", got)
		}
		w.Write([]byte(`{"height":1234,"indep_hash":"abc"}`))
	}))
	defer server.Close()

	c, err := NewClient(nil, testOptions())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	gw := domain.Gateway{Name: "mock", URLTemplate: server.URL + "/block/height/{height}"}

	body, err := c.FetchBlock(context.Background(), gw, 1234)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"height":1234,"indep_hash":"abc"}` {
		t.Errorf("body not returned verbatim: %s", body)
	}

	health := c.GetHealth()
	if health.Requests != 1 || health.Failures != 0 || health.Proxy != "none" {
		t.Errorf("unexpected health: %+v", health)
	}
}

func TestClient_FetchBlock_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
		wantIs  error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantSub: "http 500"},
		{name: "not found", status: http.StatusNotFound, body: "missing", wantSub: "http 404"},
		{name: "rate limited", status: http.StatusTooManyRequests, wantSub: "rate limited"},
		{name: "forbidden", status: http.StatusForbidden, wantSub: "ip blocked"},
		{name: "invalid json", status: http.StatusOK, body: "<html>", wantIs: domain.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c, _ := NewClient(nil, testOptions())
			gw := domain.Gateway{Name: "mock", URLTemplate: server.URL + "/{height}"}

			_, err := c.FetchBlock(context.Background(), gw, 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantSub != "" && !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v is not %v", err, tt.wantIs)
			}
			if c.GetHealth().Failures != 1 {
				t.Errorf("expected failure to be recorded")
			}
		})
	}
}

func TestClient_RoutesThroughProxy(t *testing.T) {
	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A forward proxy receives the absolute target URL.
		if !strings.HasPrefix(r.RequestURI, "http://gateway.invalid/") {
			t.Errorf("unexpected proxied URI %s", r.RequestURI)
		}
		proxied.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer proxy.Close()

	c, err := NewClient(&domain.Proxy{Address: proxy.URL}, testOptions())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	gw := domain.Gateway{Name: "remote", URLTemplate: "http://gateway.invalid/block/height/{height}"}

	if _, err := c.FetchBlock(context.Background(), gw, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proxied.Load() != 1 {
		t.Errorf("expected request to go through proxy, got %d", proxied.Load())
	}
}

func TestParseProxyURL(t *testing.T) {
	u, err := ParseProxyURL("10.0.0.1:3128")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "10.0.0.1:3128" {
		t.Errorf("unexpected url %v", u)
	}

	if _, err := ParseProxyURL("http://"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestClient_FetchHeight(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"network":"arweave.N.1","height":1502345,"blocks":1502346}`))
	}))
	defer server.Close()

	c, _ := NewClient(nil, testOptions())
	height, err := c.FetchHeight(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 1502345 {
		t.Errorf("height = %d, want 1502345", height)
	}
}

func TestClient_FetchHeight_MissingField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"network":"arweave.N.1"}`))
	}))
	defer server.Close()

	c, _ := NewClient(nil, testOptions())
	if _, err := c.FetchHeight(context.Background(), server.URL); err == nil {
		t.Error("expected error when height is missing")
	}
}
