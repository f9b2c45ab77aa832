package opensearch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestClientBasicAuthAndVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"name":"node-1","version":{"distribution":"opensearch","number":"2.19.1"}}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClusterConfig{Name: "local", URL: srv.URL, Username: "admin", Password: "secret"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != "2.19.1" {
		t.Fatalf("Version() = %q, want 2.19.1", version)
	}
}

func TestClientNoAuthSkipsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Errorf("request carried credentials with NoAuth set")
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClusterConfig{Name: "local", URL: srv.URL, Username: "admin", Password: "secret", NoAuth: true})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Get(context.Background(), "/", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestClientMapsErrorResponses(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception","reason":"no such index [missing]"},"status":404}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClusterConfig{Name: "local", URL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = client.Get(context.Background(), "/missing", nil)
	var osErr *Error
	if !errors.As(err, &osErr) {
		t.Fatalf("Get() error = %v, want *Error", err)
	}
	if osErr.Status != http.StatusNotFound {
		t.Fatalf("Status = %d, want 404", osErr.Status)
	}
	if !strings.Contains(err.Error(), "no such index [missing]") {
		t.Fatalf("Error() = %q, want upstream reason", err.Error())
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (404 is not retried)", calls.Load())
	}
}

func TestClientRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"query":{"match_all":{}}}` {
			t.Errorf("attempt %d body = %q", calls.Load()+1, body)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"hits":{"total":{"value":0}}}`)
	}))
	defer srv.Close()

	client, err := NewClient(ClusterConfig{
		Name:  "local",
		URL:   srv.URL,
		Retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	body := map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	if _, err := client.PostJSON(context.Background(), "/logs/_search", nil, body); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestClientCanceledContextStopsRetrying(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := NewClient(ClusterConfig{
		Name:  "local",
		URL:   srv.URL,
		Retry: RetryPolicy{MaxAttempts: 5, Backoff: time.Hour},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, "/", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get() error = %v, want deadline exceeded", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestNewClientValidatesURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := NewClient(ClusterConfig{Name: "x", URL: raw}); err == nil {
			t.Fatalf("NewClient(%q) error = nil, want non-nil", raw)
		}
	}
}

func TestClientResolveKeepsBasePath(t *testing.T) {
	client, err := NewClient(ClusterConfig{Name: "x", URL: "https://search.example.com/proxy/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	got := client.resolve("/_cat/indices", catQuery())
	want := "https://search.example.com/proxy/_cat/indices?format=json"
	if got != want {
		t.Fatalf("resolve() = %q, want %q", got, want)
	}
}
