package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/http/httptrace"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const analyticsJSON = `{"totalCreditsOwned": 120.5, "creditsTraded": {"today": 4, "thisWeek": 31}}`

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_FetchJSON(t *testing.T) {
	server := jsonServer(t, analyticsJSON)
	client := NewClient(server.URL)

	doc, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	m, ok := doc.(map[string]any)
	if !ok {
		t.Fatalf("Fetch() = %T, want map[string]any", doc)
	}
	if m["totalCreditsOwned"] != 120.5 {
		t.Errorf("totalCreditsOwned = %v, want 120.5", m["totalCreditsOwned"])
	}
	traded, ok := m["creditsTraded"].(map[string]any)
	if !ok || traded["thisWeek"] != 31.0 {
		t.Errorf("creditsTraded = %#v", m["creditsTraded"])
	}
}

func TestClient_FetchCBOR(t *testing.T) {
	body, err := cbor.Marshal(map[string]any{
		"totalCreditsOwned": 7,
		"marketPrice":       map[string]any{"current": 52.5},
	})
	if err != nil {
		t.Fatalf("cbor.Marshal() error = %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept"), "application/cbor") {
			t.Errorf("Accept = %q, want application/cbor offered", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/cbor")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	doc, err := NewClient(server.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	m, ok := doc.(map[string]any)
	if !ok {
		t.Fatalf("Fetch() = %T, want map[string]any", doc)
	}
	if m["totalCreditsOwned"] != uint64(7) {
		t.Errorf("totalCreditsOwned = %#v, want uint64(7)", m["totalCreditsOwned"])
	}
	if _, ok := m["marketPrice"].(map[string]any); !ok {
		t.Errorf("nested map decoded as %T, want map[string]any", m["marketPrice"])
	}
}

func TestClient_FetchSendsMethodAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithMethod(http.MethodPost),
		WithHeader("Authorization", "Bearer token"),
	)
	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestClient_FetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Fetch(context.Background())
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Fetch() error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", se.StatusCode)
	}
}

func TestClient_FetchMalformedBody(t *testing.T) {
	server := jsonServer(t, `{"totalCreditsOwned": `)

	_, err := NewClient(server.URL).Fetch(context.Background())
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("Fetch() error = %v, want *DecodeError", err)
	}
	if de.Format != "JSON" || !strings.Contains(err.Error(), "decode JSON") {
		t.Errorf("Fetch() error = %v, want JSON decode error", err)
	}
}

func TestClient_FetchBodyTooLarge(t *testing.T) {
	big := `"` + strings.Repeat("x", maxResponseBodySize) + `"`
	server := jsonServer(t, big)

	_, err := NewClient(server.URL).Fetch(context.Background())
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("Fetch() error = %v, want ErrBodyTooLarge", err)
	}
}

func TestClient_FetchHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL).Fetch(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestClient_RateLimit(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	// one token, refilled once a minute
	client := NewClient(server.URL, WithRateLimit(1.0/60, 1))

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("second Fetch() error = %v, want rate limit error", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server saw %d requests, want 1", n)
	}
}

// TestClient_ConnectionReuse verifies that the HTTP client reuses connections
// when making sequential requests to the same host.
func TestClient_ConnectionReuse(t *testing.T) {
	server := jsonServer(t, `{}`)
	client := NewClient(server.URL)

	var reusedCount int
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Reused {
				reusedCount++
			}
		},
	}

	const numRequests = 5

	for i := 0; i < numRequests; i++ {
		ctx := httptrace.WithClientTrace(context.Background(), trace)
		if _, err := client.Fetch(ctx); err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}

	// all requests after the first should reuse the connection
	expectedMinReuse := numRequests - 2 // allow some tolerance
	if reusedCount < expectedMinReuse {
		t.Errorf("expected at least %d reused connections, got %d out of %d requests",
			expectedMinReuse, reusedCount, numRequests)
	}
}

// TestClient_Close verifies that Close() is idempotent, safe on a nil
// receiver, and leaves the client usable.
func TestClient_Close(t *testing.T) {
	var nilClient *Client
	nilClient.Close()

	server := jsonServer(t, `{}`)
	client := NewClient(server.URL)
	if _, err := client.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	client.Close()
	client.Close()

	if _, err := client.Fetch(context.Background()); err != nil {
		t.Errorf("request after Close failed: %v", err)
	}
}

func TestDecodeBody_DefaultsToJSON(t *testing.T) {
	doc, err := decodeBody("", []byte(`[1, 2]`))
	if err != nil {
		t.Fatalf("decodeBody() error = %v", err)
	}
	if arr, ok := doc.([]any); !ok || len(arr) != 2 {
		t.Errorf("decodeBody() = %#v", doc)
	}
}

func TestDecodeBody_InvalidCBOR(t *testing.T) {
	_, err := decodeBody("application/cbor", []byte{0xff, 0x00})
	var de *DecodeError
	if !errors.As(err, &de) || de.Format != "CBOR" {
		t.Errorf("decodeBody() error = %v, want CBOR *DecodeError", err)
	}
}
