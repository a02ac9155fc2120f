package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minirag/supportchat/internal/domain"
)

// fakeIdentity is a mutable Identity for header-injection tests.
type fakeIdentity struct {
	sessionID string
	authToken string
	csrfToken string
}

func (f *fakeIdentity) SessionID() string { return f.sessionID }
func (f *fakeIdentity) AuthToken() string { return f.authToken }
func (f *fakeIdentity) CSRFToken() string { return f.csrfToken }

func newTestClient(baseURL string, identity Identity) *Client {
	return New(baseURL, identity,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
	)
}

func TestDo_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"csrf_token": "abc"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, &fakeIdentity{})

	var out struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := client.PostJSON(context.Background(), "/api/v1/auth/csrf", nil, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out.CSRFToken != "abc" {
		t.Errorf("csrf_token = %q, want abc", out.CSRFToken)
	}
}

func TestDo_IdentityHeaders(t *testing.T) {
	var gotSession, gotAuth, gotCSRF string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("X-Session-ID")
		gotAuth = r.Header.Get("Authorization")
		gotCSRF = r.Header.Get("X-CSRF-Token")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	identity := &fakeIdentity{sessionID: "sess-1", authToken: "tok-1", csrfToken: "csrf-1"}
	client := newTestClient(srv.URL, identity)

	if err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if gotSession != "sess-1" {
		t.Errorf("X-Session-ID = %q, want sess-1", gotSession)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
	if gotCSRF != "csrf-1" {
		t.Errorf("X-CSRF-Token = %q, want csrf-1", gotCSRF)
	}
}

func TestDo_OmitsAbsentHeaders(t *testing.T) {
	var hasAuth, hasCSRF bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		_, hasCSRF = r.Header["X-Csrf-Token"]
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, &fakeIdentity{sessionID: "sess-1"})

	if err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if hasAuth {
		t.Error("Authorization header present, want omitted")
	}
	if hasCSRF {
		t.Error("X-CSRF-Token header present, want omitted")
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, &fakeIdentity{})

	err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil)
	if err == nil {
		t.Fatal("Do() error = nil, want server error")
	}

	// maxRetries=2 means 3 attempts total
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeServer {
		t.Errorf("Type = %v, want %v", apiErr.Type, domain.ErrorTypeServer)
	}
	if apiErr.Detail != "boom" {
		t.Errorf("Detail = %q, want boom", apiErr.Detail)
	}
}

func TestDo_RecoversAfterTransientFailure(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, &fakeIdentity{})

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, &out); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if !out.OK {
		t.Error("response not decoded after recovery")
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"detail": "not here"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, &fakeIdentity{})

	err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil)
	if err == nil {
		t.Fatal("Do() error = nil, want 404 error")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for 4xx)", got)
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *domain.APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
}

func TestDo_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	client := newTestClient(srv.URL, &fakeIdentity{})

	err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil)
	if err == nil {
		t.Fatal("Do() error = nil, want network error")
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeUnavailable {
		t.Errorf("Type = %v, want %v", apiErr.Type, domain.ErrorTypeUnavailable)
	}
}

// failingTransport fails every round trip before any connection is made.
type failingTransport struct {
	attempts atomic.Int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.attempts.Add(1)
	return nil, errors.New("connection refused")
}

func TestDo_RetriesNetworkFailures(t *testing.T) {
	transport := &failingTransport{}
	client := New("http://backend.invalid", &fakeIdentity{},
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithHTTPClient(&http.Client{Transport: transport}),
	)

	err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil)
	if err == nil {
		t.Fatal("Do() error = nil, want network error")
	}
	if got := transport.attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (budget exhausted)", got)
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeUnavailable {
		t.Errorf("Type = %v, want %v", apiErr.Type, domain.ErrorTypeUnavailable)
	}
}

func TestDo_RederivesHeadersOnRetry(t *testing.T) {
	identity := &fakeIdentity{authToken: "stale"}

	var lastAuth string
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		if attempts.Add(1) == 1 {
			// Rotate the credential between attempts
			identity.authToken = "fresh"
			http.Error(w, "try again", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, identity)

	if err := client.Do(context.Background(), http.MethodPost, "/x", "", nil, nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if lastAuth != "Bearer fresh" {
		t.Errorf("Authorization on retry = %q, want Bearer fresh", lastAuth)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, &fakeIdentity{},
		WithMaxRetries(5),
		WithRetryDelay(time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- client.Do(ctx, http.MethodPost, "/x", "", nil, nil)
	}()

	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Do() error = nil, want cancellation error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do() did not return after context cancellation")
	}
}
