package mailcow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/nhle/mailcow-companion/internal/settings"
)

type staticCreds struct {
	s   settings.Settings
	err error
}

func (c staticCreds) Credentials() (settings.Settings, error) {
	return c.s, c.err
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(
		staticCreds{s: settings.Settings{ServerURL: serverURL, APIKey: "test-key"}},
		WithLogger(zaptest.NewLogger(t)),
	)
}

func TestFetchWithAuthSendsHeadersAndDecodes(t *testing.T) {
	var gotPath, gotKey, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		gotType = r.Header.Get("Content-Type")
		w.Write([]byte(`[{"domain_name":"a.com"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/")
	data, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{})
	if err != nil {
		t.Fatalf("FetchWithAuth: %v", err)
	}

	if gotPath != "/api/v1/get/domain/all" {
		t.Errorf("expected path /api/v1/get/domain/all, got %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("expected X-API-Key test-key, got %q", gotKey)
	}
	if gotType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotType)
	}
	if string(data) != `[{"domain_name":"a.com"}]` {
		t.Errorf("unexpected body %s", data)
	}
}

func TestFetchWithAuthCallerHeadersOverride(t *testing.T) {
	var gotType, gotExtra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotExtra = r.Header.Get("X-Trace")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{
		Header: http.Header{
			"Content-Type": []string{"text/plain"},
			"X-Trace":      []string{"abc"},
		},
	})
	if err != nil {
		t.Fatalf("FetchWithAuth: %v", err)
	}
	if gotType != "text/plain" {
		t.Errorf("expected caller content type to win, got %q", gotType)
	}
	if gotExtra != "abc" {
		t.Errorf("expected extra header to be sent, got %q", gotExtra)
	}
}

func TestFetchWithAuthPostsJSONBody(t *testing.T) {
	var gotMethod string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	data, err := c.FetchWithAuth(context.Background(), "add/alias", RequestOptions{
		Method: http.MethodPost,
		Body:   map[string]string{"goto": "x@example.com"},
	})
	if err != nil {
		t.Fatalf("FetchWithAuth: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if string(gotBody) != `{"goto":"x@example.com"}` {
		t.Errorf("unexpected body %s", gotBody)
	}
	if string(data) != "null" {
		t.Errorf("expected null for empty response, got %s", data)
	}
}

func TestFetchWithAuthStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.StatusText != "Unauthorized" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
	if err.Error() != "API error: Unauthorized" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !IsAPIError(err) {
		t.Errorf("expected IsAPIError to report true")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestFetchWithAuthUsesServerReasonPhrase(t *testing.T) {
	tests := []struct {
		status string
		code   int
		want   string
	}{
		{status: "503 Down For Maintenance", code: 503, want: "Down For Maintenance"},
		{status: "503", code: 503, want: "Service Unavailable"},
		{status: "403 ", code: 403, want: "Forbidden"},
	}

	for _, tt := range tests {
		hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				Status:     tt.status,
				StatusCode: tt.code,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader("")),
				Request:    r,
			}, nil
		})}
		c := NewClient(
			staticCreds{s: settings.Settings{ServerURL: "https://mail.example.com", APIKey: "k"}},
			WithHTTPClient(hc),
			WithLogger(zaptest.NewLogger(t)),
		)

		_, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %q: expected *APIError, got %v", tt.status, err)
		}
		if apiErr.StatusText != tt.want {
			t.Errorf("status %q: expected status text %q, got %q", tt.status, tt.want, apiErr.StatusText)
		}
	}
}

func TestFetchWithAuthPropagatesMissingConfiguration(t *testing.T) {
	c := NewClient(staticCreds{err: settings.ErrMissingConfiguration})

	_, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{})
	if err != settings.ErrMissingConfiguration {
		t.Fatalf("expected unmodified ErrMissingConfiguration, got %v", err)
	}
}

func TestFetchWithAuthDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchWithAuth(context.Background(), "get/domain/all", RequestOptions{})

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected *json.SyntaxError, got %T %v", err, err)
	}
	if IsAPIError(err) {
		t.Errorf("decode failure must not be an APIError")
	}
}
