// Package mailcow talks to the admin REST API of a mailcow server.
package mailcow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/nhle/mailcow-companion/internal/settings"
)

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	StatusCode int
	StatusText string
}

func (e *APIError) Error() string {
	return "API error: " + e.StatusText
}

// IsAPIError reports whether err (or any error in its chain) is an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// CredentialSource supplies the server URL and API key for each request.
// settings.Store satisfies it.
type CredentialSource interface {
	Credentials() (settings.Settings, error)
}

// RequestOptions customizes a FetchWithAuth call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	// Header values are applied after the default headers and replace
	// them on conflict.
	Header http.Header

	// Body, when non-nil, is sent as JSON. []byte and json.RawMessage
	// are sent as-is.
	Body any
}

// Client issues authenticated requests against {serverURL}/api/v1/.
type Client struct {
	creds      CredentialSource
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request failures.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client reading credentials from creds on every call.
// No client-side timeout is set; callers bound requests through ctx.
func NewClient(creds CredentialSource, opts ...ClientOption) *Client {
	c := &Client{
		creds:      creds,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// FetchWithAuth calls endpoint (relative to /api/v1/) and returns the
// decoded JSON body. Errors from the credentials gate, the transport and
// JSON decoding are logged and returned unchanged; a non-2xx status
// yields an *APIError.
func (c *Client) FetchWithAuth(
	ctx context.Context,
	endpoint string,
	opts RequestOptions,
) (json.RawMessage, error) {
	data, err := c.fetch(ctx, endpoint, opts)
	if err != nil {
		c.logger.Error("fetch error",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
		return nil, err
	}
	return data, nil
}

func (c *Client) fetch(
	ctx context.Context,
	endpoint string,
	opts RequestOptions,
) (json.RawMessage, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(creds.ServerURL, "/") + "/api/v1/" + strings.TrimLeft(endpoint, "/")

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	bodyReader, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("X-API-Key", creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	for name, values := range opts.Header {
		req.Header.Del(name)
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// No content to parse (e.g. 204).
	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("null"), nil
	}

	var data json.RawMessage
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, err
	}

	return data, nil
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		return bytes.NewReader(data), nil
	}
}

// statusText returns the reason phrase the server sent, e.g. "Not Found",
// falling back to the standard text for the code when there is none.
func statusText(resp *http.Response) string {
	// resp.Status is "404 Not Found"; drop the code.
	if _, reason, ok := strings.Cut(resp.Status, " "); ok {
		if reason = strings.TrimSpace(reason); reason != "" {
			return reason
		}
	}
	return http.StatusText(resp.StatusCode)
}
