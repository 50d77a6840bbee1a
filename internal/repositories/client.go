package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chat-client/internal/observability"
)

var ErrUnauthorized = errors.New("no api token available")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// TokenSource supplies the bearer token for API calls. Credential storage lives outside
// the chat core.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource with a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrUnauthorized
	}
	return string(t), nil
}

type apiClient struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

func newAPIClient(baseURL string, tokens TokenSource, timeout time.Duration) (*apiClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &apiClient{baseURL: u, http: &http.Client{Timeout: timeout}, tokens: tokens}, nil
}

func (c *apiClient) do(ctx context.Context, method, endpoint, path string, query url.Values, out any) (err error) {
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		observability.IncRESTRequest(endpoint, result)
	}()

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	ref := &url.URL{Path: path}
	if len(query) > 0 {
		ref.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode: %w", endpoint, err)
	}
	return nil
}
