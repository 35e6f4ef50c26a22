package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Rolo/1.0"
	maxErrorBody   = 64 << 10
)

// Client implements domain.AuthRepository and domain.ContactRepository
// over the service's JSON API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ domain.AuthRepository    = (*Client)(nil)
	_ domain.ContactRepository = (*Client)(nil)
)

// NewClient creates a new API client. A zero timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// request describes one API call
type request struct {
	method      string
	path        string
	accessToken string // "" sends the request unauthenticated
	body        any    // JSON encoded when non-nil
	raw         io.Reader
	contentType string
}

// doRequest performs an HTTP request and decodes a JSON response into out.
// out may be nil for endpoints without a body.
func (c *Client) doRequest(ctx context.Context, r request, out any) error {
	reqURL := c.baseURL + r.path

	body := r.raw
	contentType := r.contentType
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.accessToken != "" {
		tok := &oauth2.Token{AccessToken: r.accessToken, TokenType: "Bearer"}
		tok.SetAuthHeader(req)
	}
	requestID := gateway.RequestID(ctx)
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	c.logger.Debug("api request", "method", r.method, "url", reqURL, "requestID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", "method", r.method, "path", r.path, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
			}
			c.logger.Error("JSON parse error", "path", r.path, "error", err)
			return fmt.Errorf("%w: failed to parse response: %w", domain.ErrServer, err)
		}
		return nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", r.method, r.path, domain.ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return validationError(errBody)
	default:
		c.logger.Error("api request error", "status", resp.StatusCode, "path", r.path, "body", string(errBody))
		return fmt.Errorf("%w: %s %s returned status %d", domain.ErrServer, r.method, r.path, resp.StatusCode)
	}
}
