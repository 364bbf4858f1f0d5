// Package looker is the HTTP client for the BI platform's REST API (version 4.0).
// It authenticates with OAuth client credentials, paces and retries requests,
// and serves metadata and query history through the source.Source interface.
package looker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"henry/internal/config"
	"henry/internal/errors"
	"henry/internal/version"
)

const (
	// maxBodySize caps how much of a response is read.
	maxBodySize = 64 << 20

	// tokenSlack renews a token this long before it expires.
	tokenSlack = 30 * time.Second
)

// retryConfig configures retry behavior.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Client talks to one BI instance.
type Client struct {
	baseURL      string
	apiVersion   string
	clientID     string
	clientSecret string
	rowLimit     int

	http    *http.Client
	limiter *rate.Limiter
	retry   retryConfig
	logger  *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	gitMu sync.Mutex
}

// NewClient creates a client from the API settings of cfg.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.ValidateAPI(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot reach the API without credentials", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.Looker.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via looker.verifySsl
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.Looker.BaseURL, "/"),
		apiVersion:   cfg.Looker.APIVersion,
		clientID:     cfg.Looker.ClientID,
		clientSecret: cfg.Looker.ClientSecret,
		rowLimit:     cfg.Usage.RowLimit,
		http: &http.Client{
			Timeout:   time.Duration(cfg.Looker.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.API.RateLimitPerSecond), max(cfg.API.Burst, 1)),
		retry: retryConfig{
			maxRetries: cfg.API.MaxRetries,
			baseDelay:  time.Duration(cfg.API.RetryBaseDelayMs) * time.Millisecond,
			maxDelay:   10 * time.Second,
		},
		logger: logger,
	}, nil
}

// BaseURL returns the instance URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/api/" + c.apiVersion + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// authToken returns a valid access token, logging in when there is none.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	resp, err := c.send(ctx, http.MethodPost, c.endpoint("/login", nil),
		[]byte(form.Encode()), "application/x-www-form-urlencoded", "")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read login response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := parseAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", errors.New(errors.Unauthorized, "login rejected, check looker.clientId and looker.clientSecret", apiErr)
		}
		return "", toAuditError(apiErr)
	}

	var login loginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if login.AccessToken == "" {
		return "", errors.Newf(errors.Unauthorized, "login returned no access token")
	}

	c.token = login.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(login.ExpiresIn)*time.Second - tokenSlack)
	c.logger.Debug("Logged in to API", "baseUrl", c.baseURL, "expiresIn", login.ExpiresIn)
	return c.token, nil
}

// invalidateToken drops token so the next call logs in again.
func (c *Client) invalidateToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
	}
}

// send performs one HTTP exchange with rate limiting and retries. Network
// errors, 5xx and 429 answers are retried with exponential backoff; any other
// answer is returned to the caller.
func (c *Client) send(ctx context.Context, method, endpoint string, body []byte, contentType, token string) (*http.Response, error) {
	requestID := uuid.New().String()

	var lastErr error
	var lastStatus int
	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.baseDelay * time.Duration(1<<uint(attempt-1))
			if delay > c.retry.maxDelay {
				delay = c.retry.maxDelay
			}

			select {
			case <-ctx.Done():
				return nil, contextError(ctx)
			case <-time.After(delay):
			}

			c.logger.Debug("Retrying request",
				"method", method,
				"url", endpoint,
				"attempt", attempt+1,
				"requestId", requestID)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx)
			}
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "henry/"+version.Version)
		req.Header.Set("X-Request-Id", requestID)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		if body != nil {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, contextError(ctx)
			}
			lastStatus = 0
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastStatus = resp.StatusCode
			lastErr = fmt.Errorf("server answered %d", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	var netErr net.Error
	if stderrors.As(lastErr, &netErr) && netErr.Timeout() {
		return nil, errors.New(errors.Timeout,
			fmt.Sprintf("%s %s timed out after %d retries", method, endpoint, c.retry.maxRetries), lastErr)
	}
	if lastStatus == http.StatusTooManyRequests {
		return nil, errors.New(errors.RateLimited,
			fmt.Sprintf("%s %s still rate limited after %d retries", method, endpoint, c.retry.maxRetries), lastErr)
	}
	return nil, errors.New(errors.BackendUnavailable,
		fmt.Sprintf("%s %s failed after %d retries", method, endpoint, c.retry.maxRetries), lastErr)
}

// contextError reports a context failure, tagging deadlines as timeouts.
func contextError(ctx context.Context) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New(errors.Timeout, "request deadline exceeded", ctx.Err())
	}
	return ctx.Err()
}

// call performs an authenticated JSON request and decodes the answer into out.
// A 401 triggers one fresh login.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
	}
	endpoint := c.endpoint(path, query)

	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.authToken(ctx)
		if err != nil {
			return err
		}

		resp, err := c.send(ctx, method, endpoint, body, "application/json", token)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Debug("Access token rejected, logging in again", "url", endpoint)
			c.invalidateToken(token)
			continue
		}
		if resp.StatusCode >= 400 {
			return toAuditError(parseAPIError(resp.StatusCode, data))
		}

		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse response of %s %s: %w", method, path, err)
		}
		return nil
	}
	return errors.Newf(errors.Unauthorized, "access token rejected after a fresh login")
}

// APIError is an error answer from the API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
}

func (e *APIError) Error() string {
	if e.DocumentationURL != "" {
		return fmt.Sprintf("API error %d: %s (%s)", e.StatusCode, e.Message, e.DocumentationURL)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

func parseAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message          string `json:"message"`
		DocumentationURL string `json:"documentation_url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{StatusCode: status, Message: msg}
	}
	return &APIError{StatusCode: status, Message: payload.Message, DocumentationURL: payload.DocumentationURL}
}

func toAuditError(e *APIError) error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return errors.New(errors.NotFound, e.Message, e)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.Unauthorized, e.Message, e)
	case http.StatusTooManyRequests:
		return errors.New(errors.RateLimited, e.Message, e)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.New(errors.ScopeInvalid, e.Message, e)
	}
	return errors.New(errors.BackendUnavailable, "HTTP "+strconv.Itoa(e.StatusCode), e)
}
