package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPClient calls a remote identity provider over its REST surface. Each
// call retries transient failures with a short linear backoff; the provider
// guarantees repeat-safety, so retried side effects are harmless.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewHTTPClient constructs the client.
func NewHTTPClient(baseURL string, timeout time.Duration, attempts int, logger *zap.Logger) *HTTPClient {
	if attempts <= 0 {
		attempts = 3
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		backoff:  200 * time.Millisecond,
		logger:   logger,
	}
}

type createAccountRequest struct {
	Username string `json:"username"`
}

type createAccountResponse struct {
	AccountID string `json:"account_id"`
}

// CreateAccount provisions a provider account and returns its id.
func (c *HTTPClient) CreateAccount(ctx context.Context, username string) (string, error) {
	body, err := json.Marshal(createAccountRequest{Username: username})
	if err != nil {
		return "", err
	}
	raw, err := c.do(ctx, http.MethodPost, "/accounts", body)
	if err != nil {
		return "", err
	}
	var resp createAccountResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode create account response: %w", err)
	}
	return resp.AccountID, nil
}

// DisableAccount disables the provider account.
func (c *HTTPClient) DisableAccount(ctx context.Context, accountID string) error {
	_, err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(accountID)+"/disable", nil)
	return err
}

// EnableAccount re-enables a previously disabled provider account.
func (c *HTTPClient) EnableAccount(ctx context.Context, accountID string) error {
	_, err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(accountID)+"/enable", nil)
	return err
}

// InvalidateSessions terminates all active sessions for the account.
func (c *HTTPClient) InvalidateSessions(ctx context.Context, accountID string) error {
	_, err := c.do(ctx, http.MethodPost, "/accounts/"+url.PathEscape(accountID)+"/sessions/invalidate", nil)
	return err
}

// DeleteAccount removes the provider account.
func (c *HTTPClient) DeleteAccount(ctx context.Context, accountID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/accounts/"+url.PathEscape(accountID), nil)
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.backoff):
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("provider call failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider %s %s: status %d", method, path, resp.StatusCode)
			c.logger.Warn("provider call failed",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("provider %s %s: status %d", method, path, resp.StatusCode)
		}
		if readErr != nil {
			return nil, readErr
		}
		return raw, nil
	}
	return nil, fmt.Errorf("provider unreachable after %d attempts: %w", c.attempts, lastErr)
}
