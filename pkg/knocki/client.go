package knocki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	// ProductionHost is the vendor's production API authority.
	ProductionHost = "production.knocki.com"
	// StagingHost is the vendor's staging API authority.
	StagingHost = "staging.knocki.com"

	userAgent      = "com.knocki.mobileapp"
	defaultTimeout = 10 * time.Second
)

// Config holds the configuration for the API client. The zero value
// targets the production host with a 10 second request timeout.
type Config struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	// BaseURL overrides the host selection, mainly for tests.
	BaseURL string
	Timeout time.Duration
	Staging bool
}

// Client talks to the Knocki REST API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string

	mu    sync.RWMutex
	token string
}

// New creates an API client.
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		host := ProductionHost
		if config.Staging {
			host = StagingHost
		}
		baseURL = "https://" + host
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// Token returns the bearer token from the last successful Login, or the
// one installed via SetToken.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken installs a previously obtained bearer token so the client can
// be used without logging in again.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Login exchanges credentials for a bearer token. Rejected credentials
// yield *AuthError; transport failures and responses that do not match
// the vendor's token document yield *ConnectionError. On success the
// token is stored on the client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (TokenResponse, error) {
	payload := map[string]any{
		"data": []map[string]any{
			{
				"type": "tokens",
				"attributes": map[string]string{
					"email":    email,
					"password": password,
					"type":     "auth",
				},
			},
		},
	}

	body, err := c.request(ctx, http.MethodPost, "tokens", payload)
	if err != nil {
		return TokenResponse{}, err
	}

	// The vendor answers bad credentials with a 200 carrying a JSON:API
	// error document, so status alone is not enough.
	var doc struct {
		Data []struct {
			Attributes struct {
				ID string `json:"id"`
			} `json:"attributes"`
		} `json:"data"`
		Included []struct {
			Attributes struct {
				ID string `json:"id"`
			} `json:"attributes"`
		} `json:"included"`
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return TokenResponse{}, &ConnectionError{Message: "unexpected response from knocki", Err: err}
	}
	if len(doc.Errors) > 0 {
		detail := doc.Errors[0].Detail
		if detail == "" {
			detail = doc.Errors[0].Title
		}
		return TokenResponse{}, &AuthError{Message: "login rejected: " + detail}
	}
	if len(doc.Data) == 0 || doc.Data[0].Attributes.ID == "" {
		return TokenResponse{}, &ConnectionError{Message: "token missing from login response"}
	}

	resp := TokenResponse{Token: doc.Data[0].Attributes.ID}
	if len(doc.Included) > 0 {
		resp.UserID = doc.Included[0].Attributes.ID
	}
	c.SetToken(resp.Token)
	c.logger.Debug("logged in to knocki", "user_id", resp.UserID)
	return resp, nil
}

// Link registers this account for Home Assistant event delivery.
func (c *Client) Link(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodPost, "accounts/homeassistant/v1/link", nil)
	return err
}

// Unlink removes the Home Assistant registration for this account.
func (c *Client) Unlink(ctx context.Context) error {
	_, err := c.request(ctx, http.MethodDelete, "accounts/homeassistant", nil)
	return err
}

// Triggers lists the triggers configured for the account.
func (c *Client) Triggers(ctx context.Context) ([]Trigger, error) {
	body, err := c.request(ctx, http.MethodGet, "actions/homeassistant", nil)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data []Trigger `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &ConnectionError{Message: "unexpected triggers response from knocki", Err: err}
	}
	return doc.Data, nil
}

// request performs a single API call. There is no retry here: requests
// fail fast on timeout or a non-2xx status and leave recovery to the
// caller.
func (c *Client) request(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{Message: "request to knocki failed", Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1MB limit
	if err != nil {
		return nil, &ConnectionError{Message: "read response from knocki", Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return data, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{Message: fmt.Sprintf("knocki rejected the request: status %d", resp.StatusCode)}
	default:
		c.logger.Warn("unexpected response from knocki",
			"status", resp.StatusCode,
			"content_type", resp.Header.Get("Content-Type"),
		)
		return nil, &ConnectionError{Message: fmt.Sprintf("unexpected status %d from knocki", resp.StatusCode)}
	}
}
