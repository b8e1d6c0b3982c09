// Package mastodon is the federated-server platform adapter: fetching
// and reconstructing status threads, converting them to and from the
// canonical shape, publishing statuses, and streaming the user
// timeline.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultPageLimit   = 40
	maxResponseBytes   = 4 << 20
	defaultRequestRate = 5 // requests per second per client
)

// Account is a mastodon account as returned by the API.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
	URL         string `json:"url"`
}

// Status is a mastodon status as returned by the API.
type Status struct {
	ID          string  `json:"id"`
	URL         string  `json:"url"`
	Content     string  `json:"content"`
	CreatedAt   string  `json:"created_at"`
	InReplyToID string  `json:"in_reply_to_id"`
	Account     Account `json:"account"`
}

// StatusContext is the ancestor/descendant context of a status.
type StatusContext struct {
	Ancestors   []Status `json:"ancestors"`
	Descendants []Status `json:"descendants"`
}

// Client is a minimal mastodon REST client for one server. Requests
// are rate limited.
type Client struct {
	domain      string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a client for the given server domain.
func NewClient(domain, accessToken string) *Client {
	return &Client{
		domain:      domain,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(defaultRequestRate), defaultRequestRate),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := url.URL{Scheme: "https", Host: c.domain, Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 200))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) > n {
		return string(data[:n]) + "..."
	}
	return string(data)
}

// AccountStatusesParams bound one page of an account's statuses.
type AccountStatusesParams struct {
	MinID string
	MaxID string
	Limit int
}

// AccountStatuses returns one page of an account's statuses, newest
// first, excluding replies and reblogs.
func (c *Client) AccountStatuses(ctx context.Context, accountID string, params AccountStatusesParams) ([]Status, error) {
	query := url.Values{
		"exclude_replies": {"true"},
		"exclude_reblogs": {"true"},
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	query.Set("limit", strconv.Itoa(limit))
	if params.MinID != "" {
		query.Set("min_id", params.MinID)
	}
	if params.MaxID != "" {
		query.Set("max_id", params.MaxID)
	}

	var statuses []Status
	err := c.do(ctx, http.MethodGet, "/api/v1/accounts/"+accountID+"/statuses", query, nil, &statuses)
	return statuses, err
}

// GetStatus fetches a single status.
func (c *Client) GetStatus(ctx context.Context, statusID string) (*Status, error) {
	var status Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/statuses/"+statusID, nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetContext fetches the reply context of a status.
func (c *Client) GetContext(ctx context.Context, statusID string) (*StatusContext, error) {
	var sc StatusContext
	if err := c.do(ctx, http.MethodGet, "/api/v1/statuses/"+statusID+"/context", nil, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// VerifyCredentials returns the account the access token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// PostStatus publishes a new status and returns it.
func (c *Client) PostStatus(ctx context.Context, text string) (*Status, error) {
	payload, err := json.Marshal(map[string]string{"status": text})
	if err != nil {
		return nil, err
	}
	var status Status
	if err := c.do(ctx, http.MethodPost, "/api/v1/statuses", nil, bytes.NewReader(payload), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LookupAccount resolves an account by username.
func (c *Client) LookupAccount(ctx context.Context, username string) (*Account, error) {
	query := url.Values{"acct": {username}}
	var account Account
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts/lookup", query, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}
