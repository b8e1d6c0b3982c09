// Package twitter is the microblog platform adapter. Threads are
// reconstructed by grouping tweets on their conversation id.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	apiHost          = "api.twitter.com"
	maxResponseBytes = 4 << 20
)

// URLEntity is one shortened URL with its expansion.
type URLEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// Tweet is a tweet as returned by the v2 API.
type Tweet struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	AuthorID       string `json:"author_id"`
	ConversationID string `json:"conversation_id"`
	CreatedAt      string `json:"created_at"`
	Entities       *struct {
		URLs []URLEntity `json:"urls,omitempty"`
	} `json:"entities,omitempty"`
}

// User is a twitter user.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// Timeline is one page of a user's tweets.
type Timeline struct {
	Data     []Tweet `json:"data"`
	Includes struct {
		Users []User `json:"users"`
	} `json:"includes"`
	Meta struct {
		NewestID  string `json:"newest_id"`
		OldestID  string `json:"oldest_id"`
		NextToken string `json:"next_token"`
	} `json:"meta"`
}

// Client is a minimal twitter v2 API client. Requests are rate
// limited.
type Client struct {
	bearerToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewClient creates a client authenticated with a bearer token.
func NewClient(bearerToken string) *Client {
	return &Client{
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(1), 3),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := url.URL{Scheme: "https", Host: apiHost, Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
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
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// TimelineParams bound one timeline page.
type TimelineParams struct {
	SinceID         string
	UntilID         string
	PaginationToken string
}

// UserTimeline returns one page of a user's own tweets with the fields
// thread reconstruction needs.
func (c *Client) UserTimeline(ctx context.Context, userID string, params TimelineParams) (*Timeline, error) {
	query := url.Values{
		"tweet.fields": {"created_at,conversation_id,author_id,entities"},
		"expansions":   {"author_id"},
		"exclude":      {"retweets"},
		"max_results":  {"100"},
	}
	if params.SinceID != "" {
		query.Set("since_id", params.SinceID)
	}
	if params.UntilID != "" {
		query.Set("until_id", params.UntilID)
	}
	if params.PaginationToken != "" {
		query.Set("pagination_token", params.PaginationToken)
	}

	var timeline Timeline
	if err := c.do(ctx, http.MethodGet, "/2/users/"+userID+"/tweets", query, nil, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}

// PostTweet publishes a tweet and returns its id and text.
func (c *Client) PostTweet(ctx context.Context, text string) (*Tweet, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var result struct {
		Data Tweet `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/2/tweets", nil, bytes.NewReader(payload), &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}
