// Package orcid is the identity-only ORCID adapter. It links an ORCID
// iD to an application user through the three-legged OAuth flow; it
// fetches and publishes nothing.
package orcid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sensenets/sensegraph/users"
)

const maxResponseBytes = 1 << 20

// Config holds the adapter settings.
type Config struct {
	// Domain is the ORCID server, orcid.org or sandbox.orcid.org.
	Domain       string `yaml:"domain"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// Service implements the identity signup flow against ORCID.
type Service struct {
	config     Config
	logger     *slog.Logger
	httpClient *http.Client
}

// NewService creates the adapter.
func NewService(config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Domain == "" {
		config.Domain = "orcid.org"
	}
	return &Service{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetSignupContext returns the authorization URL the user visits to
// grant access.
func (s *Service) GetSignupContext(_ context.Context, _ string, params map[string]string) (json.RawMessage, error) {
	callback := params["callback_url"]
	if callback == "" {
		return nil, fmt.Errorf("callback URL is required")
	}
	if s.config.ClientID == "" {
		return nil, fmt.Errorf("orcid client id is not configured")
	}

	q := url.Values{
		"client_id":     {s.config.ClientID},
		"response_type": {"code"},
		"scope":         {"/authenticate"},
		"redirect_uri":  {callback},
	}
	authorizationURL := fmt.Sprintf("https://%s/oauth/authorize?%s", s.config.Domain, q.Encode())

	return json.Marshal(map[string]string{"authorizationUrl": authorizationURL})
}

// HandleSignupData exchanges the authorization code for a token and
// returns the linked account carrying the ORCID iD as its identity.
func (s *Service) HandleSignupData(ctx context.Context, data json.RawMessage) (*users.Account, error) {
	var signup struct {
		Code        string `json:"code"`
		CallbackURL string `json:"callback_url"`
	}
	if err := json.Unmarshal(data, &signup); err != nil {
		return nil, fmt.Errorf("decode signup data: %w", err)
	}
	if signup.Code == "" {
		return nil, fmt.Errorf("authorization code is required")
	}

	token, err := s.exchangeCode(ctx, signup.Code, signup.CallbackURL)
	if err != nil {
		return nil, err
	}

	return &users.Account{
		UserID:       token.Orcid,
		SignupDateMs: time.Now().UnixMilli(),
		Profile: &users.AccountProfile{
			Username:    token.Orcid,
			DisplayName: token.Name,
			Domain:      s.config.Domain,
		},
		Identity: &users.NanopubIdentity{OrcidID: token.Orcid},
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Orcid       string `json:"orcid"`
	Name        string `json:"name"`
}

func (s *Service) exchangeCode(ctx context.Context, code, callback string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":     {s.config.ClientID},
		"client_secret": {s.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
	}
	if callback != "" {
		form.Set("redirect_uri", callback)
	}

	tokenURL := fmt.Sprintf("https://%s/oauth/token", s.config.Domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.Orcid == "" {
		return nil, fmt.Errorf("token response carries no ORCID iD")
	}
	return &token, nil
}
