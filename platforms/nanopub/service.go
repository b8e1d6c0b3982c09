// Package nanopub is the nanopublication-network platform adapter. It
// publishes signed nanopublications to a nanopub server and exposes
// the cryptographic identity signup flow.
package nanopub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	np "github.com/sensenets/sensegraph/nanopub"
	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

// Config holds the adapter settings.
type Config struct {
	// ServerURL is the nanopub server publish endpoint.
	ServerURL string `yaml:"server_url"`
}

// Service is the nanopub platform adapter.
type Service struct {
	config     Config
	signer     np.Signer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewService creates the adapter. The signer may be nil when only
// pre-signed documents are published.
func NewService(config Config, signer np.Signer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:     config,
		signer:     signer,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Fetch is not supported: the nanopub network is publish-only here.
// An empty result is the valid outcome.
func (s *Service) Fetch(_ context.Context, _ string, _ platforms.FetchParams, _ platforms.Credentials) (*platforms.FetchResult, error) {
	return &platforms.FetchResult{}, nil
}

// ConvertToGeneric is not supported: nanopub mirrors carry a published
// payload, not thread content.
func (s *Service) ConvertToGeneric(_ *posts.PlatformPost) (posts.GenericThread, error) {
	return posts.GenericThread{}, fmt.Errorf("nanopub posts cannot be converted to a generic thread")
}

// ConvertFromGeneric assembles the unsigned nanopublication for a
// canonical post.
func (s *Service) ConvertFromGeneric(post *posts.AppPostFull, author *users.AppUser) (*posts.DraftDetails, error) {
	account, err := users.GetAccount(author, posts.PlatformNanopub, "", true)
	if err != nil {
		return nil, err
	}

	details, err := np.PrepareDetails(author, post)
	if err != nil {
		return nil, err
	}
	unsigned, err := np.Build(post, details)
	if err != nil {
		return nil, err
	}

	return &posts.DraftDetails{
		UserID:       account.UserID,
		PostApproval: posts.DraftApprovalPending,
		SignerType:   posts.SignerTypeUser,
		UnsignedPost: unsigned,
	}, nil
}

// Publish signs the draft if needed and posts the signed document to
// the nanopub server. The returned payload carries the published URI;
// the caller maintains the supersedes bookkeeping.
func (s *Service) Publish(ctx context.Context, draft *posts.DraftDetails, creds platforms.Credentials) (*posts.PostedDetails, error) {
	if creds.Nanopub == nil {
		return nil, fmt.Errorf("nanopub: %w", platforms.ErrMissingCredentials)
	}

	signed := draft.SignedPost
	uri := ""
	if signed == "" {
		if s.signer == nil {
			return nil, fmt.Errorf("draft is unsigned and no signer is configured")
		}
		var err error
		signed, uri, err = s.signer.Sign(ctx, draft.UnsignedPost)
		if err != nil {
			return nil, fmt.Errorf("sign nanopub: %w", err)
		}
	}

	if err := s.post(ctx, signed); err != nil {
		return nil, err
	}
	if uri == "" {
		uri = extractURI(signed)
	}

	payload, err := json.Marshal(np.PublishedPayload{URI: uri})
	if err != nil {
		return nil, err
	}
	return &posts.PostedDetails{
		UserID:      draft.UserID,
		PostID:      uri,
		TimestampMs: time.Now().UnixMilli(),
		Post:        payload,
	}, nil
}

func (s *Service) post(ctx context.Context, signed string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.ServerURL, strings.NewReader(signed))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/trig")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish nanopub: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("publish nanopub: status %d", resp.StatusCode)
	}
	return nil
}

// extractURI pulls the signed document's own URI from its @prefix
// declaration for the default namespace.
func extractURI(signed string) string {
	for _, line := range strings.Split(signed, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "@prefix : <") {
			start := strings.Index(line, "<")
			end := strings.Index(line, ">")
			if start >= 0 && end > start {
				return strings.TrimSuffix(line[start+1:end], "#")
			}
		}
	}
	return ""
}

// GetSignupContext returns the intro-nanopub context for key
// registration.
func (s *Service) GetSignupContext(_ context.Context, _ string, _ map[string]string) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"serverUrl": s.config.ServerURL})
}

// HandleSignupData stores the submitted cryptographic identity as a
// nanopub account.
func (s *Service) HandleSignupData(_ context.Context, data json.RawMessage) (*users.Account, error) {
	var signup struct {
		EthAddress      string `json:"ethAddress"`
		RSAPublicKey    string `json:"rsaPublickey"`
		IntroNanopubURI string `json:"introNanopubUri"`
		OrcidID         string `json:"orcidId"`
	}
	if err := json.Unmarshal(data, &signup); err != nil {
		return nil, fmt.Errorf("decode signup data: %w", err)
	}
	if signup.EthAddress == "" {
		return nil, fmt.Errorf("eth address is required")
	}

	return &users.Account{
		UserID:       signup.EthAddress,
		SignupDateMs: time.Now().UnixMilli(),
		Identity: &users.NanopubIdentity{
			RSAPublicKey:    signup.RSAPublicKey,
			EthAddress:      signup.EthAddress,
			IntroNanopubURI: signup.IntroNanopubURI,
			OrcidID:         signup.OrcidID,
		},
	}, nil
}
