// Package platforms defines the adapter abstraction over external
// social platforms and the registry that dispatches on the platform
// tag.
package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

// ErrMissingCredentials means an operation requiring platform
// credentials was called without them.
var ErrMissingCredentials = errors.New("missing platform credentials")

// FetchParams bound an incremental fetch: posts newer than SinceID or
// older than UntilID, paging until ExpectedAmount reconstructed
// threads or source exhaustion.
type FetchParams struct {
	SinceID        string
	UntilID        string
	ExpectedAmount int
}

// FetchResult is the outcome of one adapter fetch: the reconstructed
// threads as posted records plus the boundary ids observed, for
// incremental resync. An empty Posts list is a valid outcome.
type FetchResult struct {
	Fetched users.FetchedDetails
	Posts   []posts.PostedDetails
}

// MastodonCredentials authenticate against one mastodon server.
type MastodonCredentials struct {
	Domain      string `json:"domain"`
	AccessToken string `json:"accessToken"`
}

// TwitterCredentials authenticate against the twitter API.
type TwitterCredentials struct {
	BearerToken  string `json:"bearerToken,omitempty"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// NanopubCredentials hold the key material used to sign and publish
// nanopublications.
type NanopubCredentials struct {
	RSAPrivateKey string `json:"rsaPrivateKey,omitempty"`
	RSAPublicKey  string `json:"rsaPublickey,omitempty"`
	EthAddress    string `json:"ethAddress,omitempty"`
}

// Credentials is the tagged credential variant passed to adapters.
// Exactly the field matching Platform is set; adapters validate at
// their boundary.
type Credentials struct {
	Platform posts.PlatformID     `json:"platform"`
	Mastodon *MastodonCredentials `json:"mastodon,omitempty"`
	Twitter  *TwitterCredentials  `json:"twitter,omitempty"`
	Nanopub  *NanopubCredentials  `json:"nanopub,omitempty"`
}

// DecodeCredentials parses an account's raw credential payload for a
// platform.
func DecodeCredentials(platform posts.PlatformID, raw json.RawMessage) (Credentials, error) {
	creds := Credentials{Platform: platform}
	if len(raw) == 0 {
		return creds, fmt.Errorf("%s: %w", platform, ErrMissingCredentials)
	}

	var err error
	switch platform {
	case posts.PlatformMastodon:
		creds.Mastodon = &MastodonCredentials{}
		err = json.Unmarshal(raw, creds.Mastodon)
	case posts.PlatformTwitter:
		creds.Twitter = &TwitterCredentials{}
		err = json.Unmarshal(raw, creds.Twitter)
	case posts.PlatformNanopub:
		creds.Nanopub = &NanopubCredentials{}
		err = json.Unmarshal(raw, creds.Nanopub)
	default:
		return creds, fmt.Errorf("unknown platform %s", platform)
	}
	if err != nil {
		return creds, fmt.Errorf("decode %s credentials: %w", platform, err)
	}
	return creds, nil
}

// Service is the full adapter capability set. Fetch retrieves and
// reconstructs threads; the converters are pure mappings between the
// platform-native and canonical shapes; Publish submits a signed or
// approved draft.
type Service interface {
	posts.Converter

	Fetch(ctx context.Context, userID string, params FetchParams, creds Credentials) (*FetchResult, error)
	ConvertFromGeneric(post *posts.AppPostFull, author *users.AppUser) (*posts.DraftDetails, error)
	Publish(ctx context.Context, draft *posts.DraftDetails, creds Credentials) (*posts.PostedDetails, error)
}

// Streamer is the optional live-ingestion capability of an adapter.
// Stream blocks until the context is cancelled and calls deliver for
// each newly observed authored thread.
type Streamer interface {
	Stream(ctx context.Context, userID string, creds Credentials, deliver func(ctx context.Context, posted *posts.PostedDetails) error) error
}

// IdentityService is the reduced capability set of identity-only
// platforms.
type IdentityService interface {
	GetSignupContext(ctx context.Context, userID string, params map[string]string) (json.RawMessage, error)
	HandleSignupData(ctx context.Context, data json.RawMessage) (*users.Account, error)
}

// Registry holds the registered adapters keyed by platform tag.
type Registry struct {
	services   map[posts.PlatformID]Service
	identities map[posts.PlatformID]IdentityService
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services:   make(map[posts.PlatformID]Service),
		identities: make(map[posts.PlatformID]IdentityService),
	}
}

// Register adds a full platform adapter.
func (r *Registry) Register(platform posts.PlatformID, service Service) {
	r.services[platform] = service
}

// RegisterIdentity adds an identity-only adapter.
func (r *Registry) RegisterIdentity(platform posts.PlatformID, service IdentityService) {
	r.identities[platform] = service
}

// Get returns the adapter for a platform.
func (r *Registry) Get(platform posts.PlatformID) (Service, error) {
	service, ok := r.services[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	return service, nil
}

// GetIdentity returns the identity service for a platform, full
// adapters included.
func (r *Registry) GetIdentity(platform posts.PlatformID) (IdentityService, error) {
	if service, ok := r.identities[platform]; ok {
		return service, nil
	}
	if service, ok := r.services[platform].(IdentityService); ok {
		return service, nil
	}
	return nil, fmt.Errorf("no identity service registered for platform %s", platform)
}

// Converters exposes the registered adapters as the converter map the
// posts orchestrator dispatches on.
func (r *Registry) Converters() map[posts.PlatformID]posts.Converter {
	converters := make(map[posts.PlatformID]posts.Converter, len(r.services))
	for platform, service := range r.services {
		converters[platform] = service
	}
	return converters
}
