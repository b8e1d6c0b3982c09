package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

type fakeService struct{}

func (fakeService) ConvertToGeneric(_ *posts.PlatformPost) (posts.GenericThread, error) {
	return posts.GenericThread{}, nil
}

func (fakeService) Fetch(_ context.Context, _ string, _ FetchParams, _ Credentials) (*FetchResult, error) {
	return &FetchResult{}, nil
}

func (fakeService) ConvertFromGeneric(_ *posts.AppPostFull, _ *users.AppUser) (*posts.DraftDetails, error) {
	return &posts.DraftDetails{}, nil
}

func (fakeService) Publish(_ context.Context, _ *posts.DraftDetails, _ Credentials) (*posts.PostedDetails, error) {
	return &posts.PostedDetails{}, nil
}

// fakeFullService also carries the identity flow, like the mastodon
// adapter does.
type fakeFullService struct {
	fakeService
}

func (fakeFullService) GetSignupContext(_ context.Context, _ string, _ map[string]string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (fakeFullService) HandleSignupData(_ context.Context, _ json.RawMessage) (*users.Account, error) {
	return &users.Account{}, nil
}

type fakeIdentityService struct{}

func (fakeIdentityService) GetSignupContext(_ context.Context, _ string, _ map[string]string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (fakeIdentityService) HandleSignupData(_ context.Context, _ json.RawMessage) (*users.Account, error) {
	return &users.Account{}, nil
}

func TestRegistryDispatch(t *testing.T) {
	registry := NewRegistry()
	registry.Register(posts.PlatformMastodon, fakeFullService{})
	registry.Register(posts.PlatformTwitter, fakeService{})
	registry.RegisterIdentity(posts.PlatformOrcid, fakeIdentityService{})

	if _, err := registry.Get(posts.PlatformMastodon); err != nil {
		t.Errorf("Get(mastodon) failed: %v", err)
	}
	if _, err := registry.Get(posts.PlatformNanopub); err == nil {
		t.Error("Get returned an adapter for an unregistered platform")
	}

	// Identity lookup covers identity-only adapters and full adapters
	// that also implement the signup flow.
	if _, err := registry.GetIdentity(posts.PlatformOrcid); err != nil {
		t.Errorf("GetIdentity(orcid) failed: %v", err)
	}
	if _, err := registry.GetIdentity(posts.PlatformMastodon); err != nil {
		t.Errorf("GetIdentity(mastodon) failed: %v", err)
	}
	if _, err := registry.GetIdentity(posts.PlatformTwitter); err == nil {
		t.Error("GetIdentity returned a service for an adapter without a signup flow")
	}

	converters := registry.Converters()
	if len(converters) != 2 {
		t.Errorf("Converters() has %d entries, want the 2 full adapters", len(converters))
	}
}

func TestDecodeCredentials(t *testing.T) {
	creds, err := DecodeCredentials(posts.PlatformMastodon, json.RawMessage(`{"domain":"mastodon.social","accessToken":"tok"}`))
	if err != nil {
		t.Fatalf("DecodeCredentials failed: %v", err)
	}
	if creds.Mastodon == nil || creds.Mastodon.AccessToken != "tok" {
		t.Errorf("decoded = %+v", creds)
	}

	if _, err := DecodeCredentials(posts.PlatformMastodon, nil); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("empty payload returned %v, want ErrMissingCredentials", err)
	}
	if _, err := DecodeCredentials("gopher", json.RawMessage(`{}`)); err == nil {
		t.Error("DecodeCredentials accepted an unknown platform")
	}
}
