// Package users holds the application user model and the helpers that
// select platform accounts and credentials.
package users

import (
	"encoding/json"

	"github.com/sensenets/sensegraph/posts"
)

// AccountProfile is the public profile of one platform account.
type AccountProfile struct {
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatar,omitempty"`
	// Domain is the home server of a federated account.
	Domain string `json:"domain,omitempty"`
}

// AccountCredentials carries the raw platform credentials of one
// account. Write credentials are required for publishing; their shape
// is platform-specific and validated at the adapter boundary.
type AccountCredentials struct {
	Read  json.RawMessage `json:"read,omitempty"`
	Write json.RawMessage `json:"write,omitempty"`
}

// NanopubIdentity are the cryptographic identity references of a
// nanopub platform account.
type NanopubIdentity struct {
	RSAPublicKey    string `json:"rsaPublickey,omitempty"`
	EthAddress      string `json:"ethAddress,omitempty"`
	IntroNanopubURI string `json:"introNanopubUri,omitempty"`
	OrcidID         string `json:"orcidId,omitempty"`
}

// FetchedDetails are the newest/oldest boundary markers persisted per
// account for incremental resync.
type FetchedDetails struct {
	NewestID string `json:"newest_id,omitempty"`
	OldestID string `json:"oldest_id,omitempty"`
}

// Account is one platform account of an application user.
type Account struct {
	UserID       string              `json:"user_id"`
	SignupDateMs int64               `json:"signupDate,omitempty"`
	Profile      *AccountProfile     `json:"profile,omitempty"`
	Credentials  *AccountCredentials `json:"credentials,omitempty"`
	Identity     *NanopubIdentity    `json:"identity,omitempty"`
	Fetched      *FetchedDetails     `json:"fetched,omitempty"`
}

// AppUser is an application user with their linked platform accounts.
type AppUser struct {
	UserID   string                         `json:"userId"`
	Accounts map[posts.PlatformID][]Account `json:"accounts"`
}

// ProfileID composes the profile id of an account on a platform.
func (a Account) ProfileID(platform posts.PlatformID) string {
	return posts.ProfileID(platform, a.UserID)
}
