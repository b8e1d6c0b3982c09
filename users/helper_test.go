package users

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/store"
)

func twoAccountUser() *AppUser {
	return &AppUser{
		UserID: "user-1",
		Accounts: map[posts.PlatformID][]Account{
			posts.PlatformMastodon: {
				{UserID: "acct-1"},
				{UserID: "acct-2"},
			},
		},
	}
}

func TestGetAccount(t *testing.T) {
	user := twoAccountUser()

	// Empty userID returns the first account.
	account, err := GetAccount(user, posts.PlatformMastodon, "", true)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if account.UserID != "acct-1" {
		t.Errorf("first account = %s", account.UserID)
	}

	account, err = GetAccount(user, posts.PlatformMastodon, "acct-2", true)
	if err != nil {
		t.Fatalf("GetAccount by id failed: %v", err)
	}
	if account.UserID != "acct-2" {
		t.Errorf("account = %s, want acct-2", account.UserID)
	}
}

func TestGetAccountBimodal(t *testing.T) {
	user := twoAccountUser()

	account, err := GetAccount(user, posts.PlatformTwitter, "", false)
	if err != nil {
		t.Fatalf("lenient lookup failed: %v", err)
	}
	if account != nil {
		t.Errorf("lenient lookup returned %+v, want nil", account)
	}

	if _, err := GetAccount(user, posts.PlatformTwitter, "", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("strict lookup returned %v, want ErrNotFound", err)
	}
	if _, err := GetAccount(user, posts.PlatformMastodon, "acct-9", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("strict lookup of unknown id returned %v, want ErrNotFound", err)
	}
	if _, err := GetAccount(nil, posts.PlatformMastodon, "", true); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("nil user returned %v, want ErrNotFound", err)
	}
}

func TestHasWriteCredentials(t *testing.T) {
	account := &Account{UserID: "acct-1"}
	if HasWriteCredentials(account) {
		t.Error("account without credentials reported writable")
	}

	account.Credentials = &AccountCredentials{Read: json.RawMessage(`{}`)}
	if HasWriteCredentials(account) {
		t.Error("read-only account reported writable")
	}

	account.Credentials.Write = json.RawMessage(`{}`)
	if !HasWriteCredentials(account) {
		t.Error("writable account not recognized")
	}

	if HasWriteCredentials(nil) {
		t.Error("nil account reported writable")
	}
}
