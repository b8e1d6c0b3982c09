package users

import (
	"fmt"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/store"
)

// GetAccounts returns all accounts a user holds on a platform.
func GetAccounts(user *AppUser, platform posts.PlatformID) []Account {
	if user == nil || user.Accounts == nil {
		return nil
	}
	return user.Accounts[platform]
}

// GetAccount selects a user's account on a platform, by user_id when
// given, otherwise the first one. With shouldThrow false a missing
// account yields (nil, nil).
func GetAccount(user *AppUser, platform posts.PlatformID, userID string, shouldThrow bool) (*Account, error) {
	accounts := GetAccounts(user, platform)

	for i := range accounts {
		if userID == "" || accounts[i].UserID == userID {
			return &accounts[i], nil
		}
	}

	if shouldThrow {
		appUserID := ""
		if user != nil {
			appUserID = user.UserID
		}
		return nil, fmt.Errorf("account on %s for user %s: %w", platform, appUserID, store.ErrNotFound)
	}
	return nil, nil
}

// HasWriteCredentials reports whether an account can publish.
func HasWriteCredentials(account *Account) bool {
	return account != nil && account.Credentials != nil && len(account.Credentials.Write) > 0
}
