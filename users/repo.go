package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/store"
)

// Repo persists application users.
type Repo struct{}

// NewRepo creates a user repository.
func NewRepo() *Repo {
	return &Repo{}
}

// Create stores a new user under a fresh id and returns it.
func (r *Repo) Create(ctx context.Context, tx *store.Txn, user AppUser) (*AppUser, error) {
	if user.UserID == "" {
		user.UserID = store.NewID()
	}
	if user.Accounts == nil {
		user.Accounts = map[posts.PlatformID][]Account{}
	}
	data, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	if err := tx.Create(ctx, store.CollectionUsers, user.UserID, data); err != nil {
		return nil, err
	}
	return &user, nil
}

// Get returns the user with the given id. With shouldThrow false a
// missing user yields (nil, nil).
func (r *Repo) Get(ctx context.Context, tx *store.Txn, userID string, shouldThrow bool) (*AppUser, error) {
	data, err := tx.Get(ctx, store.CollectionUsers, userID)
	if errors.Is(err, store.ErrNotFound) {
		if shouldThrow {
			return nil, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user AppUser
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("unmarshal user %s: %w", userID, err)
	}
	return &user, nil
}

// SetAccount adds or replaces one platform account of a user, matched
// by its platform user_id.
func (r *Repo) SetAccount(ctx context.Context, tx *store.Txn, userID string, platform posts.PlatformID, account Account) error {
	user, err := r.Get(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	if user.Accounts == nil {
		user.Accounts = map[posts.PlatformID][]Account{}
	}

	accounts := user.Accounts[platform]
	replaced := false
	for i := range accounts {
		if accounts[i].UserID == account.UserID {
			accounts[i] = account
			replaced = true
			break
		}
	}
	if !replaced {
		accounts = append(accounts, account)
	}
	user.Accounts[platform] = accounts

	return r.put(ctx, tx, user)
}

// SetFetchedDetails merges newly observed boundary markers into an
// account's fetched details.
func (r *Repo) SetFetchedDetails(ctx context.Context, tx *store.Txn, userID string, platform posts.PlatformID, platformUserID string, fetched FetchedDetails) error {
	user, err := r.Get(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	account, err := GetAccount(user, platform, platformUserID, true)
	if err != nil {
		return err
	}

	if account.Fetched == nil {
		account.Fetched = &FetchedDetails{}
	}
	if fetched.NewestID != "" {
		account.Fetched.NewestID = fetched.NewestID
	}
	if fetched.OldestID != "" {
		account.Fetched.OldestID = fetched.OldestID
	}

	return r.put(ctx, tx, user)
}

func (r *Repo) put(ctx context.Context, tx *store.Txn, user *AppUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return tx.Put(ctx, store.CollectionUsers, user.UserID, data)
}
