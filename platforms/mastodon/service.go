package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

// Config holds the adapter settings.
type Config struct {
	// APIDomain is the server used when an account carries no domain.
	APIDomain string `yaml:"api_domain"`
}

// Service is the mastodon platform adapter.
type Service struct {
	config Config
	logger *slog.Logger

	// newClient and newSubscriber are swappable for tests.
	newClient     func(domain, accessToken string) *Client
	newSubscriber func(domain, accessToken string, handler StatusHandler, logger *slog.Logger) *StreamSubscriber
}

// NewService creates the adapter.
func NewService(config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:        config,
		logger:        logger,
		newClient:     NewClient,
		newSubscriber: NewStreamSubscriber,
	}
}

func (s *Service) client(creds platforms.Credentials) (*Client, error) {
	if creds.Mastodon == nil || creds.Mastodon.AccessToken == "" {
		return nil, fmt.Errorf("mastodon: %w", platforms.ErrMissingCredentials)
	}
	domain := creds.Mastodon.Domain
	if domain == "" {
		domain = s.config.APIDomain
	}
	return s.newClient(domain, creds.Mastodon.AccessToken), nil
}

// Fetch retrieves an account's statuses within the given boundaries,
// paging until the expected amount of reconstructed threads or
// exhaustion.
func (s *Service) Fetch(ctx context.Context, userID string, params platforms.FetchParams, creds platforms.Credentials) (*platforms.FetchResult, error) {
	client, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	pageParams := AccountStatusesParams{MinID: params.SinceID, MaxID: params.UntilID}
	var all []Status
	var newestID, oldestID string

	for {
		statuses, err := client.AccountStatuses(ctx, userID, pageParams)
		if err != nil {
			return nil, fmt.Errorf("fetch statuses of %s: %w", userID, err)
		}
		if len(statuses) == 0 {
			break
		}
		all = append(all, statuses...)

		for _, status := range statuses {
			if newestID == "" || compareIDs(status.ID, newestID) > 0 {
				newestID = status.ID
			}
			if oldestID == "" || compareIDs(status.ID, oldestID) < 0 {
				oldestID = status.ID
			}
		}

		threads := ConvertToThreads(all, all[0].Account)
		s.logger.Debug("fetch page",
			"statuses", len(statuses), "total", len(all), "threads", len(threads))
		if params.ExpectedAmount > 0 && len(threads) >= params.ExpectedAmount {
			break
		}
		pageParams.MaxID = oldestID
	}

	result := &platforms.FetchResult{
		Fetched: users.FetchedDetails{NewestID: newestID, OldestID: oldestID},
	}
	if len(all) == 0 {
		return result, nil
	}

	for _, thread := range ConvertToThreads(all, all[0].Account) {
		posted, err := postedFromThread(thread)
		if err != nil {
			return nil, err
		}
		result.Posts = append(result.Posts, *posted)
	}
	return result, nil
}

// Get reconstructs the full thread a single status belongs to, walking
// up to the root and back down through the author's replies.
func (s *Service) Get(ctx context.Context, postID string, creds platforms.Credentials) (*posts.PostedDetails, error) {
	client, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	statusContext, err := client.GetContext(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get context of %s: %w", postID, err)
	}

	root, err := s.rootStatus(ctx, client, postID, statusContext)
	if err != nil {
		return nil, err
	}

	rootContext, err := client.GetContext(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("get context of root %s: %w", root.ID, err)
	}

	all := append([]Status{*root}, rootContext.Ancestors...)
	all = append(all, rootContext.Descendants...)
	threads := ConvertToThreads(all, root.Account)
	if len(threads) == 0 {
		return nil, fmt.Errorf("no thread reconstructed for status %s", postID)
	}
	return postedFromThread(threads[len(threads)-1])
}

func (s *Service) rootStatus(ctx context.Context, client *Client, postID string, statusContext *StatusContext) (*Status, error) {
	if len(statusContext.Ancestors) == 0 {
		status, err := client.GetStatus(ctx, postID)
		if err != nil {
			return nil, fmt.Errorf("get status %s: %w", postID, err)
		}
		return status, nil
	}
	root := statusContext.Ancestors[0]
	for _, ancestor := range statusContext.Ancestors[1:] {
		if compareIDs(ancestor.ID, root.ID) < 0 {
			root = ancestor
		}
	}
	return &root, nil
}

func postedFromThread(thread Thread) (*posts.PostedDetails, error) {
	payload, err := json.Marshal(thread)
	if err != nil {
		return nil, fmt.Errorf("marshal thread: %w", err)
	}
	return &posts.PostedDetails{
		UserID:      thread.Author.ID,
		PostID:      thread.ThreadID,
		TimestampMs: parseTimestampMs(thread.Posts[0].CreatedAt),
		Post:        payload,
	}, nil
}

func parseTimestampMs(createdAt string) int64 {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// ConvertToGeneric maps a fetched thread to the canonical shape.
func (s *Service) ConvertToGeneric(platformPost *posts.PlatformPost) (posts.GenericThread, error) {
	if platformPost.Posted == nil {
		return posts.GenericThread{}, fmt.Errorf("platform post has no posted payload")
	}

	var thread Thread
	if err := json.Unmarshal(platformPost.Posted.Post, &thread); err != nil {
		return posts.GenericThread{}, fmt.Errorf("unmarshal mastodon thread: %w", err)
	}

	generic := posts.GenericThread{
		Author: posts.GenericAuthor{
			PlatformID: posts.PlatformMastodon,
			ID:         thread.Author.ID,
			Username:   thread.Author.Username,
			Name:       thread.Author.DisplayName,
			AvatarURL:  thread.Author.Avatar,
		},
	}
	for _, status := range thread.Posts {
		generic.Thread = append(generic.Thread, posts.GenericPost{
			URL:     status.URL,
			Content: CleanContent(status.Content),
		})
	}
	return generic, nil
}

// ConvertFromGeneric produces a delegated-signing draft from a
// canonical post, joining the thread text.
func (s *Service) ConvertFromGeneric(post *posts.AppPostFull, author *users.AppUser) (*posts.DraftDetails, error) {
	account, err := users.GetAccount(author, posts.PlatformMastodon, "", true)
	if err != nil {
		return nil, err
	}
	return &posts.DraftDetails{
		UserID:       account.UserID,
		PostApproval: posts.DraftApprovalPending,
		SignerType:   posts.SignerTypeDelegated,
		UnsignedPost: posts.ConcatenateThread(post.Generic),
	}, nil
}

// Publish submits a draft as a new status. Write credentials are
// required.
func (s *Service) Publish(ctx context.Context, draft *posts.DraftDetails, creds platforms.Credentials) (*posts.PostedDetails, error) {
	client, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	status, err := client.PostStatus(ctx, draft.UnsignedPost)
	if err != nil {
		return nil, fmt.Errorf("publish status: %w", err)
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return &posts.PostedDetails{
		UserID:      status.Account.ID,
		PostID:      status.ID,
		TimestampMs: parseTimestampMs(status.CreatedAt),
		Post:        payload,
	}, nil
}

// GetSignupContext returns the authorization URL context for a server.
func (s *Service) GetSignupContext(_ context.Context, _ string, params map[string]string) (json.RawMessage, error) {
	server := params["mastodonServer"]
	callback := params["callback_url"]
	if server == "" || callback == "" {
		return nil, fmt.Errorf("mastodon server and callback URL are required")
	}

	scopes := "read"
	if params["type"] == "write" {
		scopes = "read+write"
	}
	authorizationURL := fmt.Sprintf(
		"https://%s/oauth/authorize?scope=%s&redirect_uri=%s&response_type=code",
		server, scopes, callback)

	return json.Marshal(map[string]string{"authorizationUrl": authorizationURL})
}

// HandleSignupData verifies the obtained token and returns the linked
// account.
func (s *Service) HandleSignupData(ctx context.Context, data json.RawMessage) (*users.Account, error) {
	var signup struct {
		MastodonServer string `json:"mastodonServer"`
		AccessToken    string `json:"accessToken"`
		Type           string `json:"type"`
	}
	if err := json.Unmarshal(data, &signup); err != nil {
		return nil, fmt.Errorf("decode signup data: %w", err)
	}
	if signup.MastodonServer == "" || signup.AccessToken == "" {
		return nil, fmt.Errorf("mastodon server and access token are required")
	}

	client := s.newClient(signup.MastodonServer, signup.AccessToken)
	account, err := client.VerifyCredentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	creds, err := json.Marshal(platforms.MastodonCredentials{
		Domain:      signup.MastodonServer,
		AccessToken: signup.AccessToken,
	})
	if err != nil {
		return nil, err
	}

	result := &users.Account{
		UserID:       account.ID,
		SignupDateMs: time.Now().UnixMilli(),
		Profile: &users.AccountProfile{
			Username:    account.Username,
			DisplayName: account.DisplayName,
			AvatarURL:   account.Avatar,
			Domain:      signup.MastodonServer,
		},
		Credentials: &users.AccountCredentials{Read: creds},
	}
	if signup.Type == "write" {
		result.Credentials.Write = creds
	}
	return result, nil
}
