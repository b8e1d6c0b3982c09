package twitter

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

// Service is the twitter platform adapter.
type Service struct {
	logger *slog.Logger

	// newClient is swappable for tests.
	newClient func(bearerToken string) *Client
}

// NewService creates the adapter.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, newClient: NewClient}
}

func (s *Service) client(creds platforms.Credentials) (*Client, error) {
	if creds.Twitter == nil {
		return nil, fmt.Errorf("twitter: %w", platforms.ErrMissingCredentials)
	}
	token := creds.Twitter.BearerToken
	if token == "" {
		token = creds.Twitter.AccessToken
	}
	if token == "" {
		return nil, fmt.Errorf("twitter: %w", platforms.ErrMissingCredentials)
	}
	return s.newClient(token), nil
}

// Fetch retrieves a user's tweets within the given boundaries, paging
// until the expected amount of reconstructed threads or exhaustion.
func (s *Service) Fetch(ctx context.Context, userID string, params platforms.FetchParams, creds platforms.Credentials) (*platforms.FetchResult, error) {
	client, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	pageParams := TimelineParams{SinceID: params.SinceID, UntilID: params.UntilID}
	var all []Tweet
	var author User
	var newestID, oldestID string

	for {
		timeline, err := client.UserTimeline(ctx, userID, pageParams)
		if err != nil {
			return nil, fmt.Errorf("fetch timeline of %s: %w", userID, err)
		}
		if len(timeline.Data) == 0 {
			break
		}
		all = append(all, timeline.Data...)

		if author.ID == "" {
			for _, user := range timeline.Includes.Users {
				if user.ID == userID {
					author = user
					break
				}
			}
		}
		if timeline.Meta.NewestID != "" && (newestID == "" || compareIDs(timeline.Meta.NewestID, newestID) > 0) {
			newestID = timeline.Meta.NewestID
		}
		if timeline.Meta.OldestID != "" && (oldestID == "" || compareIDs(timeline.Meta.OldestID, oldestID) < 0) {
			oldestID = timeline.Meta.OldestID
		}

		threads := ConvertToThreads(all, author)
		s.logger.Debug("fetch page",
			"tweets", len(timeline.Data), "total", len(all), "threads", len(threads))
		if params.ExpectedAmount > 0 && len(threads) >= params.ExpectedAmount {
			break
		}
		if timeline.Meta.NextToken == "" {
			break
		}
		pageParams.PaginationToken = timeline.Meta.NextToken
	}

	result := &platforms.FetchResult{
		Fetched: users.FetchedDetails{NewestID: newestID, OldestID: oldestID},
	}
	if len(all) == 0 {
		return result, nil
	}
	if author.ID == "" {
		author = User{ID: userID}
	}

	for _, thread := range ConvertToThreads(all, author) {
		payload, err := json.Marshal(thread)
		if err != nil {
			return nil, fmt.Errorf("marshal thread: %w", err)
		}
		result.Posts = append(result.Posts, posts.PostedDetails{
			UserID:      author.ID,
			PostID:      thread.ConversationID,
			TimestampMs: parseTimestampMs(thread.Tweets[0].CreatedAt),
			Post:        payload,
		})
	}
	return result, nil
}

func parseTimestampMs(createdAt string) int64 {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// ConvertToGeneric maps a fetched thread to the canonical shape,
// expanding shortened URLs in the tweet text.
func (s *Service) ConvertToGeneric(platformPost *posts.PlatformPost) (posts.GenericThread, error) {
	if platformPost.Posted == nil {
		return posts.GenericThread{}, fmt.Errorf("platform post has no posted payload")
	}

	var thread Thread
	if err := json.Unmarshal(platformPost.Posted.Post, &thread); err != nil {
		return posts.GenericThread{}, fmt.Errorf("unmarshal twitter thread: %w", err)
	}

	generic := posts.GenericThread{
		Author: posts.GenericAuthor{
			PlatformID: posts.PlatformTwitter,
			ID:         thread.Author.ID,
			Username:   thread.Author.Username,
			Name:       thread.Author.Name,
		},
	}
	for _, tweet := range thread.Tweets {
		generic.Thread = append(generic.Thread, posts.GenericPost{
			URL:     tweetURL(thread.Author.Username, tweet.ID),
			Content: TextWithURLs(tweet),
		})
	}
	return generic, nil
}

func tweetURL(username, tweetID string) string {
	if username == "" || tweetID == "" {
		return ""
	}
	return "https://x.com/" + username + "/status/" + tweetID
}

// ConvertFromGeneric produces a user-signed draft from a canonical
// post.
func (s *Service) ConvertFromGeneric(post *posts.AppPostFull, author *users.AppUser) (*posts.DraftDetails, error) {
	account, err := users.GetAccount(author, posts.PlatformTwitter, "", true)
	if err != nil {
		return nil, err
	}
	return &posts.DraftDetails{
		UserID:       account.UserID,
		PostApproval: posts.DraftApprovalPending,
		SignerType:   posts.SignerTypeUser,
		UnsignedPost: posts.ConcatenateThread(post.Generic),
	}, nil
}

// Publish submits a draft as a new tweet.
func (s *Service) Publish(ctx context.Context, draft *posts.DraftDetails, creds platforms.Credentials) (*posts.PostedDetails, error) {
	client, err := s.client(creds)
	if err != nil {
		return nil, err
	}

	tweet, err := client.PostTweet(ctx, draft.UnsignedPost)
	if err != nil {
		return nil, fmt.Errorf("publish tweet: %w", err)
	}

	payload, err := json.Marshal(tweet)
	if err != nil {
		return nil, fmt.Errorf("marshal tweet: %w", err)
	}
	return &posts.PostedDetails{
		UserID:      draft.UserID,
		PostID:      tweet.ID,
		TimestampMs: time.Now().UnixMilli(),
		Post:        payload,
	}, nil
}
