// Package pipeline wires the platform adapters, the upstream parser,
// and the posts orchestrator into the fetch/process/publish flows the
// commands drive.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360studio/semstreams/natsclient"

	"github.com/sensenets/sensegraph/graphpub"
	"github.com/sensenets/sensegraph/metrics"
	"github.com/sensenets/sensegraph/nanopub"
	"github.com/sensenets/sensegraph/parser"
	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/semantics"
	"github.com/sensenets/sensegraph/store"
	"github.com/sensenets/sensegraph/users"
)

// Manager runs the end-to-end flows. External network calls happen
// outside transaction scopes; each committed unit is one Manager.Run.
type Manager struct {
	processing *posts.Processing
	registry   *platforms.Registry
	usersRepo  *users.Repo
	parser     *parser.Client
	nc         *natsclient.Client
	logger     *slog.Logger
}

// NewManager creates the pipeline manager. The NATS client may be nil;
// graph publishing then degrades to a no-op.
func NewManager(processing *posts.Processing, registry *platforms.Registry, usersRepo *users.Repo, parserClient *parser.Client, nc *natsclient.Client, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		processing: processing,
		registry:   registry,
		usersRepo:  usersRepo,
		parser:     parserClient,
		nc:         nc,
		logger:     logger,
	}
}

func (m *Manager) run(ctx context.Context, fn func(tx *store.Txn) error) error {
	return m.processing.Manager().Run(ctx, fn)
}

// FetchAndProcess fetches a user's new posts on one platform, ingests
// them, and extracts semantics for each created post. Per-post parse
// failures are logged and isolated.
func (m *Manager) FetchAndProcess(ctx context.Context, userID string, platform posts.PlatformID, expectedAmount int) error {
	var account *users.Account
	if err := m.run(ctx, func(tx *store.Txn) error {
		user, err := m.usersRepo.Get(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		account, err = users.GetAccount(user, platform, "", true)
		return err
	}); err != nil {
		return err
	}

	service, err := m.registry.Get(platform)
	if err != nil {
		return err
	}
	if account.Credentials == nil {
		return fmt.Errorf("%s: %w", platform, platforms.ErrMissingCredentials)
	}
	creds, err := platforms.DecodeCredentials(platform, account.Credentials.Read)
	if err != nil {
		return err
	}

	params := platforms.FetchParams{ExpectedAmount: expectedAmount}
	if account.Fetched != nil {
		params.SinceID = account.Fetched.NewestID
	}

	result, err := service.Fetch(ctx, account.UserID, params, creds)
	if err != nil {
		return fmt.Errorf("fetch %s posts: %w", platform, err)
	}
	m.logger.Info("fetched posts",
		"platform", platform, "user", userID, "posts", len(result.Posts))

	items := make([]posts.PlatformPostCreate, 0, len(result.Posts))
	for i := range result.Posts {
		items = append(items, posts.PlatformPostCreate{
			PlatformID:    platform,
			PublishStatus: posts.PublishStatusPublished,
			PublishOrigin: posts.PublishOriginFetched,
			Posted:        &result.Posts[i],
		})
	}

	created, err := m.processing.CreatePlatformPosts(ctx, items, userID)
	if err != nil {
		return err
	}

	if result.Fetched.NewestID != "" || result.Fetched.OldestID != "" {
		if err := m.run(ctx, func(tx *store.Txn) error {
			return m.usersRepo.SetFetchedDetails(ctx, tx, userID, platform, account.UserID, result.Fetched)
		}); err != nil {
			return err
		}
	}

	for _, item := range created {
		if err := m.ParsePost(ctx, item.Post.ID); err != nil {
			m.logger.Error("parsing post failed", "post", item.Post.ID, "error", err)
		}
	}
	return nil
}

// Listen subscribes to a user's live updates on a streaming-capable
// platform and runs each delivered thread through ingestion and
// semantic extraction. It blocks until the context is cancelled.
func (m *Manager) Listen(ctx context.Context, userID string, platform posts.PlatformID) error {
	var account *users.Account
	if err := m.run(ctx, func(tx *store.Txn) error {
		user, err := m.usersRepo.Get(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		account, err = users.GetAccount(user, platform, "", true)
		return err
	}); err != nil {
		return err
	}

	service, err := m.registry.Get(platform)
	if err != nil {
		return err
	}
	streamer, ok := service.(platforms.Streamer)
	if !ok {
		return fmt.Errorf("platform %s does not support streaming", platform)
	}
	if account.Credentials == nil {
		return fmt.Errorf("%s: %w", platform, platforms.ErrMissingCredentials)
	}
	creds, err := platforms.DecodeCredentials(platform, account.Credentials.Read)
	if err != nil {
		return err
	}

	m.logger.Info("listening for posts", "platform", platform, "user", userID)
	return streamer.Stream(ctx, account.UserID, creds, func(ctx context.Context, posted *posts.PostedDetails) error {
		created, err := m.processing.CreatePlatformPosts(ctx, []posts.PlatformPostCreate{{
			PlatformID:    platform,
			PublishStatus: posts.PublishStatusPublished,
			PublishOrigin: posts.PublishOriginFetched,
			Posted:        posted,
		}}, userID)
		if err != nil {
			return err
		}
		for _, item := range created {
			if err := m.ParsePost(ctx, item.Post.ID); err != nil {
				m.logger.Error("parsing streamed post failed", "post", item.Post.ID, "error", err)
			}
		}
		return nil
	})
}

// ParsePost runs semantic extraction for one post: marks it
// processing, calls the upstream parser outside any transaction,
// stores the triples and resulting statuses, and publishes the
// semantics to the knowledge graph.
func (m *Manager) ParsePost(ctx context.Context, postID string) error {
	var post *posts.AppPost
	processing := posts.ParsingStatusProcessing
	if err := m.run(ctx, func(tx *store.Txn) error {
		var err error
		post, err = m.processing.UpdatePost(ctx, tx, postID, posts.PostUpdate{
			ParsingStatus: &processing,
		})
		return err
	}); err != nil {
		return err
	}

	result, err := m.parser.Parse(ctx, parser.ParseRequest{
		Content: posts.ConcatenateThread(post.Generic),
	})
	if err != nil {
		m.markParseErrored(ctx, postID)
		return fmt.Errorf("extract semantics of post %s: %w", postID, err)
	}

	isFirst := post.ParsedStatus == posts.ParsedStatusUnprocessed
	if err := m.run(ctx, func(tx *store.Txn) error {
		if _, err := m.processing.ProcessSemantics(ctx, tx, postID, result.Semantics, isFirst, result); err != nil {
			return err
		}
		idle := posts.ParsingStatusIdle
		processed := posts.ParsedStatusProcessed
		_, err := m.processing.UpdatePost(ctx, tx, postID, posts.PostUpdate{
			Semantics:      &result.Semantics,
			OriginalParsed: result,
			ParsingStatus:  &idle,
			ParsedStatus:   &processed,
		})
		return err
	}); err != nil {
		m.markParseErrored(ctx, postID)
		return err
	}

	return m.publishGraph(ctx, postID)
}

func (m *Manager) markParseErrored(ctx context.Context, postID string) {
	errored := posts.ParsingStatusErrored
	if err := m.run(ctx, func(tx *store.Txn) error {
		_, err := m.processing.UpdatePost(ctx, tx, postID, posts.PostUpdate{
			ParsingStatus: &errored,
		})
		return err
	}); err != nil {
		m.logger.Error("marking post errored failed", "post", postID, "error", err)
	}
}

func (m *Manager) publishGraph(ctx context.Context, postID string) error {
	var triples []semantics.Triple
	if err := m.run(ctx, func(tx *store.Txn) error {
		var err error
		triples, err = semantics.NewRepo().GetOfPost(ctx, tx, postID)
		return err
	}); err != nil {
		return err
	}
	return graphpub.PublishPostSemantics(ctx, m.nc, postID, triples)
}

// PublishPost republishes a canonical post to a platform: converts it
// to a draft, publishes through the adapter, and records the new
// mirror. For the nanopub platform the posted payload carries the
// supersedes bookkeeping: the root URI is fixed at first publication,
// later versions keep it.
func (m *Manager) PublishPost(ctx context.Context, postID, userID string, platform posts.PlatformID) error {
	var post *posts.AppPostFull
	var user *users.AppUser
	if err := m.run(ctx, func(tx *store.Txn) error {
		var err error
		post, err = m.processing.GetPostFull(ctx, tx, postID, true)
		if err != nil {
			return err
		}
		user, err = m.usersRepo.Get(ctx, tx, userID, true)
		return err
	}); err != nil {
		return err
	}

	service, err := m.registry.Get(platform)
	if err != nil {
		return err
	}
	account, err := users.GetAccount(user, platform, "", true)
	if err != nil {
		return err
	}
	if !users.HasWriteCredentials(account) {
		return fmt.Errorf("%s write: %w", platform, platforms.ErrMissingCredentials)
	}
	creds, err := platforms.DecodeCredentials(platform, account.Credentials.Write)
	if err != nil {
		return err
	}

	draft, err := service.ConvertFromGeneric(post, user)
	if err != nil {
		return err
	}

	posted, err := service.Publish(ctx, draft, creds)
	if err != nil {
		return fmt.Errorf("publish post %s to %s: %w", postID, platform, err)
	}

	if platform == posts.PlatformNanopub {
		if err := m.applySupersedes(post, posted); err != nil {
			return err
		}
		metrics.NanopubsPublished.Inc()
	}

	return m.run(ctx, func(tx *store.Txn) error {
		republished := posts.RepublishedStatusRepublished
		if _, err := m.processing.UpdatePost(ctx, tx, postID, posts.PostUpdate{
			RepublishedStatus: &republished,
		}); err != nil {
			return err
		}

		if mirror := post.Mirror(platform); mirror != nil {
			return m.processing.PlatformPosts().SetPosted(ctx, tx, mirror.ID, posted)
		}

		mirror, err := m.processing.PlatformPosts().Create(ctx, tx, posts.PlatformPostCreate{
			PlatformID:    platform,
			PublishStatus: posts.PublishStatusPublished,
			PublishOrigin: posts.PublishOriginPosted,
			Posted:        posted,
			Draft:         draft,
		})
		if err != nil {
			return err
		}
		if err := m.processing.PlatformPosts().SetAppPostID(ctx, tx, mirror.ID, postID); err != nil {
			return err
		}
		return m.processing.Posts().AddMirror(ctx, tx, postID, mirror.ID)
	})
}

// applySupersedes rewrites the new posted payload so its root URI is
// fixed at the first published version.
func (m *Manager) applySupersedes(post *posts.AppPostFull, posted *posts.PostedDetails) error {
	var payload nanopub.PublishedPayload
	if err := json.Unmarshal(posted.Post, &payload); err != nil {
		return fmt.Errorf("unmarshal nanopub payload: %w", err)
	}

	payload.RootURI = payload.URI
	if mirror := post.Mirror(posts.PlatformNanopub); mirror != nil && mirror.Posted != nil && len(mirror.Posted.Post) > 0 {
		var previous nanopub.PublishedPayload
		if err := json.Unmarshal(mirror.Posted.Post, &previous); err != nil {
			return fmt.Errorf("unmarshal previous nanopub payload: %w", err)
		}
		if previous.RootURI != "" {
			payload.RootURI = previous.RootURI
		} else if previous.URI != "" {
			payload.RootURI = previous.URI
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	posted.Post = data
	return nil
}
