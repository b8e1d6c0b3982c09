package posts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sensenets/sensegraph/links"
	"github.com/sensenets/sensegraph/metrics"
	"github.com/sensenets/sensegraph/parser"
	"github.com/sensenets/sensegraph/semantics"
	"github.com/sensenets/sensegraph/store"
)

// KeywordsPredicate is the sentinel predicate whose objects are treated
// as keywords rather than relation labels.
const KeywordsPredicate = "https://schema.org/keywords"

// Converter maps a platform post to the canonical thread shape.
// Implemented per platform by the adapters.
type Converter interface {
	ConvertToGeneric(platformPost *PlatformPost) (GenericThread, error)
}

// SemanticsResult summarizes one semantics processing run: deduplicated
// relation labels (predicate IRIs), deduplicated keywords, and the
// reference metadata resolved during a first parse.
type SemanticsResult struct {
	Labels   []string
	Keywords []string
	RefsMeta map[string]links.RefMeta
}

// Processing is the pipeline core. It deduplicates platform posts into
// canonical posts, extracts and stores their semantics, and assembles
// full post views. Every mutating method takes the transaction handle
// it must run inside.
type Processing struct {
	manager    *store.Manager
	posts      *PostsRepo
	platforms  *PlatformPostsRepo
	triples    *semantics.Repo
	linksSvc   *links.Service
	converters map[PlatformID]Converter
	logger     *slog.Logger
}

// NewProcessing creates the orchestrator.
func NewProcessing(manager *store.Manager, linksSvc *links.Service, converters map[PlatformID]Converter, logger *slog.Logger) *Processing {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processing{
		manager:    manager,
		posts:      NewPostsRepo(),
		platforms:  NewPlatformPostsRepo(),
		triples:    semantics.NewRepo(),
		linksSvc:   linksSvc,
		converters: converters,
		logger:     logger,
	}
}

// Manager returns the transaction manager the orchestrator runs on.
func (p *Processing) Manager() *store.Manager {
	return p.manager
}

// Posts returns the canonical post repository.
func (p *Processing) Posts() *PostsRepo {
	return p.posts
}

// PlatformPosts returns the platform post repository.
func (p *Processing) PlatformPosts() *PlatformPostsRepo {
	return p.platforms
}

func (p *Processing) converter(platform PlatformID) (Converter, error) {
	conv, ok := p.converters[platform]
	if !ok {
		return nil, fmt.Errorf("no converter registered for platform %s", platform)
	}
	return conv, nil
}

// CreatePlatformPost ingests one platform post. If a record for the
// same (platform, external post id) already exists the call is a no-op
// returning (nil, nil). Otherwise it persists a new PlatformPost, a
// canonical AppPost with the default status quadruple, and the
// back-link between them. The dedup check and the creation run in the
// caller's transaction so concurrent ingestions of the same external
// post collapse to one record.
func (p *Processing) CreatePlatformPost(ctx context.Context, tx *store.Txn, create PlatformPostCreate, authorUserID string) (*PlatformPostCreated, error) {
	if create.Posted != nil && create.Posted.PostID != "" {
		existing, err := p.platforms.GetFromExternalID(ctx, tx, create.PlatformID, create.Posted.PostID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			metrics.PostsDeduplicated.WithLabelValues(string(create.PlatformID)).Inc()
			return nil, nil
		}
	}

	ownerID := ""
	if create.Posted != nil && create.Posted.UserID != "" {
		ownerID = create.Posted.UserID
	} else if create.Draft != nil && create.Draft.UserID != "" {
		ownerID = create.Draft.UserID
	}
	if ownerID == "" {
		return nil, ErrMissingOwner
	}

	conv, err := p.converter(create.PlatformID)
	if err != nil {
		return nil, err
	}
	generic, err := conv.ConvertToGeneric(&PlatformPost{
		PlatformID:    create.PlatformID,
		PublishStatus: create.PublishStatus,
		PublishOrigin: create.PublishOrigin,
		Posted:        create.Posted,
		Draft:         create.Draft,
	})
	if err != nil {
		return nil, fmt.Errorf("convert %s post to generic: %w", create.PlatformID, err)
	}

	platformPost, err := p.platforms.Create(ctx, tx, create)
	if err != nil {
		return nil, err
	}

	var createdAtMs int64
	if create.Posted != nil {
		createdAtMs = create.Posted.TimestampMs
	}

	post, err := p.CreateAppPost(ctx, tx, AppPostCreate{
		AuthorProfileID: ProfileID(create.PlatformID, ownerID),
		AuthorUserID:    authorUserID,
		Origin:          create.PlatformID,
		CreatedAtMs:     createdAtMs,
		Generic:         generic,
		MirrorsIDs:      []string{platformPost.ID},
	})
	if err != nil {
		return nil, err
	}

	if err := p.platforms.SetAppPostID(ctx, tx, platformPost.ID, post.ID); err != nil {
		return nil, err
	}
	platformPost.PostID = post.ID

	metrics.PostsIngested.WithLabelValues(string(create.PlatformID)).Inc()
	return &PlatformPostCreated{Post: post, PlatformPost: platformPost}, nil
}

// CreatePlatformPosts ingests a batch concurrently, each item in its
// own transaction so one item's failure does not roll back or cancel
// another's creation. Returns the created (non-no-op) results
// preserving input order; on error the committed items stay committed.
func (p *Processing) CreatePlatformPosts(ctx context.Context, items []PlatformPostCreate, authorUserID string) ([]*PlatformPostCreated, error) {
	results := make([]*PlatformPostCreated, len(items))

	var g errgroup.Group
	for i, item := range items {
		g.Go(func() error {
			return p.manager.Run(ctx, func(tx *store.Txn) error {
				created, err := p.CreatePlatformPost(ctx, tx, item, authorUserID)
				if err != nil {
					return err
				}
				results[i] = created
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	created := make([]*PlatformPostCreated, 0, len(results))
	for _, result := range results {
		if result != nil {
			created = append(created, result)
		}
	}
	return created, nil
}

// CreateAppPost persists a canonical post with the default status
// quadruple.
func (p *Processing) CreateAppPost(ctx context.Context, tx *store.Txn, input AppPostCreate) (*AppPost, error) {
	return p.posts.Create(ctx, tx, AppPost{
		AuthorProfileID:   input.AuthorProfileID,
		AuthorUserID:      input.AuthorUserID,
		Origin:            input.Origin,
		CreatedAtMs:       input.CreatedAtMs,
		Generic:           input.Generic,
		ParsingStatus:     ParsingStatusIdle,
		ParsedStatus:      ParsedStatusUnprocessed,
		ReviewedStatus:    ReviewStatusPending,
		RepublishedStatus: RepublishedStatusPending,
		Semantics:         input.Semantics,
		OriginalParsed:    input.OriginalParsed,
		MirrorsIDs:        input.MirrorsIDs,
	})
}

// ProcessSemantics replaces a post's stored triples with the ones
// parsed from the given RDF text. Existing triples are always deleted
// first, so an empty semantics string clears stale data and returns a
// nil result. A parse failure aborts the caller's transaction, leaving
// the pre-existing triple set intact.
//
// On a first parse every distinct referenced URL gets its metadata
// resolved: complete caller-supplied metadata is stored directly,
// anything else goes through the cache's fetch-or-get path. A single
// URL's resolution failure is recorded in its metadata entry and does
// not fail the call.
func (p *Processing) ProcessSemantics(ctx context.Context, tx *store.Txn, postID, semanticsText string, isFirstParse bool, originalParsed *parser.ParseResult) (*SemanticsResult, error) {
	if _, err := p.triples.DeleteOfPost(ctx, tx, postID); err != nil {
		return nil, err
	}

	if semanticsText == "" {
		return nil, nil
	}

	statements, err := semantics.Parse(semanticsText)
	if err != nil {
		metrics.SemanticsProcessed.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("parse semantics of post %s: %w", postID, err)
	}

	post, err := p.posts.Get(ctx, tx, postID, true)
	if err != nil {
		return nil, err
	}

	result := &SemanticsResult{RefsMeta: map[string]links.RefMeta{}}
	seenLabels := map[string]bool{}
	seenKeywords := map[string]bool{}
	var refURLs []string
	seenURLs := map[string]bool{}

	for _, statement := range statements {
		if _, err := p.triples.Create(ctx, tx, semantics.Triple{
			PostID:          postID,
			PostCreatedAtMs: post.CreatedAtMs,
			AuthorProfileID: post.AuthorProfileID,
			Subject:         statement.Subject.Value,
			Predicate:       statement.Predicate.Value,
			Object:          statement.Object.Value,
		}); err != nil {
			return nil, err
		}
		metrics.TriplesStored.Inc()

		if statement.Predicate.Value == KeywordsPredicate {
			if !seenKeywords[statement.Object.Value] {
				seenKeywords[statement.Object.Value] = true
				result.Keywords = append(result.Keywords, statement.Object.Value)
			}
			continue
		}

		if !seenLabels[statement.Predicate.Value] {
			seenLabels[statement.Predicate.Value] = true
			result.Labels = append(result.Labels, statement.Predicate.Value)
		}
		if statement.Object.Kind == semantics.TermIRI && !seenURLs[statement.Object.Value] {
			seenURLs[statement.Object.Value] = true
			refURLs = append(refURLs, statement.Object.Value)
		}
	}

	if isFirstParse {
		for _, url := range refURLs {
			result.RefsMeta[url] = p.resolveRef(ctx, tx, url, originalParsed)
		}
	}

	metrics.SemanticsProcessed.WithLabelValues("ok").Inc()
	return result, nil
}

// resolveRef resolves one referenced URL's metadata. Complete
// caller-supplied metadata skips the external fetch; a resolution
// failure yields a stub entry carrying the error.
func (p *Processing) resolveRef(ctx context.Context, tx *store.Txn, url string, originalParsed *parser.ParseResult) links.RefMeta {
	if originalParsed != nil && originalParsed.Support != nil {
		if supplied, ok := originalParsed.Support.RefsMeta[url]; ok && !supplied.IsPartial() {
			if err := p.linksSvc.SetRefMeta(ctx, tx, &supplied); err != nil {
				p.logger.Warn("storing supplied ref meta failed", "url", url, "error", err)
			}
			return supplied
		}
	}

	meta, err := p.linksSvc.GetRefMeta(ctx, tx, url)
	if err != nil {
		p.logger.Warn("resolving ref meta failed", "url", url, "error", err)
		stub := links.RefMeta{URL: url, Debug: err.Error()}
		if serr := p.linksSvc.SetRefMeta(ctx, tx, &stub); serr != nil {
			p.logger.Warn("storing ref meta stub failed", "url", url, "error", serr)
		}
		return stub
	}
	return *meta
}

// GetPostFull loads a canonical post and resolves its mirrors
// concurrently, discarding any mirror that fails to resolve. With
// shouldThrow false a missing post yields (nil, nil).
func (p *Processing) GetPostFull(ctx context.Context, tx *store.Txn, postID string, shouldThrow bool) (*AppPostFull, error) {
	post, err := p.posts.Get(ctx, tx, postID, shouldThrow)
	if err != nil || post == nil {
		return nil, err
	}

	mirrors := make([]*PlatformPost, len(post.MirrorsIDs))
	var wg sync.WaitGroup
	for i, mirrorID := range post.MirrorsIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mirror, err := p.platforms.Get(ctx, tx, mirrorID, false)
			if err != nil {
				p.logger.Warn("resolving mirror failed", "post", postID, "mirror", mirrorID, "error", err)
				return
			}
			mirrors[i] = mirror
		}()
	}
	wg.Wait()

	full := &AppPostFull{AppPost: *post}
	for _, mirror := range mirrors {
		if mirror != nil {
			full.Mirrors = append(full.Mirrors, mirror)
		}
	}
	return full, nil
}

// GetFromExternalID is the reverse lookup from a platform's external
// post id to the full canonical post. A platform post found without
// its back-link fails with ErrIntegrity.
func (p *Processing) GetFromExternalID(ctx context.Context, tx *store.Txn, platform PlatformID, externalPostID string, shouldThrow bool) (*AppPostFull, error) {
	platformPost, err := p.platforms.GetFromExternalID(ctx, tx, platform, externalPostID)
	if err != nil {
		return nil, err
	}
	if platformPost == nil {
		if shouldThrow {
			return nil, fmt.Errorf("platform post %s/%s: %w", platform, externalPostID, store.ErrNotFound)
		}
		return nil, nil
	}
	if platformPost.PostID == "" {
		return nil, fmt.Errorf("platform post %s: %w", platformPost.ID, ErrIntegrity)
	}
	return p.GetPostFull(ctx, tx, platformPost.PostID, shouldThrow)
}

// UpdatePost applies a partial update to a canonical post.
func (p *Processing) UpdatePost(ctx context.Context, tx *store.Txn, postID string, update PostUpdate) (*AppPost, error) {
	post, err := p.posts.Update(ctx, tx, postID, update)
	if err != nil {
		return nil, err
	}
	return post, nil
}
