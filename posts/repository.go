package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sensenets/sensegraph/store"
)

// PostsRepo persists AppPosts.
type PostsRepo struct{}

// NewPostsRepo creates an AppPost repository.
func NewPostsRepo() *PostsRepo {
	return &PostsRepo{}
}

// Create stores a new AppPost under a fresh id and returns it.
func (r *PostsRepo) Create(ctx context.Context, tx *store.Txn, post AppPost) (*AppPost, error) {
	if post.ID == "" {
		post.ID = store.NewID()
	}
	if post.MirrorsIDs == nil {
		post.MirrorsIDs = []string{}
	}
	data, err := json.Marshal(post)
	if err != nil {
		return nil, fmt.Errorf("marshal post: %w", err)
	}
	if err := tx.Create(ctx, store.CollectionPosts, post.ID, data); err != nil {
		return nil, err
	}
	return &post, nil
}

// Get returns the post with the given id. When shouldThrow is false a
// missing post yields (nil, nil).
func (r *PostsRepo) Get(ctx context.Context, tx *store.Txn, postID string, shouldThrow bool) (*AppPost, error) {
	data, err := tx.Get(ctx, store.CollectionPosts, postID)
	if errors.Is(err, store.ErrNotFound) {
		if shouldThrow {
			return nil, fmt.Errorf("post %s: %w", postID, store.ErrNotFound)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var post AppPost
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("unmarshal post %s: %w", postID, err)
	}
	return &post, nil
}

// Update applies a partial update to an existing post.
func (r *PostsRepo) Update(ctx context.Context, tx *store.Txn, postID string, update PostUpdate) (*AppPost, error) {
	post, err := r.Get(ctx, tx, postID, true)
	if err != nil {
		return nil, err
	}

	if update.Semantics != nil {
		post.Semantics = *update.Semantics
	}
	if update.OriginalParsed != nil {
		post.OriginalParsed = update.OriginalParsed
	}
	if update.ParsingStatus != nil {
		post.ParsingStatus = *update.ParsingStatus
	}
	if update.ParsedStatus != nil {
		post.ParsedStatus = *update.ParsedStatus
	}
	if update.ReviewedStatus != nil {
		post.ReviewedStatus = *update.ReviewedStatus
	}
	if update.RepublishedStatus != nil {
		post.RepublishedStatus = *update.RepublishedStatus
	}

	return post, r.put(ctx, tx, post)
}

// AddMirror appends a mirror id to a post if not already present.
func (r *PostsRepo) AddMirror(ctx context.Context, tx *store.Txn, postID, platformPostID string) error {
	post, err := r.Get(ctx, tx, postID, true)
	if err != nil {
		return err
	}
	for _, id := range post.MirrorsIDs {
		if id == platformPostID {
			return nil
		}
	}
	post.MirrorsIDs = append(post.MirrorsIDs, platformPostID)
	return r.put(ctx, tx, post)
}

func (r *PostsRepo) put(ctx context.Context, tx *store.Txn, post *AppPost) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("marshal post: %w", err)
	}
	return tx.Put(ctx, store.CollectionPosts, post.ID, data)
}

// PlatformPostsRepo persists PlatformPosts together with the
// (platform, external post id) uniqueness index that makes ingestion
// deduplication exact.
type PlatformPostsRepo struct{}

// NewPlatformPostsRepo creates a PlatformPost repository.
func NewPlatformPostsRepo() *PlatformPostsRepo {
	return &PlatformPostsRepo{}
}

func indexKey(platform PlatformID, externalPostID string) string {
	return string(platform) + "." + store.EncodeKey(externalPostID)
}

// Create stores a new PlatformPost and claims its dedup index entry.
// Creation fails with store.ErrConflict when another record already
// claimed the same (platform, external post id) pair.
func (r *PlatformPostsRepo) Create(ctx context.Context, tx *store.Txn, create PlatformPostCreate) (*PlatformPost, error) {
	pp := PlatformPost{
		ID:            store.NewID(),
		PlatformID:    create.PlatformID,
		PublishStatus: create.PublishStatus,
		PublishOrigin: create.PublishOrigin,
		Posted:        create.Posted,
		Draft:         create.Draft,
	}

	if pp.Posted != nil && pp.Posted.PostID != "" {
		key := indexKey(pp.PlatformID, pp.Posted.PostID)
		if err := tx.Create(ctx, store.CollectionPlatformIndex, key, []byte(pp.ID)); err != nil {
			return nil, err
		}
	}

	data, err := json.Marshal(pp)
	if err != nil {
		return nil, fmt.Errorf("marshal platform post: %w", err)
	}
	if err := tx.Create(ctx, store.CollectionPlatformPosts, pp.ID, data); err != nil {
		return nil, err
	}
	return &pp, nil
}

// Get returns the platform post with the given internal id. When
// shouldThrow is false a missing record yields (nil, nil).
func (r *PlatformPostsRepo) Get(ctx context.Context, tx *store.Txn, id string, shouldThrow bool) (*PlatformPost, error) {
	data, err := tx.Get(ctx, store.CollectionPlatformPosts, id)
	if errors.Is(err, store.ErrNotFound) {
		if shouldThrow {
			return nil, fmt.Errorf("platform post %s: %w", id, store.ErrNotFound)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pp PlatformPost
	if err := json.Unmarshal(data, &pp); err != nil {
		return nil, fmt.Errorf("unmarshal platform post %s: %w", id, err)
	}
	return &pp, nil
}

// GetFromExternalID looks up a platform post by its external
// (platform, post id) pair through the dedup index. Returns (nil, nil)
// when no record claims the pair.
func (r *PlatformPostsRepo) GetFromExternalID(ctx context.Context, tx *store.Txn, platform PlatformID, externalPostID string) (*PlatformPost, error) {
	id, err := tx.Get(ctx, store.CollectionPlatformIndex, indexKey(platform, externalPostID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, tx, string(id), true)
}

// SetAppPostID sets the back-reference from a platform post to its
// canonical AppPost.
func (r *PlatformPostsRepo) SetAppPostID(ctx context.Context, tx *store.Txn, id, postID string) error {
	pp, err := r.Get(ctx, tx, id, true)
	if err != nil {
		return err
	}
	pp.PostID = postID
	return r.put(ctx, tx, pp)
}

// SetPosted records the posted details of a published platform post and
// claims its index entry.
func (r *PlatformPostsRepo) SetPosted(ctx context.Context, tx *store.Txn, id string, posted *PostedDetails) error {
	pp, err := r.Get(ctx, tx, id, true)
	if err != nil {
		return err
	}
	hadPostID := pp.Posted != nil && pp.Posted.PostID != ""
	pp.Posted = posted
	pp.PublishStatus = PublishStatusPublished
	if !hadPostID && posted != nil && posted.PostID != "" {
		key := indexKey(pp.PlatformID, posted.PostID)
		if err := tx.Create(ctx, store.CollectionPlatformIndex, key, []byte(pp.ID)); err != nil {
			return err
		}
	}
	return r.put(ctx, tx, pp)
}

func (r *PlatformPostsRepo) put(ctx context.Context, tx *store.Txn, pp *PlatformPost) error {
	data, err := json.Marshal(pp)
	if err != nil {
		return fmt.Errorf("marshal platform post: %w", err)
	}
	return tx.Put(ctx, store.CollectionPlatformPosts, pp.ID, data)
}
