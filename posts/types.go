// Package posts holds the canonical post data model and the processing
// orchestrator that deduplicates platform posts into canonical posts,
// extracts their semantics, and assembles full post views.
package posts

import (
	"encoding/json"

	"github.com/sensenets/sensegraph/parser"
)

// PlatformID identifies an external platform.
type PlatformID string

const (
	PlatformTwitter  PlatformID = "twitter"
	PlatformMastodon PlatformID = "mastodon"
	PlatformNanopub  PlatformID = "nanopub"
	PlatformOrcid    PlatformID = "orcid"
)

// ParsingStatus tracks the in-flight state of semantic extraction.
type ParsingStatus string

const (
	ParsingStatusIdle       ParsingStatus = "idle"
	ParsingStatusProcessing ParsingStatus = "processing"
	ParsingStatusErrored    ParsingStatus = "errored"
)

// ParsedStatus tracks whether semantic extraction has completed.
type ParsedStatus string

const (
	ParsedStatusUnprocessed ParsedStatus = "unprocessed"
	ParsedStatusProcessed   ParsedStatus = "processed"
)

// ReviewStatus tracks the author's review decision on a post.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusIgnored  ReviewStatus = "ignored"
	ReviewStatusDraft    ReviewStatus = "draft"
	ReviewStatusUpdated  ReviewStatus = "updated"
)

// RepublishedStatus tracks whether a post has been mirrored back out.
type RepublishedStatus string

const (
	RepublishedStatusPending     RepublishedStatus = "pending"
	RepublishedStatusRepublished RepublishedStatus = "republished"
)

// GenericAuthor is the platform-independent author shape produced by
// an adapter's ConvertToGeneric.
type GenericAuthor struct {
	PlatformID PlatformID `json:"platformId"`
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Name       string     `json:"name,omitempty"`
	AvatarURL  string     `json:"avatarUrl,omitempty"`
}

// GenericPost is one element of a canonicalized thread.
type GenericPost struct {
	URL     string `json:"url,omitempty"`
	Content string `json:"content"`
}

// GenericThread is the canonical {author, ordered content list} shape.
type GenericThread struct {
	Author GenericAuthor `json:"author"`
	Thread []GenericPost `json:"thread"`
}

// AppPost is the deduplicated internal representation of a post, one
// per distinct authored item regardless of how many platforms mirror
// it. AppPosts are never hard-deleted; their lifecycle is status
// transitions only.
type AppPost struct {
	ID                string              `json:"id"`
	AuthorProfileID   string              `json:"authorProfileId"`
	AuthorUserID      string              `json:"authorUserId,omitempty"`
	Origin            PlatformID          `json:"origin"`
	CreatedAtMs       int64               `json:"createdAtMs"`
	Generic           GenericThread       `json:"generic"`
	ParsingStatus     ParsingStatus       `json:"parsingStatus"`
	ParsedStatus      ParsedStatus        `json:"parsedStatus"`
	ReviewedStatus    ReviewStatus        `json:"reviewedStatus"`
	RepublishedStatus RepublishedStatus   `json:"republishedStatus"`
	Semantics         string              `json:"semantics,omitempty"`
	OriginalParsed    *parser.ParseResult `json:"originalParsed,omitempty"`
	MirrorsIDs        []string            `json:"mirrorsIds"`
}

// AppPostCreate carries the caller-supplied fields of a new AppPost.
// Statuses are assigned by CreateAppPost.
type AppPostCreate struct {
	AuthorProfileID string
	AuthorUserID    string
	Origin          PlatformID
	CreatedAtMs     int64
	Generic         GenericThread
	Semantics       string
	OriginalParsed  *parser.ParseResult
	MirrorsIDs      []string
}

// AppPostFull joins an AppPost with its resolved platform mirrors.
type AppPostFull struct {
	AppPost
	Mirrors []*PlatformPost `json:"mirrors"`
}

// Mirror returns the first mirror for a platform, or nil.
func (p *AppPostFull) Mirror(platform PlatformID) *PlatformPost {
	for _, mirror := range p.Mirrors {
		if mirror.PlatformID == platform {
			return mirror
		}
	}
	return nil
}

// PublishStatus is the publication state of a platform post.
type PublishStatus string

const (
	PublishStatusDraft       PublishStatus = "draft"
	PublishStatusPublished   PublishStatus = "published"
	PublishStatusUnpublished PublishStatus = "unpublished"
)

// PublishOrigin records whether a platform post was fetched from its
// platform or posted through us.
type PublishOrigin string

const (
	PublishOriginFetched PublishOrigin = "fetched"
	PublishOriginPosted  PublishOrigin = "posted"
)

// DraftApproval is the review state of a draft before publishing.
type DraftApproval string

const (
	DraftApprovalPending  DraftApproval = "pending"
	DraftApprovalApproved DraftApproval = "approved"
)

// SignerType says who signs a draft before it is published.
type SignerType string

const (
	SignerTypeUser      SignerType = "user"
	SignerTypeDelegated SignerType = "delegated"
)

// PostedDetails is defined once a platform post exists on its platform.
type PostedDetails struct {
	UserID      string          `json:"user_id"`
	PostID      string          `json:"post_id"`
	TimestampMs int64           `json:"timestampMs"`
	Post        json.RawMessage `json:"post,omitempty"`
}

// DraftDetails is defined before a platform post is published.
type DraftDetails struct {
	UserID       string        `json:"user_id"`
	PostApproval DraftApproval `json:"postApproval"`
	SignerType   SignerType    `json:"signerType,omitempty"`
	UnsignedPost string        `json:"unsignedPost,omitempty"`
	SignedPost   string        `json:"signedPost,omitempty"`
}

// PlatformPost is a platform-specific occurrence of a post, fetched
// from or to-be-published on one platform, linked to at most one
// AppPost through its PostID back-reference.
type PlatformPost struct {
	ID            string         `json:"id"`
	PostID        string         `json:"postId,omitempty"`
	PlatformID    PlatformID     `json:"platformId"`
	PublishStatus PublishStatus  `json:"publishStatus"`
	PublishOrigin PublishOrigin  `json:"publishOrigin"`
	Posted        *PostedDetails `json:"posted,omitempty"`
	Draft         *DraftDetails  `json:"draft,omitempty"`
}

// PlatformPostCreate is a PlatformPost before it has an internal id.
type PlatformPostCreate struct {
	PlatformID    PlatformID     `json:"platformId"`
	PublishStatus PublishStatus  `json:"publishStatus"`
	PublishOrigin PublishOrigin  `json:"publishOrigin"`
	Posted        *PostedDetails `json:"posted,omitempty"`
	Draft         *DraftDetails  `json:"draft,omitempty"`
}

// PlatformPostCreated pairs a freshly created AppPost with its first
// mirror.
type PlatformPostCreated struct {
	Post         *AppPost
	PlatformPost *PlatformPost
}

// PostUpdate is a partial update of an AppPost's mutable fields. Nil
// pointers leave the corresponding field untouched.
type PostUpdate struct {
	Semantics         *string
	OriginalParsed    *parser.ParseResult
	ParsingStatus     *ParsingStatus
	ParsedStatus      *ParsedStatus
	ReviewedStatus    *ReviewStatus
	RepublishedStatus *RepublishedStatus
}

// ProfileID composes the author profile id for a platform account.
func ProfileID(platform PlatformID, userID string) string {
	return string(platform) + "-" + userID
}
