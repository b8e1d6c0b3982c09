// Package parser provides the client for the upstream semantic
// extraction service, which turns post content into RDF semantics plus
// classification metadata.
package parser

import "github.com/sensenets/sensegraph/links"

// FilterClassification is the upstream service's research-content
// classification of a post.
type FilterClassification string

const (
	ClassificationResearch    FilterClassification = "research"
	ClassificationNotResearch FilterClassification = "not_research"
)

// ParseSupport carries auxiliary extraction results.
type ParseSupport struct {
	// RefsMeta maps referenced URLs to the metadata the extractor
	// already resolved for them. Entries may be partial.
	RefsMeta map[string]links.RefMeta `json:"refs_meta,omitempty"`
}

// ParseResult is the upstream extraction contract: RDF semantics as
// text, optional reference metadata, and a classification.
type ParseResult struct {
	Semantics            string               `json:"semantics"`
	Support              *ParseSupport        `json:"support,omitempty"`
	FilterClassification FilterClassification `json:"filter_classification"`
}

// ParseRequest is the payload sent to the extraction service.
type ParseRequest struct {
	Content    string            `json:"content"`
	URLs       []string          `json:"urls,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}
