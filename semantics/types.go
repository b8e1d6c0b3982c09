// Package semantics provides the RDF triple model for post semantics:
// a Turtle-subset parser, N-Triples/TriG serialization, and the triple
// store access used by the posts pipeline.
package semantics

import "errors"

// ErrParse is returned for malformed RDF semantics. It is wrapped with
// line/position context.
var ErrParse = errors.New("rdf parse error")

// TermKind distinguishes the kinds of RDF terms.
type TermKind int

const (
	TermIRI TermKind = iota
	TermLiteral
	TermBlank
)

// Term is one RDF term. Value holds the IRI, the literal lexical form,
// or the blank node label.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Language string
}

// IRI makes an IRI term.
func IRI(value string) Term {
	return Term{Kind: TermIRI, Value: value}
}

// Literal makes a plain literal term.
func Literal(value string) Term {
	return Term{Kind: TermLiteral, Value: value}
}

// Statement is one parsed subject-predicate-object statement.
type Statement struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Triple is one RDF statement extracted from a post's semantics, as
// persisted in the triple store. postCreatedAtMs and authorProfileId
// are denormalized for time-range and author-scoped queries.
type Triple struct {
	ID              string `json:"id"`
	PostID          string `json:"postId"`
	PostCreatedAtMs int64  `json:"postCreatedAtMs"`
	AuthorProfileID string `json:"authorProfileId"`
	Subject         string `json:"subject"`
	Predicate       string `json:"predicate"`
	Object          string `json:"object"`
}
