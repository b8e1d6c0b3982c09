// Package nanopub assembles unsigned nanopublication documents from a
// canonical post's content, semantics, and author identity. Signing is
// external.
package nanopub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/semantics"
	"github.com/sensenets/sensegraph/users"
)

// PlaceholderURI is the subject URI the upstream extractor uses for
// the post itself; it is rewritten to the nanopub's own assertion
// namespace at build time.
const PlaceholderURI = "https://sense-nets.xyz/mySemanticPost"

// TempURI is the temporary nanopub namespace the placeholder is
// rewritten into. Signing replaces it with the final trusty URI.
const TempURI = "http://purl.org/nanopub/temp/mynanopub#"

const sensenetsNS = "https://sense-nets.xyz/"

// PublishedPayload is the native payload stored on a nanopub mirror's
// posted record: the published URI plus the root of its supersedes
// chain.
type PublishedPayload struct {
	URI     string `json:"uri"`
	RootURI string `json:"rootUri"`
}

// Signer signs an unsigned nanopublication document and returns the
// signed document together with its published URI.
type Signer interface {
	Sign(ctx context.Context, unsigned string) (signed string, uri string, err error)
}

// Details is everything the builder needs besides the post itself.
type Details struct {
	Username   string
	Name       string
	ContentURL string

	EthAddress      string
	OrcidID         string
	IntroNanopubURI string

	// Supersedes chain; both set only after a previous publication.
	RootURI   string
	LatestURI string
}

// PrepareDetails collects builder inputs from the author's accounts
// and the post's mirrors.
func PrepareDetails(user *users.AppUser, post *posts.AppPostFull) (*Details, error) {
	details := &Details{
		Username: post.Generic.Author.Username,
		Name:     post.Generic.Author.Name,
	}
	if len(post.Generic.Thread) > 0 {
		details.ContentURL = post.Generic.Thread[0].URL
	}

	account, err := users.GetAccount(user, posts.PlatformNanopub, "", false)
	if err != nil {
		return nil, err
	}
	if account != nil && account.Identity != nil {
		details.EthAddress = account.Identity.EthAddress
		details.OrcidID = account.Identity.OrcidID
		details.IntroNanopubURI = account.Identity.IntroNanopubURI
	}

	if mirror := post.Mirror(posts.PlatformNanopub); mirror != nil && mirror.Posted != nil && len(mirror.Posted.Post) > 0 {
		var payload PublishedPayload
		if err := json.Unmarshal(mirror.Posted.Post, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal nanopub payload: %w", err)
		}
		details.LatestURI = payload.URI
		details.RootURI = payload.RootURI
	}

	return details, nil
}

// Build assembles the unsigned TriG document: head, assertion with the
// post's rewritten semantics and content, provenance, and pubinfo with
// the supersedes block when both root and latest URIs exist.
func Build(post *posts.AppPostFull, details *Details) (string, error) {
	var statements []semantics.Statement
	if post.Semantics != "" {
		parsed, err := semantics.Parse(post.Semantics)
		if err != nil {
			return "", fmt.Errorf("parse post semantics: %w", err)
		}
		statements = semantics.ReplaceNodes(parsed, map[string]string{
			PlaceholderURI: TempURI + "assertion",
		})
	}

	content := posts.ConcatenateThread(post.Generic)

	w := semantics.NewTriGWriter()
	w.SetPrefix("", TempURI)
	w.SetPrefix("np", "http://www.nanopub.org/nschema#")
	w.SetPrefix("npx", "http://purl.org/nanopub/x/")
	w.SetPrefix("prov", "http://www.w3.org/ns/prov#")
	w.SetPrefix("foaf", "http://xmlns.com/foaf/0.1/")
	w.SetPrefix("schema", "https://schema.org/")
	w.SetPrefix("ns", sensenetsNS)
	w.WritePrefixes()

	head := TempURI + "Head"
	assertion := TempURI + "assertion"
	provenance := TempURI + "provenance"
	pubinfo := TempURI + "pubinfo"
	root := TempURI

	w.WriteGraph(head, []semantics.Statement{
		stmt(root, "http://www.nanopub.org/nschema#hasAssertion", iri(assertion)),
		stmt(root, "http://www.nanopub.org/nschema#hasProvenance", iri(provenance)),
		stmt(root, "http://www.nanopub.org/nschema#hasPublicationInfo", iri(pubinfo)),
		stmt(root, "http://www.w3.org/1999/02/22-rdf-syntax-ns#type",
			iri("http://www.nanopub.org/nschema#Nanopublication")),
	})

	assertionStatements := append([]semantics.Statement{}, statements...)
	assertionStatements = append(assertionStatements,
		stmt(assertion, "https://schema.org/text", lit(content)))
	w.WriteGraph(assertion, assertionStatements)

	provStatements := []semantics.Statement{
		stmt(assertion, "http://www.w3.org/ns/prov#wasAttributedTo", iri(TempURI+"creator")),
	}
	if details.ContentURL != "" {
		provStatements = append(provStatements,
			stmt(assertion, "http://www.w3.org/ns/prov#wasDerivedFrom", iri(details.ContentURL)))
	}
	w.WriteGraph(provenance, provStatements)

	pubStatements := []semantics.Statement{
		stmt(TempURI+"creator", "http://xmlns.com/foaf/0.1/name", lit(displayName(details))),
	}
	if details.EthAddress != "" {
		pubStatements = append(pubStatements,
			stmt(TempURI+"creator", sensenetsNS+"hasEthAddress", lit(details.EthAddress)))
	}
	if details.OrcidID != "" {
		pubStatements = append(pubStatements,
			stmt(TempURI+"creator", "http://www.w3.org/ns/prov#wasAssociatedWith",
				iri("https://orcid.org/"+details.OrcidID)))
	}
	if details.IntroNanopubURI != "" {
		pubStatements = append(pubStatements,
			stmt(TempURI+"creator", sensenetsNS+"hasIntroNanopub", iri(details.IntroNanopubURI)))
	}
	if details.RootURI != "" && details.LatestURI != "" {
		pubStatements = append(pubStatements,
			stmt(root, "http://purl.org/nanopub/x/supersedes", iri(details.LatestURI)),
			stmt(root, sensenetsNS+"rootNanopub", iri(details.RootURI)))
	}
	w.WriteGraph(pubinfo, pubStatements)

	return w.String(), nil
}

func displayName(details *Details) string {
	if details.Name != "" {
		return details.Name
	}
	return details.Username
}

func stmt(subject, predicate string, object semantics.Term) semantics.Statement {
	return semantics.Statement{
		Subject:   semantics.IRI(subject),
		Predicate: semantics.IRI(predicate),
		Object:    object,
	}
}

func iri(value string) semantics.Term { return semantics.IRI(value) }
func lit(value string) semantics.Term { return semantics.Literal(value) }
