package nanopub

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

const postSemantics = `@prefix ns1: <https://sense-nets.xyz/> .
<https://sense-nets.xyz/mySemanticPost> ns1:linksTo <https://example.com/paper> .
`

func testUser(withIdentity bool) *users.AppUser {
	account := users.Account{UserID: "0xabc"}
	if withIdentity {
		account.Identity = &users.NanopubIdentity{
			EthAddress:      "0xabc",
			OrcidID:         "0000-0001-2345-6789",
			IntroNanopubURI: "https://w3id.org/np/intro1",
		}
	}
	return &users.AppUser{
		UserID: "user-1",
		Accounts: map[posts.PlatformID][]users.Account{
			posts.PlatformNanopub: {account},
		},
	}
}

func testPost(nanopubPayload *PublishedPayload) *posts.AppPostFull {
	post := &posts.AppPostFull{
		AppPost: posts.AppPost{
			ID:        "post-1",
			Semantics: postSemantics,
			Generic: posts.GenericThread{
				Author: posts.GenericAuthor{Username: "tester", Name: "Test Er"},
				Thread: []posts.GenericPost{
					{URL: "https://mastodon.social/@tester/1", Content: "first"},
					{Content: "second"},
				},
			},
		},
	}
	if nanopubPayload != nil {
		raw, _ := json.Marshal(nanopubPayload)
		post.Mirrors = append(post.Mirrors, &posts.PlatformPost{
			ID:         "mirror-np",
			PlatformID: posts.PlatformNanopub,
			Posted:     &posts.PostedDetails{PostID: nanopubPayload.URI, Post: raw},
		})
	}
	return post
}

func TestPrepareDetails(t *testing.T) {
	details, err := PrepareDetails(testUser(true), testPost(nil))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}

	if details.Username != "tester" || details.Name != "Test Er" {
		t.Errorf("author details = %+v", details)
	}
	if details.ContentURL != "https://mastodon.social/@tester/1" {
		t.Errorf("ContentURL = %s", details.ContentURL)
	}
	if details.EthAddress != "0xabc" {
		t.Errorf("EthAddress = %s", details.EthAddress)
	}
	if details.RootURI != "" || details.LatestURI != "" {
		t.Errorf("fresh post carries supersedes chain: %+v", details)
	}
}

func TestPrepareDetailsWithPreviousPublication(t *testing.T) {
	payload := &PublishedPayload{
		URI:     "https://w3id.org/np/edit1",
		RootURI: "https://w3id.org/np/original",
	}
	details, err := PrepareDetails(testUser(true), testPost(payload))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	if details.LatestURI != "https://w3id.org/np/edit1" {
		t.Errorf("LatestURI = %s", details.LatestURI)
	}
	if details.RootURI != "https://w3id.org/np/original" {
		t.Errorf("RootURI = %s", details.RootURI)
	}
}

func TestBuildRewritesPlaceholder(t *testing.T) {
	details, err := PrepareDetails(testUser(true), testPost(nil))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	doc, err := Build(testPost(nil), details)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if strings.Contains(doc, PlaceholderURI) {
		t.Error("placeholder URI survived the rewrite")
	}
	if !strings.Contains(doc, ":assertion ns:linksTo <https://example.com/paper> .") {
		t.Errorf("rewritten assertion statement missing:\n%s", doc)
	}
	// The thread content lands in the assertion graph.
	if !strings.Contains(doc, `schema:text "first\n\nsecond"`) {
		t.Errorf("concatenated content missing:\n%s", doc)
	}
}

func TestBuildGraphStructure(t *testing.T) {
	details, err := PrepareDetails(testUser(true), testPost(nil))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	doc, err := Build(testPost(nil), details)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	for _, want := range []string{
		":Head {",
		":assertion {",
		":provenance {",
		":pubinfo {",
		": np:hasAssertion :assertion .",
		": np:hasProvenance :provenance .",
		": np:hasPublicationInfo :pubinfo .",
		": a np:Nanopublication .",
		":assertion prov:wasAttributedTo :creator .",
		":assertion prov:wasDerivedFrom <https://mastodon.social/@tester/1> .",
		`:creator foaf:name "Test Er" .`,
		`:creator ns:hasEthAddress "0xabc" .`,
		":creator prov:wasAssociatedWith <https://orcid.org/0000-0001-2345-6789> .",
		":creator ns:hasIntroNanopub <https://w3id.org/np/intro1> .",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	if strings.Contains(doc, "npx:supersedes") {
		t.Error("first publication carries a supersedes block")
	}
}

func TestBuildSupersedesChain(t *testing.T) {
	// First edit: the previous payload has URI == RootURI.
	payload := &PublishedPayload{
		URI:     "https://w3id.org/np/original",
		RootURI: "https://w3id.org/np/original",
	}
	details, err := PrepareDetails(testUser(true), testPost(payload))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	doc, err := Build(testPost(payload), details)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(doc, ": npx:supersedes <https://w3id.org/np/original> .") {
		t.Errorf("supersedes statement missing:\n%s", doc)
	}
	if !strings.Contains(doc, ": ns:rootNanopub <https://w3id.org/np/original> .") {
		t.Errorf("root statement missing:\n%s", doc)
	}

	// Second edit: latest moves to the first edit, the root stays.
	payload = &PublishedPayload{
		URI:     "https://w3id.org/np/edit1",
		RootURI: "https://w3id.org/np/original",
	}
	details, err = PrepareDetails(testUser(true), testPost(payload))
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	doc, err = Build(testPost(payload), details)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !strings.Contains(doc, ": npx:supersedes <https://w3id.org/np/edit1> .") {
		t.Errorf("supersedes does not point at the latest edit:\n%s", doc)
	}
	if !strings.Contains(doc, ": ns:rootNanopub <https://w3id.org/np/original> .") {
		t.Errorf("root drifted from the original:\n%s", doc)
	}
}

func TestBuildWithoutIdentity(t *testing.T) {
	post := testPost(nil)
	details, err := PrepareDetails(testUser(false), post)
	if err != nil {
		t.Fatalf("PrepareDetails failed: %v", err)
	}
	doc, err := Build(post, details)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if strings.Contains(doc, "hasEthAddress") || strings.Contains(doc, "wasAssociatedWith") {
		t.Errorf("identity statements emitted without an identity:\n%s", doc)
	}
	if !strings.Contains(doc, `foaf:name "Test Er"`) {
		t.Errorf("creator name missing:\n%s", doc)
	}
}

func TestBuildMalformedSemantics(t *testing.T) {
	post := testPost(nil)
	post.Semantics = "<unterminated"
	if _, err := Build(post, &Details{Username: "tester"}); err == nil {
		t.Fatal("Build accepted malformed semantics")
	}
}
