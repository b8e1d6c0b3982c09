package links

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Resolver turns a URL into RefMeta.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*RefMeta, error)
}

// WebResolver resolves reference metadata by fetching the page and
// extracting title/summary/image with readability, plus the OpenGraph
// type when present.
type WebResolver struct {
	fetcher *Fetcher
}

// NewWebResolver creates a resolver with the given fetch settings.
func NewWebResolver(timeout time.Duration, userAgent string, maxContentSize int64) *WebResolver {
	return &WebResolver{
		fetcher: NewFetcher(timeout, userAgent, maxContentSize),
	}
}

// Resolve fetches rawURL and extracts its metadata.
func (r *WebResolver) Resolve(ctx context.Context, rawURL string) (*RefMeta, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	result, err := r.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(result.Body), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	meta := &RefMeta{
		URL:      rawURL,
		Title:    article.Title,
		Summary:  article.Excerpt,
		Image:    article.Image,
		ItemType: extractOGType(result.Body),
	}
	if meta.ItemType == "" {
		meta.ItemType = "website"
	}
	return meta, nil
}

// extractOGType pulls the og:type meta property out of an HTML page.
func extractOGType(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var ogType string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if ogType != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			var property, content string
			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "property", "name":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if property == "og:type" {
				ogType = content
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ogType
}
