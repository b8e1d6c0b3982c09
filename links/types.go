// Package links resolves and caches descriptive metadata for URLs
// referenced by a post's semantics.
package links

// RefMeta is cached descriptive metadata for an externally referenced
// URL. It is shared across all posts referencing the same URL;
// refreshes are last-writer-wins.
type RefMeta struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Summary  string `json:"summary,omitempty"`
	Image    string `json:"image,omitempty"`
	ItemType string `json:"item_type,omitempty"`

	// Debug records the last resolution failure, if any.
	Debug string `json:"debug,omitempty"`
}

// IsPartial reports whether the metadata is untrustworthy and must be
// refreshed before reuse.
func (m *RefMeta) IsPartial() bool {
	if m == nil {
		return true
	}
	return m.Image == "" || m.Title == "" || m.Summary == "" || m.URL == "" || m.ItemType == ""
}
