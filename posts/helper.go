package posts

import "strings"

// ConcatenateThread joins the ordered thread content into a single body
// for publishing.
func ConcatenateThread(generic GenericThread) string {
	parts := make([]string, 0, len(generic.Thread))
	for _, post := range generic.Thread {
		if post.Content != "" {
			parts = append(parts, post.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
