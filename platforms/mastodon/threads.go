package mastodon

import (
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// Thread is a reconstructed self-reply chain of one author, rooted at
// the status that opens it. This is the native payload stored on a
// fetched platform post.
type Thread struct {
	ThreadID string   `json:"thread_id"`
	Posts    []Status `json:"posts"`
	Author   Account  `json:"author"`
}

var contentConverter = md.NewConverter("", true, nil)

// CleanContent converts a status' HTML content to plain markdown text.
func CleanContent(htmlContent string) string {
	text, err := contentConverter.ConvertString(htmlContent)
	if err != nil {
		return htmlContent
	}
	return strings.TrimSpace(text)
}

// ConvertToThreads groups an author's statuses into self-reply
// threads. A status replying to nothing, or to a status outside the
// set, roots a thread; each thread follows the chain of the author's
// own replies in ascending id order. Threads are returned newest
// first.
func ConvertToThreads(statuses []Status, author Account) []Thread {
	own := make([]Status, 0, len(statuses))
	byID := make(map[string]Status, len(statuses))
	for _, status := range statuses {
		if status.Account.ID != author.ID {
			continue
		}
		own = append(own, status)
		byID[status.ID] = status
	}

	sort.Slice(own, func(i, j int) bool { return compareIDs(own[i].ID, own[j].ID) < 0 })

	replies := make(map[string][]Status)
	var roots []Status
	for _, status := range own {
		if status.InReplyToID != "" {
			if _, ok := byID[status.InReplyToID]; ok {
				replies[status.InReplyToID] = append(replies[status.InReplyToID], status)
				continue
			}
		}
		roots = append(roots, status)
	}

	threads := make([]Thread, 0, len(roots))
	for _, root := range roots {
		threads = append(threads, Thread{
			ThreadID: root.ID,
			Posts:    extractPrimaryThread(root, replies),
			Author:   author,
		})
	}

	sort.Slice(threads, func(i, j int) bool {
		return compareIDs(threads[i].ThreadID, threads[j].ThreadID) > 0
	})
	return threads
}

// extractPrimaryThread walks the chain from root, taking the earliest
// reply at each step.
func extractPrimaryThread(root Status, replies map[string][]Status) []Status {
	posts := []Status{root}
	current := root
	for {
		children := replies[current.ID]
		if len(children) == 0 {
			return posts
		}
		next := children[0]
		for _, child := range children[1:] {
			if compareIDs(child.ID, next.ID) < 0 {
				next = child
			}
		}
		posts = append(posts, next)
		current = next
	}
}

// compareIDs orders status ids numerically, falling back to the
// lexical order for ids of equal length.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		// Numeric ids: more digits means larger.
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
