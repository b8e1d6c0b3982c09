package twitter

import (
	"sort"
	"strings"
)

// Thread groups an author's tweets sharing one conversation id. This
// is the native payload stored on a fetched platform post.
type Thread struct {
	ConversationID string  `json:"conversation_id"`
	Tweets         []Tweet `json:"tweets"`
	Author         User    `json:"author"`
}

// TextWithURLs returns a tweet's text with every shortened URL
// replaced by its expansion.
func TextWithURLs(tweet Tweet) string {
	text := tweet.Text
	if tweet.Entities != nil {
		for _, u := range tweet.Entities.URLs {
			text = strings.ReplaceAll(text, u.URL, u.ExpandedURL)
		}
	}
	return text
}

// ConvertToThreads groups tweets by conversation id. Threads come out
// newest conversation first; tweets within a thread ascend by id.
func ConvertToThreads(tweets []Tweet, author User) []Thread {
	byConversation := make(map[string][]Tweet)
	var order []string
	for _, tweet := range tweets {
		if _, ok := byConversation[tweet.ConversationID]; !ok {
			order = append(order, tweet.ConversationID)
		}
		byConversation[tweet.ConversationID] = append(byConversation[tweet.ConversationID], tweet)
	}

	sort.Slice(order, func(i, j int) bool { return compareIDs(order[i], order[j]) > 0 })

	threads := make([]Thread, 0, len(order))
	for _, conversationID := range order {
		group := byConversation[conversationID]
		sort.Slice(group, func(i, j int) bool { return compareIDs(group[i].ID, group[j].ID) < 0 })
		threads = append(threads, Thread{
			ConversationID: conversationID,
			Tweets:         group,
			Author:         author,
		})
	}
	return threads
}

// compareIDs orders snowflake ids numerically.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
