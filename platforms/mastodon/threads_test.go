package mastodon

import (
	"testing"
)

func TestCleanContent(t *testing.T) {
	got := CleanContent(`<p>Interesting paper on <a href="https://example.com/paper">threads</a>!</p>`)
	if got != "Interesting paper on [threads](https://example.com/paper)!" {
		t.Errorf("CleanContent = %q", got)
	}

	if got := CleanContent("plain text"); got != "plain text" {
		t.Errorf("CleanContent on plain text = %q", got)
	}
}

func TestConvertToThreads(t *testing.T) {
	author := Account{ID: "acct-1", Username: "tester"}
	other := Account{ID: "acct-2", Username: "someone"}

	statuses := []Status{
		// Thread rooted at 100 with the self-reply chain 100 -> 102 -> 104.
		{ID: "104", InReplyToID: "102", Account: author},
		{ID: "100", Account: author},
		{ID: "102", InReplyToID: "100", Account: author},
		// A reply to someone else's status roots its own thread.
		{ID: "103", InReplyToID: "50", Account: author},
		// Standalone newer status.
		{ID: "110", Account: author},
		// Another account's status is filtered out.
		{ID: "105", Account: other},
	}

	threads := ConvertToThreads(statuses, author)
	if len(threads) != 3 {
		t.Fatalf("got %d threads, want 3", len(threads))
	}

	// Newest root first.
	if threads[0].ThreadID != "110" || threads[1].ThreadID != "103" || threads[2].ThreadID != "100" {
		t.Errorf("thread order = %s, %s, %s", threads[0].ThreadID, threads[1].ThreadID, threads[2].ThreadID)
	}

	chain := threads[2]
	if len(chain.Posts) != 3 {
		t.Fatalf("chain has %d posts, want 3", len(chain.Posts))
	}
	for i, want := range []string{"100", "102", "104"} {
		if chain.Posts[i].ID != want {
			t.Errorf("chain post %d = %s, want %s", i, chain.Posts[i].ID, want)
		}
	}

	for _, thread := range threads {
		if thread.Author.ID != author.ID {
			t.Errorf("thread %s author = %s", thread.ThreadID, thread.Author.ID)
		}
	}
}

func TestConvertToThreadsTakesEarliestBranch(t *testing.T) {
	author := Account{ID: "acct-1"}
	statuses := []Status{
		{ID: "10", Account: author},
		// Two self-replies to the root; the earlier one continues the
		// primary thread.
		{ID: "12", InReplyToID: "10", Account: author},
		{ID: "11", InReplyToID: "10", Account: author},
	}

	threads := ConvertToThreads(statuses, author)
	if len(threads) != 1 {
		t.Fatalf("got %d threads, want 1", len(threads))
	}
	posts := threads[0].Posts
	if len(posts) != 2 || posts[1].ID != "11" {
		t.Errorf("primary thread = %v, want root followed by 11", posts)
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"9", "10", -1},
		{"10", "9", 1},
		{"10", "10", 0},
		{"113144", "113145", -1},
	}
	for _, tt := range tests {
		if got := compareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("compareIDs(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
