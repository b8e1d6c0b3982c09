package mastodon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/time/rate"

	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/users"
)

// newTestService points the adapter at a TLS test server.
func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)

	svc := NewService(Config{APIDomain: "mastodon.social"}, nil)
	svc.newClient = func(_, accessToken string) *Client {
		return &Client{
			domain:      ts.Listener.Addr().String(),
			accessToken: accessToken,
			httpClient:  ts.Client(),
			limiter:     rate.NewLimiter(rate.Inf, 1),
		}
	}
	return svc, ts
}

func writeCreds() platforms.Credentials {
	return platforms.Credentials{
		Mastodon: &platforms.MastodonCredentials{
			Domain:      "mastodon.social",
			AccessToken: "token-1",
		},
	}
}

func TestFetchPagesUntilExhaustion(t *testing.T) {
	author := Account{ID: "acct-1", Username: "tester", DisplayName: "Test Er"}
	page := []Status{
		{ID: "104", InReplyToID: "102", Account: author, Content: "<p>third</p>", CreatedAt: "2024-03-01T10:02:00Z"},
		{ID: "102", InReplyToID: "100", Account: author, Content: "<p>second</p>", CreatedAt: "2024-03-01T10:01:00Z"},
		{ID: "100", Account: author, Content: "<p>first</p>", CreatedAt: "2024-03-01T10:00:00Z"},
	}

	var requests []string
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		if r.Header.Get("Authorization") != "Bearer token-1" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("max_id") == "" {
			_ = json.NewEncoder(w).Encode(page)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))

	result, err := svc.Fetch(context.Background(), "acct-1", platforms.FetchParams{ExpectedAmount: 10}, writeCreds())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(requests) != 2 {
		t.Errorf("made %d requests, want 2 (page then empty page)", len(requests))
	}
	if result.Fetched.NewestID != "104" || result.Fetched.OldestID != "100" {
		t.Errorf("fetched boundaries = %+v", result.Fetched)
	}
	if len(result.Posts) != 1 {
		t.Fatalf("got %d posts, want 1 reconstructed thread", len(result.Posts))
	}

	posted := result.Posts[0]
	if posted.PostID != "100" {
		t.Errorf("thread id = %s, want root id", posted.PostID)
	}
	if posted.UserID != "acct-1" {
		t.Errorf("posted user = %s", posted.UserID)
	}
	if posted.TimestampMs != 1709287200000 {
		t.Errorf("timestamp = %d", posted.TimestampMs)
	}

	var thread Thread
	if err := json.Unmarshal(posted.Post, &thread); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(thread.Posts) != 3 {
		t.Errorf("payload thread has %d posts, want 3", len(thread.Posts))
	}
}

func TestFetchStopsAtExpectedAmount(t *testing.T) {
	author := Account{ID: "acct-1", Username: "tester"}
	calls := 0
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Status{
			{ID: "100", Account: author, Content: "<p>hi</p>", CreatedAt: "2024-03-01T10:00:00Z"},
		})
	}))

	result, err := svc.Fetch(context.Background(), "acct-1", platforms.FetchParams{ExpectedAmount: 1}, writeCreds())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("made %d requests, want 1 (expected amount reached)", calls)
	}
	if len(result.Posts) != 1 {
		t.Errorf("got %d posts, want 1", len(result.Posts))
	}
}

func TestFetchRequiresCredentials(t *testing.T) {
	svc := NewService(Config{}, nil)
	_, err := svc.Fetch(context.Background(), "acct-1", platforms.FetchParams{}, platforms.Credentials{})
	if err == nil {
		t.Fatal("Fetch accepted empty credentials")
	}
}

func TestGetReconstructsThread(t *testing.T) {
	author := Account{ID: "acct-1", Username: "tester"}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/statuses/100/context", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(StatusContext{
			Descendants: []Status{
				{ID: "102", InReplyToID: "100", Account: author, Content: "<p>second</p>", CreatedAt: "2024-03-01T10:01:00Z"},
			},
		})
	})
	mux.HandleFunc("/api/v1/statuses/100", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Status{ID: "100", Account: author, Content: "<p>first</p>", CreatedAt: "2024-03-01T10:00:00Z"})
	})

	svc, _ := newTestService(t, mux)

	posted, err := svc.Get(context.Background(), "100", writeCreds())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if posted.PostID != "100" || posted.UserID != "acct-1" {
		t.Errorf("posted = %+v", posted)
	}

	var thread Thread
	if err := json.Unmarshal(posted.Post, &thread); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(thread.Posts) != 2 || thread.Posts[1].ID != "102" {
		t.Errorf("thread posts = %+v, want root plus reply", thread.Posts)
	}
}

func TestPublish(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/statuses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Status string `json:"status"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Status != "hello\n\nworld" {
			t.Errorf("posted status = %q", body.Status)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Status{
			ID:        "900",
			CreatedAt: "2024-03-02T08:00:00Z",
			Account:   Account{ID: "acct-1"},
		})
	}))

	posted, err := svc.Publish(context.Background(), &posts.DraftDetails{UnsignedPost: "hello\n\nworld"}, writeCreds())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if posted.PostID != "900" || posted.UserID != "acct-1" {
		t.Errorf("posted = %+v", posted)
	}
}

func TestConvertToGeneric(t *testing.T) {
	thread := Thread{
		ThreadID: "100",
		Author:   Account{ID: "acct-1", Username: "tester", DisplayName: "Test Er", Avatar: "https://cdn/av.png"},
		Posts: []Status{
			{ID: "100", URL: "https://mastodon.social/@tester/100", Content: "<p>first</p>"},
			{ID: "102", URL: "https://mastodon.social/@tester/102", Content: "<p>second</p>"},
		},
	}
	payload, _ := json.Marshal(thread)

	svc := NewService(Config{}, nil)
	generic, err := svc.ConvertToGeneric(&posts.PlatformPost{
		PlatformID: posts.PlatformMastodon,
		Posted:     &posts.PostedDetails{PostID: "100", Post: payload},
	})
	if err != nil {
		t.Fatalf("ConvertToGeneric failed: %v", err)
	}

	if generic.Author.Username != "tester" || generic.Author.Name != "Test Er" {
		t.Errorf("author = %+v", generic.Author)
	}
	if len(generic.Thread) != 2 {
		t.Fatalf("thread has %d posts, want 2", len(generic.Thread))
	}
	if generic.Thread[0].Content != "first" {
		t.Errorf("content = %q, want cleaned text", generic.Thread[0].Content)
	}
	if generic.Thread[1].URL != "https://mastodon.social/@tester/102" {
		t.Errorf("url = %s", generic.Thread[1].URL)
	}

	if _, err := svc.ConvertToGeneric(&posts.PlatformPost{PlatformID: posts.PlatformMastodon}); err == nil {
		t.Error("ConvertToGeneric accepted a post without a posted payload")
	}
}

func TestConvertFromGeneric(t *testing.T) {
	svc := NewService(Config{}, nil)
	author := &users.AppUser{
		UserID: "user-1",
		Accounts: map[posts.PlatformID][]users.Account{
			posts.PlatformMastodon: {{UserID: "acct-1"}},
		},
	}
	post := &posts.AppPostFull{
		AppPost: posts.AppPost{
			Generic: posts.GenericThread{
				Thread: []posts.GenericPost{{Content: "one"}, {Content: "two"}},
			},
		},
	}

	draft, err := svc.ConvertFromGeneric(post, author)
	if err != nil {
		t.Fatalf("ConvertFromGeneric failed: %v", err)
	}
	if draft.UserID != "acct-1" {
		t.Errorf("draft user = %s", draft.UserID)
	}
	if draft.SignerType != posts.SignerTypeDelegated {
		t.Errorf("signer type = %s", draft.SignerType)
	}
	if draft.UnsignedPost != "one\n\ntwo" {
		t.Errorf("unsigned post = %q", draft.UnsignedPost)
	}

	// No mastodon account linked.
	if _, err := svc.ConvertFromGeneric(post, &users.AppUser{UserID: "user-2"}); err == nil {
		t.Error("ConvertFromGeneric accepted an author without a mastodon account")
	}
}

func TestGetSignupContext(t *testing.T) {
	svc := NewService(Config{}, nil)

	raw, err := svc.GetSignupContext(context.Background(), "user-1", map[string]string{
		"mastodonServer": "mastodon.social",
		"callback_url":   "https://app.example/callback",
		"type":           "write",
	})
	if err != nil {
		t.Fatalf("GetSignupContext failed: %v", err)
	}

	var ctx map[string]string
	if err := json.Unmarshal(raw, &ctx); err != nil {
		t.Fatalf("unmarshal context: %v", err)
	}
	want := "https://mastodon.social/oauth/authorize?scope=read+write&redirect_uri=https://app.example/callback&response_type=code"
	if ctx["authorizationUrl"] != want {
		t.Errorf("authorization URL = %s", ctx["authorizationUrl"])
	}

	if _, err := svc.GetSignupContext(context.Background(), "user-1", map[string]string{}); err == nil {
		t.Error("GetSignupContext accepted empty params")
	}
}

func TestHandleSignupData(t *testing.T) {
	svc, _ := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Account{ID: "acct-1", Username: "tester", DisplayName: "Test Er"})
	}))

	data, _ := json.Marshal(map[string]string{
		"mastodonServer": "mastodon.social",
		"accessToken":    "token-1",
		"type":           "write",
	})
	account, err := svc.HandleSignupData(context.Background(), data)
	if err != nil {
		t.Fatalf("HandleSignupData failed: %v", err)
	}
	if account.UserID != "acct-1" {
		t.Errorf("account user = %s", account.UserID)
	}
	if account.Profile == nil || account.Profile.Username != "tester" {
		t.Errorf("profile = %+v", account.Profile)
	}
	if account.Credentials == nil || len(account.Credentials.Read) == 0 || len(account.Credentials.Write) == 0 {
		t.Errorf("credentials = %+v", account.Credentials)
	}

	var readCreds platforms.MastodonCredentials
	if err := json.Unmarshal(account.Credentials.Read, &readCreds); err != nil {
		t.Fatalf("unmarshal read creds: %v", err)
	}
	if readCreds.AccessToken != "token-1" {
		t.Errorf("stored access token = %s", readCreds.AccessToken)
	}
}
