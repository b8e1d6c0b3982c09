package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func TestParse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req ParseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Content != "post content" {
			t.Errorf("content = %q", req.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ParseResult{
			Semantics:            "<http://e.c/s> <http://e.c/p> <http://e.c/o> .",
			FilterClassification: ClassificationResearch,
		})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, WithRetryConfig(fastRetry(3)))
	result, err := client.Parse(context.Background(), ParseRequest{Content: "post content"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if result.FilterClassification != ClassificationResearch {
		t.Errorf("classification = %s", result.FilterClassification)
	}
	if result.Semantics == "" {
		t.Error("semantics is empty")
	}
}

func TestParseRequiresContent(t *testing.T) {
	client := NewClient("http://localhost:0")
	if _, err := client.Parse(context.Background(), ParseRequest{}); err == nil {
		t.Fatal("Parse accepted empty content")
	}
}

func TestParseRetriesTransientFailures(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ParseResult{Semantics: ""})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, WithRetryConfig(fastRetry(3)))
	if _, err := client.Parse(context.Background(), ParseRequest{Content: "x"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("made %d calls, want 3", calls)
	}
}

func TestParseGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, WithRetryConfig(fastRetry(2)))
	_, err := client.Parse(context.Background(), ParseRequest{Content: "x"})
	if err == nil {
		t.Fatal("Parse succeeded against a failing service")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("error = %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d calls, want 2", calls)
	}
}

func TestParseClientErrorsAreFatal(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, WithRetryConfig(fastRetry(3)))
	if _, err := client.Parse(context.Background(), ParseRequest{Content: "x"}); err == nil {
		t.Fatal("Parse succeeded on a 400 response")
	}
	if calls != 1 {
		t.Errorf("made %d calls, want 1 (client errors are not retried)", calls)
	}
}

func TestParseHonorsContextCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(ts.URL, WithRetryConfig(RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Hour,
		BackoffMultiplier: 2.0,
		MaxBackoff:        time.Hour,
	}))
	_, err := client.Parse(ctx, ParseRequest{Content: "x"})
	if err == nil {
		t.Fatal("Parse ignored the cancelled context")
	}
}
