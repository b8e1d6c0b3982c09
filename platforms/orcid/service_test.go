package orcid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)

	svc := NewService(Config{
		Domain:       ts.Listener.Addr().String(),
		ClientID:     "client-1",
		ClientSecret: "secret-1",
	}, nil)
	svc.httpClient = ts.Client()
	return svc
}

func TestGetSignupContext(t *testing.T) {
	svc := NewService(Config{ClientID: "client-1"}, nil)

	raw, err := svc.GetSignupContext(context.Background(), "user-1", map[string]string{
		"callback_url": "https://app.example/callback",
	})
	if err != nil {
		t.Fatalf("GetSignupContext failed: %v", err)
	}

	var ctx struct {
		AuthorizationURL string `json:"authorizationUrl"`
	}
	if err := json.Unmarshal(raw, &ctx); err != nil {
		t.Fatalf("unmarshal context: %v", err)
	}

	parsed, err := url.Parse(ctx.AuthorizationURL)
	if err != nil {
		t.Fatalf("parse authorization URL: %v", err)
	}
	if parsed.Host != "orcid.org" || parsed.Path != "/oauth/authorize" {
		t.Errorf("authorization URL = %s", ctx.AuthorizationURL)
	}
	q := parsed.Query()
	if q.Get("client_id") != "client-1" || q.Get("scope") != "/authenticate" || q.Get("response_type") != "code" {
		t.Errorf("authorization query = %s", parsed.RawQuery)
	}
	if q.Get("redirect_uri") != "https://app.example/callback" {
		t.Errorf("redirect_uri = %s", q.Get("redirect_uri"))
	}
}

func TestGetSignupContextRequiresCallback(t *testing.T) {
	svc := NewService(Config{ClientID: "client-1"}, nil)
	if _, err := svc.GetSignupContext(context.Background(), "user-1", nil); err == nil {
		t.Fatal("GetSignupContext accepted empty params")
	}
}

func TestHandleSignupData(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/oauth/token" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("code") != "code-1" || r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("form = %v", r.PostForm)
		}
		if r.PostForm.Get("client_id") != "client-1" || r.PostForm.Get("client_secret") != "secret-1" {
			t.Errorf("client credentials = %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "tok-1",
			"orcid":        "0000-0001-2345-6789",
			"name":         "Test Er",
		})
	}))

	account, err := svc.HandleSignupData(context.Background(), json.RawMessage(`{"code":"code-1","callback_url":"https://app.example/callback"}`))
	if err != nil {
		t.Fatalf("HandleSignupData failed: %v", err)
	}

	if account.UserID != "0000-0001-2345-6789" {
		t.Errorf("account user id = %s", account.UserID)
	}
	if account.Identity == nil || account.Identity.OrcidID != "0000-0001-2345-6789" {
		t.Errorf("account identity = %+v", account.Identity)
	}
	if account.Profile == nil || account.Profile.DisplayName != "Test Er" {
		t.Errorf("account profile = %+v", account.Profile)
	}
}

func TestHandleSignupDataRejectsMissingOrcid(t *testing.T) {
	svc := newTestService(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	}))

	if _, err := svc.HandleSignupData(context.Background(), json.RawMessage(`{"code":"code-1"}`)); err == nil {
		t.Fatal("HandleSignupData accepted a token response without an ORCID iD")
	}
}
