package mt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestAuthenticate_SendsLoginForm(t *testing.T) {
	var gotPath, gotContentType string
	var gotForm map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		gotForm = map[string]string{
			"username": r.PostForm.Get("username"),
			"password": r.PostForm.Get("password"),
			"clientId": r.PostForm.Get("clientId"),
			"remember": r.PostForm.Get("remember"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "sess-1", "accessToken": "tok-1", "expiresIn": 3600,
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "secret",
		ClientID: "movabletype-data-api",
		SiteID:   "3",
	})
	if err := client.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}

	if gotPath != "/v5/authentication" {
		t.Errorf("path = %q, want /v5/authentication", gotPath)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	want := map[string]string{
		"username": "admin",
		"password": "secret",
		"clientId": "movabletype-data-api",
		"remember": "1",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form %s = %q, want %q", k, gotForm[k], v)
		}
	}
}

func TestAuthenticate_Failure_ReturnsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid login"}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, Username: "admin", Password: "wrong", SiteID: "3"})
	err := client.Authenticate(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want *AuthError", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", authErr.Status)
	}
	if authErr.Body == "" {
		t.Error("Body should carry the response payload")
	}
}

func TestAccessToken_ReusesInlineToken(t *testing.T) {
	client, fa := mockMT(t, func(w http.ResponseWriter, r *http.Request) {
		emptyList(w)
	})

	tok1, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	tok2, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if tok1 != "tok-1" || tok2 != "tok-1" {
		t.Errorf("tokens = %q, %q, want tok-1 both times", tok1, tok2)
	}
	if fa.authCount() != 1 {
		t.Errorf("auth calls = %d, want 1", fa.authCount())
	}
}

func TestAccessToken_MintsWhenLoginOmitsToken(t *testing.T) {
	var gotSessionHeader string

	mux := http.NewServeMux()
	mux.HandleFunc("/v5/authentication", func(w http.ResponseWriter, r *http.Request) {
		// Older backends return only a session from the login call.
		json.NewEncoder(w).Encode(map[string]any{"sessionId": "sess-old", "expiresIn": 3600})
	})
	mux.HandleFunc("/v5/token", func(w http.ResponseWriter, r *http.Request) {
		gotSessionHeader = r.Header.Get("X-MT-Authorization")
		if r.PostFormValue("clientId") == "" {
			t.Error("token request missing clientId")
		}
		json.NewEncoder(w).Encode(map[string]any{"accessToken": "minted-1", "expiresIn": 3600})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL, Username: "admin", Password: "secret",
		ClientID: "movabletype-data-api", SiteID: "3",
	})

	tok, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if tok != "minted-1" {
		t.Errorf("token = %q, want minted-1", tok)
	}
	if gotSessionHeader != "sess-old" {
		t.Errorf("token exchange sent X-MT-Authorization = %q, want the session ID", gotSessionHeader)
	}
}

func TestAccessToken_TokenFailure_ReturnsTokenError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v5/authentication", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sessionId": "sess-old", "expiresIn": 3600})
	})
	mux.HandleFunc("/v5/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "session expired")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, Username: "admin", Password: "secret", SiteID: "3"})
	_, err := client.AccessToken(context.Background())

	var tokenErr *TokenError
	if !errors.As(err, &tokenErr) {
		t.Fatalf("err = %v, want *TokenError", err)
	}
	if tokenErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", tokenErr.Status)
	}
}

func TestAccessToken_ConcurrentCallersLoginOnce(t *testing.T) {
	client, fa := mockMT(t, func(w http.ResponseWriter, r *http.Request) {
		emptyList(w)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.AccessToken(context.Background()); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if fa.authCount() != 1 {
		t.Errorf("auth calls = %d, want 1 (shared clients must not duplicate logins)", fa.authCount())
	}
}

func TestClient_APIVersionSelectsPathSegment(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"sessionId": "s", "accessToken": "t", "expiresIn": 3600,
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL, Username: "admin", Password: "secret",
		SiteID: "3", APIVersion: "v6",
	})
	if err := client.Authenticate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/v6/authentication" {
		t.Errorf("path = %q, want /v6/authentication", gotPath)
	}
}
