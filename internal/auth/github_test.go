package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGitHubVerify(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/user":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": 1234, "login": "rsanchez", "name": "Rick Sanchez", "email": "rick@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := NewGitHubVerifier(GitHubConfig{APIBase: srv.URL})
	user, err := v.Verify(context.Background(), "gho_test")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotAuth != "Bearer gho_test" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if user.ID != "1234" || user.Email != "rick@example.com" || user.Name != "Rick Sanchez" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestGitHubVerifyPrimaryEmailFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			w.Write([]byte(`{"id": 5, "login": "morty", "name": "", "email": ""}`))
		case "/user/emails":
			w.Write([]byte(`[
				{"email": "old@example.com", "primary": false, "verified": true},
				{"email": "morty@example.com", "primary": true, "verified": true}
			]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := NewGitHubVerifier(GitHubConfig{APIBase: srv.URL})
	user, err := v.Verify(context.Background(), "gho_test")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Email != "morty@example.com" {
		t.Errorf("email = %q, want primary email", user.Email)
	}
	if user.Name != "morty" {
		t.Errorf("name = %q, want login fallback", user.Name)
	}
}

func TestGitHubVerifySynthesizedEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			w.Write([]byte(`{"id": 6, "login": "birdperson"}`))
		case "/user/emails":
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	v := NewGitHubVerifier(GitHubConfig{APIBase: srv.URL})
	user, err := v.Verify(context.Background(), "gho_test")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.Email != "birdperson@github.example" {
		t.Errorf("email = %q, want synthesized fallback", user.Email)
	}
}

func TestGitHubVerifyBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewGitHubVerifier(GitHubConfig{APIBase: srv.URL})
	if _, err := v.Verify(context.Background(), "bogus"); err == nil {
		t.Fatal("expected an error for a rejected token")
	}
}
