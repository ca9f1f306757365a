package federation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

func fakeGitHub(t *testing.T, userJSON, emailsJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"gh-access","token_type":"bearer"}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, userJSON)
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, emailsJSON)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHub(srv *httptest.Server) *GitHubProvider {
	p := NewGitHub(Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURL:  "http://localhost/callback",
	})
	p.conf.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.userURL = srv.URL + "/user"
	p.emailsURL = srv.URL + "/user/emails"
	return p
}

func TestGitHubResolveProfile(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":7,"name":"Grace Brewster Hopper","email":"grace@example.com","avatar_url":"https://img.test/g.png"}`,
		`[]`)
	p := newTestGitHub(srv)

	profile, err := p.ResolveProfile(context.Background(), "code")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Email != "grace@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
	if profile.FirstName != "Grace" || profile.LastName != "Brewster Hopper" {
		t.Fatalf("name = %q %q", profile.FirstName, profile.LastName)
	}
}

func TestGitHubResolveProfilePrivateEmail(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":7,"name":"Grace"}`,
		`[{"email":"old@example.com","primary":false,"verified":true},{"email":"grace@example.com","primary":true,"verified":true}]`)
	p := newTestGitHub(srv)

	profile, err := p.ResolveProfile(context.Background(), "code")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Email != "grace@example.com" {
		t.Fatalf("expected primary verified email, got %q", profile.Email)
	}
}

func TestGitHubResolveProfileVerifiedFallback(t *testing.T) {
	srv := fakeGitHub(t,
		`{"id":7}`,
		`[{"email":"unverified@example.com","primary":true,"verified":false},{"email":"ok@example.com","primary":false,"verified":true}]`)
	p := newTestGitHub(srv)

	profile, err := p.ResolveProfile(context.Background(), "code")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Email != "ok@example.com" {
		t.Fatalf("email = %q", profile.Email)
	}
}

func TestGitHubResolveProfileNoEmail(t *testing.T) {
	srv := fakeGitHub(t, `{"id":7}`, `[{"email":"x@example.com","primary":true,"verified":false}]`)
	p := newTestGitHub(srv)

	if _, err := p.ResolveProfile(context.Background(), "code"); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		in          string
		first, last string
	}{
		{"", "", ""},
		{"Cher", "Cher", ""},
		{"Ada Lovelace", "Ada", "Lovelace"},
		{"Grace Brewster Hopper", "Grace", "Brewster Hopper"},
		{"  Ada Lovelace  ", "Ada", "Lovelace"},
	}
	for _, c := range cases {
		first, last := splitName(c.in)
		if first != c.first || last != c.last {
			t.Fatalf("splitName(%q) = %q %q, want %q %q", c.in, first, last, c.first, c.last)
		}
	}
}
