package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

// GitHubProvider resolves profiles via GitHub's OAuth2 endpoints.
type GitHubProvider struct {
	conf       *oauth2.Config
	httpClient *http.Client
	userURL    string
	emailsURL  string
}

var _ Provider = (*GitHubProvider)(nil)

// NewGitHub constructs the GitHub provider.
func NewGitHub(cfg Config) *GitHubProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"user:email"}
	}
	return &GitHubProvider{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userURL:    githubUserURL,
		emailsURL:  githubEmailsURL,
	}
}

func (p *GitHubProvider) Name() string { return "github" }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

func (p *GitHubProvider) ResolveProfile(ctx context.Context, code string) (Profile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("github code exchange: %w", err)
	}

	var u githubUser
	if err := p.getJSON(ctx, p.userURL, tok.AccessToken, &u); err != nil {
		return Profile{}, fmt.Errorf("fetch github user: %w", err)
	}

	email := u.Email
	if email == "" {
		// Profile email may be private; the emails endpoint lists the
		// verified addresses.
		var emails []githubEmail
		if err := p.getJSON(ctx, p.emailsURL, tok.AccessToken, &emails); err != nil {
			return Profile{}, fmt.Errorf("fetch github emails: %w", err)
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				email = e.Email
				break
			}
		}
		if email == "" {
			for _, e := range emails {
				if e.Verified {
					email = e.Email
					break
				}
			}
		}
	}
	if email == "" {
		return Profile{}, ErrNoEmail
	}

	first, last := splitName(u.Name)
	return Profile{
		Email:     email,
		FirstName: first,
		LastName:  last,
		Picture:   u.AvatarURL,
	}, nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func splitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

type githubUser struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}
