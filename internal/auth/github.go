package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/derailed-dash/rickbot/pkg/models"
)

const defaultGitHubAPIBase = "https://api.github.com"

// maxGitHubResponse bounds identity endpoint reads.
const maxGitHubResponse = 1 << 20

// GitHubVerifier validates opaque GitHub access tokens by calling the
// GitHub identity endpoints.
type GitHubVerifier struct {
	apiBase    string
	baseClient *http.Client
}

// GitHubConfig configures the GitHub token verifier.
type GitHubConfig struct {
	// APIBase overrides the GitHub API base URL, for tests.
	APIBase string
	// HTTPClient is the transport used underneath the token source.
	HTTPClient *http.Client
}

// NewGitHubVerifier builds a verifier against the GitHub API.
func NewGitHubVerifier(cfg GitHubConfig) *GitHubVerifier {
	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = defaultGitHubAPIBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GitHubVerifier{apiBase: base, baseClient: client}
}

// Verify looks up the token's user via GET /user. When the profile
// email is not public it falls back to GET /user/emails for the
// primary address, and finally synthesizes <login>@github.example so
// the identity always carries an email.
func (v *GitHubVerifier) Verify(ctx context.Context, token string) (*models.User, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.baseClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	var profile struct {
		ID    json.Number `json:"id"`
		Login string      `json:"login"`
		Name  string      `json:"name"`
		Email string      `json:"email"`
	}
	if err := v.getJSON(ctx, client, "/user", &profile); err != nil {
		return nil, err
	}
	if profile.Login == "" {
		return nil, errors.New("github user has no login")
	}

	email := strings.TrimSpace(profile.Email)
	if email == "" {
		email = v.primaryEmail(ctx, client)
	}
	if email == "" {
		email = profile.Login + "@github.example"
	}

	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = profile.Login
	}

	return &models.User{
		ID:       profile.ID.String(),
		Email:    email,
		Name:     name,
		Provider: models.ProviderGitHub,
	}, nil
}

// primaryEmail returns the user's primary verified email, or "". A
// failed lookup is not an error; the caller synthesizes a fallback.
func (v *GitHubVerifier) primaryEmail(ctx context.Context, client *http.Client) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := v.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email
		}
	}
	return ""
}

func (v *GitHubVerifier) getJSON(ctx context.Context, client *http.Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github request %s failed with status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxGitHubResponse))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
