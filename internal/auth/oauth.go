package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubUserURL = "https://api.github.com/user"

// maxProfileBytes bounds how much of the /user response we decode.
const maxProfileBytes = 1 << 20

var ErrInvalidGitHubUser = errors.New("auth: GitHub returned an unusable profile")

// GitHubUser is the slice of GitHub's /user response a snippet account
// needs. ID is stable across renames; Login seeds the username on first
// sign-in.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GitHubProvider runs the authorization-code flow against GitHub:
// AuthURL sends the browser to GitHub, and Exchange turns the code GitHub
// hands back into a profile. The access token stays on the server.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

type GitHubOption func(*GitHubProvider)

// WithGitHubEndpoints points the provider at another OAuth server and user
// API, such as GitHub Enterprise or an httptest server.
func WithGitHubEndpoints(endpoint oauth2.Endpoint, userURL string) GitHubOption {
	return func(p *GitHubProvider) {
		p.config.Endpoint = endpoint
		p.userURL = userURL
	}
}

// NewGitHubProvider configures an OAuth app. callbackURL must equal the
// app's registered callback, e.g. http://localhost:8080/auth/github/callback.
// Only read:user is requested.
func NewGitHubProvider(clientID, clientSecret, callbackURL string, opts ...GitHubOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL is where the login route redirects to. state must also be kept
// client-side (a cookie) and compared on the callback.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the signed-in GitHub profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub profile request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	// The oauth2 client adds the bearer token to every request.
	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: fetching GitHub profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub profile request returned %s", resp.Status)
	}

	var user GitHubUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub profile: %w", err)
	}
	user.Login = strings.TrimSpace(user.Login)
	if user.ID == 0 || user.Login == "" {
		return nil, fmt.Errorf("%w (id %d, login %q)", ErrInvalidGitHubUser, user.ID, user.Login)
	}

	return &user, nil
}
