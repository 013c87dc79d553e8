package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/khukmani/bettervisuals/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Identity is the subset of the Google userinfo document the application
// needs: a stable subject identifier plus display fields.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// GoogleAuthenticator runs the Google OAuth2 authorization code flow and
// resolves tokens to account identities.
type GoogleAuthenticator struct {
	config      *oauth2.Config
	userinfoURL string
	httpClient  *http.Client
}

// NewGoogleAuthenticator creates an authenticator from a credential map with
// client_id, client_secret, and redirect_uri keys.
func NewGoogleAuthenticator(credentials map[string]string) (*GoogleAuthenticator, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: client_id is required", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret is required", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		return nil, fmt.Errorf("%w: redirect_uri is required", shared.ErrMissingCredentials)
	}

	return &GoogleAuthenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  googleAuthURL,
				TokenURL: googleTokenURL,
			},
		},
		userinfoURL: googleUserinfoURL,
		httpClient:  http.DefaultClient,
	}, nil
}

// AuthURL returns the Google authorization URL with the given state token.
func (g *GoogleAuthenticator) AuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// Authorize exchanges an authorization code for a token.
func (g *GoogleAuthenticator) Authorize(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)

	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Identity fetches the signed-in account's identity for a token.
func (g *GoogleAuthenticator) Identity(ctx context.Context, token *oauth2.Token) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read userinfo response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: userinfo returned 401", shared.ErrAuthRequired)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo returned %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var identity Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	if identity.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo document has no subject", shared.ErrAPIRequest)
	}

	return &identity, nil
}
