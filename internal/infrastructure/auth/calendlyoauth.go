package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	sharedConfig "mingle/internal/shared/config"
	"mingle/internal/shared/constants"
)

const (
	// httpClientTimeout is the timeout for HTTP requests to OAuth providers
	httpClientTimeout = 30 * time.Second
)

// CalendlyOAuthClient drives the scheduling-service OAuth flow. Calendly
// treats us as a public client, so the authorization code is bound with
// PKCE instead of a client secret.
type CalendlyOAuthClient struct {
	config    *oauth2.Config
	revokeURL string
}

// NewCalendlyOAuthClient creates a client from configuration.
func NewCalendlyOAuthClient(cfg sharedConfig.CalendlyOAuthConfig) *CalendlyOAuthClient {
	return &CalendlyOAuthClient{
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		revokeURL: cfg.RevokeURL,
	}
}

// AuthURL builds the authorization URL embedding the PKCE challenge and the
// opaque state value.
func (c *CalendlyOAuthClient) AuthURL(state, codeChallenge string) string {
	return c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// Exchange trades the authorization code plus PKCE verifier for tokens.
func (c *CalendlyOAuthClient) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	token, err := c.config.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *CalendlyOAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Revoke invalidates a token at the provider. Used on disconnect so a
// stored credential does not outlive the integration.
func (c *CalendlyOAuthClient) Revoke(ctx context.Context, token string) error {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", constants.UserAgent)

	client := &http.Client{Timeout: httpClientTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("revoke request returned status %d", resp.StatusCode)
	}
	return nil
}
