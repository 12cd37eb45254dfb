package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	sharedConfig "mingle/internal/shared/config"
)

// GoogleOAuthClient handles the calendar-provider OAuth flow. Google issues
// a client secret, so this is a confidential client without PKCE.
type GoogleOAuthClient struct {
	config *oauth2.Config
}

// NewGoogleOAuthClient creates a client requesting calendar write access.
func NewGoogleOAuthClient(cfg sharedConfig.GoogleOAuthConfig) *GoogleOAuthClient {
	return &GoogleOAuthClient{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				calendar.CalendarEventsScope,
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthURL builds the authorization URL. offline access is requested so a
// refresh token is returned on first consent.
func (c *GoogleOAuthClient) AuthURL(state string) string {
	return c.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens.
func (c *GoogleOAuthClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// Refresh exchanges a refresh token for a fresh access token.
func (c *GoogleOAuthClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, err
	}
	return token, nil
}
