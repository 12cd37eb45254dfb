package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"

	"mingle/internal/domain/integration"
	"mingle/internal/infrastructure/vault"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/biztime"
	"mingle/internal/shared/logger"
)

// expiryBuffer is the safety margin before token expiry: a token with less
// remaining lifetime than this is refreshed eagerly so it cannot expire
// mid-request.
const expiryBuffer = 5 * time.Minute

// TokenRefresher exchanges a refresh token for a new token. Both OAuth
// clients satisfy this.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenManager returns valid access tokens for integration accounts,
// transparently refreshing and re-encrypting them as needed.
type TokenManager struct {
	refresher TokenRefresher
	vault     *vault.Vault
	accounts  integration.Repository
	logger    logger.Interface
}

// NewTokenManager creates a TokenManager for one provider's refresher.
func NewTokenManager(refresher TokenRefresher, v *vault.Vault, accounts integration.Repository, log logger.Interface) *TokenManager {
	return &TokenManager{
		refresher: refresher,
		vault:     v,
		accounts:  accounts,
		logger:    log,
	}
}

// ValidToken returns a decrypted access token valid for at least the expiry
// buffer. If the cached token is stale it refreshes, persists the new
// encrypted material and returns the fresh token. A rejected refresh token
// moves the account into the error state and surfaces ReauthRequired; it is
// never retried automatically.
func (m *TokenManager) ValidToken(ctx context.Context, account *integration.Account) (string, error) {
	if account.TokenExpiresAt != nil &&
		account.TokenExpiresAt.After(biztime.NowUTC().Add(expiryBuffer)) &&
		account.EncryptedAccessToken != "" {
		token, err := m.vault.Decrypt(account.EncryptedAccessToken)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt access token: %w", err)
		}
		return token, nil
	}

	return m.refresh(ctx, account)
}

func (m *TokenManager) refresh(ctx context.Context, account *integration.Account) (string, error) {
	if account.EncryptedRefreshToken == "" {
		return "", m.markReauthRequired(account, "no refresh token stored")
	}

	refreshToken, err := m.vault.Decrypt(account.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	token, err := m.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		if isInvalidGrant(err) {
			m.logger.Warnw("refresh token rejected by provider",
				"uid", account.UID,
				"provider", account.Provider)
			return "", m.markReauthRequired(account, "refresh token revoked")
		}
		return "", fmt.Errorf("token refresh failed: %w", err)
	}

	encryptedAccess, err := m.vault.Encrypt(token.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt access token: %w", err)
	}

	// Providers may rotate the refresh token on every refresh.
	encryptedRefresh := ""
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		encryptedRefresh, err = m.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
	}

	now := biztime.NowUTC()
	account.UpdateTokens(encryptedAccess, encryptedRefresh, token.Expiry.UTC(), now)

	if err := m.accounts.Update(account); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	m.logger.Debugw("access token refreshed",
		"uid", account.UID,
		"provider", account.Provider,
		"expires_at", token.Expiry.UTC())

	return token.AccessToken, nil
}

func (m *TokenManager) markReauthRequired(account *integration.Account, reason string) error {
	reauthErr := apperrors.NewReauthRequiredError(account.Provider, reason)
	account.MarkReauthRequired(reauthErr.Error(), biztime.NowUTC())

	if err := m.accounts.Update(account); err != nil {
		m.logger.Errorw("failed to persist reauth-required state",
			"uid", account.UID,
			"provider", account.Provider,
			"error", err)
	}

	return reauthErr
}

// isInvalidGrant reports whether the provider permanently rejected the
// refresh token, as opposed to a transient transport failure.
func isInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return true
		}
		if retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == 400 || retrieveErr.Response.StatusCode == 401) {
			return true
		}
	}
	return false
}
