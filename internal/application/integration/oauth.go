package integration

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"

	domain "mingle/internal/domain/integration"
	"mingle/internal/infrastructure/auth"
	"mingle/internal/infrastructure/cache"
	"mingle/internal/shared/constants"
	apperrors "mingle/internal/shared/errors"
)

// AuthorizeCalendly starts the PKCE authorization flow: it generates
// the verifier and state, parks them in a single-use session, and
// returns the provider URL carrying only the derived challenge.
func (s *Service) AuthorizeCalendly(ctx context.Context, uid string) (*AuthorizeResult, error) {
	verifier, challenge, err := auth.GeneratePKCEParams()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate authorization parameters")
	}
	state, err := auth.GenerateState()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate authorization parameters")
	}

	if _, err := s.sessions.Save(ctx, uid, constants.ProviderCalendly, verifier, state); err != nil {
		return nil, apperrors.NewInternalError("failed to start authorization")
	}

	return &AuthorizeResult{
		AuthorizationURL: s.calendlyOAuth.AuthURL(state, challenge),
	}, nil
}

// HandleCalendlyCallback completes the PKCE flow. The state must match
// a live session, which is burned on first use; a replayed callback is
// rejected.
func (s *Service) HandleCalendlyCallback(ctx context.Context, state, code string) error {
	session, err := s.sessions.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return apperrors.NewUnauthorizedError("authorization session is invalid, expired, or already used")
		}
		return err
	}

	token, err := s.calendlyOAuth.Exchange(ctx, code, session.Verifier)
	if err != nil {
		s.logger.Warnw("calendly code exchange failed", "uid", session.UID, "error", err)
		return apperrors.NewUnauthorizedError("authorization code exchange failed")
	}

	return s.storeProviderTokens(session.UID, constants.ProviderCalendly, token)
}

// AuthorizeGoogle starts the Google authorization flow used to link a
// mirror calendar. Google is a confidential client, so state alone
// binds the callback; no PKCE verifier is involved.
func (s *Service) AuthorizeGoogle(ctx context.Context, uid string) (*AuthorizeResult, error) {
	state, err := auth.GenerateState()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate authorization parameters")
	}

	if _, err := s.sessions.Save(ctx, uid, constants.ProviderGoogle, "", state); err != nil {
		return nil, apperrors.NewInternalError("failed to start authorization")
	}

	return &AuthorizeResult{
		AuthorizationURL: s.googleOAuth.AuthURL(state),
	}, nil
}

// HandleGoogleCallback completes the Google flow and stores the
// account's encrypted tokens.
func (s *Service) HandleGoogleCallback(ctx context.Context, state, code string) error {
	session, err := s.sessions.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return apperrors.NewUnauthorizedError("authorization session is invalid, expired, or already used")
		}
		return err
	}

	token, err := s.googleOAuth.Exchange(ctx, code)
	if err != nil {
		s.logger.Warnw("google code exchange failed", "uid", session.UID, "error", err)
		return apperrors.NewUnauthorizedError("authorization code exchange failed")
	}

	return s.storeProviderTokens(session.UID, constants.ProviderGoogle, token)
}

// storeProviderTokens encrypts and persists fresh token material,
// creating the provider account on first authorization.
func (s *Service) storeProviderTokens(uid, provider string, token *oauth2.Token) error {
	encryptedAccess, err := s.vault.Encrypt(token.AccessToken)
	if err != nil {
		return apperrors.NewInternalError("failed to store credentials")
	}
	encryptedRefresh := ""
	if token.RefreshToken != "" {
		encryptedRefresh, err = s.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return apperrors.NewInternalError("failed to store credentials")
		}
	}

	now := time.Now().UTC()
	account, err := s.accounts.GetByUIDAndProvider(uid, provider)
	switch {
	case err == nil:
		account.UpdateTokens(encryptedAccess, encryptedRefresh, token.Expiry, now)
		account.ConnectionStatus = domain.StatusConnected
		account.LastError = ""
		if err := s.accounts.Update(account); err != nil {
			return err
		}
	case apperrors.IsNotFoundError(err):
		expiry := token.Expiry
		account = &domain.Account{
			UID:                   uid,
			Provider:              provider,
			EncryptedAccessToken:  encryptedAccess,
			EncryptedRefreshToken: encryptedRefresh,
			TokenExpiresAt:        &expiry,
			ConnectionStatus:      domain.StatusConnected,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if err := s.accounts.Create(account); err != nil {
			return err
		}
	default:
		return err
	}

	s.logger.Infow("provider authorized", "uid", uid, "provider", provider)
	return nil
}
