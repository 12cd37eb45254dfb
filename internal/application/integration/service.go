// Package integration implements the Integration API operations and the
// per-account sync pipeline on top of the domain and infrastructure
// layers.
package integration

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domain "mingle/internal/domain/integration"
	"mingle/internal/domain/meeting"
	"mingle/internal/infrastructure/cache"
	"mingle/internal/infrastructure/ratelimit"
	"mingle/internal/infrastructure/vault"
	sharedConfig "mingle/internal/shared/config"
	"mingle/internal/shared/constants"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/shared/goroutine"
	"mingle/internal/shared/logger"
	"mingle/internal/sync/feed"
	"mingle/internal/sync/mirror"
	"mingle/internal/sync/reconcile"
)

// CalendlyOAuth is the slice of the Calendly OAuth client the service
// needs.
type CalendlyOAuth interface {
	AuthURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)
	Revoke(ctx context.Context, token string) error
}

// GoogleOAuth is the slice of the Google OAuth client the service needs.
type GoogleOAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// TokenProvider yields a currently valid access token for an account,
// refreshing transparently when needed.
type TokenProvider interface {
	ValidToken(ctx context.Context, account *domain.Account) (string, error)
}

// CalendarFactory builds a per-token calendar client for mirroring.
type CalendarFactory func(ctx context.Context, accessToken string) (mirror.CalendarAPI, error)

// CalendarLister reports the calendar ids the account can write to.
// Calendar clients that implement it get mirror targets validated
// before mirroring is enabled.
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]string, error)
}

// Deps bundles the service's collaborators.
type Deps struct {
	Accounts        domain.Repository
	Meetings        meeting.Repository
	Vault           *vault.Vault
	Fetcher         *feed.Fetcher
	Normalizer      *feed.Normalizer
	Reconciler      *reconcile.Reconciler
	RateLimiter     ratelimit.RateLimiter
	Sessions        *cache.OAuthSessionStore
	CalendlyOAuth   CalendlyOAuth
	GoogleOAuth     GoogleOAuth
	GoogleTokens    TokenProvider
	CalendarFactory CalendarFactory
	SyncConfig      sharedConfig.SyncConfig
	Logger          logger.Interface
}

// Service implements the Integration API.
type Service struct {
	accounts        domain.Repository
	meetings        meeting.Repository
	vault           *vault.Vault
	fetcher         *feed.Fetcher
	normalizer      *feed.Normalizer
	reconciler      *reconcile.Reconciler
	rateLimiter     ratelimit.RateLimiter
	sessions        *cache.OAuthSessionStore
	calendlyOAuth   CalendlyOAuth
	googleOAuth     GoogleOAuth
	googleTokens    TokenProvider
	calendarFactory CalendarFactory
	syncCfg         sharedConfig.SyncConfig
	logger          logger.Interface
}

func NewService(deps Deps) *Service {
	return &Service{
		accounts:        deps.Accounts,
		meetings:        deps.Meetings,
		vault:           deps.Vault,
		fetcher:         deps.Fetcher,
		normalizer:      deps.Normalizer,
		reconciler:      deps.Reconciler,
		rateLimiter:     deps.RateLimiter,
		sessions:        deps.Sessions,
		calendlyOAuth:   deps.CalendlyOAuth,
		googleOAuth:     deps.GoogleOAuth,
		googleTokens:    deps.GoogleTokens,
		calendarFactory: deps.CalendarFactory,
		syncCfg:         deps.SyncConfig,
		logger:          deps.Logger,
	}
}

func (s *Service) rateLimitWindow() time.Duration {
	return time.Duration(s.syncCfg.RateLimitWindowMinutes) * time.Minute
}

func (s *Service) syncInterval() time.Duration {
	return time.Duration(s.syncCfg.IntervalMinutes) * time.Minute
}

func (s *Service) probeTimeout() time.Duration {
	return time.Duration(s.syncCfg.ProbeTimeoutSeconds) * time.Second
}

func (s *Service) accountTimeout() time.Duration {
	return time.Duration(s.syncCfg.AccountTimeoutSeconds) * time.Second
}

// Connect validates and stores a calendar feed URL, then kicks off the
// first sync in the background. A feed that fails validation or the
// reachability probe leaves no account behind.
func (s *Service) Connect(ctx context.Context, uid, feedURL string) (*StatusResult, error) {
	if err := validateFeedURL(feedURL); err != nil {
		return nil, err
	}

	if err := s.fetcher.Probe(ctx, feedURL, s.probeTimeout()); err != nil {
		s.logger.Infow("feed probe failed", "uid", uid, "error", err)
		return nil, apperrors.NewBadRequestError("feed URL is unreachable", err.Error())
	}

	encrypted, err := s.vault.Encrypt(feedURL)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to store feed URL")
	}
	now := time.Now().UTC()

	account, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderCalendly)
	switch {
	case err == nil:
		account.EncryptedFeedURL = encrypted
		account.FeedURLHash = vault.Hash(feedURL)
		account.ConnectionStatus = domain.StatusConnected
		account.LastError = ""
		account.ErrorCount = 0
		account.BackoffUntil = nil
		account.UpdatedAt = now
		if err := s.accounts.Update(account); err != nil {
			return nil, err
		}
	case apperrors.IsNotFoundError(err):
		account = &domain.Account{
			UID:              uid,
			Provider:         constants.ProviderCalendly,
			EncryptedFeedURL: encrypted,
			FeedURLHash:      vault.Hash(feedURL),
			ConnectionStatus: domain.StatusConnected,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.accounts.Create(account); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	// First sync runs in the background so connect responds immediately.
	s.asyncSync(uid, constants.ProviderCalendly)

	return s.statusFor(account)
}

// SyncNow triggers one sync cycle for the caller, subject to the same
// per-account window the scheduler respects. A repeat request inside
// the window is rejected, not queued.
func (s *Service) SyncNow(ctx context.Context, uid string) (*SyncNowResult, error) {
	account, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderCalendly)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewNotFoundError("no calendar integration connected")
		}
		return nil, err
	}

	key := syncRateKey(uid, account.Provider)
	allowed, err := s.rateLimiter.Allow(ctx, key, s.rateLimitWindow(), 1)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewRateLimitedError("sync already in progress or requested recently")
	}

	if err := s.RunAccountSync(ctx, uid, account.Provider); err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("sync failed", err.Error())
	}

	count, err := s.meetings.CountActiveByOwner(uid, account.Provider)
	if err != nil {
		return nil, err
	}
	return &SyncNowResult{EventCount: count}, nil
}

// Disconnect removes the integration. With purge the stored meetings
// are hard-deleted; otherwise they are kept and marked canceled.
func (s *Service) Disconnect(ctx context.Context, uid string, purge bool) error {
	account, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderCalendly)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.NewNotFoundError("no calendar integration connected")
		}
		return err
	}

	// Best effort: a revoke failure must not block the disconnect.
	if account.EncryptedRefreshToken != "" {
		if refreshToken, derr := s.vault.Decrypt(account.EncryptedRefreshToken); derr == nil {
			if rerr := s.calendlyOAuth.Revoke(ctx, refreshToken); rerr != nil {
				s.logger.Warnw("token revocation failed", "uid", uid, "error", rerr)
			}
		}
	}

	if err := s.accounts.Delete(uid, constants.ProviderCalendly); err != nil {
		return err
	}

	if purge {
		if err := s.meetings.DeleteByOwner(uid, constants.ProviderCalendly); err != nil {
			return err
		}
	} else {
		if err := s.meetings.CancelAllByOwner(uid, constants.ProviderCalendly); err != nil {
			return err
		}
	}

	s.logger.Infow("integration disconnected", "uid", uid, "purged", purge)
	return nil
}

// Status reports the caller's integration state.
func (s *Service) Status(ctx context.Context, uid string) (*StatusResult, error) {
	account, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderCalendly)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return &StatusResult{
				Connected:        false,
				ConnectionStatus: string(domain.StatusDisconnected),
				GoogleConnected:  s.googleConnected(uid),
			}, nil
		}
		return nil, err
	}
	return s.statusFor(account)
}

// ListMeetings returns the caller's active meetings ordered by start.
func (s *Service) ListMeetings(ctx context.Context, uid string) ([]*MeetingView, error) {
	meetings, err := s.meetings.ListActiveByOwner(uid, constants.ProviderCalendly)
	if err != nil {
		return nil, err
	}

	sort.Slice(meetings, func(i, j int) bool {
		return meetings[i].Start.Before(meetings[j].Start)
	})

	views := make([]*MeetingView, 0, len(meetings))
	for _, m := range meetings {
		views = append(views, &MeetingView{
			ExternalID:   m.ExternalID,
			Title:        m.Title,
			Start:        m.Start,
			End:          m.End,
			TimeZone:     m.TimeZone,
			Location:     m.Location,
			Latitude:     m.Latitude,
			Longitude:    m.Longitude,
			Participants: m.Participants,
			Status:       string(m.Status),
			Notes:        m.Notes,
			UpdatedAt:    m.UpdatedAt,
		})
	}
	return views, nil
}

// ToggleMirror switches calendar mirroring. Enabling requires a
// connected Google account and immediately triggers a sync so the
// mirror catches up without waiting for the next cycle.
func (s *Service) ToggleMirror(ctx context.Context, uid string, enabled bool, calendarID string) (*StatusResult, error) {
	account, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderCalendly)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewNotFoundError("no calendar integration connected")
		}
		return nil, err
	}

	if enabled {
		google, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderGoogle)
		if err != nil || google.ConnectionStatus != domain.StatusConnected {
			return nil, apperrors.NewBadRequestError("Google Calendar is not connected")
		}
		if calendarID == "" {
			calendarID = "primary"
		}
		if err := s.validateMirrorTarget(ctx, google, calendarID); err != nil {
			return nil, err
		}
		account.MirrorEnabled = true
		account.MirrorCalendarID = calendarID
	} else {
		account.MirrorEnabled = false
	}
	account.UpdatedAt = time.Now().UTC()

	if err := s.accounts.Update(account); err != nil {
		return nil, err
	}

	if enabled {
		s.asyncSync(uid, account.Provider)
	}

	return s.statusFor(account)
}

// validateMirrorTarget checks that the requested calendar exists and is
// writable before mirroring is enabled. "primary" always resolves, and
// clients that cannot list calendars skip the check.
func (s *Service) validateMirrorTarget(ctx context.Context, google *domain.Account, calendarID string) error {
	if calendarID == "primary" {
		return nil
	}
	token, err := s.googleTokens.ValidToken(ctx, google)
	if err != nil {
		return err
	}
	api, err := s.calendarFactory(ctx, token)
	if err != nil {
		return err
	}
	lister, ok := api.(CalendarLister)
	if !ok {
		return nil
	}
	ids, err := lister.ListCalendars(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == calendarID {
			return nil
		}
	}
	return apperrors.NewBadRequestError("calendar is not writable: " + calendarID)
}

func (s *Service) statusFor(account *domain.Account) (*StatusResult, error) {
	count, err := s.meetings.CountActiveByOwner(account.UID, account.Provider)
	if err != nil {
		return nil, err
	}
	return &StatusResult{
		Connected:        account.ConnectionStatus == domain.StatusConnected,
		ConnectionStatus: string(account.ConnectionStatus),
		LastSyncAt:       account.LastSyncAt,
		LastError:        account.LastError,
		EventCount:       count,
		MirrorEnabled:    account.MirrorEnabled,
		MirrorCalendarID: account.MirrorCalendarID,
		GoogleConnected:  s.googleConnected(account.UID),
	}, nil
}

func (s *Service) googleConnected(uid string) bool {
	google, err := s.accounts.GetByUIDAndProvider(uid, constants.ProviderGoogle)
	return err == nil && google.ConnectionStatus == domain.StatusConnected
}

// asyncSync launches a sync in the background with its own time budget,
// detached from the caller's request context.
func (s *Service) asyncSync(uid, provider string) {
	goroutine.SafeGo(s.logger, "first-sync-"+uid, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.accountTimeout())
		defer cancel()
		if err := s.RunAccountSync(ctx, uid, provider); err != nil {
			s.logger.Warnw("background sync failed", "uid", uid, "error", err)
		}
	})
}

func syncRateKey(uid, provider string) string {
	return fmt.Sprintf("sync:%s:%s", uid, provider)
}

// validateFeedURL enforces secure transport and cheap shape heuristics
// before the network probe runs.
func validateFeedURL(feedURL string) error {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return apperrors.NewValidationError("feed URL is not a valid URL")
	}
	if parsed.Scheme != "https" {
		return apperrors.NewValidationError("feed URL must use https")
	}
	if parsed.Host == "" {
		return apperrors.NewValidationError("feed URL has no host")
	}

	lower := strings.ToLower(parsed.Path + "?" + parsed.RawQuery)
	if !strings.Contains(lower, ".ics") &&
		!strings.Contains(lower, "ical") &&
		!strings.Contains(lower, "calendar") &&
		!strings.Contains(lower, "feed") {
		return apperrors.NewValidationError("URL does not look like a calendar feed")
	}
	return nil
}
