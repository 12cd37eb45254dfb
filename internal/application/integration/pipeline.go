package integration

import (
	"context"
	"fmt"
	"time"

	domain "mingle/internal/domain/integration"
	"mingle/internal/shared/constants"
	apperrors "mingle/internal/shared/errors"
	"mingle/internal/sync/mirror"
)

// RunAccountSync executes one account's full pipeline: fetch, parse,
// reconcile, then mirror. Steps are strictly ordered; a fetch or parse
// failure records lastError and touches no meetings, so a transient
// outage can never mass-cancel a user's schedule.
func (s *Service) RunAccountSync(ctx context.Context, uid, provider string) error {
	account, err := s.accounts.GetByUIDAndProvider(uid, provider)
	if err != nil {
		return err
	}
	if account.EncryptedFeedURL == "" {
		return apperrors.NewValidationError("no feed URL configured for this account")
	}

	feedURL, err := s.vault.Decrypt(account.EncryptedFeedURL)
	if err != nil {
		return s.recordSyncError(account, fmt.Errorf("decrypt feed URL: %w", err))
	}

	body, err := s.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		return s.recordSyncError(account, err)
	}

	fetched, err := s.normalizer.Parse(body)
	if err != nil {
		return s.recordSyncError(account, err)
	}

	now := time.Now().UTC()
	result, err := s.reconciler.Reconcile(uid, provider, fetched, now)
	if err != nil {
		return s.recordSyncError(account, err)
	}

	account.MarkSynced(now)
	if err := s.accounts.Update(account); err != nil {
		return err
	}

	s.logger.Infow("account synced",
		"uid", uid,
		"provider", provider,
		"fetched", len(fetched),
		"created", result.Created,
		"updated", result.Updated,
		"canceled", result.Canceled,
	)

	// Mirroring is best effort: reconciliation state is already
	// committed, and unmirrored meetings get picked up next cycle.
	if account.MirrorEnabled {
		if err := s.mirrorMeetings(ctx, account); err != nil {
			s.logger.Warnw("mirror pass failed", "uid", uid, "error", err)
		}
	}
	return nil
}

// recordSyncError stores the failure on the account and advances its
// backoff window. The original error is returned for the caller.
func (s *Service) recordSyncError(account *domain.Account, syncErr error) error {
	account.RecordError(syncErr.Error(), time.Now().UTC(), s.syncInterval())
	if err := s.accounts.Update(account); err != nil {
		s.logger.Errorw("persisting sync error state failed",
			"uid", account.UID, "error", err)
	}
	return syncErr
}

// mirrorMeetings projects the account's meetings into the linked Google
// calendar, including removing mirrors of meetings canceled upstream.
func (s *Service) mirrorMeetings(ctx context.Context, account *domain.Account) error {
	google, err := s.accounts.GetByUIDAndProvider(account.UID, constants.ProviderGoogle)
	if err != nil {
		return fmt.Errorf("load google account: %w", err)
	}

	token, err := s.googleTokens.ValidToken(ctx, google)
	if err != nil {
		// A ReauthRequired here is already persisted on the google
		// account by the token manager.
		return fmt.Errorf("google token: %w", err)
	}

	api, err := s.calendarFactory(ctx, token)
	if err != nil {
		return fmt.Errorf("build calendar client: %w", err)
	}

	meetings, err := s.meetings.ListByOwner(account.UID, account.Provider)
	if err != nil {
		return fmt.Errorf("list meetings: %w", err)
	}

	writer := mirror.NewWriter(api, s.meetings, s.logger)
	result, err := writer.Mirror(ctx, account.MirrorCalendarID, meetings)
	if err != nil {
		return err
	}

	if result.Inserted+result.Patched+result.Deleted > 0 {
		s.logger.Infow("mirror pass complete",
			"uid", account.UID,
			"inserted", result.Inserted,
			"patched", result.Patched,
			"deleted", result.Deleted,
			"skipped", result.Skipped,
			"unchanged", result.Unchanged,
		)
	}
	return nil
}
