// Package integration holds the domain model for external calendar
// integrations: the per-user Account record with its connection state
// machine and embedded sync state.
package integration

import (
	"time"
)

// ConnectionStatus is the lifecycle state of an integration account.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusExpired      ConnectionStatus = "expired"
	StatusError        ConnectionStatus = "error"
)

// validTransitions encodes the allowed connection state machine:
// disconnected -> connecting -> connected -> expired/error, and back to
// connected after a successful refresh or reconnect.
var validTransitions = map[ConnectionStatus][]ConnectionStatus{
	StatusDisconnected: {StatusConnecting},
	StatusConnecting:   {StatusConnected, StatusError, StatusDisconnected},
	StatusConnected:    {StatusExpired, StatusError, StatusDisconnected},
	StatusExpired:      {StatusConnected, StatusError, StatusDisconnected},
	StatusError:        {StatusConnecting, StatusConnected, StatusDisconnected},
}

// CanTransitionTo reports whether moving from s to target is a legal
// state machine transition.
func (s ConnectionStatus) CanTransitionTo(target ConnectionStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Account is the per-user integration record. Token material and the feed
// URL are stored encrypted; FeedURLHash allows lookup without decryption.
type Account struct {
	ID                    uint
	UID                   string
	Provider              string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	EncryptedFeedURL      string
	FeedURLHash           string
	TokenExpiresAt        *time.Time
	ConnectionStatus      ConnectionStatus

	// Embedded sync state.
	LastSyncAt   *time.Time
	LastError    string
	ErrorCount   int
	BackoffUntil *time.Time

	MirrorEnabled    bool
	MirrorCalendarID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// maxBackoff caps the consecutive-error backoff window.
const maxBackoff = 6 * time.Hour

// MarkSynced records a successful sync cycle and clears error state.
func (a *Account) MarkSynced(now time.Time) {
	a.LastSyncAt = &now
	a.LastError = ""
	a.ErrorCount = 0
	a.BackoffUntil = nil
	a.UpdatedAt = now
}

// RecordError records a failed cycle and advances the exponential backoff
// window: interval * 2^(n-1), capped at maxBackoff. The account remains
// connected; transient failures heal on a later cycle.
func (a *Account) RecordError(errMsg string, now time.Time, baseInterval time.Duration) {
	a.LastError = errMsg
	a.ErrorCount++

	backoff := baseInterval << (a.ErrorCount - 1)
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	until := now.Add(backoff)
	a.BackoffUntil = &until
	a.UpdatedAt = now
}

// MarkReauthRequired moves the account into the error state after a refresh
// token was rejected. Such accounts are excluded from scheduling until the
// user reconnects.
func (a *Account) MarkReauthRequired(errMsg string, now time.Time) {
	a.ConnectionStatus = StatusError
	a.LastError = errMsg
	a.BackoffUntil = nil
	a.UpdatedAt = now
}

// UpdateTokens stores freshly encrypted token material and restores the
// connected state if the account had expired.
func (a *Account) UpdateTokens(encryptedAccess, encryptedRefresh string, expiresAt time.Time, now time.Time) {
	a.EncryptedAccessToken = encryptedAccess
	if encryptedRefresh != "" {
		a.EncryptedRefreshToken = encryptedRefresh
	}
	a.TokenExpiresAt = &expiresAt
	if a.ConnectionStatus == StatusExpired || a.ConnectionStatus == StatusConnecting {
		a.ConnectionStatus = StatusConnected
	}
	a.UpdatedAt = now
}

// Syncable reports whether the scheduler should pick up this account at now.
func (a *Account) Syncable(now time.Time) bool {
	if a.ConnectionStatus != StatusConnected {
		return false
	}
	if a.BackoffUntil != nil && a.BackoffUntil.After(now) {
		return false
	}
	return true
}
