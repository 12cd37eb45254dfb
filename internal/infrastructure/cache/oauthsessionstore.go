package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	oauthSessionPrefix = "oauth:session:"

	// OAuthSessionTTL bounds how long an authorization attempt may stay open.
	OAuthSessionTTL = 10 * time.Minute
)

// ErrSessionNotFound is returned when a callback presents a state with no
// matching session: expired, never issued, or already consumed (replay).
var ErrSessionNotFound = errors.New("oauth session not found or already consumed")

// OAuthSession is the ephemeral PKCE authorization state. It is created at
// authorize time, consumed exactly once at callback time, and disappears
// after OAuthSessionTTL.
type OAuthSession struct {
	SessionID string    `json:"session_id"`
	UID       string    `json:"uid"`
	Provider  string    `json:"provider"`
	Verifier  string    `json:"verifier"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OAuthSessionStore persists PKCE sessions keyed by state value.
type OAuthSessionStore struct {
	cache Cache
}

// NewOAuthSessionStore creates an OAuthSessionStore on the given cache.
func NewOAuthSessionStore(cache Cache) *OAuthSessionStore {
	return &OAuthSessionStore{cache: cache}
}

// Save stores a new session for the given user. The returned session carries
// a fresh session id and expiry.
func (s *OAuthSessionStore) Save(ctx context.Context, uid, provider, verifier, state string) (*OAuthSession, error) {
	session := &OAuthSession{
		SessionID: uuid.NewString(),
		UID:       uid,
		Provider:  provider,
		Verifier:  verifier,
		State:     state,
		ExpiresAt: time.Now().UTC().Add(OAuthSessionTTL),
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oauth session: %w", err)
	}

	if err := s.cache.Set(ctx, oauthSessionPrefix+state, string(raw), OAuthSessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store oauth session: %w", err)
	}

	return session, nil
}

// Consume atomically retrieves and deletes the session for state. A second
// call with the same state fails with ErrSessionNotFound, which rejects
// replayed callbacks.
func (s *OAuthSessionStore) Consume(ctx context.Context, state string) (*OAuthSession, error) {
	key := oauthSessionPrefix + state

	// Atomic get-and-delete: with concurrent callbacks presenting the
	// same state only one caller sees the session, and the state is
	// burned even if unmarshal fails below.
	raw, ok, err := s.cache.GetDel(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth session: %w", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	var session OAuthSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal oauth session: %w", err)
	}

	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}

	return &session, nil
}
