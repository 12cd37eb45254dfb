package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecryption is returned by the vault when ciphertext cannot be decrypted.
// It must never be swallowed into a silent garbage value.
var ErrDecryption = errors.New("ciphertext could not be decrypted")

// ReauthRequiredError indicates a refresh token was revoked or rejected by the
// provider. Accounts carrying this error are not retried automatically; the
// user must reconnect.
type ReauthRequiredError struct {
	Provider string
	Reason   string
}

func (e *ReauthRequiredError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("reauthorization required for %s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("reauthorization required for %s", e.Provider)
}

// NewReauthRequiredError creates a ReauthRequiredError for the given provider.
func NewReauthRequiredError(provider, reason string) *ReauthRequiredError {
	return &ReauthRequiredError{Provider: provider, Reason: reason}
}

// IsReauthRequired checks whether err carries a ReauthRequiredError.
func IsReauthRequired(err error) bool {
	var reauthErr *ReauthRequiredError
	return errors.As(err, &reauthErr)
}

// TransientFetchError indicates a feed fetch failed for a reason that is
// expected to heal on its own (timeout, unreachable host, 5xx). The sync
// cycle records it and retries on the next scheduled run.
type TransientFetchError struct {
	URL string
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("transient fetch failure: %v", e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// NewTransientFetchError wraps err as a transient fetch failure.
func NewTransientFetchError(url string, err error) *TransientFetchError {
	return &TransientFetchError{URL: url, Err: err}
}

// IsTransientFetch checks whether err carries a TransientFetchError.
func IsTransientFetch(err error) bool {
	var fetchErr *TransientFetchError
	return errors.As(err, &fetchErr)
}

// ProviderRateLimitError indicates the upstream provider answered 429.
// RetryAfter is zero when the provider gave no delay hint.
type ProviderRateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *ProviderRateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limited, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limited", e.Provider)
}

// NewProviderRateLimitError creates a ProviderRateLimitError.
func NewProviderRateLimitError(provider string, retryAfter time.Duration) *ProviderRateLimitError {
	return &ProviderRateLimitError{Provider: provider, RetryAfter: retryAfter}
}

// IsProviderRateLimit checks whether err carries a ProviderRateLimitError.
func IsProviderRateLimit(err error) bool {
	var rlErr *ProviderRateLimitError
	return errors.As(err, &rlErr)
}
