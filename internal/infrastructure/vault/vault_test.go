package vault

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mingle/internal/shared/errors"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(testKey)
	require.NoError(t, err)
	return v
}

func TestVault_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"short token", "tok_abc123"},
		{"url with query", "https://calendly.com/feeds/user.ics?token=secret"},
		{"unicode", "日程表 📅 встреча"},
		{"very long input", strings.Repeat("refresh-token-material-", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := v.Encrypt(tt.plaintext)
			require.NoError(t, err)

			plaintext, err := v.Decrypt(ciphertext)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestVault_EncryptIsNonDeterministic(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("same input")
	require.NoError(t, err)
	second, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "fresh nonce must make ciphertexts differ")
}

func TestVault_DecryptRejectsMalformedInput(t *testing.T) {
	v := newTestVault(t)

	valid, err := v.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"too short", "YWJj"},
		{"empty", ""},
		{"corrupted nonce", "AAAA" + valid[4:]},
		{"truncated", valid[:len(valid)-8]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Decrypt(tt.ciphertext)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrDecryption)
		})
	}
}

func TestVault_DecryptRejectsWrongKey(t *testing.T) {
	v := newTestVault(t)
	other, err := New("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	ciphertext, err := v.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	assert.ErrorIs(t, err, apperrors.ErrDecryption)
}

func TestHash_Deterministic(t *testing.T) {
	assert.Equal(t, Hash("https://example.com/feed.ics"), Hash("https://example.com/feed.ics"))
	assert.NotEqual(t, Hash("a"), Hash("b"))
	assert.Len(t, Hash("anything"), 64)
}

func TestNew_RejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "short", strings.Repeat("x", 31), strings.Repeat("x", 33)} {
		_, err := New(key)
		assert.Error(t, err, "key %q should be rejected", key)
	}
}
