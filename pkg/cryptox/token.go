package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// Token sizes in raw bytes, before base64url encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
	TokenSize512 = 64
)

// MinInvitationTokenSize is the floor for any token that acts as the sole
// credential for an invitation.
const MinInvitationTokenSize = TokenSize256

// GenerateToken returns size random bytes encoded as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateInvitationToken returns a fresh invitation token with at least
// MinInvitationTokenSize bytes of entropy. The token carries nothing derived
// from the user, it is pure randomness.
func GenerateInvitationToken(size int) (string, error) {
	if size < MinInvitationTokenSize {
		size = MinInvitationTokenSize
	}
	return GenerateToken(size)
}

// FingerprintToken returns the base64url SHA-256 of token. Only fingerprints
// are written to the database so a leaked table does not leak live links.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SecretEqual compares two secrets in constant time. Both sides are hashed
// first so the comparison also hides the length of the expected value.
func SecretEqual(given, expected string) bool {
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
