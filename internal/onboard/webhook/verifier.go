package webhook

import (
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aussiebroadwan/onboard/internal/onboard/domain"
	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the base64 RSA-SHA256 signature of the raw body.
const SignatureHeader = "X-WH-Signature"

var (
	ErrMissingSignature = fmt.Errorf("webhook: missing signature: %w", domain.ErrUnauthorized)
	ErrBadSignature     = fmt.Errorf("webhook: signature mismatch: %w", domain.ErrUnauthorized)

	// ErrNoKeyInProduction means the deployment is misconfigured. Every
	// delivery is refused until a key is configured.
	ErrNoKeyInProduction = fmt.Errorf("webhook: no verification key configured: %w", domain.ErrUnauthorized)
)

// Verifier checks the provider's signature over the exact bytes received.
type Verifier struct {
	key        *rsa.PublicKey
	production bool
}

// NewVerifier parses a PEM encoded RSA public key. An empty pem yields a
// verifier that lets everything through outside production and nothing in it.
func NewVerifier(pem []byte, production bool) (*Verifier, error) {
	v := &Verifier{production: production}
	if len(strings.TrimSpace(string(pem))) == 0 {
		return v, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("webhook: parse public key: %w", err)
	}
	v.key = key
	return v, nil
}

// LoadVerifier reads the key from path. An empty path means no key.
func LoadVerifier(path string, production bool) (*Verifier, error) {
	if path == "" {
		return NewVerifier(nil, production)
	}
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("webhook: read public key: %w", err)
	}
	return NewVerifier(pem, production)
}

// Enabled reports whether signatures are actually checked.
func (v *Verifier) Enabled() bool { return v.key != nil }

// Verify checks signature against body. body must be the untouched request
// bytes; re-encoded JSON will not verify.
func (v *Verifier) Verify(body []byte, signature string) error {
	if v.key == nil {
		if v.production {
			return ErrNoKeyInProduction
		}
		return nil
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	sig, err := decodeSignature(signature)
	if err != nil {
		return ErrBadSignature
	}

	if err := jwt.SigningMethodRS256.Verify(string(body), sig, v.key); err != nil {
		return ErrBadSignature
	}
	return nil
}

// Providers are inconsistent about padding and alphabet.
func decodeSignature(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, errors.New("webhook: signature is not base64")
}
