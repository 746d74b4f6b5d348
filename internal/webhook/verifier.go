/**
 * @description
 * This file implements webhook signature verification for both payment providers.
 * Each provider signs the exact raw request body with an HMAC over a shared
 * secret; re-serialized JSON can reorder bytes and invalidate the signature, so
 * verification always runs before any decoding.
 */
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"log"
	"strings"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

var (
	// ErrSignatureMissing is returned when a secret is configured but the request
	// carried no signature header.
	ErrSignatureMissing = errors.New("webhook signature header missing")
	// ErrSignatureMismatch is returned when the supplied signature does not match
	// the HMAC computed over the raw body.
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
)

// SignatureHeader returns the header each provider delivers its signature in.
func SignatureHeader(provider domain.Provider) string {
	switch provider {
	case domain.ProviderPaystack:
		return "x-paystack-signature"
	case domain.ProviderIntaSend:
		return "x-intasend-signature"
	default:
		return ""
	}
}

// Verifier validates that an inbound webhook body genuinely originates from the
// claimed provider. An empty secret puts the verifier in permissive mode.
type Verifier struct {
	provider domain.Provider
	secret   []byte
	hashFn   func() hash.Hash
}

// NewVerifier builds a verifier with the provider's specified hash algorithm:
// Paystack signs with HMAC-SHA512, IntaSend with HMAC-SHA256, both hex encoded.
func NewVerifier(provider domain.Provider, secret string) *Verifier {
	hashFn := sha256.New
	if provider == domain.ProviderPaystack {
		hashFn = sha512.New
	}
	return &Verifier{
		provider: provider,
		secret:   []byte(strings.TrimSpace(secret)),
		hashFn:   hashFn,
	}
}

// Verify checks the signature header against the HMAC of the raw body. It must
// be called with the unparsed body bytes exactly as received on the wire.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) error {
	if len(v.secret) == 0 {
		// Permissive mode. Surfaced loudly because it means anyone can forge
		// payment outcomes for this provider.
		log.Printf("level=warn component=webhook provider=%s msg=\"no webhook secret configured; skipping signature verification\"", v.provider)
		return nil
	}

	header := strings.TrimSpace(signatureHeader)
	if header == "" {
		return ErrSignatureMissing
	}

	mac := hmac.New(v.hashFn, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(header)), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}
