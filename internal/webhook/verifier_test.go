package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

func signSHA512(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signSHA256(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_AcceptsValidPaystackSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"sub-42-171"}}`)
	v := NewVerifier(domain.ProviderPaystack, "sk_test_secret")

	if err := v.Verify(body, signSHA512("sk_test_secret", body)); err != nil {
		t.Fatalf("expected valid signature to pass, got %v", err)
	}
}

func TestVerify_AcceptsUppercaseHexHeader(t *testing.T) {
	body := []byte(`{"invoice":"INV1"}`)
	v := NewVerifier(domain.ProviderIntaSend, "isk_secret")

	header := strings.ToUpper(signSHA256("isk_secret", body))
	if err := v.Verify(body, header); err != nil {
		t.Fatalf("expected uppercase hex signature to pass, got %v", err)
	}
}

func TestVerify_RejectsTamperedBody(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	v := NewVerifier(domain.ProviderPaystack, "sk_test_secret")

	header := signSHA512("sk_test_secret", body)
	tampered := []byte(`{"event":"charge.failed"}`)
	if err := v.Verify(tampered, header); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	body := []byte(`{"invoice":"INV1","state":"COMPLETE"}`)
	v := NewVerifier(domain.ProviderIntaSend, "real-secret")

	if err := v.Verify(body, signSHA256("other-secret", body)); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerify_MissingHeaderWhenSecretConfigured(t *testing.T) {
	v := NewVerifier(domain.ProviderPaystack, "sk_test_secret")

	if err := v.Verify([]byte(`{}`), ""); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("expected ErrSignatureMissing, got %v", err)
	}
	if err := v.Verify([]byte(`{}`), "   "); !errors.Is(err, ErrSignatureMissing) {
		t.Fatalf("expected ErrSignatureMissing for blank header, got %v", err)
	}
}

func TestVerify_PermissiveWhenNoSecretConfigured(t *testing.T) {
	v := NewVerifier(domain.ProviderIntaSend, "")

	if err := v.Verify([]byte(`{"invoice":"INV1"}`), ""); err != nil {
		t.Fatalf("expected permissive mode to accept, got %v", err)
	}
}

func TestSignatureHeader(t *testing.T) {
	if got := SignatureHeader(domain.ProviderPaystack); got != "x-paystack-signature" {
		t.Fatalf("unexpected paystack header %q", got)
	}
	if got := SignatureHeader(domain.ProviderIntaSend); got != "x-intasend-signature" {
		t.Fatalf("unexpected intasend header %q", got)
	}
}
