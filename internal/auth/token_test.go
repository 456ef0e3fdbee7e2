package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestVerifier(t *testing.T, opts ...VerifierOption) *Verifier {
	t.Helper()
	v, err := NewVerifier([]byte("test-secret"), "test-issuer", opts...)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestSignAndVerify(t *testing.T) {
	v := newTestVerifier(t)
	token, err := v.Sign("user-42", []string{"Marketing", "marketing", "back_office"}, 30*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if len(claims.Roles) != 2 {
		t.Fatalf("expected deduplicated roles, got %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected jti claim")
	}
}

func TestVerifyExpiredBeatsSignature(t *testing.T) {
	// A credential past its expiry reports Expired even when signed with a
	// key this verifier would reject.
	other, err := NewVerifier([]byte("other-secret"), "test-issuer")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	token, err := other.Sign("user-1", []string{"marketing"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	future := time.Now().Add(2 * time.Hour)
	v := newTestVerifier(t, WithClock(func() time.Time { return future }))
	if _, err := v.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestVerifyWrongSignature(t *testing.T) {
	other, err := NewVerifier([]byte("other-secret"), "test-issuer")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	token, err := other.Sign("user-1", []string{"marketing"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v := newTestVerifier(t)
	if _, err := v.Verify(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	v := newTestVerifier(t)
	for _, token := range []string{"", "abc123", "a.b", "a.b.c.d"} {
		if _, err := v.Verify(token); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("token %q: expected ErrMalformedToken, got %v", token, err)
		}
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	foreign, err := NewVerifier([]byte("test-secret"), "someone-else")
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	token, err := foreign.Sign("user-1", []string{"marketing"}, time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	v := newTestVerifier(t)
	if _, err := v.Verify(token); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestFingerprintStable(t *testing.T) {
	if Fingerprint("abc123") != Fingerprint("abc123") {
		t.Fatal("fingerprint not deterministic")
	}
	if Fingerprint("abc123") == Fingerprint("abc124") {
		t.Fatal("fingerprint collision on distinct input")
	}
}
