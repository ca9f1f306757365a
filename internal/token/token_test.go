package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, opts ...Option) *Issuer {
	t.Helper()
	iss, err := NewIssuer("test-secret", opts...)
	if err != nil {
		t.Fatal(err)
	}
	return iss
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := NewIssuer("   "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	raw, exp, err := iss.IssueSession("id-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	claims, err := iss.VerifySession(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "id-1" {
		t.Fatalf("subject = %q, want id-1", claims.Subject)
	}
	if claims.Email != "a@example.com" {
		t.Fatalf("email = %q", claims.Email)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti")
	}
}

func TestResetRoundTrip(t *testing.T) {
	iss := newTestIssuer(t)

	raw, exp, err := iss.IssueReset("id-9")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if exp.Before(now.Add(14*time.Minute)) || exp.After(now.Add(16*time.Minute)) {
		t.Fatalf("reset expiry out of window: %v", exp)
	}

	claims, err := iss.VerifyReset(raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "id-9" {
		t.Fatalf("subject = %q", claims.Subject)
	}
}

func TestVerifyRejectsWrongPurpose(t *testing.T) {
	iss := newTestIssuer(t)

	session, _, err := iss.IssueSession("id-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	reset, _, err := iss.IssueReset("id-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := iss.VerifyReset(session); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("session token accepted as reset: %v", err)
	}
	if _, err := iss.VerifySession(reset); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("reset token accepted as session: %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	base := time.Now()
	clock := base
	iss := newTestIssuer(t, WithClock(func() time.Time { return clock }))

	raw, _, err := iss.IssueReset("id-1")
	if err != nil {
		t.Fatal(err)
	}

	clock = base.Add(14 * time.Minute)
	if _, err := iss.VerifyReset(raw); err != nil {
		t.Fatalf("token rejected before expiry: %v", err)
	}

	clock = base.Add(16 * time.Minute)
	if _, err := iss.VerifyReset(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestVerifyRejectsTampered(t *testing.T) {
	iss := newTestIssuer(t)

	raw, _, err := iss.IssueSession("id-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", raw)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := iss.VerifySession(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("tampered token accepted: %v", err)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	iss := newTestIssuer(t)
	other, err := NewIssuer("other-secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, _, err := other.IssueSession("id-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := iss.VerifySession(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign-secret token accepted: %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	iss := newTestIssuer(t)
	for _, raw := range []string{"", "  ", "not-a-token", "a.b", "a.b.c"} {
		if _, err := iss.VerifySession(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("malformed token %q accepted: %v", raw, err)
		}
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	iss := newTestIssuer(t)
	if _, _, err := iss.IssueSession("", "a@example.com"); err == nil {
		t.Fatal("expected error for empty subject")
	}
	if _, _, err := iss.IssueReset("  "); err == nil {
		t.Fatal("expected error for blank subject")
	}
}

func TestSessionTTLOption(t *testing.T) {
	iss := newTestIssuer(t, WithSessionTTL(2*time.Hour))
	_, exp, err := iss.IssueSession("id-1", "a@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if time.Until(exp) < time.Hour+59*time.Minute {
		t.Fatalf("ttl override ignored, expiry %v", exp)
	}
}
