package auth

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"eventhub/internal/model"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !h.Compare(hash, "s3cret-pass") {
		t.Fatalf("expected password to match")
	}
	if h.Compare(hash, "wrong") {
		t.Fatalf("expected mismatch")
	}
	if h.Compare(UnusablePassword, "") {
		t.Fatalf("unusable password must never match")
	}
}

func TestTokenIssuerSignAndParse(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	tok, err := issuer.Sign(model.User{ID: "U001", Role: model.RoleVendor})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "U001" || claims.Role != model.RoleVendor {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewTokenIssuer("other-secret", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.Sign(model.User{ID: "U002", Role: model.RoleUser})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestNewOTP(t *testing.T) {
	code, err := NewOTP()
	if err != nil {
		t.Fatalf("otp: %v", err)
	}
	if len(code) != otpDigits {
		t.Fatalf("expected %d digits, got %q", otpDigits, code)
	}
}
