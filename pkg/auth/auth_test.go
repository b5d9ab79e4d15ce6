package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := GenerateSessionToken("session-123")
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	sessionID, err := ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("ValidateSessionToken: %v", err)
	}
	if sessionID != "session-123" {
		t.Errorf("session ID = %q, want %q", sessionID, "session-123")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, err := ValidateSessionToken("not.a.token"); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := ValidateSessionToken(""); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken for empty token", err)
	}
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	token, err := GenerateSessionToken("session-123")
	if err != nil {
		t.Fatalf("GenerateSessionToken: %v", err)
	}
	tampered := token[:len(token)-4] + "XXXX"
	if _, err := ValidateSessionToken(tampered); err == nil {
		t.Error("tampered token validated")
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Errorf("hash does not verify: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")); err == nil {
		t.Error("hash verifies the wrong password")
	}
}
