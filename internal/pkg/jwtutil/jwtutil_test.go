package jwtutil

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 42, "ada")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "ada" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", time.Hour, 1, "u")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", -time.Minute, 1, "u")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for malformed token")
	}
}
