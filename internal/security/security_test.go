package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateAccessKeyIsPrefixedAndUnique(t *testing.T) {
	first, errFirst := GenerateAccessKey()
	if errFirst != nil {
		t.Fatalf("generate: %v", errFirst)
	}
	second, errSecond := GenerateAccessKey()
	if errSecond != nil {
		t.Fatalf("generate: %v", errSecond)
	}
	if !strings.HasPrefix(first, accessKeyPrefix) {
		t.Fatalf("expected prefix %q, got %q", accessKeyPrefix, first)
	}
	if len(first) != len(accessKeyPrefix)+24 {
		t.Fatalf("unexpected key length %d", len(first))
	}
	if first == second {
		t.Fatalf("expected distinct keys, got %q twice", first)
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	token, errSign := GenerateSessionToken("secret", "sess-1", 7, "user1", "user", time.Hour)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	claims, errParse := ParseSessionToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.ID != "sess-1" || claims.UserID != 7 || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestParseSessionTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, _ := GenerateSessionToken("secret", "sess-1", 7, "user1", "user", time.Hour)
	if _, errParse := ParseSessionToken("other", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}

	expired, _ := GenerateSessionToken("secret", "sess-1", 7, "user1", "user", -time.Minute)
	if _, errParse := ParseSessionToken("secret", expired); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}
