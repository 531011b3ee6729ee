package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{
		UserID:      "user-1",
		DisplayName: "nameless",
		Override:    []string{OverrideCanRead},
	}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	claims, err := ParseToken(testSecret, token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("userId = %q", claims.UserID)
	}
	if claims.DisplayName != "nameless" {
		t.Errorf("name = %q", claims.DisplayName)
	}
	if !claims.HasOverride(OverrideCanRead) {
		t.Error("expected CAN_READ override")
	}
	if claims.HasOverride("CAN_ADMIN") {
		t.Error("unexpected override")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{UserID: "user-1"}, -time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := ParseToken(testSecret, token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRequiresUserID(t *testing.T) {
	token, err := IssueToken(testSecret, Claims{}, time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := ParseToken(testSecret, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken(testSecret, "not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
