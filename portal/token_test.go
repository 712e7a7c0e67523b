package portal

import (
	"testing"
	"time"
)

func TestIssueAndValidateAccessToken(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "test-secret")

	token, expiresAt, err := IssueAccessToken("CD", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 50*time.Minute {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	clientCode, err := ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if clientCode != "CD" {
		t.Fatalf("client code = %q", clientCode)
	}
}

func TestValidateAccessToken_RejectsExpired(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "test-secret")

	token, _, err := IssueAccessToken("CD", -time.Minute)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := ValidateAccessToken(token); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestValidateAccessToken_RejectsWrongSecret(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "secret-a")
	token, _, err := IssueAccessToken("CD", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	t.Setenv("PORTAL_JWT_SECRET", "secret-b")
	if _, err := ValidateAccessToken(token); err == nil {
		t.Fatal("token validated under the wrong secret")
	}
}

func TestIssueAccessToken_RequiresSecret(t *testing.T) {
	t.Setenv("PORTAL_JWT_SECRET", "")
	if _, _, err := IssueAccessToken("CD", time.Hour); err == nil {
		t.Fatal("expected error without PORTAL_JWT_SECRET")
	}
}
