package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("identity-42", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	identity, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if identity != "identity-42" {
		t.Fatalf("unexpected identity: %s", identity)
	}
}

func TestGenerateTokenRequiresIdentityAndTTL(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	if _, err := GenerateToken("  ", time.Minute); err == nil {
		t.Fatal("expected error for blank identity")
	}
	if _, err := GenerateToken("identity-42", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	t.Setenv(secretEnvVariable, "test-secret")
	ResetSecretForTests()

	token, err := GenerateToken("identity-42", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if _, err := ParseAndValidate(token + "x"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := ParseAndValidate(""); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "secret-one")
	ResetSecretForTests()
	token, err := GenerateToken("identity-42", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Setenv(secretEnvVariable, "secret-two")
	ResetSecretForTests()
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	ResetSecretForTests()
}

func TestMissingSecret(t *testing.T) {
	t.Setenv(secretEnvVariable, "")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := GenerateToken("identity-42", time.Minute); err == nil {
		t.Fatal("expected error when secret unset")
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("expected no identity in fresh context")
	}

	ctx = ContextWithIdentity(ctx, "  identity-42  ")
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity != "identity-42" {
		t.Fatalf("unexpected identity: %q ok=%v", identity, ok)
	}
}
