package token

import (
	"testing"
	"time"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

func TestGenerateProducesDistinctTokens(t *testing.T) {
	svc := NewActivationService(24 * time.Hour)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok, expiry, err := svc.Generate(0)
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(tok) < 22 {
			t.Fatalf("token too short for 128 bits of entropy: %q", tok)
		}
		if !expiry.After(time.Now().Add(23 * time.Hour)) {
			t.Fatalf("default TTL not applied, expiry %v", expiry)
		}
		if seen[tok] {
			t.Fatalf("duplicate token generated")
		}
		seen[tok] = true
	}
}

func TestGenerateHonorsExplicitTTL(t *testing.T) {
	svc := NewActivationService(24 * time.Hour)
	_, expiry, err := svc.Generate(time.Minute)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if expiry.After(time.Now().Add(2 * time.Minute)) {
		t.Fatalf("explicit TTL ignored, expiry %v", expiry)
	}
}

func TestValidate(t *testing.T) {
	svc := NewActivationService(24 * time.Hour)
	now := time.Now()
	stored := "stored-token-value"

	if err := svc.Validate(stored, stored, now.Add(time.Hour), now); err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}

	err := svc.Validate("wrong-token-value!", stored, now.Add(time.Hour), now)
	if !apperrors.HasCode(err, apperrors.CodeActivationTokenInvalid) {
		t.Fatalf("expected ACTIVATION_TOKEN_INVALID, got %v", err)
	}

	err = svc.Validate(stored, stored, now.Add(-time.Second), now)
	if !apperrors.HasCode(err, apperrors.CodeActivationTokenExpired) {
		t.Fatalf("expected ACTIVATION_TOKEN_EXPIRED, got %v", err)
	}

	// A wrong value that is also stale must report the mismatch, not the
	// staleness, so a guessing caller learns nothing about stored expiry.
	err = svc.Validate("wrong-token-value!", stored, now.Add(-time.Second), now)
	if !apperrors.HasCode(err, apperrors.CodeActivationTokenInvalid) {
		t.Fatalf("expected ACTIVATION_TOKEN_INVALID for wrong+stale, got %v", err)
	}
}
