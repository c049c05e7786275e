package ratelimiter

import (
	"testing"
	"time"
)

func TestAllowEnforcesPerKeyBurst(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Now()

	if !l.Allow("issuer-a", now) || !l.Allow("issuer-a", now) {
		t.Fatalf("burst capacity must be available immediately")
	}
	if l.Allow("issuer-a", now) {
		t.Fatalf("third request in the same instant must be rejected")
	}
	// A different key has its own bucket.
	if !l.Allow("issuer-b", now) {
		t.Fatalf("keys must not share buckets")
	}
	// Tokens refill over time.
	if !l.Allow("issuer-a", now.Add(2*time.Second)) {
		t.Fatalf("bucket must refill after the rate interval")
	}
}

func TestAllowNilAndEmptyKey(t *testing.T) {
	var l *MapLimiter
	if !l.Allow("issuer-a", time.Now()) {
		t.Fatalf("nil limiter must allow everything")
	}
	if New(0, 1, 0) != nil {
		t.Fatalf("invalid rps must yield nil limiter")
	}
	limited := New(1, 1, 0)
	if !limited.Allow("  ", time.Now()) {
		t.Fatalf("blank keys are not limited")
	}
}
