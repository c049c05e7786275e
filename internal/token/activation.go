package token

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"time"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// tokenBytes is the raw entropy per activation token (192 bits).
const tokenBytes = 24

// ActivationService issues and validates short-lived single-use activation
// secrets.
type ActivationService struct {
	defaultTTL time.Duration
}

// NewActivationService builds the service with the issuer-configurable
// default TTL.
func NewActivationService(defaultTTL time.Duration) *ActivationService {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &ActivationService{defaultTTL: defaultTTL}
}

// Generate mints a new token and its expiry instant.
func (s *ActivationService) Generate(ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), time.Now().Add(ttl), nil
}

// Validate checks a presented token against the stored value and expiry.
// The comparison is constant-time; mismatch and staleness are reported as
// distinct error kinds so callers can differentiate them.
func (s *ActivationService) Validate(presented, stored string, expiry, now time.Time) error {
	if subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) != 1 {
		return apperrors.NewActivationTokenInvalid()
	}
	if !now.Before(expiry) {
		return apperrors.NewActivationTokenExpired()
	}
	return nil
}
