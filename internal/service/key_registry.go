package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// KeyInput describes a public key being registered.
type KeyInput struct {
	PublicKey string
	Algorithm domain.KeyAlgorithm
	ExpiresAt *time.Time
}

// KeyRegistry tracks one active and N historical public keys per identity.
// Key records are immutable; rotation appends a record and repoints the
// identity's active key.
type KeyRegistry struct {
	keys       repository.KeyRepository
	identities repository.IdentityRepository
}

// NewKeyRegistry constructs the registry.
func NewKeyRegistry(keys repository.KeyRepository, identities repository.IdentityRepository) *KeyRegistry {
	return &KeyRegistry{keys: keys, identities: identities}
}

// AddKey registers a new key record for the identity.
func (r *KeyRegistry) AddKey(ctx context.Context, identityID string, input KeyInput) (*domain.PublicKeyRecord, error) {
	if input.PublicKey == "" {
		return nil, apperrors.NewValidationError("public_key required", nil)
	}
	if !domain.SupportedAlgorithm(input.Algorithm) {
		return nil, apperrors.NewUnsupportedAlgorithm(string(input.Algorithm))
	}
	record := &domain.PublicKeyRecord{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		PublicKey:  input.PublicKey,
		Algorithm:  input.Algorithm,
		ExpiresAt:  input.ExpiresAt,
	}
	if err := r.keys.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Remove discards a key record that never became visible, such as one staged
// for a transition that lost its conditional update.
func (r *KeyRegistry) Remove(ctx context.Context, keyID string) error {
	return r.keys.Delete(ctx, keyID)
}

// SetActive repoints the identity's active key. The previous record stays in
// history until the identity itself is destroyed.
func (r *KeyRegistry) SetActive(ctx context.Context, identityID, keyID string) error {
	key, err := r.keys.GetByID(ctx, keyID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("public key")
		}
		return err
	}
	if key.IdentityID != identityID {
		return apperrors.NewValidationError("key does not belong to identity", nil)
	}
	ok, err := r.identities.SetActiveKey(ctx, identityID, keyID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("identity")
	}
	return nil
}

// ActiveKey resolves the identity's current active key record, if any.
func (r *KeyRegistry) ActiveKey(ctx context.Context, identity *domain.Identity) (*domain.PublicKeyRecord, error) {
	if identity.ActiveKeyID == nil {
		return nil, nil
	}
	key, err := r.keys.GetByID(ctx, *identity.ActiveKeyID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("public key")
		}
		return nil, err
	}
	return key, nil
}

// History lists every key record registered for the identity.
func (r *KeyRegistry) History(ctx context.Context, identityID string) ([]domain.PublicKeyRecord, error) {
	return r.keys.ListByIdentity(ctx, identityID)
}
