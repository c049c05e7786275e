package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/identifier"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/provider"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/token"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// IINResolver resolves an issuer id to its IIN.
type IINResolver interface {
	LookupIIN(issuerID string) (string, error)
}

// IdentityService coordinates issuance and lifecycle workflows.
type IdentityService struct {
	identities repository.IdentityRepository
	allocator  *identifier.Allocator
	registry   *KeyRegistry
	tokens     *token.ActivationService
	directory  IINResolver
	provider   provider.IdentityProvider
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// IdentityDependencies bundles collaborators for the identity service.
type IdentityDependencies struct {
	IdentityRepo repository.IdentityRepository
	Allocator    *identifier.Allocator
	KeyRegistry  *KeyRegistry
	Tokens       *token.ActivationService
	Directory    IINResolver
	Provider     provider.IdentityProvider
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// IssueInput describes an issuance request.
type IssueInput struct {
	IssuerID       string
	ExternalUserID string
	Tier           string
	Metadata       map[string]string
	ExpiresAt      *time.Time
	ActivationTTL  time.Duration
}

// NewIdentityService constructs the service.
func NewIdentityService(deps IdentityDependencies) *IdentityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prov := deps.Provider
	if prov == nil {
		prov = provider.Noop{}
	}
	return &IdentityService{
		identities: deps.IdentityRepo,
		allocator:  deps.Allocator,
		registry:   deps.KeyRegistry,
		tokens:     deps.Tokens,
		directory:  deps.Directory,
		provider:   prov,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// Issue creates a new identity in PENDING with a freshly allocated number and
// activation token. A live identity for the same (issuer, external user)
// fails with DUPLICATE_IDENTITY from the store-level guard.
func (s *IdentityService) Issue(ctx context.Context, input IssueInput) (*domain.Identity, error) {
	input.IssuerID = strings.TrimSpace(input.IssuerID)
	input.ExternalUserID = strings.TrimSpace(input.ExternalUserID)
	if input.IssuerID == "" || input.ExternalUserID == "" {
		return nil, apperrors.NewValidationError("issuer_id and external_user_id required", nil)
	}
	if input.Tier == "" {
		input.Tier = "standard"
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(time.Now()) {
		return nil, apperrors.NewValidationError("expires_at must be in the future", nil)
	}

	iin, err := s.directory.LookupIIN(input.IssuerID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	number, seq, err := s.allocator.Allocate(ctx, input.IssuerID, iin)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveAllocate(time.Since(start))

	activationToken, activationExpiry, err := s.tokens.Generate(input.ActivationTTL)
	if err != nil {
		return nil, err
	}

	identity := &domain.Identity{
		ID:               uuid.NewString(),
		IssuerID:         input.IssuerID,
		ExternalUserID:   input.ExternalUserID,
		Number:           number,
		Status:           domain.IdentityStatusPending,
		Tier:             input.Tier,
		ActivationToken:  &activationToken,
		ActivationExpiry: &activationExpiry,
		Metadata:         input.Metadata,
		ExpiresAt:        input.ExpiresAt,
	}
	if identity.Metadata == nil {
		identity.Metadata = map[string]string{}
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		// The allocated sequence is abandoned on failure; sequences are
		// unique, not gap-free across failed requests.
		return nil, err
	}

	s.logger.Info("identity issued",
		zap.String("identity_id", identity.ID),
		zap.String("issuer_id", identity.IssuerID),
		zap.Int64("sequence", seq))
	s.metrics.RecordIssued(identity.IssuerID)

	// Provider account creation runs after the committed insert so a
	// duplicate request never provisions a stray account. A failure here is
	// recovered by reconciliation, not rolled back.
	if accountID, err := s.provider.CreateAccount(ctx, providerUsername(identity)); err != nil {
		s.logger.Warn("provider account creation failed; deferred to reconciliation",
			zap.String("identity_id", identity.ID), zap.Error(err))
	} else if accountID != "" {
		if err := s.identities.SetProviderAccount(ctx, identity.ID, accountID); err != nil {
			s.logger.Warn("persist provider account id failed",
				zap.String("identity_id", identity.ID), zap.Error(err))
		} else {
			identity.ProviderAccountID = &accountID
		}
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIdentityCreated,
		IdentityID: identity.ID,
		IssuerID:   identity.IssuerID,
		Status:     identity.Status,
		Payload: events.IdentityCreatedPayload{
			Number: identity.Number,
			Tier:   identity.Tier,
		},
	})
	return identity, nil
}

// IssueOrExisting runs Issue but treats a duplicate as no-op success,
// returning the already-created identity. Used by the batch worker so
// at-least-once redelivery of an issuance message is idempotent.
func (s *IdentityService) IssueOrExisting(ctx context.Context, input IssueInput) (*domain.Identity, bool, error) {
	identity, err := s.Issue(ctx, input)
	if err == nil {
		return identity, true, nil
	}
	if !apperrors.HasCode(err, apperrors.CodeDuplicateIdentity) {
		return nil, false, err
	}
	existing, lookupErr := s.identities.GetByIssuerUser(ctx, input.IssuerID, input.ExternalUserID)
	if lookupErr != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get fetches one identity.
func (s *IdentityService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("identity")
		}
		return nil, err
	}
	return identity, nil
}

// Activate moves PENDING -> ACTIVE given a matching, unexpired activation
// token. The token fields are cleared on success; a supplied public key is
// registered and becomes the active key.
func (s *IdentityService) Activate(ctx context.Context, id, presentedToken string, key *KeyInput) (*domain.Identity, error) {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status != domain.IdentityStatusPending {
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(domain.IdentityStatusActive))
	}
	if identity.ActivationToken == nil || identity.ActivationExpiry == nil {
		return nil, apperrors.NewActivationTokenInvalid()
	}
	if err := s.tokens.Validate(presentedToken, *identity.ActivationToken, *identity.ActivationExpiry, time.Now()); err != nil {
		return nil, err
	}

	var activeKeyID *string
	if key != nil {
		record, err := s.registry.AddKey(ctx, identity.ID, *key)
		if err != nil {
			return nil, err
		}
		activeKeyID = &record.ID
	}

	ok, err := s.identities.Activate(ctx, identity.ID, activeKeyID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The conditional update lost to a concurrent transition. The staged
		// key record was never referenced, so drop it again.
		if activeKeyID != nil {
			if err := s.registry.Remove(ctx, *activeKeyID); err != nil {
				s.logger.Warn("cleanup of staged key record failed",
					zap.String("key_id", *activeKeyID), zap.Error(err))
			}
		}
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(domain.IdentityStatusActive))
	}

	identity.Status = domain.IdentityStatusActive
	identity.ActivationToken = nil
	identity.ActivationExpiry = nil
	identity.ActiveKeyID = activeKeyID

	s.metrics.RecordTransition(domain.IdentityStatusActive)
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIdentityActivated,
		IdentityID: identity.ID,
		IssuerID:   identity.IssuerID,
		Status:     identity.Status,
		Payload:    events.IdentityActivatedPayload{ActiveKeyID: activeKeyID},
	})
	return identity, nil
}

// Lock moves ACTIVE into the lock state for the reason, then disables the
// provider account and invalidates its sessions. The provider calls are
// repeat-safe; their failure leaves the committed transition standing and is
// repaired by reconciliation.
func (s *IdentityService) Lock(ctx context.Context, id string, reason domain.LockReason) (*domain.Identity, error) {
	target := reason.Status()
	if target == "" {
		return nil, apperrors.NewValidationError("unknown lock reason", nil)
	}
	identity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status != domain.IdentityStatusActive {
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(target))
	}

	ok, err := s.identities.UpdateStatus(ctx, identity.ID, domain.IdentityStatusActive, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(target))
	}
	identity.Status = target

	if identity.ProviderAccountID != nil {
		if err := s.provider.DisableAccount(ctx, *identity.ProviderAccountID); err != nil {
			s.logger.Warn("provider disable failed; deferred to reconciliation",
				zap.String("identity_id", identity.ID), zap.Error(err))
		}
		if err := s.provider.InvalidateSessions(ctx, *identity.ProviderAccountID); err != nil {
			s.logger.Warn("provider session invalidation failed; deferred to reconciliation",
				zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	s.metrics.RecordTransition(target)
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIdentityLocked,
		IdentityID: identity.ID,
		IssuerID:   identity.IssuerID,
		Status:     identity.Status,
		Payload:    events.IdentityLockedPayload{Reason: reason},
	})
	return identity, nil
}

// Unlock moves a locked identity back to ACTIVE and re-enables the provider
// account.
func (s *IdentityService) Unlock(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !identity.Status.IsLocked() {
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(domain.IdentityStatusActive))
	}

	ok, err := s.identities.UpdateStatus(ctx, identity.ID, identity.Status, domain.IdentityStatusActive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewInvalidStateTransition(string(identity.Status), string(domain.IdentityStatusActive))
	}
	identity.Status = domain.IdentityStatusActive

	if identity.ProviderAccountID != nil {
		if err := s.provider.EnableAccount(ctx, *identity.ProviderAccountID); err != nil {
			s.logger.Warn("provider enable failed; deferred to reconciliation",
				zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	s.metrics.RecordTransition(domain.IdentityStatusActive)
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIdentityUnlocked,
		IdentityID: identity.ID,
		IssuerID:   identity.IssuerID,
		Status:     identity.Status,
	})
	return identity, nil
}

// Destroy permanently removes the identity and, via cascade, its key
// history. Irreversible; destroying an already-removed identity reports
// NOT_FOUND and publishes nothing.
func (s *IdentityService) Destroy(ctx context.Context, id string) error {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	ok, err := s.identities.Delete(ctx, identity.ID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound("identity")
	}

	if identity.ProviderAccountID != nil {
		if err := s.provider.DeleteAccount(ctx, *identity.ProviderAccountID); err != nil {
			s.logger.Warn("provider account deletion failed; deferred to reconciliation",
				zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	s.metrics.RecordTransition(domain.IdentityStatusDestroyed)
	s.publishEvent(ctx, events.Event{
		Type:       events.EventIdentityDestroyed,
		IdentityID: identity.ID,
		IssuerID:   identity.IssuerID,
		Status:     domain.IdentityStatusDestroyed,
	})
	return nil
}

// ExpireDue flips every overdue identity to EXPIRED and publishes one event
// per affected identity. Returns the number of identities expired.
func (s *IdentityService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.identities.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}
	for i := range expired {
		s.metrics.RecordTransition(domain.IdentityStatusExpired)
		s.publishEvent(ctx, events.Event{
			Type:       events.EventIdentityExpired,
			IdentityID: expired[i].ID,
			IssuerID:   expired[i].IssuerID,
			Status:     domain.IdentityStatusExpired,
		})
	}
	return len(expired), nil
}

// RotateKey appends a new key record and makes it the active key.
func (s *IdentityService) RotateKey(ctx context.Context, id string, input KeyInput) (*domain.PublicKeyRecord, error) {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Status != domain.IdentityStatusActive {
		return nil, apperrors.NewValidationError("identity must be ACTIVE to rotate keys", map[string]any{
			"status": identity.Status,
		})
	}
	record, err := s.registry.AddKey(ctx, identity.ID, input)
	if err != nil {
		return nil, err
	}
	if err := s.registry.SetActive(ctx, identity.ID, record.ID); err != nil {
		return nil, err
	}
	return record, nil
}

// Keys returns the registry used by this service.
func (s *IdentityService) Keys() *KeyRegistry {
	return s.registry
}

func (s *IdentityService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func providerUsername(identity *domain.Identity) string {
	return identity.IssuerID + "/" + identity.ExternalUserID
}
