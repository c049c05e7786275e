package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/platform/ratelimiter"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// IdentitiesHandler manages issuance and lifecycle endpoints.
type IdentitiesHandler struct {
	service *service.IdentityService
	limiter *ratelimiter.MapLimiter
}

// NewIdentitiesHandler constructs handler.
func NewIdentitiesHandler(identityService *service.IdentityService, limiter *ratelimiter.MapLimiter) *IdentitiesHandler {
	return &IdentitiesHandler{service: identityService, limiter: limiter}
}

// Issue POST /v1/identities.
func (h *IdentitiesHandler) Issue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.IssueIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IssuerID == "" || req.ExternalUserID == "" {
		return apperrors.NewValidationError("issuer_id and external_user_id required", nil)
	}
	if !principal.CanAccessIssuer(req.IssuerID) {
		return apperrors.NewAuthorizationDenied("issuer not accessible to client")
	}
	if !h.limiter.Allow(req.IssuerID, time.Now()) {
		return apperrors.NewRateLimited(req.IssuerID)
	}

	identity, err := h.service.Issue(c.Context(), service.IssueInput{
		IssuerID:       req.IssuerID,
		ExternalUserID: req.ExternalUserID,
		Tier:           req.Tier,
		Metadata:       req.Metadata,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": identityResponse(identity, true)})
}

// Get GET /v1/identities/:id.
func (h *IdentitiesHandler) Get(c *fiber.Ctx) error {
	identity, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity, false)})
}

// Activate POST /v1/identities/:id/activate.
func (h *IdentitiesHandler) Activate(c *fiber.Ctx) error {
	if _, err := h.loadAccessible(c); err != nil {
		return err
	}
	var req dto.ActivateIdentityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActivationToken == "" {
		return apperrors.NewValidationError("activation_token required", nil)
	}

	var key *service.KeyInput
	if req.Key != nil {
		key = &service.KeyInput{
			PublicKey: req.Key.PublicKey,
			Algorithm: req.Key.Algorithm,
			ExpiresAt: req.Key.ExpiresAt,
		}
	}
	identity, err := h.service.Activate(c.Context(), c.Params("id"), req.ActivationToken, key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity, false)})
}

// LockUser POST /v1/identities/:id/lock/user.
func (h *IdentitiesHandler) LockUser(c *fiber.Ctx) error {
	return h.lock(c, domain.LockReasonUser)
}

// LockMobileOperator POST /v1/identities/:id/lock/mo.
func (h *IdentitiesHandler) LockMobileOperator(c *fiber.Ctx) error {
	return h.lock(c, domain.LockReasonMo)
}

// LockAdmin POST /v1/identities/:id/lock/admin.
func (h *IdentitiesHandler) LockAdmin(c *fiber.Ctx) error {
	return h.lock(c, domain.LockReasonAdmin)
}

func (h *IdentitiesHandler) lock(c *fiber.Ctx, reason domain.LockReason) error {
	if _, err := h.loadAccessible(c); err != nil {
		return err
	}
	identity, err := h.service.Lock(c.Context(), c.Params("id"), reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity, false)})
}

// Unlock POST /v1/identities/:id/unlock. Admin only; enforced at the route.
func (h *IdentitiesHandler) Unlock(c *fiber.Ctx) error {
	if _, err := h.loadAccessible(c); err != nil {
		return err
	}
	identity, err := h.service.Unlock(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": identityResponse(identity, false)})
}

// RotateKey POST /v1/identities/:id/keys.
func (h *IdentitiesHandler) RotateKey(c *fiber.Ctx) error {
	if _, err := h.loadAccessible(c); err != nil {
		return err
	}
	var req dto.KeyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	record, err := h.service.RotateKey(c.Context(), c.Params("id"), service.KeyInput{
		PublicKey: req.PublicKey,
		Algorithm: req.Algorithm,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": keyResponse(record, true)})
}

// ListKeys GET /v1/identities/:id/keys.
func (h *IdentitiesHandler) ListKeys(c *fiber.Ctx) error {
	identity, err := h.loadAccessible(c)
	if err != nil {
		return err
	}
	records, err := h.service.Keys().History(c.Context(), identity.ID)
	if err != nil {
		return err
	}
	items := make([]dto.KeyResponse, 0, len(records))
	for i := range records {
		active := identity.ActiveKeyID != nil && *identity.ActiveKeyID == records[i].ID
		items = append(items, keyResponse(&records[i], active))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Destroy DELETE /v1/identities/:id.
func (h *IdentitiesHandler) Destroy(c *fiber.Ctx) error {
	if _, err := h.loadAccessible(c); err != nil {
		return err
	}
	if err := h.service.Destroy(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// loadAccessible fetches the identity and enforces issuer scoping for the
// caller.
func (h *IdentitiesHandler) loadAccessible(c *fiber.Ctx) (*domain.Identity, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	identity, err := h.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !principal.CanAccessIssuer(identity.IssuerID) {
		return nil, apperrors.NewAuthorizationDenied("issuer not accessible to client")
	}
	return identity, nil
}

func identityResponse(identity *domain.Identity, includeToken bool) dto.IdentityResponse {
	resp := dto.IdentityResponse{
		ID:                identity.ID,
		IssuerID:          identity.IssuerID,
		ExternalUserID:    identity.ExternalUserID,
		Number:            identity.Number,
		Status:            identity.Status,
		Tier:              identity.Tier,
		ProviderAccountID: identity.ProviderAccountID,
		ActiveKeyID:       identity.ActiveKeyID,
		Metadata:          identity.Metadata,
		CreatedAt:         identity.CreatedAt,
		UpdatedAt:         identity.UpdatedAt,
		ExpiresAt:         identity.ExpiresAt,
	}
	if includeToken {
		resp.ActivationToken = identity.ActivationToken
		resp.ActivationExpiry = identity.ActivationExpiry
	}
	return resp
}

func keyResponse(record *domain.PublicKeyRecord, active bool) dto.KeyResponse {
	return dto.KeyResponse{
		ID:        record.ID,
		PublicKey: record.PublicKey,
		Algorithm: record.Algorithm,
		Active:    active,
		CreatedAt: record.CreatedAt,
		ExpiresAt: record.ExpiresAt,
	}
}
