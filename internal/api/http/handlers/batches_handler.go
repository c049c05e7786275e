package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/identity-service/internal/api/dto"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/batch"
	"github.com/spec-kit/identity-service/internal/platform/ratelimiter"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// BatchesHandler manages bulk issuance endpoints.
type BatchesHandler struct {
	intake  *batch.Intake
	results batch.ResultRecorder
	limiter *ratelimiter.MapLimiter
}

// NewBatchesHandler constructs handler.
func NewBatchesHandler(intake *batch.Intake, results batch.ResultRecorder, limiter *ratelimiter.MapLimiter) *BatchesHandler {
	return &BatchesHandler{intake: intake, results: results, limiter: limiter}
}

// Accept POST /v1/identities/batch. Returns 202 with the batch correlation id;
// item outcomes are reported asynchronously through the status endpoint.
func (h *BatchesHandler) Accept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.BatchIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.IssuerID == "" {
		return apperrors.NewValidationError("issuer_id required", nil)
	}
	if !principal.CanAccessIssuer(req.IssuerID) {
		return apperrors.NewAuthorizationDenied("issuer not accessible to client")
	}
	if !h.limiter.Allow(req.IssuerID, time.Now()) {
		return apperrors.NewRateLimited(req.IssuerID)
	}

	items := make([]batch.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, batch.ItemRequest{
			ExternalUserID: item.ExternalUserID,
			Tier:           item.Tier,
			Metadata:       item.Metadata,
			ExpiresAt:      item.ExpiresAt,
		})
	}
	batchID, err := h.intake.Accept(c.Context(), req.IssuerID, items)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.BatchAcceptedResponse{
		BatchID:  batchID,
		Accepted: true,
		Total:    len(items),
	}})
}

// Status GET /v1/batches/:id. Outcomes are scoped to the issuer that
// submitted the batch.
func (h *BatchesHandler) Status(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	status, err := h.results.Status(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if !principal.CanAccessIssuer(status.IssuerID) {
		return apperrors.NewAuthorizationDenied("issuer not accessible to client")
	}

	items := make(map[string]dto.BatchItemOutcome, len(status.Items))
	for id, outcome := range status.Items {
		items[id] = dto.BatchItemOutcome{
			Status:     outcome.Status,
			Code:       outcome.Code,
			IdentityID: outcome.IdentityID,
			Number:     outcome.Number,
		}
	}
	return c.JSON(fiber.Map{"data": dto.BatchStatusResponse{
		BatchID:   status.BatchID,
		IssuerID:  status.IssuerID,
		Total:     status.Total,
		Completed: len(items),
		Items:     items,
	}})
}
