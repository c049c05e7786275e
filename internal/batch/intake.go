package batch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// ItemRequest is one issuance request inside a batch.
type ItemRequest struct {
	ExternalUserID string
	Tier           string
	Metadata       map[string]string
	ExpiresAt      *time.Time
}

// Enqueuer appends one entry to the durable batch queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, values map[string]interface{}) (string, error)
}

// Intake splits a bulk issuance request into independent queue messages. It
// performs no allocation itself; each message later runs the single-issuance
// path in isolation.
type Intake struct {
	queue    Enqueuer
	results  ResultRecorder
	maxItems int
}

// NewIntake constructs the intake.
func NewIntake(queue Enqueuer, results ResultRecorder, maxItems int) *Intake {
	if maxItems <= 0 {
		maxItems = 100
	}
	return &Intake{queue: queue, results: results, maxItems: maxItems}
}

// Accept validates the batch, enqueues one message per item and returns the
// batch correlation id. Per-item outcomes are reported asynchronously.
func (i *Intake) Accept(ctx context.Context, issuerID string, items []ItemRequest) (string, error) {
	if len(items) == 0 {
		return "", apperrors.NewValidationError("batch must contain at least one item", nil)
	}
	if len(items) > i.maxItems {
		return "", apperrors.NewValidationError("batch exceeds maximum size", map[string]any{
			"max_items": i.maxItems,
			"got":       len(items),
		})
	}
	for idx, item := range items {
		if item.ExternalUserID == "" {
			return "", apperrors.NewValidationError("external_user_id required", map[string]any{"item": idx})
		}
	}

	batchID := uuid.NewString()
	if err := i.results.RecordTotal(ctx, batchID, issuerID, len(items)); err != nil {
		return "", err
	}

	for idx, item := range items {
		values := map[string]interface{}{
			"batch_id":         batchID,
			"item_id":          strconv.Itoa(idx),
			"issuer_id":        issuerID,
			"external_user_id": item.ExternalUserID,
			"tier":             item.Tier,
		}
		if len(item.Metadata) > 0 {
			metadata, err := json.Marshal(item.Metadata)
			if err != nil {
				return "", apperrors.NewValidationError("metadata not serializable", map[string]any{"item": idx})
			}
			values["metadata"] = string(metadata)
		}
		if item.ExpiresAt != nil {
			values["expires_at"] = item.ExpiresAt.Format(time.RFC3339)
		}
		if _, err := i.queue.Enqueue(ctx, values); err != nil {
			return "", apperrors.NewStorageUnavailable(err)
		}
	}
	return batchID, nil
}
