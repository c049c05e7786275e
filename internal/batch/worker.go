package batch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/queue"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// IssuanceService is the slice of the identity service the worker needs.
type IssuanceService interface {
	IssueOrExisting(ctx context.Context, input service.IssueInput) (*domain.Identity, bool, error)
}

// Item is one parsed queue message.
type Item struct {
	BatchID        string
	ItemID         string
	IssuerID       string
	ExternalUserID string
	Tier           string
	Metadata       map[string]string
	ExpiresAt      *time.Time
}

// Worker consumes batch queue messages with bounded parallelism. Each message
// runs the single-issuance path independently; one item's failure never
// touches its siblings. Delivery is at-least-once, so processing must be
// repeat-safe: duplicates resolve to the already-created identity.
type Worker struct {
	stream      *queue.Stream
	issuer      IssuanceService
	results     ResultRecorder
	metrics     *observability.Metrics
	logger      *zap.Logger
	concurrency int
}

// NewWorker constructs the worker.
func NewWorker(stream *queue.Stream, issuer IssuanceService, results ResultRecorder, metrics *observability.Metrics, logger *zap.Logger, concurrency int) *Worker {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Worker{
		stream:      stream,
		issuer:      issuer,
		results:     results,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run consumes until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) consumeLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		messages, err := w.stream.Read(ctx, 10, 5*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("batch queue read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queue.Message) {
	item, err := parseItem(msg.Values)
	if err != nil {
		// Malformed entries cannot succeed on redelivery either; record and
		// acknowledge so they do not wedge the group.
		w.logger.Error("malformed batch message", zap.String("message_id", msg.ID), zap.Error(err))
		w.ack(ctx, msg.ID)
		return
	}

	outcome, retryable := w.processItem(ctx, item)
	if retryable {
		// Leave the entry pending; redelivery retries it.
		w.logger.Warn("batch item deferred for redelivery",
			zap.String("batch_id", item.BatchID),
			zap.String("item_id", item.ItemID))
		return
	}

	if err := w.results.RecordItem(ctx, item.BatchID, item.ItemID, outcome); err != nil {
		w.logger.Warn("record batch item outcome failed",
			zap.String("batch_id", item.BatchID),
			zap.String("item_id", item.ItemID),
			zap.Error(err))
		return
	}
	w.metrics.RecordBatchItem(outcome.Status)
	w.ack(ctx, msg.ID)
}

// processItem runs one item through the issuance path and classifies the
// result. The second return reports whether the item should be redelivered.
func (w *Worker) processItem(ctx context.Context, item Item) (ItemOutcome, bool) {
	identity, created, err := w.issuer.IssueOrExisting(ctx, service.IssueInput{
		IssuerID:       item.IssuerID,
		ExternalUserID: item.ExternalUserID,
		Tier:           item.Tier,
		Metadata:       item.Metadata,
		ExpiresAt:      item.ExpiresAt,
	})
	if err != nil {
		if apperrors.IsRetryable(err) {
			return ItemOutcome{}, true
		}
		domainErr := apperrors.ToDomainError(err)
		w.logger.Info("batch item failed",
			zap.String("batch_id", item.BatchID),
			zap.String("item_id", item.ItemID),
			zap.String("code", domainErr.Code))
		return ItemOutcome{Status: OutcomeFailed, Code: domainErr.Code}, false
	}

	outcome := ItemOutcome{
		Status:     OutcomeCreated,
		IdentityID: identity.ID,
		Number:     identity.Number,
	}
	if !created {
		// Duplicate resolves to the existing record; the code still names the
		// condition so batch reports can distinguish it from a fresh create.
		outcome.Status = OutcomeAlreadyExists
		outcome.Code = apperrors.CodeDuplicateIdentity
	}
	return outcome, false
}

func (w *Worker) ack(ctx context.Context, messageID string) {
	if err := w.stream.Ack(ctx, messageID); err != nil {
		w.logger.Warn("ack failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

func parseItem(values map[string]interface{}) (Item, error) {
	item := Item{
		BatchID:        stringValue(values, "batch_id"),
		ItemID:         stringValue(values, "item_id"),
		IssuerID:       stringValue(values, "issuer_id"),
		ExternalUserID: stringValue(values, "external_user_id"),
		Tier:           stringValue(values, "tier"),
	}
	if item.BatchID == "" || item.ItemID == "" || item.IssuerID == "" || item.ExternalUserID == "" {
		return Item{}, apperrors.NewValidationError("batch message missing required fields", nil)
	}
	if raw := stringValue(values, "metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &item.Metadata); err != nil {
			return Item{}, apperrors.NewValidationError("batch message metadata malformed", nil)
		}
	}
	if raw := stringValue(values, "expires_at"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Item{}, apperrors.NewValidationError("batch message expires_at malformed", nil)
		}
		item.ExpiresAt = &ts
	}
	return item, nil
}

func stringValue(values map[string]interface{}, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
