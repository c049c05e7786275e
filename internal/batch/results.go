package batch

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// Item outcome statuses.
const (
	OutcomeCreated       = "created"
	OutcomeAlreadyExists = "already_exists"
	OutcomeFailed        = "failed"
)

// ItemOutcome is the recorded result of one batch item.
type ItemOutcome struct {
	Status     string `json:"status"`
	Code       string `json:"code,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Number     string `json:"number,omitempty"`
}

// BatchStatus aggregates the recorded outcomes of one batch. The issuer id is
// captured at intake so reads can be scoped to the submitting issuer.
type BatchStatus struct {
	BatchID  string
	IssuerID string
	Total    int
	Items    map[string]ItemOutcome
}

// ResultRecorder persists per-item outcomes under the batch correlation id.
type ResultRecorder interface {
	RecordTotal(ctx context.Context, batchID, issuerID string, total int) error
	RecordItem(ctx context.Context, batchID, itemID string, outcome ItemOutcome) error
	Status(ctx context.Context, batchID string) (*BatchStatus, error)
}

// RedisResults records outcomes in a redis hash per batch.
type RedisResults struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResults constructs the recorder.
func NewRedisResults(client *redis.Client, ttl time.Duration) *RedisResults {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisResults{client: client, ttl: ttl}
}

func batchKey(batchID string) string {
	return "batch:" + batchID
}

// RecordTotal initializes the batch hash.
func (r *RedisResults) RecordTotal(ctx context.Context, batchID, issuerID string, total int) error {
	key := batchKey(batchID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, "issuer_id", issuerID, "total", total)
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

// RecordItem stores one item outcome. Recording is idempotent: a redelivered
// message simply overwrites the same field with the same outcome.
func (r *RedisResults) RecordItem(ctx context.Context, batchID, itemID string, outcome ItemOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, batchKey(batchID), "item:"+itemID, payload).Err(); err != nil {
		return apperrors.NewStorageUnavailable(err)
	}
	return nil
}

// Status returns the outcomes recorded so far.
func (r *RedisResults) Status(ctx context.Context, batchID string) (*BatchStatus, error) {
	fields, err := r.client.HGetAll(ctx, batchKey(batchID)).Result()
	if err != nil {
		return nil, apperrors.NewStorageUnavailable(err)
	}
	if len(fields) == 0 {
		return nil, apperrors.NewNotFound("batch")
	}

	status := &BatchStatus{BatchID: batchID, Items: make(map[string]ItemOutcome)}
	for field, raw := range fields {
		if field == "total" {
			status.Total, _ = strconv.Atoi(raw)
			continue
		}
		if field == "issuer_id" {
			status.IssuerID = raw
			continue
		}
		if len(field) > 5 && field[:5] == "item:" {
			var outcome ItemOutcome
			if err := json.Unmarshal([]byte(raw), &outcome); err != nil {
				continue
			}
			status.Items[field[5:]] = outcome
		}
	}
	return status, nil
}
