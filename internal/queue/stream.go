package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is one delivered stream entry.
type Message struct {
	ID     string
	Values map[string]interface{}
}

// Stream wraps a redis stream consumed through a consumer group. Entries are
// acknowledged only after successful processing, and entries left pending by
// a dead consumer are reclaimed after ClaimIdle, which gives at-least-once
// delivery.
type Stream struct {
	client    *redis.Client
	stream    string
	group     string
	consumer  string
	claimIdle time.Duration
	logger    *zap.Logger
}

// NewStream constructs the stream handle and ensures the consumer group
// exists.
func NewStream(ctx context.Context, client *redis.Client, stream, group, consumer string, claimIdle time.Duration, logger *zap.Logger) (*Stream, error) {
	if claimIdle <= 0 {
		claimIdle = time.Minute
	}
	s := &Stream{
		client:    client,
		stream:    stream,
		group:     group,
		consumer:  consumer,
		claimIdle: claimIdle,
		logger:    logger,
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, err
	}
	return s, nil
}

// Enqueue appends one entry to the stream.
func (s *Stream) Enqueue(ctx context.Context, values map[string]interface{}) (string, error) {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Result()
}

// Read blocks for up to block waiting for new entries, reclaiming stale
// pending entries from dead consumers first.
func (s *Stream) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	if msgs := s.claimStale(ctx, count); len(msgs) > 0 {
		return msgs, nil
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var result []Message
	for _, str := range streams {
		for _, msg := range str.Messages {
			result = append(result, Message{ID: msg.ID, Values: msg.Values})
		}
	}
	return result, nil
}

// Ack acknowledges a processed entry.
func (s *Stream) Ack(ctx context.Context, id string) error {
	return s.client.XAck(ctx, s.stream, s.group, id).Err()
}

func (s *Stream) claimStale(ctx context.Context, count int64) []Message {
	msgs, _, err := s.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   s.stream,
		Group:    s.group,
		Consumer: s.consumer,
		MinIdle:  s.claimIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("claim stale entries failed", zap.Error(err))
		}
		return nil
	}

	var result []Message
	for _, msg := range msgs {
		result = append(result, Message{ID: msg.ID, Values: msg.Values})
	}
	return result
}
