package batch

import (
	"context"
	"testing"

	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

type memEnqueuer struct {
	entries []map[string]interface{}
}

func (m *memEnqueuer) Enqueue(_ context.Context, values map[string]interface{}) (string, error) {
	m.entries = append(m.entries, values)
	return "1-0", nil
}

type memRecorder struct {
	totals  map[string]int
	issuers map[string]string
	items   map[string]map[string]ItemOutcome
}

func newMemRecorder() *memRecorder {
	return &memRecorder{
		totals:  make(map[string]int),
		issuers: make(map[string]string),
		items:   make(map[string]map[string]ItemOutcome),
	}
}

func (m *memRecorder) RecordTotal(_ context.Context, batchID, issuerID string, total int) error {
	m.totals[batchID] = total
	m.issuers[batchID] = issuerID
	return nil
}

func (m *memRecorder) RecordItem(_ context.Context, batchID, itemID string, outcome ItemOutcome) error {
	if m.items[batchID] == nil {
		m.items[batchID] = make(map[string]ItemOutcome)
	}
	m.items[batchID][itemID] = outcome
	return nil
}

func (m *memRecorder) Status(_ context.Context, batchID string) (*BatchStatus, error) {
	total, ok := m.totals[batchID]
	if !ok {
		return nil, apperrors.NewNotFound("batch")
	}
	return &BatchStatus{BatchID: batchID, IssuerID: m.issuers[batchID], Total: total, Items: m.items[batchID]}, nil
}

func TestAcceptEnqueuesOneEntryPerItem(t *testing.T) {
	queue := &memEnqueuer{}
	recorder := newMemRecorder()
	intake := NewIntake(queue, recorder, 10)

	batchID, err := intake.Accept(context.Background(), "issuer-a", []ItemRequest{
		{ExternalUserID: "user-1"},
		{ExternalUserID: "user-2", Tier: "premium"},
		{ExternalUserID: "user-3", Metadata: map[string]string{"channel": "retail"}},
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if batchID == "" {
		t.Fatalf("accept must return a batch id")
	}
	if len(queue.entries) != 3 {
		t.Fatalf("expected 3 queue entries, got %d", len(queue.entries))
	}
	if recorder.totals[batchID] != 3 {
		t.Fatalf("total must be recorded before enqueueing, got %d", recorder.totals[batchID])
	}
	if recorder.issuers[batchID] != "issuer-a" {
		t.Fatalf("submitting issuer must be recorded with the batch, got %q", recorder.issuers[batchID])
	}
	for i, entry := range queue.entries {
		if entry["batch_id"] != batchID {
			t.Errorf("entry %d missing batch id", i)
		}
		if entry["issuer_id"] != "issuer-a" {
			t.Errorf("entry %d missing issuer id", i)
		}
	}
	if queue.entries[1]["tier"] != "premium" {
		t.Fatalf("tier not carried through: %v", queue.entries[1])
	}
	if queue.entries[2]["metadata"] != `{"channel":"retail"}` {
		t.Fatalf("metadata not serialized: %v", queue.entries[2])
	}
}

func TestAcceptValidation(t *testing.T) {
	intake := NewIntake(&memEnqueuer{}, newMemRecorder(), 2)

	_, err := intake.Accept(context.Background(), "issuer-a", nil)
	if !apperrors.HasCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("empty batch must fail validation, got %v", err)
	}

	_, err = intake.Accept(context.Background(), "issuer-a", []ItemRequest{
		{ExternalUserID: "a"}, {ExternalUserID: "b"}, {ExternalUserID: "c"},
	})
	if !apperrors.HasCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("oversized batch must fail validation, got %v", err)
	}

	_, err = intake.Accept(context.Background(), "issuer-a", []ItemRequest{
		{ExternalUserID: "a"}, {ExternalUserID: ""},
	})
	if !apperrors.HasCode(err, apperrors.CodeValidationFailed) {
		t.Fatalf("missing external_user_id must fail validation, got %v", err)
	}
}
