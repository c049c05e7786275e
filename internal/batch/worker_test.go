package batch

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/service"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

// scriptedIssuer resolves each external user id to a scripted result.
type scriptedIssuer struct {
	calls   []string
	results map[string]scriptedResult
}

type scriptedResult struct {
	identity *domain.Identity
	created  bool
	err      error
}

func (s *scriptedIssuer) IssueOrExisting(_ context.Context, input service.IssueInput) (*domain.Identity, bool, error) {
	s.calls = append(s.calls, input.ExternalUserID)
	res, ok := s.results[input.ExternalUserID]
	if !ok {
		return nil, false, apperrors.NewInternalError(nil)
	}
	return res.identity, res.created, res.err
}

func newTestWorker(issuer IssuanceService) *Worker {
	return NewWorker(nil, issuer, nil, nil, zap.NewNop(), 1)
}

func TestProcessItemOutcomesAreIsolated(t *testing.T) {
	issuer := &scriptedIssuer{results: map[string]scriptedResult{
		"user-1": {identity: &domain.Identity{ID: "id-1", Number: "4400001000000001"}, created: true},
		"user-2": {identity: &domain.Identity{ID: "id-2", Number: "4400001000000027"}, created: false},
		"user-3": {err: apperrors.NewValidationError("unknown issuer", nil)},
	}}
	w := newTestWorker(issuer)

	cases := []struct {
		user string
		want string
	}{
		{"user-1", OutcomeCreated},
		{"user-2", OutcomeAlreadyExists},
		{"user-3", OutcomeFailed},
	}
	for _, tc := range cases {
		outcome, retry := w.processItem(context.Background(), Item{
			BatchID:        "b1",
			ItemID:         tc.user,
			IssuerID:       "issuer-a",
			ExternalUserID: tc.user,
		})
		if retry {
			t.Fatalf("%s: business result must not request redelivery", tc.user)
		}
		if outcome.Status != tc.want {
			t.Errorf("%s: outcome %s, want %s", tc.user, outcome.Status, tc.want)
		}
	}
	if len(issuer.calls) != 3 {
		t.Fatalf("each item must run the issuance path once, got %d calls", len(issuer.calls))
	}
}

func TestProcessItemDuplicateCarriesExistingIdentity(t *testing.T) {
	issuer := &scriptedIssuer{results: map[string]scriptedResult{
		"user-2": {identity: &domain.Identity{ID: "id-2", Number: "4400001000000027"}, created: false},
	}}
	w := newTestWorker(issuer)

	outcome, _ := w.processItem(context.Background(), Item{
		BatchID:        "b1",
		ItemID:         "0",
		IssuerID:       "issuer-a",
		ExternalUserID: "user-2",
	})
	if outcome.Status != OutcomeAlreadyExists {
		t.Fatalf("expected already_exists, got %s", outcome.Status)
	}
	if outcome.Code != apperrors.CodeDuplicateIdentity {
		t.Fatalf("duplicate outcome must name the duplicate condition, got %q", outcome.Code)
	}
	if outcome.IdentityID != "id-2" || outcome.Number != "4400001000000027" {
		t.Fatalf("duplicate outcome must reference the existing identity, got %+v", outcome)
	}
}

func TestProcessItemRetryableDefersRedelivery(t *testing.T) {
	issuer := &scriptedIssuer{results: map[string]scriptedResult{
		"user-1": {err: apperrors.NewStorageUnavailable(nil)},
	}}
	w := newTestWorker(issuer)

	_, retry := w.processItem(context.Background(), Item{
		BatchID:        "b1",
		ItemID:         "0",
		IssuerID:       "issuer-a",
		ExternalUserID: "user-1",
	})
	if !retry {
		t.Fatalf("storage failure must defer the item for redelivery")
	}
}

func TestProcessItemFailureRecordsCode(t *testing.T) {
	issuer := &scriptedIssuer{results: map[string]scriptedResult{
		"user-1": {err: apperrors.NewValidationError("unknown issuer", nil)},
	}}
	w := newTestWorker(issuer)

	outcome, retry := w.processItem(context.Background(), Item{
		BatchID:        "b1",
		ItemID:         "0",
		IssuerID:       "issuer-a",
		ExternalUserID: "user-1",
	})
	if retry {
		t.Fatalf("business failure must not request redelivery")
	}
	if outcome.Code != apperrors.CodeValidationFailed {
		t.Fatalf("expected VALIDATION_FAILED code, got %q", outcome.Code)
	}
}

func TestParseItem(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	item, err := parseItem(map[string]interface{}{
		"batch_id":         "b1",
		"item_id":          "0",
		"issuer_id":        "issuer-a",
		"external_user_id": "user-1",
		"tier":             "premium",
		"metadata":         `{"channel":"retail"}`,
		"expires_at":       expiry.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if item.Tier != "premium" || item.Metadata["channel"] != "retail" {
		t.Fatalf("fields not carried through: %+v", item)
	}
	if item.ExpiresAt == nil || !item.ExpiresAt.Equal(expiry) {
		t.Fatalf("expires_at not parsed: %+v", item.ExpiresAt)
	}

	if _, err := parseItem(map[string]interface{}{"batch_id": "b1"}); err == nil {
		t.Fatalf("missing fields must fail parsing")
	}
	if _, err := parseItem(map[string]interface{}{
		"batch_id":         "b1",
		"item_id":          "0",
		"issuer_id":        "issuer-a",
		"external_user_id": "user-1",
		"metadata":         "{broken",
	}); err == nil {
		t.Fatalf("malformed metadata must fail parsing")
	}
}
