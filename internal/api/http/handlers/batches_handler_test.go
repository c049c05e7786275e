package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/batch"
	"github.com/spec-kit/identity-service/internal/domain"
)

// stubResults serves a single canned batch status regardless of id.
type stubResults struct {
	status *batch.BatchStatus
}

func (s *stubResults) RecordTotal(context.Context, string, string, int) error {
	return nil
}

func (s *stubResults) RecordItem(context.Context, string, string, batch.ItemOutcome) error {
	return nil
}

func (s *stubResults) Status(context.Context, string) (*batch.BatchStatus, error) {
	return s.status, nil
}

func newBatchStatusApp(t *testing.T, tokens *auth.TokenManager, owner string) *fiber.App {
	t.Helper()
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	handler := handlers.NewBatchesHandler(nil, &stubResults{status: &batch.BatchStatus{
		BatchID:  "batch-1",
		IssuerID: owner,
		Total:    2,
	}}, nil)
	app.Get("/v1/batches/:id", auth.NewAuthMiddleware(tokens).Handle, handler.Status)
	return app
}

func bearerFor(t *testing.T, tokens *auth.TokenManager, role domain.ClientRole, issuerID *string) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(&domain.APIClient{
		ID:       "client-1",
		Role:     role,
		IssuerID: issuerID,
	})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	return "Bearer " + token
}

func TestBatchStatusScopedToSubmittingIssuer(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 5)
	app := newBatchStatusApp(t, tokens, "issuer-b")

	issuerA := "issuer-a"
	cases := []struct {
		name   string
		role   domain.ClientRole
		issuer *string
		want   int
	}{
		{"foreign issuer denied", domain.ClientRoleIssuer, &issuerA, fiber.StatusForbidden},
		{"admin reads any batch", domain.ClientRoleAdmin, nil, fiber.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/v1/batches/batch-1", nil)
		req.Header.Set("Authorization", bearerFor(t, tokens, tc.role, tc.issuer))
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: request failed: %v", tc.name, err)
		}
		if resp.StatusCode != tc.want {
			t.Errorf("%s: status %d, want %d", tc.name, resp.StatusCode, tc.want)
		}
	}
}

func TestBatchStatusAllowsOwningIssuer(t *testing.T) {
	tokens := auth.NewTokenManager("test-secret", 5)
	app := newBatchStatusApp(t, tokens, "issuer-b")

	issuerB := "issuer-b"
	req := httptest.NewRequest(fiber.MethodGet, "/v1/batches/batch-1", nil)
	req.Header.Set("Authorization", bearerFor(t, tokens, domain.ClientRoleIssuer, &issuerB))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("owning issuer must read its batch, got %d", resp.StatusCode)
	}
}
