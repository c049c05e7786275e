package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/observability"
	apperrors "github.com/spec-kit/identity-service/pkg/util"
)

func TestErrorEnvelopeCarriesCodeAndStatus(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, time.Second)
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewInvalidStateTransition("ACTIVE", "ACTIVE")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/conflict", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != apperrors.CodeInvalidStateTransition {
		t.Fatalf("envelope code %q, want %q", envelope.Error.Code, apperrors.CodeInvalidStateTransition)
	}
}

func TestRequestMetricsRecordFinalErrorStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, time.Second)
	app.Get("/conflict", func(c *fiber.Ctx) error {
		return apperrors.NewInvalidStateTransition("ACTIVE", "ACTIVE")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/conflict", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("status %d, want %d", resp.StatusCode, fiber.StatusConflict)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	var recorded []string
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					recorded = append(recorded, label.GetValue())
				}
			}
		}
	}
	if len(recorded) != 1 || recorded[0] != "409" {
		t.Fatalf("request counter must record the status written to the wire, got %v", recorded)
	}
}
