package system

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	_ "go-campaign/docs"
	"go-campaign/internal/config"
	"go-campaign/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

type MockPinger struct {
	err error
}

func (m MockPinger) Ping(context.Context) error { return m.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"database up", nil, fiber.StatusOK},
		{"database down", errors.New("no reachable servers"), fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			NewHealthApi(NewHealthController(MockPinger{err: tt.err}), metrics.New()).Setup(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncWebhookEvent(metrics.OutcomeApplied)

	app := fiber.New()
	NewHealthApi(NewHealthController(MockPinger{}), m).Setup(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(buf.String(), "webhook_events_total") {
		t.Errorf("expected webhook counter in exposition, got %q", buf.String())
	}
}

func TestSwaggerHiddenInProduction(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"development", fiber.StatusOK},
		{"production", fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			app := fiber.New()
			NewSwaggerApi(&config.Config{Environment: tt.env}).Setup(app)

			resp, err := app.Test(httptest.NewRequest("GET", "/swagger/doc.json", nil))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}
