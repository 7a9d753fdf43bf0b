package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAuditLogsOperatorContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID())
	app.Use(Audit(logger))
	app.Get("/companies", func(c *fiber.Ctx) error {
		// Downstream auth resolves the acting operator.
		c.Locals("operator_id", "op-1")
		c.Locals("company", "Acme")
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/companies", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	out := buf.String()
	for _, want := range []string{`"operator_id":"op-1"`, `"company":"Acme"`, `"request_id"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Fatalf("audit log missing %s: %s", want, out)
		}
	}
}

func TestAuditOmitsOperatorFieldsWhenAnonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(Audit(logger))
	app.Get("/listings", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/listings", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "operator_id") || strings.Contains(out, `"company"`) {
		t.Fatalf("anonymous request must not carry operator fields: %s", out)
	}
}
