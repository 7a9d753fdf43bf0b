package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/registry"
)

// RegisterRegistryRoutes wires company onboarding endpoints.
func RegisterRegistryRoutes(r fiber.Router, h *registry.Handler) {
	r.Post("/companies", h.Register)
	r.Post("/companies/:name/allowance", h.RecordAllowance)
}
