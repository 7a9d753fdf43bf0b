package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/settlement"
)

// RegisterSettlementRoutes wires the audit settlement endpoint.
func RegisterSettlementRoutes(r fiber.Router, h *settlement.Handler) {
	r.Post("/companies/:name/settle", h.Settle)
}
