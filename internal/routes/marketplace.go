package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/marketplace"
)

// RegisterMarketplaceRoutes wires escrowed listing endpoints.
func RegisterMarketplaceRoutes(r fiber.Router, h *marketplace.Handler) {
	r.Post("/listings", h.Create)
	r.Post("/listings/:id/pay", h.MarkPaid)
	r.Post("/listings/:id/release", h.Release)
	r.Post("/listings/:id/cancel", h.Cancel)
}
