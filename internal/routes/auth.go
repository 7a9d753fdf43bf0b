package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/auth"
)

// RegisterAuthRoutes wires operator signup and token endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, loginLimit fiber.Handler) {
	r.Post("/operators", h.Register)
	r.Post("/auth/login", loginLimit, h.Login)
	r.Post("/auth/refresh", h.Refresh)
}
