package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/carboncred/carboncred/internal/auth"
	"github.com/carboncred/carboncred/internal/config"
	"github.com/carboncred/carboncred/internal/operator"
)

// JWTAuth returns a middleware that validates access tokens and checks the
// token version. On success it exposes the operator id and its company to
// downstream handlers.
func JWTAuth(cfg config.Config, repo operator.Repository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		tokenStr := strings.TrimSpace(authz[len("Bearer "):])
		claims, err := auth.ParseAndVerifyHS256(tokenStr, []byte(cfg.JWTSecret))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		sub, _ := claims["sub"].(string)
		verFloat, _ := claims["ver"].(float64)
		ver := int(verFloat)

		op, err := repo.FindByID(c.UserContext(), sub)
		if err != nil || op.TokenVersion != ver {
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		}

		c.Locals("operator_id", sub)
		c.Locals("company", op.Company)
		return c.Next()
	}
}
