package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/corridor/pkg/auth"
)

// EnsureValidToken checks the bearer token on the request against verifier
func EnsureValidToken(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		authHeader := c.Get(fiber.HeaderAuthorization)

		if authHeader == "" {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Authorization header is required",
			})
		}

		if verifier == nil {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Authentication is not configured",
			})
		}

		claims, err := verifier.Verify(c.Context(), auth.BearerToken(authHeader))
		if err != nil {
			c.SendStatus(fiber.StatusUnauthorized)
			return c.JSON(fiber.Map{
				"error": "Invalid auth token",
			})
		}

		c.Locals("account_userid", claims.Subject)
		c.Locals("account_role", claims.Role)

		return c.Next()
	}
}
