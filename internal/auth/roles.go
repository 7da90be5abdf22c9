package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-guard/internal/domain"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// RequireAuthenticated ensures a user was loaded by AuthMiddleware.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireCapability rejects callers whose role lacks any of the capabilities.
func RequireCapability(capabilities ...domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, capability := range capabilities {
			if domain.HasCapability(user, capability) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient permissions")
	}
}
