package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// RequireUser rejects requests without a resolved caller. Roles are carried
// on the user for display only and are not checked here.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
