package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const userKey = "auth_user"

// UserLookup resolves user ids.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// IdentityMiddleware resolves the calling user. A bearer token wins; without
// one the configured demo user, if any, stands in. Requests with neither
// continue anonymously and are stopped by RequireUser where needed.
type IdentityMiddleware struct {
	tokens     *TokenManager
	users      UserLookup
	demoUserID string
}

// NewIdentityMiddleware constructs middleware.
func NewIdentityMiddleware(tokens *TokenManager, users UserLookup, demoUserID string) *IdentityMiddleware {
	return &IdentityMiddleware{tokens: tokens, users: users, demoUserID: strings.TrimSpace(demoUserID)}
}

// Handle attaches the resolved user to the request.
func (m *IdentityMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	userID := m.demoUserID

	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.NewUnauthorized("invalid authorization header")
		}
		claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			return apperrors.NewUnauthorized("invalid token")
		}
		userID = claims.Subject
	}
	if userID == "" {
		return c.Next()
	}
	if uuid.Validate(userID) != nil {
		return apperrors.NewUnauthorized("user not found")
	}

	user, err := m.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.NewStoreError(err)
	}
	c.Locals(userKey, user)
	return c.Next()
}

// UserFromContext retrieves the resolved caller.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(userKey).(*domain.User)
	return user, ok && user != nil
}
