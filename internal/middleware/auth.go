package middleware

import (
	"context"
	"strings"

	"charityfeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Authenticator resolves a bearer token into a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Session, error)
}

// OperatorPolicy decides whether a session may perform operator writes.
type OperatorPolicy func(session *models.Session) bool

const sessionLocal = "session"

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SessionFrom returns the session established by AuthRequired or OptionalAuth.
func SessionFrom(c *fiber.Ctx) *models.Session {
	s, _ := c.Locals(sessionLocal).(*models.Session)
	return s
}

func attachSession(c *fiber.Ctx, s *models.Session) {
	c.Locals(sessionLocal, s)
	c.Locals("userID", s.User.ID)
	c.SetUserContext(WithUserID(c.UserContext(), s.User.ID))
}

// AuthRequired rejects requests without a valid, unrevoked session.
func AuthRequired(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := BearerToken(c)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization header required"))
		}

		session, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return models.RespondWithError(c, 0, err)
		}

		attachSession(c, session)
		return c.Next()
	}
}

// OptionalAuth attaches a session when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := BearerToken(c)
		if !ok {
			return c.Next()
		}
		if session, err := auth.Authenticate(c.UserContext(), token); err == nil {
			attachSession(c, session)
		}
		return c.Next()
	}
}

// OperatorRequired must run after AuthRequired.
func OperatorRequired(allow OperatorPolicy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session := SessionFrom(c)
		if session == nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication required"))
		}
		if !allow(session) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Operator access required"))
		}
		return c.Next()
	}
}
