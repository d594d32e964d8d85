// Package middleware carries the request-level gates: JWT
// authentication with token-version revocation and role checks.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
)

// Auth validates bearer tokens and loads the claims into the request
// context. A token minted before the user's current token version is
// treated as revoked.
type Auth struct {
	users repositories.UserRepository
}

func NewAuth(users repositories.UserRepository) *Auth {
	if users == nil {
		panic("user repository is required")
	}
	return &Auth{users: users}
}

func (m *Auth) Handler(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return errors.ErrUnauthorized
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return errors.ErrUnauthorized.WithMessage("authorization header must be a bearer token")
	}

	_, claims, err := utils.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return errors.ErrInvalidToken
	}

	user, err := m.users.GetByID(claims.UserID)
	if err != nil {
		logger.Warn("token for unknown user",
			zap.Uint("user_id", claims.UserID),
			zap.Error(err))
		return errors.ErrInvalidToken
	}
	if claims.TokenVersion != user.TokenVersion {
		return errors.ErrInvalidToken.WithMessage("session has been revoked")
	}

	c.Locals("claims", claims)
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// RequireAdmin allows only admin sessions through. It assumes Auth ran
// first.
func RequireAdmin(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return errors.ErrUnauthorized
	}
	if claims.Role != "admin" {
		return errors.ErrPermissionDenied
	}
	return c.Next()
}

// RequirePermission allows sessions carrying the permission through.
// Admins pass unconditionally.
func RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*models.UserClaims)
		if !ok || claims == nil {
			return errors.ErrUnauthorized
		}
		if claims.Role == "admin" || claims.HasPermission(permission) {
			return c.Next()
		}
		return errors.ErrPermissionDenied
	}
}
