// Package handlers exposes the HTTP surface: the authenticated RPC
// endpoints and the gateway webhooks. Handlers parse and validate the
// transport, then hand off to the services; no business rule lives
// here.
package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
)

// ErrorHandler is the fiber error handler: every error a handler or
// middleware returns is coerced to an AppError, logged once with its
// structured fields, and rendered as the error envelope. Raw internals
// never reach the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		err = errors.New("SYSTEM_HTTP_ERROR", fe.Message, fe.Code)
	}
	appErr := errors.From(err)

	fields := []zap.Field{
		zap.String("code", appErr.Code),
		zap.String("message", appErr.Message),
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	}
	if appErr.Err != nil {
		fields = append(fields, zap.Error(appErr.Err))
	}
	if len(appErr.Details) > 0 {
		fields = append(fields, zap.Any("details", appErr.Details))
	}
	if appErr.Status >= 500 {
		logger.Error("request failed", fields...)
	} else {
		logger.Warn("request rejected", fields...)
	}

	return utils.AppError(c, appErr)
}

// parseBody decodes a JSON request body, translating decode failures
// into the validation error of the taxonomy.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errors.ErrValidation.WithMessage("request body is not valid JSON").WithErr(err)
	}
	return nil
}

// currentUserID reads the authenticated user from the request context.
// Routes behind the auth middleware always have it.
func currentUserID(c *fiber.Ctx) (uint, error) {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return 0, errors.ErrUnauthorized
	}
	return claims.UserID, nil
}

// requestContext returns the request context with the caller's address
// and user agent attached, so audit rows written anywhere down the call
// chain carry the hashed client IP.
func requestContext(c *fiber.Ctx) context.Context {
	return audit.WithClient(c.Context(), audit.ClientInfo{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	})
}

// idempotencyKey reads the client-supplied key guarding a financial
// operation. Presence and length are enforced by the idempotency
// service; this only pulls the header.
func idempotencyKey(c *fiber.Ctx) string {
	return c.Get("X-Idempotency-Key")
}
