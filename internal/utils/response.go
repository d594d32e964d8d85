package utils

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/errors"
)

// Respond sends a JSON response with the specified status code.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(data)
}

// Success sends a successful JSON response.
func Success(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusOK, data)
}

// Created sends a 201 JSON response.
func Created(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusCreated, data)
}

// Accepted sends a 202 JSON response for operations still in flight.
func Accepted(c *fiber.Ctx, data interface{}) error {
	return Respond(c, fiber.StatusAccepted, data)
}

// AppError renders the error envelope for an application error. All
// error responses go through here so clients see one shape.
func AppError(c *fiber.Ctx, err *errors.AppError) error {
	body := fiber.Map{
		"code":    err.Code,
		"message": err.Message,
	}
	if len(err.Details) > 0 {
		body["details"] = err.Details
	}
	return Respond(c, err.Status, fiber.Map{"error": body})
}
