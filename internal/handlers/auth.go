package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/errors"
	"qrwallet/internal/services/auth"
	"qrwallet/internal/utils"
)

// AuthHandler exposes account creation and session management.
type AuthHandler struct {
	service auth.Service
}

func NewAuthHandler(s auth.Service) *AuthHandler {
	return &AuthHandler{service: s}
}

type userView struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	KYCStatus string `json:"kyc_status"`
}

// Register opens an account: user and wallet land in one transaction.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req auth.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, tokens, err := h.service.Register(req)
	if err != nil {
		return err
	}
	return utils.Created(c, fiber.Map{
		"user": userView{
			ID:        user.ID,
			Email:     user.Email,
			Phone:     user.Phone,
			Name:      user.Name,
			KYCStatus: user.KYCStatus,
		},
		"tokens": tokens,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Phone    string `json:"phone"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, tokens, err := h.service.Login(req.Email, req.Phone, req.Password, c.IP())
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{
		"user": userView{
			ID:        user.ID,
			Email:     user.Email,
			Phone:     user.Phone,
			Name:      user.Name,
			KYCStatus: user.KYCStatus,
		},
		"tokens": tokens,
	})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return errors.ErrValidation.WithMessage("refresh_token is required")
	}

	tokens, err := h.service.RefreshTokens(req.RefreshToken)
	if err != nil {
		return err
	}
	return utils.Success(c, tokens)
}

// Logout bumps the token version, revoking every outstanding session.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(userID); err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{"logged_out": true})
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{"changed": true})
}
