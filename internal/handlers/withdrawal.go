package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/config"
	"qrwallet/internal/errors"
	"qrwallet/internal/services/idempotency"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/services/withdrawal"
	"qrwallet/internal/utils"
)

// WithdrawalHandler exposes payouts: bank and mobile-money
// withdrawals, the OTP finalize step, and the bank directory used to
// pick a destination.
type WithdrawalHandler struct {
	service withdrawal.Service
	kyc     kyc.Service
	limits  ratelimit.Service
	guard   idempotency.Service
	cfg     *config.Config
}

func NewWithdrawalHandler(s withdrawal.Service, k kyc.Service, r ratelimit.Service, g idempotency.Service, cfg *config.Config) *WithdrawalHandler {
	return &WithdrawalHandler{service: s, kyc: k, limits: r, guard: g, cfg: cfg}
}

// ready fail-closes before any gateway call when the deployment is
// missing the credentials the chosen method needs.
func (h *WithdrawalHandler) ready(method string) error {
	service := config.ServicePaystack
	if method == "momo" {
		service = config.ServiceMomo
	}
	if !h.cfg.ServiceReady(service) {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": service,
		})
	}
	return nil
}

// Initiate handles POST /api/withdrawals.
func (h *WithdrawalHandler) Initiate(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "withdrawal.initiate"); err != nil {
		return err
	}

	var req withdrawal.Request
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.ready(req.Method); err != nil {
		return err
	}

	ctx := requestContext(c)
	outcome, err := h.guard.Run(idempotencyKey(c), "withdrawal.initiate", userID, func() (interface{}, error) {
		return h.service.Initiate(ctx, userID, req)
	})
	if err != nil {
		return err
	}
	if outcome.Replay {
		c.Set("X-Idempotent-Replay", "true")
	}
	return utils.Accepted(c, outcome.Result)
}

// Finalize handles POST /api/withdrawals/finalize, the second leg of
// an OTP-gated bank transfer.
func (h *WithdrawalHandler) Finalize(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}
	if err := h.ready("bank"); err != nil {
		return err
	}

	var req struct {
		TransferCode string `json:"transfer_code"`
		OTP          string `json:"otp"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := requestContext(c)
	outcome, err := h.guard.Run(idempotencyKey(c), "withdrawal.finalize", userID, func() (interface{}, error) {
		return h.service.Finalize(ctx, userID, req.TransferCode, req.OTP)
	})
	if err != nil {
		return err
	}
	if outcome.Replay {
		c.Set("X-Idempotent-Replay", "true")
	}
	return utils.Success(c, outcome.Result)
}

// Banks handles GET /api/banks.
func (h *WithdrawalHandler) Banks(c *fiber.Ctx) error {
	if _, err := currentUserID(c); err != nil {
		return err
	}
	if err := h.ready("bank"); err != nil {
		return err
	}

	currency := c.Query("currency", h.cfg.DefaultCurrency)
	banks, err := h.service.Banks(requestContext(c), currency)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{"banks": banks})
}

// ResolveAccount handles POST /api/banks/resolve: the holder-name
// check shown before a withdrawal is committed.
func (h *WithdrawalHandler) ResolveAccount(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "bank.resolve"); err != nil {
		return err
	}
	if err := h.ready("bank"); err != nil {
		return err
	}

	var req struct {
		AccountNumber string `json:"account_number"`
		BankCode      string `json:"bank_code"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	detail, err := h.service.ResolveAccount(requestContext(c), req.AccountNumber, req.BankCode)
	if err != nil {
		return err
	}
	return utils.Success(c, detail)
}
