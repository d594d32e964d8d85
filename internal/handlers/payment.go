package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"qrwallet/internal/config"
	"qrwallet/internal/errors"
	"qrwallet/internal/services/idempotency"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/payment"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/utils"
)

// PaymentHandler exposes card/bank deposits: opening a hosted checkout
// and verifying where a charge stands.
type PaymentHandler struct {
	service payment.Service
	kyc     kyc.Service
	limits  ratelimit.Service
	guard   idempotency.Service
	cfg     *config.Config
}

func NewPaymentHandler(s payment.Service, k kyc.Service, r ratelimit.Service, g idempotency.Service, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{service: s, kyc: k, limits: r, guard: g, cfg: cfg}
}

func (h *PaymentHandler) ready() error {
	if !h.cfg.ServiceReady(config.ServicePaystack) {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": config.ServicePaystack,
		})
	}
	return nil
}

// Deposit handles POST /api/payments/deposit.
func (h *PaymentHandler) Deposit(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "payment.deposit"); err != nil {
		return err
	}
	if err := h.ready(); err != nil {
		return err
	}

	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := requestContext(c)
	outcome, err := h.guard.Run(idempotencyKey(c), "payment.deposit", userID, func() (interface{}, error) {
		return h.service.InitDeposit(ctx, userID, req.Amount)
	})
	if err != nil {
		return err
	}
	if outcome.Replay {
		c.Set("X-Idempotent-Replay", "true")
	}
	return utils.Created(c, outcome.Result)
}

// Verify handles GET /api/payments/verify/:reference. The gateway is
// asked for the authoritative state and the deposit settles
// accordingly; verifying an already-settled charge is a no-op.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	if _, err := currentUserID(c); err != nil {
		return err
	}
	if err := h.ready(); err != nil {
		return err
	}

	result, err := h.service.VerifyDeposit(requestContext(c), c.Params("reference"))
	if err != nil {
		return err
	}
	return utils.Success(c, result)
}
