package handlers

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"qrwallet/internal/config"
	"qrwallet/internal/errors"
	"qrwallet/internal/gateway/paystack"
	"qrwallet/internal/services/collection"
	"qrwallet/internal/services/payment"
	"qrwallet/internal/services/withdrawal"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
)

// WebhookHandler terminates the gateway callbacks. Every event passes
// the same gauntlet before any money moves: signature (or shared
// token) over the raw body, a reference that already exists locally,
// and cross-verification against the gateway's status endpoint inside
// the services. Delivery is at-least-once and out-of-order; the
// services make replays inert, so a webhook may always be answered
// with 200 once it has been applied or recognized as stale.
type WebhookHandler struct {
	payments    payment.Service
	withdrawals withdrawal.Service
	collections collection.Service
	cfg         *config.Config
}

func NewWebhookHandler(p payment.Service, w withdrawal.Service, col collection.Service, cfg *config.Config) *WebhookHandler {
	return &WebhookHandler{payments: p, withdrawals: w, collections: col, cfg: cfg}
}

// paystackEvent is the slice of the callback body the dispatcher
// needs. Everything else in the payload is untrusted garnish; the
// authoritative state comes from the verify endpoint.
type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// paystackHandlers maps event names to the service call that settles
// them. Events absent from the table are acknowledged and ignored.
var paystackHandlers = map[string]func(*WebhookHandler, *fiber.Ctx, paystackEvent) (bool, error){
	"charge.success": func(h *WebhookHandler, c *fiber.Ctx, ev paystackEvent) (bool, error) {
		return h.payments.ProcessChargeEvent(requestContext(c), ev.Data.Reference, ev.Data.Status)
	},
	"transfer.success": func(h *WebhookHandler, c *fiber.Ctx, ev paystackEvent) (bool, error) {
		return h.withdrawals.ProcessTransferEvent(requestContext(c), ev.Data.Reference, ev.Data.Status)
	},
	"transfer.failed": func(h *WebhookHandler, c *fiber.Ctx, ev paystackEvent) (bool, error) {
		return h.withdrawals.ProcessTransferEvent(requestContext(c), ev.Data.Reference, ev.Data.Status)
	},
	"transfer.reversed": func(h *WebhookHandler, c *fiber.Ctx, ev paystackEvent) (bool, error) {
		return h.withdrawals.ProcessTransferEvent(requestContext(c), ev.Data.Reference, ev.Data.Status)
	},
}

// Paystack handles POST /webhooks/paystack.
func (h *WebhookHandler) Paystack(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return errors.ErrWebhookMethod
	}
	if !h.cfg.ServiceReady(config.ServicePaystack) {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": config.ServicePaystack,
		})
	}

	body := c.Body()
	signature := c.Get("X-Paystack-Signature")
	if !paystack.VerifySignature(h.cfg.PaystackSecretKey, body, signature) {
		logger.Warn("paystack webhook signature rejected",
			zap.String("ip", c.IP()))
		return errors.ErrInvalidSignature
	}

	var ev paystackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.ErrValidation.WithMessage("webhook body is not valid JSON").WithErr(err)
	}
	if ev.Data.Reference == "" {
		return errors.ErrValidation.WithMessage("webhook event carries no reference")
	}

	handle, known := paystackHandlers[ev.Event]
	if !known {
		logger.Info("ignoring unhandled paystack event",
			zap.String("event", ev.Event),
			zap.String("reference", ev.Data.Reference))
		return utils.Success(c, fiber.Map{"status": "ignored"})
	}

	logger.Info("paystack webhook received",
		zap.String("event", ev.Event),
		zap.String("reference", ev.Data.Reference))

	applied, err := handle(h, c, ev)
	if err != nil {
		return err
	}
	if !applied {
		return utils.Success(c, fiber.Map{"status": "ignored"})
	}
	return utils.Success(c, fiber.Map{"status": "applied"})
}

// momoEvent is the operator's callback body. The reference is the
// external ID this system generated when the leg was created.
type momoEvent struct {
	ReferenceID string `json:"referenceId"`
	ExternalID  string `json:"externalId"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

func (e momoEvent) reference() string {
	if e.ReferenceID != "" {
		return e.ReferenceID
	}
	return e.ExternalID
}

// Momo handles POST /webhooks/momo?token=... for both collection and
// disbursement legs. The shared token plays the signature's role; the
// operator does not sign bodies.
func (h *WebhookHandler) Momo(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return errors.ErrWebhookMethod
	}
	if !h.cfg.ServiceReady(config.ServiceMomo) || h.cfg.MomoWebhookToken == "" {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": config.ServiceMomo,
		})
	}

	token := c.Query("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.MomoWebhookToken)) != 1 {
		logger.Warn("momo webhook token rejected", zap.String("ip", c.IP()))
		return errors.ErrInvalidSignature.WithMessage("webhook token mismatch")
	}

	var ev momoEvent
	if err := json.Unmarshal(c.Body(), &ev); err != nil {
		return errors.ErrValidation.WithMessage("webhook body is not valid JSON").WithErr(err)
	}
	reference := ev.reference()
	if reference == "" {
		return errors.ErrValidation.WithMessage("webhook event carries no reference")
	}

	logger.Info("momo webhook received",
		zap.String("reference", reference),
		zap.String("status", ev.Status))

	// The operator uses one callback for both directions; the
	// reference decides which record it belongs to. Unknown
	// references are rejected outright.
	applied, err := h.collections.ProcessCallback(requestContext(c), reference, ev.Status)
	if err != nil && errors.Is(err, errors.ErrTransactionNotFound) {
		applied, err = h.withdrawals.ProcessTransferEvent(requestContext(c), reference, ev.Status)
		if err != nil && errors.Is(err, errors.ErrWithdrawalNotFound) {
			return errors.ErrTransactionNotFound.WithMessage("no record with this reference")
		}
	}
	if err != nil {
		return err
	}
	if !applied {
		return utils.Success(c, fiber.Map{"status": "ignored"})
	}
	return utils.Success(c, fiber.Map{"status": "applied"})
}
