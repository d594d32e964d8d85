package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/config"
	"qrwallet/internal/errors"
	"qrwallet/internal/services/collection"
	"qrwallet/internal/services/idempotency"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/utils"
)

// CollectionHandler exposes mobile-money top-ups: a request-to-pay is
// pushed to the payer's phone and settles later through the operator
// callback.
type CollectionHandler struct {
	service collection.Service
	kyc     kyc.Service
	limits  ratelimit.Service
	guard   idempotency.Service
	cfg     *config.Config
}

func NewCollectionHandler(s collection.Service, k kyc.Service, r ratelimit.Service, g idempotency.Service, cfg *config.Config) *CollectionHandler {
	return &CollectionHandler{service: s, kyc: k, limits: r, guard: g, cfg: cfg}
}

// Collect handles POST /api/momo/collect.
func (h *CollectionHandler) Collect(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "momo.collect"); err != nil {
		return err
	}
	if !h.cfg.ServiceReady(config.ServiceMomo) {
		return errors.ErrConfigMissing.WithDetails(map[string]interface{}{
			"service": config.ServiceMomo,
		})
	}

	var req collection.Request
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := requestContext(c)
	outcome, err := h.guard.Run(idempotencyKey(c), "momo.collect", userID, func() (interface{}, error) {
		return h.service.Collect(ctx, userID, req)
	})
	if err != nil {
		return err
	}
	if outcome.Replay {
		c.Set("X-Idempotent-Replay", "true")
	}
	return utils.Accepted(c, outcome.Result)
}
