package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"qrwallet/internal/services/idempotency"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ledger"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/utils"
)

// TransferHandler exposes the peer-transfer endpoint. Requests run the
// full gauntlet in order: KYC gate, rate limit, idempotency guard,
// then the ledger.
type TransferHandler struct {
	ledger ledger.Service
	kyc    kyc.Service
	limits ratelimit.Service
	guard  idempotency.Service
}

func NewTransferHandler(l ledger.Service, k kyc.Service, r ratelimit.Service, g idempotency.Service) *TransferHandler {
	return &TransferHandler{ledger: l, kyc: k, limits: r, guard: g}
}

// Send handles POST /api/transfers/send.
func (h *TransferHandler) Send(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "transfer.send"); err != nil {
		return err
	}

	var req struct {
		RecipientWalletNumber string          `json:"recipient_wallet_number"`
		Amount                decimal.Decimal `json:"amount"`
		Note                  string          `json:"note"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ctx := requestContext(c)
	outcome, err := h.guard.Run(idempotencyKey(c), "transfer.send", userID, func() (interface{}, error) {
		return h.ledger.SendMoney(ctx, ledger.TransferRequest{
			SenderID:              userID,
			RecipientWalletNumber: req.RecipientWalletNumber,
			Amount:                req.Amount,
			Note:                  req.Note,
		})
	})
	if err != nil {
		return err
	}
	if outcome.Replay {
		c.Set("X-Idempotent-Replay", "true")
	}
	return utils.Success(c, outcome.Result)
}
