package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/errors"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ledger"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/utils"
)

// WalletHandler exposes wallet reads: the owner's balance, the public
// lookup used before sending money, and the receipt history.
type WalletHandler struct {
	ledger ledger.Service
	kyc    kyc.Service
	limits ratelimit.Service
	lookup *ratelimit.LookupGuard
}

func NewWalletHandler(l ledger.Service, k kyc.Service, r ratelimit.Service, lg *ratelimit.LookupGuard) *WalletHandler {
	return &WalletHandler{ledger: l, kyc: k, limits: r, lookup: lg}
}

// Get handles GET /api/wallet.
func (h *WalletHandler) Get(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	wallet, err := h.ledger.Wallet(requestContext(c), userID)
	if err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{
		"wallet_number": wallet.WalletNumber,
		"balance":       wallet.Balance,
		"currency":      wallet.Currency,
		"status":        wallet.Status,
		"daily_spent":   wallet.DailySpent,
		"monthly_spent": wallet.MonthlySpent,
	})
}

// Lookup handles GET /api/wallet/lookup/:walletNumber. Two layers
// guard against enumeration: the persistent per-user limiter, and a
// process-local cooldown that counts only failed lookups.
func (h *WalletHandler) Lookup(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "wallet.lookup"); err != nil {
		return err
	}
	guardKey := c.IP()
	if err := h.lookup.Allow(guardKey); err != nil {
		return err
	}

	result, err := h.ledger.Lookup(requestContext(c), c.Params("walletNumber"))
	if err != nil {
		if errors.Is(err, errors.ErrWalletNotFound) {
			h.lookup.RecordFailure(guardKey)
			return utils.Success(c, fiber.Map{"found": false})
		}
		return err
	}
	h.lookup.RecordSuccess(guardKey)
	return utils.Success(c, fiber.Map{
		"found":         true,
		"wallet_number": result.WalletNumber,
		"name":          result.Name,
		"currency":      result.Currency,
	})
}

// Transactions handles GET /api/transactions.
func (h *WalletHandler) Transactions(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.kyc.Enforce(userID); err != nil {
		return err
	}

	p := utils.GetPagination(c, 1, 20)
	txs, total, err := h.ledger.Transactions(requestContext(c), userID, p.Offset, p.Limit)
	if err != nil {
		return err
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(txs, p))
}
