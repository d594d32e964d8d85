package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils"
)

// AdminHandler exposes the operational read surface reserved for
// admin sessions.
type AdminHandler struct {
	guards repositories.GuardRepository
	ledger repositories.LedgerRepository
}

func NewAdminHandler(guards repositories.GuardRepository, ledger repositories.LedgerRepository) *AdminHandler {
	return &AdminHandler{guards: guards, ledger: ledger}
}

// AuditLogs handles GET /api/admin/audit-logs. The trail itself is
// append-only; this only reads it.
func (h *AdminHandler) AuditLogs(c *fiber.Ctx) error {
	userID := c.QueryInt("user_id", 0)
	if userID < 0 {
		return errors.ErrValidation.WithMessage("user_id must not be negative")
	}

	p := utils.GetPagination(c, 1, 50)
	logs, total, err := h.guards.ListAuditLogs(uint(userID), p.Offset, p.Limit)
	if err != nil {
		return errors.Internal(err)
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(logs, p))
}

type feeReport struct {
	TotalUSD string                  `json:"total_usd"`
	Wallets  []models.PlatformWallet `json:"wallets"`
}

// Fees handles GET /api/admin/fees: the per-currency platform balances
// and the running fee total in USD-equivalent terms.
func (h *AdminHandler) Fees(c *fiber.Ctx) error {
	wallets, err := h.ledger.ListPlatformWallets()
	if err != nil {
		return errors.Internal(err)
	}
	total, err := h.ledger.GetFeeTotalUSD()
	if err != nil {
		return errors.Internal(err)
	}
	return utils.Success(c, feeReport{
		TotalUSD: total.String(),
		Wallets:  wallets,
	})
}
