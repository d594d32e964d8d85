package handlers

import (
	"github.com/gofiber/fiber/v2"

	"qrwallet/internal/errors"
	"qrwallet/internal/services/kyc"
	"qrwallet/internal/services/ratelimit"
	"qrwallet/internal/utils"
)

// KYCHandler exposes the verification flow: users see and submit
// their own status, reviewers work the pending queue.
type KYCHandler struct {
	service kyc.Service
	limits  ratelimit.Service
}

func NewKYCHandler(s kyc.Service, r ratelimit.Service) *KYCHandler {
	return &KYCHandler{service: s, limits: r}
}

// Status handles GET /api/kyc/status.
func (h *KYCHandler) Status(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	view, err := h.service.Status(userID)
	if err != nil {
		return err
	}
	return utils.Success(c, view)
}

// Submit handles POST /api/kyc/submit.
func (h *KYCHandler) Submit(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	if err := h.limits.Enforce(userID, "kyc.submit"); err != nil {
		return err
	}

	var req struct {
		DocumentType string `json:"document_type"`
		DocumentRef  string `json:"document_ref"`
		ScanURL      string `json:"scan_url"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	sub, err := h.service.Submit(userID, kyc.SubmissionRequest{
		DocumentType: req.DocumentType,
		DocumentRef:  req.DocumentRef,
		ScanURL:      req.ScanURL,
	})
	if err != nil {
		return err
	}
	return utils.Created(c, fiber.Map{
		"submission_id": sub.ID,
		"status":        sub.Status,
	})
}

// Pending handles GET /api/admin/kyc/pending.
func (h *KYCHandler) Pending(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 20)
	subs, total, err := h.service.ListPending(p.Offset, p.Limit)
	if err != nil {
		return err
	}
	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(subs, p))
}

// Review handles POST /api/admin/kyc/:id/review.
func (h *KYCHandler) Review(c *fiber.Ctx) error {
	reviewerID, err := currentUserID(c)
	if err != nil {
		return err
	}
	submissionID, err := c.ParamsInt("id")
	if err != nil || submissionID <= 0 {
		return errors.ErrValidation.WithMessage("id must be a positive integer")
	}

	var req struct {
		Approve bool   `json:"approve"`
		Reason  string `json:"reason"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.service.Review(reviewerID, uint(submissionID), req.Approve, req.Reason); err != nil {
		return err
	}
	return utils.Success(c, fiber.Map{"reviewed": true})
}
