// Package withdrawal runs the payout flow: destination first, debit
// second, gateway call last. The wallet is debited before the transfer
// is dispatched and refunded by compensation when the gateway
// confirms failure, so a successful payout can never race an
// un-debited wallet.
package withdrawal

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/gateway"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/services/status"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
	"qrwallet/internal/validation"
)

type Config struct {
	// MinAmount is the smallest withdrawal accepted, in the wallet's
	// currency.
	MinAmount decimal.Decimal
	// Production makes cross-verification mandatory: a transfer event
	// that cannot be confirmed with the gateway is rejected instead of
	// trusted.
	Production bool
}

type Service interface {
	Initiate(ctx context.Context, userID uint, req Request) (*Result, error)
	// Finalize completes an OTP-gated bank transfer.
	Finalize(ctx context.Context, userID uint, transferCode, otp string) (*Result, error)

	// ProcessTransferEvent settles a payout reported by webhook. The
	// callback status is confirmed with the gateway before any money
	// moves; only outside production does a failed query fall back to
	// the callback's word.
	ProcessTransferEvent(ctx context.Context, reference, callbackStatus string) (bool, error)

	// CompleteTransfer settles a gateway-confirmed payout. Replays are
	// inert; the bool reports whether this call changed anything.
	CompleteTransfer(ctx context.Context, reference, gatewayStatus string) (bool, error)
	// RefundTransfer compensates a failed payout: the debit comes back
	// and the withdrawal is marked failed with the refund recorded.
	RefundTransfer(ctx context.Context, reference, gatewayStatus, reason string) (bool, error)

	Banks(ctx context.Context, currency string) ([]gateway.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetail, error)
}

type service struct {
	ledger  repositories.LedgerRepository
	bank    BankGateway
	momo    MomoGateway
	auditor audit.Service
	cache   WalletCache
	cfg     Config
	now     func() time.Time
}

// NewService builds the withdrawal service. cache may be nil;
// everything else is required.
func NewService(repo repositories.LedgerRepository, bank BankGateway, momo MomoGateway, auditor audit.Service, cache WalletCache, cfg Config) Service {
	if repo == nil {
		panic("ledger repository is required")
	}
	if bank == nil {
		panic("bank gateway is required")
	}
	if momo == nil {
		panic("momo gateway is required")
	}
	if auditor == nil {
		panic("audit service is required")
	}
	return &service{
		ledger:  repo,
		bank:    bank,
		momo:    momo,
		auditor: auditor,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *service) Initiate(ctx context.Context, userID uint, req Request) (*Result, error) {
	result, err := s.initiate(ctx, userID, req)
	if err != nil {
		appErr := errors.From(err)
		s.auditor.Record(ctx, audit.Entry{
			UserID: &userID,
			Action: "withdrawal.failed",
			Entity: "withdrawal",
			Detail: map[string]interface{}{
				"code":   appErr.Code,
				"amount": req.Amount.String(),
			},
		})
		return nil, appErr
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    "withdrawal.initiated",
		Entity:    "withdrawal",
		EntityRef: result.Reference,
		Detail: map[string]interface{}{
			"amount": req.Amount.String(),
			"method": req.Method,
			"status": result.Status,
		},
	})
	return result, nil
}

func (s *service) initiate(ctx context.Context, userID uint, req Request) (*Result, error) {
	method := strings.ToLower(strings.TrimSpace(req.Method))
	phone := utils.NormalizePhone(req.Phone)

	v := validation.New()
	v.OneOf("method", method, models.WithdrawalMethodBank, models.WithdrawalMethodMomo)
	v.Positive("amount", req.Amount)
	switch method {
	case models.WithdrawalMethodBank:
		v.Required("bank_code", req.BankCode)
		v.Required("account_number", req.AccountNumber)
	case models.WithdrawalMethodMomo:
		v.Phone("phone", phone)
	}
	if !v.Valid() {
		return nil, errors.ErrValidation.WithDetails(v.Details())
	}
	if req.Amount.LessThan(s.cfg.MinAmount) {
		return nil, errors.ErrAmountTooSmall.WithDetails(map[string]interface{}{
			"minimum": s.cfg.MinAmount.String(),
		})
	}

	wallet, err := s.ledger.GetWalletByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Internal(err)
	}
	if err := validation.ValidateWalletOperation(wallet); err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(req.Amount) {
		return nil, errors.ErrInsufficientBalance.WithDetails(map[string]interface{}{
			"balance":  wallet.Balance.String(),
			"required": req.Amount.String(),
		})
	}

	wd := &models.Withdrawal{
		UserID:      userID,
		WalletID:    wallet.ID,
		Reference:   uuid.NewString(),
		Method:      method,
		Amount:      req.Amount,
		Fee:         decimal.Zero,
		Currency:    wallet.Currency,
		StatusModel: models.StatusModel{Status: models.StatusPending},
	}

	// The destination is registered at the gateway before any money
	// moves, so a rejected destination costs nothing.
	switch method {
	case models.WithdrawalMethodBank:
		detail, err := s.bank.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
		if err != nil {
			return nil, err
		}
		code, err := s.bank.CreateRecipient(ctx, detail.AccountName, req.AccountNumber, req.BankCode, wallet.Currency)
		if err != nil {
			return nil, err
		}
		wd.BankCode = req.BankCode
		wd.AccountNumber = req.AccountNumber
		wd.AccountName = detail.AccountName
		wd.RecipientCode = code
	case models.WithdrawalMethodMomo:
		wd.MomoNumber = phone
	}

	// Debit before dispatch. The gateway is the less trustworthy party
	// for "did this already happen": refunding a confirmed failure is
	// safe, paying out against an un-debited wallet is not.
	err = s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		locked, err := r.GetWalletForUpdate(wallet.ID)
		if err != nil {
			return err
		}
		if err := validation.ValidateWalletOperation(locked); err != nil {
			return err
		}
		if locked.Balance.LessThan(wd.Amount) {
			return errors.ErrInsufficientBalance.WithDetails(map[string]interface{}{
				"balance":  locked.Balance.String(),
				"required": wd.Amount.String(),
			})
		}
		locked.Balance = locked.Balance.Sub(wd.Amount)
		if err := r.UpdateWallet(locked); err != nil {
			return err
		}
		return r.CreateWithdrawal(wd)
	})
	if err != nil {
		return nil, errors.From(err)
	}
	s.invalidate(ctx, userID)

	logger.Info("withdrawal debited",
		zap.String("reference", wd.Reference),
		zap.String("method", method),
		zap.String("amount", wd.Amount.String()),
		zap.String("currency", wd.Currency))

	o, err := s.dispatchTransfer(ctx, wd)
	if err != nil {
		return s.settleDispatchFailure(ctx, wd, err)
	}
	return s.applyOutcome(ctx, wd.Reference, o)
}

// outcome is the gateway's answer to a dispatched transfer, in its own
// status vocabulary.
type outcome struct {
	status       string
	transferCode string
	requiresOTP  bool
	reason       string
}

func (s *service) dispatchTransfer(ctx context.Context, wd *models.Withdrawal) (outcome, error) {
	if wd.Method == models.WithdrawalMethodMomo {
		err := s.momo.Transfer(ctx, wd.Reference, wd.Amount, wd.Currency, wd.MomoNumber, "wallet withdrawal", wd.Reference)
		if err != nil {
			return outcome{}, err
		}
		// MoMo accepts asynchronously; the webhook or a status poll
		// settles it.
		return outcome{status: "pending"}, nil
	}

	res, err := s.bank.InitiateTransfer(ctx, wd.Amount, wd.Currency, wd.RecipientCode, wd.Reference, "wallet withdrawal")
	if err != nil {
		return outcome{}, err
	}
	return outcome{status: res.Status, transferCode: res.TransferCode, requiresOTP: res.RequiresOTP}, nil
}

func (s *service) queryTransfer(ctx context.Context, wd *models.Withdrawal) (outcome, error) {
	if wd.Method == models.WithdrawalMethodMomo {
		st, err := s.momo.TransferStatus(ctx, wd.Reference)
		if err != nil {
			return outcome{}, err
		}
		return outcome{status: st.Status, reason: st.Reason}, nil
	}

	res, err := s.bank.VerifyTransfer(ctx, wd.Reference)
	if err != nil {
		return outcome{}, err
	}
	return outcome{status: res.Status, transferCode: res.TransferCode, requiresOTP: res.RequiresOTP}, nil
}

// settleDispatchFailure decides what a failed transfer call means. A
// decisive rejection refunds immediately. A network failure is
// ambiguous: the transfer may have gone through, so the gateway is
// queried before the balance is touched, and if even the query is
// unreachable the withdrawal stays pending for the webhook or a later
// poll to settle.
func (s *service) settleDispatchFailure(ctx context.Context, wd *models.Withdrawal, dispatchErr error) (*Result, error) {
	if errors.Is(dispatchErr, errors.ErrGatewayUnavailable) {
		o, verr := s.queryTransfer(ctx, wd)
		switch {
		case verr == nil:
			if o.requiresOTP {
				return s.applyOutcome(ctx, wd.Reference, o)
			}
			normalized, nerr := status.Normalize(o.status)
			if nerr != nil {
				logger.Warn("unrecognized transfer status, leaving withdrawal pending",
					zap.String("reference", wd.Reference),
					zap.String("status", o.status))
				return &Result{Reference: wd.Reference, Status: models.StatusPending}, nil
			}
			if normalized != models.StatusFailed {
				return s.applyOutcome(ctx, wd.Reference, o)
			}
			// the gateway confirms the transfer failed
		case errors.Is(verr, errors.ErrGatewayRejected):
			// the gateway has no record of the transfer
		default:
			logger.Warn("transfer outcome unknown, leaving withdrawal pending",
				zap.String("reference", wd.Reference),
				zap.Error(verr))
			return &Result{Reference: wd.Reference, Status: models.StatusPending}, nil
		}
	}

	appErr := errors.From(dispatchErr)
	if _, err := s.RefundTransfer(ctx, wd.Reference, "", appErr.Message); err != nil {
		logger.Error("compensating refund failed",
			zap.String("reference", wd.Reference),
			zap.Error(err))
	}
	return nil, appErr
}

func (s *service) applyOutcome(ctx context.Context, reference string, o outcome) (*Result, error) {
	if o.requiresOTP {
		if err := s.markOTPPending(reference, o); err != nil {
			return nil, errors.From(err)
		}
		return &Result{
			Reference:    reference,
			Status:       models.StatusPendingOTP,
			RequiresOTP:  true,
			TransferCode: o.transferCode,
		}, nil
	}

	normalized, err := status.Normalize(o.status)
	if err != nil {
		// Unknown vocabulary is treated as in flight; the raw status
		// still lands on the record.
		normalized = models.StatusPending
	}

	switch normalized {
	case models.StatusCompleted:
		if _, err := s.CompleteTransfer(ctx, reference, o.status); err != nil {
			return nil, errors.From(err)
		}
		return &Result{Reference: reference, Status: models.StatusCompleted, TransferCode: o.transferCode}, nil

	case models.StatusFailed:
		appErr := errors.ErrGatewayRejected.WithMessage("transfer failed at the gateway")
		if _, err := s.RefundTransfer(ctx, reference, o.status, appErr.Message); err != nil {
			logger.Error("compensating refund failed",
				zap.String("reference", reference),
				zap.Error(err))
		}
		return nil, appErr

	default:
		if err := s.stampGateway(reference, o); err != nil {
			return nil, errors.From(err)
		}
		return &Result{Reference: reference, Status: models.StatusPending, TransferCode: o.transferCode}, nil
	}
}

func (s *service) markOTPPending(reference string, o outcome) error {
	now := s.now()
	return s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		wd, err := r.GetWithdrawalByReferenceForUpdate(reference)
		if err != nil {
			return err
		}
		if err := status.Transition(&wd.StatusModel, reference, models.StatusPendingOTP, now); err != nil {
			return err
		}
		wd.OTPRequired = true
		wd.TransferCode = o.transferCode
		wd.GatewayStatus = o.status
		return r.UpdateWithdrawal(wd)
	})
}

func (s *service) stampGateway(reference string, o outcome) error {
	return s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		wd, err := r.GetWithdrawalByReferenceForUpdate(reference)
		if err != nil {
			return err
		}
		wd.GatewayStatus = o.status
		if o.transferCode != "" {
			wd.TransferCode = o.transferCode
		}
		return r.UpdateWithdrawal(wd)
	})
}

func (s *service) Finalize(ctx context.Context, userID uint, transferCode, otp string) (*Result, error) {
	v := validation.New()
	v.Required("transfer_code", transferCode)
	v.Required("otp", otp)
	if !v.Valid() {
		return nil, errors.ErrValidation.WithDetails(v.Details())
	}

	wd, err := s.ledger.GetWithdrawalByTransferCode(transferCode)
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return nil, errors.ErrWithdrawalNotFound
		}
		return nil, errors.Internal(err)
	}
	if wd.UserID != userID {
		return nil, errors.ErrPermissionDenied
	}
	if wd.Status != models.StatusPendingOTP {
		return nil, errors.ErrOTPNotPending.WithDetails(map[string]interface{}{
			"status": wd.Status,
		})
	}

	res, err := s.bank.FinalizeTransfer(ctx, transferCode, otp)
	if err != nil {
		// A rejected OTP leaves the withdrawal in pending_otp so the
		// user can retry with the right code.
		return nil, errors.From(err)
	}

	now := s.now()
	err = s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		locked, err := r.GetWithdrawalByReferenceForUpdate(wd.Reference)
		if err != nil {
			return err
		}
		if err := status.Transition(&locked.StatusModel, locked.Reference, models.StatusProcessing, now); err != nil {
			return err
		}
		locked.GatewayStatus = res.Status
		return r.UpdateWithdrawal(locked)
	})
	if err != nil {
		return nil, errors.From(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    "withdrawal.finalized",
		Entity:    "withdrawal",
		EntityRef: wd.Reference,
	})

	if normalized, nerr := status.Normalize(res.Status); nerr == nil && normalized == models.StatusCompleted {
		if _, err := s.CompleteTransfer(ctx, wd.Reference, res.Status); err != nil {
			return nil, errors.From(err)
		}
		return &Result{Reference: wd.Reference, Status: models.StatusCompleted}, nil
	}
	return &Result{Reference: wd.Reference, Status: models.StatusProcessing}, nil
}

func (s *service) ProcessTransferEvent(ctx context.Context, reference, callbackStatus string) (bool, error) {
	// The reference must belong to a known withdrawal; webhooks never
	// create state.
	wd, err := s.ledger.GetWithdrawalByReference(reference)
	if err != nil {
		if errors.Is(err, repositories.ErrWithdrawalNotFound) {
			return false, errors.ErrWithdrawalNotFound
		}
		return false, errors.Internal(err)
	}

	verified := callbackStatus
	reason := ""

	o, qerr := s.queryTransfer(ctx, wd)
	switch {
	case qerr == nil:
		if statusMismatch(callbackStatus, o.status) {
			logger.Warn("callback status disagrees with gateway query",
				zap.String("reference", reference),
				zap.String("callback", callbackStatus),
				zap.String("queried", o.status))
		}
		verified = o.status
		reason = o.reason
	case s.cfg.Production:
		logger.Error("cross-verification failed, rejecting webhook",
			zap.String("reference", reference),
			zap.Error(qerr))
		return false, errors.ErrCrossVerification.WithErr(qerr)
	default:
		logger.Warn("cross-verification failed, trusting callback",
			zap.String("reference", reference),
			zap.String("callback", callbackStatus),
			zap.Error(qerr))
	}

	normalized, err := status.Normalize(verified)
	if err != nil {
		return false, nil
	}
	switch normalized {
	case models.StatusCompleted:
		return s.CompleteTransfer(ctx, reference, verified)
	case models.StatusFailed:
		if reason == "" {
			reason = "gateway reported the transfer failed"
		}
		return s.RefundTransfer(ctx, reference, verified, reason)
	default:
		return false, nil
	}
}

// statusMismatch compares a callback-claimed status with the queried
// one in normalized terms. Unknown vocabulary counts as a mismatch.
func statusMismatch(callback, queried string) bool {
	cb, cerr := status.Normalize(callback)
	q, qerr := status.Normalize(queried)
	if cerr != nil || qerr != nil {
		return cerr == nil || qerr == nil
	}
	return cb != q
}

func (s *service) CompleteTransfer(ctx context.Context, reference, gatewayStatus string) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		wd, err := r.GetWithdrawalByReferenceForUpdate(reference)
		if err != nil {
			if errors.Is(err, repositories.ErrWithdrawalNotFound) {
				return errors.ErrWithdrawalNotFound
			}
			return err
		}
		if wd.Status == models.StatusCompleted {
			return nil
		}

		if err := status.Transition(&wd.StatusModel, reference, models.StatusCompleted, now); err != nil {
			return err
		}
		wd.GatewayStatus = gatewayStatus
		if err := r.UpdateWithdrawal(wd); err != nil {
			return err
		}

		wallet, err := r.GetWallet(wd.WalletID)
		if err != nil {
			return err
		}
		receipt := &models.Transaction{
			TransactionID:      "TXN-" + uuid.NewString(),
			UserID:             wd.UserID,
			Type:               models.TransactionTypeWithdrawal,
			Direction:          models.DirectionSend,
			SenderWalletNumber: wallet.WalletNumber,
			Amount:             wd.Amount,
			Fee:                wd.Fee,
			Currency:           wd.Currency,
			Reference:          reference,
			GatewayStatus:      gatewayStatus,
			Metadata:           models.JSON{"method": wd.Method},
			StatusModel:        models.StatusModel{Status: models.StatusCreated},
		}
		if err := status.Transition(&receipt.StatusModel, reference, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := r.CreateTransaction(receipt); err != nil {
			return err
		}

		applied = true
		userID = wd.UserID
		return nil
	})
	if err != nil {
		return false, errors.From(err)
	}
	if applied {
		s.auditor.Record(ctx, audit.Entry{
			UserID:    &userID,
			Action:    "withdrawal.completed",
			Entity:    "withdrawal",
			EntityRef: reference,
		})
	}
	return applied, nil
}

func (s *service) RefundTransfer(ctx context.Context, reference, gatewayStatus, reason string) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		wd, err := r.GetWithdrawalByReferenceForUpdate(reference)
		if err != nil {
			if errors.Is(err, repositories.ErrWithdrawalNotFound) {
				return errors.ErrWithdrawalNotFound
			}
			return err
		}
		if wd.Refunded {
			return nil
		}

		if err := status.Transition(&wd.StatusModel, reference, models.StatusFailed, now); err != nil {
			return err
		}
		wd.Refunded = true
		wd.FailReason = reason
		if gatewayStatus != "" {
			wd.GatewayStatus = gatewayStatus
		}
		if err := r.UpdateWithdrawal(wd); err != nil {
			return err
		}

		locked, err := r.GetWalletForUpdate(wd.WalletID)
		if err != nil {
			return err
		}
		locked.Balance = locked.Balance.Add(wd.Amount)
		if err := r.UpdateWallet(locked); err != nil {
			return err
		}

		receipt := &models.Transaction{
			TransactionID:        "TXN-" + uuid.NewString(),
			UserID:               wd.UserID,
			Type:                 models.TransactionTypeRefund,
			Direction:            models.DirectionReceive,
			ReceiverWalletNumber: locked.WalletNumber,
			Amount:               wd.Amount,
			Fee:                  decimal.Zero,
			Currency:             wd.Currency,
			Reference:            reference,
			GatewayStatus:        gatewayStatus,
			Metadata:             models.JSON{"method": wd.Method, "reason": reason},
			StatusModel:          models.StatusModel{Status: models.StatusCreated},
		}
		if err := status.Transition(&receipt.StatusModel, reference, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := r.CreateTransaction(receipt); err != nil {
			return err
		}

		applied = true
		userID = wd.UserID
		return nil
	})
	if err != nil {
		return false, errors.From(err)
	}
	if !applied {
		return false, nil
	}

	s.invalidate(ctx, userID)
	s.auditor.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    "withdrawal.refunded",
		Entity:    "withdrawal",
		EntityRef: reference,
		Detail:    map[string]interface{}{"reason": reason},
	})
	return true, nil
}

func (s *service) Banks(ctx context.Context, currency string) ([]gateway.Bank, error) {
	return s.bank.ListBanks(ctx, strings.ToUpper(strings.TrimSpace(currency)))
}

func (s *service) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*gateway.AccountDetail, error) {
	v := validation.New()
	v.Required("account_number", accountNumber)
	v.Required("bank_code", bankCode)
	if !v.Valid() {
		return nil, errors.ErrValidation.WithDetails(v.Details())
	}
	return s.bank.ResolveAccount(ctx, accountNumber, bankCode)
}

func (s *service) invalidate(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		logger.Warn("wallet cache invalidation failed",
			zap.Uint("user_id", userID),
			zap.Error(err))
	}
}
