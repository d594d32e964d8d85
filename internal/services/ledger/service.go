// Package ledger is the wallet ledger: every balance mutation in the
// system happens here, inside a short locked transaction. Peer
// transfers debit amount+fee, credit the converted amount, write one
// receipt per affected wallet and collect the fee into the per-currency
// platform wallet. Deposits and mobile-money collections credit
// idempotently, keyed by the gateway reference and a processed flag.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/services/fees"
	"qrwallet/internal/services/status"
	"qrwallet/internal/utils/logger"
)

type Config struct {
	// MaxAmount caps a single transfer, in the sender's currency.
	MaxAmount decimal.Decimal
	// DailyLimit and MonthlyLimit cap the sender's rolling spend
	// counters, fee included.
	DailyLimit   decimal.Decimal
	MonthlyLimit decimal.Decimal
	// AccountingCurrency is the currency fee totals are reported in.
	AccountingCurrency string
}

type Service interface {
	SendMoney(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// ConfirmDeposit settles a verified deposit. Replays are inert;
	// the bool reports whether this call actually credited.
	ConfirmDeposit(ctx context.Context, conf DepositConfirmation) (bool, error)
	// FailDeposit marks a deposit failed without crediting.
	FailDeposit(ctx context.Context, reference, gatewayStatus, reason string) (bool, error)

	// CreditCollection settles a successful mobile-money collection.
	CreditCollection(ctx context.Context, externalID, gatewayStatus string) (bool, error)
	// FailCollection marks a mobile-money collection failed.
	FailCollection(ctx context.Context, externalID, gatewayStatus, reason string) (bool, error)

	Wallet(ctx context.Context, userID uint) (*models.Wallet, error)
	Lookup(ctx context.Context, walletNumber string) (*LookupResult, error)
	Transactions(ctx context.Context, userID uint, offset, limit int) ([]models.Transaction, int64, error)
}

type service struct {
	ledger  repositories.LedgerRepository
	users   UserDirectory
	rates   RateConverter
	fees    *fees.Calculator
	auditor audit.Service
	cache   WalletCache
	cfg     Config
	now     func() time.Time
}

// NewService builds the ledger service. cache may be nil; everything
// else is required.
func NewService(repo repositories.LedgerRepository, users UserDirectory, rates RateConverter, calc *fees.Calculator, auditor audit.Service, cache WalletCache, cfg Config) Service {
	if repo == nil {
		panic("ledger repository is required")
	}
	if users == nil {
		panic("user directory is required")
	}
	if rates == nil {
		panic("rate converter is required")
	}
	if calc == nil {
		panic("fee calculator is required")
	}
	if auditor == nil {
		panic("audit service is required")
	}
	if cfg.AccountingCurrency == "" {
		cfg.AccountingCurrency = "USD"
	}
	return &service{
		ledger:  repo,
		users:   users,
		rates:   rates,
		fees:    calc,
		auditor: auditor,
		cache:   cache,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *service) SendMoney(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	result, err := s.sendMoney(ctx, req)
	if err != nil {
		appErr := errors.From(err)
		s.auditor.Record(ctx, audit.Entry{
			UserID: &req.SenderID,
			Action: "transfer.failed",
			Entity: "transaction",
			Detail: map[string]interface{}{
				"code":   appErr.Code,
				"amount": req.Amount.String(),
			},
		})
		return nil, appErr
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:    &req.SenderID,
		Action:    "transfer.completed",
		Entity:    "transaction",
		EntityRef: result.TransactionID,
		Detail: map[string]interface{}{
			"amount":   result.Amount.String(),
			"fee":      result.Fee.String(),
			"currency": result.Currency,
		},
	})
	return result, nil
}

func (s *service) sendMoney(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	amount := req.Amount
	if !amount.IsPositive() {
		return nil, errors.ErrAmountInvalid.WithDetails(map[string]interface{}{
			"amount": amount.String(),
		})
	}
	if amount.GreaterThan(s.cfg.MaxAmount) {
		return nil, errors.ErrAmountTooLarge.WithDetails(map[string]interface{}{
			"amount": amount.String(),
			"max":    s.cfg.MaxAmount.String(),
		})
	}

	sender, err := s.ledger.GetWalletByUserID(req.SenderID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Internal(err)
	}

	number := strings.ToUpper(strings.TrimSpace(req.RecipientWalletNumber))
	if number == sender.WalletNumber {
		return nil, errors.ErrSelfTransfer
	}
	recipient, err := s.ledger.GetWalletByNumber(number)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrRecipientNotFound.WithDetails(map[string]interface{}{
				"wallet_number": number,
			})
		}
		return nil, errors.Internal(err)
	}

	recipientUser, err := s.users.GetByID(recipient.UserID)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("recipient user %d: %w", recipient.UserID, err))
	}
	senderUser, err := s.users.GetByID(sender.UserID)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("sender user %d: %w", sender.UserID, err))
	}

	fee := s.fees.TransferFee(amount)
	totalDebit := amount.Add(fee)

	// Rates are resolved before any row is locked; a cache miss may
	// reach the network and must not happen mid-transaction.
	converted := amount
	var rateUsed *decimal.Decimal
	if recipient.Currency != sender.Currency {
		conv, rate, err := s.rates.Convert(ctx, amount, sender.Currency, recipient.Currency)
		if err != nil {
			return nil, err
		}
		converted = conv
		rateUsed = &rate
	}
	feeEquivalent := fee
	if sender.Currency != s.cfg.AccountingCurrency {
		feeEquivalent, _, err = s.rates.Convert(ctx, fee, sender.Currency, s.cfg.AccountingCurrency)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	txnID := "TXN-" + uuid.NewString()
	var result *TransferResult

	err = s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		// Lock in ascending wallet ID order to keep concurrent
		// opposite-direction transfers deadlock free.
		first, second := sender.ID, recipient.ID
		if second < first {
			first, second = second, first
		}
		a, err := r.GetWalletForUpdate(first)
		if err != nil {
			return err
		}
		b, err := r.GetWalletForUpdate(second)
		if err != nil {
			return err
		}
		from, to := a, b
		if from.ID != sender.ID {
			from, to = b, a
		}

		if from.Status != models.WalletStatusActive {
			return errors.ErrWalletSuspended
		}
		if to.Status != models.WalletStatusActive {
			return errors.ErrWalletSuspended.WithMessage("recipient wallet is suspended")
		}

		if from.Balance.LessThan(totalDebit) {
			return errors.ErrInsufficientBalance.WithDetails(map[string]interface{}{
				"balance":  from.Balance.String(),
				"required": totalDebit.String(),
			})
		}

		rollSpendWindows(from, now)
		daily := from.DailySpent.Add(totalDebit)
		if daily.GreaterThan(s.cfg.DailyLimit) {
			return errors.ErrDailyLimitExceeded.WithDetails(map[string]interface{}{
				"window": "daily",
				"limit":  s.cfg.DailyLimit.String(),
			})
		}
		monthly := from.MonthlySpent.Add(totalDebit)
		if monthly.GreaterThan(s.cfg.MonthlyLimit) {
			return errors.ErrDailyLimitExceeded.
				WithMessage("monthly spending limit exceeded").
				WithDetails(map[string]interface{}{
					"window": "monthly",
					"limit":  s.cfg.MonthlyLimit.String(),
				})
		}

		from.Balance = from.Balance.Sub(totalDebit)
		from.DailySpent = daily
		from.MonthlySpent = monthly
		to.Balance = to.Balance.Add(converted)

		if err := r.UpdateWallet(from); err != nil {
			return err
		}
		if err := r.UpdateWallet(to); err != nil {
			return err
		}

		send := &models.Transaction{
			TransactionID:        txnID,
			UserID:               from.UserID,
			Type:                 models.TransactionTypeTransfer,
			Direction:            models.DirectionSend,
			SenderWalletNumber:   from.WalletNumber,
			ReceiverWalletNumber: to.WalletNumber,
			SenderName:           senderUser.Name,
			ReceiverName:         recipientUser.Name,
			Amount:               amount,
			Fee:                  fee,
			Currency:             from.Currency,
			Description:          req.Note,
			StatusModel:          models.StatusModel{Status: models.StatusCreated},
		}
		receive := &models.Transaction{
			TransactionID:        txnID,
			UserID:               to.UserID,
			Type:                 models.TransactionTypeTransfer,
			Direction:            models.DirectionReceive,
			SenderWalletNumber:   from.WalletNumber,
			ReceiverWalletNumber: to.WalletNumber,
			SenderName:           senderUser.Name,
			ReceiverName:         recipientUser.Name,
			Amount:               converted,
			Fee:                  decimal.Zero,
			Currency:             to.Currency,
			Description:          req.Note,
			StatusModel:          models.StatusModel{Status: models.StatusCreated},
		}
		if rateUsed != nil {
			send.ConvertedAmount = &converted
			send.ExchangeRate = rateUsed
			send.ConvertedCurrency = to.Currency
			receive.ExchangeRate = rateUsed
		}
		if err := status.Transition(&send.StatusModel, txnID, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := status.Transition(&receive.StatusModel, txnID, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := r.CreateTransactions([]*models.Transaction{send, receive}); err != nil {
			return err
		}

		platform, err := r.GetPlatformWalletForUpdate(from.Currency)
		if err != nil {
			return err
		}
		platform.Balance = platform.Balance.Add(fee)
		platform.TxCount++
		if err := r.UpdatePlatformWallet(platform); err != nil {
			return err
		}
		if err := r.CreateFeeRecord(&models.FeeRecord{
			TransactionID: txnID,
			UserID:        from.UserID,
			Currency:      from.Currency,
			Amount:        fee,
			USDEquivalent: feeEquivalent,
		}); err != nil {
			return err
		}

		result = &TransferResult{
			TransactionID: txnID,
			Amount:        amount,
			Fee:           fee,
			Currency:      from.Currency,
			RecipientName: recipientUser.Name,
			NewBalance:    from.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, sender.UserID, recipient.UserID)
	logger.Info("transfer completed",
		zap.String("transaction_id", txnID),
		zap.Uint("sender_id", sender.UserID),
		zap.Uint("recipient_id", recipient.UserID),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
		zap.String("currency", sender.Currency))
	return result, nil
}

func (s *service) ConfirmDeposit(ctx context.Context, conf DepositConfirmation) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		payment, err := r.GetPaymentByReferenceForUpdate(conf.Reference)
		if err != nil {
			if errors.Is(err, repositories.ErrPaymentNotFound) {
				return errors.ErrTransactionNotFound.WithMessage("no payment with this reference")
			}
			return err
		}
		if payment.Processed {
			return nil
		}

		if err := status.Transition(&payment.StatusModel, payment.Reference, models.StatusCompleted, now); err != nil {
			return err
		}

		wallet, err := r.GetWalletByUserID(payment.UserID)
		if err != nil {
			return err
		}
		locked, err := r.GetWalletForUpdate(wallet.ID)
		if err != nil {
			return err
		}

		if conf.Amount.IsPositive() && !conf.Amount.Equal(payment.Amount) {
			logger.Warn("gateway-verified amount differs from initiated amount",
				zap.String("reference", payment.Reference),
				zap.String("initiated", payment.Amount.String()),
				zap.String("verified", conf.Amount.String()))
			payment.Amount = conf.Amount
		}

		payment.Processed = true
		payment.GatewayStatus = conf.GatewayStatus
		if conf.Channel != "" {
			payment.Channel = conf.Channel
		}
		paidAt := now
		payment.PaidAt = &paidAt
		if err := r.UpdatePayment(payment); err != nil {
			return err
		}

		locked.Balance = locked.Balance.Add(payment.Amount)
		if err := r.UpdateWallet(locked); err != nil {
			return err
		}

		receipt := &models.Transaction{
			TransactionID:        "TXN-" + uuid.NewString(),
			UserID:               locked.UserID,
			Type:                 models.TransactionTypeDeposit,
			Direction:            models.DirectionReceive,
			ReceiverWalletNumber: locked.WalletNumber,
			Amount:               payment.Amount,
			Fee:                  decimal.Zero,
			Currency:             payment.Currency,
			Reference:            payment.Reference,
			GatewayStatus:        conf.GatewayStatus,
			StatusModel:          models.StatusModel{Status: models.StatusCreated},
		}
		if err := status.Transition(&receipt.StatusModel, payment.Reference, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := r.CreateTransaction(receipt); err != nil {
			return err
		}

		applied = true
		userID = locked.UserID
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
		Action:    "deposit.completed",
		Entity:    "payment",
		EntityRef: conf.Reference,
	})
	return true, nil
}

func (s *service) FailDeposit(ctx context.Context, reference, gatewayStatus, reason string) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		payment, err := r.GetPaymentByReferenceForUpdate(reference)
		if err != nil {
			if errors.Is(err, repositories.ErrPaymentNotFound) {
				return errors.ErrTransactionNotFound.WithMessage("no payment with this reference")
			}
			return err
		}
		if payment.Processed || payment.Status == models.StatusFailed {
			return nil
		}

		if err := status.Transition(&payment.StatusModel, payment.Reference, models.StatusFailed, now); err != nil {
			return err
		}
		payment.GatewayStatus = gatewayStatus
		if reason != "" {
			if payment.Metadata == nil {
				payment.Metadata = models.JSON{}
			}
			payment.Metadata["fail_reason"] = reason
		}
		if err := r.UpdatePayment(payment); err != nil {
			return err
		}

		applied = true
		userID = payment.UserID
		return nil
	})
	if err != nil {
		return false, errors.From(err)
	}
	if applied {
		s.auditor.Record(ctx, audit.Entry{
			UserID:    &userID,
			Action:    "deposit.failed",
			Entity:    "payment",
			EntityRef: reference,
			Detail:    map[string]interface{}{"reason": reason},
		})
	}
	return applied, nil
}

func (s *service) CreditCollection(ctx context.Context, externalID, gatewayStatus string) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		momo, err := r.GetMomoByExternalIDForUpdate(externalID)
		if err != nil {
			if errors.Is(err, repositories.ErrMomoNotFound) {
				return errors.ErrTransactionNotFound.WithMessage("no collection with this reference")
			}
			return err
		}
		if momo.Processed {
			return nil
		}

		if err := status.Transition(&momo.StatusModel, momo.ExternalID, models.StatusCompleted, now); err != nil {
			return err
		}

		wallet, err := r.GetWalletByUserID(momo.UserID)
		if err != nil {
			return err
		}
		locked, err := r.GetWalletForUpdate(wallet.ID)
		if err != nil {
			return err
		}

		momo.Processed = true
		momo.GatewayStatus = gatewayStatus
		if err := r.UpdateMomoTransaction(momo); err != nil {
			return err
		}

		locked.Balance = locked.Balance.Add(momo.Amount)
		if err := r.UpdateWallet(locked); err != nil {
			return err
		}

		receipt := &models.Transaction{
			TransactionID:        "TXN-" + uuid.NewString(),
			UserID:               locked.UserID,
			Type:                 models.TransactionTypeDeposit,
			Direction:            models.DirectionReceive,
			ReceiverWalletNumber: locked.WalletNumber,
			Amount:               momo.Amount,
			Fee:                  decimal.Zero,
			Currency:             momo.Currency,
			Reference:            momo.ExternalID,
			GatewayStatus:        gatewayStatus,
			Metadata:             models.JSON{"channel": "momo"},
			StatusModel:          models.StatusModel{Status: models.StatusCreated},
		}
		if err := status.Transition(&receipt.StatusModel, momo.ExternalID, models.StatusCompleted, now); err != nil {
			return err
		}
		if err := r.CreateTransaction(receipt); err != nil {
			return err
		}

		applied = true
		userID = locked.UserID
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
		Action:    "collection.completed",
		Entity:    "momo_transaction",
		EntityRef: externalID,
	})
	return true, nil
}

func (s *service) FailCollection(ctx context.Context, externalID, gatewayStatus, reason string) (bool, error) {
	now := s.now()
	applied := false
	var userID uint

	err := s.ledger.ExecuteInTransaction(func(r repositories.LedgerRepository) error {
		momo, err := r.GetMomoByExternalIDForUpdate(externalID)
		if err != nil {
			if errors.Is(err, repositories.ErrMomoNotFound) {
				return errors.ErrTransactionNotFound.WithMessage("no collection with this reference")
			}
			return err
		}
		if momo.Processed || momo.Status == models.StatusFailed {
			return nil
		}

		if err := status.Transition(&momo.StatusModel, momo.ExternalID, models.StatusFailed, now); err != nil {
			return err
		}
		momo.GatewayStatus = gatewayStatus
		momo.Reason = reason
		if err := r.UpdateMomoTransaction(momo); err != nil {
			return err
		}

		applied = true
		userID = momo.UserID
		return nil
	})
	if err != nil {
		return false, errors.From(err)
	}
	if applied {
		s.auditor.Record(ctx, audit.Entry{
			UserID:    &userID,
			Action:    "collection.failed",
			Entity:    "momo_transaction",
			EntityRef: externalID,
			Detail:    map[string]interface{}{"reason": reason},
		})
	}
	return applied, nil
}

func (s *service) Wallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if wallet, err := s.cache.GetWallet(ctx, userID); err == nil && wallet != nil {
			return wallet, nil
		}
	}

	wallet, err := s.ledger.GetWalletByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Internal(err)
	}

	if s.cache != nil {
		if err := s.cache.CacheWallet(ctx, wallet); err != nil {
			logger.Warn("failed to cache wallet", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return wallet, nil
}

func (s *service) Lookup(ctx context.Context, walletNumber string) (*LookupResult, error) {
	number := strings.ToUpper(strings.TrimSpace(walletNumber))
	wallet, err := s.ledger.GetWalletByNumber(number)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Internal(err)
	}

	owner, err := s.users.GetByID(wallet.UserID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &LookupResult{
		WalletNumber: wallet.WalletNumber,
		Name:         owner.Name,
		Currency:     wallet.Currency,
	}, nil
}

func (s *service) Transactions(ctx context.Context, userID uint, offset, limit int) ([]models.Transaction, int64, error) {
	txs, total, err := s.ledger.ListTransactions(userID, offset, limit)
	if err != nil {
		return nil, 0, errors.Internal(err)
	}
	return txs, total, nil
}

func (s *service) invalidate(ctx context.Context, userIDs ...uint) {
	if s.cache == nil {
		return
	}
	for _, id := range userIDs {
		if err := s.cache.InvalidateWallet(ctx, id); err != nil {
			logger.Warn("failed to invalidate wallet cache", zap.Uint("user_id", id), zap.Error(err))
		}
	}
}

// rollSpendWindows resets a wallet's spend counters when their window
// has rolled over, lazily, at debit time.
func rollSpendWindows(w *models.Wallet, now time.Time) {
	if !w.SameDay(now) {
		w.DailySpent = decimal.Zero
		w.DailyWindow = now
	}
	if !w.SameMonth(now) {
		w.MonthlySpent = decimal.Zero
		w.MonthlyWindow = now
	}
}
