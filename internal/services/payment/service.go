// Package payment runs the card/bank deposit flow: a hosted checkout
// is initialized at the gateway, and the charge later settles into the
// ledger through verification, never on the callback's word alone.
package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/services/ledger"
	"qrwallet/internal/services/status"
	"qrwallet/internal/utils/logger"
	"qrwallet/internal/validation"
)

type Config struct {
	// CallbackURL is where the gateway sends the user after checkout.
	CallbackURL string
	// Production switches cross-verification from advisory to
	// mandatory: a webhook that cannot be confirmed with the gateway
	// is rejected instead of trusted.
	Production bool
}

type Service interface {
	// InitDeposit creates the payment record and opens a checkout
	// session for it.
	InitDeposit(ctx context.Context, userID uint, amount decimal.Decimal) (*DepositSession, error)
	// VerifyDeposit asks the gateway for the authoritative charge
	// state and settles the deposit accordingly.
	VerifyDeposit(ctx context.Context, reference string) (*VerifyResult, error)
	// ProcessChargeEvent settles a charge reported by webhook. The
	// callback status is advisory; only outside production does a
	// failed gateway query fall back to it.
	ProcessChargeEvent(ctx context.Context, reference, callbackStatus string) (bool, error)
}

type service struct {
	repo    repositories.LedgerRepository
	charges ChargeGateway
	ledger  Ledger
	users   UserDirectory
	auditor audit.Service
	cfg     Config
	now     func() time.Time
}

// NewService builds the deposit service. All dependencies are
// required.
func NewService(repo repositories.LedgerRepository, charges ChargeGateway, settle Ledger, users UserDirectory, auditor audit.Service, cfg Config) Service {
	if repo == nil {
		panic("ledger repository is required")
	}
	if charges == nil {
		panic("charge gateway is required")
	}
	if settle == nil {
		panic("ledger service is required")
	}
	if users == nil {
		panic("user directory is required")
	}
	if auditor == nil {
		panic("audit service is required")
	}
	return &service{
		repo:    repo,
		charges: charges,
		ledger:  settle,
		users:   users,
		auditor: auditor,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *service) InitDeposit(ctx context.Context, userID uint, amount decimal.Decimal) (*DepositSession, error) {
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, err
	}

	wallet, err := s.repo.GetWalletByUserID(userID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Internal(err)
	}
	if err := validation.ValidateWalletOperation(wallet); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, errors.Internal(err)
	}

	now := s.now()
	payment := &models.Payment{
		UserID:      userID,
		Reference:   "DEP-" + uuid.NewString(),
		Amount:      amount,
		Currency:    wallet.Currency,
		StatusModel: models.StatusModel{Status: models.StatusCreated},
	}
	if err := s.repo.CreatePayment(payment); err != nil {
		return nil, errors.Internal(err)
	}

	session, err := s.charges.InitializeCharge(ctx, user.Email, amount, wallet.Currency, payment.Reference, s.cfg.CallbackURL)
	if err != nil {
		// The record never reached the gateway; cancel it so the
		// reference cannot be settled later.
		if terr := status.Transition(&payment.StatusModel, payment.Reference, models.StatusCancelled, now); terr == nil {
			if uerr := s.repo.UpdatePayment(payment); uerr != nil {
				logger.Error("could not cancel unstartable deposit",
					zap.String("reference", payment.Reference),
					zap.Error(uerr))
			}
		}
		return nil, errors.From(err)
	}

	payment.AuthorizationURL = session.AuthorizationURL
	payment.AccessCode = session.AccessCode
	if err := status.Transition(&payment.StatusModel, payment.Reference, models.StatusPending, now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePayment(payment); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    "deposit.initiated",
		Entity:    "payment",
		EntityRef: payment.Reference,
		Detail: map[string]interface{}{
			"amount":   amount.String(),
			"currency": wallet.Currency,
		},
	})

	return &DepositSession{
		Reference:        payment.Reference,
		AuthorizationURL: session.AuthorizationURL,
		AccessCode:       session.AccessCode,
		Amount:           amount,
		Currency:         wallet.Currency,
	}, nil
}

func (s *service) VerifyDeposit(ctx context.Context, reference string) (*VerifyResult, error) {
	payment, err := s.getPayment(reference)
	if err != nil {
		return nil, err
	}
	if payment.Processed {
		return &VerifyResult{
			Reference: reference,
			Status:    payment.Status,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
		}, nil
	}

	charge, err := s.charges.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, errors.From(err)
	}
	if charge.Currency != "" && charge.Currency != payment.Currency {
		logger.Error("charge settled in unexpected currency",
			zap.String("reference", reference),
			zap.String("initiated", payment.Currency),
			zap.String("verified", charge.Currency))
		return nil, errors.ErrCrossVerification.WithMessage("charge settled in unexpected currency")
	}

	applied, err := s.settle(ctx, reference, charge.Status, charge.Amount, charge.Channel)
	if err != nil {
		return nil, err
	}

	current, err := s.getPayment(reference)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Reference: reference,
		Status:    current.Status,
		Amount:    current.Amount,
		Currency:  current.Currency,
		Credited:  applied && current.Status == models.StatusCompleted,
	}, nil
}

func (s *service) ProcessChargeEvent(ctx context.Context, reference, callbackStatus string) (bool, error) {
	// The payment must exist before anything else happens; webhooks
	// never create state.
	if _, err := s.getPayment(reference); err != nil {
		return false, err
	}

	verified := callbackStatus
	amount := decimal.Zero
	channel := ""

	charge, err := s.charges.VerifyTransaction(ctx, reference)
	switch {
	case err == nil:
		if mismatch(callbackStatus, charge.Status) {
			logger.Warn("callback status disagrees with gateway query",
				zap.String("reference", reference),
				zap.String("callback", callbackStatus),
				zap.String("queried", charge.Status))
		}
		verified = charge.Status
		amount = charge.Amount
		channel = charge.Channel
	case s.cfg.Production:
		logger.Error("cross-verification failed, rejecting webhook",
			zap.String("reference", reference),
			zap.Error(err))
		return false, errors.ErrCrossVerification.WithErr(err)
	default:
		logger.Warn("cross-verification failed, trusting callback",
			zap.String("reference", reference),
			zap.String("callback", callbackStatus),
			zap.Error(err))
	}

	return s.settle(ctx, reference, verified, amount, channel)
}

// settle routes a gateway-confirmed status into the ledger. Statuses
// that are neither final success nor failure leave the payment as is.
func (s *service) settle(ctx context.Context, reference, gatewayStatus string, amount decimal.Decimal, channel string) (bool, error) {
	normalized, err := status.Normalize(gatewayStatus)
	if err != nil {
		return false, nil
	}
	switch normalized {
	case models.StatusCompleted:
		return s.ledger.ConfirmDeposit(ctx, ledger.DepositConfirmation{
			Reference:     reference,
			Amount:        amount,
			Channel:       channel,
			GatewayStatus: gatewayStatus,
		})
	case models.StatusFailed:
		return s.ledger.FailDeposit(ctx, reference, gatewayStatus, "gateway reported the charge failed")
	default:
		return false, nil
	}
}

func (s *service) getPayment(reference string) (*models.Payment, error) {
	payment, err := s.repo.GetPaymentByReference(reference)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, errors.ErrTransactionNotFound.WithMessage("no payment with this reference")
		}
		return nil, errors.Internal(err)
	}
	return payment, nil
}

// mismatch compares a callback-claimed status with the queried one in
// normalized terms. Unknown vocabulary counts as a mismatch.
func mismatch(callback, queried string) bool {
	cb, cerr := status.Normalize(callback)
	q, qerr := status.Normalize(queried)
	if cerr != nil || qerr != nil {
		return cerr == nil || qerr == nil
	}
	return cb != q
}
