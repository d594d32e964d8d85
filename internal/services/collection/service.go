// Package collection runs mobile-money deposits: a request-to-pay is
// pushed to the payer's phone and the operator's callback settles it
// once the outcome has been verified.
package collection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/services/audit"
	"qrwallet/internal/services/status"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"
	"qrwallet/internal/validation"
)

type Config struct {
	// Production makes cross-verification mandatory: a callback that
	// cannot be confirmed with the operator is rejected instead of
	// trusted.
	Production bool
}

type Service interface {
	// Collect pushes a request-to-pay to the payer's phone. The money
	// arrives later, through the operator's callback.
	Collect(ctx context.Context, userID uint, req Request) (*Result, error)
	// ProcessCallback settles a collection reported by the operator.
	ProcessCallback(ctx context.Context, externalID, callbackStatus string) (bool, error)
}

type service struct {
	repo    repositories.LedgerRepository
	momo    Gateway
	ledger  Ledger
	auditor audit.Service
	cfg     Config
	now     func() time.Time
}

// NewService builds the collection service. All dependencies are
// required.
func NewService(repo repositories.LedgerRepository, momo Gateway, settle Ledger, auditor audit.Service, cfg Config) Service {
	if repo == nil {
		panic("ledger repository is required")
	}
	if momo == nil {
		panic("momo gateway is required")
	}
	if settle == nil {
		panic("ledger service is required")
	}
	if auditor == nil {
		panic("audit service is required")
	}
	return &service{
		repo:    repo,
		momo:    momo,
		ledger:  settle,
		auditor: auditor,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *service) Collect(ctx context.Context, userID uint, req Request) (*Result, error) {
	phone := utils.NormalizePhone(req.Phone)
	v := validation.New()
	v.Phone("phone", phone)
	if !v.Valid() {
		return nil, errors.ErrValidation.WithDetails(v.Details())
	}
	if err := validation.ValidateAmount(req.Amount); err != nil {
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

	now := s.now()
	momoTx := &models.MomoTransaction{
		UserID:       userID,
		Kind:         models.MomoKindCollection,
		ExternalID:   uuid.NewString(),
		PhoneNumber:  phone,
		Amount:       req.Amount,
		Currency:     wallet.Currency,
		PayerMessage: "wallet top-up",
		StatusModel:  models.StatusModel{Status: models.StatusCreated},
	}
	if err := s.repo.CreateMomoTransaction(momoTx); err != nil {
		return nil, errors.Internal(err)
	}

	if err := s.momo.RequestToPay(ctx, momoTx.ExternalID, req.Amount, wallet.Currency, phone, momoTx.PayerMessage, momoTx.ExternalID); err != nil {
		// The request never reached the operator; cancel the record so
		// the external ID cannot be settled later.
		if terr := status.Transition(&momoTx.StatusModel, momoTx.ExternalID, models.StatusCancelled, now); terr == nil {
			if uerr := s.repo.UpdateMomoTransaction(momoTx); uerr != nil {
				logger.Error("could not cancel unstartable collection",
					zap.String("external_id", momoTx.ExternalID),
					zap.Error(uerr))
			}
		}
		return nil, errors.From(err)
	}

	if err := status.Transition(&momoTx.StatusModel, momoTx.ExternalID, models.StatusPending, now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMomoTransaction(momoTx); err != nil {
		return nil, errors.Internal(err)
	}

	s.auditor.Record(ctx, audit.Entry{
		UserID:    &userID,
		Action:    "collection.initiated",
		Entity:    "momo_transaction",
		EntityRef: momoTx.ExternalID,
		Detail: map[string]interface{}{
			"amount":   req.Amount.String(),
			"currency": wallet.Currency,
		},
	})

	return &Result{ExternalID: momoTx.ExternalID, Status: models.StatusPending}, nil
}

func (s *service) ProcessCallback(ctx context.Context, externalID, callbackStatus string) (bool, error) {
	// The external ID must belong to a known collection; callbacks
	// never create state.
	if _, err := s.getCollection(externalID); err != nil {
		return false, err
	}

	verified := callbackStatus
	reason := ""

	st, qerr := s.momo.RequestToPayStatus(ctx, externalID)
	switch {
	case qerr == nil:
		if statusMismatch(callbackStatus, st.Status) {
			logger.Warn("callback status disagrees with operator query",
				zap.String("external_id", externalID),
				zap.String("callback", callbackStatus),
				zap.String("queried", st.Status))
		}
		verified = st.Status
		reason = st.Reason
	case s.cfg.Production:
		logger.Error("cross-verification failed, rejecting callback",
			zap.String("external_id", externalID),
			zap.Error(qerr))
		return false, errors.ErrCrossVerification.WithErr(qerr)
	default:
		logger.Warn("cross-verification failed, trusting callback",
			zap.String("external_id", externalID),
			zap.String("callback", callbackStatus),
			zap.Error(qerr))
	}

	normalized, err := status.Normalize(verified)
	if err != nil {
		return false, nil
	}
	switch normalized {
	case models.StatusCompleted:
		return s.ledger.CreditCollection(ctx, externalID, verified)
	case models.StatusFailed:
		if reason == "" {
			reason = "operator reported the collection failed"
		}
		return s.ledger.FailCollection(ctx, externalID, verified, reason)
	default:
		return false, nil
	}
}

func (s *service) getCollection(externalID string) (*models.MomoTransaction, error) {
	m, err := s.repo.GetMomoByExternalID(externalID)
	if err != nil {
		if errors.Is(err, repositories.ErrMomoNotFound) {
			return nil, errors.ErrTransactionNotFound.WithMessage("no collection with this reference")
		}
		return nil, errors.Internal(err)
	}
	return m, nil
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
