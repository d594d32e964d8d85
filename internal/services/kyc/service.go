// Package kyc gates financial operations on identity verification and
// manages the submission/review flow behind it.
package kyc

import (
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionRequest carries a user's verification documents.
type SubmissionRequest struct {
	DocumentType string
	DocumentRef  string
	ScanURL      string
}

// StatusView is the user-facing verification state.
type StatusView struct {
	Status       string     `json:"status"`
	DocumentType string     `json:"document_type,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
}

type Service interface {
	// Enforce allows verified users through and rejects everyone else.
	// It is called at the start of every operation that moves money or
	// reveals financial state.
	Enforce(userID uint) error
	Status(userID uint) (*StatusView, error)
	Submit(userID uint, req SubmissionRequest) (*models.KYCSubmission, error)
	Review(reviewerID, submissionID uint, approve bool, reason string) error
	ListPending(offset, limit int) ([]*models.KYCSubmission, int64, error)
}

type service struct {
	users repositories.UserRepository
}

func NewService(users repositories.UserRepository) Service {
	if users == nil {
		panic("user repository is required")
	}
	return &service{users: users}
}

func (s *service) Enforce(userID uint) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return errors.ErrUserNotFound
		}
		return errors.Internal(err)
	}

	switch user.KYCStatus {
	case models.KYCStatusVerified:
		return nil
	case models.KYCStatusPending:
		return errors.ErrKYCPending
	case models.KYCStatusRejected:
		return errors.ErrKYCRejected
	}

	// Rows written before the status column existed carry only the
	// boolean flags; migrate them forward once.
	if user.IsVerified || user.KYCApproved {
		if err := s.users.UpdateKYCStatus(userID, models.KYCStatusVerified); err != nil {
			logger.Warn("legacy kyc migration failed",
				zap.Uint("user_id", userID),
				zap.Error(err),
			)
			// The flags still prove completion; let the operation run.
		} else {
			logger.Info("migrated legacy kyc flags",
				zap.Uint("user_id", userID),
			)
		}
		return nil
	}

	return errors.ErrKYCRequired
}

func (s *service) Status(userID uint) (*StatusView, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.Internal(err)
	}

	view := &StatusView{
		Status:       user.KYCStatus,
		DocumentType: user.KYCDocumentType,
		SubmittedAt:  user.KYCSubmittedAt,
		ReviewedAt:   user.KYCReviewedAt,
	}
	if user.KYCStatus == models.KYCStatusRejected {
		if sub, err := s.users.GetLatestKYCSubmission(userID); err == nil {
			view.RejectReason = sub.RejectReason
		}
	}
	return view, nil
}

func (s *service) Submit(userID uint, req SubmissionRequest) (*models.KYCSubmission, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.Internal(err)
	}
	if user.KYCStatus == models.KYCStatusVerified || user.IsVerified || user.KYCApproved {
		return nil, errors.ErrKYCAlreadyVerified
	}
	if user.KYCStatus == models.KYCStatusPending {
		return nil, errors.ErrKYCAlreadySubmitted
	}

	sub := &models.KYCSubmission{
		UserID:       userID,
		Status:       models.KYCStatusPending,
		DocumentType: req.DocumentType,
		DocumentRef:  req.DocumentRef,
		ScanURL:      req.ScanURL,
	}

	now := time.Now()
	err = s.users.ExecuteInTransaction(func(tx repositories.UserRepository) error {
		if err := tx.CreateKYCSubmission(sub); err != nil {
			return err
		}
		user.KYCStatus = models.KYCStatusPending
		user.KYCDocumentType = req.DocumentType
		user.KYCDocumentRef = req.DocumentRef
		user.KYCSubmittedAt = &now
		return tx.Update(user)
	})
	if err != nil {
		return nil, errors.Internal(err)
	}
	return sub, nil
}

func (s *service) Review(reviewerID, submissionID uint, approve bool, reason string) error {
	sub, err := s.users.GetKYCSubmissionByID(submissionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.ErrValidation.WithMessage("kyc submission %d not found", submissionID)
		}
		return errors.Internal(err)
	}
	if sub.Status != models.KYCStatusPending {
		return errors.ErrValidation.WithMessage("kyc submission already reviewed")
	}

	decision := models.KYCStatusRejected
	if approve {
		decision = models.KYCStatusVerified
	}

	now := time.Now()
	err = s.users.ExecuteInTransaction(func(tx repositories.UserRepository) error {
		sub.Status = decision
		sub.ReviewedBy = &reviewerID
		sub.ReviewedAt = &now
		sub.RejectReason = reason
		if err := tx.UpdateKYCSubmission(sub); err != nil {
			return err
		}
		return tx.UpdateKYCStatus(sub.UserID, decision)
	})
	if err != nil {
		return errors.Internal(err)
	}

	logger.Info("kyc reviewed",
		zap.Uint("submission_id", submissionID),
		zap.Uint("user_id", sub.UserID),
		zap.String("decision", decision),
	)
	return nil
}

func (s *service) ListPending(offset, limit int) ([]*models.KYCSubmission, int64, error) {
	return s.users.ListPendingKYCSubmissions(offset, limit)
}
