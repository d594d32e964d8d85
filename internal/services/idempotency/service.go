// Package idempotency implements the duplicate-request guard wrapped
// around every money-moving operation.
//
// The claim step is the only part that must be race-free, so it runs
// alone in a locked transaction; the guarded operation itself executes
// afterwards, free to open its own transactions.
package idempotency

import (
	"encoding/json"
	"fmt"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils/logger"
	"qrwallet/internal/validation"

	"go.uber.org/zap"
)

// DefaultTTL is how long a claimed key shields its operation.
const DefaultTTL = 24 * time.Hour

// Operation is the guarded work. Its result must marshal to a JSON
// object; the guard stores it verbatim for replays.
type Operation func() (interface{}, error)

// Outcome is what the guard hands back: the operation's JSON document
// and whether it was served from the cache of a previous completion.
type Outcome struct {
	Result models.JSON
	Replay bool
}

type Service interface {
	// Run claims key for userID and executes op at most once.
	Run(key, operation string, userID uint, op Operation) (*Outcome, error)
	// Sweep garbage-collects keys that expired before now.
	Sweep(now time.Time) (int64, error)
}

type service struct {
	repo repositories.GuardRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewService(repo repositories.GuardRepository, ttl time.Duration) Service {
	if repo == nil {
		panic("guard repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &service{repo: repo, ttl: ttl, now: time.Now}
}

func (s *service) Run(key, operation string, userID uint, op Operation) (*Outcome, error) {
	if err := validation.ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}

	claim, err := s.claim(key, operation, userID)
	if err != nil {
		return nil, err
	}
	if claim.replay != nil {
		logger.Debug("idempotent replay",
			zap.String("operation", operation),
			zap.Uint("user_id", userID),
		)
		return &Outcome{Result: claim.replay, Replay: true}, nil
	}

	value, opErr := op()
	if opErr != nil {
		s.release(claim.record, opErr)
		return nil, opErr
	}

	doc, err := toDocument(value)
	if err != nil {
		// The operation already committed; a result we cannot cache is
		// an internal bug, not a reason to report failure upstream.
		logger.Error("idempotency result not cacheable",
			zap.String("operation", operation),
			zap.Error(err),
		)
		doc = models.JSON{}
	}

	claim.record.Status = models.IdempotencyStatusCompleted
	claim.record.Result = doc
	claim.record.LastError = ""
	if err := s.repo.UpdateIdempotencyKey(claim.record); err != nil {
		logger.Error("idempotency completion not persisted",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	return &Outcome{Result: doc}, nil
}

type claimResult struct {
	record *models.IdempotencyKey
	replay models.JSON
}

// claim performs the atomic read-modify-write over the key record.
// Exactly one of record/replay is set on success.
func (s *service) claim(key, operation string, userID uint) (*claimResult, error) {
	now := s.now()
	out := &claimResult{}

	err := s.repo.ExecuteInTransaction(func(tx repositories.GuardRepository) error {
		record, err := tx.GetIdempotencyKeyForUpdate(key)
		if err == repositories.ErrIdempotencyKeyNotFound {
			record = &models.IdempotencyKey{
				Key:       key,
				UserID:    userID,
				Operation: operation,
				Status:    models.IdempotencyStatusPending,
				ExpiresAt: now.Add(s.ttl),
			}
			if err := tx.CreateIdempotencyKey(record); err != nil {
				if err == repositories.ErrIdempotencyKeyExists {
					return errors.ErrDuplicateRequest
				}
				return err
			}
			out.record = record
			return nil
		}
		if err != nil {
			return err
		}

		// Key reuse across identities is never allowed.
		if record.UserID != userID {
			return errors.ErrPermissionDenied.WithDetails(map[string]interface{}{
				"reason": "idempotency key belongs to another user",
			})
		}

		switch record.Status {
		case models.IdempotencyStatusCompleted:
			out.replay = record.Result
			if out.replay == nil {
				out.replay = models.JSON{}
			}
			return nil
		case models.IdempotencyStatusFailed:
			// Previous attempt failed; let the client retry under the
			// same key.
			record.Status = models.IdempotencyStatusPending
			record.ExpiresAt = now.Add(s.ttl)
			if err := tx.UpdateIdempotencyKey(record); err != nil {
				return err
			}
			out.record = record
			return nil
		default:
			if record.Expired(now) {
				// The claiming process died without resolving the key.
				record.Status = models.IdempotencyStatusPending
				record.ExpiresAt = now.Add(s.ttl)
				if err := tx.UpdateIdempotencyKey(record); err != nil {
					return err
				}
				out.record = record
				return nil
			}
			return errors.ErrDuplicateRequest.WithDetails(map[string]interface{}{
				"operation": record.Operation,
			})
		}
	})
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		// Storage trouble during the claim fails closed: without the
		// claim there is no duplicate protection for a money movement.
		return nil, errors.Internal(fmt.Errorf("idempotency claim: %w", err))
	}
	return out, nil
}

// release marks the claim failed so the client can retry.
func (s *service) release(record *models.IdempotencyKey, cause error) {
	record.Status = models.IdempotencyStatusFailed
	record.LastError = cause.Error()
	if err := s.repo.UpdateIdempotencyKey(record); err != nil {
		logger.Error("idempotency failure not persisted",
			zap.String("key_operation", record.Operation),
			zap.Error(err),
		)
	}
}

func (s *service) Sweep(now time.Time) (int64, error) {
	return s.repo.DeleteExpiredIdempotencyKeys(now)
}

func toDocument(value interface{}) (models.JSON, error) {
	if value == nil {
		return models.JSON{}, nil
	}
	if doc, ok := value.(models.JSON); ok {
		return doc, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var doc models.JSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
