// Package ratelimit enforces the per-user sliding-window limits on
// sensitive operations. The persistent window is the source of truth;
// a small in-process guard adds burst protection on wallet lookups.
package ratelimit

import (
	"fmt"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils/logger"

	"go.uber.org/zap"
)

// Rule is one operation's window.
type Rule struct {
	Window time.Duration
	Max    int
}

// Default rules per operation. Anything not listed falls back to
// DefaultRule.
var (
	DefaultRule = Rule{Window: time.Minute, Max: 30}

	DefaultRules = map[string]Rule{
		"transfer.send":       {Window: time.Minute, Max: 10},
		"withdrawal.initiate": {Window: time.Hour, Max: 5},
		"momo.collect":        {Window: time.Minute, Max: 5},
		"wallet.lookup":       {Window: time.Minute, Max: 20},
		"kyc.submit":          {Window: 24 * time.Hour, Max: 3},
	}
)

type Service interface {
	// Enforce counts one attempt for (userID, operation) and rejects
	// with RATE_LIMIT_EXCEEDED when the window is full.
	Enforce(userID uint, operation string) error
	// Sweep garbage-collects windows untouched since before.
	Sweep(before time.Time) (int64, error)
}

type service struct {
	repo  repositories.GuardRepository
	rules map[string]Rule
	def   Rule
	now   func() time.Time
}

func NewService(repo repositories.GuardRepository, rules map[string]Rule) Service {
	if repo == nil {
		panic("guard repository is required")
	}
	if rules == nil {
		rules = DefaultRules
	}
	return &service{repo: repo, rules: rules, def: DefaultRule, now: time.Now}
}

func (s *service) rule(operation string) Rule {
	if r, ok := s.rules[operation]; ok {
		return r
	}
	return s.def
}

func (s *service) Enforce(userID uint, operation string) error {
	rule := s.rule(operation)
	if rule.Max <= 0 {
		return nil
	}
	scope := fmt.Sprintf("user:%d", userID)
	now := s.now()

	var limited *errors.AppError
	err := s.repo.ExecuteInTransaction(func(tx repositories.GuardRepository) error {
		entry, err := tx.GetRateLimitForUpdate(scope, operation)
		if err == repositories.ErrRateLimitNotFound {
			entry = &models.RateLimitEntry{Scope: scope, Action: operation}
		} else if err != nil {
			return err
		}

		cutoff := now.Add(-rule.Window)
		kept := entry.Timestamps[:0:0]
		for _, ts := range entry.Timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}

		if len(kept) >= rule.Max {
			retryAt := kept[0].Add(rule.Window)
			limited = errors.ErrRateLimitExceeded.WithDetails(map[string]interface{}{
				"operation":           operation,
				"retry_after_seconds": int(retryAt.Sub(now).Seconds()) + 1,
			})
			// Persist the prune but not an attempt; rejected requests
			// do not consume window slots.
			entry.Timestamps = kept
			return tx.SaveRateLimit(entry)
		}

		entry.Timestamps = append(kept, now)
		return tx.SaveRateLimit(entry)
	})
	if err != nil {
		// Fails open: a broken limiter store must not take down
		// legitimate traffic.
		logger.Warn("rate limit check failed open",
			zap.String("scope", scope),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil
	}
	if limited != nil {
		return limited
	}
	return nil
}

func (s *service) Sweep(before time.Time) (int64, error) {
	return s.repo.DeleteStaleRateLimits(before)
}
