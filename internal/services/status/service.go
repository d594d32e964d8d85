// Package status owns the transaction state machine shared by
// transactions, payments, withdrawals and mobile-money records.
//
// Webhooks arrive at-least-once and out-of-order, so every state
// change in the system funnels through Transition: it is the guard
// that keeps a replayed "success" callback from reviving a refunded
// withdrawal.
package status

import (
	"strings"
	"time"

	"qrwallet/internal/errors"
	"qrwallet/internal/models"
)

// allowed maps each state to the destinations it may move to. States
// absent from a set are rejected; refunded and cancelled allow nothing.
var allowed = map[string]map[string]bool{
	models.StatusCreated: {
		models.StatusPending:   true,
		models.StatusCompleted: true,
		models.StatusCancelled: true,
	},
	models.StatusPending: {
		models.StatusProcessing: true,
		models.StatusPendingOTP: true,
		models.StatusCompleted:  true,
		models.StatusFailed:     true,
		models.StatusCancelled:  true,
	},
	models.StatusPendingOTP: {
		models.StatusProcessing: true,
		models.StatusFailed:     true,
		models.StatusCancelled:  true,
	},
	models.StatusProcessing: {
		models.StatusCompleted: true,
		models.StatusFailed:    true,
	},
	// Once completed, the only way out is a refund.
	models.StatusCompleted: {
		models.StatusRefunded: true,
	},
	// failed -> pending is the retry path.
	models.StatusFailed: {
		models.StatusRefunded: true,
		models.StatusPending:  true,
	},
	models.StatusRefunded:  {},
	models.StatusCancelled: {},
}

// gateway vocabulary mapped to internal states, matched case-insensitively.
var normalized = map[string]string{
	"success":    models.StatusCompleted,
	"successful": models.StatusCompleted,
	"pending":    models.StatusPending,
	"failed":     models.StatusFailed,
}

// Normalize translates a gateway-reported status into the internal
// vocabulary. Internal states pass through unchanged; anything else is
// rejected rather than guessed at.
func Normalize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := normalized[s]; ok {
		return mapped, nil
	}
	if _, ok := allowed[s]; ok {
		return s, nil
	}
	return "", errors.ErrUnknownStatus.WithDetails(map[string]interface{}{
		"status": raw,
	})
}

// CanTransition reports whether from -> to is a legal move. Both sides
// must already be internal vocabulary.
func CanTransition(from, to string) bool {
	return allowed[from][to]
}

// Terminal reports whether a state permits no further transitions.
func Terminal(state string) bool {
	return state == models.StatusRefunded || state == models.StatusCancelled
}

// Transition validates and applies a state change in memory: the
// destination is normalized, checked against the machine, appended to
// the record's history and stamped onto its bookkeeping columns. The
// caller persists the record inside its own transaction; ref names the
// record in the rejection details.
func Transition(rec *models.StatusModel, ref, to string, at time.Time) error {
	dest, err := Normalize(to)
	if err != nil {
		return err
	}
	// Same-state moves are rejected too: a replayed "completed" webhook
	// must surface as an invalid transition, not slip through.
	if !CanTransition(rec.Status, dest) {
		return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from":      rec.Status,
			"to":        dest,
			"reference": ref,
		})
	}
	rec.RecordTransition(dest, at)
	return nil
}
