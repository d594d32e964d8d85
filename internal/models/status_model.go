package models

import "time"

// Lifecycle states shared by transactions, payments, withdrawals and
// mobile-money records. refunded and cancelled are terminal.
const (
	StatusCreated    = "created"
	StatusPending    = "pending"
	StatusPendingOTP = "pending_otp"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
	StatusCancelled  = "cancelled"
)

// StatusModel carries the state-machine columns every financial record
// shares, embedded the way gorm.Model is. Transitions go through the
// status service, which validates before calling RecordTransition.
type StatusModel struct {
	Status          string `gorm:"not null;default:'created'"`
	PreviousStatus  string
	StatusUpdatedAt *time.Time
	StatusHistory   StatusHistory `gorm:"type:jsonb"`
}

// RecordTransition mutates the receiver in memory: appends the change
// to the history and stamps the bookkeeping columns. Callers persist
// the record inside their own transaction.
func (m *StatusModel) RecordTransition(to string, at time.Time) {
	m.StatusHistory = append(m.StatusHistory, StatusChange{From: m.Status, To: to, At: at})
	m.PreviousStatus = m.Status
	m.Status = to
	stamp := at
	m.StatusUpdatedAt = &stamp
}

// Terminal reports whether the record can never change state again.
func (m *StatusModel) Terminal() bool {
	return m.Status == StatusRefunded || m.Status == StatusCancelled
}
