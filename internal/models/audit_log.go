package models

import "time"

// Audit actions.
const (
	AuditActionLogin         = "auth.login"
	AuditActionLoginFailed   = "auth.login_failed"
	AuditActionRegister      = "auth.register"
	AuditActionTransfer      = "wallet.transfer"
	AuditActionDeposit       = "wallet.deposit"
	AuditActionWithdrawal    = "wallet.withdrawal"
	AuditActionRefund        = "wallet.refund"
	AuditActionKYCSubmit     = "kyc.submit"
	AuditActionKYCDecision   = "kyc.decision"
	AuditActionWebhook       = "webhook.received"
	AuditActionWalletLookup  = "wallet.lookup"
	AuditActionStatusChange  = "transaction.status_change"
	AuditActionConfigReject  = "config.rejected"
	AuditActionLimitExceeded = "rate_limit.exceeded"
)

// AuditLog is a best-effort trail entry. Writers never fail the caller
// on audit errors. IPHash stores a salted SHA-256 of the caller address
// so raw IPs never land in the table.
type AuditLog struct {
	ID        uint   `gorm:"primarykey"`
	UserID    *uint  `gorm:"index"`
	Action    string `gorm:"index;not null"`
	Entity    string
	EntityRef string `gorm:"index"`
	IPHash    string
	UserAgent string
	Detail    JSON `gorm:"type:jsonb"`
	CreatedAt time.Time
}
