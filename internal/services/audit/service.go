// Package audit writes the best-effort operation trail. Audit failures
// are logged and swallowed; they never fail the operation they trail.
package audit

import (
	"context"

	"qrwallet/internal/models"
	"qrwallet/internal/repositories"
	"qrwallet/internal/utils"
	"qrwallet/internal/utils/logger"

	"go.uber.org/zap"
)

// ClientInfo identifies the caller of an audited operation. The HTTP
// layer attaches it to the request context with WithClient so services
// never handle raw addresses themselves.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type clientKey struct{}

// WithClient returns a context carrying the caller's client info.
func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

// ClientFromContext returns the caller info attached by WithClient, or
// the zero value when none was attached.
func ClientFromContext(ctx context.Context) ClientInfo {
	if ctx == nil {
		return ClientInfo{}
	}
	info, _ := ctx.Value(clientKey{}).(ClientInfo)
	return info
}

// Entry is one trail record before persistence. IP is the raw caller
// address; the service stores only its salted hash. When IP is empty
// Record falls back to the ClientInfo carried by the context.
type Entry struct {
	UserID    *uint
	Action    string
	Entity    string
	EntityRef string
	IP        string
	UserAgent string
	Detail    map[string]interface{}
}

// Service records audit entries.
type Service interface {
	Record(ctx context.Context, entry Entry)
}

type service struct {
	repo   repositories.GuardRepository
	ipSalt string
}

// NewService creates the audit recorder.
func NewService(repo repositories.GuardRepository, ipSalt string) Service {
	if repo == nil {
		panic("guard repository is required")
	}
	return &service{repo: repo, ipSalt: ipSalt}
}

func (s *service) Record(ctx context.Context, entry Entry) {
	client := ClientFromContext(ctx)
	if entry.IP == "" {
		entry.IP = client.IP
	}
	if entry.UserAgent == "" {
		entry.UserAgent = client.UserAgent
	}

	log := &models.AuditLog{
		UserID:    entry.UserID,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityRef: entry.EntityRef,
		UserAgent: entry.UserAgent,
		Detail:    models.JSON(entry.Detail),
	}
	if entry.IP != "" {
		log.IPHash = utils.HashIP(s.ipSalt, entry.IP)
	}

	if err := s.repo.CreateAuditLog(log); err != nil {
		logger.Warn("audit write failed",
			zap.String("action", entry.Action),
			zap.String("entity_ref", entry.EntityRef),
			zap.Error(err),
		)
	}
}
