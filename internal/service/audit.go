package service

import (
	"context"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// AuditService reads the audit trail. Entries are written by the other
// services as part of their transactions.
type AuditService struct{ *base }

// List returns entries newest first. Callers see their own actions and the
// entries of projects they own; admins see everything.
func (s *AuditService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.AuditLog, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	logs, err := s.store.ListAuditLogs(ctx, p.ID, auth.Can(p, auth.AuditReadAll), opts)
	return logs, wrap(err, "audit log")
}
