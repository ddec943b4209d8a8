package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// NotificationService reads and acknowledges the caller's notifications
type NotificationService struct{ *base }

// List returns the caller's notifications; filter unread=true for new ones
func (s *NotificationService) List(ctx context.Context, p *auth.Principal, opts store.ListOptions) ([]model.Notification, error) {
	if err := authenticated(p); err != nil {
		return nil, err
	}
	ns, err := s.store.ListNotifications(ctx, p.ID, opts)
	return ns, wrap(err, "notification")
}

// MarkRead acknowledges one notification
func (s *NotificationService) MarkRead(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if err := authenticated(p); err != nil {
		return err
	}
	return wrap(s.store.MarkNotificationRead(ctx, p.ID, id), "notification")
}

// MarkAllRead acknowledges every unread notification and returns how many
// changed
func (s *NotificationService) MarkAllRead(ctx context.Context, p *auth.Principal) (int64, error) {
	if err := authenticated(p); err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllNotificationsRead(ctx, p.ID)
	return n, wrap(err, "notification")
}
