package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const notificationColumns = `id, profile_id, kind, title, body, entity_type, entity_id, read_at, created_at`

var notificationList = listSpec{
	filters: map[string]filterFunc{
		"kind":   eqString("kind"),
		"unread": unreadFilter,
	},
	sorts: map[string]string{
		"created_at": "created_at",
	},
	defaultSort: "created_at DESC, id ASC",
}

func unreadFilter(q *listQuery, v string) error {
	switch v {
	case "true", "1":
		q.where("read_at IS NULL")
	case "false", "0":
		q.where("read_at IS NOT NULL")
	default:
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func scanNotification(row scanner) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.ProfileID, &n.Kind, &n.Title, &n.Body, &n.EntityType, &n.EntityID, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// InsertNotification stores a notification for one profile
func (s *Store) InsertNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO notifications (id, profile_id, kind, title, body, entity_type, entity_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`,
		n.ID, n.ProfileID, n.Kind, n.Title, n.Body, n.EntityType, n.EntityID,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", ConvertDBError(err))
	}
	return nil
}

// ListNotifications returns a profile's notifications matching opts
func (s *Store) ListNotifications(ctx context.Context, profileID uuid.UUID, opts ListOptions) ([]model.Notification, error) {
	var lq listQuery
	lq.where("profile_id = ?", profileID)
	query, args, err := lq.build(`SELECT `+notificationColumns+` FROM notifications`, notificationList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", ConvertDBError(err))
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one of the profile's notifications read
func (s *Store) MarkNotificationRead(ctx context.Context, profileID, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `
UPDATE notifications SET read_at = COALESCE(read_at, NOW())
WHERE id = $1 AND profile_id = $2`, id, profileID))
}

// MarkAllNotificationsRead marks every unread notification of the profile
// read and returns how many changed
func (s *Store) MarkAllNotificationsRead(ctx context.Context, profileID uuid.UUID) (int64, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE profile_id = $1 AND read_at IS NULL`, profileID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", ConvertDBError(err))
	}
	return res.RowsAffected()
}

// CountUnreadNotifications counts a profile's unread notifications
func (s *Store) CountUnreadNotifications(ctx context.Context, profileID uuid.UUID) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE profile_id = $1 AND read_at IS NULL`, profileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", ConvertDBError(err))
	}
	return n, nil
}

// NotificationSentSince reports whether the profile already received a
// notification of kind about entityID at or after since
func (s *Store) NotificationSentSince(ctx context.Context, profileID uuid.UUID, kind string, entityID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM notifications
	WHERE profile_id = $1 AND kind = $2 AND entity_id = $3 AND created_at >= $4
)`, profileID, kind, entityID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", ConvertDBError(err))
	}
	return exists, nil
}
