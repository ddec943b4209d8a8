package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const auditColumns = `id, actor_id, action, entity_type, entity_id, project_id, details, created_at`

var auditList = listSpec{
	filters: map[string]filterFunc{
		"actor_id":    eqUUID("actor_id"),
		"entity_type": eqString("entity_type"),
		"entity_id":   eqUUID("entity_id"),
		"action":      eqString("action"),
		"project_id":  eqUUID("project_id"),
		"from":        cmpTime("created_at", ">="),
		"to":          untilTime("created_at"),
	},
	sorts: map[string]string{
		"created_at": "created_at",
		"action":     "action",
	},
	defaultSort: "created_at DESC, id ASC",
}

func scanAudit(row scanner) (*model.AuditLog, error) {
	var a model.AuditLog
	var details []byte
	err := row.Scan(&a.ID, &a.ActorID, &a.Action, &a.EntityType, &a.EntityID, &a.ProjectID, &details, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Details = details
	return &a, nil
}

// InsertAuditLog appends an audit entry
func (s *Store) InsertAuditLog(ctx context.Context, a *model.AuditLog) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	details := string(a.Details)
	if details == "" {
		details = "{}"
	}
	err := s.q.QueryRowContext(ctx, `
INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, project_id, details)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`,
		a.ID, a.ActorID, a.Action, a.EntityType, a.EntityID, a.ProjectID, details,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", ConvertDBError(err))
	}
	return nil
}

// ListAuditLogs returns audit entries newest first. Unless admin, only the
// viewer's own actions and entries on projects the viewer owns are returned.
func (s *Store) ListAuditLogs(ctx context.Context, viewer uuid.UUID, admin bool, opts ListOptions) ([]model.AuditLog, error) {
	var lq listQuery
	if !admin {
		lq.where("(actor_id = ? OR project_id IN (SELECT id FROM projects WHERE owner_id = ?))", viewer, viewer)
	}
	query, args, err := lq.build(`SELECT `+auditColumns+` FROM audit_logs`, auditList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", ConvertDBError(err))
	}
	defer rows.Close()

	logs := []model.AuditLog{}
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, *a)
	}
	return logs, rows.Err()
}
