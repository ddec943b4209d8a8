package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
)

const documentColumns = `id, project_id, uploaded_by, name, doc_type, url, size_bytes, version, created_at, updated_at`

var documentList = listSpec{
	filters: map[string]filterFunc{
		"doc_type":    eqString("doc_type"),
		"uploaded_by": eqUUID("uploaded_by"),
	},
	sorts: map[string]string{
		"name":       "name",
		"created_at": "created_at",
		"updated_at": "updated_at",
		"size_bytes": "size_bytes",
	},
	search:      []string{"name"},
	defaultSort: "updated_at DESC, id ASC",
}

func scanDocument(row scanner) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.ProjectID, &d.UploadedBy, &d.Name, &d.DocType, &d.URL, &d.SizeBytes, &d.Version,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDocument inserts document metadata at version 1
func (s *Store) CreateDocument(ctx context.Context, d *model.Document) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Version = 1
	err := s.q.QueryRowContext(ctx, `
INSERT INTO documents (id, project_id, uploaded_by, name, doc_type, url, size_bytes, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at`,
		d.ID, d.ProjectID, d.UploadedBy, d.Name, d.DocType, d.URL, d.SizeBytes, d.Version,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create document: %w", ConvertDBError(err))
	}
	return nil
}

// GetDocument loads document metadata by id
func (s *Store) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	d, err := scanDocument(s.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return d, nil
}

// ReplaceDocument points a document at a new file and bumps its version
func (s *Store) ReplaceDocument(ctx context.Context, d *model.Document) error {
	err := s.q.QueryRowContext(ctx, `
UPDATE documents
SET url = $2, size_bytes = $3, uploaded_by = $4, version = version + 1, updated_at = NOW()
WHERE id = $1
RETURNING version, updated_at`,
		d.ID, d.URL, d.SizeBytes, d.UploadedBy,
	).Scan(&d.Version, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("replace document: %w", ConvertDBError(err))
	}
	return nil
}

// DeleteDocument removes document metadata
func (s *Store) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.q.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id))
}

// ListDocuments returns a project's documents matching opts
func (s *Store) ListDocuments(ctx context.Context, projectID uuid.UUID, opts ListOptions) ([]model.Document, error) {
	var lq listQuery
	lq.where("project_id = ?", projectID)
	query, args, err := lq.build(`SELECT `+documentColumns+` FROM documents`, documentList, opts)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", ConvertDBError(err))
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}
