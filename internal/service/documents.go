package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/web/auth"
)

// DocumentService manages project document metadata. File contents live in
// external storage at each document's URL.
type DocumentService struct{ *base }

// DocumentInput registers a stored file
type DocumentInput struct {
	Name      string             `json:"name"`
	DocType   model.DocumentType `json:"doc_type"`
	URL       string             `json:"url"`
	SizeBytes int64              `json:"size_bytes"`
}

// ReplaceInput points a document at a new file
type ReplaceInput struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
}

// List returns a project's documents matching opts
func (s *DocumentService) List(ctx context.Context, p *auth.Principal, projectID uuid.UUID, opts store.ListOptions) ([]model.Document, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, pr.ID, opts)
	return docs, wrap(err, "document")
}

// Get returns one document of the project
func (s *DocumentService) Get(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Document, error) {
	_, d, err := s.document(ctx, p, projectID, id)
	return d, err
}

// Create registers a document at version 1
func (s *DocumentService) Create(ctx context.Context, p *auth.Principal, projectID uuid.UUID, in DocumentInput) (*model.Document, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	d := &model.Document{
		ProjectID:  pr.ID,
		UploadedBy: p.ID,
		Name:       in.Name,
		DocType:    in.DocType,
		URL:        in.URL,
		SizeBytes:  in.SizeBytes,
		Version:    1,
	}
	if d.DocType == "" {
		d.DocType = model.DocOther
	}
	if err := d.Validate(); err != nil {
		return nil, wrap(err, "document")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.CreateDocument(ctx, d); err != nil {
			return err
		}
		return t.audit(ctx, "document.created", "document", d.ID, &pr.ID, detail("name", d.Name, "version", d.Version))
	})
	if err != nil {
		return nil, wrap(err, "document")
	}
	return d, nil
}

// Replace points the document at a new file and bumps its version
func (s *DocumentService) Replace(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID, in ReplaceInput) (*model.Document, error) {
	pr, d, err := s.document(ctx, p, projectID, id)
	if err != nil {
		return nil, err
	}
	d.URL = in.URL
	d.SizeBytes = in.SizeBytes
	d.UploadedBy = p.ID
	if err := d.Validate(); err != nil {
		return nil, wrap(err, "document")
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.ReplaceDocument(ctx, d); err != nil {
			return err
		}
		return t.audit(ctx, "document.replaced", "document", d.ID, &pr.ID, detail("version", d.Version))
	})
	if err != nil {
		return nil, wrap(err, "document")
	}
	return d, nil
}

// Delete removes document metadata
func (s *DocumentService) Delete(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) error {
	pr, d, err := s.document(ctx, p, projectID, id)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, p.ID, func(t *txn) error {
		if err := t.st.DeleteDocument(ctx, d.ID); err != nil {
			return err
		}
		return t.audit(ctx, "document.deleted", "document", d.ID, &pr.ID, detail("name", d.Name))
	})
	return wrap(err, "document")
}

func (s *DocumentService) document(ctx context.Context, p *auth.Principal, projectID, id uuid.UUID) (*model.Project, *model.Document, error) {
	pr, err := s.loadProject(ctx, p, projectID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, wrap(err, "document")
	}
	if d.ProjectID != pr.ID {
		return nil, nil, NotFound("document")
	}
	return pr, d, nil
}
