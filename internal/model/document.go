package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/citymind/urbanlink/internal/validation"
)

// DocumentType classifies project documents
type DocumentType string

const (
	DocContract      DocumentType = "contract"
	DocSpecification DocumentType = "specification"
	DocReport        DocumentType = "report"
	DocPermit        DocumentType = "permit"
	DocOther         DocumentType = "other"
)

// Document is metadata for a file stored at URL
type Document struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	ProjectID  uuid.UUID    `db:"project_id" json:"project_id"`
	UploadedBy uuid.UUID    `db:"uploaded_by" json:"uploaded_by"`
	Name       string       `db:"name" json:"name"`
	DocType    DocumentType `db:"doc_type" json:"doc_type"`
	URL        string       `db:"url" json:"url"`
	SizeBytes  int64        `db:"size_bytes" json:"size_bytes"`
	Version    int          `db:"version" json:"version"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updated_at"`
}

// Validate checks document fields
func (d *Document) Validate() error {
	ve := validation.NewValidationErrors()
	ve.Required("name", d.Name)
	ve.MaxLength("name", d.Name, 300)
	validation.OneOf(ve, "doc_type", d.DocType, DocContract, DocSpecification, DocReport, DocPermit, DocOther)
	if ve.Required("url", d.URL) {
		ve.URL("url", d.URL)
	}
	if d.SizeBytes < 0 {
		ve.Add("size_bytes", "must not be negative")
	}
	return ve.ErrOrNil()
}
