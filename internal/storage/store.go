package storage

import (
	"context"
	"errors"
	"time"

	"mivar/internal/kbfile"
)

// ErrNotFound is returned when a named document does not exist.
var ErrNotFound = errors.New("document not found")

// Store combines document and run history storage.
type Store interface {
	DocumentStore
	RunStore
	Close() error
}

// DocumentStore persists knowledge-base documents by name.
type DocumentStore interface {
	// SaveDocument upserts a document under doc.Name.
	SaveDocument(ctx context.Context, doc *kbfile.Document) error

	// LoadDocument retrieves a document by name.
	LoadDocument(ctx context.Context, name string) (*kbfile.Document, error)

	// ListDocuments returns stored documents sorted by name.
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)

	// DeleteDocument removes a document and its run history.
	DeleteDocument(ctx context.Context, name string) error
}

// RunStore records solve history.
type RunStore interface {
	RecordRun(ctx context.Context, run *Run) error

	// ListRuns returns the newest runs for a document first. limit < 1
	// means no limit.
	ListRuns(ctx context.Context, document string, limit int) ([]*Run, error)
}

// DocumentInfo summarises a stored document.
type DocumentInfo struct {
	Name        string
	Description string
	ContentHash string
	UpdatedAt   time.Time
}

// Run is one recorded solve.
type Run struct {
	ID         string
	Document   string
	SessionID  string
	Query      kbfile.Query
	Values     map[string]any
	Unresolved []string
	Duration   time.Duration
	CreatedAt  time.Time
}
