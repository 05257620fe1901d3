package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"mivar/internal/kbfile"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			description TEXT,
			body JSON,
			content_hash TEXT,
			updated_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			document TEXT,
			session_id TEXT,
			query JSON,
			resolved JSON,
			unresolved JSON,
			duration_ns INTEGER,
			created_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// --- DocumentStore Implementation ---

func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *kbfile.Document) error {
	if doc == nil || doc.Name == "" {
		return fmt.Errorf("document name is required")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", doc.Name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, description, body, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description=excluded.description,
			body=excluded.body,
			content_hash=excluded.content_hash,
			updated_at=excluded.updated_at
	`, doc.Name, doc.Description, body, contentHash(body), time.Now().UTC().UnixNano())
	return err
}

func (s *SQLiteStore) LoadDocument(ctx context.Context, name string) (*kbfile.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE name = ?", name)

	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}

	var doc kbfile.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", name, err)
	}
	return &doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, description, content_hash, updated_at FROM documents ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentInfo
	for rows.Next() {
		var info DocumentInfo
		var updated int64
		if err := rows.Scan(&info.Name, &info.Description, &info.ContentHash, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		info.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE document = ?", name); err != nil {
		return err
	}

	return tx.Commit()
}

// --- RunStore Implementation ---

// RecordRun stores run. An empty ID or CreatedAt is filled in.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query, err := json.Marshal(run.Query)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	values, err := json.Marshal(run.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal values: %w", err)
	}
	unresolved, err := json.Marshal(run.Unresolved)
	if err != nil {
		return fmt.Errorf("failed to marshal unresolved targets: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, document, session_id, query, resolved, unresolved, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Document, run.SessionID, query, values, unresolved, int64(run.Duration), run.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, document string, limit int) ([]*Run, error) {
	q := `SELECT id, document, session_id, query, resolved, unresolved, duration_ns, created_at
		FROM runs WHERE document = ? ORDER BY created_at DESC, id`
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.db.QueryContext(ctx, q, document)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var query, values, unresolved []byte
		var duration, created int64
		if err := rows.Scan(&r.ID, &r.Document, &r.SessionID, &query, &values, &unresolved, &duration, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if len(query) > 0 {
			if err := json.Unmarshal(query, &r.Query); err != nil {
				return nil, fmt.Errorf("failed to decode query of run %s: %w", r.ID, err)
			}
		}
		if len(values) > 0 {
			if err := json.Unmarshal(values, &r.Values); err != nil {
				return nil, fmt.Errorf("failed to decode values of run %s: %w", r.ID, err)
			}
		}
		if len(unresolved) > 0 {
			if err := json.Unmarshal(unresolved, &r.Unresolved); err != nil {
				return nil, fmt.Errorf("failed to decode unresolved of run %s: %w", r.ID, err)
			}
		}
		r.Duration = time.Duration(duration)
		r.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func contentHash(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}
