package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tendant/simple-pins/pkg/pinboard"
)

// Store implements pinboard.ContentStore on a single SQLite file, keeping
// each document as JSON text.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
  id         TEXT PRIMARY KEY,
  doc_type   TEXT NOT NULL,
  body       TEXT NOT NULL,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_type_created ON documents(doc_type, created_at DESC);
`)
	return err
}

// Create inserts doc, assigning _id and _createdAt when absent.
func (s *Store) Create(ctx context.Context, doc pinboard.Document) (string, error) {
	if doc.Type() == "" {
		return "", fmt.Errorf("%w: document type is required", pinboard.ErrInvalidQuery)
	}
	stored, err := pinboard.NormalizeDocument(map[string]interface{}(doc))
	if err != nil {
		return "", err
	}
	id := stored.ID()
	if id == "" {
		id = uuid.NewString()
		stored[pinboard.FieldID] = id
	}
	createdAt, ok := stored[pinboard.FieldCreatedAt].(string)
	if !ok {
		createdAt = pinboard.FormatTimestamp(s.now())
		stored[pinboard.FieldCreatedAt] = createdAt
	}

	body, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("encode document %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO documents(id, doc_type, body, created_at)
VALUES(?, ?, ?, ?)
`, id, stored.Type(), string(body), createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("document %s already exists", id)
		}
		return "", fmt.Errorf("insert document %s: %w", id, err)
	}
	return id, nil
}

func buildWhere(q pinboard.Query) (string, []interface{}) {
	where := []string{"doc_type = ?"}
	args := []interface{}{q.Type}

	for _, f := range q.Filters {
		path := "$." + f.Field
		switch f.Op {
		case pinboard.OpEq:
			where = append(where, "json_extract(body, ?) = ?")
		case pinboard.OpNe:
			where = append(where, "json_extract(body, ?) IS NOT ?")
		case pinboard.OpContains:
			where = append(where, "json_type(body, ?) = 'array' AND EXISTS (SELECT 1 FROM json_each(documents.body, ?) AS e WHERE e.type = 'text' AND e.value = ?)")
			args = append(args, path, path, f.Value)
			continue
		}
		args = append(args, path, f.Value)
	}
	return strings.Join(where, " AND "), args
}

// Fetch returns the matching documents, newest first.
func (s *Store) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhere(q)
	query := `SELECT body FROM documents WHERE ` + where + ` ORDER BY created_at DESC, rowid DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch documents: %w", err)
	}
	defer rows.Close()

	var docs []pinboard.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc pinboard.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Commit reads, patches and rewrites the document in one transaction.
func (s *Store) Commit(ctx context.Context, m pinboard.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM documents WHERE id = ?`, m.ID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", m.ID, pinboard.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load document %s: %w", m.ID, err)
	}

	var doc pinboard.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", m.ID, err)
	}
	if err := m.Apply(doc); err != nil {
		return err
	}
	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", m.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ? WHERE id = ?`, string(updated), m.ID); err != nil {
		return fmt.Errorf("update document %s: %w", m.ID, err)
	}
	return tx.Commit()
}
