package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-pins/pkg/pinboard"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can open transactions, such as *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// Store implements pinboard.ContentStore on a JSONB documents table
type Store struct {
	db     DB
	schema string
	table  string
	now    func() time.Time
}

// New creates a store on the documents table of schema. An empty schema
// uses the search path.
func New(db DB, schema string) *Store {
	table := pgx.Identifier{"documents"}
	if schema != "" {
		table = pgx.Identifier{schema, "documents"}
	}
	return &Store{db: db, schema: schema, table: table.Sanitize(), now: time.Now}
}

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool, schema string) *Store {
	return New(pool, schema)
}

// Migrate creates the schema, table and indexes when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{}
	if s.schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{s.schema}.Sanitize())
	}
	stmts = append(stmts,
		`CREATE TABLE IF NOT EXISTS `+s.table+` (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			doc_type TEXT NOT NULL,
			body JSONB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS documents_type_created_idx ON `+s.table+` (doc_type, created_at DESC, seq DESC)`,
		`CREATE INDEX IF NOT EXISTS documents_body_idx ON `+s.table+` USING GIN (body jsonb_path_ops)`,
	)
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return s.handlePostgresError("migrate", err)
		}
	}
	return nil
}

// Error handling helper
func (s *Store) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("document already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return pinboard.ErrNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
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

	query := `INSERT INTO ` + s.table + ` (id, doc_type, body, created_at) VALUES ($1, $2, $3::jsonb, $4)`
	if _, err := s.db.Exec(ctx, query, id, stored.Type(), string(body), createdAt); err != nil {
		return "", s.handlePostgresError("create document", err)
	}
	return id, nil
}

// buildWhereClause translates q into SQL over the body column
func buildWhereClause(q pinboard.Query) (string, []interface{}) {
	where := []string{"doc_type = $1"}
	args := []interface{}{q.Type}
	argIndex := 2

	for _, f := range q.Filters {
		switch f.Op {
		case pinboard.OpEq:
			where = append(where, fmt.Sprintf("body ->> $%d::text = $%d::text", argIndex, argIndex+1))
		case pinboard.OpNe:
			where = append(where, fmt.Sprintf("(body ->> $%d::text) IS DISTINCT FROM $%d::text", argIndex, argIndex+1))
		case pinboard.OpContains:
			where = append(where, fmt.Sprintf("body -> $%d::text @> jsonb_build_array($%d::text)", argIndex, argIndex+1))
		}
		args = append(args, f.Field, f.Value)
		argIndex += 2
	}
	return strings.Join(where, " AND "), args
}

// Fetch returns the matching documents, newest first.
func (s *Store) Fetch(ctx context.Context, q pinboard.Query) ([]pinboard.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	where, args := buildWhereClause(q)
	query := `SELECT body FROM ` + s.table + ` WHERE ` + where + ` ORDER BY created_at DESC, seq DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, s.handlePostgresError("fetch documents", err)
	}
	defer rows.Close()

	var docs []pinboard.Document
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, s.handlePostgresError("scan document", err)
		}
		var doc pinboard.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.handlePostgresError("fetch documents", err)
	}
	return docs, nil
}

// Commit locks the document row, applies m and writes it back in one
// transaction.
func (s *Store) Commit(ctx context.Context, m pinboard.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return s.handlePostgresError("begin commit", err)
	}
	defer tx.Rollback(ctx)

	var body []byte
	err = tx.QueryRow(ctx, `SELECT body FROM `+s.table+` WHERE id = $1 FOR UPDATE`, m.ID).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("document %s: %w", m.ID, pinboard.ErrNotFound)
		}
		return s.handlePostgresError("load document", err)
	}

	var doc pinboard.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", m.ID, err)
	}
	if err := m.Apply(doc); err != nil {
		return err
	}
	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", m.ID, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE `+s.table+` SET body = $2::jsonb WHERE id = $1`, m.ID, string(updated)); err != nil {
		return s.handlePostgresError("update document", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.handlePostgresError("commit document", err)
	}
	return nil
}
