package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore keeps documents in the "documents" table. The queries use $n
// placeholders, which both modernc.org/sqlite and pgx accept.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQLStore over an already migrated database.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Insert appends a document and returns its id.
func (s *SQLStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	doc, err := prepare(collection, doc, s.now())
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, collection, user_id, day, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Collection, doc.UserID, doc.Day, string(doc.Data), doc.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert document into %s: %w", collection, err)
	}
	return doc.ID, nil
}

// Get retrieves a single document by id.
func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, collection, user_id, day, data, created_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s from %s: %w", id, collection, err)
	}
	return &doc, nil
}

// Query returns every document of a collection matching the filter, oldest first.
func (s *SQLStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, collection, user_id, day, data, created_at FROM documents WHERE collection = $1`)
	args := []any{collection}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		fmt.Fprintf(&sb, " AND user_id = $%d", len(args))
	}
	if filter.Day != 0 {
		args = append(args, filter.Day)
		fmt.Fprintf(&sb, " AND day = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", collection, err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc       Document
		data      string
		createdAt int64
	)
	if err := row.Scan(&doc.ID, &doc.Collection, &doc.UserID, &doc.Day, &data, &createdAt); err != nil {
		return Document{}, err
	}
	doc.Data = []byte(data)
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	return doc, nil
}
