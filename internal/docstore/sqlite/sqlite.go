// Package sqlite provides the durable docstore.Client implementation backed
// by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/smarthome-admin/internal/docstore"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	body       TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents (collection, owner_id);
`

// Store implements docstore.Client on a SQLite database. All documents live
// in a single table keyed by (collection, id); conditional updates are
// expressed as UPDATE ... WHERE version = ? so concurrent admin sessions
// cannot overwrite each other silently.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects to the database identified by dsn and applies the schema.
// When now is nil, time.Now is used for document timestamps.
func Open(dsn string, now func() time.Time) (*Store, error) {
	if now == nil {
		now = time.Now
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// The modernc driver serializes writes per connection; a single
	// connection avoids SQLITE_BUSY between pooled handles.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure busy timeout: %w", err)
	}

	store := &Store{db: db, now: now}
	if err := store.bootstrap(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// bootstrap applies the fixed document schema inside one transaction.
func (s *Store) bootstrap(ctx context.Context) error {
	return s.withTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("apply document schema: %w", err)
		}
		return nil
	})
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Find returns the documents owned by ownerID in the collection.
func (s *Store) Find(ctx context.Context, collection, ownerID string) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, body, version, created_at, updated_at
		FROM documents
		WHERE collection = ? AND owner_id = ?`,
		collection, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// Get retrieves a single owned document.
func (s *Store) Get(ctx context.Context, collection, ownerID, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, body, version, created_at, updated_at
		FROM documents
		WHERE collection = ? AND id = ? AND owner_id = ?`,
		collection, id, ownerID,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return doc, err
}

// Create inserts a new document at version 1.
func (s *Store) Create(ctx context.Context, collection string, doc docstore.Document) (docstore.Document, error) {
	now := s.now().UTC()
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, owner_id, body, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collection, doc.ID, doc.OwnerID, string(doc.Body), doc.Version,
		doc.CreatedAt.Format(time.RFC3339Nano), doc.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return docstore.Document{}, docstore.ErrDuplicate
		}
		return docstore.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// Update replaces the document body iff the stored version matches.
func (s *Store) Update(ctx context.Context, collection string, doc docstore.Document, expectedVersion int64) (docstore.Document, error) {
	var updated docstore.Document
	err := s.withTransaction(ctx, func(tx *sql.Tx) error {
		now := s.now().UTC()
		result, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET body = ?, version = version + 1, updated_at = ?
			WHERE collection = ? AND id = ? AND owner_id = ? AND version = ?`,
			string(doc.Body), now.Format(time.RFC3339Nano),
			collection, doc.ID, doc.OwnerID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if affected == 1 {
			row := tx.QueryRowContext(ctx, `
				SELECT id, owner_id, body, version, created_at, updated_at
				FROM documents
				WHERE collection = ? AND id = ?`,
				collection, doc.ID,
			)
			updated, err = scanDocument(row)
			return err
		}

		// Distinguish a stale version from a missing document.
		var exists int
		row := tx.QueryRowContext(ctx, `
			SELECT 1 FROM documents
			WHERE collection = ? AND id = ? AND owner_id = ?`,
			collection, doc.ID, doc.OwnerID,
		)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return docstore.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("probe document: %w", err)
		}
		return docstore.ErrVersionConflict
	})
	if err != nil {
		return docstore.Document{}, err
	}
	return updated, nil
}

// Delete removes an owned document.
func (s *Store) Delete(ctx context.Context, collection, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE collection = ? AND id = ? AND owner_id = ?`,
		collection, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (docstore.Document, error) {
	var (
		doc       docstore.Document
		body      string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &body, &doc.Version, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, sql.ErrNoRows
		}
		return docstore.Document{}, fmt.Errorf("scan document: %w", err)
	}
	doc.Body = json.RawMessage(body)

	var err error
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return docstore.Document{}, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return docstore.Document{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces constraint failures in the error text.
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
