// Package sqlite is a document store backend on an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store/sqlite/migrations"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

type Backend struct {
	db   *sql.DB
	path string
}

var _ store.Backend = (*Backend)(nil)

// Open opens (creating if needed) the database at path and runs pending
// migrations.
func Open(ctx context.Context, path string) (*Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	// WAL mode so readers do not block the writer.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := store.Migrate(ctx, db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Backend{db: db, path: path}, nil
}

func (b *Backend) Insert(ctx context.Context, doc store.NewDocument) (uint64, error) {
	res, err := b.db.ExecContext(ctx, `
		INSERT INTO documents (title, body, length, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, doc.Title, doc.Body, doc.Length, doc.ContentHash, doc.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return uint64(id), nil
}

func (b *Backend) Delete(ctx context.Context, id uint64) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", int64(id))
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound(id)
	}
	return nil
}

func (b *Backend) Load(ctx context.Context, fn func(store.Document) error) error {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, title, body, length, content_hash, created_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			doc       store.Document
			id        int64
			createdAt int64
		)
		if err := rows.Scan(&id, &doc.Title, &doc.Body, &doc.Length, &doc.ContentHash, &createdAt); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		doc.ID = uint64(id)
		doc.CreatedAt = time.Unix(0, createdAt).UTC()
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Path() string {
	return b.path
}

func (b *Backend) Close() error {
	return b.db.Close()
}
