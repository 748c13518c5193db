// Package postgres is a document store backend on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/store/postgres/migrations"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	pgclient "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

type Backend struct {
	client *pgclient.Client
}

var _ store.Backend = (*Backend)(nil)

// New runs pending migrations against client and returns a backend using it.
func New(ctx context.Context, client *pgclient.Client) (*Backend, error) {
	if err := store.Migrate(ctx, client.DB, migrations.FS); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Backend{client: client}, nil
}

func (b *Backend) Insert(ctx context.Context, doc store.NewDocument) (uint64, error) {
	var id int64
	err := b.client.InTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			INSERT INTO documents (title, body, length, content_hash, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, doc.Title, doc.Body, doc.Length, doc.ContentHash, doc.CreatedAt).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}
	return uint64(id), nil
}

func (b *Backend) Delete(ctx context.Context, id uint64) error {
	return b.client.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", int64(id))
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
	})
}

func (b *Backend) Load(ctx context.Context, fn func(store.Document) error) error {
	rows, err := b.client.DB.QueryContext(ctx, `
		SELECT id, title, body, length, content_hash, created_at
		FROM documents ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			doc store.Document
			id  int64
		)
		if err := rows.Scan(&id, &doc.Title, &doc.Body, &doc.Length, &doc.ContentHash, &doc.CreatedAt); err != nil {
			return fmt.Errorf("scanning document: %w", err)
		}
		doc.ID = uint64(id)
		doc.CreatedAt = doc.CreatedAt.UTC()
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

func (b *Backend) Close() error {
	return b.client.Close()
}
