// Package postgres implements the durable document store on PostgreSQL.
// One table holds every index's documents; a Store instance is scoped to
// one index name.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/lanternsearch/lantern/internal/document"
	apperrors "github.com/lanternsearch/lantern/pkg/errors"
	"github.com/lanternsearch/lantern/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    index_name TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    payload    JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (index_name, id)
);
`

// Store persists documents for one index in the shared documents table.
type Store struct {
	client    *postgres.Client
	indexName string
}

// NewStore binds a store to one index, creating the table on first use.
func NewStore(ctx context.Context, client *postgres.Client, indexName string) (*Store, error) {
	if _, err := client.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensuring documents table: %w", err)
	}
	return &Store{client: client, indexName: indexName}, nil
}

func (s *Store) Put(ctx context.Context, docs []document.Document) error {
	return s.client.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (index_name, id, payload, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (index_name, id)
			DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, doc := range docs {
			payload, err := json.Marshal(doc.Fields)
			if err != nil {
				return fmt.Errorf("encoding document %s: %w", doc.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, s.indexName, doc.ID, payload); err != nil {
				return fmt.Errorf("upserting document %s: %w", doc.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (document.Document, error) {
	var payload []byte
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT payload FROM documents WHERE index_name = $1 AND id = $2`,
		s.indexName, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return document.Document{}, apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document %q not found", id)
	}
	if err != nil {
		return document.Document{}, fmt.Errorf("fetching document %s: %w", id, err)
	}
	return decodeDocument(id, payload)
}

func (s *Store) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.client.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE index_name = $1 AND id = ANY($2)`,
		s.indexName, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

func (s *Store) ForEach(ctx context.Context, fn func(document.Document) error) error {
	rows, err := s.client.DB.QueryContext(ctx,
		`SELECT id, payload FROM documents WHERE index_name = $1`, s.indexName)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return err
		}
		doc, err := decodeDocument(id, payload)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE index_name = $1`, s.indexName).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Close is a no-op: the underlying client is shared across stores and
// closed by its owner.
func (s *Store) Close() error { return nil }

func decodeDocument(id string, payload []byte) (document.Document, error) {
	var fields map[string]document.Value
	if err := json.Unmarshal(payload, &fields); err != nil {
		return document.Document{}, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return document.Document{ID: id, Fields: fields}, nil
}
