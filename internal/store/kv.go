package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// MaxBatch caps how many documents a single write batch may carry. Writers
// below chunk their work so no transaction statement set exceeds it.
const MaxBatch = 500

// KV is a json-document store: named collections of id -> document. All
// collections share one sqlite table; the collection name is part of the key.
type KV struct {
	db *sql.DB
}

func NewKV(db *DB) (*KV, error) {
	kv := &KV{db: db.Pool}
	if err := kv.migrate(); err != nil {
		return nil, err
	}
	return kv, nil
}

func (kv *KV) migrate() error {
	tx, err := kv.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  body TEXT NOT NULL,
  PRIMARY KEY (collection, id)
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_documents_collection
ON documents(collection);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}

func (kv *KV) GetAll(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	rows, err := kv.db.QueryContext(ctx,
		`SELECT id, body FROM documents WHERE collection = ?;`, collection)
	if err != nil {
		return nil, fmt.Errorf("kv get all %s: %w", collection, err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		out[id] = json.RawMessage(body)
	}
	return out, rows.Err()
}

// IDs returns the collection's keys without loading document bodies.
func (kv *KV) IDs(ctx context.Context, collection string) ([]string, error) {
	rows, err := kv.db.QueryContext(ctx,
		`SELECT id FROM documents WHERE collection = ?;`, collection)
	if err != nil {
		return nil, fmt.Errorf("kv ids %s: %w", collection, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (kv *KV) Get(ctx context.Context, collection, id string) (json.RawMessage, bool, error) {
	var body string
	err := kv.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?;`, collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(body), true, nil
}

func (kv *KV) Put(ctx context.Context, collection, id string, doc json.RawMessage) error {
	_, err := kv.db.ExecContext(ctx, `
INSERT INTO documents(collection, id, body) VALUES(?,?,?)
ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body;`,
		collection, id, string(doc))
	if err != nil {
		return fmt.Errorf("kv put %s/%s: %w", collection, id, err)
	}
	return nil
}

// PutAll upserts every document, committing in chunks of at most MaxBatch.
func (kv *KV) PutAll(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}

	for start := 0; start < len(ids); start += MaxBatch {
		end := start + MaxBatch
		if end > len(ids) {
			end = len(ids)
		}
		if err := kv.putChunk(ctx, collection, ids[start:end], docs); err != nil {
			return err
		}
	}
	return nil
}

func (kv *KV) putChunk(ctx context.Context, collection string, ids []string, docs map[string]json.RawMessage) error {
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents(collection, id, body) VALUES(?,?,?)
ON CONFLICT(collection, id) DO UPDATE SET body = excluded.body;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id, string(docs[id])); err != nil {
			return fmt.Errorf("kv put all %s/%s: %w", collection, id, err)
		}
	}
	return tx.Commit()
}

func (kv *KV) Delete(ctx context.Context, collection, id string) error {
	_, err := kv.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?;`, collection, id)
	if err != nil {
		return fmt.Errorf("kv delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// ReplaceAll swaps the whole collection for docs. The delete and the chunked
// re-insert run in one transaction so readers never observe a half-replaced
// collection.
func (kv *KV) ReplaceAll(ctx context.Context, collection string, docs map[string]json.RawMessage) error {
	tx, err := kv.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ?;`, collection); err != nil {
		return fmt.Errorf("kv replace %s: %w", collection, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO documents(collection, id, body) VALUES(?,?,?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	for start := 0; start < len(ids); start += MaxBatch {
		end := start + MaxBatch
		if end > len(ids) {
			end = len(ids)
		}
		for _, id := range ids[start:end] {
			if _, err := stmt.ExecContext(ctx, collection, id, string(docs[id])); err != nil {
				return fmt.Errorf("kv replace %s/%s: %w", collection, id, err)
			}
		}
	}
	return tx.Commit()
}
