package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore keeps documents in the jsonb "documents" table created by
// migrations/000001_create_documents.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := validateKey(collection, key); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT body
		FROM documents
		WHERE collection = $1 AND key = $2
	`, collection, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return data, nil
}

func (s *PostgresStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, key)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()
	`, collection, key, value)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, collection, key string, value []byte) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, key) DO NOTHING
	`, collection, key, value)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	if rowsAffected == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, collection, key string) error {
	if err := validateKey(collection, key); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE collection = $1 AND key = $2
	`, collection, key)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListKeys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key
		FROM documents
		WHERE collection = $1
		ORDER BY key
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer func() { _ = rows.Close() }()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	return keys, nil
}
