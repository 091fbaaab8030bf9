package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresDocumentRepository stores one JSONB document per user and
// implements partial-field merges and wholesale replacement.
type PostgresDocumentRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresDocumentRepository creates a new PostgresDocumentRepository using the provided *sql.DB.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{DB: db}
}

// Get fetches the document for login. exists is false when the user has no
// document row yet.
func (s *PostgresDocumentRepository) Get(ctx context.Context, login string) (map[string]json.RawMessage, bool, error) {
	var raw []byte
	err := s.DB.QueryRowContext(ctx, `
		SELECT fields FROM documents WHERE user_login = $1
	`, login).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get document: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("Get document: decode fields: %w", err)
	}
	return fields, true, nil
}

// Merge updates only the given fields, creating the document row if it is
// missing. Fields not named in the update keep their current values.
func (s *PostgresDocumentRepository) Merge(ctx context.Context, login string, fields map[string]json.RawMessage) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("Merge document: encode fields: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO documents (user_login, fields) VALUES ($1, $2)
		ON CONFLICT (user_login)
		DO UPDATE SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
	`, login, raw)
	if err != nil {
		return fmt.Errorf("Merge document: %w", err)
	}
	return nil
}

// Replace overwrites the whole document for login, creating it if missing.
func (s *PostgresDocumentRepository) Replace(ctx context.Context, login string, fields map[string]json.RawMessage) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("Replace document: encode fields: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO documents (user_login, fields) VALUES ($1, $2)
		ON CONFLICT (user_login)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
	`, login, raw)
	if err != nil {
		return fmt.Errorf("Replace document: %w", err)
	}
	return nil
}
