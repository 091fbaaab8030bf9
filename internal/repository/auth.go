// Package repository provides persistence implementations for authentication
// and document storage using a PostgreSQL database.
package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAuthRepository implements authentication persistence using a PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// UserExists checks whether a user with the specified login exists in the database.
// It returns true if the user exists, false otherwise.
func (s *PostgresAuthRepository) UserExists(ctx context.Context, login string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE login = $1)`,
		login,
	).Scan(&exists)
	return exists, err
}

// RegisterUser creates a new user record with the given login and password hash.
// An existing login is left untouched via ON CONFLICT DO NOTHING.
func (s *PostgresAuthRepository) RegisterUser(ctx context.Context, login string, passwordHash []byte) error {
	_, err := s.DB.ExecContext(
		ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		login, passwordHash,
	)
	return err
}

// PasswordHash returns the stored password hash for login.
// sql.ErrNoRows is returned unchanged when the user does not exist.
func (s *PostgresAuthRepository) PasswordHash(ctx context.Context, login string) ([]byte, error) {
	var hash []byte
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT password_hash FROM users WHERE login = $1`,
		login,
	).Scan(&hash)
	if err != nil {
		return nil, err
	}
	return hash, nil
}

// CreateToken stores a session token for login expiring at the given Unix time.
func (s *PostgresAuthRepository) CreateToken(ctx context.Context, token, login string, expiresAt int64) error {
	_, err := s.DB.ExecContext(
		ctx,
		`INSERT INTO tokens (token, user_login, expires_at) VALUES ($1, $2, $3)`,
		token, login, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("CreateToken: %w", err)
	}
	return nil
}

// UserForToken resolves a session token to its user login, ignoring expired
// tokens. Returns sql.ErrNoRows when the token is unknown or expired.
func (s *PostgresAuthRepository) UserForToken(ctx context.Context, token string, now int64) (string, error) {
	var login string
	err := s.DB.QueryRowContext(
		ctx,
		`SELECT user_login FROM tokens WHERE token = $1 AND expires_at >= $2`,
		token, now,
	).Scan(&login)
	if err != nil {
		return "", err
	}
	return login, nil
}

// DeleteToken removes a session token, signing its holder out.
func (s *PostgresAuthRepository) DeleteToken(ctx context.Context, token string) error {
	_, err := s.DB.ExecContext(
		ctx,
		`DELETE FROM tokens WHERE token = $1`,
		token,
	)
	return err
}
