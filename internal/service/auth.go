// Package service provides business-logic services for authentication and
// document storage, delegating persistence to repository interfaces.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a login attempt does not match a
// known user and password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// UserExists returns true if a user with the given login exists.
	UserExists(ctx context.Context, login string) (bool, error)
	// RegisterUser creates a new user record with the given login and password hash.
	RegisterUser(ctx context.Context, login string, passwordHash []byte) error
	// PasswordHash returns the stored hash for login, or sql.ErrNoRows.
	PasswordHash(ctx context.Context, login string) ([]byte, error)
	// CreateToken stores a session token expiring at the given Unix time.
	CreateToken(ctx context.Context, token, login string, expiresAt int64) error
	// UserForToken resolves an unexpired token to its user login.
	UserForToken(ctx context.Context, token string, now int64) (string, error)
	// DeleteToken removes a session token.
	DeleteToken(ctx context.Context, token string) error
}

// AuthService implements registration, password login, and bearer-token
// session management.
type AuthService struct {
	// repo performs the data-layer operations.
	repo AuthRepository
	// tokenTTL is how long issued tokens stay valid.
	tokenTTL time.Duration
}

// NewAuthService constructs an AuthService using the provided repository.
func NewAuthService(repo AuthRepository, tokenTTL time.Duration) *AuthService {
	return &AuthService{repo: repo, tokenTTL: tokenTTL}
}

// Register creates a new user with a bcrypt-hashed password.
// It returns an error if the login is already taken or hashing fails.
func (s *AuthService) Register(ctx context.Context, login, password string) error {
	exists, err := s.repo.UserExists(ctx, login)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("user %q already exists", login)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.RegisterUser(ctx, login, hash)
}

// Login verifies the password and issues a fresh session token.
// Unknown users and wrong passwords both map to ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, error) {
	hash, err := s.repo.PasswordHash(ctx, login)
	if err == sql.ErrNoRows {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	expiresAt := time.Now().Add(s.tokenTTL).Unix()
	if err := s.repo.CreateToken(ctx, token, login, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

// UserForToken resolves a bearer token to its user login. Unknown or
// expired tokens return an empty login with no error.
func (s *AuthService) UserForToken(ctx context.Context, token string) (string, error) {
	login, err := s.repo.UserForToken(ctx, token, time.Now().Unix())
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return login, nil
}

// Logout invalidates the session token.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteToken(ctx, token)
}
