package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// User is an account row. Email and PasswordHash are nil for accounts created
// through OAuth without a password.
type User struct {
	ID           uuid.UUID
	Email        *string
	PasswordHash *string
	DisplayName  string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// UserRepository exposes typed DB operations required by auth flows.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository wraps a pgx pool for user-specific operations.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a new account and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash *string, displayName string) (User, error) {
	const q = `
		INSERT INTO users (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING user_id, email, password_hash, display_name, created_at, last_login_at`

	var u User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, displayName).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	return u, err
}

// GetByEmail fetches an account by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `
		SELECT user_id, email, password_hash, display_name, created_at, last_login_at
		FROM users WHERE email = $1`

	var u User
	err := r.pool.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetByID fetches an account by id.
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (User, error) {
	const q = `
		SELECT user_id, email, password_hash, display_name, created_at, last_login_at
		FROM users WHERE user_id = $1`

	var u User
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt, &u.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// UpdateLogin records the last login timestamp.
func (r *UserRepository) UpdateLogin(ctx context.Context, userID uuid.UUID) error {
	const q = `UPDATE users SET last_login_at = now() WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, q, userID)
	return err
}
