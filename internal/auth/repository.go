package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creators-notebook/backend/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByNo returns a user by numeric handle, or nil when absent.
func (r *Repository) GetByNo(ctx context.Context, no int64) (*models.User, error) {
	const q = `SELECT no, email, password, nickname, created_at, updated_at FROM users WHERE no = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, no).Scan(&u.No, &u.Email, &u.Password, &u.Nickname, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by no: %w", err)
	}
	return &u, nil
}

// GetByEmail returns a user by email, or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT no, email, password, nickname, created_at, updated_at FROM users WHERE email = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email).Scan(&u.No, &u.Email, &u.Password, &u.Nickname, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, email, passwordHash, nickname string) (*models.User, error) {
	const q = `INSERT INTO users (email, password, nickname)
		VALUES ($1, $2, $3)
		RETURNING no, email, password, nickname, created_at, updated_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, email, passwordHash, nickname).
		Scan(&u.No, &u.Email, &u.Password, &u.Nickname, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}
