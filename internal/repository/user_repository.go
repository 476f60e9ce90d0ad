package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/ticketd/internal/domain"
	apperrors "github.com/helpdesk-kit/ticketd/pkg/util"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, status=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.ID,
	)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound("user", map[string]any{"user_id": user.ID})
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, status, created_at, updated_at
        FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT id, name, email, password_hash, role, status, created_at, updated_at
        FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return &user, nil
}

// MemoryUserRepository is the in-memory counterpart, used without a DSN and
// in tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return apperrors.NewValidationError("email already registered", nil)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	dup := *user
	r.users[user.ID] = &dup
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperrors.NewNotFound("user", map[string]any{"user_id": user.ID})
	}
	dup := *user
	r.users[user.ID] = &dup
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	dup := *user
	return &dup, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			dup := *user
			return &dup, nil
		}
	}
	return nil, apperrors.NewNotFound("user", nil)
}
