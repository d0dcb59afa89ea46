package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"equiviz/internal/domain"
)

// UserStore persists registered accounts.
type UserStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewUserStore creates a user store.
func NewUserStore(db *sql.DB, logger *slog.Logger) *UserStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

// CreateUser inserts a new account. A duplicate username surfaces as a
// ConflictError.
func (s *UserStore) CreateUser(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	createdAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, createdAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, &domain.ConflictError{Message: "Username already exists"}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	s.logger.InfoContext(ctx, "user created",
		slog.Int64("user_id", id),
		slog.String("username", username))

	return &domain.User{ID: id, Username: username, PasswordHash: passwordHash, CreatedAt: createdAt}, nil
}

// GetUserByUsername loads an account by username.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

// GetUserByID loads an account by id.
func (s *UserStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *UserStore) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Resource: "user"}
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}
