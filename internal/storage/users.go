package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// ErrUserExists is returned when registering an email twice.
var ErrUserExists = errors.New("user already exists")

// User is a registered identity.
type User struct {
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore keeps registered users in the shared accounts database.
type UserStore struct {
	db *sql.DB
}

// AccountsDBPath is the shared users database under dataDir.
func AccountsDBPath(dataDir string) string {
	return filepath.Join(dataDir, "accounts.db")
}

func NewUserStore(dbPath string) (*UserStore, error) {
	db, err := OpenSQLite(dbPath, AccountsMigrations)
	if err != nil {
		return nil, err
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the accounts database is reachable.
func (s *UserStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a user; ErrUserExists when the email is taken.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string) error {
	email = normalizeEmail(email)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash) VALUES (?, ?) ON CONFLICT(email) DO NOTHING`,
		email, passwordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user: rows affected: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	slog.InfoContext(ctx, "User registered", "email", email)
	return nil
}

// Get returns sql.ErrNoRows wrapped when the user is unknown.
func (s *UserStore) Get(ctx context.Context, email string) (User, error) {
	var (
		u       User
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, password_hash, created_at FROM users WHERE email = ?`,
		normalizeEmail(email)).Scan(&u.Email, &u.PasswordHash, &created)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, created); err == nil {
			u.CreatedAt = t
			break
		}
	}
	return u, nil
}

// Emails lists every registered email.
func (s *UserStore) Emails(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
