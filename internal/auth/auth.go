// Package auth registers users and issues session tokens.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/storage"
)

const (
	issuer            = "fintrack"
	defaultTokenTTL   = 24 * time.Hour
	minPasswordLength = 6
	maxPasswordLength = 72 // bcrypt limit
)

var (
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be %d to %d characters", minPasswordLength, maxPasswordLength)
)

// UserStore persists users. *storage.UserStore satisfies it.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string) error
	Get(ctx context.Context, email string) (storage.User, error)
}

// Service registers and authenticates users.
type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock overrides time.Now for token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	s := &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a user with a hashed password.
func (s *Service) Register(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if n := len(password); n < minPasswordLength || n > maxPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.Create(ctx, email, string(hash)); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Login checks the password and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	user, err := s.users.Get(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.Email,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "email", user.Email)
	return signed, nil
}

// ParseToken validates a token and returns the email it was issued to.
func (s *Service) ParseToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
