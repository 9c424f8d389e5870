package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fintrack/internal/services"
)

type accountKey struct{}

var errNoIdentity = errors.New("server has no identity collaborator configured")

// accountFrom returns the account attached by requireAccount.
func accountFrom(ctx context.Context) *services.Account {
	a, _ := ctx.Value(accountKey{}).(*services.Account)
	return a
}

// requireAccount authenticates the bearer token and attaches the caller's
// account to the request context.
func (s *Server) requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil || s.accounts == nil {
			s.writeError(w, r, "authenticate", errNoIdentity)
			return
		}

		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			s.writeError(w, r, "authenticate", errUnauthorized)
			return
		}

		email, err := s.auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			s.writeError(w, r, "authenticate", err)
			return
		}

		account, err := s.accounts.Open(r.Context(), email)
		if err != nil {
			s.writeError(w, r, "open_account", err)
			return
		}
		defer s.accounts.Release(account)

		ctx := context.WithValue(r.Context(), accountKey{}, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentials struct {
	email    string
	password string
}

// readCredentials accepts a JSON or form-encoded body with email and password.
func readCredentials(r *http.Request) (credentials, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return credentials{}, err
	}
	c := credentials{email: p.Get("email"), password: p.Get("password")}
	if c.email == "" || c.password == "" {
		return credentials{}, fmt.Errorf("%w: email and password are required", errInvalidInput)
	}
	return c, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeError(w, r, "register", errNoIdentity)
		return
	}
	c, err := readCredentials(r)
	if err != nil {
		s.writeError(w, r, "register", err)
		return
	}
	if err := s.auth.Register(r.Context(), c.email, c.password); err != nil {
		s.writeError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"email": strings.ToLower(c.email)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		s.writeError(w, r, "login", errNoIdentity)
		return
	}
	c, err := readCredentials(r)
	if err != nil {
		s.writeError(w, r, "login", err)
		return
	}
	token, err := s.auth.Login(r.Context(), c.email, c.password)
	if err != nil {
		s.writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "token_type": "Bearer"})
}
