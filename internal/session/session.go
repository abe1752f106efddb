// Package session signs operators in and out of the dashboard.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-dashboard/internal/domain"
	"fleet-dashboard/pkg/auth"
	"fleet-dashboard/pkg/logger"
)

// Validation errors carry the message shown under the login form.
var (
	ErrMissingFields = errors.New("Please fill in all fields")
	ErrInvalidEmail  = errors.New("Please enter a valid email address")
	ErrLoginFailed   = errors.New("Login failed. Please try again.")
)

const signingInMessage = "Signing in..."

type Store interface {
	Session() domain.Session
	Login(token string, role auth.Role)
	Logout()
}

type TokenIssuer interface {
	GenerateToken(email string, role auth.Role) (string, error)
}

// Loader runs fn behind the global loading indicator after a simulated delay.
type Loader interface {
	Run(ctx context.Context, msg string, delay time.Duration, fn func(context.Context) error) error
}

type Service struct {
	store  Store
	tokens TokenIssuer
	loader Loader
	delay  time.Duration
	log    logger.Logger
}

func NewService(store Store, tokens TokenIssuer, loader Loader, delay time.Duration, log logger.Logger) *Service {
	return &Service{store: store, tokens: tokens, loader: loader, delay: delay, log: log}
}

// Login validates the form, waits the simulated latency and stores a signed
// Admin session. Credentials are not checked against anything.
func (s *Service) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Session{}, ErrMissingFields
	}
	if !strings.Contains(email, "@") {
		return domain.Session{}, ErrInvalidEmail
	}

	err := s.loader.Run(ctx, signingInMessage, s.delay, func(context.Context) error {
		token, err := s.tokens.GenerateToken(email, auth.RoleAdmin)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoginFailed, err)
		}
		s.store.Login(token, auth.RoleAdmin)
		return nil
	})
	if err != nil {
		s.log.Error("login_failed", err)
		return domain.Session{}, err
	}

	s.log.WithFields(logger.LogFields{"email": email}).Info("login_success", "operator signed in")
	return s.store.Session(), nil
}

// Logout clears the session. Signing out twice is harmless.
func (s *Service) Logout() {
	s.store.Logout()
	s.log.Info("logout", "operator signed out")
}

func (s *Service) Current() domain.Session {
	return s.store.Session()
}
