package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/rolo/internal/domain"
	"github.com/mmcdole/rolo/internal/gateway"
	"github.com/mmcdole/rolo/internal/session"
)

// AuthService manages user session operations
type AuthService struct {
	repo    domain.AuthRepository
	manager *session.Manager
	gateway *gateway.Gateway
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(repo domain.AuthRepository, manager *session.Manager, gw *gateway.Gateway, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{repo: repo, manager: manager, gateway: gw, logger: logger}
}

// Login authenticates and starts a session, then loads the user
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if strings.TrimSpace(creds.Username) == "" {
		return nil, &domain.ValidationError{Field: "username", Reason: "username is required"}
	}
	if creds.Password == "" {
		return nil, &domain.ValidationError{Field: "password", Reason: "password is required"}
	}

	sess, err := s.repo.Login(ctx, creds)
	if err != nil {
		// A 401 from the login endpoint means bad credentials, not an expired session
		return nil, fmt.Errorf("login failed: %w", err)
	}
	s.manager.Begin(sess)

	return s.CurrentUser(ctx)
}

// Register creates an account and logs into it
func (s *AuthService) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	if strings.TrimSpace(reg.Email) == "" {
		return nil, &domain.ValidationError{Field: "email", Reason: "email is required"}
	}
	if _, err := s.repo.Register(ctx, reg); err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	s.logger.Info("registered account", "username", reg.Username)

	return s.Login(ctx, domain.Credentials{Username: reg.Username, Password: reg.Password})
}

// Logout revokes the refresh token and clears the session. The local
// session is cleared even when the service cannot be reached.
func (s *AuthService) Logout(ctx context.Context) error {
	sess, ok := s.manager.Session()
	if !ok {
		return nil
	}
	defer s.manager.End()

	err := s.gateway.Execute(ctx, "auth.logout", func(ctx context.Context, a gateway.Attempt) error {
		current, ok := s.manager.Session()
		if !ok {
			current = sess
		}
		return s.repo.Logout(ctx, a.AccessToken, current.RefreshToken)
	})
	if err != nil {
		s.logger.Warn("remote logout failed", "error", err)
		return err
	}
	s.logger.Info("logged out")
	return nil
}

// CurrentUser loads the authenticated user including their contacts
func (s *AuthService) CurrentUser(ctx context.Context) (*domain.User, error) {
	return gateway.Call(ctx, s.gateway, "auth.me", func(ctx context.Context, a gateway.Attempt) (*domain.User, error) {
		return s.repo.CurrentUser(ctx, a.AccessToken)
	})
}

// LoggedIn reports whether a session is present
func (s *AuthService) LoggedIn() bool {
	_, ok := s.manager.AccessToken()
	return ok
}
