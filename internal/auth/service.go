package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mtvts/mtvts/internal/shared"
	"github.com/mtvts/mtvts/internal/users"
)

// UserFinder loads accounts for credential checks.
type UserFinder interface {
	FindByLogin(ctx context.Context, login string) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
}

// Tokens issues and revokes bearer tokens.
type Tokens interface {
	Issue(ctx context.Context, userID int64, role string) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	users  UserFinder
	tokens Tokens
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(finder UserFinder, tokens Tokens, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: finder, tokens: tokens, logger: logger}
}

// Authenticate validates login/password credentials.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*users.User, error) {
	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a fresh token, revoking any previous one.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	req.normalize()
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	user, err := s.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			s.logger.Info("login rejected", slog.String("login", req.Login))
		}
		return nil, err
	}
	token, expires, err := s.tokens.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expires,
		User:      profileOf(user),
		Roles:     []string{user.Role},
	}, nil
}

// Me returns the account behind the actor. A deactivated account is unauthorized.
func (s *Service) Me(ctx context.Context, actor *shared.Actor) (*users.User, error) {
	if actor == nil {
		return nil, shared.ErrUnauthorized
	}
	user, err := s.users.Get(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthorized
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	return user, nil
}

// Logout revokes the actor's token.
func (s *Service) Logout(ctx context.Context, actor *shared.Actor) error {
	if actor == nil || actor.Token == "" {
		return nil
	}
	return s.tokens.Revoke(ctx, actor.Token)
}
